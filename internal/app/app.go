package app

import (
	"context"
	"errors"
	"io"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"seogen/internal/util"
	"seogen/pkg/auth"
	"seogen/pkg/domain"
	"seogen/pkg/queue"
	"seogen/pkg/storage"
	"seogen/pkg/store"
)

// Queue is the job queue surface the app depends on.
type Queue interface {
	Enqueue(ctx context.Context, p queue.Payload) (queue.JobStatus, error)
	GetJob(ctx context.Context, jobID string) (queue.JobStatus, bool, error)
	SetStage(ctx context.Context, jobID, status string) error
	Complete(ctx context.Context, jobID string, res queue.Result) error
}

// Extractor turns sources into plain text.
type Extractor interface {
	FromURL(ctx context.Context, rawURL string) (string, error)
	FromFile(filename string, r io.Reader) (string, error)
}

// MetadataGenerator produces SEO metadata from text.
type MetadataGenerator interface {
	Generate(ctx context.Context, text string, opts domain.GenerationOptions) (domain.Metadata, error)
}

// Renderer writes report artifacts.
type Renderer interface {
	RenderPDF(title, description, path string) error
	RenderDOCX(title, description, path string) error
}

// Config wires the app's dependencies.
type Config struct {
	Store     store.Store
	Sessions  store.SessionStore
	Objects   storage.ObjectStore
	Queue     Queue
	Extractor Extractor
	Metadata  MetadataGenerator
	Renderer  Renderer

	DownloadsDir  string
	PublicBaseURL string
}

// App implements account management and the generation pipeline.
type App struct {
	store     store.Store
	sessions  store.SessionStore
	objects   storage.ObjectStore
	queue     Queue
	extractor Extractor
	metadata  MetadataGenerator
	renderer  Renderer

	downloadsDir  string
	publicBaseURL string
}

// New validates the config and builds the App.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Objects == nil {
		return nil, errors.New("object store is required")
	}
	if cfg.Queue == nil {
		return nil, errors.New("queue is required")
	}
	if cfg.Extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if cfg.Metadata == nil {
		return nil, errors.New("metadata generator is required")
	}
	if cfg.Renderer == nil {
		return nil, errors.New("renderer is required")
	}
	downloadsDir := strings.TrimSpace(cfg.DownloadsDir)
	if downloadsDir == "" {
		downloadsDir = "downloads"
	}
	return &App{
		store:         cfg.Store,
		sessions:      cfg.Sessions,
		objects:       cfg.Objects,
		queue:         cfg.Queue,
		extractor:     cfg.Extractor,
		metadata:      cfg.Metadata,
		renderer:      cfg.Renderer,
		downloadsDir:  downloadsDir,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
	}, nil
}

// SignUp registers an account and opens a session.
func (a *App) SignUp(email, password string) (domain.User, string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return domain.User{}, "", ErrEmailAndPasswordRequired
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.User{}, "", ErrInvalidEmail
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, "", err
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, "", err
	}
	if exists {
		return domain.User{}, "", ErrEmailAlreadyExists
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", err
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", err
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", err
	}
	return user, token, nil
}

// Login verifies credentials and opens a session.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return domain.User{}, "", ErrEmailAndPasswordRequired
	}
	user, found, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", err
	}
	if !found || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", err
	}
	return user, token, nil
}

// ResolveIdentity maps a bearer token to its user.
func (a *App) ResolveIdentity(token string) (domain.User, error) {
	subject, err := a.sessions.SubjectFromToken(token)
	if err != nil {
		return domain.User{}, err
	}
	user, found, err := a.store.GetUserByID(subject)
	if err != nil {
		return domain.User{}, err
	}
	if !found {
		return domain.User{}, ErrUnknownSubject
	}
	return user, nil
}

// SubmitRequest describes one generation submission.
type SubmitRequest struct {
	OwnerID   string
	SourceURL string
	Filename  string
	File      io.Reader
	Size      int64

	Language       string
	Tone           string
	MaxTitleLength int
}

// SubmitJob validates a submission, stages any uploaded file, and enqueues
// the job. The returned status carries the ID to poll.
func (a *App) SubmitJob(ctx context.Context, req SubmitRequest) (queue.JobStatus, error) {
	sourceURL := strings.TrimSpace(req.SourceURL)
	hasFile := req.File != nil && strings.TrimSpace(req.Filename) != ""
	if sourceURL == "" && !hasFile {
		return queue.JobStatus{}, ErrSourceRequired
	}
	if strings.TrimSpace(req.Language) == "" {
		return queue.JobStatus{}, ErrLanguageRequired
	}
	if strings.TrimSpace(req.Tone) == "" {
		return queue.JobStatus{}, ErrToneRequired
	}
	if req.MaxTitleLength <= 0 {
		return queue.JobStatus{}, ErrInvalidLength
	}

	p := queue.Payload{
		JobID:          util.NewID(),
		OwnerID:        req.OwnerID,
		Language:       strings.TrimSpace(req.Language),
		Tone:           strings.TrimSpace(req.Tone),
		MaxTitleLength: req.MaxTitleLength,
	}
	// A url wins over an uploaded file when both are present; the file is
	// then ignored and never staged.
	if sourceURL != "" {
		p.SourceURL = sourceURL
	} else {
		filename := sanitizeFilename(req.Filename)
		key := "uploads/" + p.JobID + "/" + filename
		if err := a.objects.Put(ctx, key, req.File, req.Size, ""); err != nil {
			return queue.JobStatus{}, err
		}
		p.UploadKey = key
		p.Filename = filename
	}
	job, err := a.queue.Enqueue(ctx, p)
	if err != nil {
		if p.UploadKey != "" {
			_ = a.objects.Delete(ctx, p.UploadKey)
		}
		return queue.JobStatus{}, err
	}
	return job, nil
}

// JobStatus returns the pollable state of a job.
func (a *App) JobStatus(ctx context.Context, jobID string) (queue.JobStatus, error) {
	job, found, err := a.queue.GetJob(ctx, jobID)
	if err != nil {
		return queue.JobStatus{}, err
	}
	if !found {
		return queue.JobStatus{}, ErrJobNotFound
	}
	return job, nil
}

// History lists a user's stored generations, newest first.
func (a *App) History(userID string) ([]domain.SeoRecord, error) {
	return a.store.ListRecordsByUser(userID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" {
		name = "upload"
	}
	return name
}
