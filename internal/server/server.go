package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"seogen/internal/app"
	"seogen/internal/extract"
	"seogen/internal/ratelimit"
	"seogen/internal/util"
	"seogen/pkg/auth"
	"seogen/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                        *app.App
	RedisAddr                  string
	RedisPassword              string
	AllowedOrigins             []string
	TrustedProxies             []string
	DownloadsDir               string
	MaxUploadBytes             int64
	AllowedExtensions          []string
	SignupRateLimitPerMinute   int
	LoginRateLimitPerMinute    int
	GenerateRateLimitPerMinute int
}

// Server exposes the HTTP API.
type Server struct {
	app               *app.App
	mux               *http.ServeMux
	allowedOrigins    []string
	trustedProxies    *util.TrustedProxies
	maxUploadBytes    int64
	allowedExtensions map[string]struct{}
	signupLimiter     *ratelimit.FixedWindowLimiter
	loginLimiter      *ratelimit.FixedWindowLimiter
	generateLimiter   *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	signupLimit := cfg.SignupRateLimitPerMinute
	if signupLimit <= 0 {
		signupLimit = 5
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	generateLimit := cfg.GenerateRateLimitPerMinute
	if generateLimit <= 0 {
		generateLimit = 20
	}
	rateWindow := time.Minute
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "seogen:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, rateWindow)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	signupLimiter, err := newLimiter("signup", signupLimit)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	generateLimiter, err := newLimiter("generate", generateLimit)
	if err != nil {
		return nil, err
	}
	downloadsDir := strings.TrimSpace(cfg.DownloadsDir)
	if downloadsDir == "" {
		downloadsDir = "downloads"
	}
	s := &Server{
		app:               cfg.App,
		mux:               http.NewServeMux(),
		allowedOrigins:    cfg.AllowedOrigins,
		trustedProxies:    trustedProxies,
		maxUploadBytes:    normalizeMaxBytes(cfg.MaxUploadBytes),
		allowedExtensions: normalizeExtensions(cfg.AllowedExtensions),
		signupLimiter:     signupLimiter,
		loginLimiter:      loginLimiter,
		generateLimiter:   generateLimiter,
	}
	s.routes(downloadsDir)
	return s, nil
}

// Router returns the configured handler with the middleware stack applied.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(
		util.WithRequestID(
			util.WithRequestLog("seogen",
				util.WithCORS(s.allowedOrigins, s.mux))))
}

func (s *Server) routes(downloadsDir string) {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)

	// generation
	s.mux.HandleFunc("/api/seo/generate", s.handleGenerate)
	s.mux.HandleFunc("/api/seo/status/", s.handleStatus)
	s.mux.HandleFunc("/api/seo/history", s.handleHistory)

	// rendered artifacts
	s.mux.Handle("/downloads/", http.StripPrefix("/downloads/", http.FileServer(http.Dir(downloadsDir))))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string      `json:"token"`
	TokenType string      `json:"tokenType"`
	User      domain.User `json:"user"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.signupLimiter, "too many signup attempts") {
		s.audit(r, "seogen.signup", "rate_limited")
		return
	}
	var req authRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "seogen.signup", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.SignUp(req.Email, req.Password)
	if err != nil {
		s.audit(r, "seogen.signup", "fail", "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "seogen.signup", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, TokenType: "bearer", User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "seogen.login", "rate_limited")
		return
	}
	var req authRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "seogen.login", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		s.audit(r, "seogen.login", "fail", "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "seogen.login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{Token: token, TokenType: "bearer", User: user})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.generateLimiter, "too many generation requests") {
		s.audit(r, "seogen.generate", "rate_limited")
		return
	}

	// Authentication is optional here: signed-in submissions get history,
	// anonymous ones are still processed.
	ownerID := ""
	if token, ok := bearerToken(r); ok {
		if user, err := s.app.ResolveIdentity(token); err == nil {
			ownerID = user.ID
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.audit(r, "seogen.generate", "fail", "reason", "invalid_multipart")
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	rawLength := strings.TrimSpace(r.FormValue("length"))
	if rawLength == "" {
		s.audit(r, "seogen.generate", "fail", "reason", "missing_length")
		writeError(w, http.StatusBadRequest, "length is required")
		return
	}
	length, err := strconv.Atoi(rawLength)
	if err != nil || length <= 0 {
		s.audit(r, "seogen.generate", "fail", "reason", "invalid_length")
		writeError(w, http.StatusBadRequest, "length must be a positive number")
		return
	}

	req := app.SubmitRequest{
		OwnerID:        ownerID,
		SourceURL:      r.FormValue("url"),
		Language:       r.FormValue("language"),
		Tone:           r.FormValue("tone"),
		MaxTitleLength: length,
	}

	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		if !s.isExtensionAllowed(header.Filename) {
			s.audit(r, "seogen.generate", "fail", "reason", "unsupported_file_type")
			writeError(w, http.StatusBadRequest, "unsupported file type")
			return
		}
		req.Filename = header.Filename
		req.File = file
		req.Size = header.Size
	case errors.Is(err, http.ErrMissingFile):
		// url-only submission
	default:
		s.audit(r, "seogen.generate", "fail", "reason", "invalid_file_part")
		writeError(w, http.StatusBadRequest, "invalid file upload")
		return
	}

	job, err := s.app.SubmitJob(r.Context(), req)
	if err != nil {
		s.audit(r, "seogen.generate", "fail", "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "seogen.generate", "success", "job_id", job.ID)
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": job.ID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/api/seo/status/")
	if jobID == "" || strings.Contains(jobID, "/") {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	job, err := s.app.JobStatus(r.Context(), jobID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, "seogen.history", "fail", "reason", "missing_token")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := s.app.ResolveIdentity(token)
	if err != nil {
		s.audit(r, "seogen.history", "fail", "reason", "invalid_token")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	items, err := s.app.History(user.ID)
	if err != nil {
		s.audit(r, "seogen.history", "fail", "reason", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrEmailAndPasswordRequired),
		errors.Is(err, app.ErrInvalidEmail),
		errors.Is(err, app.ErrEmailAlreadyExists),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, app.ErrSourceRequired),
		errors.Is(err, app.ErrLanguageRequired),
		errors.Is(err, app.ErrToneRequired),
		errors.Is(err, app.ErrInvalidLength),
		errors.Is(err, extract.ErrUnsupportedType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 20 * 1024 * 1024
	}
	return value
}

func normalizeExtensions(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		exts = []string{".pdf", ".docx", ".txt"}
	}
	out := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out[ext] = struct{}{}
	}
	return out
}

func (s *Server) isExtensionAllowed(filename string) bool {
	if len(s.allowedExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	_, ok := s.allowedExtensions[ext]
	return ok
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + s.clientIP(r)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

// clientIP keys rate limits and audit logs. Forwarded headers count only
// when the direct peer is a configured trusted proxy.
func (s *Server) clientIP(r *http.Request) string {
	return util.ClientIP(r, s.trustedProxies)
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", s.clientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}
