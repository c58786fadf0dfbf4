package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Job statuses. A job moves queued -> extracting -> generating -> rendering
// -> completed, or to error at whatever stage failed.
const (
	StatusQueued     = "queued"
	StatusExtracting = "extracting"
	StatusGenerating = "generating"
	StatusRendering  = "rendering"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Payload is the work description carried on the stream. It is everything
// a worker needs to run a job from scratch, including after redelivery.
type Payload struct {
	JobID          string `json:"jobId"`
	OwnerID        string `json:"ownerId,omitempty"`
	SourceURL      string `json:"sourceUrl,omitempty"`
	UploadKey      string `json:"uploadKey,omitempty"`
	Filename       string `json:"filename,omitempty"`
	Language       string `json:"language"`
	Tone           string `json:"tone"`
	MaxTitleLength int    `json:"maxTitleLength"`
}

// JobStatus is the durable, pollable state of a job.
type JobStatus struct {
	ID              string    `json:"id"`
	Status          string    `json:"status"`
	Title           string    `json:"title,omitempty"`
	MetaDescription string    `json:"meta_description,omitempty"`
	PDFURL          string    `json:"pdf_url,omitempty"`
	DocxURL         string    `json:"docx_url,omitempty"`
	ErrorKind       string    `json:"error_kind,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	Attempts        int       `json:"attempts"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Result carries the outputs recorded on completion.
type Result struct {
	Title           string
	MetaDescription string
	PDFURL          string
	DocxURL         string
}

type retryable interface {
	Retryable() bool
}

// RedisJobQueue runs jobs over a Redis stream with a consumer group and
// keeps per-job status in TTL'd hashes.
type RedisJobQueue struct {
	client       *redis.Client
	stream       string
	group        string
	consumerBase string
	jobTTL       time.Duration
	maxRetries   int
	block        time.Duration
	claimIdle    time.Duration
	retryDelay   time.Duration
	maxLen       int64
	readCount    int64
	claimCount   int64
	classify     func(error) string
	once         sync.Once
}

type RedisQueueConfig struct {
	Addr       string
	Password   string
	Stream     string
	Group      string
	Consumer   string
	JobTTL     time.Duration
	MaxRetries int
	Block      time.Duration
	ClaimIdle  time.Duration
	RetryDelay time.Duration
	MaxLen     int64
	ReadCount  int64
	ClaimCount int64
	// Classify maps a handler error to an error_kind value for the status
	// record. Defaults to a constant "error" when unset.
	Classify func(error) string
}

func NewRedisJobQueue(cfg RedisQueueConfig) (*RedisJobQueue, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("queue stream required")
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "default"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = uuid.NewString()
	}
	jobTTL := cfg.JobTTL
	if jobTTL <= 0 {
		jobTTL = 24 * time.Hour
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	claimIdle := cfg.ClaimIdle
	if claimIdle <= 0 {
		claimIdle = 30 * time.Second
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	readCount := cfg.ReadCount
	if readCount <= 0 {
		readCount = 10
	}
	claimCount := cfg.ClaimCount
	if claimCount <= 0 {
		claimCount = 10
	}
	classify := cfg.Classify
	if classify == nil {
		classify = func(error) string { return StatusError }
	}

	return &RedisJobQueue{
		client:       redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		stream:       stream,
		group:        group,
		consumerBase: consumer,
		jobTTL:       jobTTL,
		maxRetries:   maxRetries,
		block:        block,
		claimIdle:    claimIdle,
		retryDelay:   retryDelay,
		maxLen:       maxLen,
		readCount:    readCount,
		claimCount:   claimCount,
		classify:     classify,
	}, nil
}

// Enqueue records a queued job and pushes its payload onto the stream.
// The job ID is assigned here when the payload does not carry one.
func (q *RedisJobQueue) Enqueue(ctx context.Context, p Payload) (JobStatus, error) {
	if strings.TrimSpace(p.JobID) == "" {
		p.JobID = uuid.NewString()
	}
	if strings.TrimSpace(p.SourceURL) == "" && strings.TrimSpace(p.UploadKey) == "" {
		return JobStatus{}, errors.New("payload needs a source url or an upload key")
	}
	job := JobStatus{
		ID:        p.JobID,
		Status:    StatusQueued,
		Attempts:  0,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := q.writeStatus(ctx, job); err != nil {
		return JobStatus{}, err
	}
	if err := q.addToStream(ctx, nil, p); err != nil {
		// A job that never made it onto the stream must not stay pollable.
		_ = q.client.Del(ctx, q.jobKey(p.JobID)).Err()
		return JobStatus{}, err
	}
	return job, nil
}

// GetJob returns the current status of a job, if it is still known.
func (q *RedisJobQueue) GetJob(ctx context.Context, jobID string) (JobStatus, bool, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return JobStatus{}, false, nil
	}
	data, err := q.client.HGetAll(ctx, q.jobKey(jobID)).Result()
	if err != nil {
		return JobStatus{}, false, err
	}
	if len(data) == 0 {
		return JobStatus{}, false, nil
	}
	return decodeJobStatus(jobID, data), true, nil
}

// SetStage moves a job to an intermediate pipeline status.
func (q *RedisJobQueue) SetStage(ctx context.Context, jobID, status string) error {
	return q.update(ctx, jobID, func(job *JobStatus) {
		job.Status = status
	})
}

// Complete marks a job done and records its outputs.
func (q *RedisJobQueue) Complete(ctx context.Context, jobID string, res Result) error {
	return q.update(ctx, jobID, func(job *JobStatus) {
		job.Status = StatusCompleted
		job.Title = res.Title
		job.MetaDescription = res.MetaDescription
		job.PDFURL = res.PDFURL
		job.DocxURL = res.DocxURL
		job.ErrorKind = ""
		job.ErrorMessage = ""
	})
}

// Fail marks a job as permanently failed with a classified error.
func (q *RedisJobQueue) Fail(ctx context.Context, jobID, kind, message string) error {
	return q.update(ctx, jobID, func(job *JobStatus) {
		job.Status = StatusError
		job.ErrorKind = kind
		job.ErrorMessage = message
	})
}

// Start launches consumers. The handler receives the stream payload and is
// expected to drive stage transitions and Complete itself; a returned error
// either requeues the job (transient failures, within the retry budget) or
// fails it permanently.
func (q *RedisJobQueue) Start(ctx context.Context, concurrency int, handler func(context.Context, Payload) error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	q.ensureGroup(ctx)
	for i := 0; i < concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", q.consumerBase, i)
		go q.consumeLoop(ctx, consumer, handler)
	}
}

func (q *RedisJobQueue) ensureGroup(ctx context.Context) {
	q.once.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "$").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			// best-effort; errors will surface on consume
		}
	})
}

func (q *RedisJobQueue) consumeLoop(ctx context.Context, consumer string, handler func(context.Context, Payload) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if msgs, err := q.claimPending(ctx, consumer); err == nil {
			for _, msg := range msgs {
				q.handleMessage(ctx, msg, handler)
			}
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    q.readCount,
			Block:    q.block,
		}).Result()
		if err != nil {
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}
}

func (q *RedisJobQueue) claimPending(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	res, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    q.claimCount,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (q *RedisJobQueue) handleMessage(ctx context.Context, msg redis.XMessage, handler func(context.Context, Payload) error) {
	raw, _ := msg.Values["payload"].(string)
	var p Payload
	if raw == "" || json.Unmarshal([]byte(raw), &p) != nil || p.JobID == "" {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	job, err := q.recordAttempt(ctx, p.JobID)
	if err != nil {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	handlerErr := handler(ctx, p)
	if handlerErr == nil {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	var r retryable
	if errors.As(handlerErr, &r) && r.Retryable() && job.Attempts <= q.maxRetries {
		_ = q.update(ctx, p.JobID, func(job *JobStatus) {
			job.Status = StatusQueued
			job.ErrorKind = ""
			job.ErrorMessage = handlerErr.Error()
		})
		if q.retryDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(q.retryDelay):
			}
		}
		_ = q.requeueAndAck(ctx, msg.ID, p)
		return
	}
	_ = q.Fail(ctx, p.JobID, q.classify(handlerErr), handlerErr.Error())
	q.ackAndDel(ctx, msg.ID)
}

func (q *RedisJobQueue) ackAndDel(ctx context.Context, msgID string) {
	_, _ = q.client.XAck(ctx, q.stream, q.group, msgID).Result()
	_, _ = q.client.XDel(ctx, q.stream, msgID).Result()
}

func (q *RedisJobQueue) addToStream(ctx context.Context, pipe redis.Pipeliner, p Payload) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{"payload": string(raw)},
	}
	if pipe != nil {
		pipe.XAdd(ctx, args)
		return nil
	}
	return q.client.XAdd(ctx, args).Err()
}

func (q *RedisJobQueue) requeueAndAck(ctx context.Context, msgID string, p Payload) error {
	pipe := q.client.TxPipeline()
	if err := q.addToStream(ctx, pipe, p); err != nil {
		return err
	}
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RedisJobQueue) recordAttempt(ctx context.Context, jobID string) (JobStatus, error) {
	job, _, err := q.GetJob(ctx, jobID)
	if err != nil {
		return JobStatus{}, err
	}
	if job.ID == "" {
		job = JobStatus{ID: jobID, Status: StatusQueued}
	}
	job.Attempts++
	job.UpdatedAt = time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = job.UpdatedAt
	}
	if err := q.writeStatus(ctx, job); err != nil {
		return JobStatus{}, err
	}
	return job, nil
}

func (q *RedisJobQueue) update(ctx context.Context, jobID string, mutate func(*JobStatus)) error {
	job, found, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("unknown job %q", jobID)
	}
	mutate(&job)
	job.UpdatedAt = time.Now().UTC()
	return q.writeStatus(ctx, job)
}

func (q *RedisJobQueue) writeStatus(ctx context.Context, job JobStatus) error {
	key := q.jobKey(job.ID)
	payload := map[string]any{
		"id":               job.ID,
		"status":           job.Status,
		"title":            job.Title,
		"meta_description": job.MetaDescription,
		"pdf_url":          job.PDFURL,
		"docx_url":         job.DocxURL,
		"error_kind":       job.ErrorKind,
		"error_message":    job.ErrorMessage,
		"attempts":         strconv.Itoa(job.Attempts),
		"created_at":       job.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":       job.UpdatedAt.Format(time.RFC3339Nano),
	}
	if err := q.client.HSet(ctx, key, payload).Err(); err != nil {
		return err
	}
	_ = q.client.Expire(ctx, key, q.jobTTL).Err()
	return nil
}

func (q *RedisJobQueue) jobKey(jobID string) string {
	return fmt.Sprintf("seojob:%s:%s", q.stream, jobID)
}

func decodeJobStatus(jobID string, data map[string]string) JobStatus {
	job := JobStatus{ID: jobID}
	job.Status = data["status"]
	job.Title = data["title"]
	job.MetaDescription = data["meta_description"]
	job.PDFURL = data["pdf_url"]
	job.DocxURL = data["docx_url"]
	job.ErrorKind = data["error_kind"]
	job.ErrorMessage = data["error_message"]
	if v := data["attempts"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			job.Attempts = n
		}
	}
	if v := data["created_at"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			job.CreatedAt = t
		}
	}
	if v := data["updated_at"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			job.UpdatedAt = t
		}
	}
	return job
}
