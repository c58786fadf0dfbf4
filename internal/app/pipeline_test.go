package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"seogen/internal/metadata"
	"seogen/pkg/ai"
	"seogen/pkg/domain"
	"seogen/pkg/queue"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func urlPayload() queue.Payload {
	return queue.Payload{
		JobID:          "job-1",
		SourceURL:      "https://example.com/page",
		Language:       "english",
		Tone:           "formal",
		MaxTitleLength: 60,
	}
}

func TestProcessJobFromURL(t *testing.T) {
	env := newTestApp(t)
	env.meta.meta = domain.Metadata{Title: "Page Title", MetaDescription: "Page description."}

	if err := env.app.ProcessJob(context.Background(), urlPayload()); err != nil {
		t.Fatalf("process job: %v", err)
	}

	wantStages := []string{queue.StatusExtracting, queue.StatusGenerating, queue.StatusRendering}
	if len(env.queue.stages) != len(wantStages) {
		t.Fatalf("stages = %v", env.queue.stages)
	}
	for i, s := range wantStages {
		if env.queue.stages[i] != s {
			t.Fatalf("stages = %v, want %v", env.queue.stages, wantStages)
		}
	}
	if len(env.queue.completed) != 1 {
		t.Fatalf("completed = %d", len(env.queue.completed))
	}
	res := env.queue.completed[0]
	if res.Title != "Page Title" || res.MetaDescription != "Page description." {
		t.Fatalf("result = %+v", res)
	}
	if !strings.HasSuffix(res.PDFURL, "/downloads/job-1.pdf") || !strings.HasSuffix(res.DocxURL, "/downloads/job-1.docx") {
		t.Fatalf("artifact urls = %q %q", res.PDFURL, res.DocxURL)
	}
	if _, err := os.Stat(filepath.Join(env.app.downloadsDir, "job-1.pdf")); err != nil {
		t.Fatalf("pdf artifact missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.app.downloadsDir, "job-1.docx")); err != nil {
		t.Fatalf("docx artifact missing: %v", err)
	}
	if env.extract.gotURL != "https://example.com/page" {
		t.Fatalf("extracted url = %q", env.extract.gotURL)
	}
}

func TestProcessJobFromUploadDeletesStagedFile(t *testing.T) {
	env := newTestApp(t)
	ctx := context.Background()
	if err := env.app.objects.Put(ctx, "uploads/job-2/doc.txt", strings.NewReader("text body"), 9, ""); err != nil {
		t.Fatalf("stage upload: %v", err)
	}
	p := queue.Payload{
		JobID:          "job-2",
		OwnerID:        "user-1",
		UploadKey:      "uploads/job-2/doc.txt",
		Filename:       "doc.txt",
		Language:       "english",
		Tone:           "formal",
		MaxTitleLength: 60,
	}
	if err := env.app.ProcessJob(ctx, p); err != nil {
		t.Fatalf("process job: %v", err)
	}
	if env.extract.gotFilename != "doc.txt" || env.extract.gotFile != "text body" {
		t.Fatalf("extractor saw %q %q", env.extract.gotFilename, env.extract.gotFile)
	}
	if _, err := env.app.objects.Get(ctx, "uploads/job-2/doc.txt"); err == nil {
		t.Fatalf("staged upload should be deleted after completion")
	}

	records, err := env.app.History("user-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d", len(records))
	}
	if records[0].Title != "T" || records[0].Options.Language != "english" {
		t.Fatalf("record = %+v", records[0])
	}
}

func TestProcessJobAnonymousSkipsHistory(t *testing.T) {
	env := newTestApp(t)
	if err := env.app.ProcessJob(context.Background(), urlPayload()); err != nil {
		t.Fatalf("process job: %v", err)
	}
	records, err := env.app.History("user-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("anonymous job must not write history, got %d records", len(records))
	}
}

func TestProcessJobExtractFailure(t *testing.T) {
	env := newTestApp(t)
	env.extract.err = errors.New("fetch url: 404 Not Found")
	err := env.app.ProcessJob(context.Background(), urlPayload())
	if err == nil {
		t.Fatalf("expected extract failure")
	}
	if kind := ClassifyError(err); kind != "extraction" {
		t.Fatalf("kind = %q", kind)
	}
	if len(env.queue.completed) != 0 {
		t.Fatalf("failed job must not complete")
	}
}

func TestProcessJobRenderFailureCleansArtifacts(t *testing.T) {
	env := newTestApp(t)
	env.render.docxErr = errors.New("disk full")
	err := env.app.ProcessJob(context.Background(), urlPayload())
	if err == nil {
		t.Fatalf("expected render failure")
	}
	if kind := ClassifyError(err); kind != "render" {
		t.Fatalf("kind = %q", kind)
	}
	if _, statErr := os.Stat(filepath.Join(env.app.downloadsDir, "job-1.pdf")); !os.IsNotExist(statErr) {
		t.Fatalf("pdf artifact should be removed on render failure")
	}
}

func TestProcessJobUpstreamErrorIsRetryable(t *testing.T) {
	env := newTestApp(t)
	env.meta.err = &ai.UpstreamError{Kind: ai.KindRateLimited, Message: "slow down"}
	err := env.app.ProcessJob(context.Background(), urlPayload())
	if err == nil {
		t.Fatalf("expected generate failure")
	}
	var r interface{ Retryable() bool }
	if !errors.As(err, &r) || !r.Retryable() {
		t.Fatalf("rate-limited failure should surface as retryable, got %v", err)
	}
	if kind := ClassifyError(err); kind != "upstream_rate_limited" {
		t.Fatalf("kind = %q", kind)
	}
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&stageError{stage: stageExtract, err: errors.New("x")}, "extraction"},
		{&stageError{stage: stageRender, err: errors.New("x")}, "render"},
		{&stageError{stage: stagePersist, err: errors.New("x")}, "persist"},
		{&stageError{stage: stageGenerate, err: metadata.ErrNoJSONObject}, "response_format"},
		{&stageError{stage: stageGenerate, err: metadata.ErrMissingFields}, "response_format"},
		{&stageError{stage: stageGenerate, err: &ai.UpstreamError{Kind: ai.KindUnauthorized}}, "upstream_unauthorized"},
		{&stageError{stage: stageGenerate, err: &ai.UpstreamError{Kind: ai.KindForbidden}}, "upstream_forbidden"},
		{&stageError{stage: stageGenerate, err: &ai.UpstreamError{Kind: ai.KindUnreachable}}, "upstream_unreachable"},
		{&stageError{stage: stageGenerate, err: &ai.UpstreamError{Kind: ai.KindUnknown}}, "upstream"},
		{errors.New("anything else"), "error"},
	}
	for _, tc := range cases {
		if got := ClassifyError(tc.err); got != tc.want {
			t.Fatalf("ClassifyError(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
