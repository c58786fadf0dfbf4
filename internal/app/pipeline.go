package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"seogen/internal/metadata"
	"seogen/internal/util"
	"seogen/pkg/ai"
	"seogen/pkg/domain"
	"seogen/pkg/queue"
)

const (
	stageExtract  = "extract"
	stageGenerate = "generate"
	stageRender   = "render"
	stagePersist  = "persist"
)

type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return fmt.Sprintf("%s: %v", e.stage, e.err) }
func (e *stageError) Unwrap() error { return e.err }

// ClassifyError maps a pipeline failure to the error_kind recorded on the
// job. Upstream provider failures carry their own classification; everything
// else is named after the stage that failed.
func ClassifyError(err error) string {
	var upstream *ai.UpstreamError
	if errors.As(err, &upstream) {
		if upstream.Kind == ai.KindUnknown {
			return "upstream"
		}
		return "upstream_" + string(upstream.Kind)
	}
	if errors.Is(err, metadata.ErrNoJSONObject) || errors.Is(err, metadata.ErrMissingFields) {
		return "response_format"
	}
	var stage *stageError
	if errors.As(err, &stage) {
		switch stage.stage {
		case stageExtract:
			return "extraction"
		case stageRender:
			return "render"
		case stagePersist:
			return "persist"
		}
	}
	return "error"
}

// ProcessJob runs one job end to end: extract, generate, render, persist,
// complete. It drives the job's stage transitions; a returned error leaves
// the job to the queue's retry/fail handling.
func (a *App) ProcessJob(ctx context.Context, p queue.Payload) error {
	logger := util.LoggerFromContext(ctx).With("job_id", p.JobID)

	if err := a.queue.SetStage(ctx, p.JobID, queue.StatusExtracting); err != nil {
		return err
	}
	text, err := a.extractSource(ctx, p)
	if err != nil {
		logger.Warn("job_extract_failed", "error", err.Error())
		return &stageError{stage: stageExtract, err: err}
	}

	if err := a.queue.SetStage(ctx, p.JobID, queue.StatusGenerating); err != nil {
		return err
	}
	opts := domain.GenerationOptions{
		Language:       p.Language,
		Tone:           p.Tone,
		MaxTitleLength: p.MaxTitleLength,
	}
	meta, err := a.metadata.Generate(ctx, text, opts)
	if err != nil {
		logger.Warn("job_generate_failed", "error", err.Error())
		return &stageError{stage: stageGenerate, err: err}
	}

	if err := a.queue.SetStage(ctx, p.JobID, queue.StatusRendering); err != nil {
		return err
	}
	pdfPath := filepath.Join(a.downloadsDir, p.JobID+".pdf")
	docxPath := filepath.Join(a.downloadsDir, p.JobID+".docx")
	var g errgroup.Group
	g.Go(func() error { return a.renderer.RenderPDF(meta.Title, meta.MetaDescription, pdfPath) })
	g.Go(func() error { return a.renderer.RenderDOCX(meta.Title, meta.MetaDescription, docxPath) })
	if err := g.Wait(); err != nil {
		logger.Warn("job_render_failed", "error", err.Error())
		a.removeArtifacts(pdfPath, docxPath)
		return &stageError{stage: stageRender, err: err}
	}

	pdfURL := a.publicBaseURL + "/downloads/" + p.JobID + ".pdf"
	docxURL := a.publicBaseURL + "/downloads/" + p.JobID + ".docx"

	if p.OwnerID != "" {
		record := domain.SeoRecord{
			ID:              util.NewID(),
			UserID:          p.OwnerID,
			Title:           meta.Title,
			MetaDescription: meta.MetaDescription,
			PDFURL:          pdfURL,
			DocxURL:         docxURL,
			Options:         opts,
			CreatedAt:       time.Now().UTC(),
		}
		if err := a.store.SaveRecord(record); err != nil {
			logger.Error("job_persist_failed", "error", err.Error())
			a.removeArtifacts(pdfPath, docxPath)
			return &stageError{stage: stagePersist, err: err}
		}
	}

	if err := a.queue.Complete(ctx, p.JobID, queue.Result{
		Title:           meta.Title,
		MetaDescription: meta.MetaDescription,
		PDFURL:          pdfURL,
		DocxURL:         docxURL,
	}); err != nil {
		return err
	}
	if p.UploadKey != "" {
		// Staged upload is no longer needed once the job is done.
		_ = a.objects.Delete(ctx, p.UploadKey)
	}
	logger.Info("job_completed")
	return nil
}

func (a *App) extractSource(ctx context.Context, p queue.Payload) (string, error) {
	if p.SourceURL != "" {
		return a.extractor.FromURL(ctx, p.SourceURL)
	}
	rc, err := a.objects.Get(ctx, p.UploadKey)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return a.extractor.FromFile(p.Filename, rc)
}

func (a *App) removeArtifacts(paths ...string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("artifact_cleanup_failed", "path", path, "error", err.Error())
		}
	}
}
