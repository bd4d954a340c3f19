package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"coursechat-backend/internal/logger"
	"coursechat-backend/internal/vtt"
	"coursechat-backend/services"
)

const (
	TaskIngestVTT = "vtt:ingest"
	TaskReembed   = "index:reembed"
)

type IngestVTTPayload struct {
	CourseID string `json:"course_id"`
	Section  string `json:"section,omitempty"`
	File     string `json:"file"`
	Path     string `json:"path"`
}

type ReembedPayload struct {
	CourseID string `json:"course_id"`
	File     string `json:"file"`
}

// NewIngestVTTTask queues ingestion of a transcript already written to
// Path. Large uploads go through here instead of the request cycle.
func NewIngestVTTTask(courseID, section, file, path string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestVTTPayload{
		CourseID: courseID,
		Section:  section,
		File:     file,
		Path:     path,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestVTT,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// NewReembedTask queues regeneration of a file's embeddings after a
// model change was detected at search time.
func NewReembedTask(courseID, file string) (*asynq.Task, error) {
	payload, err := json.Marshal(ReembedPayload{CourseID: courseID, File: file})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskReembed,
		payload,
		asynq.MaxRetry(5),
		asynq.Timeout(5*time.Minute),
		asynq.Queue("low"),
	), nil
}

// TaskProcessor executes queued ingestion work in the worker process.
type TaskProcessor struct {
	ingest *services.IngestService
}

func NewTaskProcessor(ingest *services.IngestService) *TaskProcessor {
	return &TaskProcessor{ingest: ingest}
}

// ProcessIngestVTT ingests a staged transcript file. Parse failures are
// deterministic so they skip retry; embedding and index failures are
// transient and retried by asynq.
func (p *TaskProcessor) ProcessIngestVTT(ctx context.Context, t *asynq.Task) error {
	var payload IngestVTTPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("processing queued ingest", "course_id", payload.CourseID, "file", payload.File)

	f, err := os.Open(payload.Path)
	if err != nil {
		return fmt.Errorf("open staged upload: %v: %w", err, asynq.SkipRetry)
	}
	defer f.Close()

	result, err := p.ingest.IngestFile(ctx, payload.CourseID, payload.Section, payload.File, f)
	if err != nil {
		if errors.Is(err, vtt.ErrNoValidCues) {
			logger.Error("queued ingest failed on parse", "file", payload.File, "error", err)
			return fmt.Errorf("parse failed: %v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	if err := os.Remove(payload.Path); err != nil {
		logger.Warn("failed to remove staged upload", "path", payload.Path, "error", err)
	}

	logger.Info("queued ingest complete", "file", result.File, "chunks", result.Chunks)
	return nil
}

// ProcessReembed regenerates embeddings for one file.
func (p *TaskProcessor) ProcessReembed(ctx context.Context, t *asynq.Task) error {
	var payload ReembedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}
	return p.ingest.ReembedFile(ctx, payload.CourseID, payload.File)
}
