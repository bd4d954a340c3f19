package services

import (
	"context"
	"io"
	"time"

	"coursechat-backend/internal/ai"
	"coursechat-backend/internal/index"
	"coursechat-backend/internal/logger"
	"coursechat-backend/internal/vtt"
	"coursechat-backend/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// IngestService runs the ingestion pipeline for one transcript file:
// parse, chunk, embed, then atomically replace the file's chunk set.
type IngestService struct {
	chunker  *ChunkingService
	embedder ai.Embedder
	index    *index.Store
}

func NewIngestService(chunker *ChunkingService, embedder ai.Embedder, idx *index.Store) *IngestService {
	return &IngestService{chunker: chunker, embedder: embedder, index: idx}
}

// IngestResult is the per-file outcome reported by the upload endpoint.
type IngestResult struct {
	File     string `json:"file"`
	Chunks   int    `json:"chunks"`
	Segments int    `json:"segments"`
}

// IngestFile processes one WebVTT stream end to end. Parse failures and
// embedding failures surface as the owning package's sentinel so the
// handler can map them; nothing is written to the index unless the
// whole file embedded successfully.
func (is *IngestService) IngestFile(ctx context.Context, courseID, section, file string, r io.Reader) (*IngestResult, error) {
	tracer := otel.Tracer("ingest-service")
	ctx, span := tracer.Start(ctx, "ingest.file")
	defer span.End()
	span.SetAttributes(
		attribute.String("ingest.course_id", courseID),
		attribute.String("ingest.file", file),
	)

	started := time.Now()

	parsed, err := vtt.Parse(r, file)
	if err != nil {
		return nil, err
	}

	chunks := is.chunker.ChunkTranscript(parsed, courseID, section)
	span.SetAttributes(
		attribute.Int("ingest.segments", len(parsed.Segments)),
		attribute.Int("ingest.chunks", len(chunks)),
	)

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	vecs, err := is.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].Embedding = vecs[i]
		chunks[i].EmbeddingModel = is.embedder.Model()
	}

	manifestSection := section
	if manifestSection == "" {
		manifestSection = SectionFromFilename(file)
	}
	manifest := models.TranscriptFile{
		CourseID:     courseID,
		File:         file,
		Section:      manifestSection,
		SegmentCount: len(parsed.Segments),
	}
	if err := is.index.ReplaceFile(ctx, manifest, chunks); err != nil {
		return nil, err
	}

	logger.Info("ingested transcript file",
		"course_id", courseID,
		"file", file,
		"segments", len(parsed.Segments),
		"chunks", len(chunks),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return &IngestResult{File: file, Chunks: len(chunks), Segments: len(parsed.Segments)}, nil
}

// ReembedFile regenerates embeddings for a file's active chunk set with
// the current model. Runs from the worker when search finds chunks
// embedded with a stale model.
func (is *IngestService) ReembedFile(ctx context.Context, courseID, file string) error {
	chunks, err := is.index.FileChunks(ctx, courseID, file)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		logger.Warn("reembed requested for unknown file", "course_id", courseID, "file", file)
		return nil
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	vecs, err := is.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	for i := range chunks {
		chunks[i].Embedding = vecs[i]
	}
	if err := is.index.UpdateEmbeddings(ctx, chunks, is.embedder.Model()); err != nil {
		return err
	}

	logger.Info("reembedded transcript file", "course_id", courseID, "file", file, "chunks", len(chunks))
	return nil
}
