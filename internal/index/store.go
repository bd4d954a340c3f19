package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"coursechat-backend/internal/logger"
	"coursechat-backend/models"
	"coursechat-backend/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrUnavailable wraps datastore failures so callers can map them to a
// stable retrieval error code.
var ErrUnavailable = errors.New("index unavailable")

const insertBatchSize = 500

// supersededGrace is how long an inactive chunk version survives before
// deletion may touch it. An ingest in flight (insert done, manifest not
// yet flipped) is always younger than this, so neither the inline
// cleanup nor the scheduled compaction can sweep it. The queued ingest
// task times out after 10 minutes, well inside the window.
const supersededGrace = 30 * time.Minute

// Store keeps chunk vectors and per-file manifests in MongoDB. Chunk
// sets are immutable; re-ingesting a file writes a new set under a
// fresh ingest version and then flips the manifest, so concurrent
// readers always see exactly one complete version of each file.
type Store struct {
	chunks *mongo.Collection
	files  *mongo.Collection

	// OnModelMismatch, when set, is invoked for each file whose stored
	// embeddings were produced by a different model than wantModel.
	// Mismatched chunks are excluded from search results.
	OnModelMismatch func(courseID, file string)

	wantModel string

	mu        sync.Mutex
	fileLocks map[string]*sync.Mutex
}

func NewStore(db *mongo.Database, wantModel string) *Store {
	return &Store{
		chunks:    db.Collection("chunks"),
		files:     db.Collection("transcript_files"),
		wantModel: wantModel,
		fileLocks: make(map[string]*sync.Mutex),
	}
}

// fileLock returns the mutex serializing ingestion of one file. Two
// ReplaceFile calls for the same (course, file) must not interleave, or
// the first flip's cleanup could delete the second call's not-yet-active
// chunks.
func (s *Store) fileLock(courseID, file string) *sync.Mutex {
	key := courseID + "\x00" + file
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.fileLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.fileLocks[key] = l
	}
	return l
}

// ReplaceFile atomically replaces the indexed chunk set for one file.
// Order of operations: insert the new chunks under a fresh version,
// flip the manifest's active_version, then delete superseded chunks.
// A crash between steps leaves either the old or the new version
// active, never a mix. Ingestion of the same file is serialized within
// the process; across processes the grace window on deletion keeps an
// in-flight version safe until its own flip.
func (s *Store) ReplaceFile(ctx context.Context, manifest models.TranscriptFile, chunks []models.Chunk) error {
	lock := s.fileLock(manifest.CourseID, manifest.File)
	lock.Lock()
	defer lock.Unlock()

	version := uuid.NewString()
	now := time.Now().UTC()

	docs := make([]interface{}, 0, len(chunks))
	for i := range chunks {
		c := chunks[i]
		c.IngestVersion = version
		c.CreatedAt = now

		compressed, algorithm, err := utils.CompressText(c.Text)
		if err == nil && algorithm != utils.CompressionNone {
			c.CompressedText = compressed
			c.Compression = string(algorithm)
			c.Text = ""
		}
		docs = append(docs, c)
	}

	for start := 0; start < len(docs); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		if _, err := s.chunks.InsertMany(ctx, docs[start:end]); err != nil {
			// Abandon the partial version; it is never activated and
			// gets swept by compaction.
			return fmt.Errorf("%w: insert chunks: %v", ErrUnavailable, err)
		}
	}

	manifest.ActiveVersion = version
	manifest.ChunkCount = len(chunks)
	manifest.UpdatedAt = now

	filter := bson.M{"course_id": manifest.CourseID, "file": manifest.File}
	update := bson.M{"$set": bson.M{
		"section":        manifest.Section,
		"active_version": manifest.ActiveVersion,
		"chunk_count":    manifest.ChunkCount,
		"segment_count":  manifest.SegmentCount,
		"updated_at":     manifest.UpdatedAt,
	}}
	if _, err := s.files.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("%w: flip manifest: %v", ErrUnavailable, err)
	}

	if _, err := s.chunks.DeleteMany(ctx, bson.M{
		"course_id":      manifest.CourseID,
		"file":           manifest.File,
		"ingest_version": bson.M{"$ne": version},
		"created_at":     bson.M{"$lt": now.Add(-supersededGrace)},
	}); err != nil {
		// The flip already happened, so stale chunks are invisible to
		// readers. Compaction retries the delete.
		logger.Warn("failed to delete superseded chunks", "course_id", manifest.CourseID, "file", manifest.File, "error", err)
	}

	return nil
}

// Search scores every active chunk of the course against the query
// vector and returns at most k results with score >= minScore, best
// first. Ties break toward the earlier start time so answers cite the
// first occurrence in the lecture.
func (s *Store) Search(ctx context.Context, courseID, section string, query []float32, k int, minScore float64) ([]models.ScoredChunk, error) {
	manifests, err := s.ActiveFiles(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if len(manifests) == 0 {
		return nil, nil
	}

	active := make([]bson.M, 0, len(manifests))
	for _, m := range manifests {
		active = append(active, bson.M{"file": m.File, "ingest_version": m.ActiveVersion})
	}
	filter := bson.M{"course_id": courseID, "$or": active}
	if section != "" {
		filter["section"] = section
	}

	cursor, err := s.chunks.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer cursor.Close(ctx)

	mismatched := map[string]bool{}
	var scored []models.ScoredChunk
	for cursor.Next(ctx) {
		var c models.Chunk
		if err := cursor.Decode(&c); err != nil {
			return nil, fmt.Errorf("%w: decode chunk: %v", ErrUnavailable, err)
		}

		if c.EmbeddingModel != s.wantModel {
			mismatched[c.File] = true
			continue
		}

		score := Score(query, c.Embedding)
		if score < minScore {
			continue
		}
		if err := s.inflate(&c); err != nil {
			logger.Warn("failed to decompress chunk text", "chunk_id", c.ChunkID, "error", err)
			continue
		}
		scored = append(scored, models.ScoredChunk{Chunk: c, Score: score})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	for file := range mismatched {
		logger.Warn("excluding chunks embedded with stale model", "course_id", courseID, "file", file, "want_model", s.wantModel)
		if s.OnModelMismatch != nil {
			s.OnModelMismatch(courseID, file)
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.Start < scored[j].Chunk.Start
	})
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// ActiveFiles returns the ingestion manifests for a course.
func (s *Store) ActiveFiles(ctx context.Context, courseID string) ([]models.TranscriptFile, error) {
	cursor, err := s.files.Find(ctx, bson.M{"course_id": courseID})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer cursor.Close(ctx)

	var manifests []models.TranscriptFile
	if err := cursor.All(ctx, &manifests); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return manifests, nil
}

// FileChunks returns the active chunk set for one file in chunk order,
// with text inflated. Used by re-embedding.
func (s *Store) FileChunks(ctx context.Context, courseID, file string) ([]models.Chunk, error) {
	var manifest models.TranscriptFile
	err := s.files.FindOne(ctx, bson.M{"course_id": courseID, "file": file}).Decode(&manifest)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	cursor, err := s.chunks.Find(ctx,
		bson.M{"course_id": courseID, "file": file, "ingest_version": manifest.ActiveVersion},
		options.Find().SetSort(bson.D{{Key: "order", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer cursor.Close(ctx)

	var chunks []models.Chunk
	for cursor.Next(ctx) {
		var c models.Chunk
		if err := cursor.Decode(&c); err != nil {
			return nil, fmt.Errorf("%w: decode chunk: %v", ErrUnavailable, err)
		}
		if err := s.inflate(&c); err != nil {
			return nil, fmt.Errorf("%w: decompress chunk %s: %v", ErrUnavailable, c.ChunkID, err)
		}
		chunks = append(chunks, c)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return chunks, nil
}

// UpdateEmbeddings rewrites the embedding vectors of the active chunk
// set in place. Chunk identity and text are untouched, so this does not
// need a version flip.
func (s *Store) UpdateEmbeddings(ctx context.Context, chunks []models.Chunk, model string) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := make([]mongo.WriteModel, 0, len(chunks))
	for _, c := range chunks {
		batch = append(batch, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"chunk_id": c.ChunkID, "course_id": c.CourseID, "ingest_version": c.IngestVersion}).
			SetUpdate(bson.M{"$set": bson.M{"embedding": c.Embedding, "embedding_model": model}}))
	}
	if _, err := s.chunks.BulkWrite(ctx, batch, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// CompactSuperseded deletes chunks whose ingest version is no longer
// active for their file. Runs on a schedule; normal operation deletes
// superseded chunks inline, this sweeps leftovers from crashed or
// abandoned ingests. Versions younger than the grace window are spared
// because they may belong to an ingest that has not flipped yet.
func (s *Store) CompactSuperseded(ctx context.Context) (int64, error) {
	cursor, err := s.files.Find(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer cursor.Close(ctx)

	var manifests []models.TranscriptFile
	if err := cursor.All(ctx, &manifests); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	cutoff := time.Now().UTC().Add(-supersededGrace)
	var removed int64
	for _, m := range manifests {
		res, err := s.chunks.DeleteMany(ctx, bson.M{
			"course_id":      m.CourseID,
			"file":           m.File,
			"ingest_version": bson.M{"$ne": m.ActiveVersion},
			"created_at":     bson.M{"$lt": cutoff},
		})
		if err != nil {
			return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		removed += res.DeletedCount
	}
	return removed, nil
}

func (s *Store) inflate(c *models.Chunk) error {
	if len(c.CompressedText) == 0 {
		return nil
	}
	text, err := utils.DecompressText(c.CompressedText, utils.CompressionAlgorithm(c.Compression))
	if err != nil {
		return err
	}
	c.Text = text
	c.CompressedText = nil
	c.Compression = ""
	return nil
}
