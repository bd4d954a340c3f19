package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Chunk is the unit of retrieval: a contiguous span of transcript text with
// its embedding and provenance. Chunks belong to exactly one (course_id,
// file) and are never mutated after creation; re-ingestion writes a fresh
// chunk set under a new ingest_version and flips the file manifest.
type Chunk struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	ChunkID        string             `bson:"chunk_id" json:"chunk_id"`
	CourseID       string             `bson:"course_id" json:"course_id"`
	File           string             `bson:"file" json:"file"`
	Section        string             `bson:"section" json:"section"`
	Order          int                `bson:"order" json:"order"`
	Start          time.Duration      `bson:"start_ns" json:"start"`
	End            time.Duration      `bson:"end_ns" json:"end"`
	Text           string             `bson:"text,omitempty" json:"text"`
	CompressedText []byte             `bson:"compressed_text,omitempty" json:"-"`
	Compression    string             `bson:"compression,omitempty" json:"-"`
	WordCount      int                `bson:"word_count" json:"word_count"`
	Embedding      []float32          `bson:"embedding" json:"-"`
	EmbeddingModel string             `bson:"embedding_model" json:"embedding_model"`
	IngestVersion  string             `bson:"ingest_version" json:"-"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

// ScoredChunk pairs a chunk with its similarity score for one query.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}
