package models

import (
	"fmt"
	"time"
)

// TranscriptSegment is a single parsed WebVTT cue. Segments are immutable
// once parsed; the chunker only ever groups them.
type TranscriptSegment struct {
	Text  string        `json:"text"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// TranscriptFile is the per-file ingestion manifest. ActiveVersion points at
// the chunk set readers are allowed to see; flipping it is what makes
// re-ingestion atomic.
type TranscriptFile struct {
	CourseID      string    `bson:"course_id" json:"course_id"`
	File          string    `bson:"file" json:"file"`
	Section       string    `bson:"section" json:"section"`
	ActiveVersion string    `bson:"active_version" json:"active_version"`
	ChunkCount    int       `bson:"chunk_count" json:"chunk_count"`
	SegmentCount  int       `bson:"segment_count" json:"segment_count"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updated_at"`
}

// FormatTimestamp renders a duration as HH:MM:SS.mmm, the WebVTT form the
// front end displays verbatim in citations.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	ms := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
