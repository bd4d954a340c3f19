package services

import (
	"strings"
	"testing"
	"time"

	"coursechat-backend/internal/vtt"
	"coursechat-backend/models"
)

func seg(start, end time.Duration, text string) models.TranscriptSegment {
	return models.TranscriptSegment{Text: text, Start: start, End: end}
}

func TestChunkTranscriptSingleChunk(t *testing.T) {
	// Two cues under section "Intro" collapse into a single chunk
	// spanning 0-10s.
	parsed := &vtt.ParsedFile{
		File: "intro.vtt",
		Segments: []models.TranscriptSegment{
			seg(0, 5*time.Second, "Welcome"),
			seg(5*time.Second, 10*time.Second, "to the course"),
		},
	}

	cs := NewChunkingService(150, 2*time.Minute)
	chunks := cs.ChunkTranscript(parsed, "cs101", "Intro")

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.Section != "Intro" {
		t.Errorf("section = %q, want Intro", c.Section)
	}
	if c.Start != 0 || c.End != 10*time.Second {
		t.Errorf("span = %v-%v, want 0s-10s", c.Start, c.End)
	}
	if c.Text != "Welcome to the course" {
		t.Errorf("text = %q", c.Text)
	}
	if c.CourseID != "cs101" || c.File != "intro.vtt" {
		t.Errorf("identity = %s/%s", c.CourseID, c.File)
	}
}

func TestChunkTranscriptWordBudget(t *testing.T) {
	long := strings.Repeat("word ", 90) // 90 words per segment
	parsed := &vtt.ParsedFile{
		File: "lec.vtt",
		Segments: []models.TranscriptSegment{
			seg(0, 10*time.Second, strings.TrimSpace(long)),
			seg(10*time.Second, 20*time.Second, strings.TrimSpace(long)),
			seg(20*time.Second, 30*time.Second, strings.TrimSpace(long)),
		},
	}

	cs := NewChunkingService(150, time.Hour)
	chunks := cs.ChunkTranscript(parsed, "cs101", "")

	// 90+90 > 150, so every segment lands in its own chunk.
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.WordCount != 90 {
			t.Errorf("chunk %d word count = %d, want 90", i, c.WordCount)
		}
		if c.Order != i {
			t.Errorf("chunk %d order = %d", i, c.Order)
		}
	}
}

func TestChunkTranscriptNeverSplitsSegments(t *testing.T) {
	// A single segment far over the word budget still becomes exactly one
	// chunk.
	huge := strings.TrimSpace(strings.Repeat("word ", 500))
	parsed := &vtt.ParsedFile{
		File:     "big.vtt",
		Segments: []models.TranscriptSegment{seg(0, time.Minute, huge)},
	}

	cs := NewChunkingService(150, 2*time.Minute)
	chunks := cs.ChunkTranscript(parsed, "cs101", "")

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].WordCount != 500 {
		t.Errorf("word count = %d", chunks[0].WordCount)
	}
}

func TestChunkTranscriptMaxSpan(t *testing.T) {
	parsed := &vtt.ParsedFile{
		File: "long.vtt",
		Segments: []models.TranscriptSegment{
			seg(0, 30*time.Second, "one"),
			seg(30*time.Second, 60*time.Second, "two"),
			seg(60*time.Second, 90*time.Second, "three"),
		},
	}

	// 60s max span: third segment would stretch the chunk to 90s.
	cs := NewChunkingService(1000, 60*time.Second)
	chunks := cs.ChunkTranscript(parsed, "cs101", "")

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].End != 60*time.Second {
		t.Errorf("chunk 0 end = %v", chunks[0].End)
	}
	if chunks[1].Start != 60*time.Second {
		t.Errorf("chunk 1 start = %v", chunks[1].Start)
	}
}

func TestChunkTimeSpansCoverSegments(t *testing.T) {
	parsed := &vtt.ParsedFile{
		File: "cover.vtt",
		Segments: []models.TranscriptSegment{
			seg(0, 4*time.Second, "a b c"),
			seg(4*time.Second, 9*time.Second, "d e f"),
			seg(9*time.Second, 15*time.Second, "g h"),
			seg(15*time.Second, 21*time.Second, "i j k l"),
		},
	}

	cs := NewChunkingService(5, time.Hour)
	chunks := cs.ChunkTranscript(parsed, "cs101", "")

	if len(chunks) == 0 {
		t.Fatal("no chunks")
	}
	if chunks[0].Start != parsed.Segments[0].Start {
		t.Errorf("first chunk start = %v", chunks[0].Start)
	}
	if chunks[len(chunks)-1].End != parsed.Segments[len(parsed.Segments)-1].End {
		t.Errorf("last chunk end = %v", chunks[len(chunks)-1].End)
	}
	for i, c := range chunks {
		if c.Start >= c.End {
			t.Errorf("chunk %d has start >= end (%v >= %v)", i, c.Start, c.End)
		}
		if i > 0 && chunks[i-1].End != c.Start {
			// Chunk boundaries land exactly on segment boundaries, so
			// consecutive chunks must touch.
			t.Errorf("gap between chunk %d end %v and chunk %d start %v", i-1, chunks[i-1].End, i, c.Start)
		}
	}
}

func TestChunkSectionFromHeadings(t *testing.T) {
	parsed := &vtt.ParsedFile{
		File: "lecture-03.vtt",
		Segments: []models.TranscriptSegment{
			seg(0, 5*time.Second, "before any heading"),
			seg(5*time.Second, 10*time.Second, "under the intro"),
			seg(10*time.Second, 15*time.Second, "under advanced"),
		},
		Headings: []vtt.Heading{
			{At: 1, Text: "Intro"},
			{At: 2, Text: "Advanced"},
		},
	}

	cs := NewChunkingService(150, time.Hour)
	chunks := cs.ChunkTranscript(parsed, "cs101", "")

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks (section changes force boundaries), got %d", len(chunks))
	}
	if chunks[0].Section != "lecture-03" {
		t.Errorf("chunk 0 section = %q, want filename fallback", chunks[0].Section)
	}
	if chunks[1].Section != "Intro" || chunks[2].Section != "Advanced" {
		t.Errorf("sections = %q, %q", chunks[1].Section, chunks[2].Section)
	}
}

func TestChunkDeterministic(t *testing.T) {
	parsed := &vtt.ParsedFile{
		File: "det.vtt",
		Segments: []models.TranscriptSegment{
			seg(0, 3*time.Second, "alpha beta gamma"),
			seg(3*time.Second, 6*time.Second, "delta epsilon"),
			seg(6*time.Second, 9*time.Second, "zeta eta theta iota"),
		},
	}

	cs := NewChunkingService(6, time.Hour)
	a := cs.ChunkTranscript(parsed, "cs101", "")
	b := cs.ChunkTranscript(parsed, "cs101", "")

	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ChunkID != b[i].ChunkID || a[i].Text != b[i].Text || a[i].Start != b[i].Start || a[i].End != b[i].End {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestSectionFromFilename(t *testing.T) {
	if got := SectionFromFilename("lectures/week-02.vtt"); got != "week-02" {
		t.Errorf("got %q", got)
	}
	if got := SectionFromFilename("intro.vtt"); got != "intro" {
		t.Errorf("got %q", got)
	}
}
