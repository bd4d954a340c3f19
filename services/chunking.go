package services

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"coursechat-backend/internal/vtt"
	"coursechat-backend/models"
)

// ChunkingService groups transcript segments into retrieval chunks. A chunk
// closes when adding the next segment would blow the word budget, or when
// its time span would exceed the max span, whichever comes first. Segments
// are never split, and the same input always yields the same boundaries,
// so re-ingestion is idempotent.
type ChunkingService struct {
	wordBudget int
	maxSpan    time.Duration
}

// NewChunkingService creates a chunker with the configured bounds.
func NewChunkingService(wordBudget int, maxSpan time.Duration) *ChunkingService {
	if wordBudget <= 0 {
		wordBudget = 150
	}
	if maxSpan <= 0 {
		maxSpan = 2 * time.Minute
	}
	return &ChunkingService{
		wordBudget: wordBudget,
		maxSpan:    maxSpan,
	}
}

// ChunkTranscript converts a parsed file into chunks for (courseID, file).
// Section precedence: explicit request section, then the heading cue in
// effect, then the filename stem.
func (cs *ChunkingService) ChunkTranscript(parsed *vtt.ParsedFile, courseID, requestSection string) []models.Chunk {
	if parsed == nil || len(parsed.Segments) == 0 {
		return []models.Chunk{}
	}

	sections := cs.sectionLabels(parsed, requestSection)

	var chunks []models.Chunk
	var cur []models.TranscriptSegment
	var curWords int
	curSection := sections[0]

	emit := func() {
		if len(cur) == 0 {
			return
		}
		chunks = append(chunks, cs.buildChunk(cur, curWords, parsed.File, courseID, curSection, len(chunks)))
		cur = nil
		curWords = 0
	}

	for i, seg := range parsed.Segments {
		words := len(strings.Fields(seg.Text))
		section := sections[i]

		if len(cur) > 0 {
			exceedsBudget := curWords+words > cs.wordBudget
			exceedsSpan := seg.End-cur[0].Start > cs.maxSpan
			if exceedsBudget || exceedsSpan || section != curSection {
				emit()
			}
		}
		if len(cur) == 0 {
			curSection = section
		}
		cur = append(cur, seg)
		curWords += words
	}
	emit()

	return chunks
}

func (cs *ChunkingService) buildChunk(segs []models.TranscriptSegment, words int, file, courseID, section string, order int) models.Chunk {
	texts := make([]string, len(segs))
	for i, s := range segs {
		texts[i] = s.Text
	}

	return models.Chunk{
		ChunkID:   fmt.Sprintf("%s#%d", file, order),
		CourseID:  courseID,
		File:      file,
		Section:   section,
		Order:     order,
		Start:     segs[0].Start,
		End:       segs[len(segs)-1].End,
		Text:      strings.Join(texts, " "),
		WordCount: words,
		CreatedAt: time.Now().UTC(),
	}
}

// sectionLabels resolves the section for every segment index up front so
// the grouping loop stays simple.
func (cs *ChunkingService) sectionLabels(parsed *vtt.ParsedFile, requestSection string) []string {
	labels := make([]string, len(parsed.Segments))

	if requestSection != "" {
		for i := range labels {
			labels[i] = requestSection
		}
		return labels
	}

	fallback := SectionFromFilename(parsed.File)
	current := fallback
	next := 0
	for i := range parsed.Segments {
		for next < len(parsed.Headings) && parsed.Headings[next].At <= i {
			current = parsed.Headings[next].Text
			next++
		}
		labels[i] = current
	}
	return labels
}

// SectionFromFilename derives a section label from a transcript filename
// ("lecture-03.vtt" → "lecture-03").
func SectionFromFilename(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
