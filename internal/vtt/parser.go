package vtt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"coursechat-backend/internal/logger"
	"coursechat-backend/models"
)

// ErrNoValidCues is returned when a file contains no parseable cue at all.
// Individual malformed cues are skipped, a file with nothing usable is fatal
// for that file (the batch continues).
var ErrNoValidCues = errors.New("no valid cues found")

// Heading marks a NOTE block that labels everything after it. Segments from
// index At onward belong to Text until the next heading.
type Heading struct {
	At   int
	Text string
}

// ParsedFile is the ingestor output for one WebVTT file: the ordered cue
// segments plus any heading markers used for section labeling.
type ParsedFile struct {
	File     string
	Segments []models.TranscriptSegment
	Headings []Heading
}

// Parse reads a WebVTT document. It tolerates a missing WEBVTT header,
// optional cue identifiers, cue settings after the timestamp line, and
// multi-line payloads. Malformed cues are skipped with a warning.
func Parse(r io.Reader, file string) (*ParsedFile, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	parsed := &ParsedFile{File: file}
	lineNo := 0
	skipped := 0

	var pending []string // buffered block lines
	flush := func() {
		if len(pending) == 0 {
			return
		}
		block := pending
		pending = nil

		// NOTE blocks carry heading text for section labeling.
		if strings.HasPrefix(block[0], "NOTE") {
			heading := strings.TrimSpace(strings.TrimPrefix(block[0], "NOTE"))
			if heading == "" && len(block) > 1 {
				heading = strings.TrimSpace(block[1])
			}
			if heading != "" {
				parsed.Headings = append(parsed.Headings, Heading{
					At:   len(parsed.Segments),
					Text: heading,
				})
			}
			return
		}
		if strings.HasPrefix(block[0], "WEBVTT") || strings.HasPrefix(block[0], "STYLE") || strings.HasPrefix(block[0], "REGION") {
			return
		}

		seg, err := parseCue(block)
		if err != nil {
			skipped++
			logger.Warn("Skipping malformed cue", "file", file, "line", lineNo, "error", err.Error())
			return
		}
		parsed.Segments = append(parsed.Segments, seg)
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		line = strings.TrimPrefix(line, "\uFEFF")

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		pending = append(pending, line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	if len(parsed.Segments) == 0 {
		return nil, fmt.Errorf("%s: %w", file, ErrNoValidCues)
	}
	if skipped > 0 {
		logger.Warn("Parsed file with skipped cues", "file", file, "cues", len(parsed.Segments), "skipped", skipped)
	}

	return parsed, nil
}

// parseCue turns one cue block into a segment. The block may start with an
// identifier line; the timestamp line is the anchor.
func parseCue(block []string) (models.TranscriptSegment, error) {
	tsIdx := -1
	for i, line := range block {
		if strings.Contains(line, "-->") {
			tsIdx = i
			break
		}
	}
	if tsIdx == -1 || tsIdx > 1 {
		return models.TranscriptSegment{}, errors.New("missing timestamp line")
	}

	parts := strings.SplitN(block[tsIdx], "-->", 2)
	if len(parts) != 2 {
		return models.TranscriptSegment{}, errors.New("malformed timestamp line")
	}

	start, err := ParseTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return models.TranscriptSegment{}, fmt.Errorf("bad start timestamp: %w", err)
	}
	// Cue settings (align:, position:, ...) may trail the end timestamp.
	endField := strings.Fields(strings.TrimSpace(parts[1]))
	if len(endField) == 0 {
		return models.TranscriptSegment{}, errors.New("missing end timestamp")
	}
	end, err := ParseTimestamp(endField[0])
	if err != nil {
		return models.TranscriptSegment{}, fmt.Errorf("bad end timestamp: %w", err)
	}
	if end <= start {
		return models.TranscriptSegment{}, errors.New("end not after start")
	}

	text := stripTags(strings.TrimSpace(strings.Join(block[tsIdx+1:], " ")))
	if text == "" {
		return models.TranscriptSegment{}, errors.New("empty cue payload")
	}

	return models.TranscriptSegment{Text: text, Start: start, End: end}, nil
}

// stripTags removes cue markup such as <v Speaker>, <c.class> and </v>,
// keeping only the spoken text.
func stripTags(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// ParseTimestamp parses HH:MM:SS.mmm or the short MM:SS.mmm form. A comma
// separator is accepted for tolerance with SRT-converted files.
func ParseTimestamp(s string) (time.Duration, error) {
	s = strings.ReplaceAll(s, ",", ".")
	fields := strings.Split(s, ":")

	var h, m int
	var sec float64
	var err error

	switch len(fields) {
	case 3:
		if h, err = strconv.Atoi(fields[0]); err != nil {
			return 0, fmt.Errorf("invalid hours %q", fields[0])
		}
		if m, err = strconv.Atoi(fields[1]); err != nil {
			return 0, fmt.Errorf("invalid minutes %q", fields[1])
		}
		if sec, err = strconv.ParseFloat(fields[2], 64); err != nil {
			return 0, fmt.Errorf("invalid seconds %q", fields[2])
		}
	case 2:
		if m, err = strconv.Atoi(fields[0]); err != nil {
			return 0, fmt.Errorf("invalid minutes %q", fields[0])
		}
		if sec, err = strconv.ParseFloat(fields[1], 64); err != nil {
			return 0, fmt.Errorf("invalid seconds %q", fields[1])
		}
	default:
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}

	if m > 59 || sec >= 60 || h < 0 || m < 0 || sec < 0 {
		return 0, fmt.Errorf("timestamp out of range %q", s)
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec*float64(time.Second)), nil
}
