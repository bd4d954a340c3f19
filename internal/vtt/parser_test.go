package vtt

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"00:00:05.000", 5 * time.Second, false},
		{"00:03:40.080", 3*time.Minute + 40*time.Second + 80*time.Millisecond, false},
		{"01:02:03.500", time.Hour + 2*time.Minute + 3*time.Second + 500*time.Millisecond, false},
		{"02:30.250", 2*time.Minute + 30*time.Second + 250*time.Millisecond, false},
		{"00:00:01,830", time.Second + 830*time.Millisecond, false}, // SRT comma form
		{"garbage", 0, true},
		{"00:99:00.000", 0, true},
		{"", 0, true},
	}

	for _, tc := range cases {
		got, err := ParseTimestamp(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseTimestamp(%q): expected error, got %v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimestamp(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseBasicFile(t *testing.T) {
	input := `WEBVTT

1
00:00:00.000 --> 00:00:05.000
Welcome

2
00:00:05.000 --> 00:00:10.000
to the course
`
	parsed, err := Parse(strings.NewReader(input), "intro.vtt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parsed.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(parsed.Segments))
	}
	if parsed.Segments[0].Text != "Welcome" {
		t.Errorf("segment 0 text = %q", parsed.Segments[0].Text)
	}
	if parsed.Segments[0].Start != 0 || parsed.Segments[0].End != 5*time.Second {
		t.Errorf("segment 0 times = %v-%v", parsed.Segments[0].Start, parsed.Segments[0].End)
	}
	if parsed.Segments[1].End != 10*time.Second {
		t.Errorf("segment 1 end = %v", parsed.Segments[1].End)
	}
}

func TestParseMultilinePayloadAndSettings(t *testing.T) {
	input := `WEBVTT

00:00:00.000 --> 00:00:04.000 align:start position:10%
As I'm sure you're all
aware, there's going
`
	parsed, err := Parse(strings.NewReader(input), "lec.vtt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parsed.Segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(parsed.Segments))
	}
	want := "As I'm sure you're all aware, there's going"
	if parsed.Segments[0].Text != want {
		t.Errorf("text = %q, want %q", parsed.Segments[0].Text, want)
	}
}

func TestParseSkipsMalformedCues(t *testing.T) {
	input := `WEBVTT

00:00:00.000 --> 00:00:02.000
Good cue

not a timestamp --> also bad
Bad cue

00:00:08.000 --> 00:00:04.000
Goes backwards

00:00:10.000 --> 00:00:12.000
Another good cue
`
	parsed, err := Parse(strings.NewReader(input), "mixed.vtt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parsed.Segments) != 2 {
		t.Fatalf("expected 2 valid segments, got %d", len(parsed.Segments))
	}
}

func TestParseNoValidCues(t *testing.T) {
	input := `WEBVTT

this file has
no timestamps at all
`
	_, err := Parse(strings.NewReader(input), "broken.vtt")
	if !errors.Is(err, ErrNoValidCues) {
		t.Fatalf("expected ErrNoValidCues, got %v", err)
	}
}

func TestParseHeadings(t *testing.T) {
	input := `WEBVTT

NOTE Introduction

00:00:00.000 --> 00:00:05.000
Welcome

NOTE
Advanced Topics

00:00:05.000 --> 00:00:10.000
Deeper material
`
	parsed, err := Parse(strings.NewReader(input), "course.vtt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parsed.Headings) != 2 {
		t.Fatalf("expected 2 headings, got %d", len(parsed.Headings))
	}
	if parsed.Headings[0].Text != "Introduction" || parsed.Headings[0].At != 0 {
		t.Errorf("heading 0 = %+v", parsed.Headings[0])
	}
	if parsed.Headings[1].Text != "Advanced Topics" || parsed.Headings[1].At != 1 {
		t.Errorf("heading 1 = %+v", parsed.Headings[1])
	}
}

func TestParseDeterministic(t *testing.T) {
	input := `WEBVTT

00:00:00.000 --> 00:00:05.000
Welcome

00:00:05.000 --> 00:00:10.000
to the course
`
	a, err := Parse(strings.NewReader(input), "intro.vtt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	b, err := Parse(strings.NewReader(input), "intro.vtt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(a.Segments) != len(b.Segments) {
		t.Fatalf("non-deterministic segment count")
	}
	for i := range a.Segments {
		if a.Segments[i] != b.Segments[i] {
			t.Errorf("segment %d differs between parses", i)
		}
	}
}

func TestParseStripsCueMarkup(t *testing.T) {
	input := `WEBVTT

00:00:00.000 --> 00:00:04.000
<v Professor>Today we cover <c.term>binary search trees</c>.</v>

00:00:04.000 --> 00:00:08.000
<v.loud Student>Will this be on the exam?
`
	parsed, err := Parse(strings.NewReader(input), "lecture.vtt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parsed.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(parsed.Segments))
	}
	if got := parsed.Segments[0].Text; got != "Today we cover binary search trees." {
		t.Errorf("segment 0 text = %q", got)
	}
	if got := parsed.Segments[1].Text; got != "Will this be on the exam?" {
		t.Errorf("segment 1 text = %q", got)
	}
}

func TestParseByteOrderMark(t *testing.T) {
	input := "\ufeff" + `WEBVTT

00:00:00.000 --> 00:00:05.000
Welcome to the course
`
	parsed, err := Parse(strings.NewReader(input), "intro.vtt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parsed.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(parsed.Segments))
	}
	if parsed.Segments[0].Text != "Welcome to the course" {
		t.Errorf("text = %q", parsed.Segments[0].Text)
	}
}
