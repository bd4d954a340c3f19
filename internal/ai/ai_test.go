package ai

import (
	"context"
	"errors"
	"math"
	"os"
	"strings"
	"testing"
	"time"
)

func TestL2Normalize(t *testing.T) {
	v := []float32{3, 4}
	l2normalize(v)

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if math.Abs(norm-1) > 1e-6 {
		t.Errorf("norm after normalize = %f, want 1", norm)
	}
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("normalized = %v, want [0.6 0.8]", v)
	}

	zero := []float32{0, 0, 0}
	l2normalize(zero)
	for _, x := range zero {
		if x != 0 {
			t.Errorf("zero vector changed: %v", zero)
		}
	}
}

func TestWithRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestWithRetryGivesUp(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), func() error {
		calls++
		return errors.New("persistent")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != embedMaxRetries+1 {
		t.Errorf("calls = %d, want %d", calls, embedMaxRetries+1)
	}
}

func TestWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := withRetry(ctx, func() error { return errors.New("fail") })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestBuildGroundedPrompt(t *testing.T) {
	prompt := buildGroundedPrompt("What is recursion?", []string{"first passage", "second passage"})

	if !strings.Contains(prompt, "Passage 1:\nfirst passage") {
		t.Errorf("missing numbered passage 1:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Passage 2:\nsecond passage") {
		t.Errorf("missing numbered passage 2:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Question: What is recursion?") {
		t.Errorf("missing question:\n%s", prompt)
	}
	if !strings.Contains(prompt, "ONLY the numbered transcript passages") {
		t.Errorf("missing grounding instruction:\n%s", prompt)
	}
}

func TestTokenCounterLimits(t *testing.T) {
	tc := &TokenCounter{limits: RateLimits{RPM: 2, TPM: 100, RPD: 10}}

	if !tc.CanConsume(40, 1) {
		t.Fatal("first request should be allowed")
	}
	tc.RecordUsage(40, 1)

	if !tc.CanConsume(40, 1) {
		t.Fatal("second request should be allowed")
	}
	tc.RecordUsage(40, 1)

	if tc.CanConsume(10, 1) {
		t.Error("third request in the same minute should exceed RPM")
	}

	// Force the minute window to expire; the day window still counts.
	tc.lastMinuteReset = time.Now().Add(-2 * time.Minute)
	if !tc.CanConsume(10, 1) {
		t.Error("request after minute reset should be allowed")
	}
}

func TestGetRateLimits(t *testing.T) {
	if got := getRateLimits("free"); got.RPM != 10 {
		t.Errorf("free RPM = %d", got.RPM)
	}
	if got := getRateLimits("tier1"); got.RPM != 1000 {
		t.Errorf("tier1 RPM = %d", got.RPM)
	}
	if got := getRateLimits("unknown"); got.RPM != 10 {
		t.Errorf("unknown tier should fall back to free, RPM = %d", got.RPM)
	}
}

func TestGeminiEmbedderLive(t *testing.T) {
	if os.Getenv("GEMINI_API_KEY") == "" {
		t.Skip("GEMINI_API_KEY not set")
	}
	ctx := context.Background()
	emb, err := NewGeminiEmbedder(ctx, os.Getenv("GEMINI_API_KEY"), "text-embedding-004")
	if err != nil {
		t.Fatalf("new embedder: %v", err)
	}
	defer emb.Close()

	vec, err := emb.Embed(ctx, "hello world")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) == 0 {
		t.Fatal("empty embedding")
	}
}
