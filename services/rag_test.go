package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"coursechat-backend/models"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = f.vec
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return len(f.vec) }
func (f *fakeEmbedder) Model() string  { return "fake-model" }

type fakeRetriever struct {
	results []models.ScoredChunk
	err     error
}

func (f *fakeRetriever) Search(ctx context.Context, courseID, section string, query []float32, k int, minScore float64) ([]models.ScoredChunk, error) {
	return f.results, f.err
}

type fakeComposer struct {
	answer string
	err    error
	calls  int
}

func (f *fakeComposer) GenerateAnswer(ctx context.Context, question string, contexts []string) (string, error) {
	f.calls++
	return f.answer, f.err
}

type fakeMessages struct {
	saved []models.Message
}

func (f *fakeMessages) Save(ctx context.Context, msg models.Message) error {
	f.saved = append(f.saved, msg)
	return nil
}

type fakeStats struct {
	samples  []models.AskSample
	sections []string
}

func (f *fakeStats) RecordAsk(ctx context.Context, sample models.AskSample, section string) error {
	f.samples = append(f.samples, sample)
	f.sections = append(f.sections, section)
	return nil
}

func (f *fakeStats) Overview(ctx context.Context, userID string) (models.StatsOverview, error) {
	return models.StatsOverview{}, nil
}

func (f *fakeStats) TopSections(ctx context.Context, limit int) ([]models.SectionStat, error) {
	return nil, nil
}

func (f *fakeStats) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return 0, nil
}

func scoredChunk(file, section, text string, start time.Duration, score float64) models.ScoredChunk {
	return models.ScoredChunk{
		Chunk: models.Chunk{
			File:    file,
			Section: section,
			Text:    text,
			Start:   start,
			End:     start + 10*time.Second,
		},
		Score: score,
	}
}

func newTestAskService(retriever Retriever, composer AnswerComposer, messages MessageStore, statsStore *fakeStats) *AskService {
	return NewAskService(
		&fakeEmbedder{vec: []float32{1, 0}},
		retriever,
		composer,
		messages,
		statsStore,
		AskOptions{TopK: 6, MinScore: 0.35, FallbackAnswer: "I could not find that in the course material."},
	)
}

func TestAskReferencesMatchRetrievedChunks(t *testing.T) {
	retrieved := []models.ScoredChunk{
		scoredChunk("intro.vtt", "Intro", "welcome", 0, 0.91),
		scoredChunk("rec.vtt", "Recursion", "base case", 30*time.Second, 0.72),
	}
	composer := &fakeComposer{answer: "Recursion needs a base case."}
	messages := &fakeMessages{}
	statsStore := &fakeStats{}
	svc := newTestAskService(&fakeRetriever{results: retrieved}, composer, messages, statsStore)

	req := models.AskRequest{Question: "What is recursion?", CourseID: "cs101", ConversationID: "conv-1"}
	answer, err := svc.Ask(context.Background(), req, "u1")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}

	if answer.Answer != "Recursion needs a base case." {
		t.Errorf("answer = %q", answer.Answer)
	}
	if len(answer.References) != len(retrieved) {
		t.Fatalf("got %d references for %d chunks", len(answer.References), len(retrieved))
	}
	if answer.References[0].File != "intro.vtt" || answer.References[0].Score != 0.91 {
		t.Errorf("references[0] = %+v", answer.References[0])
	}
	if answer.References[1].Start != "00:00:30.000" || answer.References[1].End != "00:00:40.000" {
		t.Errorf("references[1] span = %s-%s", answer.References[1].Start, answer.References[1].End)
	}

	if len(messages.saved) != 1 {
		t.Fatalf("saved %d messages, want 1", len(messages.saved))
	}
	msg := messages.saved[0]
	if msg.ConversationID != "conv-1" || msg.UserID != "u1" || msg.Question != req.Question {
		t.Errorf("saved message = %+v", msg)
	}

	if len(statsStore.samples) != 1 {
		t.Fatalf("recorded %d samples, want 1", len(statsStore.samples))
	}
	if statsStore.sections[0] != "Intro" {
		t.Errorf("credited section = %q, want top reference's section", statsStore.sections[0])
	}
}

func TestAskEmptyRetrievalFallsBack(t *testing.T) {
	composer := &fakeComposer{answer: "should not be called"}
	messages := &fakeMessages{}
	statsStore := &fakeStats{}
	svc := newTestAskService(&fakeRetriever{}, composer, messages, statsStore)

	req := models.AskRequest{Question: "Off-topic question", CourseID: "cs101", ConversationID: "conv-1"}
	answer, err := svc.Ask(context.Background(), req, "")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}

	if answer.Answer != "I could not find that in the course material." {
		t.Errorf("answer = %q", answer.Answer)
	}
	if answer.References == nil || len(answer.References) != 0 {
		t.Errorf("references = %v, want empty non-nil", answer.References)
	}
	if composer.calls != 0 {
		t.Errorf("composer called %d times on empty retrieval", composer.calls)
	}
	if len(statsStore.samples) != 1 {
		t.Errorf("fallback ask should still be counted, got %d samples", len(statsStore.samples))
	}
}

func TestAskEmbeddingFailure(t *testing.T) {
	wantErr := errors.New("embedding down")
	svc := NewAskService(
		&fakeEmbedder{err: wantErr},
		&fakeRetriever{},
		&fakeComposer{},
		&fakeMessages{},
		&fakeStats{},
		AskOptions{TopK: 6, MinScore: 0.35},
	)

	_, err := svc.Ask(context.Background(), models.AskRequest{Question: "q", CourseID: "cs101"}, "")
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestAskRetrievalFailureFailsAsk(t *testing.T) {
	wantErr := errors.New("index unavailable")
	messages := &fakeMessages{}
	statsStore := &fakeStats{}
	svc := newTestAskService(&fakeRetriever{err: wantErr}, &fakeComposer{}, messages, statsStore)

	req := models.AskRequest{Question: "q", CourseID: "cs101", ConversationID: "conv-1"}
	_, err := svc.Ask(context.Background(), req, "")
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if len(messages.saved) != 0 {
		t.Errorf("failed ask persisted a message")
	}
	if len(statsStore.samples) != 0 {
		t.Errorf("failed ask recorded a sample")
	}
}

func TestAskCompositionFailureFailsAsk(t *testing.T) {
	wantErr := errors.New("model overloaded")
	retrieved := []models.ScoredChunk{scoredChunk("intro.vtt", "Intro", "welcome", 0, 0.9)}
	messages := &fakeMessages{}
	svc := newTestAskService(&fakeRetriever{results: retrieved}, &fakeComposer{err: wantErr}, messages, &fakeStats{})

	req := models.AskRequest{Question: "q", CourseID: "cs101", ConversationID: "conv-1"}
	_, err := svc.Ask(context.Background(), req, "")
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if len(messages.saved) != 0 {
		t.Errorf("failed ask persisted a message")
	}
}

func TestAskWithoutConversationSkipsHistory(t *testing.T) {
	retrieved := []models.ScoredChunk{scoredChunk("intro.vtt", "Intro", "welcome", 0, 0.9)}
	messages := &fakeMessages{}
	svc := newTestAskService(&fakeRetriever{results: retrieved}, &fakeComposer{answer: "hi"}, messages, &fakeStats{})

	_, err := svc.Ask(context.Background(), models.AskRequest{Question: "q", CourseID: "cs101"}, "")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if len(messages.saved) != 0 {
		t.Errorf("message saved without a conversation id")
	}
}

func TestAskExplicitSectionCredited(t *testing.T) {
	retrieved := []models.ScoredChunk{scoredChunk("rec.vtt", "Recursion", "base case", 0, 0.8)}
	statsStore := &fakeStats{}
	svc := newTestAskService(&fakeRetriever{results: retrieved}, &fakeComposer{answer: "a"}, &fakeMessages{}, statsStore)

	req := models.AskRequest{Question: "q", CourseID: "cs101", Section: "Graphs"}
	if _, err := svc.Ask(context.Background(), req, ""); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if statsStore.sections[0] != "Graphs" {
		t.Errorf("credited %q, want the requested section", statsStore.sections[0])
	}
}
