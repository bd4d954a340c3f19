package services

import (
	"context"
	"time"

	"coursechat-backend/internal/ai"
	"coursechat-backend/internal/logger"
	"coursechat-backend/internal/stats"
	"coursechat-backend/models"

	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Retriever finds the best-matching chunks for a query vector.
type Retriever interface {
	Search(ctx context.Context, courseID, section string, query []float32, k int, minScore float64) ([]models.ScoredChunk, error)
}

// AnswerComposer turns a question plus retrieved passages into an answer.
type AnswerComposer interface {
	GenerateAnswer(ctx context.Context, question string, contexts []string) (string, error)
}

// MessageStore persists finished conversation turns.
type MessageStore interface {
	Save(ctx context.Context, msg models.Message) error
}

// AskOptions bound retrieval for one service instance.
type AskOptions struct {
	TopK           int
	MinScore       float64
	FallbackAnswer string
}

// AskService answers questions over ingested transcripts. Each ask
// moves through embedding, retrieval and composition; a failure in any
// stage fails the whole ask and persists nothing.
type AskService struct {
	embedder ai.Embedder
	retrieve Retriever
	composer AnswerComposer
	messages MessageStore
	stats    stats.Store
	cache    *AnswerCache
	opts     AskOptions
}

func NewAskService(embedder ai.Embedder, retriever Retriever, composer AnswerComposer, messages MessageStore, statsStore stats.Store, opts AskOptions) *AskService {
	return &AskService{
		embedder: embedder,
		retrieve: retriever,
		composer: composer,
		messages: messages,
		stats:    statsStore,
		opts:     opts,
	}
}

// SetCache enables the answer cache. Optional; without it every ask
// runs the full pipeline.
func (as *AskService) SetCache(cache *AnswerCache) {
	as.cache = cache
}

// Ask runs the full pipeline for one question. The returned references
// correspond exactly to the retrieved chunks the answer was composed
// from; an ask that retrieves nothing gets the fallback answer with an
// empty reference list.
func (as *AskService) Ask(ctx context.Context, req models.AskRequest, userID string) (*models.Answer, error) {
	tracer := otel.Tracer("ask-service")
	ctx, span := tracer.Start(ctx, "ask")
	defer span.End()

	started := time.Now()
	state := models.AskStateReceived
	fail := func(next string, err error) (*models.Answer, error) {
		logger.Error("ask failed", "state", next, "error", err)
		span.SetAttributes(attribute.String("ask.state", models.AskStateFailed))
		return nil, err
	}
	advance := func(next string) {
		logger.Debug("ask state", "from", state, "to", next)
		state = next
	}

	if as.cache != nil {
		if cached, ok := as.cache.Get(ctx, req.CourseID, req.Section, req.Question); ok {
			span.SetAttributes(attribute.Bool("ask.cache_hit", true))
			cached.LatencyMs = time.Since(started).Milliseconds()
			as.record(ctx, req, userID, *cached, time.Since(started))
			return cached, nil
		}
	}

	advance(models.AskStateEmbedding)
	queryVec, err := as.embedder.Embed(ctx, req.Question)
	if err != nil {
		return fail(state, err)
	}

	advance(models.AskStateRetrieving)
	retrieved, err := as.retrieve.Search(ctx, req.CourseID, req.Section, queryVec, as.opts.TopK, as.opts.MinScore)
	if err != nil {
		return fail(state, err)
	}
	span.SetAttributes(attribute.Int("ask.retrieved", len(retrieved)))

	var answer models.Answer
	if len(retrieved) == 0 {
		// Nothing relevant in the index. Answer honestly instead of
		// letting the model improvise without grounding.
		answer = models.Answer{Answer: as.opts.FallbackAnswer, References: []models.Reference{}}
	} else {
		advance(models.AskStateComposing)
		contexts := make([]string, len(retrieved))
		for i, sc := range retrieved {
			contexts[i] = sc.Chunk.Text
		}
		text, err := as.composer.GenerateAnswer(ctx, req.Question, contexts)
		if err != nil {
			return fail(state, err)
		}

		refs := make([]models.Reference, len(retrieved))
		for i, sc := range retrieved {
			refs[i] = models.ReferenceFromChunk(sc)
		}
		answer = models.Answer{Answer: text, References: refs}
	}

	advance(models.AskStateDone)
	answer.LatencyMs = time.Since(started).Milliseconds()
	span.SetAttributes(attribute.String("ask.state", state), attribute.Int64("ask.latency_ms", answer.LatencyMs))

	if as.cache != nil && len(answer.References) > 0 {
		as.cache.Set(ctx, req.CourseID, req.Section, req.Question, &answer)
	}
	as.record(ctx, req, userID, answer, time.Since(started))
	return &answer, nil
}

// record persists the turn and the stats sample. Both are best effort:
// the user already has their answer, so failures only log.
func (as *AskService) record(ctx context.Context, req models.AskRequest, userID string, answer models.Answer, latency time.Duration) {
	if as.messages != nil && req.ConversationID != "" {
		msg := models.Message{
			ConversationID: req.ConversationID,
			UserID:         userID,
			CourseID:       req.CourseID,
			Question:       req.Question,
			Answer:         answer.Answer,
			References:     answer.References,
			LatencyMs:      answer.LatencyMs,
			Timestamp:      time.Now().UTC(),
		}
		if err := as.messages.Save(ctx, msg); err != nil {
			logger.Error("failed to save message", "conversation_id", req.ConversationID, "error", err)
		}
	}

	if as.stats == nil {
		return
	}
	section := req.Section
	if section == "" && len(answer.References) > 0 {
		section = answer.References[0].Section
	}
	sample := models.AskSample{
		UserID:    userID,
		CourseID:  req.CourseID,
		Latency:   latency,
		Timestamp: time.Now().UTC(),
	}
	if err := as.stats.RecordAsk(ctx, sample, section); err != nil {
		logger.Error("failed to record ask sample", "course_id", req.CourseID, "error", err)
	}
}

// mongoMessages is the MessageStore backed by the messages collection.
type mongoMessages struct {
	col *mongo.Collection
}

func NewMongoMessageStore(db *mongo.Database) MessageStore {
	return &mongoMessages{col: db.Collection("messages")}
}

func (m *mongoMessages) Save(ctx context.Context, msg models.Message) error {
	_, err := m.col.InsertOne(ctx, msg)
	return err
}
