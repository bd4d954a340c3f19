package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"coursechat-backend/internal/config"
	"coursechat-backend/internal/logger"

	genai "github.com/google/generative-ai-go/genai"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/api/option"
)

// ErrEmbedding wraps any provider failure so callers can map it to a
// stable error code without inspecting provider-specific errors.
var ErrEmbedding = errors.New("embedding failed")

const (
	embedMaxRetries   = 2
	embedRetryBackoff = 250 * time.Millisecond
)

// Embedder produces L2-normalized embedding vectors for transcript text
// and questions. Vectors from the same Embedder are always the same
// dimension, so cosine scoring stays well defined across a course.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
}

// NewEmbedder builds the provider configured by EMBEDDINGS_PROVIDER.
// Default is Google Generative AI (text-embedding-004).
func NewEmbedder(ctx context.Context, cfg *config.Config) (Embedder, error) {
	switch cfg.EmbeddingsProvider {
	case "google", "":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
		}
		emb, err := NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.GoogleEmbeddingsModel)
		if err != nil {
			return nil, err
		}
		emb.timeout = cfg.EmbedTimeout
		return emb, nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("missing OPENAI_API_KEY for embeddings")
		}
		emb := NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIEmbeddingsModel)
		emb.timeout = cfg.EmbedTimeout
		return emb, nil
	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}
}

// GeminiEmbedder embeds text via the Google Generative AI SDK. The
// client is created once and reused across calls.
type GeminiEmbedder struct {
	client  *genai.Client
	model   string
	dim     int
	timeout time.Duration
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiEmbedder{
		client: client,
		model:  model,
		dim:    768, // text-embedding-004
	}, nil
}

func (ge *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrEmbedding)
	}
	ctx, cancel := withTimeout(ctx, ge.timeout)
	defer cancel()

	var vec []float32
	err := withRetry(ctx, func() error {
		resp, err := ge.client.EmbeddingModel(ge.model).EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return err
		}
		if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return errors.New("no embedding returned")
		}
		vec = resp.Embedding.Values
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	l2normalize(vec)
	return vec, nil
}

func (ge *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := withTimeout(ctx, ge.timeout)
	defer cancel()

	var vecs [][]float32
	err := withRetry(ctx, func() error {
		batch := ge.client.EmbeddingModel(ge.model).NewBatch()
		for _, text := range texts {
			batch.AddContent(genai.Text(text))
		}
		resp, err := ge.client.EmbeddingModel(ge.model).BatchEmbedContents(ctx, batch)
		if err != nil {
			return err
		}
		if len(resp.Embeddings) != len(texts) {
			return fmt.Errorf("got %d embeddings for %d texts", len(resp.Embeddings), len(texts))
		}
		vecs = make([][]float32, len(resp.Embeddings))
		for i, e := range resp.Embeddings {
			if e == nil || len(e.Values) == 0 {
				return fmt.Errorf("empty embedding at index %d", i)
			}
			vecs[i] = e.Values
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	for _, v := range vecs {
		l2normalize(v)
	}
	return vecs, nil
}

func (ge *GeminiEmbedder) Dimension() int { return ge.dim }

func (ge *GeminiEmbedder) Model() string { return "google-" + ge.model }

func (ge *GeminiEmbedder) Close() error { return ge.client.Close() }

// OpenAIEmbedder embeds text via the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client  *openai.Client
	model   string
	dim     int
	timeout time.Duration
}

func NewOpenAIEmbedder(apiKey, model string) *OpenAIEmbedder {
	dim := 1536 // text-embedding-3-small
	if model == "text-embedding-3-large" {
		dim = 3072
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  model,
		dim:    dim,
	}
}

func (oe *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := oe.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (oe *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("%w: empty text", ErrEmbedding)
		}
	}
	ctx, cancel := withTimeout(ctx, oe.timeout)
	defer cancel()

	var vecs [][]float32
	err := withRetry(ctx, func() error {
		resp, err := oe.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(oe.model),
			Input: texts,
		})
		if err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("got %d embeddings for %d texts", len(resp.Data), len(texts))
		}
		vecs = make([][]float32, len(resp.Data))
		for i, d := range resp.Data {
			vecs[i] = d.Embedding
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	for _, v := range vecs {
		l2normalize(v)
	}
	return vecs, nil
}

func (oe *OpenAIEmbedder) Dimension() int { return oe.dim }

func (oe *OpenAIEmbedder) Model() string { return "openai-" + oe.model }

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// withRetry runs fn up to embedMaxRetries+1 times with exponential
// backoff. Context cancellation stops retries immediately.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || attempt >= embedMaxRetries {
			return err
		}
		logger.Warn("embedding attempt failed, retrying", "attempt", attempt+1, "error", err)

		backoff := embedRetryBackoff * time.Duration(1<<attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// l2normalize scales v to unit length in place. Normalized vectors make
// cosine similarity a plain dot product.
func l2normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
