package ai

import (
	"context"
	"fmt"

	"merchant-docs-platform/internal/config"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// Embedder converts text into vectors. Implementations wrap a concrete
// provider SDK; callers depend only on this interface so the provider can
// be swapped per environment.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Close() error
}

// NewEmbedder builds the configured provider. Default is Google Generative
// AI (text-embedding-004). "hash" is a deterministic offline embedder used
// when no API key is available.
func NewEmbedder(ctx context.Context, cfg *config.Config) (Embedder, error) {
	switch cfg.EmbeddingsProvider {
	case "google", "":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
		}
		return NewGoogleEmbedder(ctx, cfg)

	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("missing OPENAI_API_KEY for embeddings")
		}
		return NewOpenAIEmbedder(cfg), nil

	case "hash":
		return NewHashEmbedder(cfg.VectorDimensions), nil

	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}
}

// GoogleEmbedder wraps the genai SDK with a shared client and a rate
// limiter so batch processing does not trip provider quotas.
type GoogleEmbedder struct {
	client  *genai.Client
	model   string
	dim     int
	limiter *rate.Limiter
}

func NewGoogleEmbedder(ctx context.Context, cfg *config.Config) (*GoogleEmbedder, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GoogleEmbedder{
		client:  client,
		model:   cfg.GoogleEmbeddingsModel,
		dim:     cfg.VectorDimensions,
		limiter: rate.NewLimiter(rate.Limit(cfg.EmbeddingRateLimit), 1),
	}, nil
}

func (g *GoogleEmbedder) Name() string {
	return "google/" + g.model
}

func (g *GoogleEmbedder) Dimension() int {
	return g.dim
}

func (g *GoogleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	model := g.client.EmbeddingModel(g.model)
	resp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("no embedding returned")
	}

	return resp.Embedding.Values, nil
}

func (g *GoogleEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts provided")
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	model := g.client.EmbeddingModel(g.model)
	batch := model.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	resp, err := model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func (g *GoogleEmbedder) Close() error {
	return g.client.Close()
}
