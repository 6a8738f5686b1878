package ai

import (
	"context"
	"fmt"

	"merchant-docs-platform/internal/config"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"
)

const openAIMaxBatch = 100

// OpenAIEmbedder generates embeddings via the OpenAI API. The requested
// dimension is passed through so the index and the provider agree.
type OpenAIEmbedder struct {
	client  openai.Client
	model   string
	dim     int
	limiter *rate.Limiter
}

func NewOpenAIEmbedder(cfg *config.Config) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client:  openai.NewClient(option.WithAPIKey(cfg.OpenAIAPIKey)),
		model:   cfg.OpenAIEmbeddingsModel,
		dim:     cfg.VectorDimensions,
		limiter: rate.NewLimiter(rate.Limit(cfg.EmbeddingRateLimit), 1),
	}
}

func (o *OpenAIEmbedder) Name() string {
	return "openai/" + o.model
}

func (o *OpenAIEmbedder) Dimension() int {
	return o.dim
}

func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embeddings generated")
	}
	return vectors[0], nil
}

func (o *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts provided")
	}
	if len(texts) > openAIMaxBatch {
		return nil, fmt.Errorf("batch size %d exceeds maximum of %d", len(texts), openAIMaxBatch)
	}

	if err := o.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(o.model),
	}
	if len(texts) == 1 {
		params.Input = openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(texts[0]),
		}
	} else {
		params.Input = openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		}
	}
	if o.dim > 0 {
		params.Dimensions = openai.Int(int64(o.dim))
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	vectors := make([][]float32, 0, len(resp.Data))
	for _, data := range resp.Data {
		vector := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			vector[i] = float32(v)
		}
		vectors = append(vectors, vector)
	}

	return vectors, nil
}

func (o *OpenAIEmbedder) Close() error {
	return nil
}
