package ai

import (
	"context"
	"strings"
)

// HashEmbedder is a deterministic, offline embedder. It produces stable
// vectors from character codes so local development and tests can run the
// full pipeline without a provider key. The vectors carry no real semantic
// signal; relevance falls back to the keyword paths.
type HashEmbedder struct {
	dim int
}

func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 384
	}
	return &HashEmbedder{dim: dim}
}

func (h *HashEmbedder) Name() string {
	return "hash"
}

func (h *HashEmbedder) Dimension() int {
	return h.dim
}

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	words := strings.Fields(strings.ToLower(text))
	vector := make([]float32, h.dim)
	if len(words) == 0 {
		return vector, nil
	}

	for i := range vector {
		word := words[i%len(words)]
		vector[i] = float32(word[0]) / 255.0
	}
	return vector, nil
}

func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := h.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (h *HashEmbedder) Close() error {
	return nil
}
