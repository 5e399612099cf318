package openai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/merrymeeple/meeple-rag/internal/core/library"
)

func TestNewEmbedder_Defaults(t *testing.T) {
	embedder := NewEmbedder("dummy-key")
	assert.Equal(t, "text-embedding-3-small", embedder.ModelName())
	assert.Equal(t, 1536, embedder.Dimension())
	assert.Equal(t, 100, embedder.MaxBatchSize())
}

func TestNewEmbedderOptionsOverrideDefaults(t *testing.T) {
	embedder := NewEmbedder("dummy-key",
		WithEmbeddingModel("custom-model"),
		WithEmbeddingDimension(42),
	)

	assert.Equal(t, "custom-model", embedder.ModelName())
	assert.Equal(t, 42, embedder.Dimension())
}

func TestEmbeddingServiceError_Unwrap(t *testing.T) {
	cause := errors.New("rate limited")
	err := &library.EmbeddingServiceError{Batch: 3, Err: cause}

	assert.Contains(t, err.Error(), "batch 3")
	assert.True(t, errors.Is(err, cause))

	var target *library.EmbeddingServiceError
	assert.True(t, errors.As(error(err), &target))
	assert.Equal(t, 3, target.Batch)
}
