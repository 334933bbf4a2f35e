// Package embedtest provides a test double for the embed.Embedder interface.
package embedtest

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/text2tracks/backend/internal/constants"
)

// Mock is a test double for embed.Embedder. Behavior can be injected via
// the function field; when it is nil the mock returns a deterministic
// vector derived from the file path.
type Mock struct {
	// EmbedFileFunc is called by EmbedFile if set.
	EmbedFileFunc func(ctx context.Context, path string) ([]float32, error)

	calls int
}

// NewMock creates a mock embedder with deterministic default behavior.
func NewMock() *Mock {
	return &Mock{}
}

// EmbedFile returns an injected result or a deterministic vector for path.
func (m *Mock) EmbedFile(ctx context.Context, path string) ([]float32, error) {
	m.calls++

	if m.EmbedFileFunc != nil {
		return m.EmbedFileFunc(ctx, path)
	}
	return DeterministicVector(path, constants.EmbeddingDim), nil
}

// Dimension returns the configured embedding dimension.
func (m *Mock) Dimension() int {
	return constants.EmbeddingDim
}

// CallCount returns how many times EmbedFile was called.
func (m *Mock) CallCount() int {
	return m.calls
}

// DeterministicVector derives a stable unit vector of length dim from seed,
// so the same input always embeds to the same vector.
func DeterministicVector(seed string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(seed))
	state := h.Sum32()

	vector := make([]float32, dim)
	var sumSquares float64
	for i := range vector {
		state = state*1664525 + 1013904223
		vector[i] = float32(state%2000)/1000.0 - 1.0
		sumSquares += float64(vector[i]) * float64(vector[i])
	}

	if norm := math.Sqrt(sumSquares); norm > 0 {
		for i := range vector {
			vector[i] = float32(float64(vector[i]) / norm)
		}
	}
	return vector
}
