package faq

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Embedder turns text into a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// OpenAIEmbedder embeds text through the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder creates an embedder using the given API key.
func NewOpenAIEmbedder(apiKey string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  openai.EmbeddingModelTextEmbedding3Small,
	}, nil
}

// Embed returns the embedding vector for one text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds several texts in one API call.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: e.model,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response carried %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	vectors := make([][]float64, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// DefaultMockDimension is the vector size produced by MockEmbedder.
const DefaultMockDimension = 256

// MockEmbedder produces deterministic unit vectors from a hash of the text.
// Identical texts always embed identically, so retrieval behavior is testable
// without any API calls.
type MockEmbedder struct {
	Dimension int
}

// Embed hashes the text into a normalized vector.
func (m MockEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	dim := m.Dimension
	if dim <= 0 {
		dim = DefaultMockDimension
	}
	digest := sha256.Sum256([]byte(text))
	extended := digest[:]
	for len(extended) < dim*4 {
		next := sha256.Sum256(extended)
		extended = append(extended, next[:]...)
	}
	values := make([]float64, dim)
	var magnitude float64
	for i := 0; i < dim; i++ {
		u := binary.LittleEndian.Uint32(extended[i*4 : i*4+4])
		values[i] = float64(u)/float64(math.MaxUint32) - 0.5
		magnitude += values[i] * values[i]
	}
	magnitude = math.Sqrt(magnitude)
	if magnitude > 0 {
		for i := range values {
			values[i] /= magnitude
		}
	}
	return values, nil
}

// EmbedBatch embeds each text independently.
func (m MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}
