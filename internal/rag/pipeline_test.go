package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/promptcompliance/internal/embedding"
	"github.com/nikhilbhutani/promptcompliance/internal/llm"
	"github.com/nikhilbhutani/promptcompliance/internal/models"
	"github.com/nikhilbhutani/promptcompliance/internal/vectorstore"
)

type embedGateway struct {
	err    error
	inputs [][]string
}

func (g *embedGateway) Chat(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("not used")
}

func (g *embedGateway) Embed(_ context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	g.inputs = append(g.inputs, req.Input)
	if g.err != nil {
		return nil, g.err
	}
	out := make([][]float32, len(req.Input))
	for i := range req.Input {
		out[i] = []float32{float32(i), 1}
	}
	return &llm.EmbeddingResponse{Embeddings: out}, nil
}

func (g *embedGateway) Provider(string) (llm.Provider, error) { return nil, nil }
func (g *embedGateway) DefaultProvider() string               { return llm.ProviderOllama }

type memStore struct {
	chunks  []models.DocumentChunk
	results []vectorstore.SearchResult
	topK    int
}

func (m *memStore) Upsert(_ context.Context, chunks []models.DocumentChunk) error {
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *memStore) SimilaritySearch(_ context.Context, _ []float32, topK int) ([]vectorstore.SearchResult, error) {
	m.topK = topK
	return m.results, nil
}

func TestPipeline_Ingest(t *testing.T) {
	gw := &embedGateway{}
	store := &memStore{}
	p := NewPipeline(store, embedding.NewService(gw, ""), "gpt-4o-mini")

	n, err := p.Ingest(context.Background(), strings.Repeat("x", 1100), map[string]string{"source": "manual"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, store.chunks, 3)
	assert.Equal(t, 2, store.chunks[2].ChunkIndex)
	assert.Len(t, store.chunks[2].Content, 100)
	assert.Equal(t, "manual", store.chunks[1].Metadata["source"])
	assert.Positive(t, store.chunks[0].TokenCount)
	require.Len(t, gw.inputs, 1)
	assert.Len(t, gw.inputs[0], 3)
}

func TestPipeline_Ingest_Errors(t *testing.T) {
	p := NewPipeline(&memStore{}, embedding.NewService(&embedGateway{}, ""), "")
	_, err := p.Ingest(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyDocument)

	down := errors.New("no embedding backend")
	p = NewPipeline(&memStore{}, embedding.NewService(&embedGateway{err: down}, ""), "")
	_, err = p.Ingest(context.Background(), "hello", nil)
	assert.ErrorIs(t, err, down)
}

func TestPipeline_Retrieve(t *testing.T) {
	store := &memStore{results: []vectorstore.SearchResult{{Content: "refunds take 5 days"}, {Content: "shipping is free"}}}
	p := NewPipeline(store, embedding.NewService(&embedGateway{}, ""), "")

	ctx, err := p.Retrieve(context.Background(), "refund?", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"refunds take 5 days", "shipping is free"}, ctx)
	assert.Equal(t, 3, store.topK)
}
