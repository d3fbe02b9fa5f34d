package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nikhilbhutani/promptcompliance/internal/embedding"
	"github.com/nikhilbhutani/promptcompliance/internal/models"
	"github.com/nikhilbhutani/promptcompliance/internal/vectorstore"
	"github.com/nikhilbhutani/promptcompliance/pkg/chunker"
	"github.com/nikhilbhutani/promptcompliance/pkg/tokenizer"
)

var ErrEmptyDocument = errors.New("no chunks generated from content")

// Pipeline ingests documents into the vector store and retrieves context for chat.
type Pipeline struct {
	store    vectorstore.VectorStore
	embedSvc *embedding.Service
	model    string
}

// NewPipeline builds a pipeline; model selects the tokenizer used for chunk token counts.
func NewPipeline(store vectorstore.VectorStore, embedSvc *embedding.Service, model string) *Pipeline {
	return &Pipeline{store: store, embedSvc: embedSvc, model: model}
}

// Ingest chunks content into fixed windows, embeds each window and stores it.
// It returns the number of chunks added.
func (p *Pipeline) Ingest(ctx context.Context, content string, metadata map[string]string) (int, error) {
	windows := chunker.Chunk(content, chunker.DefaultOptions())
	if len(windows) == 0 {
		return 0, ErrEmptyDocument
	}

	texts := make([]string, len(windows))
	for i, w := range windows {
		texts[i] = w.Content
	}

	embeddings, err := p.embedSvc.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("generate embeddings: %w", err)
	}

	chunks := make([]models.DocumentChunk, len(windows))
	for i, w := range windows {
		chunks[i] = models.DocumentChunk{
			ChunkIndex: w.Index,
			Content:    w.Content,
			Embedding:  embeddings[i],
			TokenCount: tokenizer.CountTokensForModel(w.Content, p.model),
			Metadata:   metadata,
		}
	}

	if err := p.store.Upsert(ctx, chunks); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}

	slog.Info("document ingested", "chunks", len(chunks))
	return len(chunks), nil
}

// Retrieve returns the content of the k chunks nearest to query.
func (p *Pipeline) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	vec, err := p.embedSvc.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := p.store.SimilaritySearch(ctx, vec, k)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Content
	}
	return out, nil
}
