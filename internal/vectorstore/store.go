package vectorstore

import (
	"context"

	"github.com/nikhilbhutani/promptcompliance/internal/models"
)

type SearchResult struct {
	ChunkID    string  `json:"chunk_id"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	ChunkIndex int     `json:"chunk_index"`
}

type VectorStore interface {
	Upsert(ctx context.Context, chunks []models.DocumentChunk) error
	SimilaritySearch(ctx context.Context, query []float32, topK int) ([]SearchResult, error)
}
