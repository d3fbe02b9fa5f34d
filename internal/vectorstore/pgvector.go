package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/nikhilbhutani/promptcompliance/internal/database"
	"github.com/nikhilbhutani/promptcompliance/internal/models"
)

const defaultTopK = 3

type PgVectorStore struct {
	db database.DB
}

func NewPgVectorStore(db database.DB) *PgVectorStore {
	return &PgVectorStore{db: db}
}

// Upsert writes all chunks in one transaction. Chunks without an id get a fresh one.
func (s *PgVectorStore) Upsert(ctx context.Context, chunks []models.DocumentChunk) error {
	return database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		for i := range chunks {
			c := &chunks[i]
			if c.ID == uuid.Nil {
				c.ID = uuid.New()
			}

			if c.Metadata == nil {
				c.Metadata = map[string]string{}
			}
			metadata, err := json.Marshal(c.Metadata)
			if err != nil {
				return fmt.Errorf("encode chunk %d metadata: %w", c.ChunkIndex, err)
			}

			_, err = tx.Exec(ctx,
				`INSERT INTO document_chunks (id, chunk_index, content, embedding, token_count, metadata)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 ON CONFLICT (id) DO UPDATE SET content = $3, embedding = $4, token_count = $5, metadata = $6`,
				c.ID, c.ChunkIndex, c.Content, pgvector.NewVector(c.Embedding), c.TokenCount, metadata,
			)
			if err != nil {
				return fmt.Errorf("upsert chunk %d: %w", c.ChunkIndex, err)
			}
		}
		return nil
	})
}

// SimilaritySearch returns the topK chunks nearest to query by cosine distance.
func (s *PgVectorStore) SimilaritySearch(ctx context.Context, query []float32, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = defaultTopK
	}

	rows, err := s.db.Query(ctx,
		`SELECT id::text, content, chunk_index, 1 - (embedding <=> $1) AS score
		 FROM document_chunks
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		pgvector.NewVector(query), topK,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	results := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ChunkID, &r.Content, &r.ChunkIndex, &r.Score); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
