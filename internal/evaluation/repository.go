package evaluation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nikhilbhutani/promptcompliance/internal/database"
	"github.com/nikhilbhutani/promptcompliance/internal/models"
)

// Repository persists evaluations with their guideline rows.
type Repository interface {
	Insert(ctx context.Context, result *models.EvaluationResult, req models.EvaluationRequest) error
	Recent(ctx context.Context, limit int) ([]models.EvaluationResult, error)
	ByIDs(ctx context.Context, ids []string) ([]models.EvaluationResult, error)
}

var guidelineColumns = []string{"evaluation_id", "position", "guideline", "followed", "explanation", "evidence"}

type PostgresRepository struct {
	db database.DB
}

func NewPostgresRepository(db database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert writes the evaluation row and all guideline rows in one transaction.
func (r *PostgresRepository) Insert(ctx context.Context, result *models.EvaluationResult, req models.EvaluationRequest) error {
	var metadata []byte
	if result.Metadata != nil {
		b, err := json.Marshal(result.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		metadata = b
	}

	var systemPrompt *string
	if req.SystemPrompt != "" {
		systemPrompt = &req.SystemPrompt
	}

	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO evaluations (
				id, prompt_version, preference_alignment, guideline_adherence,
				overall, notes, metadata, system_prompt, user_message, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			result.EvaluationID, result.PromptVersion,
			result.Scores.PreferenceAlignment, result.Scores.GuidelineAdherence, result.Scores.Overall,
			result.Notes, metadata, systemPrompt, req.UserMessage, result.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert evaluation: %w", err)
		}

		if len(result.GuidelineResults) == 0 {
			return nil
		}

		rows := make([][]any, len(result.GuidelineResults))
		for i, g := range result.GuidelineResults {
			rows[i] = []any{result.EvaluationID, i, g.Guideline, g.Followed, g.Explanation, g.Evidence}
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"evaluation_guidelines"}, guidelineColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("insert evaluation guidelines: %w", err)
		}
		if int(n) != len(rows) {
			return fmt.Errorf("insert evaluation guidelines: wrote %d of %d rows", n, len(rows))
		}
		return nil
	})
}

const selectEvaluations = `SELECT id::text, prompt_version, preference_alignment, guideline_adherence,
	overall, notes, metadata, created_at FROM evaluations`

// Recent returns up to limit evaluations, newest first.
func (r *PostgresRepository) Recent(ctx context.Context, limit int) ([]models.EvaluationResult, error) {
	return r.load(ctx, selectEvaluations+` ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
}

// ByIDs returns the requested evaluations, oldest first. Unknown ids are ignored.
func (r *PostgresRepository) ByIDs(ctx context.Context, ids []string) ([]models.EvaluationResult, error) {
	if len(ids) == 0 {
		return []models.EvaluationResult{}, nil
	}
	return r.load(ctx, selectEvaluations+` WHERE id::text = ANY($1) ORDER BY created_at, id`, ids)
}

func (r *PostgresRepository) load(ctx context.Context, query string, arg any) ([]models.EvaluationResult, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}

	results := []models.EvaluationResult{}
	index := make(map[string]int)
	for rows.Next() {
		var (
			e        models.EvaluationResult
			metadata []byte
		)
		if err := rows.Scan(
			&e.EvaluationID, &e.PromptVersion,
			&e.Scores.PreferenceAlignment, &e.Scores.GuidelineAdherence, &e.Scores.Overall,
			&e.Notes, &metadata, &e.CreatedAt,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				rows.Close()
				return nil, fmt.Errorf("decode metadata for %s: %w", e.EvaluationID, err)
			}
		}
		index[e.EvaluationID] = len(results)
		results = append(results, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}

	if len(results) == 0 {
		return results, nil
	}
	if err := r.attachGuidelines(ctx, results, index); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *PostgresRepository) attachGuidelines(ctx context.Context, results []models.EvaluationResult, index map[string]int) error {
	ids := make([]string, len(results))
	for i, e := range results {
		ids[i] = e.EvaluationID
	}

	rows, err := r.db.Query(ctx,
		`SELECT evaluation_id::text, guideline, followed, explanation, evidence
		 FROM evaluation_guidelines
		 WHERE evaluation_id::text = ANY($1)
		 ORDER BY evaluation_id, position`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("query evaluation guidelines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			evalID string
			g      models.GuidelineCompliance
		)
		if err := rows.Scan(&evalID, &g.Guideline, &g.Followed, &g.Explanation, &g.Evidence); err != nil {
			return fmt.Errorf("scan evaluation guideline: %w", err)
		}
		if i, ok := index[evalID]; ok {
			results[i].GuidelineResults = append(results[i].GuidelineResults, g)
		}
	}
	return rows.Err()
}
