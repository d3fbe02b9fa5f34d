package prompt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nikhilbhutani/promptcompliance/internal/database"
	"github.com/nikhilbhutani/promptcompliance/internal/metrics"
	"github.com/nikhilbhutani/promptcompliance/internal/models"
)

var ErrNotFound = errors.New("prompt version not found")

const (
	idLayout      = "version_20060102150405"
	currentKey    = "current_version"
	maxIDSuffixes = 99
)

// Store is an append-only log of prompt versions with a single current pointer.
type Store struct {
	db  database.DB
	mu  sync.Mutex
	now func() time.Time
}

func NewStore(db database.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// SaveNewVersion inserts a new version and repoints current to it in the same transaction.
func (s *Store) SaveNewVersion(ctx context.Context, content string, notes *string, score *float64) (*models.PromptVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	v := &models.PromptVersion{
		Content:   content,
		CreatedAt: now,
		Score:     score,
		Notes:     notes,
	}

	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var last string
		if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(id), '') FROM prompts`).Scan(&last); err != nil {
			return fmt.Errorf("read latest version id: %w", err)
		}

		id, err := nextVersionID(now, last)
		if err != nil {
			return err
		}
		v.ID = id

		if _, err := tx.Exec(ctx,
			`INSERT INTO prompts (id, content, created_at, score, notes) VALUES ($1, $2, $3, $4, $5)`,
			v.ID, v.Content, v.CreatedAt, v.Score, v.Notes,
		); err != nil {
			return fmt.Errorf("insert prompt version: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO prompt_meta (key, value) VALUES ($1, $2)
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
			currentKey, v.ID,
		); err != nil {
			return fmt.Errorf("update current version: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PromptVersionsTotal.Inc()
	return v, nil
}

// Current returns the version the current pointer refers to.
func (s *Store) Current(ctx context.Context) (*models.PromptVersion, error) {
	row := s.db.QueryRow(ctx,
		`SELECT p.id, p.content, p.created_at, p.score, p.notes
		 FROM prompt_meta m JOIN prompts p ON p.id = m.value
		 WHERE m.key = $1`,
		currentKey,
	)
	v, err := scanVersion(row)
	if err != nil {
		return nil, fmt.Errorf("get current version: %w", err)
	}
	return v, nil
}

func (s *Store) Version(ctx context.Context, id string) (*models.PromptVersion, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, content, created_at, score, notes FROM prompts WHERE id = $1`,
		id,
	)
	v, err := scanVersion(row)
	if err != nil {
		return nil, fmt.Errorf("get version %s: %w", id, err)
	}
	return v, nil
}

// ListVersions returns every version, oldest first.
func (s *Store) ListVersions(ctx context.Context) ([]models.PromptVersion, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, content, created_at, score, notes FROM prompts ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	versions := []models.PromptVersion{}
	for rows.Next() {
		var v models.PromptVersion
		if err := rows.Scan(&v.ID, &v.Content, &v.CreatedAt, &v.Score, &v.Notes); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}

// UpdateVersion backfills score and notes. Nil arguments leave the stored value unchanged.
func (s *Store) UpdateVersion(ctx context.Context, id string, score *float64, notes *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tag, err := s.db.Exec(ctx,
		`UPDATE prompts SET score = COALESCE($2, score), notes = COALESCE($3, notes) WHERE id = $1`,
		id, score, notes,
	)
	if err != nil {
		return fmt.Errorf("update version %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update version %s: %w", id, ErrNotFound)
	}
	return nil
}

// Bootstrap seeds the first version when the store is empty. It reports whether a version was created.
func (s *Store) Bootstrap(ctx context.Context, content string) (*models.PromptVersion, bool, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM prompts)`).Scan(&exists); err != nil {
		return nil, false, fmt.Errorf("check prompt versions: %w", err)
	}
	if exists {
		v, err := s.Current(ctx)
		return v, false, err
	}

	notes := "Seeded on " + s.now().UTC().Format(time.RFC3339)
	v, err := s.SaveNewVersion(ctx, content, &notes, nil)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func scanVersion(row pgx.Row) (*models.PromptVersion, error) {
	var v models.PromptVersion
	if err := row.Scan(&v.ID, &v.Content, &v.CreatedAt, &v.Score, &v.Notes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// nextVersionID derives a time-based id that sorts lexically after last, adding a
// two-digit suffix when the clock has not advanced past the previous id.
func nextVersionID(now time.Time, last string) (string, error) {
	base := now.Format(idLayout)
	if len(last) >= len(base) && last[:len(base)] > base {
		base = last[:len(base)]
	}
	if base > last {
		return base, nil
	}
	for n := 1; n <= maxIDSuffixes; n++ {
		if id := fmt.Sprintf("%s_%02d", base, n); id > last {
			return id, nil
		}
	}
	return "", fmt.Errorf("no version id available after %s", last)
}
