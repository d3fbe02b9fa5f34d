package evaluation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/promptcompliance/internal/models"
)

var createdAt = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func evaluationColumns() []string {
	return []string{"id", "prompt_version", "preference_alignment", "guideline_adherence", "overall", "notes", "metadata", "created_at"}
}

func TestPostgresRepository_Insert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	evidence := "你好"
	result := &models.EvaluationResult{
		EvaluationID: "0b9c6f0e-4b7e-4d3c-9d55-8f0e7e1c1a01",
		Scores:       models.EvaluationScores{PreferenceAlignment: 0.5, GuidelineAdherence: 0.5, Overall: 0.5},
		GuidelineResults: []models.GuidelineCompliance{
			{Guideline: "Respond in Chinese", Followed: true, Explanation: "ok", Evidence: &evidence},
			{Guideline: "Be brief", Followed: false, Explanation: "too long"},
		},
		Metadata:  map[string]any{"source": "test"},
		CreatedAt: createdAt,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO evaluations").
		WithArgs(result.EvaluationID, (*string)(nil), 0.5, 0.5, 0.5, (*string)(nil),
			[]byte(`{"source":"test"}`), (*string)(nil), "Hi", createdAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"evaluation_guidelines"}, guidelineColumns).
		WillReturnResult(2)
	mock.ExpectCommit()

	err = repo.Insert(context.Background(), result, models.EvaluationRequest{UserMessage: "Hi", ModelResponse: "Hello"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Insert_ChildFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	result := &models.EvaluationResult{
		EvaluationID:     "0b9c6f0e-4b7e-4d3c-9d55-8f0e7e1c1a02",
		GuidelineResults: []models.GuidelineCompliance{{Guideline: "Be brief"}},
		CreatedAt:        createdAt,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO evaluations").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"evaluation_guidelines"}, guidelineColumns).
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err = repo.Insert(context.Background(), result, models.EvaluationRequest{UserMessage: "Hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert evaluation guidelines")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Recent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	version := "version_20261019090000"
	note := "Guideline adherence skipped (no guidelines provided)"
	evidence := "Hello"

	mock.ExpectQuery("FROM evaluations ORDER BY created_at DESC").
		WithArgs(2).
		WillReturnRows(pgxmock.NewRows(evaluationColumns()).
			AddRow("eval-new", &version, 0.6, 0.5, 0.55, (*string)(nil), []byte(`{"k":"v"}`), createdAt.Add(time.Minute)).
			AddRow("eval-old", (*string)(nil), 0.5, 1.0, 0.75, &note, []byte(nil), createdAt))
	mock.ExpectQuery("FROM evaluation_guidelines").
		WithArgs([]string{"eval-new", "eval-old"}).
		WillReturnRows(pgxmock.NewRows([]string{"evaluation_id", "guideline", "followed", "explanation", "evidence"}).
			AddRow("eval-new", "first rule", true, "ok", &evidence).
			AddRow("eval-new", "second rule", false, "no", (*string)(nil)))

	results, err := repo.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "eval-new", results[0].EvaluationID)
	assert.Equal(t, "v", results[0].Metadata["k"])
	require.Len(t, results[0].GuidelineResults, 2)
	assert.Equal(t, "first rule", results[0].GuidelineResults[0].Guideline)
	assert.Equal(t, "second rule", results[0].GuidelineResults[1].Guideline)
	assert.Nil(t, results[0].MatchedReference)

	assert.Equal(t, "eval-old", results[1].EvaluationID)
	assert.Empty(t, results[1].GuidelineResults)
	assert.Nil(t, results[1].Metadata)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ByIDs_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	results, err := NewPostgresRepository(mock).ByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NoError(t, mock.ExpectationsWereMet())
}
