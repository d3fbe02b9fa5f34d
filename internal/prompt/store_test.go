package prompt

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 19, 10, 15, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	s := NewStore(mock)
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

func versionColumns() []string {
	return []string{"id", "content", "created_at", "score", "notes"}
}

func TestSaveNewVersion(t *testing.T) {
	s, mock := newMockStore(t)
	notes := "first"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(id), '') FROM prompts")).
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(""))
	mock.ExpectExec("INSERT INTO prompts").
		WithArgs("version_20261019101500", "Be helpful.", fixedNow, (*float64)(nil), &notes).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO prompt_meta").
		WithArgs("current_version", "version_20261019101500").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	v, err := s.SaveNewVersion(context.Background(), "Be helpful.", &notes, nil)
	require.NoError(t, err)
	assert.Equal(t, "version_20261019101500", v.ID)
	assert.Equal(t, fixedNow, v.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveNewVersion_SameSecondGetsSuffix(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow("version_20261019101500"))
	mock.ExpectExec("INSERT INTO prompts").
		WithArgs("version_20261019101500_01", "v2", fixedNow, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO prompt_meta").
		WithArgs("current_version", "version_20261019101500_01").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	v, err := s.SaveNewVersion(context.Background(), "v2", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "version_20261019101500_01", v.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveNewVersion_RollsBackWhenPointerFails(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(""))
	mock.ExpectExec("INSERT INTO prompts").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO prompt_meta").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.SaveNewVersion(context.Background(), "v", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update current version")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func expectSave(mock pgxmock.PgxPoolIface, last, id string) {
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(last))
	mock.ExpectExec("INSERT INTO prompts").
		WithArgs(id, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO prompt_meta").
		WithArgs("current_version", id).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
}

func TestSaveNewVersion_ConcurrentWritersGetOrderedIDs(t *testing.T) {
	s, mock := newMockStore(t)

	const writers = 8
	want := make([]string, writers)
	last := ""
	for i := range want {
		id, err := nextVersionID(fixedNow, last)
		require.NoError(t, err)
		want[i] = id
		expectSave(mock, last, id)
		last = id
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		got []string
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			v, err := s.SaveNewVersion(context.Background(), fmt.Sprintf("prompt %d", n), nil, nil)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			got = append(got, v.ID)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	require.Len(t, got, writers)
	sort.Strings(got)
	assert.Equal(t, want, got)
	for i := 1; i < len(got); i++ {
		assert.NotEqual(t, got[i-1], got[i])
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveNewVersion_PreviousVersionStaysReadable(t *testing.T) {
	s, mock := newMockStore(t)
	oldNotes := "seed"

	expectSave(mock, "version_20261019101500", "version_20261019101500_01")
	mock.ExpectQuery("FROM prompts WHERE id").
		WithArgs("version_20261019101500").
		WillReturnRows(pgxmock.NewRows(versionColumns()).
			AddRow("version_20261019101500", "Be helpful.", fixedNow, (*float64)(nil), &oldNotes))

	v, err := s.SaveNewVersion(context.Background(), "Be helpful and concise.", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "version_20261019101500_01", v.ID)

	old, err := s.Version(context.Background(), "version_20261019101500")
	require.NoError(t, err)
	assert.Equal(t, "Be helpful.", old.Content)
	require.NotNil(t, old.Notes)
	assert.Equal(t, "seed", *old.Notes)
	assert.Equal(t, fixedNow, old.CreatedAt)
	// Saving touches only the new row and the current pointer.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCurrent(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM prompt_meta m JOIN prompts p").
		WithArgs("current_version").
		WillReturnRows(pgxmock.NewRows(versionColumns()).
			AddRow("version_20261019101500", "Be helpful.", fixedNow, (*float64)(nil), (*string)(nil)))

	v, err := s.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "version_20261019101500", v.ID)
	assert.Nil(t, v.Score)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCurrent_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM prompt_meta").
		WithArgs("current_version").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Current(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVersion_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM prompts WHERE id").
		WithArgs("version_missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Version(context.Background(), "version_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListVersions(t *testing.T) {
	s, mock := newMockStore(t)
	score := 0.8

	mock.ExpectQuery("ORDER BY created_at, id").
		WillReturnRows(pgxmock.NewRows(versionColumns()).
			AddRow("version_20261019101500", "a", fixedNow, (*float64)(nil), (*string)(nil)).
			AddRow("version_20261019101600", "b", fixedNow.Add(time.Minute), &score, (*string)(nil)))

	versions, err := s.ListVersions(context.Background())
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "version_20261019101500", versions[0].ID)
	require.NotNil(t, versions[1].Score)
	assert.Equal(t, 0.8, *versions[1].Score)
}

func TestUpdateVersion(t *testing.T) {
	s, mock := newMockStore(t)
	score := 0.9

	mock.ExpectExec("UPDATE prompts SET score").
		WithArgs("version_a", &score, (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE prompts SET score").
		WithArgs("version_b", &score, (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, s.UpdateVersion(context.Background(), "version_a", &score, nil))
	assert.ErrorIs(t, s.UpdateVersion(context.Background(), "version_b", &score, nil), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBootstrap_ExistingVersionsAreKept(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM prompts)")).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("FROM prompt_meta").
		WithArgs("current_version").
		WillReturnRows(pgxmock.NewRows(versionColumns()).
			AddRow("version_20261019101500", "old", fixedNow, (*float64)(nil), (*string)(nil)))

	v, created, err := s.Bootstrap(context.Background(), "seed")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "old", v.Content)
}

func TestNextVersionID(t *testing.T) {
	tests := []struct {
		name string
		last string
		want string
	}{
		{"empty store", "", "version_20261019101500"},
		{"older last", "version_20261019101459", "version_20261019101500"},
		{"same second", "version_20261019101500", "version_20261019101500_01"},
		{"same second twice", "version_20261019101500_01", "version_20261019101500_02"},
		{"clock behind", "version_20261019101530", "version_20261019101530_01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nextVersionID(fixedNow, tt.last)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Greater(t, got, tt.last)
		})
	}
}
