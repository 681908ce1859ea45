package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licenselens/licenselens-backend/internal/analysis/domain"
	"github.com/licenselens/licenselens-backend/internal/analysis/repository"
	"github.com/licenselens/licenselens-backend/pkg/database"
	"github.com/licenselens/licenselens-backend/pkg/logger"
)

func newMockRepo(t *testing.T) (*repository.AnalysisRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := database.FromSqlx(sqlx.NewDb(mockDB, "postgres"), logger.New("test", "test"))
	return repository.NewAnalysisRepository(db), mock
}

func analysisColumns() []string {
	return []string{"id", "instructions", "result_text", "model", "image_sha256", "duration_ms", "cached", "created_at"}
}

func TestAnalysisRepository_Save(t *testing.T) {
	repo, mock := newMockRepo(t)

	a := &domain.Analysis{
		ID:           "6f1c9a52-7c30-4a19-9a59-1df5c9f6a001",
		Instructions: "extract the name and date of birth",
		ResultText:   "**Name:** Jane Doe",
		Model:        "gemini-2.0-flash-thinking-exp-1219",
		ImageSHA256:  "ab12",
		DurationMs:   1830,
		Cached:       false,
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO analyses").
		WithArgs(a.ID, a.Instructions, a.ResultText, a.Model, a.ImageSHA256, a.DurationMs, a.Cached, a.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Save(context.Background(), a)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysisRepository_Get(t *testing.T) {
	repo, mock := newMockRepo(t)

	createdAt := time.Now().UTC()
	rows := sqlmock.NewRows(analysisColumns()).
		AddRow("6f1c9a52-7c30-4a19-9a59-1df5c9f6a001", "extract everything", "**Name:** Jane Doe",
			"gemini-2.0-flash-thinking-exp-1219", "ab12", int64(1830), false, createdAt)

	mock.ExpectQuery("SELECT (.+) FROM analyses").
		WithArgs("6f1c9a52-7c30-4a19-9a59-1df5c9f6a001").
		WillReturnRows(rows)

	got, err := repo.Get(context.Background(), "6f1c9a52-7c30-4a19-9a59-1df5c9f6a001")
	require.NoError(t, err)
	assert.Equal(t, "**Name:** Jane Doe", got.ResultText)
	assert.Equal(t, int64(1830), got.DurationMs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysisRepository_GetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM analyses").
		WithArgs("missing-id").
		WillReturnRows(sqlmock.NewRows(analysisColumns()))

	_, err := repo.Get(context.Background(), "missing-id")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysisRepository_List(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows(analysisColumns()).
		AddRow("id-2", "b", "result b", "gemini-2.0-flash-thinking-exp-1219", "bb", int64(900), true, now).
		AddRow("id-1", "a", "result a", "gemini-2.0-flash-thinking-exp-1219", "aa", int64(1200), false, now.Add(-time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM analyses ORDER BY created_at DESC").
		WithArgs(20).
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "id-2", got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
