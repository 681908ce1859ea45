package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licenselens/licenselens-backend/internal/analysis/domain"
	"github.com/licenselens/licenselens-backend/internal/analysis/store"
)

func newAnalysis(createdAt time.Time) *domain.Analysis {
	return &domain.Analysis{
		ID:           uuid.New().String(),
		Instructions: "extract the name",
		ResultText:   "**Name:** Max Mustermann",
		Model:        "gemini-2.0-flash-thinking-exp-1219",
		CreatedAt:    createdAt,
	}
}

func TestMemory_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory(time.Hour)
	defer s.Close()

	a := newAnalysis(time.Now())
	require.NoError(t, s.Save(ctx, a))

	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ResultText, got.ResultText)
}

func TestMemory_GetMissing(t *testing.T) {
	s := store.NewMemory(time.Hour)
	defer s.Close()

	_, err := s.Get(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemory_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory(time.Hour)
	defer s.Close()

	now := time.Now()
	oldest := newAnalysis(now.Add(-2 * time.Hour))
	middle := newAnalysis(now.Add(-1 * time.Hour))
	newest := newAnalysis(now)
	for _, a := range []*domain.Analysis{oldest, newest, middle} {
		require.NoError(t, s.Save(ctx, a))
	}

	got, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newest.ID, got[0].ID)
	assert.Equal(t, middle.ID, got[1].ID)
}

func TestMemory_TinyTTL(t *testing.T) {
	// A sub-tick TTL must not panic the cleanup loop.
	s := store.NewMemory(time.Nanosecond)
	defer s.Close()

	a := newAnalysis(time.Now())
	require.NoError(t, s.Save(context.Background(), a))

	got, err := s.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}

func TestZeroBytes(t *testing.T) {
	b := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x12}
	store.ZeroBytes(b)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not zeroed: %#x", i, v)
		}
	}
}
