// Package repository implements the Postgres analysis history.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/licenselens/licenselens-backend/internal/analysis/domain"
	"github.com/licenselens/licenselens-backend/pkg/database"
)

// AnalysisRepository persists completed analyses in Postgres.
type AnalysisRepository struct {
	db *database.DB
}

// NewAnalysisRepository creates a new analysis repository.
func NewAnalysisRepository(db *database.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Save inserts a completed analysis.
func (r *AnalysisRepository) Save(ctx context.Context, a *domain.Analysis) error {
	query := `
		INSERT INTO analyses (id, instructions, result_text, model, image_sha256, duration_ms, cached, created_at)
		VALUES (:id, :instructions, :result_text, :model, :image_sha256, :duration_ms, :cached, :created_at)`

	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

// Get retrieves an analysis by ID.
func (r *AnalysisRepository) Get(ctx context.Context, id string) (*domain.Analysis, error) {
	query := `
		SELECT id, instructions, result_text, model, image_sha256, duration_ms, cached, created_at
		FROM analyses
		WHERE id = $1`

	var a domain.Analysis
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return &a, nil
}

// List returns up to limit analyses, newest first.
func (r *AnalysisRepository) List(ctx context.Context, limit int) ([]*domain.Analysis, error) {
	query := `
		SELECT id, instructions, result_text, model, image_sha256, duration_ms, cached, created_at
		FROM analyses
		ORDER BY created_at DESC
		LIMIT $1`

	analyses := []*domain.Analysis{}
	if err := r.db.SelectContext(ctx, &analyses, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	return analyses, nil
}
