// Package service orchestrates a license analysis: normalize the upload,
// consult the result cache, call the hosted model and record the outcome.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/licenselens/licenselens-backend/internal/analysis/cache"
	"github.com/licenselens/licenselens-backend/internal/analysis/domain"
	"github.com/licenselens/licenselens-backend/internal/analysis/imaging"
	"github.com/licenselens/licenselens-backend/internal/analysis/prompt"
	"github.com/licenselens/licenselens-backend/internal/analysis/store"
	"github.com/licenselens/licenselens-backend/pkg/errors"
	"github.com/licenselens/licenselens-backend/pkg/logger"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ModelClient is the hosted multimodal model the service analyzes with.
type ModelClient interface {
	Analyze(ctx context.Context, promptText string, imageJPEG []byte) (string, error)
	Model() string
}

// Store persists completed analyses. Backed by Postgres or, in standalone
// mode, the in-memory TTL store.
type Store interface {
	Save(ctx context.Context, a *domain.Analysis) error
	Get(ctx context.Context, id string) (*domain.Analysis, error)
	List(ctx context.Context, limit int) ([]*domain.Analysis, error)
}

// Cache is the optional result cache. A miss returns ("", nil).
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
}

// EventPublisher publishes analysis lifecycle events. Delivery is best
// effort: implementations swallow broker failures, a request never fails
// because an event could not be published.
type EventPublisher interface {
	PublishAnalysisCompleted(ctx context.Context, a *domain.Analysis)
	PublishAnalysisFailed(ctx context.Context, model, imageSHA256, instructions, reason string)
}

// Service implements the license analysis use cases.
type Service struct {
	model  ModelClient
	store  Store
	cache  Cache
	events EventPublisher
	logger *logger.Logger
}

// New creates an analysis service. cache and eventPublisher may be nil.
func New(model ModelClient, st Store, c Cache, ep EventPublisher, log *logger.Logger) *Service {
	return &Service{
		model:  model,
		store:  st,
		cache:  c,
		events: ep,
		logger: log.WithComponent("analysis-service"),
	}
}

// Analyze runs one complete analysis over the uploaded image bytes and the
// user's free-text instructions. It blocks until the model reply is in; the
// returned analysis is already persisted.
func (s *Service) Analyze(ctx context.Context, imageData []byte, instructions string) (*domain.Analysis, error) {
	instructions = strings.TrimSpace(instructions)
	if !prompt.ValidateInstructions(instructions) {
		return nil, errors.BadRequest("analysis instructions must not be empty")
	}

	normalized, err := imaging.Normalize(imageData)
	if err != nil {
		s.logger.Warn().Err(err).Int("bytes", len(imageData)).Msg("upload rejected, not a readable image")
		return nil, errors.Unprocessable("NO_IMAGE", "uploaded file is not a readable image")
	}
	// The raw upload is no longer needed once the normalized JPEG exists.
	store.ZeroBytes(imageData)

	sum := sha256.Sum256(normalized.JPEG)
	imageSHA := hex.EncodeToString(sum[:])

	if resultText, ok := s.cacheLookup(ctx, normalized.JPEG, instructions); ok {
		store.ZeroBytes(normalized.JPEG)
		return s.record(ctx, instructions, resultText, imageSHA, 0, true)
	}

	promptText := prompt.Compose(instructions)

	started := time.Now()
	resultText, err := s.model.Analyze(ctx, promptText, normalized.JPEG)
	cacheKey := cache.Key(normalized.JPEG, instructions)
	store.ZeroBytes(normalized.JPEG)
	if err != nil {
		s.logger.Error().Err(err).Str("model", s.model.Model()).Msg("model call failed")
		if s.events != nil {
			s.events.PublishAnalysisFailed(ctx, s.model.Model(), imageSHA, instructions, err.Error())
		}
		return nil, errors.UpstreamFailure(err)
	}
	durationMs := time.Since(started).Milliseconds()

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, resultText); err != nil {
			s.logger.Warn().Err(err).Msg("failed to cache analysis result")
		}
	}

	return s.record(ctx, instructions, resultText, imageSHA, durationMs, false)
}

// GetAnalysis retrieves a stored analysis by ID.
func (s *Service) GetAnalysis(ctx context.Context, id string) (*domain.Analysis, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errors.NotFound("analysis")
		}
		return nil, err
	}
	return a, nil
}

// ListAnalyses returns recent analyses, newest first.
func (s *Service) ListAnalyses(ctx context.Context, limit int) ([]*domain.Analysis, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.store.List(ctx, limit)
}

// cacheLookup checks the result cache. Cache errors degrade to a miss.
func (s *Service) cacheLookup(ctx context.Context, imageJPEG []byte, instructions string) (string, bool) {
	if s.cache == nil {
		return "", false
	}

	key := cache.Key(imageJPEG, instructions)
	resultText, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Msg("result cache lookup failed")
		return "", false
	}
	if resultText == "" {
		return "", false
	}

	s.logger.Debug().Str("key", key).Msg("result cache hit")
	return resultText, true
}

// record persists the analysis and publishes the completed event. Persistence
// failures are logged but do not void a reply the user already paid a model
// call for.
func (s *Service) record(ctx context.Context, instructions, resultText, imageSHA string, durationMs int64, cached bool) (*domain.Analysis, error) {
	a := &domain.Analysis{
		ID:           uuid.New().String(),
		Instructions: instructions,
		ResultText:   resultText,
		Model:        s.model.Model(),
		ImageSHA256:  imageSHA,
		DurationMs:   durationMs,
		Cached:       cached,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.Save(ctx, a); err != nil {
		s.logger.Error().Err(err).Str("analysis_id", a.ID).Msg("failed to persist analysis")
	}

	if s.events != nil {
		s.events.PublishAnalysisCompleted(ctx, a)
	}
	return a, nil
}
