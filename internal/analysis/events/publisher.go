// Package events publishes analysis lifecycle events.
package events

import (
	"context"

	"github.com/licenselens/licenselens-backend/internal/analysis/domain"
	"github.com/licenselens/licenselens-backend/pkg/logger"
	"github.com/licenselens/licenselens-backend/pkg/messaging"
)

// AnalysisEventPublisher publishes analysis events to the analysis exchange.
// A nil publisher is valid and silently discards events; the service runs
// without a broker in standalone mode.
type AnalysisEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewAnalysisEventPublisher creates a publisher on the analysis events exchange.
func NewAnalysisEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*AnalysisEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeAnalysisEvents, "analysis-service", log)
	if err != nil {
		return nil, err
	}

	return &AnalysisEventPublisher{
		publisher: publisher,
		logger:    log.WithComponent("analysis-events"),
	}, nil
}

// PublishAnalysisCompleted publishes an analysis.completed event.
// Event delivery is best effort: failures are logged, never returned.
func (p *AnalysisEventPublisher) PublishAnalysisCompleted(ctx context.Context, a *domain.Analysis) {
	if p == nil {
		return
	}

	event := messaging.AnalysisCompletedEvent{
		AnalysisID:   a.ID,
		Model:        a.Model,
		ImageSHA256:  a.ImageSHA256,
		Instructions: a.Instructions,
		DurationMs:   a.DurationMs,
		Cached:       a.Cached,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAnalysisCompleted, event); err != nil {
		p.logger.Error().Err(err).Str("analysis_id", a.ID).Msg("failed to publish analysis.completed")
	}
}

// PublishAnalysisFailed publishes an analysis.failed event.
func (p *AnalysisEventPublisher) PublishAnalysisFailed(ctx context.Context, model, imageSHA256, instructions, reason string) {
	if p == nil {
		return
	}

	event := messaging.AnalysisFailedEvent{
		Model:        model,
		ImageSHA256:  imageSHA256,
		Instructions: instructions,
		Reason:       reason,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAnalysisFailed, event); err != nil {
		p.logger.Error().Err(err).Msg("failed to publish analysis.failed")
	}
}
