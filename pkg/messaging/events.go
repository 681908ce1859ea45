package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventAnalysisCompleted = "analysis.completed"
	EventAnalysisFailed    = "analysis.failed"
)

// Exchange names
const (
	ExchangeAnalysisEvents = "analysis.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// GenerateEventID creates a unique event identifier
func GenerateEventID() string {
	return uuid.New().String()
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// AnalysisCompletedEvent is published when a license analysis succeeds
type AnalysisCompletedEvent struct {
	AnalysisID   string `json:"analysis_id"`
	Model        string `json:"model"`
	ImageSHA256  string `json:"image_sha256"`
	Instructions string `json:"instructions"`
	DurationMs   int64  `json:"duration_ms"`
	Cached       bool   `json:"cached"`
}

// AnalysisFailedEvent is published when a license analysis fails
type AnalysisFailedEvent struct {
	Model        string `json:"model"`
	ImageSHA256  string `json:"image_sha256"`
	Instructions string `json:"instructions"`
	Reason       string `json:"reason"`
}
