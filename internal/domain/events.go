package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ahrav/go-rubric/pkg/events"
)

// EventType represents the type of event emitted by the system.
// Using typed constants provides compile-time safety and enables
// exhaustive switch statements for event handling.
type EventType string

const (
	// EventTypeDatasetLoaded is emitted when a session replaces its dataset.
	EventTypeDatasetLoaded EventType = "DatasetLoaded"

	// EventTypeScoreRecorded is emitted after every ledger write.
	EventTypeScoreRecorded EventType = "ScoreRecorded"

	// EventTypeSampleReset is emitted when a sample's record is removed.
	EventTypeSampleReset EventType = "SampleReset"

	// EventTypeStatisticsComputed is emitted by the aggregation activity.
	EventTypeStatisticsComputed EventType = "StatisticsComputed"

	// EventTypeExportPublished is emitted once both export documents are stored.
	EventTypeExportPublished EventType = "ExportPublished"
)

// EventEnvelope wraps domain events with consistent metadata.
// Provides correlation, idempotency and a typed payload for sinks that
// fan events out to logs or downstream consumers.
type EventEnvelope struct {
	// IdempotencyKey ensures events are processed exactly once during retries.
	// Generated deterministically from the correlation id and event content.
	IdempotencyKey string `json:"idempotency_key" validate:"required"`

	// EventType identifies the specific type of event for routing and processing.
	EventType EventType `json:"event_type" validate:"required"`

	// Version enables event schema evolution and backward compatibility.
	Version int `json:"version" validate:"required,min=1"`

	// OccurredAt records when the event occurred.
	// Should use workflow.Now(ctx) for deterministic time in workflows.
	OccurredAt time.Time `json:"occurred_at" validate:"required"`

	// CorrelationID ties the event to a session or workflow run.
	CorrelationID string `json:"correlation_id" validate:"required"`

	// Payload contains the event-specific data as JSON.
	Payload json.RawMessage `json:"payload" validate:"required"`

	// Producer identifies the component that emitted this event.
	Producer string `json:"producer" validate:"required"`
}

// Validate checks if the event envelope meets all requirements.
func (e *EventEnvelope) Validate() error {
	return validate.Struct(e)
}

// ScoreRecordedPayload describes one ledger write.
type ScoreRecordedPayload struct {
	SampleID  string    `json:"sample_id"  validate:"required"`
	Scope     Scope     `json:"scope"      validate:"required"`
	Dimension Dimension `json:"dimension"  validate:"required"`
	TurnIndex *int      `json:"turn_index,omitempty"`
	Mode      ScoreMode `json:"mode"       validate:"required"`
	Value     float64   `json:"value"`
}

// SampleResetPayload describes a per-sample reset.
type SampleResetPayload struct {
	SampleID string `json:"sample_id" validate:"required"`
	Existed  bool   `json:"existed"`
}

// DatasetLoadedPayload describes a dataset replacement.
type DatasetLoadedPayload struct {
	Samples     int `json:"samples"      validate:"min=0"`
	FallbackIDs int `json:"fallback_ids" validate:"min=0"`
}

// StatisticsComputedPayload carries the headline numbers of an aggregation run.
type StatisticsComputedPayload struct {
	TotalSamples     int     `json:"total_samples"     validate:"min=0"`
	CompletedSamples int     `json:"completed_samples" validate:"min=0"`
	HarmfulRate      float64 `json:"harmful_rate"      validate:"min=0,max=1"`
}

// ExportPublishedPayload lists where the export documents were written.
type ExportPublishedPayload struct {
	Results ArtifactRef `json:"results" validate:"required"`
	Report  ArtifactRef `json:"report"  validate:"required"`
	Samples int         `json:"samples" validate:"min=0"`
}

// GenerateIdempotencyKey creates a deterministic key for event deduplication.
// Combines the correlation id with event-specific content so that retries and
// replays produce identical keys for the same logical event.
func GenerateIdempotencyKey(correlationID, eventSuffix string) string {
	hasher := sha256.New()
	hasher.Write([]byte(correlationID + eventSuffix))
	return hex.EncodeToString(hasher.Sum(nil))
}

// NewEvent validates payload and wraps it in an envelope. The suffix makes
// the idempotency key unique per logical event within one correlation id.
func NewEvent(
	eventType EventType,
	correlationID, suffix, producer string,
	occurredAt time.Time,
	payload any,
) (EventEnvelope, error) {
	if err := validate.Struct(payload); err != nil {
		return EventEnvelope{}, fmt.Errorf("invalid %s payload: %w", eventType, err)
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("failed to marshal payload: %w", err)
	}

	envelope := EventEnvelope{
		IdempotencyKey: GenerateIdempotencyKey(correlationID, ":"+string(eventType)+":"+suffix),
		EventType:      eventType,
		Version:        1,
		OccurredAt:     occurredAt,
		CorrelationID:  correlationID,
		Payload:        payloadJSON,
		Producer:       producer,
	}

	if err := envelope.Validate(); err != nil {
		return EventEnvelope{}, fmt.Errorf("invalid event envelope: %w", err)
	}
	return envelope, nil
}

// Envelope converts the domain event into the generic sink envelope.
// The idempotency key doubles as the envelope id so replays stay deterministic.
func (e EventEnvelope) Envelope() events.Envelope {
	return events.Envelope{
		ID:             e.IdempotencyKey,
		Type:           string(e.EventType),
		Source:         e.Producer,
		Version:        fmt.Sprintf("%d.0.0", e.Version),
		Timestamp:      e.OccurredAt,
		IdempotencyKey: e.IdempotencyKey,
		CorrelationID:  e.CorrelationID,
		Payload:        e.Payload,
	}
}
