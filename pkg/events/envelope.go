// Package events provides the generic event infrastructure for domain event emission.
// It defines the Envelope type for wrapping domain events with consistent metadata
// and the EventSink interface for event storage/transmission.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Envelope wraps domain events with consistent metadata for reliable event processing.
// This provides a generic container that can hold any domain-specific event payload
// while maintaining standard fields for routing, idempotency, and observability.
type Envelope struct {
	// ID uniquely identifies this event instance.
	ID string `json:"id"`

	// Type identifies the event for routing and processing.
	// Examples: "ScoreRecorded", "ExportPublished"
	Type string `json:"type"`

	// Source identifies the component that emitted this event.
	// Examples: "session", "activity.publish_export"
	Source string `json:"source"`

	// Version enables schema evolution and backward compatibility.
	Version string `json:"version"`

	// Timestamp records when the event was emitted.
	Timestamp time.Time `json:"timestamp"`

	// IdempotencyKey ensures exactly-once processing during retries.
	IdempotencyKey string `json:"idempotency_key"`

	// CorrelationID ties the event to a session or workflow run.
	CorrelationID string `json:"correlation_id"`

	// Payload contains the domain-specific event data as JSON.
	// Schema varies by Type and Version.
	Payload json.RawMessage `json:"payload"`
}

// EventSink defines the interface for emitting events to downstream consumers.
// Implementations could include log outputs, message queues or files.
type EventSink interface {
	// Append adds an event to the sink with best-effort delivery.
	// Implementations should return quickly to avoid blocking the caller.
	//
	// Returns error if the event cannot be queued, but callers should
	// not fail their primary operation due to event sink failures.
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink is a null implementation of EventSink for testing or when events are disabled.
// All Append calls succeed immediately without side effects.
type NoOpEventSink struct{}

// Append implements EventSink.Append with no-op behavior.
func (n *NoOpEventSink) Append(_ context.Context, _ Envelope) error {
	return nil // Always succeeds
}

// NewNoOpEventSink creates a new no-op event sink.
// Useful for testing or when event emission should be disabled.
func NewNoOpEventSink() EventSink {
	return &NoOpEventSink{}
}

// LogEventSink writes every event as a structured log record.
type LogEventSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogEventSink creates a sink logging at level. A nil logger selects slog.Default().
func NewLogEventSink(logger *slog.Logger, level slog.Level) *LogEventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEventSink{logger: logger.With("component", "events"), level: level}
}

// Append implements EventSink.
func (l *LogEventSink) Append(ctx context.Context, envelope Envelope) error {
	l.logger.Log(ctx, l.level, "event",
		"type", envelope.Type,
		"source", envelope.Source,
		"correlation_id", envelope.CorrelationID,
		"idempotency_key", envelope.IdempotencyKey,
		"payload", string(envelope.Payload))
	return nil
}
