// Package activity holds what the statistics and export activities share:
// identifying the run an export request belongs to, logging that works with
// or without a Temporal activity context, and best-effort event emission.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/ahrav/go-rubric/pkg/events"
)

// RunInfo identifies the execution handling one export request.
type RunInfo struct {
	RequestID  string
	WorkflowID string
	RunID      string
	ActivityID string
	Attempt    int32
	// Local is set when the activity body runs outside a Temporal worker,
	// e.g. when called directly from tests or tooling.
	Local bool
}

// LocalWorkflowID names runs that happen outside Temporal.
func LocalWorkflowID(requestID string) string {
	if requestID == "" {
		return "local"
	}
	return "local-" + requestID
}

// EmitPolicy bounds the retries EmitEventSafe makes against the event sink.
type EmitPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultEmitPolicy returns two attempts 200ms apart.
func DefaultEmitPolicy() EmitPolicy {
	return EmitPolicy{Attempts: 2, Delay: 200 * time.Millisecond}
}

// Option configures BaseActivities.
type Option func(*BaseActivities)

// WithLogger sets the logger used outside an activity context.
func WithLogger(l *slog.Logger) Option {
	return func(b *BaseActivities) { b.logger = l }
}

// WithEmitPolicy overrides the event emission retry policy.
// Policies with fewer than one attempt are ignored.
func WithEmitPolicy(p EmitPolicy) Option {
	return func(b *BaseActivities) {
		if p.Attempts >= 1 {
			b.emit = p
		}
	}
}

// BaseActivities is embedded by every activity struct.
type BaseActivities struct {
	eventSink events.EventSink
	logger    *slog.Logger
	emit      EmitPolicy
}

// NewBaseActivities creates the shared activity infrastructure.
// A nil sink disables event emission.
func NewBaseActivities(sink events.EventSink, opts ...Option) BaseActivities {
	b := BaseActivities{eventSink: sink, emit: DefaultEmitPolicy()}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// RunInfo describes the execution handling requestID.
func (b *BaseActivities) RunInfo(ctx context.Context, requestID string) RunInfo {
	if !activity.IsActivity(ctx) {
		return RunInfo{
			RequestID:  requestID,
			WorkflowID: LocalWorkflowID(requestID),
			RunID:      "local",
			Local:      true,
		}
	}
	info := activity.GetInfo(ctx)
	return RunInfo{
		RequestID:  requestID,
		WorkflowID: info.WorkflowExecution.ID,
		RunID:      info.WorkflowExecution.RunID,
		ActivityID: info.ActivityID,
		Attempt:    info.Attempt,
	}
}

// Log writes an INFO record through the activity logger, or through the
// configured slog logger outside an activity.
func (b *BaseActivities) Log(ctx context.Context, msg string, keyvals ...any) {
	if activity.IsActivity(ctx) {
		activity.GetLogger(ctx).Info(msg, keyvals...)
		return
	}
	b.fallbackLogger().InfoContext(ctx, msg, keyvals...)
}

// LogError is Log at ERROR level.
func (b *BaseActivities) LogError(ctx context.Context, msg string, keyvals ...any) {
	if activity.IsActivity(ctx) {
		activity.GetLogger(ctx).Error(msg, keyvals...)
		return
	}
	b.fallbackLogger().ErrorContext(ctx, msg, keyvals...)
}

func (b *BaseActivities) fallbackLogger() *slog.Logger {
	if b.logger != nil {
		return b.logger
	}
	return slog.Default()
}

// EmitEventSafe appends envelope to the event sink, retrying per the emit
// policy. Failures are logged and never reach the caller.
func (b *BaseActivities) EmitEventSafe(
	ctx context.Context,
	envelope events.Envelope,
	description string,
) {
	if b.eventSink == nil {
		return
	}

	var lastErr error
	for attempt := 0; attempt < b.emit.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(b.emit.Delay):
			case <-ctx.Done():
				b.LogError(ctx, fmt.Sprintf("Event emission cancelled: %s", description),
					"event_type", envelope.Type)
				return
			}
		}

		if err := b.eventSink.Append(ctx, envelope); err != nil {
			lastErr = err
			continue
		}

		b.Log(ctx, fmt.Sprintf("Event emitted: %s", description),
			"event_type", envelope.Type,
			"idempotency_key", envelope.IdempotencyKey)
		return
	}

	b.LogError(ctx, fmt.Sprintf("Failed to emit %s after %d attempts", description, b.emit.Attempts),
		"event_type", envelope.Type,
		"error", lastErr)
}

// RecordHeartbeat reports progress to Temporal. No-op outside an activity.
func (b *BaseActivities) RecordHeartbeat(ctx context.Context, details ...any) {
	if activity.IsActivity(ctx) {
		activity.RecordHeartbeat(ctx, details...)
	}
}
