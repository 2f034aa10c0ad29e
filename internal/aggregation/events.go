package aggregation

import (
	"context"
	"fmt"
	"time"

	"github.com/ahrav/go-rubric/internal/domain"
	"github.com/ahrav/go-rubric/pkg/activity"
)

// EventEmitter handles event emission for the aggregation domain.
type EventEmitter struct {
	base activity.BaseActivities
	now  func() time.Time
}

// NewEventEmitter creates a new EventEmitter with the provided base activities.
func NewEventEmitter(base activity.BaseActivities) *EventEmitter {
	return &EventEmitter{base: base, now: time.Now}
}

// EmitStatisticsComputed emits a StatisticsComputed event for requestID.
// Event emission is best-effort; failures are logged without affecting core operations.
func (e *EventEmitter) EmitStatisticsComputed(ctx context.Context, requestID string, stats domain.Statistics) {
	event, err := domain.NewEvent(
		domain.EventTypeStatisticsComputed,
		requestID,
		"stats",
		"activity.compute_statistics",
		e.now(),
		domain.StatisticsComputedPayload{
			TotalSamples:     stats.TotalSamples,
			CompletedSamples: stats.CompletedSamples,
			HarmfulRate:      stats.HarmfulRate,
		},
	)
	if err != nil {
		e.base.LogError(ctx, "Failed to create StatisticsComputed event",
			"request_id", requestID,
			"error", err)
		return
	}

	e.base.EmitEventSafe(ctx, event.Envelope(), fmt.Sprintf("StatisticsComputed[%s]", requestID))
}
