// Package aggregation computes cross-sample statistics from the score ledger.
// ComputeStatistics is a pure function used directly by the session; the
// Activities type exposes the same computation as a Temporal activity for
// batch export runs.
package aggregation

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-rubric/internal/domain"
	"github.com/ahrav/go-rubric/pkg/activity"
)

// ComputeStatisticsInput is the activity payload: a detached copy of the
// dataset and the ledger.
type ComputeStatisticsInput struct {
	RequestID string               `json:"request_id"`
	Samples   []domain.Sample      `json:"samples"`
	Scores    domain.ScoreSnapshot `json:"scores"`
}

// Activities handles aggregation-specific Temporal activities.
type Activities struct {
	activity.BaseActivities
	events *EventEmitter
}

// NewActivities creates aggregation activities with the provided dependencies.
// The base activities provide common infrastructure for logging and event emission.
func NewActivities(base activity.BaseActivities) *Activities {
	return &Activities{
		BaseActivities: base,
		events:         NewEventEmitter(base),
	}
}

// ComputeStatistics runs the aggregator over the input snapshot.
//
// The operation:
// 1. Validates the input
// 2. Computes statistics with the pure aggregator
// 3. Emits a StatisticsComputed event (best-effort)
// 4. Returns the statistics.
func (a *Activities) ComputeStatistics(
	ctx context.Context,
	input ComputeStatisticsInput,
) (*domain.Statistics, error) {
	if input.RequestID == "" {
		return nil, nonRetryable("ComputeStatistics",
			fmt.Errorf("%w: request id is required", domain.ErrInvalidExport), "invalid input")
	}

	run := a.RunInfo(ctx, input.RequestID)
	a.Log(ctx, "Starting ComputeStatistics activity",
		"request_id", run.RequestID,
		"workflow_id", run.WorkflowID,
		"attempt", run.Attempt,
		"samples", len(input.Samples),
		"recorded", len(input.Scores))

	stats := ComputeStatistics(input.Samples, input.Scores)

	a.events.EmitStatisticsComputed(ctx, input.RequestID, stats)

	a.Log(ctx, "ComputeStatistics completed",
		"completed_samples", stats.CompletedSamples,
		"harmful_rate", stats.HarmfulRate)

	return &stats, nil
}

// Error helpers - wrap errors as Temporal application errors

func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}
