package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/go-rubric/internal/aggregation"
	"github.com/ahrav/go-rubric/internal/domain"
	"github.com/ahrav/go-rubric/internal/export"
)

// Default activity timeout when the request leaves it unset.
const defaultActivityTimeout = 2 * time.Minute

// Activity receivers used only for method references. Temporal resolves the
// registered implementation by name.
var (
	aggActs *aggregation.Activities
	expActs *export.Activities
)

// ExportWorkflow aggregates a session snapshot and publishes the results
// document and the report.
//
// The workflow:
// 1. Validates the request (non-retryable on failure)
// 2. Runs ComputeStatistics over the snapshot
// 3. Runs PublishExport stamped with workflow time
// 4. Returns the statistics and the stored document references.
func ExportWorkflow(
	ctx workflow.Context,
	req domain.ExportRequest,
) (*domain.ExportOutcome, error) {
	// Version gate enables safe evolution and backward compatibility.
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "export.v", workflow.DefaultVersion, currentVersion)

	if err := req.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError(
			"invalid export request",
			"Validation",
			err,
		)
	}

	timeout := defaultActivityTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	var stats domain.Statistics
	err := workflow.ExecuteActivity(ctx, aggActs.ComputeStatistics, aggregation.ComputeStatisticsInput{
		RequestID: req.RequestID,
		Samples:   req.Samples,
		Scores:    req.Scores,
	}).Get(ctx, &stats)
	if err != nil {
		return nil, err
	}
	logger.Info("statistics computed",
		"request_id", req.RequestID,
		"completed_samples", stats.CompletedSamples,
		"total_samples", stats.TotalSamples)

	var published export.PublishExportOutput
	err = workflow.ExecuteActivity(ctx, expActs.PublishExport, export.PublishExportInput{
		RequestID:  req.RequestID,
		Samples:    req.Samples,
		Scores:     req.Scores,
		Modes:      req.Modes,
		ExportedAt: workflow.Now(ctx),
	}).Get(ctx, &published)
	if err != nil {
		return nil, err
	}

	return &domain.ExportOutcome{
		Statistics: stats,
		Results:    published.Results,
		Report:     published.Report,
	}, nil
}
