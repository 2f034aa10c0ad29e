package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-rubric/internal/domain"
	"github.com/ahrav/go-rubric/pkg/activity"
)

// ErrNoSink indicates the activities were constructed without a sink.
var ErrNoSink = errors.New("export sink not configured")

// PublishExportInput is the payload of the PublishExport activity.
// ExportedAt comes from workflow time so replays render identical documents.
type PublishExportInput struct {
	RequestID  string               `json:"request_id"`
	Samples    []domain.Sample      `json:"samples"`
	Scores     domain.ScoreSnapshot `json:"scores"`
	Modes      domain.ActiveModes   `json:"modes"`
	ExportedAt time.Time            `json:"exported_at"`
}

// PublishExportOutput lists the stored documents.
type PublishExportOutput struct {
	Results domain.ArtifactRef `json:"results"`
	Report  domain.ArtifactRef `json:"report"`
}

// Activities handles export-specific Temporal activities.
type Activities struct {
	activity.BaseActivities
	sink Sink
	now  func() time.Time
}

// NewActivities creates export activities writing to sink.
func NewActivities(base activity.BaseActivities, sink Sink) *Activities {
	return &Activities{BaseActivities: base, sink: sink, now: time.Now}
}

// PublishExport renders the results document and the report and stores both.
// Sink failures are returned as retryable errors; invalid input is not retried.
func (a *Activities) PublishExport(ctx context.Context, input PublishExportInput) (*PublishExportOutput, error) {
	if a.sink == nil {
		return nil, nonRetryable("PublishExport", ErrNoSink, "no sink")
	}
	if input.RequestID == "" {
		return nil, nonRetryable("PublishExport",
			fmt.Errorf("%w: request id is required", domain.ErrInvalidExport), "invalid input")
	}
	if err := input.Modes.Validate(); err != nil {
		return nil, nonRetryable("PublishExport",
			fmt.Errorf("%w: %w", domain.ErrInvalidExport, err), "invalid input")
	}

	run := a.RunInfo(ctx, input.RequestID)
	a.Log(ctx, "Starting PublishExport activity",
		"request_id", run.RequestID,
		"workflow_id", run.WorkflowID,
		"attempt", run.Attempt,
		"samples", len(input.Samples))

	exportedAt := input.ExportedAt
	if exportedAt.IsZero() {
		exportedAt = a.now()
	}

	published, err := Publish(ctx, a.sink, input.RequestID, input.Samples, input.Scores, input.Modes, exportedAt)
	if err != nil {
		return nil, temporal.NewApplicationErrorWithCause("export publish failed", "PublishExport", err)
	}
	a.RecordHeartbeat(ctx, published.Results.Key)

	a.emitExportPublished(ctx, input, published)

	a.Log(ctx, "PublishExport completed",
		"results_ref", published.Results.Key,
		"results_size", published.Results.Size,
		"report_ref", published.Report.Key)

	return &PublishExportOutput{Results: published.Results, Report: published.Report}, nil
}

func (a *Activities) emitExportPublished(ctx context.Context, input PublishExportInput, p Published) {
	event, err := domain.NewEvent(
		domain.EventTypeExportPublished,
		input.RequestID,
		"publish",
		"activity.publish_export",
		a.now(),
		domain.ExportPublishedPayload{
			Results: p.Results,
			Report:  p.Report,
			Samples: len(input.Samples),
		},
	)
	if err != nil {
		a.LogError(ctx, "Failed to create ExportPublished event", "error", err)
		return
	}
	a.EmitEventSafe(ctx, event.Envelope(), fmt.Sprintf("ExportPublished[%s]", input.RequestID))
}

func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}
