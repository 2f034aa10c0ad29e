package export

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/ahrav/go-rubric/internal/domain"
	"github.com/ahrav/go-rubric/pkg/activity"
	"github.com/ahrav/go-rubric/pkg/events"
)

type capturingSink struct {
	mu     sync.Mutex
	events []events.Envelope
}

func (c *capturingSink) Append(_ context.Context, env events.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, env)
	return nil
}

func publishInput() PublishExportInput {
	return PublishExportInput{
		RequestID:  "req-1",
		Samples:    fixtureSamples(),
		Scores:     fixtureScores(),
		Modes:      domain.DefaultActiveModes(),
		ExportedAt: exportedAt,
	}
}

func TestActivities_PublishExport(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()

	store := NewMemorySink()
	sink := &capturingSink{}
	acts := NewActivities(activity.NewBaseActivities(sink), store)
	env.RegisterActivity(acts.PublishExport)

	val, err := env.ExecuteActivity(acts.PublishExport, publishInput())
	require.NoError(t, err)

	var out *PublishExportOutput
	require.NoError(t, val.Get(&out))
	resultsName, reportName := ObjectNames(exportedAt, "req-1")
	assert.Equal(t, "mem://"+resultsName, out.Results.Key)
	assert.Equal(t, "mem://"+reportName, out.Report.Key)
	assert.Equal(t, []string{resultsName, reportName}, store.Names())

	require.Len(t, sink.events, 1)
	assert.Equal(t, string(domain.EventTypeExportPublished), sink.events[0].Type)

	var payload domain.ExportPublishedPayload
	require.NoError(t, json.Unmarshal(sink.events[0].Payload, &payload))
	assert.Equal(t, 2, payload.Samples)
	assert.Equal(t, out.Results, payload.Results)
	assert.Equal(t, out.Report, payload.Report)
}

func TestActivities_PublishExportDefaultsTimestamp(t *testing.T) {
	store := NewMemorySink()
	acts := NewActivities(activity.NewBaseActivities(nil), store)
	acts.now = func() time.Time { return exportedAt }

	in := publishInput()
	in.ExportedAt = time.Time{}
	_, err := acts.PublishExport(context.Background(), in)
	require.NoError(t, err)

	resultsName, _ := ObjectNames(exportedAt, "req-1")
	_, _, ok := store.Get(resultsName)
	assert.True(t, ok)
}

func TestActivities_PublishExportRejects(t *testing.T) {
	tests := []struct {
		name    string
		sink    Sink
		modify  func(*PublishExportInput)
		wantErr error
	}{
		{"no sink", nil, func(*PublishExportInput) {}, ErrNoSink},
		{"missing request id", NewMemorySink(), func(in *PublishExportInput) { in.RequestID = "" }, domain.ErrInvalidExport},
		{"invalid modes", NewMemorySink(), func(in *PublishExportInput) { in.Modes.Turn = "ordinal" }, domain.ErrInvalidExport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acts := NewActivities(activity.NewBaseActivities(nil), tt.sink)
			in := publishInput()
			tt.modify(&in)

			_, err := acts.PublishExport(context.Background(), in)
			require.ErrorIs(t, err, tt.wantErr)

			var appErr *temporal.ApplicationError
			require.True(t, errors.As(err, &appErr))
			assert.True(t, appErr.NonRetryable())
		})
	}
}

func TestActivities_PublishExportSinkFailureIsRetryable(t *testing.T) {
	acts := NewActivities(activity.NewBaseActivities(nil), &failingSink{})

	_, err := acts.PublishExport(context.Background(), publishInput())
	require.ErrorIs(t, err, errSinkDown)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.False(t, appErr.NonRetryable())
	assert.Equal(t, "PublishExport", appErr.Type())
}
