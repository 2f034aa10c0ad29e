// Package worker exposes helpers to register workflows/activities with a Temporal worker.
package worker

import (
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-rubric/internal/aggregation"
	"github.com/ahrav/go-rubric/internal/export"
	"github.com/ahrav/go-rubric/internal/workflow"
	"github.com/ahrav/go-rubric/pkg/activity"
	"github.com/ahrav/go-rubric/pkg/events"
)

// Registrar is the subset of a Temporal worker used for registration.
// Both sdkworker.Worker and the SDK test environments satisfy it.
type Registrar interface {
	RegisterWorkflow(w interface{})
	RegisterActivity(a interface{})
}

var _ Registrar = (sdkworker.Worker)(nil)

// RegisterAll registers the export workflow and its activities.
// This function must be called during worker initialization before starting
// the worker. The registration is not thread-safe and should only be called once
// during application startup.
//
// A nil eventSink selects the no-op sink. opts configure the shared activity base.
func RegisterAll(w Registrar, sink export.Sink, eventSink events.EventSink, opts ...activity.Option) {
	if eventSink == nil {
		eventSink = events.NewNoOpEventSink()
	}
	base := activity.NewBaseActivities(eventSink, opts...)

	aggregationActivities := aggregation.NewActivities(base)
	exportActivities := export.NewActivities(base, sink)

	w.RegisterWorkflow(workflow.ExportWorkflow)

	w.RegisterActivity(aggregationActivities.ComputeStatistics)
	w.RegisterActivity(exportActivities.PublishExport)
}
