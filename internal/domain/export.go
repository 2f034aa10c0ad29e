package domain

import (
	"fmt"
	"time"
)

// ResultsDocument is the structured results export.
type ResultsDocument struct {
	ExportedAt string        `json:"exportedAt"`
	Config     ExportConfig  `json:"config"`
	Data       []ResultEntry `json:"data"`
}

// ExportConfig records the rubric and the active modes at export time.
type ExportConfig struct {
	Criteria           []Dimension `json:"criteria"`
	CategoricalOptions []int       `json:"categoricalOptions"`
	ContinuousRange    []float64   `json:"continuousRange"`
	ScoreTypeOverall   ScoreMode   `json:"scoreTypeOverall"`
	ScoreTypeTurn      ScoreMode   `json:"scoreTypeTurn"`
}

// NewExportConfig builds the config block for modes.
func NewExportConfig(modes ActiveModes) ExportConfig {
	return ExportConfig{
		Criteria:           Dimensions(),
		CategoricalOptions: CategoricalOptions(),
		ContinuousRange:    ContinuousRange(),
		ScoreTypeOverall:   modes.Overall,
		ScoreTypeTurn:      modes.Turn,
	}
}

// ResultEntry is one sample in the results export. Scores is nil for
// samples that have no ledger record.
type ResultEntry struct {
	ID     string             `json:"id"`
	Meta   map[string]any     `json:"meta"`
	Turns  int                `json:"turns"`
	Scores *SampleScoreRecord `json:"scores"`
}

// ExportTimestamp formats t the way exports record it (ISO-8601, UTC, millis).
func ExportTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// ExportRequest is the input of the batch export workflow: a detached copy of
// one session's dataset and ledger.
type ExportRequest struct {
	// RequestID correlates the run with emitted events and sink object names.
	RequestID string `json:"request_id" validate:"required"`

	Samples []Sample      `json:"samples" validate:"required"`
	Scores  ScoreSnapshot `json:"scores"`
	Modes   ActiveModes   `json:"modes"   validate:"required"`

	// TimeoutSeconds bounds each activity. Zero selects the default.
	TimeoutSeconds int `json:"timeout_seconds" validate:"min=0"`
}

// Validate checks the request contract.
func (r *ExportRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidExport, err)
	}
	return nil
}

// ExportOutcome is the result of a batch export run.
type ExportOutcome struct {
	Statistics Statistics  `json:"statistics"`
	Results    ArtifactRef `json:"results"`
	Report     ArtifactRef `json:"report"`
}
