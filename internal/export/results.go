// Package export renders the score ledger into the results document and the
// human-readable report, and publishes both to a storage sink.
//
// The render functions are pure: they read a dataset and a score snapshot and
// never mutate either. Document order always follows dataset order.
package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ahrav/go-rubric/internal/domain"
)

// ExportResults builds the results document. Samples without a record carry
// a null scores entry.
func ExportResults(
	samples []domain.Sample,
	scores domain.RecordLookup,
	modes domain.ActiveModes,
	exportedAt time.Time,
) domain.ResultsDocument {
	doc := domain.ResultsDocument{
		ExportedAt: domain.ExportTimestamp(exportedAt),
		Config:     domain.NewExportConfig(modes),
		Data:       make([]domain.ResultEntry, 0, len(samples)),
	}

	for _, s := range samples {
		entry := domain.ResultEntry{
			ID:    s.ID,
			Meta:  s.Meta,
			Turns: s.TurnCount(),
		}
		if scores != nil {
			if rec, ok := scores.Lookup(s.ID); ok {
				rec = rec.Clone()
				entry.Scores = &rec
			}
		}
		doc.Data = append(doc.Data, entry)
	}
	return doc
}

// MarshalResults renders the results document as indented JSON.
func MarshalResults(doc domain.ResultsDocument) ([]byte, error) {
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal results: %w", err)
	}
	return out, nil
}

// ImportResults reads a results document back into a score snapshot.
// Entries with null scores are skipped, so a reset sample stays absent.
func ImportResults(data []byte) (domain.ScoreSnapshot, error) {
	var doc domain.ResultsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidExport, err)
	}
	if doc.Data == nil {
		return nil, fmt.Errorf("%w: missing data array", domain.ErrInvalidExport)
	}

	snap := make(domain.ScoreSnapshot, len(doc.Data))
	for i, entry := range doc.Data {
		if entry.ID == "" {
			return nil, fmt.Errorf("%w: entry %d has no id", domain.ErrInvalidExport, i)
		}
		if entry.Scores == nil {
			continue
		}
		snap[entry.ID] = entry.Scores.Clone()
	}
	return snap, nil
}
