// Package ledger records reviewer scores keyed by sample id.
//
// The ledger is the single source of truth for persistence and export. It
// references samples only by id, so reloading a dataset never strands the
// scores of ids that are still present. A sample id appears in the ledger iff
// a score was written for it and not reset since.
package ledger

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/ahrav/go-rubric/internal/domain"
)

// Ledger maps sample ids to their score records. It is owned by a single
// session and is not safe for concurrent use.
type Ledger struct {
	records map[string]domain.SampleScoreRecord
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{records: map[string]domain.SampleScoreRecord{}}
}

// FromSnapshot returns a ledger holding a deep copy of snap.
func FromSnapshot(snap domain.ScoreSnapshot) *Ledger {
	l := New()
	l.Restore(snap)
	return l
}

// WriteScore records one value. The record is created on first write. The
// scope's mode is set to w.Mode for the whole scope, which re-tags any sibling
// dimensions already recorded in it.
func (l *Ledger) WriteScore(w domain.ScoreWrite) error {
	if err := w.Validate(); err != nil {
		return err
	}

	rec, ok := l.records[w.SampleID]
	if !ok {
		rec = domain.EmptyRecord()
	}

	value := domain.NumberValue(w.Value)
	switch w.Scope {
	case domain.ScopeOverall:
		rec.Overall = setCriterion(rec.Overall, w.Mode, w.Dimension, value)
	case domain.ScopeTurn:
		if rec.Turns == nil {
			rec.Turns = map[int]domain.ScopeScores{}
		}
		rec.Turns[*w.TurnIndex] = setCriterion(rec.Turns[*w.TurnIndex], w.Mode, w.Dimension, value)
	default:
		return fmt.Errorf("%w: scope %q", domain.ErrInvalidScoreWrite, w.Scope)
	}

	l.records[w.SampleID] = rec
	return nil
}

func setCriterion(s domain.ScopeScores, mode domain.ScoreMode, d domain.Dimension, v domain.ScoreValue) domain.ScopeScores {
	if s.Criteria == nil {
		s.Criteria = map[domain.Dimension]domain.ScoreValue{}
	}
	s.Mode = mode
	s.Criteria[d] = v
	return s
}

// ResetSample removes everything recorded for id and reports whether a
// record existed. Resetting an unknown id is a no-op.
func (l *Ledger) ResetSample(id string) bool {
	_, ok := l.records[id]
	delete(l.records, id)
	return ok
}

// ReadSample returns a copy of the record for id, or the empty default.
// Reading never creates an entry.
func (l *Ledger) ReadSample(id string) domain.SampleScoreRecord {
	if rec, ok := l.records[id]; ok {
		return rec.Clone()
	}
	return domain.EmptyRecord()
}

// Lookup implements domain.RecordLookup.
func (l *Ledger) Lookup(id string) (domain.SampleScoreRecord, bool) {
	rec, ok := l.records[id]
	if !ok {
		return domain.SampleScoreRecord{}, false
	}
	return rec.Clone(), true
}

// Has reports whether id has a record.
func (l *Ledger) Has(id string) bool {
	_, ok := l.records[id]
	return ok
}

// Len returns the number of recorded samples.
func (l *Ledger) Len() int { return len(l.records) }

// IDs returns the recorded sample ids in sorted order.
func (l *Ledger) IDs() []string {
	ids := make([]string, 0, len(l.records))
	for id := range l.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Snapshot returns a detached deep copy of the ledger.
func (l *Ledger) Snapshot() domain.ScoreSnapshot {
	return domain.ScoreSnapshot(l.records).Clone()
}

// Restore replaces the contents with a deep copy of snap.
func (l *Ledger) Restore(snap domain.ScoreSnapshot) {
	l.records = make(map[string]domain.SampleScoreRecord, len(snap))
	for id, rec := range snap {
		l.records[id] = rec.Clone()
	}
}

// MarshalJSON encodes the ledger as an object keyed by sample id.
func (l *Ledger) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.records)
}

// UnmarshalJSON replaces the ledger with the decoded document.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	var snap domain.ScoreSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode ledger: %w", err)
	}
	l.Restore(snap)
	return nil
}
