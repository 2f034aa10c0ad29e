// Package session ties the sample store, the score ledger and the active
// scoring modes into the single-reviewer annotation session.
//
// Architecture:
//   - One mutex guards every public method so the HTTP server may share a session.
//   - The in-memory ledger is authoritative. Every mutation is followed by a
//     best-effort save to the key-value store; save failures are logged only.
//   - Statistics are computed lazily and cached until the next mutation.
//   - Mutations emit events to an events.EventSink.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-rubric/internal/aggregation"
	"github.com/ahrav/go-rubric/internal/domain"
	"github.com/ahrav/go-rubric/internal/export"
	"github.com/ahrav/go-rubric/internal/kvstore"
	"github.com/ahrav/go-rubric/internal/ledger"
	"github.com/ahrav/go-rubric/internal/samples"
	"github.com/ahrav/go-rubric/pkg/events"
)

const (
	producer    = "session"
	saveTimeout = 5 * time.Second
)

// Options configures a Session. Zero values select in-memory persistence,
// a no-op event sink, the default logger and the wall clock.
type Options struct {
	KV     kvstore.Store
	Events events.EventSink
	Logger *slog.Logger
	Clock  func() time.Time

	// ID correlates emitted events. A random id is generated when empty.
	ID string
}

// Session is one reviewer's working state.
type Session struct {
	mu     sync.Mutex
	store  *samples.Store
	ledger *ledger.Ledger
	modes  domain.ActiveModes
	stats  *domain.Statistics

	kv     kvstore.Store
	sink   events.EventSink
	logger *slog.Logger
	now    func() time.Time
	id     string
	seq    uint64
}

// New creates an empty session.
func New(opts Options) *Session {
	s := &Session{
		store:  samples.NewStore(),
		ledger: ledger.New(),
		modes:  domain.DefaultActiveModes(),
		kv:     opts.KV,
		sink:   opts.Events,
		logger: opts.Logger,
		now:    opts.Clock,
		id:     opts.ID,
	}
	if s.kv == nil {
		s.kv = kvstore.NewMemoryStore()
	}
	if s.sink == nil {
		s.sink = events.NewNoOpEventSink()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "session")
	if s.now == nil {
		s.now = time.Now
	}
	if s.id == "" {
		s.id = "session-" + uuid.New().String()
	}
	return s
}

// ID returns the session correlation id.
func (s *Session) ID() string { return s.id }

// Restore reloads the dataset and score caches from the key-value store.
// Missing or malformed caches are logged and skipped; Restore only fails when
// ctx is done.
func (s *Session) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if raw, ok := s.loadCache(ctx, kvstore.KeyDataset); ok {
		if err := s.store.Load(raw); err != nil {
			s.logger.Warn("ignoring malformed dataset cache", "error", err)
		}
	}
	if raw, ok := s.loadCache(ctx, kvstore.KeyScores); ok {
		var snap domain.ScoreSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			s.logger.Warn("ignoring malformed scores cache", "error", err)
		} else {
			s.ledger.Restore(snap)
		}
	}
	s.stats = nil

	s.logger.Info("session restored",
		"samples", s.store.Len(),
		"recorded", s.ledger.Len())
	return ctx.Err()
}

func (s *Session) loadCache(ctx context.Context, key string) ([]byte, bool) {
	raw, err := s.kv.Load(ctx, key)
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
		return nil, false
	case err != nil:
		s.logger.Warn("cache unavailable", "key", key, "error", err)
		return nil, false
	}
	return raw, true
}

// LoadDataset replaces the dataset. A parse error is returned and leaves the
// session untouched. Scores of ids absent from the new dataset are kept.
func (s *Session) LoadDataset(ctx context.Context, raw []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Load(raw); err != nil {
		return 0, err
	}
	s.stats = nil
	s.save(ctx, kvstore.KeyDataset, s.store.Raw())

	fallback := 0
	for _, sample := range s.store.Samples() {
		if !sample.HasExplicitID {
			fallback++
		}
	}
	s.emit(ctx, domain.EventTypeDatasetLoaded, domain.DatasetLoadedPayload{
		Samples:     s.store.Len(),
		FallbackIDs: fallback,
	})
	s.logger.Info("dataset loaded", "samples", s.store.Len(), "fallback_ids", fallback)
	return s.store.Len(), nil
}

// Modes returns the active modes.
func (s *Session) Modes() domain.ActiveModes {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modes
}

// SetModes replaces the active modes. Recorded scores keep their own tags.
func (s *Session) SetModes(m domain.ActiveModes) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidScoreWrite, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modes = m
	return nil
}

// ScoreInput is one reviewer input. Mode overrides the active mode of the
// scope when set.
type ScoreInput struct {
	SampleID  string
	Scope     domain.Scope
	Dimension domain.Dimension
	TurnIndex *int
	Value     float64
	Mode      domain.ScoreMode
}

// WriteScore records in against a loaded sample and returns the updated record.
func (s *Session) WriteScore(ctx context.Context, in ScoreInput) (domain.SampleScoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sample, ok := s.store.Lookup(in.SampleID)
	if !ok {
		return domain.SampleScoreRecord{}, fmt.Errorf("%w: %q", domain.ErrUnknownSample, in.SampleID)
	}
	if in.Scope == domain.ScopeTurn && in.TurnIndex != nil && *in.TurnIndex >= sample.TurnCount() {
		return domain.SampleScoreRecord{}, fmt.Errorf("%w: turn %d of %d",
			domain.ErrTurnOutOfRange, *in.TurnIndex, sample.TurnCount())
	}

	mode := in.Mode
	if mode == "" {
		mode = s.modes.For(in.Scope)
	}
	w := domain.ScoreWrite{
		SampleID:  in.SampleID,
		Scope:     in.Scope,
		Dimension: in.Dimension,
		TurnIndex: in.TurnIndex,
		Mode:      mode,
		Value:     in.Value,
	}
	if err := s.ledger.WriteScore(w); err != nil {
		return domain.SampleScoreRecord{}, err
	}
	s.stats = nil
	s.saveScores(ctx)

	s.emit(ctx, domain.EventTypeScoreRecorded, domain.ScoreRecordedPayload{
		SampleID:  w.SampleID,
		Scope:     w.Scope,
		Dimension: w.Dimension,
		TurnIndex: w.TurnIndex,
		Mode:      w.Mode,
		Value:     w.Value,
	})
	return s.ledger.ReadSample(in.SampleID), nil
}

// ResetSample removes every score of id and reports whether any existed.
func (s *Session) ResetSample(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	existed := s.ledger.ResetSample(id)
	if existed {
		s.stats = nil
		s.saveScores(ctx)
	}
	s.emit(ctx, domain.EventTypeSampleReset, domain.SampleResetPayload{SampleID: id, Existed: existed})
	return existed
}

// ReadSample returns the record of id or the empty default. It never creates
// a ledger entry.
func (s *Session) ReadSample(id string) domain.SampleScoreRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.ReadSample(id)
}

// SampleView is a loaded sample with its scores.
type SampleView struct {
	Index  int                      `json:"index"`
	Sample domain.Sample            `json:"sample"`
	Scores domain.SampleScoreRecord `json:"scores"`
	Scored bool                     `json:"scored"`
}

// Sample returns the sample with id together with its record.
func (s *Session) Sample(id string) (SampleView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sample, ok := s.store.Lookup(id)
	if !ok {
		return SampleView{}, fmt.Errorf("%w: %q", domain.ErrUnknownSample, id)
	}
	return s.view(sample), nil
}

func (s *Session) view(sample domain.Sample) SampleView {
	idx := 0
	for i, other := range s.store.Samples() {
		if other.ID == sample.ID {
			idx = i
			break
		}
	}
	return SampleView{
		Index:  idx,
		Sample: sample,
		Scores: s.ledger.ReadSample(sample.ID),
		Scored: s.ledger.Has(sample.ID),
	}
}

// SampleSummary is one row of the sample list.
type SampleSummary struct {
	ID     string `json:"id"`
	Turns  int    `json:"turns"`
	Scored bool   `json:"scored"`
}

// Summaries lists the loaded samples in dataset order.
func (s *Session) Summaries() []SampleSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SampleSummary, 0, s.store.Len())
	for _, sample := range s.store.Samples() {
		out = append(out, SampleSummary{
			ID:     sample.ID,
			Turns:  sample.TurnCount(),
			Scored: s.ledger.Has(sample.ID),
		})
	}
	return out
}

// Statistics returns the aggregate over the current dataset and ledger.
func (s *Session) Statistics() domain.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statistics()
}

func (s *Session) statistics() domain.Statistics {
	if s.stats == nil {
		stats := aggregation.ComputeStatistics(s.store.Samples(), s.ledger)
		s.stats = &stats
	}
	return *s.stats
}

// ExportResults renders the results document at the current time.
func (s *Session) ExportResults() domain.ResultsDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return export.ExportResults(s.store.Samples(), s.ledger, s.modes, s.now())
}

// ExportReport renders the markdown report.
func (s *Session) ExportReport() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return export.RenderReport(s.statistics())
}

// Publish writes both export documents to sink.
func (s *Session) Publish(ctx context.Context, sink export.Sink) (export.Published, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return export.Publish(ctx, sink, "", s.store.Samples(), s.ledger, s.modes, s.now())
}

// ExportRequest returns a detached copy of the session for a batch export run.
func (s *Session) ExportRequest(requestID string) domain.ExportRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	sampleCopy := s.store.Clone()
	if sampleCopy == nil {
		sampleCopy = []domain.Sample{}
	}
	return domain.ExportRequest{
		RequestID: requestID,
		Samples:   sampleCopy,
		Scores:    s.ledger.Snapshot(),
		Modes:     s.modes,
	}
}

// ImportResults replaces the ledger with the scores of a results document
// and returns the number of imported records.
func (s *Session) ImportResults(ctx context.Context, raw []byte) (int, error) {
	snap, err := export.ImportResults(raw)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.Restore(snap)
	s.stats = nil
	s.saveScores(ctx)
	s.logger.Info("results imported", "records", len(snap))
	return len(snap), nil
}

// CursorState describes the navigation position.
type CursorState struct {
	Index    int    `json:"index"`
	Total    int    `json:"total"`
	SampleID string `json:"sample_id,omitempty"`
}

// Cursor returns the current navigation position.
func (s *Session) Cursor() CursorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor()
}

func (s *Session) cursor() CursorState {
	st := CursorState{Index: s.store.Cursor(), Total: s.store.Len()}
	if cur, ok := s.store.Current(); ok {
		st.SampleID = cur.ID
	}
	return st
}

// Seek moves the cursor to index i, clamped to the dataset.
func (s *Session) Seek(i int) CursorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Seek(i)
	return s.cursor()
}

// Navigation moves understood by Move.
const (
	MoveNext         = "next"
	MovePrev         = "prev"
	MoveNextUnscored = "next-unscored"
)

// ErrUnknownMove indicates an unsupported navigation move.
var ErrUnknownMove = errors.New("unknown move")

// Move applies a relative navigation move.
func (s *Session) Move(move string) (CursorState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch move {
	case MoveNext:
		s.store.Next()
	case MovePrev:
		s.store.Prev()
	case MoveNextUnscored:
		s.store.NextUnscored(s.ledger.Has)
	default:
		return s.cursor(), fmt.Errorf("%w: %q", ErrUnknownMove, move)
	}
	return s.cursor(), nil
}

func (s *Session) saveScores(ctx context.Context) {
	raw, err := json.Marshal(s.ledger)
	if err != nil {
		s.logger.Error("encode scores cache", "error", err)
		return
	}
	s.save(ctx, kvstore.KeyScores, raw)
}

// save stores value under key. Failures are logged and otherwise ignored.
func (s *Session) save(ctx context.Context, key string, value []byte) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := s.kv.Save(ctx, key, value); err != nil {
		s.logger.Warn("persist failed", "key", key, "error", err)
	}
}

func (s *Session) emit(ctx context.Context, eventType domain.EventType, payload any) {
	s.seq++
	event, err := domain.NewEvent(eventType, s.id, strconv.FormatUint(s.seq, 10), producer, s.now(), payload)
	if err != nil {
		s.logger.Error("build event", "type", eventType, "error", err)
		return
	}
	if err := s.sink.Append(ctx, event.Envelope()); err != nil {
		s.logger.Warn("emit event", "type", eventType, "error", err)
	}
}
