// Package domain scoring provides the score data model for reviewer annotations.
// It defines the rubric dimensions, the two scoring modes, recorded values and
// the per-sample score record that the ledger stores and the aggregator reads.
//
// Scoring Model:
//   - Four fixed rubric dimensions, each scored per scope (overall or per turn).
//   - Two mutually exclusive modes: continuous [-1, 100] and categorical {-1..3}.
//   - The value -1 marks harmful content in both modes.
//   - The mode is recorded per scope at write time, never read from ambient state.
//   - Turn scopes are sparse: only turns a reviewer touched exist.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// ScoreMode identifies how a recorded value was entered.
type ScoreMode string

const (
	// ModeContinuous records free numbers in the inclusive range [-1, 100].
	ModeContinuous ScoreMode = "continuous"

	// ModeCategorical records one of the discrete options {-1, 0, 1, 2, 3}.
	ModeCategorical ScoreMode = "categorical"
)

// String returns the string representation of the mode.
func (m ScoreMode) String() string { return string(m) }

// IsValid reports whether m is one of the known modes.
func (m ScoreMode) IsValid() bool { return m == ModeContinuous || m == ModeCategorical }

// Accepts reports whether v satisfies the range or membership constraint of m.
func (m ScoreMode) Accepts(v float64) bool {
	switch m {
	case ModeContinuous:
		return !math.IsNaN(v) && v >= ContinuousMin && v <= ContinuousMax
	case ModeCategorical:
		return IsCategoricalOption(v)
	default:
		return false
	}
}

// Score range constants.
const (
	// HarmfulValue marks harmful content in both scoring modes.
	HarmfulValue = -1

	// ContinuousMin is the inclusive lower bound for continuous scores.
	ContinuousMin = -1.0

	// ContinuousMax is the inclusive upper bound for continuous scores.
	ContinuousMax = 100.0
)

// categoricalOptions lists the discrete values in their canonical order.
var categoricalOptions = []int{-1, 0, 1, 2, 3}

// CategoricalOptions returns a fresh copy of the categorical option set.
func CategoricalOptions() []int { return slices.Clone(categoricalOptions) }

// ContinuousRange returns the inclusive continuous range as a two-element slice.
func ContinuousRange() []float64 { return []float64{ContinuousMin, ContinuousMax} }

// IsCategoricalOption reports whether v is an integer drawn from the categorical set.
func IsCategoricalOption(v float64) bool {
	if v != math.Trunc(v) {
		return false
	}
	return slices.Contains(categoricalOptions, int(v))
}

// Dimension is a rubric key.
type Dimension string

// The four rubric dimensions scored for every scope.
const (
	DimVisualGrounding      Dimension = "c1" // Faithfulness to the image content
	DimInstructionFollowing Dimension = "c2" // Adherence to the user's request
	DimFactualAccuracy      Dimension = "c3" // Correctness of stated facts
	DimDialogueCoherence    Dimension = "c4" // Consistency with earlier rounds
)

var dimensions = []Dimension{
	DimVisualGrounding,
	DimInstructionFollowing,
	DimFactualAccuracy,
	DimDialogueCoherence,
}

var dimensionLabels = map[Dimension]string{
	DimVisualGrounding:      "Visual Grounding",
	DimInstructionFollowing: "Instruction Following",
	DimFactualAccuracy:      "Factual Accuracy",
	DimDialogueCoherence:    "Dialogue Coherence",
}

// Dimensions returns the rubric dimensions in their fixed order.
// Returns a fresh copy to prevent mutation.
func Dimensions() []Dimension { return slices.Clone(dimensions) }

// IsValid reports whether d is one of the four rubric dimensions.
func (d Dimension) IsValid() bool { return slices.Contains(dimensions, d) }

// Label returns the human-readable name of the dimension.
func (d Dimension) Label() string {
	if l, ok := dimensionLabels[d]; ok {
		return l
	}
	return string(d)
}

// Scope selects which part of a sample a score applies to.
type Scope string

const (
	// ScopeOverall scores the sample as a whole.
	ScopeOverall Scope = "overall"

	// ScopeTurn scores a single conversational turn.
	ScopeTurn Scope = "turn"
)

// ScoreValue is a single recorded number.
// Values decoded from JSON that are not numbers are kept verbatim so they
// survive a save/restore cycle, but they report ok=false from Float64.
type ScoreValue struct {
	num float64
	raw json.RawMessage
	ok  bool
}

// NumberValue wraps a numeric score.
func NumberValue(v float64) ScoreValue { return ScoreValue{num: v, ok: true} }

// Float64 returns the numeric value and whether the value is numeric.
func (v ScoreValue) Float64() (float64, bool) { return v.num, v.ok }

// IsHarmful reports whether the value is the reserved harmful marker.
func (v ScoreValue) IsHarmful() bool { return v.ok && v.num == HarmfulValue }

// MarshalJSON implements json.Marshaler.
func (v ScoreValue) MarshalJSON() ([]byte, error) {
	if v.ok {
		return json.Marshal(v.num)
	}
	if len(v.raw) == 0 {
		return []byte("null"), nil
	}
	return v.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler. It never fails for well-formed JSON.
func (v *ScoreValue) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil && !bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*v = ScoreValue{num: f, ok: true}
		return nil
	}
	if !json.Valid(data) {
		return fmt.Errorf("%w: malformed score value", ErrInvalidScoreValue)
	}
	*v = ScoreValue{raw: append(json.RawMessage(nil), data...)}
	return nil
}

// CriterionScore is the recorded value of one dimension within one scope,
// tagged with the mode of the scope it lives in.
type CriterionScore struct {
	Mode  ScoreMode  `json:"mode,omitempty"`
	Value ScoreValue `json:"value"`
}

// ScopeScores holds the criteria of one scope and the mode that was active
// the last time the scope was written. An empty Mode marks legacy data.
type ScopeScores struct {
	Mode     ScoreMode                `json:"mode,omitempty"`
	Criteria map[Dimension]ScoreValue `json:"criteria"`
}

// Criterion returns the value recorded for d together with the scope's mode.
func (s ScopeScores) Criterion(d Dimension) (CriterionScore, bool) {
	v, ok := s.Criteria[d]
	if !ok {
		return CriterionScore{}, false
	}
	return CriterionScore{Mode: s.Mode, Value: v}, true
}

// IsEmpty reports whether no criterion has been recorded.
func (s ScopeScores) IsEmpty() bool { return len(s.Criteria) == 0 }

// Clone returns a deep copy.
func (s ScopeScores) Clone() ScopeScores {
	out := ScopeScores{Mode: s.Mode, Criteria: make(map[Dimension]ScoreValue, len(s.Criteria))}
	for k, v := range s.Criteria {
		if v.raw != nil {
			v.raw = append(json.RawMessage(nil), v.raw...)
		}
		out.Criteria[k] = v
	}
	return out
}

// SampleScoreRecord is everything recorded for one sample.
type SampleScoreRecord struct {
	Overall ScopeScores         `json:"overall"`
	Turns   map[int]ScopeScores `json:"turns"`
}

// EmptyRecord returns the empty-but-valid record used for unscored samples.
func EmptyRecord() SampleScoreRecord {
	return SampleScoreRecord{
		Overall: ScopeScores{Criteria: map[Dimension]ScoreValue{}},
		Turns:   map[int]ScopeScores{},
	}
}

// Clone returns a deep copy with non-nil maps.
func (r SampleScoreRecord) Clone() SampleScoreRecord {
	out := SampleScoreRecord{
		Overall: r.Overall.Clone(),
		Turns:   make(map[int]ScopeScores, len(r.Turns)),
	}
	for idx, scope := range r.Turns {
		out.Turns[idx] = scope.Clone()
	}
	return out
}

// TurnIndices returns the recorded turn indices in ascending order.
func (r SampleScoreRecord) TurnIndices() []int {
	idx := make([]int, 0, len(r.Turns))
	for i := range r.Turns {
		idx = append(idx, i)
	}
	slices.Sort(idx)
	return idx
}

// RecordLookup resolves the score record of a sample id.
type RecordLookup interface {
	Lookup(sampleID string) (SampleScoreRecord, bool)
}

// ScoreSnapshot is a detached copy of every recorded sample keyed by sample id.
// It is the persisted and exported form of the ledger.
type ScoreSnapshot map[string]SampleScoreRecord

// Lookup implements RecordLookup.
func (s ScoreSnapshot) Lookup(sampleID string) (SampleScoreRecord, bool) {
	r, ok := s[sampleID]
	return r, ok
}

// Clone returns a deep copy.
func (s ScoreSnapshot) Clone() ScoreSnapshot {
	out := make(ScoreSnapshot, len(s))
	for id, r := range s {
		out[id] = r.Clone()
	}
	return out
}

// ScoreWrite describes one reviewer input. Mode is the mode active for the
// target scope at write time and must be passed explicitly.
type ScoreWrite struct {
	SampleID  string    `json:"sample_id"  validate:"required"`
	Scope     Scope     `json:"scope"      validate:"required,oneof=overall turn"`
	Dimension Dimension `json:"dimension"  validate:"required"`
	TurnIndex *int      `json:"turn_index,omitempty"`
	Mode      ScoreMode `json:"mode"       validate:"required,oneof=continuous categorical"`
	Value     float64   `json:"value"`
}

// Validate checks the structural constraints and that Value fits Mode.
func (w *ScoreWrite) Validate() error {
	if err := validate.Struct(w); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidScoreWrite, err)
	}
	if !w.Dimension.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownDimension, w.Dimension)
	}
	if w.Scope == ScopeTurn && (w.TurnIndex == nil || *w.TurnIndex < 0) {
		return fmt.Errorf("%w: turn scope requires a non-negative turn index", ErrInvalidScoreWrite)
	}
	if !w.Mode.Accepts(w.Value) {
		return fmt.Errorf("%w: %v is not a %s score", ErrInvalidScoreValue, w.Value, w.Mode)
	}
	return nil
}
