// Package domain aggregation defines the statistics produced from the score
// ledger. The types here are the output contract of the aggregator and are
// embedded in exports and activity payloads, so they serialize to the
// camelCase shape consumed by the presentation layer.
//
// Aggregation Model:
//   - Statistics are computed per scope (overall, turn) and per dimension.
//   - Continuous and categorical values are summarized independently.
//   - Not-applicable results (n = 0) serialize as null, never NaN.
//   - Categorical counts keep first-seen order so mode ties are reproducible.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// HistogramBins is the fixed number of continuous histogram bins.
const HistogramBins = 20

// Statistics summarizes the ledger across all loaded samples.
type Statistics struct {
	// CompletedSamples counts loaded samples with any score record.
	CompletedSamples int `json:"completedSamples"`

	// TotalSamples is the number of loaded samples.
	TotalSamples int `json:"totalSamples"`

	// HarmfulRate is HarmfulCount / ScoredSlots, or 0 when no slot was examined.
	HarmfulRate float64 `json:"harmfulRate"`

	// HarmfulCount counts recorded values equal to -1.
	HarmfulCount int `json:"harmfulCount"`

	// ScoredSlots counts one slot per dimension per examined scope instance,
	// whether or not a value was recorded in it.
	ScoredSlots int `json:"scoredSlots"`

	Overall map[Dimension]CriterionStats `json:"overall"`
	Turn    map[Dimension]CriterionStats `json:"turn"`
}

// ForScope returns the per-dimension statistics of scope.
func (s Statistics) ForScope(scope Scope) map[Dimension]CriterionStats {
	if scope == ScopeTurn {
		return s.Turn
	}
	return s.Overall
}

// CriterionStats holds both summaries for one dimension within one scope.
type CriterionStats struct {
	Continuous  ContinuousStats  `json:"continuous"`
	Categorical CategoricalStats `json:"categorical"`
}

// ContinuousStats summarizes continuous values.
type ContinuousStats struct {
	N         int            `json:"n"`
	Mean      *float64       `json:"mean"`
	Median    *float64       `json:"median"`
	Histogram []HistogramBin `json:"histogram"`
}

// HistogramBin is one fixed-width bin over the continuous range.
type HistogramBin struct {
	Label int `json:"label"`
	Count int `json:"count"`
}

// CategoricalStats summarizes categorical values.
type CategoricalStats struct {
	Counts CategoryCounts `json:"counts"`
	Mode   *int           `json:"mode"`
}

// CategoryCount is the number of occurrences of one categorical value.
type CategoryCount struct {
	Value int `json:"value"`
	Count int `json:"count"`
}

// CategoryCounts is an insertion-ordered count table. It serializes as a JSON
// object keyed by value, preserving first-seen order in both directions.
type CategoryCounts []CategoryCount

// Add increments value, appending it when first seen.
func (c *CategoryCounts) Add(value int) {
	for i := range *c {
		if (*c)[i].Value == value {
			(*c)[i].Count++
			return
		}
	}
	*c = append(*c, CategoryCount{Value: value, Count: 1})
}

// Get returns the count for value.
func (c CategoryCounts) Get(value int) int {
	for _, cc := range c {
		if cc.Value == value {
			return cc.Count
		}
	}
	return 0
}

// Total returns the sum of all counts.
func (c CategoryCounts) Total() int {
	var n int
	for _, cc := range c {
		n += cc.Count
	}
	return n
}

// Mode returns the most frequent value; ties go to the value seen first.
func (c CategoryCounts) Mode() (int, bool) {
	best := -1
	for i, cc := range c {
		if best < 0 || cc.Count > c[best].Count {
			best = i
		}
	}
	if best < 0 {
		return 0, false
	}
	return c[best].Value, true
}

// AsMap returns the counts as a plain map.
func (c CategoryCounts) AsMap() map[int]int {
	m := make(map[int]int, len(c))
	for _, cc := range c {
		m[cc.Value] = cc.Count
	}
	return m
}

// MarshalJSON implements json.Marshaler.
func (c CategoryCounts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, cc := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%q:%d", strconv.Itoa(cc.Value), cc.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, keeping the document's key order.
func (c *CategoryCounts) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("category counts: expected object, got %v", tok)
	}

	out := CategoryCounts{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		value, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("category counts: key %q: %w", key, err)
		}
		var count int
		if err := dec.Decode(&count); err != nil {
			return fmt.Errorf("category counts: value for %q: %w", key, err)
		}
		out = append(out, CategoryCount{Value: value, Count: count})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}

// ActiveModes holds the reviewer-selected default mode for each scope.
type ActiveModes struct {
	Overall ScoreMode `json:"overall" yaml:"overall" validate:"required,oneof=continuous categorical"`
	Turn    ScoreMode `json:"turn"    yaml:"turn"    validate:"required,oneof=continuous categorical"`
}

// DefaultActiveModes returns continuous scoring for both scopes.
func DefaultActiveModes() ActiveModes {
	return ActiveModes{Overall: ModeContinuous, Turn: ModeContinuous}
}

// For returns the active mode of scope.
func (m ActiveModes) For(scope Scope) ScoreMode {
	if scope == ScopeTurn {
		return m.Turn
	}
	return m.Overall
}

// Validate checks that both modes are known.
func (m *ActiveModes) Validate() error { return validate.Struct(m) }
