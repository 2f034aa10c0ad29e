package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Turn is one user/assistant exchange within a sample.
// Image is an opaque reference passed through unchanged.
type Turn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
	Image     string `json:"image,omitempty"`
}

// Sample is one multi-round dialogue. Samples are immutable once loaded.
type Sample struct {
	// ID is the explicit identifier, or the zero-based load position when the
	// source element carried none.
	ID string `json:"id"`

	// HasExplicitID is false when ID was derived from the load position.
	HasExplicitID bool `json:"-"`

	// Meta holds opaque annotations from the dataset.
	Meta map[string]any `json:"meta,omitempty"`

	// Rounds are the ordered turns of the dialogue.
	Rounds []Turn `json:"rounds"`
}

// TurnCount returns the number of rounds.
func (s Sample) TurnCount() int { return len(s.Rounds) }

// rawSample mirrors the dataset element before id resolution.
type rawSample struct {
	ID     json.RawMessage `json:"id"`
	Meta   map[string]any  `json:"meta"`
	Rounds []Turn          `json:"rounds"`
}

// FallbackID returns the positional identifier for the element at index.
func FallbackID(index int) string { return strconv.Itoa(index) }

// ParseDataset decodes a dataset document: a JSON array of samples.
// Elements without an id receive FallbackID(position). Any structural problem
// fails the whole parse so callers can keep their previous state.
func ParseDataset(data []byte) ([]Sample, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidDataset)
		}
		return nil, fmt.Errorf("%w: top-level value must be an array", ErrInvalidDataset)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}

	samples := make([]Sample, 0, len(elems))
	for i, elem := range elems {
		if t := bytes.TrimSpace(elem); len(t) == 0 || t[0] != '{' {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrInvalidDataset, i)
		}
		var raw rawSample
		if err := json.Unmarshal(elem, &raw); err != nil {
			return nil, fmt.Errorf("%w: element %d: %w", ErrInvalidDataset, i, err)
		}

		s := Sample{Meta: raw.Meta, Rounds: raw.Rounds}
		if s.Rounds == nil {
			s.Rounds = []Turn{}
		}
		if id, ok := decodeID(raw.ID); ok {
			s.ID, s.HasExplicitID = id, true
		} else {
			s.ID = FallbackID(i)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// decodeID accepts string ids and, leniently, numeric ids.
func decodeID(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", false
		}
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}
