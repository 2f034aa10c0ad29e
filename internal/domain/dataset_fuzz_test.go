package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

// FuzzParseDataset checks that arbitrary documents never panic the parser and
// that a failed parse yields nothing at all.
func FuzzParseDataset(f *testing.F) {
	f.Add([]byte(`[]`))
	f.Add([]byte(`[{"id":"a","rounds":[{"user":"u","assistant":"x"}]}]`))
	f.Add([]byte(`[{"rounds":[]},{"id":7},{"id":""},{"id":null}]`))
	f.Add([]byte(`[{"id":"a"},1]`))
	f.Add([]byte(`[{"id":"a","rounds":5}]`))
	f.Add([]byte(`{"id":"a"}`))
	f.Add([]byte(`  [ {"meta":{"k":[1,2]}} ]  `))
	f.Add([]byte(`[`))
	f.Add([]byte(``))
	f.Add([]byte("[{\"id\":\"\xff\"}]"))

	f.Fuzz(func(t *testing.T, data []byte) {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("ParseDataset panicked on %q: %v", data, r)
			}
		}()

		samples, err := ParseDataset(data)
		if err != nil {
			if !errors.Is(err, ErrInvalidDataset) {
				t.Errorf("error %v does not wrap ErrInvalidDataset", err)
			}
			if samples != nil {
				t.Errorf("failed parse returned %d samples", len(samples))
			}
			return
		}

		var elems []json.RawMessage
		if err := json.Unmarshal(data, &elems); err != nil {
			t.Fatalf("accepted a document that is not a JSON array: %q", data)
		}
		if len(samples) != len(elems) {
			t.Errorf("parsed %d samples from %d elements", len(samples), len(elems))
		}
		for i, s := range samples {
			if s.ID == "" {
				t.Errorf("sample %d has an empty id", i)
			}
			if !s.HasExplicitID && s.ID != FallbackID(i) {
				t.Errorf("sample %d fallback id = %q, want %q", i, s.ID, FallbackID(i))
			}
			if s.Rounds == nil {
				t.Errorf("sample %d has nil rounds", i)
			}
		}
	})
}
