package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

// FuzzScoreValueJSON checks that any well-formed JSON value decodes, and that
// once decoded a value survives marshal/unmarshal byte for byte.
func FuzzScoreValueJSON(f *testing.F) {
	f.Add([]byte(`75`))
	f.Add([]byte(`-1`))
	f.Add([]byte(`0.5`))
	f.Add([]byte(`1e400`))
	f.Add([]byte(`null`))
	f.Add([]byte(`"n/a"`))
	f.Add([]byte(`{"a": [1, 2]}`))
	f.Add([]byte(` 3 `))
	f.Add([]byte(`tru`))
	f.Add([]byte(`1 2`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var v ScoreValue
		err := v.UnmarshalJSON(data)
		if !json.Valid(data) {
			if !errors.Is(err, ErrInvalidScoreValue) {
				t.Errorf("malformed %q: got %v, want ErrInvalidScoreValue", data, err)
			}
			return
		}
		if err != nil {
			t.Fatalf("well-formed %q rejected: %v", data, err)
		}

		first, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %q: %v", data, err)
		}
		var back ScoreValue
		if err := json.Unmarshal(first, &back); err != nil {
			t.Fatalf("unmarshal %q: %v", first, err)
		}
		second, err := json.Marshal(back)
		if err != nil {
			t.Fatalf("re-marshal %q: %v", first, err)
		}
		if !bytes.Equal(first, second) {
			t.Errorf("round trip changed %q into %q", first, second)
		}

		n1, ok1 := v.Float64()
		n2, ok2 := back.Float64()
		if ok1 != ok2 || n1 != n2 {
			t.Errorf("numeric view changed: (%v,%v) -> (%v,%v)", n1, ok1, n2, ok2)
		}
	})
}
