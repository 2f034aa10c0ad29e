package samples

import (
	"bytes"
	"slices"
	"testing"
)

// FuzzStoreLoad checks that a rejected document leaves the loaded dataset,
// its raw bytes and the cursor exactly as they were.
func FuzzStoreLoad(f *testing.F) {
	f.Add([]byte(`[{"id":"x"}]`))
	f.Add([]byte(`[{"id":"x"},"y"]`))
	f.Add([]byte(`{"id":"x"}`))
	f.Add([]byte(`[{"rounds":{}}]`))
	f.Add([]byte(`not json`))

	f.Fuzz(func(t *testing.T, data []byte) {
		s := NewStore()
		if err := s.Load([]byte(threeSamples)); err != nil {
			t.Fatalf("fixture: %v", err)
		}
		s.Seek(2)
		ids, raw := s.IDs(), s.Raw()

		if err := s.Load(data); err != nil {
			if !slices.Equal(ids, s.IDs()) {
				t.Errorf("ids changed after failed load: %v -> %v", ids, s.IDs())
			}
			if !bytes.Equal(raw, s.Raw()) {
				t.Error("raw document changed after failed load")
			}
			if s.Cursor() != 2 {
				t.Errorf("cursor moved to %d after failed load", s.Cursor())
			}
			return
		}
		if s.Cursor() != 0 {
			t.Errorf("cursor = %d after successful load, want 0", s.Cursor())
		}
	})
}
