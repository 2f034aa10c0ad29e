// Package samples holds the loaded dialogue dataset and the reviewer's
// navigation cursor. A dataset is replaced all-or-nothing: a failed load
// leaves the previous samples and cursor untouched.
package samples

import (
	"bytes"
	"slices"

	"github.com/ahrav/go-rubric/internal/domain"
)

// Store is the in-memory sample store. It is owned by a single session and
// is not safe for concurrent use.
type Store struct {
	samples []domain.Sample
	index   map[string]int
	raw     []byte
	cursor  int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{index: map[string]int{}}
}

// Load parses data and, on success, replaces the dataset and resets the cursor.
func (s *Store) Load(data []byte) error {
	parsed, err := domain.ParseDataset(data)
	if err != nil {
		return err
	}

	index := make(map[string]int, len(parsed))
	for i, sample := range parsed {
		// First occurrence wins when ids collide.
		if _, dup := index[sample.ID]; !dup {
			index[sample.ID] = i
		}
	}

	s.samples = parsed
	s.index = index
	s.raw = bytes.Clone(data)
	s.cursor = 0
	return nil
}

// Samples returns the samples in load order. The slice must not be modified.
func (s *Store) Samples() []domain.Sample { return s.samples }

// Len returns the number of loaded samples.
func (s *Store) Len() int { return len(s.samples) }

// Raw returns a copy of the document last loaded successfully.
func (s *Store) Raw() []byte { return bytes.Clone(s.raw) }

// Lookup returns the sample with id.
func (s *Store) Lookup(id string) (domain.Sample, bool) {
	i, ok := s.index[id]
	if !ok {
		return domain.Sample{}, false
	}
	return s.samples[i], true
}

// IDs returns the sample ids in load order.
func (s *Store) IDs() []string {
	ids := make([]string, len(s.samples))
	for i, sample := range s.samples {
		ids[i] = sample.ID
	}
	return ids
}

// Cursor returns the current position.
func (s *Store) Cursor() int { return s.cursor }

// Current returns the sample under the cursor.
func (s *Store) Current() (domain.Sample, bool) {
	if len(s.samples) == 0 {
		return domain.Sample{}, false
	}
	return s.samples[s.cursor], true
}

// Seek moves the cursor to i, clamped to the dataset bounds, and returns the new position.
func (s *Store) Seek(i int) int {
	if len(s.samples) == 0 {
		s.cursor = 0
		return 0
	}
	s.cursor = max(0, min(i, len(s.samples)-1))
	return s.cursor
}

// SeekID moves the cursor to the sample with id.
func (s *Store) SeekID(id string) bool {
	i, ok := s.index[id]
	if ok {
		s.cursor = i
	}
	return ok
}

// Next advances the cursor by one, stopping at the last sample.
func (s *Store) Next() int { return s.Seek(s.cursor + 1) }

// Prev moves the cursor back by one, stopping at the first sample.
func (s *Store) Prev() int { return s.Seek(s.cursor - 1) }

// NextUnscored moves the cursor to the first sample after the current one
// (wrapping around) for which scored reports false.
func (s *Store) NextUnscored(scored func(id string) bool) (int, bool) {
	n := len(s.samples)
	for step := 1; step <= n; step++ {
		i := (s.cursor + step) % n
		if !scored(s.samples[i].ID) {
			s.cursor = i
			return i, true
		}
	}
	return s.cursor, false
}

// Clone returns a copy of the samples slice.
func (s *Store) Clone() []domain.Sample { return slices.Clone(s.samples) }
