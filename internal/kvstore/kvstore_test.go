package kvstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeContract runs the behavior every backend shares.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx, KeyScores)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, KeyScores, []byte(`{"a":1}`)))
	got, err := s.Load(ctx, KeyScores)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	require.NoError(t, s.Save(ctx, KeyScores, []byte(`{}`)))
	got, err = s.Load(ctx, KeyScores)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(got), "save replaces")

	_, err = s.Load(ctx, KeyDataset)
	require.ErrorIs(t, err, ErrNotFound, "keys are independent")

	for _, bad := range []string{"", ".", "..", "a/b", `a\b`} {
		assert.ErrorIs(t, s.Save(ctx, bad, nil), ErrInvalidKey, bad)
		_, err := s.Load(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidKey, bad)
	}

	require.NoError(t, s.Close())
}

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	storeContract(t, s)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files remain")
	assert.Equal(t, KeyScores+".json", entries[0].Name())
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, KeyDataset, []byte(`[]`)))

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	got, err := reopened.Load(ctx, KeyDataset)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	in := []byte("abc")
	require.NoError(t, s.Save(ctx, "k", in))
	in[0] = 'x'

	out, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(out))

	out[0] = 'y'
	again, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				_ = s.Save(ctx, KeyScores, []byte{byte(i)})
				_, _ = s.Load(ctx, KeyScores)
			}
		}()
	}
	wg.Wait()

	got, err := s.Load(ctx, KeyScores)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "not-a-redis-url", "p:")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis url")
}
