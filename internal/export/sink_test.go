package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-rubric/internal/domain"
)

func TestObjectNames(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("X", 2*3600))

	results, report := ObjectNames(at, "req-1")
	assert.Equal(t, "annotations-20260304T030607Z-req-1.json", results)
	assert.Equal(t, "annotations-20260304T030607Z-req-1.md", report)

	results, _ = ObjectNames(at, "")
	assert.Equal(t, "annotations-20260304T030607Z.json", results)
}

func TestFileSink_Put(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "exports")
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	ref, err := sink.Put(context.Background(), "a.json", ContentTypeJSON, []byte(`{"x":1}`))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.json"), ref)

	body, err := os.ReadFile(ref)
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, string(body))

	_, err = sink.Put(context.Background(), "a.json", ContentTypeJSON, []byte(`{"x":2}`))
	require.NoError(t, err)
	body, err = os.ReadFile(ref)
	require.NoError(t, err)
	assert.Equal(t, `{"x":2}`, string(body), "puts overwrite")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files remain")
}

func TestFileSink_ConfinesNames(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	ref, err := sink.Put(context.Background(), "../../escape.md", ContentTypeMarkdown, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.md"), ref)

	_, err = sink.Put(context.Background(), "", ContentTypeMarkdown, nil)
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()

	body := []byte("hello")
	ref, err := sink.Put(context.Background(), "b.md", ContentTypeMarkdown, body)
	require.NoError(t, err)
	assert.Equal(t, "mem://b.md", ref)

	body[0] = 'j'
	got, ct, ok := sink.Get("b.md")
	require.True(t, ok)
	assert.Equal(t, "hello", string(got), "sink keeps its own copy")
	assert.Equal(t, ContentTypeMarkdown, ct)

	_, err = sink.Put(context.Background(), "a.json", ContentTypeJSON, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json", "b.md"}, sink.Names())

	_, _, ok = sink.Get("missing")
	assert.False(t, ok)

	_, err = sink.Put(context.Background(), "", ContentTypeJSON, nil)
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestPublish(t *testing.T) {
	sink := NewMemorySink()

	published, err := Publish(context.Background(), sink, "req-1",
		fixtureSamples(), fixtureScores(), domain.DefaultActiveModes(), exportedAt)
	require.NoError(t, err)

	resultsName, reportName := ObjectNames(exportedAt, "req-1")
	assert.Equal(t, "mem://"+resultsName, published.Results.Key)
	assert.Equal(t, "mem://"+reportName, published.Report.Key)
	assert.Equal(t, domain.ArtifactResults, published.Results.Kind)
	assert.Equal(t, domain.ArtifactReport, published.Report.Kind)

	body, ct, ok := sink.Get(resultsName)
	require.True(t, ok)
	assert.Equal(t, int64(len(body)), published.Results.Size)
	assert.Equal(t, ContentTypeJSON, ct)
	back, err := ImportResults(body)
	require.NoError(t, err)
	assert.Equal(t, fixtureScores(), back)

	report, ct, ok := sink.Get(reportName)
	require.True(t, ok)
	assert.Equal(t, ContentTypeMarkdown, ct)
	assert.Equal(t, ExportReport(fixtureSamples(), fixtureScores()), string(report))
	assert.Equal(t, int64(len(report)), published.Report.Size)
}

// failingSink fails every Put after the first n.
type failingSink struct {
	n     int
	calls int
}

var errSinkDown = errors.New("sink down")

func (f *failingSink) Put(_ context.Context, name, _ string, _ []byte) (string, error) {
	f.calls++
	if f.calls > f.n {
		return "", errSinkDown
	}
	return "ok://" + name, nil
}

func TestPublish_SinkFailure(t *testing.T) {
	tests := []struct {
		name    string
		succeed int
		wantMsg string
	}{
		{"results", 0, "publish results"},
		{"report", 1, "publish report"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Publish(context.Background(), &failingSink{n: tt.succeed}, "r",
				fixtureSamples(), fixtureScores(), domain.DefaultActiveModes(), exportedAt)
			require.ErrorIs(t, err, errSinkDown)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
