package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ahrav/go-rubric/internal/domain"
)

// Content types of the two export documents.
const (
	ContentTypeJSON     = "application/json"
	ContentTypeMarkdown = "text/markdown; charset=utf-8"
)

// ErrEmptyName indicates that a sink object name was empty.
var ErrEmptyName = errors.New("export object name is required")

// Sink stores rendered export documents and returns a reference to each.
type Sink interface {
	Put(ctx context.Context, name, contentType string, body []byte) (string, error)
}

// FileSink writes documents into a directory.
type FileSink struct {
	dir string
}

// NewFileSink returns a sink rooted at dir, creating it if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// Put writes body to dir/name through a temp file and rename.
func (f *FileSink) Put(_ context.Context, name, _ string, body []byte) (string, error) {
	if name == "" {
		return "", ErrEmptyName
	}
	path := filepath.Join(f.dir, filepath.Clean("/" + name)[1:])
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename %s: %w", name, err)
	}
	return path, nil
}

// MemorySink keeps documents in memory. It is safe for concurrent use.
type MemorySink struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{objects: map[string][]byte{}, types: map[string]string{}}
}

// Put stores a copy of body under name.
func (m *MemorySink) Put(_ context.Context, name, contentType string, body []byte) (string, error) {
	if name == "" {
		return "", ErrEmptyName
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = append([]byte(nil), body...)
	m.types[name] = contentType
	return "mem://" + name, nil
}

// Get returns the stored document and its content type.
func (m *MemorySink) Get(name string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[name]
	return body, m.types[name], ok
}

// Names returns the stored object names in sorted order.
func (m *MemorySink) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.objects))
	for n := range m.objects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Published lists the references produced by Publish.
type Published struct {
	Results domain.ArtifactRef
	Report  domain.ArtifactRef
}

// ObjectNames returns the results and report object names for one export.
// Names sort chronologically and carry the request id to stay unique.
func ObjectNames(exportedAt time.Time, requestID string) (results, report string) {
	stamp := exportedAt.UTC().Format("20060102T150405Z")
	base := "annotations-" + stamp
	if requestID != "" {
		base += "-" + requestID
	}
	return base + ".json", base + ".md"
}

// Publish renders both documents and writes them to sink.
func Publish(
	ctx context.Context,
	sink Sink,
	requestID string,
	samples []domain.Sample,
	scores domain.RecordLookup,
	modes domain.ActiveModes,
	exportedAt time.Time,
) (Published, error) {
	resultsName, reportName := ObjectNames(exportedAt, requestID)

	body, err := MarshalResults(ExportResults(samples, scores, modes, exportedAt))
	if err != nil {
		return Published{}, err
	}
	resultsKey, err := sink.Put(ctx, resultsName, ContentTypeJSON, body)
	if err != nil {
		return Published{}, fmt.Errorf("publish results: %w", err)
	}

	report := []byte(ExportReport(samples, scores))
	reportKey, err := sink.Put(ctx, reportName, ContentTypeMarkdown, report)
	if err != nil {
		return Published{}, fmt.Errorf("publish report: %w", err)
	}

	return Published{
		Results: domain.ArtifactRef{Key: resultsKey, Size: int64(len(body)), Kind: domain.ArtifactResults},
		Report:  domain.ArtifactRef{Key: reportKey, Size: int64(len(report)), Kind: domain.ArtifactReport},
	}, nil
}
