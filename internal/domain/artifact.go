package domain

// ArtifactKind identifies which export document an artifact holds.
type ArtifactKind string

const (
	// ArtifactResults is the machine-readable results document.
	ArtifactResults ArtifactKind = "results"

	// ArtifactReport is the Markdown summary report.
	ArtifactReport ArtifactKind = "report"
)

// ArtifactRef points at an export document stored in a sink.
type ArtifactRef struct {
	// Key is the location returned by the sink (a file path, s3:// or mem:// url).
	// Empty only when the ref is unused.
	Key string `json:"key" validate:"required_with=Kind"`

	// Size is the number of bytes written.
	Size int64 `json:"size" validate:"min=0"`

	Kind ArtifactKind `json:"kind" validate:"required_with=Key,omitempty,oneof=results report"`
}

// Validate checks the reference against its constraints.
func (a ArtifactRef) Validate() error { return validate.Struct(a) }

// IsZero reports whether the reference is unset.
func (a ArtifactRef) IsZero() bool { return a.Key == "" && a.Size == 0 && a.Kind == "" }

// String returns the storage key.
func (a ArtifactRef) String() string { return a.Key }
