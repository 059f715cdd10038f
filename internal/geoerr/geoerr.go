// Package geoerr defines the failure taxonomy shared by every pipeline stage
// and the per-feature notices that stages emit without aborting a run.
package geoerr

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind int

// Failure kinds, in pipeline order.
const (
	Unknown Kind = iota
	CorruptArchive
	MissingGeometryFile
	UnreadableDataset
	EmptyDataset
	UnsupportedProjection
	InvalidGeometry
	NoLabelColumn
	ExportFailure
)

var kindNames = map[Kind]string{
	Unknown:               "Unknown",
	CorruptArchive:        "CorruptArchive",
	MissingGeometryFile:   "MissingGeometryFile",
	UnreadableDataset:     "UnreadableDataset",
	EmptyDataset:          "EmptyDataset",
	UnsupportedProjection: "UnsupportedProjection",
	InvalidGeometry:       "InvalidGeometry",
	NoLabelColumn:         "NoLabelColumn",
	ExportFailure:         "ExportFailure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Message returns the user-facing description of the failure kind.
func (k Kind) Message() string {
	switch k {
	case CorruptArchive:
		return "The upload is not a readable zip archive."
	case MissingGeometryFile:
		return "Shapefile (.shp) not found in archive."
	case UnreadableDataset:
		return "The shapefile could not be read; check that the .shp, .shx and .dbf files are present and intact."
	case EmptyDataset:
		return "No data to display."
	case UnsupportedProjection:
		return "The dataset's coordinate reference system is not supported."
	case InvalidGeometry:
		return "A geometry could not be simplified and was kept as-is."
	case NoLabelColumn:
		return "The dataset has no attribute columns to label features by."
	case ExportFailure:
		return "The map could not be exported."
	default:
		return "Unexpected failure."
	}
}

// Recoverable reports whether the kind is handled without aborting the run.
func (k Kind) Recoverable() bool {
	return k == InvalidGeometry
}

// Informational reports whether the kind describes a condition to show the
// user rather than a failure (an empty dataset is not an error on their part).
func (k Kind) Informational() bool {
	return k == EmptyDataset
}

// Error is a classified pipeline failure. Stage names the component that
// failed; Err carries the underlying cause.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

// New classifies err under kind for the given stage.
func New(kind Kind, stage string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, stage, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage names the failing stage and cause in a single line.
func (e *Error) UserMessage() string {
	return fmt.Sprintf("%s (stage: %s)", e.Kind.Message(), e.Stage)
}

// KindOf returns the Kind of the first classified error in err's chain, or
// Unknown if there is none.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Notice is a non-fatal condition surfaced alongside a successful run.
type Notice struct {
	Stage   string `json:"stage" yaml:"stage"`
	Kind    Kind   `json:"kind" yaml:"kind"`
	Feature int    `json:"feature" yaml:"feature"` // -1 when the notice concerns the whole collection
	Message string `json:"message" yaml:"message"`
}

// Notices accumulates notices for one pipeline run.
type Notices struct {
	items []Notice
}

// Add records a notice.
func (n *Notices) Add(notice Notice) {
	n.items = append(n.items, notice)
}

// List returns the recorded notices in emission order.
func (n *Notices) List() []Notice {
	if n == nil {
		return nil
	}
	out := make([]Notice, len(n.items))
	copy(out, n.items)
	return out
}

// Len returns the number of recorded notices.
func (n *Notices) Len() int {
	if n == nil {
		return 0
	}
	return len(n.items)
}
