package main

import (
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geomap/internal/dataset"
	"github.com/sells-group/geomap/internal/geoerr"
	"github.com/sells-group/geomap/internal/pipeline"
	"github.com/sells-group/geomap/internal/simplify"
	"github.com/sells-group/geomap/internal/style"
)

// summary is the inspect output shared by the CLI (YAML) and the server (JSON).
type summary struct {
	RunID        string                 `json:"run_id" yaml:"run_id"`
	Archive      string                 `json:"archive" yaml:"archive"`
	GeometryFile string                 `json:"geometry_file,omitempty" yaml:"geometry_file,omitempty"`
	GeometryType string                 `json:"geometry_type,omitempty" yaml:"geometry_type,omitempty"`
	Features     int                    `json:"features" yaml:"features"`
	Fields       []dataset.Field        `json:"fields,omitempty" yaml:"fields,omitempty"`
	SourceCRS    string                 `json:"source_crs,omitempty" yaml:"source_crs,omitempty"`
	CRS          string                 `json:"crs,omitempty" yaml:"crs,omitempty"`
	LabelColumn  string                 `json:"label_column,omitempty" yaml:"label_column,omitempty"`
	Categories   []style.Category       `json:"categories,omitempty" yaml:"categories,omitempty"`
	Bounds       []float64              `json:"bounds,omitempty" yaml:"bounds,omitempty,flow"`
	Simplify     simplify.Stats         `json:"simplify" yaml:"simplify"`
	Notices      []geoerr.Notice        `json:"notices,omitempty" yaml:"notices,omitempty"`
	Stages       []pipeline.StageResult `json:"stages" yaml:"stages"`
	Empty        bool                   `json:"empty,omitempty" yaml:"empty,omitempty"`
	Message      string                 `json:"message,omitempty" yaml:"message,omitempty"`
}

func summarize(res *pipeline.Result) summary {
	s := summary{
		RunID:        res.RunID,
		Archive:      res.Archive,
		GeometryFile: res.GeometryFile,
		Simplify:     res.Simplify,
		Notices:      res.Notices,
		Stages:       res.Stages,
		Empty:        res.Empty,
		Message:      res.Message,
	}
	if !res.SourceCRS.IsZero() {
		s.SourceCRS = res.SourceCRS.String()
	}
	if fc := res.Dataset; fc != nil {
		s.GeometryType = fc.GeometryType
		s.Features = fc.Len()
		s.Fields = fc.Fields
		s.CRS = fc.CRS.String()
		s.LabelColumn = fc.LabelColumn
	}
	if res.Style != nil {
		s.Categories = res.Style.Categories
	}
	if b, ok := res.Bounds(); ok {
		s.Bounds = []float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()}
	}
	return s
}

// userFacing prefixes a classified failure with its user message so the CLI
// prints something actionable ahead of the technical cause.
func userFacing(err error) error {
	var ge *geoerr.Error
	if errors.As(err, &ge) {
		return eris.Wrap(err, ge.UserMessage())
	}
	return err
}
