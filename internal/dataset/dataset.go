// Package dataset holds the in-memory feature collection and reads it from a
// shapefile bundle.
package dataset

import (
	"github.com/paulmach/orb"

	"github.com/sells-group/geomap/internal/crs"
)

// FieldType is the dBASE type code of an attribute column.
type FieldType byte

// Supported dBASE field types.
const (
	Character FieldType = 'C'
	Numeric   FieldType = 'N'
	Float     FieldType = 'F'
	Logical   FieldType = 'L'
	Date      FieldType = 'D'
	Memo      FieldType = 'M'
)

func (t FieldType) String() string {
	switch t {
	case Character, Memo:
		return "string"
	case Numeric:
		return "number"
	case Float:
		return "float"
	case Logical:
		return "bool"
	case Date:
		return "date"
	}
	return "unknown"
}

// MarshalText renders the type by name.
func (t FieldType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Field describes one attribute column.
type Field struct {
	Name     string    `json:"name" yaml:"name"`
	Type     FieldType `json:"type" yaml:"type"`
	Size     int       `json:"size" yaml:"size"`
	Decimals int       `json:"decimals,omitempty" yaml:"decimals,omitempty"`
}

// Feature is one record: a geometry (nil for null shapes) and its attributes.
type Feature struct {
	Index      int
	Geometry   orb.Geometry
	Properties map[string]any
}

// FeatureCollection is an ordered set of features sharing one CRS and one
// attribute schema.
type FeatureCollection struct {
	CRS          crs.CRS
	Fields       []Field
	Features     []Feature
	LabelColumn  string
	GeometryType string
	Source       string
}

// FieldNames returns the schema's column names in order.
func (fc *FeatureCollection) FieldNames() []string {
	names := make([]string, len(fc.Fields))
	for i, f := range fc.Fields {
		names[i] = f.Name
	}
	return names
}

// HasField reports whether the schema contains name.
func (fc *FeatureCollection) HasField(name string) bool {
	for _, f := range fc.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Len returns the number of features.
func (fc *FeatureCollection) Len() int {
	return len(fc.Features)
}

// WithFeatures returns a shallow copy of fc carrying features instead of the
// original ones. Stages use it to avoid mutating their input.
func (fc *FeatureCollection) WithFeatures(features []Feature) *FeatureCollection {
	out := *fc
	out.Features = features
	return &out
}

// Bound returns the combined bounding box of all non-nil geometries. ok is
// false when no feature has a geometry.
func (fc *FeatureCollection) Bound() (b orb.Bound, ok bool) {
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		gb := f.Geometry.Bound()
		if !ok {
			b, ok = gb, true
			continue
		}
		b = b.Union(gb)
	}
	return b, ok
}

// VertexCount returns the number of coordinates in g.
func VertexCount(g orb.Geometry) int {
	switch g := g.(type) {
	case nil:
		return 0
	case orb.Point:
		return 1
	case orb.MultiPoint:
		return len(g)
	case orb.LineString:
		return len(g)
	case orb.Ring:
		return len(g)
	case orb.MultiLineString:
		n := 0
		for _, ls := range g {
			n += len(ls)
		}
		return n
	case orb.Polygon:
		n := 0
		for _, r := range g {
			n += len(r)
		}
		return n
	case orb.MultiPolygon:
		n := 0
		for _, p := range g {
			n += VertexCount(p)
		}
		return n
	case orb.Collection:
		n := 0
		for _, c := range g {
			n += VertexCount(c)
		}
		return n
	}
	return 0
}
