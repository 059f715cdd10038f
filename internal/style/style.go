// Package style assigns deterministic fill colors to the distinct values of
// a collection's label column.
package style

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/dataset"
	"github.com/sells-group/geomap/internal/geoerr"
)

const stage = "style"

// NoneLabel is shown for features whose label value is blank.
const NoneLabel = "(none)"

// Category is one distinct label value and its color.
type Category struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
	Color string `json:"color" yaml:"color"`
	Count int    `json:"count" yaml:"count"`
}

// Style maps label values to categories in first-occurrence order.
type Style struct {
	Column     string     `json:"column" yaml:"column"`
	Categories []Category `json:"categories" yaml:"categories"`

	index     map[string]int
	partition [][]int
}

// Lookup returns the category of a raw attribute value.
func (s *Style) Lookup(v any) (Category, bool) {
	i, ok := s.index[Key(v)]
	if !ok {
		return Category{}, false
	}
	return s.Categories[i], true
}

// Partition returns, per category, the positions of its features in the
// collection the style was built from.
func (s *Style) Partition() [][]int {
	out := make([][]int, len(s.partition))
	for i, p := range s.partition {
		out[i] = append([]int(nil), p...)
	}
	return out
}

// Colors returns the value to color mapping.
func (s *Style) Colors() map[string]string {
	m := make(map[string]string, len(s.Categories))
	for _, c := range s.Categories {
		m[c.Value] = c.Color
	}
	return m
}

// Styler builds a Style from a cyclic palette. Overrides pin colors for
// specific values and do not consume palette slots.
type Styler struct {
	palette   []string
	overrides map[string]string
}

// New returns a Styler over palette.
func New(palette []string, overrides map[string]string) (*Styler, error) {
	if len(palette) == 0 {
		return nil, eris.New("style: palette must not be empty")
	}
	return &Styler{
		palette:   append([]string(nil), palette...),
		overrides: overrides,
	}, nil
}

// Style enumerates the distinct values of fc's label column. Value i (in
// first-occurrence order) gets palette[i % len(palette)].
func (s *Styler) Style(fc *dataset.FeatureCollection) (*Style, error) {
	if len(fc.Fields) == 0 {
		return nil, geoerr.Errorf(geoerr.NoLabelColumn, stage, "style: schema has no fields")
	}
	if fc.LabelColumn == "" || !fc.HasField(fc.LabelColumn) {
		return nil, geoerr.Errorf(geoerr.NoLabelColumn, stage, "style: label column %q not in schema", fc.LabelColumn)
	}

	st := &Style{Column: fc.LabelColumn, index: map[string]int{}}
	next := 0
	for pos, f := range fc.Features {
		key := Key(f.Properties[fc.LabelColumn])
		i, ok := st.index[key]
		if !ok {
			i = len(st.Categories)
			st.index[key] = i

			color, pinned := s.overrides[key]
			if !pinned {
				color = s.palette[next%len(s.palette)]
				next++
			}
			label := key
			if key == "" {
				label = NoneLabel
			}
			st.Categories = append(st.Categories, Category{Value: key, Label: label, Color: color})
			st.partition = append(st.partition, nil)
		}
		st.Categories[i].Count++
		st.partition[i] = append(st.partition[i], pos)
	}

	if len(st.Categories) > len(s.palette) {
		zap.L().Info("style: palette cycles",
			zap.Int("categories", len(st.Categories)),
			zap.Int("palette_size", len(s.palette)),
		)
	}
	zap.L().Debug("style: categories assigned",
		zap.String("column", st.Column),
		zap.Int("categories", len(st.Categories)),
	)
	return st, nil
}

// Key is the canonical string form used to group attribute values. nil maps
// to the empty string.
func Key(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return fmt.Sprint(v)
}
