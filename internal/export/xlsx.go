package export

import (
	"bytes"
	"fmt"

	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/geomap/internal/dataset"
	"github.com/sells-group/geomap/internal/style"
)

const attributeSheet = "attributes"

// Attributes writes the attribute table of fc as a spreadsheet, one row per
// feature in source order. When st is given a category color column is
// appended.
func (e *Exporter) Attributes(fc *dataset.FeatureCollection, st *style.Style) (*Document, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(attributeSheet)
	if err != nil {
		return nil, failure(err, "add sheet")
	}

	header := sheet.AddRow()
	for _, name := range fc.FieldNames() {
		header.AddCell().SetString(name)
	}
	if st != nil {
		header.AddCell().SetString("color")
	}

	for _, feat := range fc.Features {
		row := sheet.AddRow()
		for _, field := range fc.Fields {
			setCell(row.AddCell(), feat.Properties[field.Name])
		}
		if st != nil {
			cell := row.AddCell()
			if c, ok := st.Lookup(feat.Properties[st.Column]); ok {
				cell.SetString(c.Color)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, failure(err, "write xlsx")
	}
	return &Document{Name: e.stem() + "_attributes.xlsx", MIMEType: MIMEXLSX, Body: buf.Bytes()}, nil
}

func setCell(cell *xlsx.Cell, v any) {
	switch v := v.(type) {
	case nil:
	case string:
		cell.SetString(v)
	case int64:
		cell.SetInt64(v)
	case float64:
		cell.SetFloat(v)
	case bool:
		cell.SetBool(v)
	default:
		cell.SetString(fmt.Sprint(v))
	}
}
