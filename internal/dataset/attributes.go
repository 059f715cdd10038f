package dataset

import (
	"math"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// toField converts a go-shp column descriptor.
func toField(f shp.Field) Field {
	return Field{
		Name:     strings.TrimSpace(strings.TrimRight(f.String(), "\x00")),
		Type:     FieldType(f.Fieldtype),
		Size:     int(f.Size),
		Decimals: int(f.Precision),
	}
}

// parseValue types a raw dBASE cell. Blank and unparseable cells are nil.
func parseValue(f Field, raw string, dec *textDecoder) any {
	val := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if val == "" {
		return nil
	}

	switch f.Type {
	case Numeric:
		if f.Decimals == 0 {
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				return n
			}
		}
		return parseFloat(val)
	case Float:
		return parseFloat(val)
	case Logical:
		switch val {
		case "T", "t", "Y", "y":
			return true
		case "F", "f", "N", "n":
			return false
		}
		return nil
	case Date:
		if len(val) == 8 {
			if _, err := strconv.Atoi(val); err == nil {
				return val[0:4] + "-" + val[4:6] + "-" + val[6:8]
			}
		}
		return dec.decode(val)
	}
	return dec.decode(val)
}

// parseFloat rejects NaN and infinities, which have no JSON form.
func parseFloat(val string) any {
	x, err := strconv.ParseFloat(val, 64)
	if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return x
}

// textDecoder converts dBASE character data to UTF-8 using the bundle's
// code page (.cpg). Without a code page, valid UTF-8 is kept and anything
// else is read as Windows-1252.
type textDecoder struct {
	enc     encoding.Encoding
	charset string
}

var cpgAliases = map[string]string{
	"UTF8":      "utf-8",
	"88591":     "iso-8859-1",
	"ANSI 1252": "windows-1252",
	"ANSI 1251": "windows-1251",
	"ANSI 1250": "windows-1250",
	"OEM":       "ibm866",
}

// newTextDecoder reads the code page file at path, if any.
func newTextDecoder(cpgPath string) *textDecoder {
	if cpgPath == "" {
		return &textDecoder{}
	}

	data, err := os.ReadFile(cpgPath)
	if err != nil {
		zap.L().Warn("dataset: unreadable code page file, assuming UTF-8", zap.Error(err))
		return &textDecoder{}
	}

	label := strings.TrimSpace(string(data))
	enc, name, err := lookupCharset(label)
	if err != nil {
		zap.L().Warn("dataset: unknown code page, assuming UTF-8",
			zap.String("code_page", label), zap.Error(err))
		return &textDecoder{}
	}
	return &textDecoder{enc: enc, charset: name}
}

func lookupCharset(label string) (encoding.Encoding, string, error) {
	key := strings.ToUpper(label)
	if alias, ok := cpgAliases[key]; ok {
		label = alias
	} else if _, err := strconv.Atoi(label); err == nil {
		label = "windows-" + label
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, "", eris.Wrapf(err, "dataset: code page %q", label)
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		name = label
	}
	return enc, name, nil
}

func (d *textDecoder) decode(s string) string {
	if d == nil || d.enc == nil {
		if utf8.ValidString(s) {
			return s
		}
		return decodeWith(charmap.Windows1252, s)
	}
	if d.charset == "utf-8" {
		return strings.ToValidUTF8(s, "\uFFFD")
	}
	return decodeWith(d.enc, s)
}

func decodeWith(enc encoding.Encoding, s string) string {
	out, err := enc.NewDecoder().String(s)
	if err != nil {
		return strings.ToValidUTF8(s, "\uFFFD")
	}
	return out
}
