package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	dec := &textDecoder{}
	tests := []struct {
		name  string
		field Field
		raw   string
		want  any
	}{
		{"string", Field{Type: Character}, "Qal  ", "Qal"},
		{"blank string", Field{Type: Character}, "   ", nil},
		{"nul padded", Field{Type: Character}, "Tv\x00\x00", "Tv"},
		{"integer", Field{Type: Numeric}, "  42", int64(42)},
		{"numeric with decimals", Field{Type: Numeric, Decimals: 2}, "3.50", 3.5},
		{"exponent", Field{Type: Numeric}, "1e3", 1000.0},
		{"float", Field{Type: Float}, "-0.25", -0.25},
		{"nan", Field{Type: Float}, "NaN", nil},
		{"garbage number", Field{Type: Numeric}, "**", nil},
		{"logical true", Field{Type: Logical}, "T", true},
		{"logical no", Field{Type: Logical}, "n", false},
		{"logical unknown", Field{Type: Logical}, "?", nil},
		{"date", Field{Type: Date}, "20240131", "2024-01-31"},
		{"odd date kept", Field{Type: Date}, "2024", "2024"},
		{"memo", Field{Type: Memo}, "note", "note"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseValue(tt.field, tt.raw, dec))
		})
	}
}

func TestToField(t *testing.T) {
	f := toField(shp.FloatField("AREA", 12, 3))
	assert.Equal(t, Field{Name: "AREA", Type: Float, Size: 12, Decimals: 3}, f)
	assert.Equal(t, "float", f.Type.String())
}

func TestTextDecoder(t *testing.T) {
	latin1 := string([]byte{'C', 'a', 'f', 0xe9})

	// No code page: invalid UTF-8 is read as Windows-1252.
	assert.Equal(t, "Café", (&textDecoder{}).decode(latin1))
	assert.Equal(t, "Café", (&textDecoder{}).decode("Café"))

	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	dec := newTextDecoder(write("a.cpg", "1252\n"))
	assert.Equal(t, "windows-1252", dec.charset)
	assert.Equal(t, "Café", dec.decode(latin1))

	dec = newTextDecoder(write("b.cpg", "UTF-8"))
	assert.Equal(t, "utf-8", dec.charset)
	assert.Equal(t, "Caf\uFFFD", dec.decode(latin1))

	dec = newTextDecoder(write("c.cpg", "klingon"))
	assert.Nil(t, dec.enc)

	dec = newTextDecoder(filepath.Join(dir, "missing.cpg"))
	assert.Nil(t, dec.enc)
}
