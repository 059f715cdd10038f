package fixture

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geomap/internal/dataset"
)

func TestZip_Deterministic(t *testing.T) {
	files := map[string][]byte{"b.txt": []byte("b"), "a.txt": []byte("a")}

	first, err := Zip(files)
	require.NoError(t, err)
	second, err := Zip(files)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	zr, err := zip.NewReader(bytes.NewReader(first), int64(len(first)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "a.txt", zr.File[0].Name)
	assert.Equal(t, "b.txt", zr.File[1].Name)
}

func TestBundle_Geology(t *testing.T) {
	data, err := Bundle(Geology(), "maps")
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"maps/geology.dbf", "maps/geology.prj", "maps/geology.shp", "maps/geology.shx"}, names)
}

func TestHole_ReversesWinding(t *testing.T) {
	sq := Square(0, 0, 1)
	h := Hole(0, 0, 1)
	require.Len(t, h, len(sq))
	for i := range sq {
		assert.Equal(t, sq[i], h[len(h)-1-i])
	}
}

func TestWrite_SidecarNames(t *testing.T) {
	dir := t.TempDir()
	path, err := Write(dir, Geology())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "geology.shp"), path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"geology.dbf", "geology.prj", "geology.shp", "geology.shx"}, names)
}

func TestWrite_Loadable(t *testing.T) {
	path, err := Write(t.TempDir(), Geology())
	require.NoError(t, err)

	fc, err := dataset.Load(path, dataset.Options{PreferredLabel: "GLG"})
	require.NoError(t, err)
	assert.Equal(t, 4, fc.Len())
	assert.Equal(t, 4326, fc.CRS.EPSG)
	assert.Equal(t, "Qal", fc.Features[2].Properties["GLG"])
}
