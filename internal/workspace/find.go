package workspace

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/geoerr"
)

// GeometryExt is the extension of the primary geometry file of a bundle.
const GeometryExt = ".shp"

// FindGeometryFile walks DataDir in lexical order and returns the first
// shapefile. When several are present the first one in walk order wins; the
// rest are logged and ignored.
func (w *Workspace) FindGeometryFile() (string, error) {
	candidates, err := findByExt(w.DataDir(), GeometryExt)
	if err != nil {
		return "", err
	}

	if len(candidates) == 0 {
		return "", geoerr.Errorf(geoerr.MissingGeometryFile, stage, "no %s file found in archive", GeometryExt)
	}

	if len(candidates) > 1 {
		rel := make([]string, 0, len(candidates))
		for _, c := range candidates {
			r, _ := filepath.Rel(w.DataDir(), c)
			rel = append(rel, r)
		}
		zap.L().Warn("workspace: multiple geometry files in archive, using the first",
			zap.Strings("candidates", rel),
		)
	}

	return candidates[0], nil
}

// findByExt lists files under dir with the given extension (case-insensitive),
// in filepath.WalkDir order. macOS metadata entries are skipped.
func findByExt(dir, ext string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if name == "__MACOSX" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, "._") {
			return nil
		}
		if strings.EqualFold(filepath.Ext(name), ext) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "workspace: walk data dir")
	}
	return found, nil
}
