package workspace

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/geoerr"
)

// Extract unpacks every entry of the zip at zipPath into DataDir, keeping
// nested directories. Entries that would land outside DataDir, symlinks, and
// archives larger than the configured limit are rejected as CorruptArchive.
// Returns the extracted file paths in lexical order.
func (w *Workspace) Extract(zipPath string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, geoerr.New(geoerr.CorruptArchive, stage, eris.Wrap(err, "zip: open archive"))
	}
	defer r.Close() //nolint:errcheck

	destDir := w.DataDir()
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "zip: create data dir")
	}

	var total uint64
	for _, f := range r.File {
		total += f.UncompressedSize64
	}
	if total > uint64(w.maxBytes) {
		return nil, geoerr.Errorf(geoerr.CorruptArchive, stage,
			"zip: uncompressed size %d exceeds limit %d", total, w.maxBytes)
	}

	var extracted []string
	var written int64
	for _, f := range r.File {
		path, n, err := w.extractEntry(f, destDir, w.maxBytes-written)
		if err != nil {
			return extracted, err
		}
		written += n
		if path != "" {
			extracted = append(extracted, path)
		}
	}

	sort.Strings(extracted)
	zap.L().Debug("workspace: extracted archive",
		zap.String("archive", filepath.Base(zipPath)),
		zap.Int("files", len(extracted)),
		zap.Int64("bytes", written),
	)
	return extracted, nil
}

// extractEntry extracts a single zip.File to the destination directory.
// Returns the extracted file path (empty for directories) and bytes written.
func (w *Workspace) extractEntry(f *zip.File, destDir string, budget int64) (string, int64, error) {
	destPath, err := containedPath(destDir, f.Name)
	if err != nil {
		return "", 0, geoerr.New(geoerr.CorruptArchive, stage, err)
	}

	mode := f.FileInfo().Mode()
	if mode&fs.ModeSymlink != 0 {
		return "", 0, geoerr.Errorf(geoerr.CorruptArchive, stage, "zip: symlink entry %q not allowed", f.Name)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return "", 0, geoerr.New(geoerr.CorruptArchive, stage, eris.Wrapf(err, "zip: create directory %s", f.Name))
		}
		return "", 0, nil
	}

	// Entry names that collide as file and directory fail here.
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", 0, geoerr.New(geoerr.CorruptArchive, stage, eris.Wrapf(err, "zip: create parent directory of %s", f.Name))
	}

	rc, err := f.Open()
	if err != nil {
		return "", 0, geoerr.New(geoerr.CorruptArchive, stage, eris.Wrapf(err, "zip: open entry %s", f.Name))
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", 0, geoerr.New(geoerr.CorruptArchive, stage, eris.Wrapf(err, "zip: create file %s", f.Name))
	}
	defer out.Close() //nolint:errcheck

	// Headers can lie about sizes; cap the copy itself.
	n, err := io.Copy(out, io.LimitReader(rc, budget+1))
	if err != nil {
		return "", n, geoerr.New(geoerr.CorruptArchive, stage, eris.Wrapf(err, "zip: write entry %s", f.Name))
	}
	if n > budget {
		return "", n, geoerr.Errorf(geoerr.CorruptArchive, stage, "zip: entry %q exceeds extraction limit", f.Name)
	}

	return destPath, n, nil
}

// containedPath resolves an entry name under root, rejecting absolute paths
// and names that climb out of root.
func containedPath(root, name string) (string, error) {
	clean := filepath.FromSlash(strings.ReplaceAll(name, `\`, "/"))
	if filepath.IsAbs(clean) || filepath.VolumeName(clean) != "" {
		return "", eris.Errorf("zip: illegal absolute path %q", name)
	}

	destPath := filepath.Join(root, clean)
	rootClean := filepath.Clean(root)
	if destPath != rootClean && !strings.HasPrefix(destPath, rootClean+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", name)
	}
	return destPath, nil
}
