// Package workspace owns the per-run temporary directory an uploaded archive
// is unpacked into, and locates the primary shapefile inside it.
package workspace

import (
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const stage = "extract"

// Archive is an uploaded zip bundle. It is untrusted input.
type Archive struct {
	Name string
	Data []byte
}

// Workspace is a uniquely named directory exclusively owned by one pipeline
// run. Close removes it and everything extracted into it.
type Workspace struct {
	root     string
	maxBytes int64

	once     sync.Once
	closeErr error
}

// Options configures a Workspace.
type Options struct {
	// BaseDir is the parent directory; empty means os.TempDir().
	BaseDir string
	// MaxExtractBytes caps the total uncompressed size of an archive.
	MaxExtractBytes int64
}

// New creates a fresh workspace directory.
func New(opts Options) (*Workspace, error) {
	if opts.BaseDir != "" {
		if err := os.MkdirAll(opts.BaseDir, 0o755); err != nil {
			return nil, eris.Wrap(err, "workspace: create base dir")
		}
	}

	root, err := os.MkdirTemp(opts.BaseDir, "geomap-*")
	if err != nil {
		return nil, eris.Wrap(err, "workspace: create temp dir")
	}

	if opts.MaxExtractBytes <= 0 {
		opts.MaxExtractBytes = 1 << 30
	}

	zap.L().Debug("workspace: created", zap.String("root", root))
	return &Workspace{root: root, maxBytes: opts.MaxExtractBytes}, nil
}

// Root returns the workspace directory.
func (w *Workspace) Root() string {
	return w.root
}

// DataDir is where archive entries are extracted.
func (w *Workspace) DataDir() string {
	return filepath.Join(w.root, "data")
}

// Close removes the workspace. Safe to call more than once.
func (w *Workspace) Close() error {
	w.once.Do(func() {
		if err := os.RemoveAll(w.root); err != nil {
			w.closeErr = eris.Wrap(err, "workspace: remove")
			return
		}
		zap.L().Debug("workspace: removed", zap.String("root", w.root))
	})
	return w.closeErr
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// WriteArchive stores the uploaded bytes inside the workspace and returns the
// stored path.
func (w *Workspace) WriteArchive(a Archive) (string, error) {
	dir := filepath.Join(w.root, "upload")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "workspace: create upload dir")
	}

	name := unsafeName.ReplaceAllString(filepath.Base(a.Name), "_")
	if name == "" || name == "." || name == ".." || name == "_" {
		name = "upload.zip"
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, a.Data, 0o600); err != nil {
		return "", eris.Wrap(err, "workspace: write archive")
	}
	return path, nil
}
