// Package pipeline runs an uploaded shapefile archive through extraction,
// loading, reprojection, simplification, styling, composition and export.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/config"
	"github.com/sells-group/geomap/internal/crs"
	"github.com/sells-group/geomap/internal/dataset"
	"github.com/sells-group/geomap/internal/export"
	"github.com/sells-group/geomap/internal/geoerr"
	"github.com/sells-group/geomap/internal/mapview"
	"github.com/sells-group/geomap/internal/metrics"
	"github.com/sells-group/geomap/internal/reproject"
	"github.com/sells-group/geomap/internal/simplify"
	"github.com/sells-group/geomap/internal/style"
	"github.com/sells-group/geomap/internal/workspace"
)

// Stage names, in execution order.
const (
	StageExtract   = "extract"
	StageLoad      = "load"
	StageReproject = "reproject"
	StageSimplify  = "simplify"
	StageStyle     = "style"
	StageCompose   = "compose"
	StageExport    = "export"
)

// StageStatus is the outcome of one stage.
type StageStatus string

// Stage outcomes.
const (
	StageComplete StageStatus = "complete"
	StageFailed   StageStatus = "failed"
	StageSkipped  StageStatus = "skipped"
)

// StageResult records the timing and outcome of one stage.
type StageResult struct {
	Name     string      `json:"name" yaml:"name"`
	Status   StageStatus `json:"status" yaml:"status"`
	Duration int64       `json:"duration_ms" yaml:"duration_ms"`
	Error    string      `json:"error,omitempty" yaml:"error,omitempty"`
}

// Result is everything one run produced. Map and Document are nil when the
// dataset had nothing to display.
type Result struct {
	RunID        string
	Archive      string
	GeometryFile string
	SourceCRS    crs.CRS
	Dataset      *dataset.FeatureCollection
	Style        *style.Style
	Map          *mapview.ComposedMap
	Document     *export.Document
	Notices      []geoerr.Notice
	Stages       []StageResult
	Simplify     simplify.Stats

	// Empty is set when the dataset has no records or no geometry.
	Empty   bool
	Message string
}

// Runner is the surface the CLI and HTTP handlers depend on.
type Runner interface {
	Run(ctx context.Context, archive workspace.Archive) (*Result, error)
	Inspect(ctx context.Context, archive workspace.Archive) (*Result, error)
}

var _ Runner = (*Pipeline)(nil)

// Pipeline holds the configured stage implementations. A Pipeline keeps no
// state between runs and may be reused.
type Pipeline struct {
	mapCfg     config.MapConfig
	wsCfg      config.WorkspaceConfig
	normalizer *reproject.Normalizer
	simplifier *simplify.Simplifier
	styler     *style.Styler
	composer   *mapview.Composer
	exporter   *export.Exporter
}

// New builds a Pipeline from configuration. A non-nil preset overrides the
// configured palette and stroke and pins colors for named values.
func New(cfg *config.Config, preset *style.Preset) (*Pipeline, error) {
	mapCfg := cfg.Map
	var overrides map[string]string
	if preset != nil {
		preset.Apply(&mapCfg)
		overrides = preset.Colors
	}

	normalizer, err := reproject.New(mapCfg.CanonicalCRS, mapCfg.DefaultCRS)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: crs settings")
	}
	styler, err := style.New(mapCfg.Palette, overrides)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: style settings")
	}

	return &Pipeline{
		mapCfg:     mapCfg,
		wsCfg:      cfg.Workspace,
		normalizer: normalizer,
		simplifier: simplify.New(mapCfg.Tolerance, mapCfg.MinVertices),
		styler:     styler,
		composer:   mapview.NewComposer(mapCfg),
		exporter:   export.New(mapCfg.ExportName),
	}, nil
}

// Exporter returns the exporter used for the HTML document, for callers
// that also want the GeoJSON or attribute exports.
func (p *Pipeline) Exporter() *export.Exporter {
	return p.exporter
}

// Run processes one archive end to end. The workspace is removed before Run
// returns, whatever the outcome. An archive with no data is not an error: the
// result has Empty set and carries no map.
func (p *Pipeline) Run(ctx context.Context, archive workspace.Archive) (*Result, error) {
	return p.run(ctx, archive, StageExport)
}

// Inspect runs the stages up to styling and skips composition and export.
func (p *Pipeline) Inspect(ctx context.Context, archive workspace.Archive) (*Result, error) {
	return p.run(ctx, archive, StageStyle)
}

func (p *Pipeline) run(ctx context.Context, archive workspace.Archive, last string) (result *Result, err error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: context done before start")
	}

	result = &Result{RunID: uuid.NewString(), Archive: archive.Name}
	log := zap.L().With(zap.String("run_id", result.RunID), zap.String("archive", archive.Name))
	log.Info("pipeline: starting run", zap.Int("bytes", len(archive.Data)))
	start := time.Now()

	var notices geoerr.Notices
	defer func() {
		result.Notices = notices.List()
		for _, n := range result.Notices {
			metrics.IncNotice(n.Kind.String())
		}
		outcome := "ok"
		switch {
		case err != nil:
			outcome = geoerr.KindOf(err).String()
		case result.Empty:
			outcome = "empty"
		}
		metrics.ObserveRun(outcome)
		log.Info("pipeline: run finished",
			zap.String("outcome", outcome),
			zap.Int("notices", len(result.Notices)),
			zap.Duration("elapsed", time.Since(start)),
		)
	}()

	trackStage := func(name string, fn func() error) error {
		t0 := time.Now()
		fnErr := fn()
		elapsed := time.Since(t0)
		metrics.ObserveStage(name, elapsed)

		sr := StageResult{Name: name, Status: StageComplete, Duration: elapsed.Milliseconds()}
		if fnErr != nil {
			sr.Status = StageFailed
			sr.Error = fnErr.Error()
			if geoerr.KindOf(fnErr).Informational() {
				log.Info("pipeline: nothing to display", zap.String("stage", name), zap.Error(fnErr))
			} else {
				log.Error("pipeline: stage failed", zap.String("stage", name), zap.Duration("elapsed", elapsed), zap.Error(fnErr))
			}
		} else {
			log.Debug("pipeline: stage complete", zap.String("stage", name), zap.Duration("elapsed", elapsed))
		}
		result.Stages = append(result.Stages, sr)
		return fnErr
	}

	ws, err := workspace.New(workspace.Options{BaseDir: p.wsCfg.TempDir, MaxExtractBytes: p.wsCfg.MaxExtractBytes})
	if err != nil {
		return result, eris.Wrap(err, "pipeline: workspace")
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			log.Warn("pipeline: workspace cleanup failed", zap.String("dir", ws.Root()), zap.Error(cerr))
		}
	}()

	// Extract.
	if err := trackStage(StageExtract, func() error {
		zipPath, werr := ws.WriteArchive(archive)
		if werr != nil {
			return werr
		}
		if _, werr = ws.Extract(zipPath); werr != nil {
			return werr
		}
		shpPath, werr := ws.FindGeometryFile()
		if werr != nil {
			return werr
		}
		result.GeometryFile, _ = filepath.Rel(ws.DataDir(), shpPath)
		return nil
	}); err != nil {
		return p.finish(result, err)
	}

	// Load.
	var fc *dataset.FeatureCollection
	if err := trackStage(StageLoad, func() error {
		var lerr error
		fc, lerr = dataset.Load(filepath.Join(ws.DataDir(), result.GeometryFile), dataset.Options{PreferredLabel: p.mapCfg.LabelColumn})
		if fc != nil {
			result.Dataset = fc
			result.SourceCRS = fc.CRS
			metrics.AddFeatures(fc.Len())
		}
		return lerr
	}); err != nil {
		return p.finish(result, err)
	}

	// Reproject.
	if err := trackStage(StageReproject, func() error {
		out, rerr := p.normalizer.Normalize(fc, &notices)
		if rerr != nil {
			return rerr
		}
		fc = out
		return nil
	}); err != nil {
		return p.finish(result, err)
	}

	// Simplify.
	_ = trackStage(StageSimplify, func() error {
		fc, result.Simplify = p.simplifier.Simplify(fc, &notices)
		return nil
	})
	result.Dataset = fc

	// Style.
	if err := trackStage(StageStyle, func() error {
		st, serr := p.styler.Style(fc)
		if serr != nil {
			return serr
		}
		result.Style = st
		return nil
	}); err != nil {
		return p.finish(result, err)
	}

	if last == StageStyle {
		if _, ok := fc.Bound(); !ok {
			result.Empty = true
			result.Message = geoerr.EmptyDataset.Message()
		}
		return result, nil
	}

	// Compose.
	if err := trackStage(StageCompose, func() error {
		m, cerr := p.composer.Compose(fc, result.Style)
		if cerr != nil {
			return cerr
		}
		result.Map = m
		return nil
	}); err != nil {
		return p.finish(result, err)
	}

	// Export.
	if err := trackStage(StageExport, func() error {
		doc, xerr := p.exporter.HTML(result.Map)
		if xerr != nil {
			return xerr
		}
		result.Document = doc
		return nil
	}); err != nil {
		return p.finish(result, err)
	}

	return result, nil
}

// finish marks the stages that never ran and converts an informational
// EmptyDataset failure into an empty result.
func (p *Pipeline) finish(result *Result, err error) (*Result, error) {
	for _, name := range []string{StageExtract, StageLoad, StageReproject, StageSimplify, StageStyle, StageCompose, StageExport} {
		if !hasStage(result.Stages, name) {
			result.Stages = append(result.Stages, StageResult{Name: name, Status: StageSkipped})
		}
	}
	// No partial map survives a stopped run.
	result.Map = nil
	result.Document = nil
	if geoerr.KindOf(err).Informational() {
		result.Empty = true
		result.Message = geoerr.EmptyDataset.Message()
		return result, nil
	}
	return result, err
}

func hasStage(stages []StageResult, name string) bool {
	for _, s := range stages {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Bounds returns the display extent of a result, if it has one.
func (r *Result) Bounds() (orb.Bound, bool) {
	if r.Dataset == nil {
		return orb.Bound{}, false
	}
	return r.Dataset.Bound()
}
