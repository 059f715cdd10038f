package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/export"
	"github.com/sells-group/geomap/internal/geoerr"
	"github.com/sells-group/geomap/internal/pipeline"
)

var (
	renderOut        string
	renderGeoJSON    string
	renderAttributes string
)

var renderCmd = &cobra.Command{
	Use:   "render <archive.zip>",
	Short: "Render a zipped shapefile to a self-contained HTML map",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline(cfg, "render")
		if err != nil {
			return err
		}
		return runRender(cmd.Context(), cmd.OutOrStdout(), p, args[0], renderOptions{
			Out:        renderOut,
			GeoJSON:    renderGeoJSON,
			Attributes: renderAttributes,
		})
	},
}

type renderOptions struct {
	Out        string
	GeoJSON    string
	Attributes string
}

func runRender(ctx context.Context, w io.Writer, p *pipeline.Pipeline, path string, opts renderOptions) error {
	archive, err := readArchive(path)
	if err != nil {
		return err
	}

	res, err := p.Run(ctx, archive)
	if err != nil {
		return userFacing(err)
	}
	printNotices(w, res.Notices)

	if res.Empty {
		fmt.Fprintln(w, res.Message)
		return nil
	}

	out := opts.Out
	if out == "" {
		out = res.Document.Name
	}
	if err := writeDocument(out, res.Document); err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote %s (%d features, %d categories)\n", out, res.Map.FeatureCount(), len(res.Map.Overlays))

	if opts.GeoJSON != "" {
		doc, err := p.Exporter().GeoJSON(res.Map)
		if err != nil {
			return userFacing(err)
		}
		if err := writeDocument(opts.GeoJSON, doc); err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote %s\n", opts.GeoJSON)
	}

	if opts.Attributes != "" {
		doc, err := p.Exporter().Attributes(res.Dataset, res.Style)
		if err != nil {
			return userFacing(err)
		}
		if err := writeDocument(opts.Attributes, doc); err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote %s\n", opts.Attributes)
	}

	zap.L().Info("render complete",
		zap.String("run_id", res.RunID),
		zap.String("output", out),
		zap.Int("notices", len(res.Notices)),
	)
	return nil
}

func writeDocument(path string, doc *export.Document) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "create output dir %s", dir)
		}
	}
	if err := os.WriteFile(path, doc.Body, 0o644); err != nil {
		return eris.Wrapf(err, "write %s", path)
	}
	return nil
}

func printNotices(w io.Writer, notices []geoerr.Notice) {
	for _, n := range notices {
		if n.Feature >= 0 {
			fmt.Fprintf(w, "notice [%s] feature %d: %s\n", n.Stage, n.Feature, n.Message)
			continue
		}
		fmt.Fprintf(w, "notice [%s]: %s\n", n.Stage, n.Message)
	}
}

func init() {
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "output HTML path (default from map.export_name)")
	renderCmd.Flags().StringVar(&renderGeoJSON, "geojson", "", "also write the styled features as GeoJSON")
	renderCmd.Flags().StringVar(&renderAttributes, "attributes", "", "also write the attribute table as XLSX")
	rootCmd.AddCommand(renderCmd)
}
