package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/config"
	"github.com/sells-group/geomap/internal/pipeline"
	"github.com/sells-group/geomap/internal/style"
	"github.com/sells-group/geomap/internal/workspace"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "geomap",
	Short: "Render zipped shapefiles as interactive web maps",
	Long:  "Extracts a zipped shapefile bundle, normalizes it to WGS 84, simplifies and colors it by a label column, and exports a self-contained Leaflet map.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

// newPipeline validates the configuration for mode and builds a pipeline,
// loading the style preset when one is configured.
func newPipeline(c *config.Config, mode string) (*pipeline.Pipeline, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	var preset *style.Preset
	if c.Map.StylePreset != "" {
		p, err := style.LoadPreset(c.Map.StylePreset)
		if err != nil {
			return nil, err
		}
		preset = p
		zap.L().Info("loaded style preset", zap.String("path", c.Map.StylePreset))
	}

	return pipeline.New(c, preset)
}

// readArchive reads a zip from disk into an Archive named after the file.
func readArchive(path string) (workspace.Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return workspace.Archive{}, eris.Wrapf(err, "read archive %s", path)
	}
	return workspace.Archive{Name: path, Data: data}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
