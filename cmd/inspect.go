package main

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/geomap/internal/pipeline"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <archive.zip>",
	Short: "Summarize a zipped shapefile without rendering it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline(cfg, "render")
		if err != nil {
			return err
		}
		return runInspect(cmd.Context(), cmd.OutOrStdout(), p, args[0])
	},
}

func runInspect(ctx context.Context, w io.Writer, runner pipeline.Runner, path string) error {
	archive, err := readArchive(path)
	if err != nil {
		return err
	}

	res, err := runner.Inspect(ctx, archive)
	if err != nil {
		return userFacing(err)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(summarize(res)); err != nil {
		return eris.Wrap(err, "inspect: encode summary")
	}
	return enc.Close()
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
