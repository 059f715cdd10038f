package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geomap/internal/fixture"
)

var sampleOut string

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Write a small demo geology archive to try render and serve with",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := fixture.Bundle(fixture.Geology(), "geology")
		if err != nil {
			return err
		}
		if err := os.WriteFile(sampleOut, data, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", sampleOut)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", sampleOut)
		return nil
	},
}

func init() {
	sampleCmd.Flags().StringVarP(&sampleOut, "out", "o", "geology.zip", "archive path")
	rootCmd.AddCommand(sampleCmd)
}
