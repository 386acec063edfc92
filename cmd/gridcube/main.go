// Package main provides the entry point for the gridcube CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gridcube/gridcube/cmd/gridcube/commands"
	"github.com/gridcube/gridcube/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "gridcube",
		Short: "Gridcube - tiled satellite mosaic data cube builder",
		Long: `Gridcube builds a time-indexed, spatially tiled raster mosaic from
satellite imagery: it tiles an area of interest into grid cells, aligns them
to a canonical mosaic grid, and dispatches one independent task per
(cell, time window) into a shared chunked array store.

Commands:
  build     Generate the grid and populate the data cube`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewBuildCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "gridcube %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
