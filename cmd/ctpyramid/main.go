// Command ctpyramid builds and queries level-of-detail pyramids from a
// directory of CT slice images.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:     "ctpyramid",
		Short:   "Build and query level-of-detail pyramids for CT slice stacks",
		Version: fmt.Sprintf("%s (commit %s)", version, commit),
		SilenceUsage: true,
	}

	root.AddCommand(newBuildCommand())
	root.AddCommand(newScanCommand())
	root.AddCommand(newCropCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}
