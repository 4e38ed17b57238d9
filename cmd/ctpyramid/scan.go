package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jikhanjung/ctpyramid/internal/ctpyramid"
)

func newScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <source-dir>",
		Short: "Discover and validate the level-0 slice sequence without building anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := ctpyramid.ScanDirectory(args[0])
			if err != nil {
				return fmt.Errorf("scanning: %w", err)
			}

			bold := color.New(color.Bold)
			example := fmt.Sprintf("%s%0*d.%s", result.Meta.Prefix, result.Meta.IndexWidth, result.Meta.Begin, result.Meta.Extension)
			fmt.Printf("%s %s (%d-digit index)\n", bold.Sprint("Pattern:"), example, result.Meta.IndexWidth)
			fmt.Printf("%s %d slices [%d..%d]\n", bold.Sprint("Count:"), result.Meta.Count(), result.Meta.Begin, result.Meta.End)
			fmt.Printf("%s %dx%d, %d-bit\n", bold.Sprint("Dimensions:"), result.Meta.Width, result.Meta.Height, result.Meta.BitDepth)

			if len(result.Warnings) > 0 {
				fmt.Println()
				yellow := color.New(color.FgYellow)
				for _, w := range result.Warnings {
					yellow.Printf("WARN: %s\n", w)
				}
			}
			return nil
		},
	}
	return cmd
}
