package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docmark/internal/parser"
)

func (a *app) newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <file>...",
		Short: "Print the detected format of each file",
		Long: `Detect reports which pipeline convert would use for each file: doc, docx,
pdf, or unknown. The leading bytes decide; the file extension is consulted
only when the content is not recognised.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", path, parser.DetectFormat(data, path))
			}
			return nil
		},
	}
}
