package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"docmark/internal/errlog"
)

func newLogCmd() *cobra.Command {
	var lines int
	var archives bool

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the error log",
		Long: `Log prints the most recent lines of the error log kept in log.error_dir,
or with --archives the rotated, compressed logs next to it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !errlog.Enabled() {
				return errors.New("error log is disabled; set log.error_dir")
			}
			out := cmd.OutOrStdout()
			if archives {
				names, err := errlog.ListArchives()
				if err != nil {
					return fmt.Errorf("list archives: %w", err)
				}
				for _, name := range names {
					fmt.Fprintln(out, filepath.Join(errlog.Dir(), name))
				}
				return nil
			}
			recent, err := errlog.RecentLines(lines)
			if err != nil {
				return fmt.Errorf("read error log: %w", err)
			}
			for _, line := range recent {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of lines to show")
	cmd.Flags().BoolVar(&archives, "archives", false, "list rotated archives instead")
	return cmd
}
