package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd(opts *globalOptions) *cobra.Command {
	var showSkipped bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered plugins",
		Long: `Scan the plugin directories and print every registered plugin.

The INDEX column is the value to use with "vcable run --plugin".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := opts.openSession()
			if err != nil {
				return err
			}
			defer session.Release()

			out := cmd.OutOrStdout()
			plugins := session.Plugins()
			if len(plugins) == 0 {
				fmt.Fprintln(out, "No plugins registered.")
				fmt.Fprintf(out, "Search paths: %v\n", opts.cfg.SearchPaths())
			} else {
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "INDEX\tNAME\tVERSION\tPATH\tDESCRIPTION")
				for _, p := range plugins {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", p.Index, p.Name, p.Version, p.Path, p.Description)
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}

			if !showSkipped {
				return nil
			}

			report := session.Report()
			for _, dir := range report.SkippedDirs {
				fmt.Fprintf(out, "skipped directory %s\n", dir)
			}
			for _, res := range report.Skipped() {
				fmt.Fprintf(out, "skipped %s: %s: %v\n", res.Path, res.Outcome, res.Err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSkipped, "skipped", false, "also print rejected candidates and unreadable directories")

	return cmd
}
