package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/opd-ai/vcable/loader"
	"github.com/spf13/cobra"
)

func newWatchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print plugins as they are installed",
		Long: `Watch the plugin directories and register new candidates as they appear.

Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := opts.openSession()
			if err != nil {
				return err
			}
			defer session.Release()

			out := cmd.OutOrStdout()
			for _, p := range session.Plugins() {
				fmt.Fprintf(out, "%d %s %s\n", p.Index, p.Name, p.Path)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return watchPlugins(ctx, cmd, session.Watch, opts.cfg.SearchPaths())
		},
	}
}

type watchFunc func(ctx context.Context, dirs []string, onLoad func(loader.Result)) error

func watchPlugins(ctx context.Context, cmd *cobra.Command, watch watchFunc, dirs []string) error {
	out := cmd.OutOrStdout()
	return watch(ctx, dirs, func(res loader.Result) {
		if res.Outcome != loader.Registered {
			fmt.Fprintf(out, "skipped %s: %s: %v\n", res.Path, res.Outcome, res.Err)
			return
		}
		fmt.Fprintf(out, "%d %s %s\n", res.Slot+1, res.Descriptor.Name, res.Path)
	})
}
