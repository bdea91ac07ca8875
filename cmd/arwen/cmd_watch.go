package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"arwen/internal/check"
	"arwen/internal/spec"
	"arwen/internal/watch"

	"github.com/spf13/cobra"
)

// watchCmd re-parses annotation files as they are edited
var watchCmd = &cobra.Command{
	Use:   "watch [path...]",
	Short: "Re-parse annotation files on change",
	Long: `Watches annotation files (or every .ml file in a directory) and reports
parse errors and undeclared predicates each time a file is saved. Runs
until interrupted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return watchUntil(ctx, cmd, args)
}

// watchUntil runs the watcher until ctx is done.
func watchUntil(ctx context.Context, cmd *cobra.Command, paths []string) error {
	out := cmd.OutOrStdout()
	st := stylesFor(out)
	var mu sync.Mutex

	w, err := watch.New(paths, cfg.GetDebounce(), func(path string, f *spec.AssertionFile, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			fmt.Fprintln(out, st.Render(st.Error, err.Error()))
			return
		}
		report := check.Predicates(f)
		if len(report.Violations) == 0 {
			fmt.Fprintf(out, "%s %s\n", st.Render(st.Success, "ok"), path)
			return
		}
		for _, v := range report.Violations {
			fmt.Fprintf(out, "%s: %s\n", path, st.Render(st.Warning, v.String()))
		}
	})
	if err != nil {
		return err
	}
	w.Start(ctx)
	fmt.Fprintln(out, st.Render(st.Muted, fmt.Sprintf("watching %d paths, ctrl-c to stop", len(paths))))

	<-ctx.Done()
	w.Stop()
	return nil
}
