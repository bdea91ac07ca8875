package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"arwen/internal/facts"
	"arwen/internal/store"

	"github.com/spf13/cobra"
)

var (
	historyClient string
	historyLimit  int
	historyPrune  time.Duration

	factsOut string
)

// historyCmd lists recorded runs
var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded discovery runs, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

// factsCmd exports a recorded run as Mangle facts
var factsCmd = &cobra.Command{
	Use:   "facts [run-id]",
	Short: "Export a recorded run as Mangle facts",
	Long: `Converts the result of a recorded run into Mangle facts:

  discovered_spec(Client, Name, Size, Text)
  spec_uses(Client, Name, Symbol)
  cex_binding(Index, Var, Value)
  cex_count(Client, N)`,
	Args: cobra.ExactArgs(1),
	RunE: runFacts,
}

func init() {
	historyCmd.Flags().StringVar(&historyClient, "client", "", "Only runs for this client")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum runs to list (0 = all)")
	historyCmd.Flags().DurationVar(&historyPrune, "prune", 0, "Delete runs older than this before listing")

	factsCmd.Flags().StringVarP(&factsOut, "out", "o", "", "Write to file instead of stdout")
}

func openStore() (*store.Store, error) {
	if cfg.Store.Path == "" {
		return nil, fmt.Errorf("no run store configured (set store.path or ARWEN_STORE)")
	}
	if _, err := os.Stat(cfg.Store.Path); err != nil {
		return nil, fmt.Errorf("no run store at %s: %w", cfg.Store.Path, err)
	}
	return store.Open(cfg.Store.Path)
}

func runHistory(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := context.Background()
	out := cmd.OutOrStdout()
	st := stylesFor(out)

	if len(args) == 1 {
		run, err := s.Get(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s\n", st.Render(st.Label, "run:"), run.ID)
		fmt.Fprintf(out, "%s %s\n", st.Render(st.Label, "client:"), run.Client)
		fmt.Fprintf(out, "%s %s (%s)\n", st.Render(st.Label, "started:"), run.StartedAt.Format(time.RFC3339), run.Duration)
		fmt.Fprintf(out, "%s %s\n", st.Render(st.Label, "source:"), run.Setup.SourceFile)
		fmt.Fprintf(out, "%s %s\n", st.Render(st.Label, "assertion:"), run.Setup.AssertionFile)
		fmt.Fprintf(out, "%s %s\n", st.Render(st.Label, "preds:"), run.Setup.Predicates)
		for _, m := range run.Messages {
			fmt.Fprintln(out, st.Render(st.Muted, indent(m)))
		}
		if run.Err != "" {
			fmt.Fprintln(out, st.Render(st.Error, "error: "+run.Err))
		}
		if run.Result != nil {
			fmt.Fprint(out, run.Result.String())
		}
		return nil
	}

	if historyPrune > 0 {
		n, err := s.Delete(ctx, time.Now().Add(-historyPrune))
		if err != nil {
			return err
		}
		fmt.Fprintln(out, st.Render(st.Muted, fmt.Sprintf("pruned %d runs", n)))
	}

	runs, err := s.List(ctx, historyClient, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, st.Render(st.Muted, "no runs"))
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCLIENT\tSTARTED\tOUTCOME\tRESULT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Client, r.StartedAt.Format("2006-01-02 15:04:05"), r.Outcome(), summary(r.Result))
	}
	return tw.Flush()
}

func runFacts(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	run, err := s.Get(context.Background(), args[0])
	if err != nil {
		return err
	}
	if run.Result == nil {
		return fmt.Errorf("run %s has no result: %s", run.ID, run.Err)
	}
	if factsOut != "" {
		if err := writeFacts(factsOut, run.Client, run.Result); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), factsOut)
		return nil
	}
	program, err := facts.Program(facts.FromResult(run.Client, run.Result))
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), program)
	return nil
}
