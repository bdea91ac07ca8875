package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"arwen/internal/check"
	"arwen/internal/facts"
	"arwen/internal/ipc"
	"arwen/internal/logging"
	"arwen/internal/parser"
	"arwen/internal/source"
	"arwen/internal/spec"
	"arwen/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	discoverSource    string
	discoverAssertion string
	discoverOut       string
	discoverClient    string
	discoverPreds     []string
	discoverNoCheck   bool
	discoverNoStore   bool
	discoverFacts     string
)

// echoCmd round-trips messages through the engine's test mode
var echoCmd = &cobra.Command{
	Use:   "echo [message...]",
	Short: "Send messages through the engine in test mode",
	Long: `Starts the engine, switches it to test mode and sends each argument as
a Message. The engine echoes every message back; the replies are printed in
order. Useful to confirm the engine builds and the pipe works.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEcho,
}

// discoverCmd runs specification discovery for one client
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run specification discovery for a client function",
	Long: `Sends a Setup to the engine and waits for its Result: either the
discovered specifications or counterexamples.

Example:
  arwen discover --source data/customstk.ml \
    --assertion data/customstk_concat.ml --out out \
    --client concat --preds mem,hd`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().StringVar(&discoverSource, "source", "", "OCaml source file (required)")
	discoverCmd.Flags().StringVar(&discoverAssertion, "assertion", "", "Annotation file (required)")
	discoverCmd.Flags().StringVar(&discoverOut, "out", "", "Engine output directory (required)")
	discoverCmd.Flags().StringVar(&discoverClient, "client", "", "Client function name (required)")
	discoverCmd.Flags().StringSliceVar(&discoverPreds, "preds", nil, "Predicates, e.g. mem,hd (default: the annotation file's preds)")
	discoverCmd.Flags().BoolVar(&discoverNoCheck, "no-check", false, "Skip pre-send validation")
	discoverCmd.Flags().BoolVar(&discoverNoStore, "no-store", false, "Do not record the run")
	discoverCmd.Flags().StringVar(&discoverFacts, "facts", "", "Write the result as Mangle facts to this file")
	for _, name := range []string{"source", "assertion", "out", "client"} {
		discoverCmd.MarkFlagRequired(name)
	}
}

// startEngine launches the configured engine. The returned stop function
// shuts it down within the configured grace period.
func startEngine(ctx context.Context) (*ipc.Transport, func(), error) {
	command := cfg.EngineCommand()
	logger.Debug("starting engine", zap.String("command", command.String()), zap.String("dir", command.Dir))
	tr, err := ipc.Start(ctx, command)
	if err != nil {
		return nil, nil, err
	}
	stop := func() {
		sctx, cancel := context.WithTimeout(context.Background(), command.Grace+time.Second)
		defer cancel()
		if err := tr.Shutdown(sctx); err != nil {
			logger.Warn("engine shutdown", zap.Error(err))
		}
	}
	return tr, stop, nil
}

func runEcho(cmd *cobra.Command, args []string) error {
	ctx, cancel := operationContext()
	defer cancel()

	tr, stop, err := startEngine(ctx)
	if err != nil {
		return err
	}
	defer stop()

	sess := ipc.NewSession(tr)
	if err := sess.Start(); err != nil {
		return err
	}
	if err := sess.EnterTestMode(); err != nil {
		return err
	}
	for _, msg := range args {
		reply, err := sess.Echo(ctx, msg)
		if err != nil {
			return fmt.Errorf("echo %q: %w", msg, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply)
	}
	return nil
}

// buildSetup assembles the Setup from flags. Without --preds the
// annotation file's own preds list is used.
func buildSetup() (ipc.Setup, error) {
	setup := ipc.Setup{
		SourceFile:    discoverSource,
		AssertionFile: discoverAssertion,
		OutputDir:     discoverOut,
		ClientName:    discoverClient,
	}
	if len(discoverPreds) == 0 {
		f, err := parser.ParseFileAt(discoverAssertion)
		if err != nil {
			return setup, err
		}
		setup.Predicates = f.Preds
		return setup, nil
	}
	for _, s := range discoverPreds {
		k, err := spec.ParsePredicate(s)
		if err != nil {
			return setup, err
		}
		setup.Predicates = append(setup.Predicates, k)
	}
	return setup, nil
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx, cancel := operationContext()
	defer cancel()

	setup, err := buildSetup()
	if err != nil {
		return err
	}

	if cfg.Check.Enabled && !discoverNoCheck {
		reader := source.NewReader()
		report := check.All(ctx, reader, setup)
		reader.Close()
		if err := printReport(cmd, report); err != nil {
			return err
		}
	}

	tr, stop, err := startEngine(ctx)
	if err != nil {
		return err
	}
	defer stop()

	run := &store.Run{Setup: setup, StartedAt: time.Now()}
	sess := ipc.NewSession(tr)
	var result spec.Result
	var messages []string
	if err = sess.Start(); err == nil {
		result, messages, err = sess.Discover(ctx, setup)
	}
	run.Duration = time.Since(run.StartedAt)
	run.Result = result
	run.Messages = messages
	if err != nil {
		run.Err = err.Error()
	}

	out := cmd.OutOrStdout()
	st := stylesFor(out)
	for _, m := range messages {
		fmt.Fprintln(out, st.Render(st.Muted, m))
	}
	if result != nil {
		fmt.Fprintln(out, st.Render(st.Title, fmt.Sprintf("%s: %s", setup.ClientName, summary(result))))
		fmt.Fprint(out, result.String())
	}

	if recErr := recordRun(context.Background(), run); recErr != nil {
		logger.Warn("run not recorded", zap.Error(recErr))
	}
	if err != nil {
		if errors.Is(err, ipc.ErrTransportClosed) {
			return fmt.Errorf("engine exited before reporting a result: %w", err)
		}
		return err
	}

	if discoverFacts != "" {
		if err := writeFacts(discoverFacts, setup.ClientName, result); err != nil {
			return err
		}
	}
	return nil
}

func recordRun(ctx context.Context, run *store.Run) error {
	if discoverNoStore || !cfg.Store.Enabled {
		return nil
	}
	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Record(ctx, run); err != nil {
		return err
	}
	logging.Get(logging.CategoryCLI).Info("run %s recorded in %s", run.ID, s.Path())
	return nil
}

func writeFacts(path, client string, result spec.Result) error {
	program, err := facts.Program(facts.FromResult(client, result))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create facts directory: %w", err)
	}
	return os.WriteFile(path, []byte(program), 0644)
}
