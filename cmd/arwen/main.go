package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arwen/internal/config"
	"arwen/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string
	timeout    time.Duration

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "arwen",
	Short: "arwen - host driver for the lemma-discovery engine",
	Long: `arwen talks to the specification-discovery engine over its JSON line
protocol. It parses and renders annotation files, checks a Setup before it
is sent, runs discovery, and keeps a history of runs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", configPath, err)
		}

		zc := zap.NewProductionConfig()
		zc.Encoding = "console"
		if cfg.Logging.Format == "json" {
			zc.Encoding = "json"
		}
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			cfg.Logging.DebugMode = true
			cfg.Logging.Level = "debug"
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := logging.Initialize(cfg.Logging.ToLogging()); err != nil {
			return err
		}
		if cfg.Logging.Dir == "" {
			logging.UseLogger(logger)
		}
		logging.Get(logging.CategoryCLI).Debug("command %s, config %s", cmd.CommandPath(), configPath)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "arwen.yaml", "Config file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Operation timeout (default: engine.timeout from config)")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(echoCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(factsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// operationContext bounds an engine operation by --timeout, or the
// configured engine timeout, and cancels on SIGINT/SIGTERM.
func operationContext() (context.Context, context.CancelFunc) {
	d := timeout
	if d <= 0 {
		d = cfg.GetEngineTimeout()
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	return ctx, func() {
		stop()
		cancel()
	}
}
