package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"planview/internal/config"
	appLog "planview/internal/log"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0-dev"

type globalOptions struct {
	ConfigPath string
	Verbose    bool

	cfg *config.Config
}

func main() {
	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		appLog.Error("planview failed", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "planview",
		Short:         "Timeline view of planned operational and simulator work",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return opts.load()
		},
	}
	root.SetVersionTemplate("planview {{.Version}}\n")

	root.PersistentFlags().StringVar(&opts.ConfigPath, "config", config.DefaultPath, "Config file path (.yaml or .toml)")
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Debug logging")

	root.AddCommand(
		newServeCommand(opts),
		newRenderCommand(opts),
		newLayoutCommand(opts),
		newVersionCommand(),
	)
	return root
}

// load reads the config file and applies the log level. --verbose wins over
// the configured level.
func (o *globalOptions) load() error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", o.ConfigPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", o.ConfigPath, err)
	}

	level, ok := appLog.ParseLevel(cfg.LogLevel)
	if !ok {
		appLog.Warn("unknown log level; using info", "log_level", cfg.LogLevel)
	}
	if o.Verbose {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	appLog.Debug("effective config",
		"config_path", o.ConfigPath,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"refresh", cfg.RefreshCron,
		"horizon_days", cfg.HorizonDays,
		"backfill_days", cfg.BackfillDays,
		"sources", len(cfg.Sources),
		"markers", len(cfg.Markers),
		"capture", cfg.Capture.Enabled,
	)
	o.cfg = cfg
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "planview %s\n", version)
			return err
		},
	}
}
