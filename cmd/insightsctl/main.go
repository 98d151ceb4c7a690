// Command insightsctl is the operator CLI of the insight pipeline. It runs
// scheduler pages in-process, prints the period a base date resolves to,
// reports coverage, prints stored results and drains the local queue emulator.
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tbourn/journal-insights/internal/bootstrap"
	"github.com/tbourn/journal-insights/internal/config"
	"github.com/tbourn/journal-insights/internal/sysutil"
)

// cli carries what PersistentPreRunE prepared for the subcommands.
type cli struct {
	cfg config.Config
	lg  zerolog.Logger

	// open builds the pipeline; tests swap it.
	open func(ctx context.Context, cfg config.Config) (*bootstrap.App, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(defaultOpen).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func defaultOpen(ctx context.Context, cfg config.Config) (*bootstrap.App, error) {
	return bootstrap.New(ctx, cfg, bootstrap.Options{})
}

func newRootCmd(open func(context.Context, config.Config) (*bootstrap.App, error)) *cobra.Command {
	c := &cli{open: open}
	var logLevel string

	root := &cobra.Command{
		Use:           "insightsctl",
		Short:         "Operate the journal insight pipeline",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			c.cfg = cfg
			c.lg = sysutil.SetupLogging(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogPretty, "insightsctl")
			cmd.SetContext(c.lg.WithContext(cmd.Context()))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(
		periodCmd(c),
		runCmd(c),
		coverageCmd(c),
		showCmd(c),
		dispatchCmd(c),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
