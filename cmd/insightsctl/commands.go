package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbourn/journal-insights/internal/bootstrap"
	"github.com/tbourn/journal-insights/internal/repo"
	"github.com/tbourn/journal-insights/internal/services"
	"github.com/tbourn/journal-insights/internal/utils"
)

func periodCmd(c *cli) *cobra.Command {
	var baseDate string
	cmd := &cobra.Command{
		Use:       "period <weekly|monthly>",
		Short:     "Print the reporting period a base date resolves to",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"weekly", "monthly"},
		RunE: func(cmd *cobra.Command, args []string) error {
			s := services.NewScheduler(c.cfg, nil, nil, nil)
			p, base, err := s.ResolvePeriod(args[0], baseDate)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"baseDate": base,
				"period":   p,
				"days":     p.Days(),
			})
		},
	}
	cmd.Flags().StringVar(&baseDate, "base-date", "", "YYYY-MM-DD (default: today in REPORT_TIMEZONE)")
	return cmd
}

func runCmd(c *cli) *cobra.Command {
	var req services.RunRequest
	cmd := &cobra.Command{
		Use:   "run <weekly|monthly>",
		Short: "Run one scheduler page in-process",
		Long: `Run one scheduler page in-process.

Without --user the page is listed, filtered for eligibility and published as
batches; a full page schedules its own continuation. With --user and --sync
the user is generated inline and the outcome printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Type = args[0]
			req.Limit = utils.ClampInt(req.Limit, 1, services.MaxPageLimit)
			req.BatchSize = utils.ClampInt(req.BatchSize, 1, services.MaxBatchSize)
			return withApp(cmd.Context(), c, func(app *bootstrap.App) error {
				sum, err := app.Scheduler.Run(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), sum)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.BaseDate, "base-date", "", "YYYY-MM-DD the period is computed from")
	f.StringVar(&req.UserID, "user", "", "process a single user")
	f.BoolVar(&req.Sync, "sync", false, "generate --user inline instead of queueing")
	f.IntVar(&req.Page, "page", 1, "1-based user page")
	f.IntVar(&req.Limit, "limit", services.DefaultPageLimit, "users per page")
	f.IntVar(&req.BatchSize, "batch-size", services.DefaultBatchSize, "users per batch message")
	return cmd
}

func coverageCmd(c *cli) *cobra.Command {
	var q services.CoverageQuery
	cmd := &cobra.Command{
		Use:   "coverage <weekly|monthly>",
		Short: "Count stored results against eligible users for a period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Type = args[0]
			return withApp(cmd.Context(), c, func(app *bootstrap.App) error {
				cov, err := app.Coverage.Get(cmd.Context(), q)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), cov)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&q.BaseDate, "base-date", "", "YYYY-MM-DD the period is computed from")
	f.StringVar(&q.Start, "start", "", "explicit period start (YYYY-MM-DD)")
	f.StringVar(&q.End, "end", "", "explicit period end (YYYY-MM-DD)")
	return cmd
}

func showCmd(c *cli) *cobra.Command {
	var baseDate, userID string
	cmd := &cobra.Command{
		Use:   "show <weekly|monthly>",
		Short: "Print the stored result of one user for a period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			return withApp(cmd.Context(), c, func(app *bootstrap.App) error {
				p, _, err := app.Scheduler.ResolvePeriod(args[0], baseDate)
				if err != nil {
					return err
				}
				res, err := app.Store.Result(cmd.Context(), userID, p)
				if errors.Is(err, repo.ErrNotFound) {
					return fmt.Errorf("no %s result for %s starting %s", p.Type, userID, p.StartDate)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&baseDate, "base-date", "", "YYYY-MM-DD the period is computed from")
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	return cmd
}

func dispatchCmd(c *cli) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Drain the local redis queue emulator",
		Long: `Drain the local redis queue emulator (QUEUE_DRIVER=redis).

Due messages are signed with QSTASH_CURRENT_SIGNING_KEY and delivered to their
destination URL. Runs until interrupted unless --once is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), c, func(app *bootstrap.App) error {
				d, err := app.Dispatcher()
				if err != nil {
					return err
				}
				if !once {
					return d.Run(cmd.Context())
				}
				n, err := d.DispatchDue(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]int{"dispatched": n})
			})
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "deliver what is due now and exit")
	return cmd
}

func withApp(ctx context.Context, c *cli, fn func(*bootstrap.App) error) error {
	app, err := c.open(ctx, c.cfg)
	if err != nil {
		return err
	}
	return errors.Join(fn(app), app.Close())
}
