package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"timeclock/internal/billing"
	"timeclock/internal/domain"
	"timeclock/internal/engine"
)

// resolveCycle turns --cycle YYYY-MM into a cycle, defaulting to the current one.
func resolveCycle(e engine.Engine, label string) (billing.Cycle, error) {
	if label == "" {
		return e.CurrentCycle(), nil
	}
	return billing.ParseCycle(label)
}

func cycleCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "cycle", Short: "Billing cycles (19th to 18th)"}
	var label, at string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show a billing cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := parseWhen("at", at)
			if err != nil {
				return err
			}
			var c billing.Cycle
			switch {
			case label != "":
				if c, err = billing.ParseCycle(label); err != nil {
					return err
				}
			case when != nil:
				c = billing.CurrentCycle(*when)
			default:
				c = billing.CurrentCycle(time.Now())
			}
			out := map[string]any{
				"label":        c.Label(),
				"start_date":   c.Start,
				"end_date":     c.End,
				"working_days": c.WorkingDays(),
			}
			if viper.GetBool("json") {
				return printJSON(out)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Cycle", "Start", "End", "Working days"})
			tw.AppendRow(table.Row{c.Label(), c.Start.Format("2006-01-02"), c.End.Format("2006-01-02"), c.WorkingDays()})
			tw.Render()
			return nil
		},
	}
	show.Flags().StringVar(&label, "cycle", "", "cycle label YYYY-MM (opens on the 19th of that month)")
	show.Flags().StringVar(&at, "at", "", "date inside the cycle")
	cmd.AddCommand(show)
	return cmd
}

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Live scores",
		Long:  "Scores are computed on the fly and never stored; use 'tc payout sync' to snapshot them.",
	}
	var label, forUser string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show a user's scores for a cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID, err := actingUser(ctx, e)
				if err != nil {
					return err
				}
				userID, err := targetUser(ctx, e, forUser, actorID)
				if err != nil {
					return err
				}
				if userID != actorID {
					if err := e.Auth.RequireRole(ctx, nil, actorID, domain.RoleAdmin); err != nil {
						return err
					}
				}
				c, err := resolveCycle(e, label)
				if err != nil {
					return err
				}
				card, err := e.UserScores(ctx, userID, c)
				if err != nil {
					return err
				}
				return printScorecards([]engine.Scorecard{card})
			})
		},
	}
	show.Flags().StringVar(&label, "cycle", "", "cycle label YYYY-MM (default: current)")
	show.Flags().StringVar(&forUser, "for", "", "user (admin only when not yourself)")

	var teamLabel string
	team := &cobra.Command{
		Use:   "team",
		Short: "Show every active user's scores (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID, err := actingUser(ctx, e)
				if err != nil {
					return err
				}
				if err := e.Auth.RequireRole(ctx, nil, actorID, domain.RoleAdmin); err != nil {
					return err
				}
				c, err := resolveCycle(e, teamLabel)
				if err != nil {
					return err
				}
				cards, err := e.TeamScores(ctx, c)
				if err != nil {
					return err
				}
				return printScorecards(cards)
			})
		},
	}
	team.Flags().StringVar(&teamLabel, "cycle", "", "cycle label YYYY-MM (default: current)")
	cmd.AddCommand(show, team)
	return cmd
}

func payoutCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "payout", Short: "Payout snapshots"}
	var syncLabel string
	sync := &cobra.Command{
		Use:   "sync",
		Short: "Recompute and store payout snapshots for every active user (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID, err := actingUser(ctx, e)
				if err != nil {
					return err
				}
				c, err := resolveCycle(e, syncLabel)
				if err != nil {
					return err
				}
				snaps, err := e.SyncPayoutSnapshots(ctx, actorID, c)
				if err != nil {
					return err
				}
				return printSnapshots(snaps)
			})
		},
	}
	sync.Flags().StringVar(&syncLabel, "cycle", "", "cycle label YYYY-MM (default: current)")

	var listLabel string
	list := &cobra.Command{
		Use:   "list",
		Short: "List stored payout snapshots (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID, err := actingUser(ctx, e)
				if err != nil {
					return err
				}
				if err := e.Auth.RequireRole(ctx, nil, actorID, domain.RoleAdmin); err != nil {
					return err
				}
				c, err := resolveCycle(e, listLabel)
				if err != nil {
					return err
				}
				snaps, err := e.ListPayoutSnapshots(ctx, c)
				if err != nil {
					return err
				}
				return printSnapshots(snaps)
			})
		},
	}
	list.Flags().StringVar(&listLabel, "cycle", "", "cycle label YYYY-MM (default: current)")
	cmd.AddCommand(sync, list)
	return cmd
}

func scoreColumns() []table.ColumnConfig {
	var cfgs []table.ColumnConfig
	for i := 3; i <= 8; i++ {
		cfgs = append(cfgs, table.ColumnConfig{Number: i, Align: text.AlignRight})
	}
	return cfgs
}

func printScorecards(cards []engine.Scorecard) error {
	if viper.GetBool("json") {
		return printJSON(cards)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"User", "Cycle", "Output", "Availability", "Stability", "Base", "Expected", "Difference"})
	tw.SetColumnConfigs(scoreColumns())
	for _, c := range cards {
		tw.AppendRow(table.Row{c.Name, c.Cycle.Label(), score2(c.MonthlyOutputScore), score2(c.AvailabilityScore), score2(c.StabilityScore),
			c.BaseCompensationINR, c.ExpectedPayoutINR, c.DifferenceINR})
	}
	tw.Render()
	return nil
}

func printSnapshots(snaps []domain.PayoutSnapshot) error {
	if viper.GetBool("json") {
		return printJSON(snaps)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"User", "Cycle", "Output", "Availability", "Stability", "Base", "Expected", "Difference", "Synced"})
	tw.SetColumnConfigs(scoreColumns())
	for _, s := range snaps {
		tw.AppendRow(table.Row{s.UserID, s.BillingCycleStart.Format("2006-01"), score2(s.MonthlyOutputScore), score2(s.AvailabilityScore),
			score2(s.StabilityScore), s.BaseCompensationINR, s.ExpectedPayoutINR, s.DifferenceINR, formatTime(&s.SnapshotDate)})
	}
	tw.Render()
	return nil
}

func score2(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
