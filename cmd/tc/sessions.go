package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"timeclock/internal/domain"
	"timeclock/internal/engine"
)

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Clock in and out",
	}
	cmd.AddCommand(sessionStartCmd())
	cmd.AddCommand(sessionEndCmd())
	cmd.AddCommand(sessionSwitchCmd())
	cmd.AddCommand(sessionShowCmd())
	cmd.AddCommand(sessionListCmd())
	return cmd
}

func sessionStartCmd() *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				userID, err := actingUser(ctx, e)
				if err != nil {
					return err
				}
				s, err := e.StartSession(ctx, userID, optionalString(project))
				if err != nil {
					return err
				}
				return printSessions([]domain.Session{s})
			})
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project to start working on")
	return cmd
}

// sessionArg returns the session named on the command line or the user's ACTIVE one.
func sessionArg(ctx context.Context, e engine.Engine, userID string, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	tl, err := e.ActiveTimeline(ctx, userID)
	if err != nil {
		var nf engine.NotFoundError
		if errors.As(err, &nf) {
			return "", errors.New("no active session")
		}
		return "", err
	}
	return tl.Session.ID, nil
}

func sessionEndCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "end [session-id]",
		Short: "End a session (default: the active one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				userID, err := actingUser(ctx, e)
				if err != nil {
					return err
				}
				id, err := sessionArg(ctx, e, userID, args)
				if err != nil {
					return err
				}
				s, err := e.EndSession(ctx, userID, id)
				if err != nil {
					return err
				}
				return printSessions([]domain.Session{s})
			})
		},
	}
}

func sessionSwitchCmd() *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "switch [session-id]",
		Short: "Switch the project being worked on; omit --project to clear it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				userID, err := actingUser(ctx, e)
				if err != nil {
					return err
				}
				id, err := sessionArg(ctx, e, userID, args)
				if err != nil {
					return err
				}
				s, err := e.SwitchProject(ctx, userID, id, optionalString(project))
				if err != nil {
					return err
				}
				return printSessions([]domain.Session{s})
			})
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "new project")
	return cmd
}

func sessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [session-id]",
		Short: "Show a session timeline (default: the active one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				userID, err := actingUser(ctx, e)
				if err != nil {
					return err
				}
				var tl domain.Timeline
				if len(args) > 0 {
					tl, err = e.SessionTimeline(ctx, userID, args[0])
				} else {
					tl, err = e.ActiveTimeline(ctx, userID)
				}
				if err != nil {
					return err
				}
				return printTimeline(tl)
			})
		},
	}
}

func sessionListCmd() *cobra.Command {
	var from, to, forUser string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			fromT, err := parseWhen("from", from)
			if err != nil {
				return err
			}
			toT, err := parseWhen("to", to)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID, err := actingUser(ctx, e)
				if err != nil {
					return err
				}
				userID, err := targetUser(ctx, e, forUser, actorID)
				if err != nil {
					return err
				}
				sessions, err := e.ListSessions(ctx, userID, fromT, toT, limit)
				if err != nil {
					return err
				}
				return printSessions(sessions)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "earliest start (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&to, "to", "", "latest start (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&forUser, "for", "", "user whose sessions to list (default: acting user)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum sessions")
	return cmd
}

func breakCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "break",
		Short: "Take breaks during a session",
	}
	cmd.AddCommand(breakStartCmd())
	cmd.AddCommand(breakEndCmd())
	return cmd
}

func breakStartCmd() *cobra.Command {
	var breakType, session string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a break in the active session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				userID, err := actingUser(ctx, e)
				if err != nil {
					return err
				}
				var sessionArgs []string
				if session != "" {
					sessionArgs = []string{session}
				}
				id, err := sessionArg(ctx, e, userID, sessionArgs)
				if err != nil {
					return err
				}
				b, err := e.StartBreak(ctx, userID, id, domain.BreakType(breakType))
				if err != nil {
					return err
				}
				return printBreaks([]domain.Break{b})
			})
		},
	}
	cmd.Flags().StringVar(&breakType, "type", string(domain.BreakShort), "SHORT, LUNCH, PRAYER or OTHER")
	cmd.Flags().StringVar(&session, "session", "", "session id (default: the active one)")
	return cmd
}

func breakEndCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "end [break-id]",
		Short: "End a break (default: the open break of the active session)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				userID, err := actingUser(ctx, e)
				if err != nil {
					return err
				}
				breakID := ""
				if len(args) > 0 {
					breakID = args[0]
				} else {
					tl, err := e.ActiveTimeline(ctx, userID)
					if err != nil {
						return err
					}
					for _, b := range tl.Breaks {
						if b.EndTime == nil {
							breakID = b.ID
						}
					}
					if breakID == "" {
						return errors.New("no open break")
					}
				}
				b, err := e.EndBreak(ctx, userID, breakID)
				if err != nil {
					return err
				}
				return printBreaks([]domain.Break{b})
			})
		},
	}
}

func printSessions(sessions []domain.Session) error {
	if viper.GetBool("json") {
		return printJSON(sessions)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Status", "Project", "Start", "End", "Total", "Breaks"})
	for _, s := range sessions {
		tw.AppendRow(table.Row{s.ID, s.Status, deref(s.ProjectID), formatTime(&s.StartTime), formatTime(s.EndTime),
			formatDuration(s.TotalDuration), formatDuration(s.TotalBreakTime)})
	}
	tw.Render()
	return nil
}

func printBreaks(breaks []domain.Break) error {
	if viper.GetBool("json") {
		return printJSON(breaks)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Session", "Type", "Start", "End", "Duration"})
	for _, b := range breaks {
		tw.AppendRow(table.Row{b.ID, b.SessionID, b.Type, formatTime(&b.StartTime), formatTime(b.EndTime), formatDuration(b.Duration)})
	}
	tw.Render()
	return nil
}

func printTimeline(tl domain.Timeline) error {
	if viper.GetBool("json") {
		return printJSON(tl)
	}
	if err := printSessions([]domain.Session{tl.Session}); err != nil {
		return err
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Segment", "Type", "Project", "Start", "End", "Duration"})
	for _, seg := range tl.Segments {
		end := formatTime(seg.EndTime)
		if seg.Open() {
			end = "open"
		}
		tw.AppendRow(table.Row{seg.ID, seg.Type, deref(seg.ProjectID), formatTime(&seg.StartTime), end, formatDuration(seg.Duration)})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "work / break", fmt.Sprintf("%s / %s", formatDuration(tl.ElapsedWork), formatDuration(tl.ElapsedBreak))})
	tw.Render()
	return nil
}
