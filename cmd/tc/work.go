package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"timeclock/internal/domain"
	"timeclock/internal/engine"
	"timeclock/internal/repo"
)

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks feed the output score: completed tasks are rated 0-200 by an admin.",
	}
	cmd.AddCommand(taskCreateCmd())
	cmd.AddCommand(taskListCmd())
	cmd.AddCommand(taskCompleteCmd())
	cmd.AddCommand(taskRateCmd())
	cmd.AddCommand(taskApproveCmd())
	return cmd
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	var assignee string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID, err := actingUser(ctx, e)
				if err != nil {
					return err
				}
				opts.ActorID = actorID
				if assignee != "" {
					if opts.AssignedToID, err = resolveUser(ctx, e, assignee); err != nil {
						return err
					}
				}
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printTasks([]domain.Task{t})
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "task title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "project")
	cmd.Flags().StringVar(&assignee, "assign", "", "assignee id or email")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	var assignee string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if assignee != "" {
					id, err := resolveUser(ctx, e, assignee)
					if err != nil {
						return err
					}
					f.AssigneeID = id
				}
				tasks, err := e.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				return printTasks(tasks)
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project filter")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee id or email")
	cmd.Flags().IntVar(&f.Limit, "limit", 100, "maximum tasks")
	return cmd
}

func taskCompleteCmd() *cobra.Command {
	var partial bool
	var links []string
	cmd := &cobra.Command{
		Use:   "complete <task-id>",
		Short: "Complete a task assigned to you",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				userID, err := actingUser(ctx, e)
				if err != nil {
					return err
				}
				t, err := e.CompleteTask(ctx, userID, args[0], partial, links)
				if err != nil {
					return err
				}
				return printTasks([]domain.Task{t})
			})
		},
	}
	cmd.Flags().BoolVar(&partial, "partial", false, "mark PARTIALLY_COMPLETED")
	cmd.Flags().StringSliceVar(&links, "pr", nil, "pull request url (repeatable)")
	return cmd
}

func taskRateCmd() *cobra.Command {
	var score int
	cmd := &cobra.Command{
		Use:   "rate <task-id>",
		Short: "Rate a finished task (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID, err := actingUser(ctx, e)
				if err != nil {
					return err
				}
				t, err := e.RateTask(ctx, actorID, args[0], score)
				if err != nil {
					return err
				}
				return printTasks([]domain.Task{t})
			})
		},
	}
	cmd.Flags().IntVar(&score, "score", 0, fmt.Sprintf("score between %d and %d", engine.MinTaskScore, engine.MaxTaskScore))
	_ = cmd.MarkFlagRequired("score")
	return cmd
}

func taskApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <task-id>",
		Short: "Approve a finished task (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID, err := actingUser(ctx, e)
				if err != nil {
					return err
				}
				t, err := e.ApproveTask(ctx, actorID, args[0])
				if err != nil {
					return err
				}
				return printTasks([]domain.Task{t})
			})
		},
	}
}

func printTasks(tasks []domain.Task) error {
	if viper.GetBool("json") {
		return printJSON(tasks)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Assignee", "Project", "Score", "Completed"})
	for _, t := range tasks {
		score := ""
		if t.Score != nil {
			score = fmt.Sprint(*t.Score)
		}
		tw.AppendRow(table.Row{t.ID, t.Title, t.Status, deref(t.AssignedToID), deref(t.ProjectID), score, formatTime(t.CompletedDate)})
	}
	tw.Render()
	return nil
}

func exceptionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "exception", Short: "Work exceptions (leave, late arrival, early exit)"}
	var opts engine.WorkExceptionOptions
	var forUser, excType, date, compensation string
	var scheduled, actual int64
	add := &cobra.Command{
		Use:   "add",
		Short: "Record a work exception (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseWhen("date", date)
			if err != nil {
				return err
			}
			if d != nil {
				opts.Date = *d
			}
			if opts.CompensationDate, err = parseWhen("compensation-date", compensation); err != nil {
				return err
			}
			if cmd.Flags().Changed("scheduled") {
				opts.ScheduledTimeEpoch = &scheduled
			}
			if cmd.Flags().Changed("actual") {
				opts.ActualTimeEpoch = &actual
			}
			opts.Type = domain.WorkExceptionType(excType)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID, err := actingUser(ctx, e)
				if err != nil {
					return err
				}
				opts.ActorID = actorID
				if opts.UserID, err = resolveUser(ctx, e, forUser); err != nil {
					return err
				}
				w, err := e.RecordWorkException(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	add.Flags().StringVar(&forUser, "for", "", "user the exception applies to")
	add.Flags().StringVar(&excType, "type", "", "FULL_DAY_LEAVE, HALF_DAY_LEAVE, LATE_ARRIVAL, EARLY_EXIT, ...")
	add.Flags().StringVar(&date, "date", "", "day of the exception (YYYY-MM-DD)")
	add.Flags().Int64Var(&scheduled, "scheduled", 0, "scheduled time (unix seconds)")
	add.Flags().Int64Var(&actual, "actual", 0, "actual time (unix seconds)")
	add.Flags().StringVar(&opts.Reason, "reason", "", "reason")
	add.Flags().StringVar(&opts.Notes, "notes", "", "notes")
	add.Flags().StringVar(&compensation, "compensation-date", "", "day the time is made up")
	_ = add.MarkFlagRequired("for")
	_ = add.MarkFlagRequired("type")
	_ = add.MarkFlagRequired("date")
	cmd.AddCommand(add)
	return cmd
}

func incidentCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "incident", Short: "Stability incidents"}
	var opts engine.StabilityIncidentOptions
	var forUser, incType, severity, date, resolved string
	add := &cobra.Command{
		Use:   "add",
		Short: "Record a stability incident (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseWhen("date", date)
			if err != nil {
				return err
			}
			if d != nil {
				opts.IncidentDate = *d
			}
			if opts.ResolvedAt, err = parseWhen("resolved", resolved); err != nil {
				return err
			}
			opts.Type = domain.IncidentType(incType)
			opts.Severity = domain.Severity(severity)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID, err := actingUser(ctx, e)
				if err != nil {
					return err
				}
				opts.ActorID = actorID
				if opts.UserID, err = resolveUser(ctx, e, forUser); err != nil {
					return err
				}
				in, err := e.RecordStabilityIncident(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(in)
			})
		},
	}
	add.Flags().StringVar(&forUser, "for", "", "user the incident is attributed to")
	add.Flags().StringVar(&incType, "type", "", "PRODUCTION_BUG, REGRESSION, TEST_FAILURE, ...")
	add.Flags().StringVar(&severity, "severity", "", "CRITICAL, HIGH, MEDIUM, LOW or NEGLIGIBLE")
	add.Flags().StringVar(&opts.Title, "title", "", "short description")
	add.Flags().StringVar(&date, "date", "", "when it happened (YYYY-MM-DD or RFC 3339)")
	add.Flags().StringVar(&resolved, "resolved", "", "when it was resolved")
	add.Flags().StringVar(&opts.TaskID, "task", "", "task that introduced it")
	add.Flags().StringVar(&opts.ResolutionTaskID, "resolution-task", "", "task that fixed it")
	_ = add.MarkFlagRequired("for")
	_ = add.MarkFlagRequired("type")
	_ = add.MarkFlagRequired("severity")
	_ = add.MarkFlagRequired("date")
	cmd.AddCommand(add)
	return cmd
}
