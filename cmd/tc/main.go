package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"timeclock/internal/app"
	"timeclock/internal/domain"
	"timeclock/internal/engine"
	"timeclock/internal/repo"
)

var rootCmd = &cobra.Command{
	Use:   "tc",
	Short: "Timeclock CLI",
	Long: `Timeclock tracks working sessions and turns them into monthly scores and payouts.
Core concepts:
- Session: one clock-in to clock-out stretch. A user has at most one ACTIVE session.
- Segment: a slice of a session spent on WORK (optionally for a project) or on a BREAK.
- Break: SHORT, LUNCH, PRAYER or OTHER; ending a break resumes work on the previous project.
- Billing cycle: the 19th of a month through the 18th of the next.
- Scores: output (rated tasks), availability (work exceptions) and stability (incidents).
- Payout snapshot: the scores and expected payout frozen for a cycle with 'tc payout sync'.
- Event log: every change, view with 'tc log tail'.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TIMECLOCK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().String("config", "", "config file (default <workspace>/timeclock.yml)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().StringP("user", "u", "", "acting user id or email")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(breakCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(exceptionCmd())
	rootCmd.AddCommand(incidentCmd())
	rootCmd.AddCommand(cycleCmd())
	rootCmd.AddCommand(scoreCmd())
	rootCmd.AddCommand(payoutCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func openApp() (*app.App, error) {
	return app.Open(app.Options{
		Workspace:  viper.GetString("workspace"),
		ConfigPath: viper.GetString("config"),
		Logger:     log.New(os.Stderr, "tc: ", log.LstdFlags),
	})
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Close(closeCtx)
	}()
	return fn(ctx, a.Engine)
}

// actingUser resolves --user (or TIMECLOCK_USER), which may be an id or an email.
func actingUser(ctx context.Context, e engine.Engine) (string, error) {
	ref := strings.TrimSpace(viper.GetString("user"))
	if ref == "" {
		return "", errors.New("no acting user; pass --user or set TIMECLOCK_USER")
	}
	return resolveUser(ctx, e, ref)
}

func resolveUser(ctx context.Context, e engine.Engine, ref string) (string, error) {
	if !strings.Contains(ref, "@") {
		return ref, nil
	}
	u, err := e.Repo.GetUserByEmail(ctx, nil, strings.ToLower(ref))
	if errors.Is(err, repo.ErrNotFound) {
		return "", fmt.Errorf("no user with email %s", ref)
	}
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// targetUser resolves an optional --for flag, defaulting to the acting user.
func targetUser(ctx context.Context, e engine.Engine, ref, actorID string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return actorID, nil
	}
	return resolveUser(ctx, e, strings.TrimSpace(ref))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

// parseWhen accepts RFC 3339 timestamps or YYYY-MM-DD dates.
func parseWhen(flag, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("--%s: want YYYY-MM-DD or RFC 3339, got %q", flag, raw)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatDuration(seconds int64) string {
	return (time.Duration(seconds) * time.Second).String()
}

func userLabel(u domain.User) string {
	return fmt.Sprintf("%s <%s>", u.Name, u.Email)
}
