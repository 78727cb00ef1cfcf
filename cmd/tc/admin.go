package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"timeclock/internal/config"
	"timeclock/internal/db"
	"timeclock/internal/domain"
	"timeclock/internal/engine"
	"timeclock/internal/repo"
	"timeclock/internal/server"
)

func initCmd() *cobra.Command {
	var name, email, base string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the workspace, its config and optionally the first admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			cfgPath := config.Path(workspace)
			if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
				if err := os.WriteFile(cfgPath, []byte(config.GenerateDefault()), 0o644); err != nil {
					return err
				}
				fmt.Println("wrote", cfgPath)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				fmt.Println("database ready at", db.Path(workspace))
				if email == "" {
					return nil
				}
				u, err := e.CreateUser(ctx, "", engine.UserCreateOptions{
					Name: name, Email: email, Role: domain.RoleAdmin, BaseCompensationINR: base,
				})
				if err != nil {
					return err
				}
				return printUsers([]domain.User{u})
			})
		},
	}
	cmd.Flags().StringVar(&name, "admin-name", "", "name of the first admin")
	cmd.Flags().StringVar(&email, "admin-email", "", "email of the first admin")
	cmd.Flags().StringVar(&base, "admin-base", "0", "monthly base compensation (INR)")
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage users"}
	cmd.AddCommand(userAddCmd())
	cmd.AddCommand(userListCmd())
	cmd.AddCommand(userArchiveCmd())
	return cmd
}

func userAddCmd() *cobra.Command {
	var opts engine.UserCreateOptions
	var role string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user (admin only, except for the very first user)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID := ""
				if n, err := e.Repo.CountUsers(ctx, nil); err != nil {
					return err
				} else if n > 0 {
					if actorID, err = actingUser(ctx, e); err != nil {
						return err
					}
				}
				opts.Role = domain.Role(role)
				u, err := e.CreateUser(ctx, actorID, opts)
				if err != nil {
					return err
				}
				return printUsers([]domain.User{u})
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "full name")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email address")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleMember), "admin or member")
	cmd.Flags().StringVar(&opts.BaseCompensationINR, "base", "0", "monthly base compensation (INR)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func userListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				users, err := e.ListUsers(ctx, all)
				if err != nil {
					return err
				}
				return printUsers(users)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include archived users")
	return cmd
}

func userArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <user>",
		Short: "Archive a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID, err := actingUser(ctx, e)
				if err != nil {
					return err
				}
				userID, err := resolveUser(ctx, e, args[0])
				if err != nil {
					return err
				}
				if err := e.ArchiveUser(ctx, actorID, userID); err != nil {
					return err
				}
				u, err := e.GetUser(ctx, userID)
				if err != nil {
					return err
				}
				fmt.Println("archived", userLabel(u))
				return nil
			})
		},
	}
}

func printUsers(users []domain.User) error {
	if viper.GetBool("json") {
		return printJSON(users)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Name", "Email", "Role", "Base (INR)", "Archived"})
	for _, u := range users {
		tw.AppendRow(table.Row{u.ID, u.Name, u.Email, u.Role, u.BaseCompensationINR, u.Archived})
	}
	tw.Render()
	return nil
}

func apiKeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	var name, forUser string
	create := &cobra.Command{
		Use:   "create",
		Short: "Issue an API key; the key is printed once",
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
				key, plain, err := e.CreateAPIKey(ctx, actorID, userID, name)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]string{"id": key.ID, "user_id": key.UserID, "key": plain})
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "label for the key")
	create.Flags().StringVar(&forUser, "for", "", "user to issue the key for (default: acting user)")
	cmd.AddCommand(create)
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Every state change, newest first: sessions, breaks, tasks, records and payout syncs.",
	}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var f repo.EventFilters
	var forUser string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if forUser != "" {
					id, err := resolveUser(ctx, e, forUser)
					if err != nil {
						return err
					}
					f.UserID = id
				}
				events, err := e.Repo.LatestEvents(ctx, nil, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "User", "Actor"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + ":" + evt.EntityID, evt.UserID, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&f.Limit, "n", "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	cmd.Flags().StringVar(&forUser, "for", "", "only events about this user")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = a.Close(ctx)
			}()
			cfg := a.Config
			if !cmd.Flags().Changed("addr") && cfg.Server.Addr != "" {
				addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("base-path") && cfg.Server.BasePath != "" {
				basePath = cfg.Server.BasePath
			}
			authCfg := server.AuthConfig{
				JWTSecret:             viper.GetString("jwt_secret"),
				AllowLegacyUserHeader: cfg.Auth.AllowLegacyUserHeader,
				DevLogin:              cfg.Auth.DevLogin,
				TokenTTL:              time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute,
				Logger:                a.Engine.Logger,
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("TIMECLOCK_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: a.Engine, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Timeclock API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}
