package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"timeclock/internal/config"
	"timeclock/internal/engine"
	"timeclock/internal/notify"
)

func TestOpenWithoutConfigUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(Options{Workspace: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close(context.Background())
	if a.Config.Server.BasePath != "/v1" {
		t.Fatalf("expected default base path, got %q", a.Config.Server.BasePath)
	}
	if a.Engine.Notifier != notify.Discard {
		t.Fatalf("expected discard notifier without webhooks")
	}
	u, err := a.Engine.CreateUser(context.Background(), "", engine.UserCreateOptions{
		Name: "Asha", Email: "asha@example.com", BaseCompensationINR: "1000",
	})
	if err != nil {
		t.Fatalf("create user on migrated db: %v", err)
	}
	if u.Role != "admin" {
		t.Fatalf("first user should be admin, got %s", u.Role)
	}
}

func TestOpenWiresWebhookSink(t *testing.T) {
	dir := t.TempDir()
	yml := "notifications:\n  webhooks:\n    - url: http://127.0.0.1:1/hook\n      events: [TASK_ASSIGNED]\n"
	if err := os.WriteFile(config.Path(dir), []byte(yml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	a, err := Open(Options{Workspace: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := a.Engine.Notifier.(*notify.WebhookSink); !ok {
		t.Fatalf("expected webhook sink, got %T", a.Engine.Notifier)
	}
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yml")
	if err := os.WriteFile(path, []byte("scoring:\n  output_variant: weekly\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Open(Options{Workspace: dir, ConfigPath: path}); err == nil {
		t.Fatalf("expected invalid output_variant to fail")
	}
}
