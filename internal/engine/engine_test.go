package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"timeclock/internal/config"
	"timeclock/internal/db"
	"timeclock/internal/domain"
	"timeclock/internal/engine"
	"timeclock/internal/migrate"
	"timeclock/internal/notify"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingSink struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (s *recordingSink) Notify(n notify.Notification) {
	s.mu.Lock()
	s.sent = append(s.sent, n)
	s.mu.Unlock()
}

func (s *recordingSink) Types() []notify.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notify.Type
	for _, n := range s.sent {
		out = append(out, n.Type)
	}
	return out
}

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Clock  *testClock
	Sink   *recordingSink
	Admin  domain.User
	Member domain.User
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	clock := &testClock{now: time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC)}
	sink := &recordingSink{}
	eng := engine.New(conn, config.Default())
	eng.Now = clock.Now
	eng.Events.Now = clock.Now
	eng.Notifier = sink
	ctx := context.Background()
	admin, err := eng.CreateUser(ctx, "", engine.UserCreateOptions{Name: "Asha Admin", Email: "asha@example.com"})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	member, err := eng.CreateUser(ctx, admin.ID, engine.UserCreateOptions{
		Name: "Mo Member", Email: "mo@example.com", BaseCompensationINR: "100000",
	})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx, Clock: clock, Sink: sink, Admin: admin, Member: member}
}

func (env testEnv) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	if err := env.Engine.DB.QueryRowContext(env.Ctx, "SELECT COUNT(*) FROM "+query, args...).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", query, err)
	}
	return n
}

func strPtr(s string) *string { return &s }

func expectNotFound(t *testing.T, err error) {
	t.Helper()
	var nf engine.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func expectConflict(t *testing.T, err error) {
	t.Helper()
	var ce engine.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func expectValidation(t *testing.T, err error) {
	t.Helper()
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCreateUser(t *testing.T) {
	env := newTestEnv(t)
	if env.Admin.Role != domain.RoleAdmin {
		t.Fatalf("first user role = %s, want admin", env.Admin.Role)
	}
	if env.Member.Role != domain.RoleMember {
		t.Fatalf("member role = %s", env.Member.Role)
	}
	if env.Member.BaseCompensationINR != "100000.00" {
		t.Fatalf("base compensation = %s", env.Member.BaseCompensationINR)
	}

	_, err := env.Engine.CreateUser(env.Ctx, env.Admin.ID, engine.UserCreateOptions{Name: "Dup", Email: "MO@example.com"})
	expectConflict(t, err)

	_, err = env.Engine.CreateUser(env.Ctx, env.Member.ID, engine.UserCreateOptions{Name: "New", Email: "new@example.com"})
	if err == nil {
		t.Fatalf("member created a user")
	}

	_, err = env.Engine.CreateUser(env.Ctx, env.Admin.ID, engine.UserCreateOptions{Name: "Bad", Email: "nope"})
	expectValidation(t, err)
	_, err = env.Engine.CreateUser(env.Ctx, env.Admin.ID, engine.UserCreateOptions{Name: "Neg", Email: "neg@example.com", BaseCompensationINR: "-1"})
	expectValidation(t, err)
}

func TestArchiveUserHidesFromTeam(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Engine.ArchiveUser(env.Ctx, env.Admin.ID, env.Member.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	users, err := env.Engine.ListUsers(env.Ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || users[0].ID != env.Admin.ID {
		t.Fatalf("active users = %+v", users)
	}
	_, err = env.Engine.StartSession(env.Ctx, env.Member.ID, nil)
	expectNotFound(t, err)
	expectNotFound(t, env.Engine.ArchiveUser(env.Ctx, env.Admin.ID, "missing"))
}

func TestCreateAPIKey(t *testing.T) {
	env := newTestEnv(t)
	key, plain, err := env.Engine.CreateAPIKey(env.Ctx, env.Member.ID, env.Member.ID, "laptop")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	if plain == "" || key.KeyHash == plain {
		t.Fatalf("plaintext key must be returned and only its hash stored")
	}
	got, err := env.Engine.Repo.GetAPIKeyByHash(env.Ctx, nil, key.KeyHash)
	if err != nil || got.UserID != env.Member.ID {
		t.Fatalf("lookup key: %+v %v", got, err)
	}
	if _, _, err := env.Engine.CreateAPIKey(env.Ctx, env.Member.ID, env.Admin.ID, "steal"); err == nil {
		t.Fatalf("member issued a key for another user")
	}
}
