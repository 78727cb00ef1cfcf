package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"timeclock/internal/config"
	"timeclock/internal/db"
	"timeclock/internal/domain"
	"timeclock/internal/engine"
	"timeclock/internal/migrate"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	Admin  domain.User
	Member domain.User
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func (s *testServer) as(userID string) map[string]string {
	return map[string]string{"X-User-Id": userID}
}

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	ctx := context.Background()
	admin, err := e.CreateUser(ctx, "", engine.UserCreateOptions{Name: "Asha Admin", Email: "asha@example.com"})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	member, err := e.CreateUser(ctx, admin.ID, engine.UserCreateOptions{
		Name: "Mo Member", Email: "mo@example.com", BaseCompensationINR: "100000",
	})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v1", Auth: AuthConfig{
		JWTSecret:             testSecret,
		AllowLegacyUserHeader: true,
		DevLogin:              true,
		TokenTTL:              time.Hour,
	}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String() + "/v1",
		Engine: e,
		Admin:  admin,
		Member: member,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func expectStatus(t *testing.T, res *http.Response, body []byte, want int) {
	t.Helper()
	if res.StatusCode != want {
		t.Fatalf("%s %s: status %d, want %d: %s", res.Request.Method, res.Request.URL.Path, res.StatusCode, want, string(body))
	}
}

func expectErrorCode(t *testing.T, body []byte, want string) {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(body))
	}
	if env.Error.Code != want {
		t.Fatalf("error code %q, want %q: %s", env.Error.Code, want, string(body))
	}
}

func TestHealthIsPublic(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, body := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/health", nil, nil)
	expectStatus(t, res, body, http.StatusOK)

	res, body = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/me", nil, nil)
	expectStatus(t, res, body, http.StatusUnauthorized)
	expectErrorCode(t, body, "unauthorized")

	res, body = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/me", nil, srv.as("nobody"))
	expectStatus(t, res, body, http.StatusUnauthorized)
	expectErrorCode(t, body, "invalid_credentials")
}

func TestSessionLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	member := srv.as(srv.Member.ID)

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/sessions", map[string]any{"project_id": "alpha"}, member)
	expectStatus(t, res, body, http.StatusCreated)
	var s domain.Session
	if err := json.Unmarshal(body, &s); err != nil {
		t.Fatalf("unmarshal session: %v", err)
	}
	if s.Status != domain.SessionActive {
		t.Fatalf("status %s, want ACTIVE", s.Status)
	}

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/sessions", nil, member)
	expectStatus(t, res, body, http.StatusConflict)
	expectErrorCode(t, body, "conflict")

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/sessions/"+s.ID+"/breaks", map[string]any{"type": "LUNCH"}, member)
	expectStatus(t, res, body, http.StatusCreated)
	var b domain.Break
	if err := json.Unmarshal(body, &b); err != nil {
		t.Fatalf("unmarshal break: %v", err)
	}

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/sessions/"+s.ID+"/switch-project", map[string]any{"project_id": "beta"}, member)
	expectStatus(t, res, body, http.StatusConflict)

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/breaks/"+b.ID+"/end", nil, member)
	expectStatus(t, res, body, http.StatusOK)

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/sessions/active", nil, member)
	expectStatus(t, res, body, http.StatusOK)
	var tl domain.Timeline
	if err := json.Unmarshal(body, &tl); err != nil {
		t.Fatalf("unmarshal timeline: %v", err)
	}
	if len(tl.Segments) != 3 || len(tl.Breaks) != 1 {
		t.Fatalf("timeline has %d segments and %d breaks, want 3 and 1", len(tl.Segments), len(tl.Breaks))
	}

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/sessions/"+s.ID+"/end", nil, srv.as(srv.Admin.ID))
	expectStatus(t, res, body, http.StatusNotFound)

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/sessions/"+s.ID+"/end", nil, member)
	expectStatus(t, res, body, http.StatusOK)
	if err := json.Unmarshal(body, &s); err != nil {
		t.Fatalf("unmarshal session: %v", err)
	}
	if s.Status != domain.SessionCompleted || s.EndTime == nil {
		t.Fatalf("unexpected ended session %+v", s)
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/sessions?limit=10", nil, member)
	expectStatus(t, res, body, http.StatusOK)
	var list []domain.Session
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("unmarshal sessions: %v", err)
	}
	if len(list) != 1 || list[0].ID != s.ID {
		t.Fatalf("unexpected session list %+v", list)
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/sessions?from=not-a-date", nil, member)
	expectStatus(t, res, body, http.StatusBadRequest)
}

func TestOptionalBodiesMayBeEmpty(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	member := srv.as(srv.Member.ID)

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/sessions", nil, member)
	expectStatus(t, res, body, http.StatusCreated)
	var s domain.Session
	if err := json.Unmarshal(body, &s); err != nil {
		t.Fatalf("unmarshal session: %v", err)
	}
	if s.Status != domain.SessionActive || s.ProjectID != nil {
		t.Fatalf("unexpected session %+v", s)
	}

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/users/"+srv.Member.ID+"/api-keys", nil, srv.as(srv.Admin.ID))
	expectStatus(t, res, body, http.StatusCreated)

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/payouts/sync", nil, srv.as(srv.Admin.ID))
	expectStatus(t, res, body, http.StatusOK)
}

func TestAdminOnlyRoutes(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	member := srv.as(srv.Member.ID)
	admin := srv.as(srv.Admin.ID)

	for _, tc := range []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/users", nil},
		{http.MethodPost, "/users", map[string]any{"name": "X", "email": "x@example.com"}},
		{http.MethodGet, "/team/scores", nil},
		{http.MethodPost, "/payouts/sync", map[string]any{}},
		{http.MethodGet, "/payouts", nil},
		{http.MethodGet, "/events", nil},
		{http.MethodGet, "/users/" + srv.Admin.ID + "/scores", nil},
		{http.MethodPost, "/users/" + srv.Member.ID + "/work-exceptions", map[string]any{"type": "SICK_LEAVE", "date": "2025-01-21"}},
	} {
		res, body := doJSON(t, client, tc.method, srv.URL+tc.path, tc.body, member)
		expectStatus(t, res, body, http.StatusForbidden)
		expectErrorCode(t, body, "forbidden")
	}

	res, body := doJSON(t, client, http.MethodGet, srv.URL+"/users/"+srv.Member.ID+"/scores", nil, member)
	expectStatus(t, res, body, http.StatusOK)

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/team/scores?cycle=2025-01", nil, admin)
	expectStatus(t, res, body, http.StatusOK)
	var cards []engine.Scorecard
	if err := json.Unmarshal(body, &cards); err != nil {
		t.Fatalf("unmarshal scorecards: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("scorecards = %d, want 2", len(cards))
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/team/scores?cycle=January", nil, admin)
	expectStatus(t, res, body, http.StatusBadRequest)
}

func TestTaskFlowAndPayoutSync(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	member := srv.as(srv.Member.ID)
	admin := srv.as(srv.Admin.ID)

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/tasks", map[string]any{
		"title": "Ship payroll export", "assigned_to_id": srv.Member.ID,
	}, admin)
	expectStatus(t, res, body, http.StatusCreated)
	var task domain.Task
	if err := json.Unmarshal(body, &task); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/tasks/"+task.ID+"/rate", map[string]any{"score": 150}, admin)
	expectStatus(t, res, body, http.StatusConflict)

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/tasks/"+task.ID+"/complete", map[string]any{
		"pr_links": []string{"https://git.example.com/pr/1"},
	}, member)
	expectStatus(t, res, body, http.StatusOK)

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/tasks/"+task.ID+"/rate", map[string]any{"score": 500}, admin)
	expectStatus(t, res, body, http.StatusBadRequest)

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/tasks/"+task.ID+"/rate", map[string]any{"score": 150}, admin)
	expectStatus(t, res, body, http.StatusOK)
	if err := json.Unmarshal(body, &task); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if task.Score == nil || *task.Score != 150 || task.Status != domain.TaskCompleted {
		t.Fatalf("unexpected rated task %+v", task)
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/tasks", nil, member)
	expectStatus(t, res, body, http.StatusOK)
	var tasks []domain.Task
	if err := json.Unmarshal(body, &tasks); err != nil {
		t.Fatalf("unmarshal tasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("member sees %d tasks, want 1", len(tasks))
	}

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/payouts/sync", map[string]any{}, admin)
	expectStatus(t, res, body, http.StatusOK)
	var snaps []domain.PayoutSnapshot
	if err := json.Unmarshal(body, &snaps); err != nil {
		t.Fatalf("unmarshal snapshots: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(snaps))
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/payouts", nil, admin)
	expectStatus(t, res, body, http.StatusOK)
	var listed []domain.PayoutSnapshot
	if err := json.Unmarshal(body, &listed); err != nil {
		t.Fatalf("unmarshal snapshots: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("listed snapshots = %d, want 2", len(listed))
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/events?entity_kind=task&limit=2", nil, admin)
	expectStatus(t, res, body, http.StatusOK)
	var page paginatedEvents
	if err := json.Unmarshal(body, &page); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(page.Items) != 2 || page.NextCursor == "" || page.Items[0].Type != "task.rate" {
		t.Fatalf("unexpected events page %+v", page)
	}
	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/events?entity_kind=task&limit=2&cursor="+page.NextCursor, nil, admin)
	expectStatus(t, res, body, http.StatusOK)
	var next paginatedEvents
	if err := json.Unmarshal(body, &next); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(next.Items) != 1 || next.Items[0].Type != "task.create" || next.NextCursor != "" {
		t.Fatalf("unexpected second events page %+v", next)
	}
	if _, ok := next.Items[0].Payload["score"]; ok {
		t.Fatalf("task.create payload carries a score: %+v", next.Items[0])
	}
}

func TestRecordsValidation(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	admin := srv.as(srv.Admin.ID)
	base := srv.URL + "/users/" + srv.Member.ID

	res, body := doJSON(t, client, http.MethodPost, base+"/work-exceptions", map[string]any{
		"type": "LATE_ARRIVAL", "date": "2025-01-21", "scheduled_time_epoch": 1737435600,
	}, admin)
	expectStatus(t, res, body, http.StatusBadRequest)

	res, body = doJSON(t, client, http.MethodPost, base+"/work-exceptions", map[string]any{
		"type": "LATE_ARRIVAL", "date": "2025-01-21",
		"scheduled_time_epoch": 1737435600, "actual_time_epoch": 1737437400,
	}, admin)
	expectStatus(t, res, body, http.StatusCreated)

	res, body = doJSON(t, client, http.MethodPost, base+"/stability-incidents", map[string]any{
		"type": "REGRESSION", "severity": "HIGH", "incident_date": "2025-01-22T10:00:00Z",
	}, admin)
	expectStatus(t, res, body, http.StatusCreated)

	res, body = doJSON(t, client, http.MethodPost, base+"/stability-incidents", map[string]any{
		"type": "REGRESSION", "severity": "HIGH", "incident_date": "yesterday",
	}, admin)
	expectStatus(t, res, body, http.StatusBadRequest)

	res, body = doJSON(t, client, http.MethodGet, base+"/work-exceptions?cycle=2025-01", nil, srv.as(srv.Member.ID))
	expectStatus(t, res, body, http.StatusOK)
	var items []domain.WorkException
	if err := json.Unmarshal(body, &items); err != nil {
		t.Fatalf("unmarshal exceptions: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("exceptions = %d, want 1", len(items))
	}
}

func TestDevLoginAndAPIKey(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/auth/dev/login", map[string]any{"user_id": srv.Member.ID}, nil)
	expectStatus(t, res, body, http.StatusOK)
	var login DevLoginResponse
	if err := json.Unmarshal(body, &login); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/me", nil, map[string]string{"Authorization": "Bearer " + login.Token})
	expectStatus(t, res, body, http.StatusOK)
	var who WhoAmIResponse
	if err := json.Unmarshal(body, &who); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if who.User.ID != srv.Member.ID || who.Source != "jwt" {
		t.Fatalf("unexpected principal %+v", who)
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/me", nil, map[string]string{"Authorization": "Bearer garbage"})
	expectStatus(t, res, body, http.StatusUnauthorized)

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/users/"+srv.Member.ID+"/api-keys", map[string]any{"name": "laptop"},
		map[string]string{"Authorization": "Bearer " + login.Token})
	expectStatus(t, res, body, http.StatusCreated)
	var key APIKeyResponse
	if err := json.Unmarshal(body, &key); err != nil {
		t.Fatalf("unmarshal key: %v", err)
	}
	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/me", nil, map[string]string{"X-Api-Key": key.Key})
	expectStatus(t, res, body, http.StatusOK)

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/users/"+srv.Member.ID+"/archive", nil, srv.as(srv.Admin.ID))
	expectStatus(t, res, body, http.StatusOK)
	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/me", nil, map[string]string{"X-Api-Key": key.Key})
	expectStatus(t, res, body, http.StatusUnauthorized)
}
