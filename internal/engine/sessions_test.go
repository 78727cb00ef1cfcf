package engine_test

import (
	"sync"
	"testing"
	"time"

	"timeclock/internal/domain"
)

func TestStartSession(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.Engine.StartSession(env.Ctx, env.Member.ID, strPtr("alpha"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.Status != domain.SessionActive || s.EndTime != nil || s.TotalDuration != 0 {
		t.Fatalf("unexpected session %+v", s)
	}
	tl, err := env.Engine.ActiveTimeline(env.Ctx, env.Member.ID)
	if err != nil {
		t.Fatalf("active timeline: %v", err)
	}
	if len(tl.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(tl.Segments))
	}
	seg := tl.Segments[0]
	if seg.Type != domain.SegmentWork || !seg.Open() || seg.ProjectID == nil || *seg.ProjectID != "alpha" || !seg.StartTime.Equal(s.StartTime) {
		t.Fatalf("unexpected initial segment %+v", seg)
	}

	_, err = env.Engine.StartSession(env.Ctx, env.Member.ID, nil)
	expectConflict(t, err)
	_, err = env.Engine.StartSession(env.Ctx, "", nil)
	expectValidation(t, err)
}

func TestSessionTotalsMatchSegments(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.Engine.StartSession(env.Ctx, env.Member.ID, strPtr("alpha"))
	if err != nil {
		t.Fatal(err)
	}
	env.Clock.Advance(10 * time.Minute)
	b, err := env.Engine.StartBreak(env.Ctx, env.Member.ID, s.ID, domain.BreakLunch)
	if err != nil {
		t.Fatalf("start break: %v", err)
	}
	env.Clock.Advance(5*time.Minute + 30*time.Second + 700*time.Millisecond)
	ended, err := env.Engine.EndBreak(env.Ctx, env.Member.ID, b.ID)
	if err != nil {
		t.Fatalf("end break: %v", err)
	}
	if ended.Duration != 330 {
		t.Fatalf("break duration = %d, want 330", ended.Duration)
	}
	env.Clock.Advance(20 * time.Minute)
	if _, err := env.Engine.SwitchProject(env.Ctx, env.Member.ID, s.ID, strPtr("beta")); err != nil {
		t.Fatalf("switch: %v", err)
	}
	env.Clock.Advance(time.Hour)
	done, err := env.Engine.EndSession(env.Ctx, env.Member.ID, s.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if done.Status != domain.SessionCompleted || done.EndTime == nil {
		t.Fatalf("session not completed: %+v", done)
	}
	if done.TotalDuration != 600+330+1200+3600 || done.TotalBreakTime != 330 {
		t.Fatalf("totals = %d/%d", done.TotalDuration, done.TotalBreakTime)
	}

	tl, err := env.Engine.SessionTimeline(env.Ctx, env.Member.ID, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	var sum, breakSum int64
	for _, seg := range tl.Segments {
		if seg.Open() {
			t.Fatalf("open segment %s on completed session", seg.ID)
		}
		sum += seg.Duration
		if seg.Type == domain.SegmentBreak {
			breakSum += seg.Duration
		}
	}
	if sum != tl.Session.TotalDuration || breakSum != tl.Session.TotalBreakTime {
		t.Fatalf("stored totals %d/%d, segment sums %d/%d", tl.Session.TotalDuration, tl.Session.TotalBreakTime, sum, breakSum)
	}
	if got := *tl.Segments[len(tl.Segments)-1].ProjectID; got != "beta" {
		t.Fatalf("last segment project = %s", got)
	}
}

func TestEndSessionTwice(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.Engine.StartSession(env.Ctx, env.Member.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.EndSession(env.Ctx, env.Member.ID, s.ID); err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.EndSession(env.Ctx, env.Member.ID, s.ID)
	expectNotFound(t, err)
	if n := env.count(t, "events WHERE type='session.end'"); n != 1 {
		t.Fatalf("session.end events = %d", n)
	}
}

func TestEndSessionRequiresOwner(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.Engine.StartSession(env.Ctx, env.Member.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.EndSession(env.Ctx, env.Admin.ID, s.ID)
	expectNotFound(t, err)
	_, err = env.Engine.SwitchProject(env.Ctx, env.Admin.ID, s.ID, nil)
	expectNotFound(t, err)
	_, err = env.Engine.SessionTimeline(env.Ctx, env.Admin.ID, s.ID)
	expectNotFound(t, err)
}

func TestEndSessionDuringBreakClosesBreak(t *testing.T) {
	env := newTestEnv(t)
	s, _ := env.Engine.StartSession(env.Ctx, env.Member.ID, nil)
	env.Clock.Advance(time.Minute)
	b, err := env.Engine.StartBreak(env.Ctx, env.Member.ID, s.ID, domain.BreakShort)
	if err != nil {
		t.Fatal(err)
	}
	env.Clock.Advance(2 * time.Minute)
	done, err := env.Engine.EndSession(env.Ctx, env.Member.ID, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if done.TotalDuration != 180 || done.TotalBreakTime != 120 {
		t.Fatalf("totals = %d/%d", done.TotalDuration, done.TotalBreakTime)
	}
	stored, err := env.Engine.Repo.GetBreak(env.Ctx, nil, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.EndTime == nil || stored.Duration != 120 {
		t.Fatalf("break not closed with its segment: %+v", stored)
	}
	_, err = env.Engine.EndBreak(env.Ctx, env.Member.ID, b.ID)
	expectConflict(t, err)
}

func TestSwitchProjectOnBreak(t *testing.T) {
	env := newTestEnv(t)
	s, _ := env.Engine.StartSession(env.Ctx, env.Member.ID, strPtr("alpha"))
	if _, err := env.Engine.StartBreak(env.Ctx, env.Member.ID, s.ID, domain.BreakPrayer); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.SwitchProject(env.Ctx, env.Member.ID, s.ID, strPtr("beta"))
	expectConflict(t, err)
}

func TestListSessions(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		s, err := env.Engine.StartSession(env.Ctx, env.Member.ID, nil)
		if err != nil {
			t.Fatal(err)
		}
		env.Clock.Advance(time.Hour)
		if _, err := env.Engine.EndSession(env.Ctx, env.Member.ID, s.ID); err != nil {
			t.Fatal(err)
		}
		env.Clock.Advance(23 * time.Hour)
	}
	all, err := env.Engine.ListSessions(env.Ctx, env.Member.ID, nil, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || !all[0].StartTime.After(all[2].StartTime) {
		t.Fatalf("expected 3 sessions newest first, got %d", len(all))
	}
	from := time.Date(2025, 1, 21, 0, 0, 0, 0, time.UTC)
	recent, err := env.Engine.ListSessions(env.Ctx, env.Member.ID, &from, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("sessions since %s = %d, want 2", from, len(recent))
	}
}

func TestConcurrentStartSession(t *testing.T) {
	env := newTestEnv(t)
	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.Engine.StartSession(env.Ctx, env.Member.ID, nil)
		}(i)
	}
	wg.Wait()
	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		expectConflict(t, err)
	}
	if wins != 1 {
		t.Fatalf("%d starts succeeded, want 1", wins)
	}
	if got := env.count(t, "sessions WHERE user_id=? AND status='ACTIVE'", env.Member.ID); got != 1 {
		t.Fatalf("active sessions = %d", got)
	}
}

func TestConcurrentEndSession(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.Engine.StartSession(env.Ctx, env.Member.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	env.Clock.Advance(time.Hour)
	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.Engine.EndSession(env.Ctx, env.Member.ID, s.ID)
		}(i)
	}
	wg.Wait()
	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		expectNotFound(t, err)
	}
	if wins != 1 {
		t.Fatalf("%d ends succeeded, want 1", wins)
	}
	if got := env.count(t, "segments WHERE session_id=?", s.ID); got != 1 {
		t.Fatalf("segments = %d", got)
	}
}
