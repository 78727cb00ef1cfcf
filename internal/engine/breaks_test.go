package engine_test

import (
	"testing"
	"time"

	"timeclock/internal/domain"
)

func TestBreakRoundTripResumesProject(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.Engine.StartSession(env.Ctx, env.Member.ID, strPtr("alpha"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := env.Engine.StartBreak(env.Ctx, env.Member.ID, s.ID, domain.BreakShort)
	if err != nil {
		t.Fatalf("start break: %v", err)
	}
	tl, _ := env.Engine.SessionTimeline(env.Ctx, env.Member.ID, s.ID)
	open, ok := domain.OpenSegment(tl.Segments)
	if !ok || open.Type != domain.SegmentBreak || open.BreakID == nil || *open.BreakID != b.ID {
		t.Fatalf("open segment during break = %+v", open)
	}
	if _, err := env.Engine.EndBreak(env.Ctx, env.Member.ID, b.ID); err != nil {
		t.Fatalf("end break: %v", err)
	}
	tl, _ = env.Engine.SessionTimeline(env.Ctx, env.Member.ID, s.ID)
	var opens []domain.Segment
	for _, seg := range tl.Segments {
		if seg.Open() {
			opens = append(opens, seg)
		}
	}
	if len(opens) != 1 {
		t.Fatalf("open segments = %d, want 1", len(opens))
	}
	if opens[0].Type != domain.SegmentWork || opens[0].ProjectID == nil || *opens[0].ProjectID != "alpha" {
		t.Fatalf("resumed segment = %+v", opens[0])
	}
	if len(tl.Breaks) != 1 || tl.Breaks[0].EndTime == nil {
		t.Fatalf("break not closed: %+v", tl.Breaks)
	}
}

func TestStartBreakOnEndedSessionWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	s, _ := env.Engine.StartSession(env.Ctx, env.Member.ID, nil)
	env.Clock.Advance(time.Minute)
	if _, err := env.Engine.EndSession(env.Ctx, env.Member.ID, s.ID); err != nil {
		t.Fatal(err)
	}
	segments := env.count(t, "segments WHERE session_id=?", s.ID)
	evts := env.count(t, "events")

	_, err := env.Engine.StartBreak(env.Ctx, env.Member.ID, s.ID, domain.BreakLunch)
	expectNotFound(t, err)

	if got := env.count(t, "breaks"); got != 0 {
		t.Fatalf("breaks = %d, want 0", got)
	}
	if got := env.count(t, "segments WHERE session_id=?", s.ID); got != segments {
		t.Fatalf("segments = %d, want %d", got, segments)
	}
	if got := env.count(t, "events"); got != evts {
		t.Fatalf("events = %d, want %d", got, evts)
	}
}

func TestStartBreakRules(t *testing.T) {
	env := newTestEnv(t)
	s, _ := env.Engine.StartSession(env.Ctx, env.Member.ID, nil)

	_, err := env.Engine.StartBreak(env.Ctx, env.Member.ID, s.ID, domain.BreakType("NAP"))
	expectValidation(t, err)

	_, err = env.Engine.StartBreak(env.Ctx, env.Admin.ID, s.ID, domain.BreakShort)
	expectNotFound(t, err)

	if _, err := env.Engine.StartBreak(env.Ctx, env.Member.ID, s.ID, domain.BreakShort); err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.StartBreak(env.Ctx, env.Member.ID, s.ID, domain.BreakShort)
	expectConflict(t, err)
}

func TestEndBreakRules(t *testing.T) {
	env := newTestEnv(t)
	s, _ := env.Engine.StartSession(env.Ctx, env.Member.ID, nil)
	b, err := env.Engine.StartBreak(env.Ctx, env.Member.ID, s.ID, domain.BreakOther)
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.EndBreak(env.Ctx, env.Admin.ID, b.ID)
	expectNotFound(t, err)
	_, err = env.Engine.EndBreak(env.Ctx, env.Member.ID, "missing")
	expectNotFound(t, err)

	if _, err := env.Engine.EndBreak(env.Ctx, env.Member.ID, b.ID); err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.EndBreak(env.Ctx, env.Member.ID, b.ID)
	expectNotFound(t, err)
}

func TestEndBreakAfterSessionEnded(t *testing.T) {
	env := newTestEnv(t)
	s, _ := env.Engine.StartSession(env.Ctx, env.Member.ID, nil)
	env.Clock.Advance(time.Minute)
	b, err := env.Engine.StartBreak(env.Ctx, env.Member.ID, s.ID, domain.BreakShort)
	if err != nil {
		t.Fatal(err)
	}
	env.Clock.Advance(time.Minute)
	if _, err := env.Engine.EndBreak(env.Ctx, env.Member.ID, b.ID); err != nil {
		t.Fatal(err)
	}
	env.Clock.Advance(time.Minute)
	if _, err := env.Engine.EndSession(env.Ctx, env.Member.ID, s.ID); err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.EndBreak(env.Ctx, env.Member.ID, b.ID)
	expectNotFound(t, err)
}
