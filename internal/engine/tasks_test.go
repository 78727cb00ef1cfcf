package engine_test

import (
	"errors"
	"testing"
	"time"

	"timeclock/internal/billing"
	"timeclock/internal/domain"
	"timeclock/internal/engine"
	"timeclock/internal/engine/auth"
	"timeclock/internal/notify"
	"timeclock/internal/repo"
)

func TestTaskLifecycleNotifies(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Title: "Ship invoices", AssignedToID: env.Member.ID, ActorID: env.Admin.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Status != domain.TaskTodo {
		t.Fatalf("status = %s", task.Status)
	}
	done, err := env.Engine.CompleteTask(env.Ctx, env.Member.ID, task.ID, false, []string{"https://git.example.com/pr/1"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != domain.TaskCompleted || done.CompletedDate == nil || done.CompletedSessionID != nil {
		t.Fatalf("completed task = %+v", done)
	}
	if _, err := env.Engine.RateTask(env.Ctx, env.Admin.ID, task.ID, 140); err != nil {
		t.Fatalf("rate: %v", err)
	}
	approved, err := env.Engine.ApproveTask(env.Ctx, env.Admin.ID, task.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.ApprovedByID == nil || *approved.ApprovedByID != env.Admin.ID || approved.Score == nil || *approved.Score != 140 {
		t.Fatalf("approved task = %+v", approved)
	}
	got := env.Sink.Types()
	want := []notify.Type{notify.TaskAssigned, notify.TaskCompleted, notify.TaskApproved}
	if len(got) != len(want) {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("notifications = %v, want %v", got, want)
		}
	}
	stored, err := env.Engine.GetTask(env.Ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.PRLinks) != 1 || stored.PRLinks[0] != "https://git.example.com/pr/1" {
		t.Fatalf("pr links = %v", stored.PRLinks)
	}
}

func TestTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: " ", ActorID: env.Admin.ID})
	expectValidation(t, err)

	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "t", AssignedToID: env.Member.ID, ActorID: env.Admin.ID})
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.CompleteTask(env.Ctx, env.Member.ID, task.ID, false, []string{"not a url"})
	expectValidation(t, err)
	_, err = env.Engine.CompleteTask(env.Ctx, env.Member.ID, task.ID, false, []string{"ftp://example.com/x"})
	expectValidation(t, err)
	_, err = env.Engine.CompleteTask(env.Ctx, env.Admin.ID, task.ID, false, nil)
	expectNotFound(t, err)

	_, err = env.Engine.RateTask(env.Ctx, env.Admin.ID, task.ID, 50)
	expectConflict(t, err)

	if _, err := env.Engine.CompleteTask(env.Ctx, env.Member.ID, task.ID, true, nil); err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.RateTask(env.Ctx, env.Admin.ID, task.ID, 201)
	expectValidation(t, err)
	_, err = env.Engine.RateTask(env.Ctx, env.Admin.ID, task.ID, -1)
	expectValidation(t, err)

	_, err = env.Engine.RateTask(env.Ctx, env.Member.ID, task.ID, 100)
	var fe auth.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
	for _, score := range []int{0, 200} {
		if _, err := env.Engine.RateTask(env.Ctx, env.Admin.ID, task.ID, score); err != nil {
			t.Fatalf("rate %d: %v", score, err)
		}
	}
}

// A task finished just after a cycle closes still counts for the cycle its
// session started in.
func TestCompletionAttributedToSessionStart(t *testing.T) {
	env := newTestEnv(t)
	env.Clock.Set(time.Date(2025, 2, 10, 12, 0, 0, 0, time.UTC))
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "late night", AssignedToID: env.Member.ID, ActorID: env.Admin.ID})
	if err != nil {
		t.Fatal(err)
	}
	env.Clock.Set(time.Date(2025, 2, 18, 23, 30, 0, 0, time.UTC))
	s, err := env.Engine.StartSession(env.Ctx, env.Member.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	env.Clock.Advance(40 * time.Minute)
	done, err := env.Engine.CompleteTask(env.Ctx, env.Member.ID, task.ID, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if done.CompletedSessionID == nil || *done.CompletedSessionID != s.ID {
		t.Fatalf("completed session = %v, want %s", done.CompletedSessionID, s.ID)
	}
	if _, err := env.Engine.RateTask(env.Ctx, env.Admin.ID, task.ID, 150); err != nil {
		t.Fatal(err)
	}

	jan, _ := billing.ParseCycle("2025-01")
	card, err := env.Engine.UserScores(env.Ctx, env.Member.ID, jan)
	if err != nil {
		t.Fatal(err)
	}
	if card.MonthlyOutputScore != 150 {
		t.Fatalf("january output = %v, want 150", card.MonthlyOutputScore)
	}
	card, err = env.Engine.UserScores(env.Ctx, env.Member.ID, jan.Next())
	if err != nil {
		t.Fatal(err)
	}
	if card.MonthlyOutputScore != 100 {
		t.Fatalf("february output = %v, want 100", card.MonthlyOutputScore)
	}
	tasks, err := env.Engine.ListTasks(env.Ctx, repo.TaskFilters{AssigneeID: env.Member.ID})
	if err != nil || len(tasks) != 1 || tasks[0].CompletedSessionStart == nil || !tasks[0].CompletedSessionStart.Equal(s.StartTime) {
		t.Fatalf("listed tasks = %+v %v", tasks, err)
	}
}
