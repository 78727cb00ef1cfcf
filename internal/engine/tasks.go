package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"timeclock/internal/domain"
	"timeclock/internal/events"
	"timeclock/internal/notify"
	"timeclock/internal/repo"
)

const (
	MinTaskScore = 0
	MaxTaskScore = 200
)

type TaskCreateOptions struct {
	Title        string
	Description  string
	ProjectID    string
	AssignedToID string
	ActorID      string
}

// CreateTask stores a TODO task. Assigned tasks notify the assignee.
func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Task{}, ValidationError{Field: "title", Message: "is required"}
	}
	if err := requireUser(opts.ActorID); err != nil {
		return domain.Task{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	assignee := optionalString(opts.AssignedToID)
	if assignee != nil {
		u, err := e.Repo.GetUser(ctx, tx, *assignee)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && u.Archived) {
			return domain.Task{}, NotFoundError{Kind: "user", ID: *assignee}
		}
		if err != nil {
			return domain.Task{}, err
		}
	}
	t := domain.Task{
		ID:           uuid.NewString(),
		Title:        strings.TrimSpace(opts.Title),
		Description:  opts.Description,
		ProjectID:    optionalString(opts.ProjectID),
		AssignedToID: assignee,
		CreatedByID:  opts.ActorID,
		Status:       domain.TaskTodo,
		CreatedAt:    e.now(),
	}
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "task.create", opts.AssignedToID, "task", t.ID, opts.ActorID, events.EventPayload{"title": t.Title}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	if assignee != nil {
		e.dispatch(notify.Notification{Type: notify.TaskAssigned, UserID: *assignee, TaskID: t.ID, ActorID: opts.ActorID, At: t.CreatedAt,
			Payload: map[string]any{"title": t.Title}})
	}
	return t, nil
}

func (e Engine) GetTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, e.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return t, NotFoundError{Kind: "task", ID: id}
	}
	return t, err
}

func (e Engine) ListTasks(ctx context.Context, f repo.TaskFilters) ([]domain.Task, error) {
	return e.Repo.ListTasks(ctx, e.DB, f)
}

// ValidatePRLinks accepts absolute http(s) URLs only.
func ValidatePRLinks(links []string) ([]string, error) {
	var out []string
	for _, l := range links {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		u, err := url.Parse(l)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, ValidationError{Field: "pr_links", Message: fmt.Sprintf("%q is not an http(s) url", l)}
		}
		out = append(out, l)
	}
	return out, nil
}

// CompleteTask marks a task assigned to userID as COMPLETED, or
// PARTIALLY_COMPLETED when partial is set. The user's ACTIVE session, if any,
// is linked so the completion is attributed to that session's start.
func (e Engine) CompleteTask(ctx context.Context, userID, taskID string, partial bool, prLinks []string) (domain.Task, error) {
	links, err := ValidatePRLinks(prLinks)
	if err != nil {
		return domain.Task{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTask(ctx, tx, taskID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && (t.AssignedToID == nil || *t.AssignedToID != userID)) {
		return domain.Task{}, NotFoundError{Kind: "task", ID: taskID}
	}
	if err != nil {
		return domain.Task{}, err
	}
	if t.Status == domain.TaskCompleted {
		return domain.Task{}, ConflictError{Reason: "task already completed"}
	}
	now := e.now()
	t.Status = domain.TaskCompleted
	if partial {
		t.Status = domain.TaskPartiallyCompleted
	}
	t.CompletedDate = &now
	t.CompletedSessionID = nil
	t.CompletedSessionStart = nil
	if s, err := e.Repo.ActiveSession(ctx, tx, userID); err == nil {
		t.CompletedSessionID = &s.ID
		start := s.StartTime
		t.CompletedSessionStart = &start
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Task{}, err
	}
	if len(links) > 0 {
		t.PRLinks = links
	}
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("update task: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "task.complete", userID, "task", t.ID, userID,
		events.EventPayload{"status": t.Status, "session_id": t.CompletedSessionID}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	n := notify.Notification{Type: notify.TaskCompleted, UserID: userID, TaskID: t.ID, ActorID: userID, At: now,
		Payload: map[string]any{"status": t.Status}}
	if t.CreatedByID != userID {
		n.UserID = t.CreatedByID
	}
	e.dispatch(n)
	return t, nil
}

// RateTask sets the output score of a finished task. Admin only.
func (e Engine) RateTask(ctx context.Context, actorID, taskID string, score int) (domain.Task, error) {
	if score < MinTaskScore || score > MaxTaskScore {
		return domain.Task{}, ValidationError{Field: "score", Message: fmt.Sprintf("must be between %d and %d", MinTaskScore, MaxTaskScore)}
	}
	return e.updateFinishedTask(ctx, actorID, taskID, "task.rate", func(t *domain.Task) {
		t.Score = &score
	})
}

// ApproveTask records who signed off a finished task and notifies the assignee.
func (e Engine) ApproveTask(ctx context.Context, actorID, taskID string) (domain.Task, error) {
	var approvedAt = e.now()
	t, err := e.updateFinishedTask(ctx, actorID, taskID, "task.approve", func(t *domain.Task) {
		t.ApprovedByID = &actorID
		t.ApprovedAt = &approvedAt
	})
	if err != nil {
		return t, err
	}
	if t.AssignedToID != nil {
		e.dispatch(notify.Notification{Type: notify.TaskApproved, UserID: *t.AssignedToID, TaskID: t.ID, ActorID: actorID, At: approvedAt})
	}
	return t, nil
}

func (e Engine) updateFinishedTask(ctx context.Context, actorID, taskID, evtType string, apply func(*domain.Task)) (domain.Task, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Auth.RequireRole(ctx, tx, actorID, domain.RoleAdmin); err != nil {
		return domain.Task{}, err
	}
	t, err := e.Repo.GetTask(ctx, tx, taskID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Task{}, NotFoundError{Kind: "task", ID: taskID}
	}
	if err != nil {
		return domain.Task{}, err
	}
	if !t.Status.Finished() {
		return domain.Task{}, ConflictError{Reason: fmt.Sprintf("task %s is not completed", taskID)}
	}
	apply(&t)
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("update task: %w", err)
	}
	assignee := ""
	if t.AssignedToID != nil {
		assignee = *t.AssignedToID
	}
	if err := e.Events.Append(ctx, tx, evtType, assignee, "task", t.ID, actorID, events.EventPayload{"score": t.Score}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}
