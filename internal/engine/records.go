package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"timeclock/internal/domain"
	"timeclock/internal/events"
	"timeclock/internal/repo"
)

type WorkExceptionOptions struct {
	UserID             string
	Type               domain.WorkExceptionType
	Date               time.Time
	ScheduledTimeEpoch *int64
	ActualTimeEpoch    *int64
	Reason             string
	Notes              string
	CompensationDate   *time.Time
	ActorID            string
}

// RecordWorkException stores a scheduling deviation. Admin only. The date is
// normalized to UTC midnight.
func (e Engine) RecordWorkException(ctx context.Context, opts WorkExceptionOptions) (domain.WorkException, error) {
	if !opts.Type.Valid() {
		return domain.WorkException{}, ValidationError{Field: "type", Message: fmt.Sprintf("unknown work exception type %q", opts.Type)}
	}
	if opts.Date.IsZero() {
		return domain.WorkException{}, ValidationError{Field: "date", Message: "is required"}
	}
	if (opts.ScheduledTimeEpoch == nil) != (opts.ActualTimeEpoch == nil) {
		return domain.WorkException{}, ValidationError{Field: "actual_time_epoch", Message: "scheduled and actual times go together"}
	}
	w := domain.WorkException{
		ID:                 uuid.NewString(),
		UserID:             opts.UserID,
		Type:               opts.Type,
		Date:               midnightUTC(opts.Date),
		ScheduledTimeEpoch: opts.ScheduledTimeEpoch,
		ActualTimeEpoch:    opts.ActualTimeEpoch,
		Reason:             strings.TrimSpace(opts.Reason),
		Notes:              strings.TrimSpace(opts.Notes),
		CompensationDate:   opts.CompensationDate,
		CreatedAt:          e.now(),
	}
	if w.CompensationDate != nil {
		d := midnightUTC(*w.CompensationDate)
		w.CompensationDate = &d
	}
	err := e.recordForUser(ctx, opts.ActorID, opts.UserID, func(q repo.Querier) error {
		if err := e.Repo.InsertWorkException(ctx, q, w); err != nil {
			return fmt.Errorf("insert work exception: %w", err)
		}
		return e.Events.Append(ctx, q, "work_exception.record", w.UserID, "work_exception", w.ID, opts.ActorID,
			events.EventPayload{"type": w.Type, "date": repo.FormatTime(w.Date)})
	})
	if err != nil {
		return domain.WorkException{}, err
	}
	return w, nil
}

type StabilityIncidentOptions struct {
	UserID           string
	Type             domain.IncidentType
	Severity         domain.Severity
	Title            string
	IncidentDate     time.Time
	ResolvedAt       *time.Time
	TaskID           string
	ResolutionTaskID string
	ActorID          string
}

// RecordStabilityIncident stores an incident attributed to a user. Admin only.
func (e Engine) RecordStabilityIncident(ctx context.Context, opts StabilityIncidentOptions) (domain.StabilityIncident, error) {
	if !opts.Type.Valid() {
		return domain.StabilityIncident{}, ValidationError{Field: "type", Message: fmt.Sprintf("unknown incident type %q", opts.Type)}
	}
	if !opts.Severity.Valid() {
		return domain.StabilityIncident{}, ValidationError{Field: "severity", Message: fmt.Sprintf("unknown severity %q", opts.Severity)}
	}
	if opts.IncidentDate.IsZero() {
		return domain.StabilityIncident{}, ValidationError{Field: "incident_date", Message: "is required"}
	}
	in := domain.StabilityIncident{
		ID:               uuid.NewString(),
		UserID:           opts.UserID,
		Type:             opts.Type,
		Severity:         opts.Severity,
		Title:            strings.TrimSpace(opts.Title),
		IncidentDate:     opts.IncidentDate.Unix(),
		TaskID:           optionalString(opts.TaskID),
		ResolutionTaskID: optionalString(opts.ResolutionTaskID),
		CreatedAt:        e.now(),
	}
	if opts.ResolvedAt != nil {
		if opts.ResolvedAt.Before(opts.IncidentDate) {
			return domain.StabilityIncident{}, ValidationError{Field: "resolved_at", Message: "is before the incident"}
		}
		r := opts.ResolvedAt.Unix()
		in.ResolvedAt = &r
	}
	err := e.recordForUser(ctx, opts.ActorID, opts.UserID, func(q repo.Querier) error {
		if err := e.Repo.InsertStabilityIncident(ctx, q, in); err != nil {
			return fmt.Errorf("insert stability incident: %w", err)
		}
		return e.Events.Append(ctx, q, "stability_incident.record", in.UserID, "stability_incident", in.ID, opts.ActorID,
			events.EventPayload{"type": in.Type, "severity": in.Severity})
	})
	if err != nil {
		return domain.StabilityIncident{}, err
	}
	return in, nil
}

// recordForUser runs write in a transaction after checking the actor is an
// admin and the subject user exists.
func (e Engine) recordForUser(ctx context.Context, actorID, userID string, write func(repo.Querier) error) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Auth.RequireRole(ctx, tx, actorID, domain.RoleAdmin); err != nil {
		return err
	}
	if _, err := e.Repo.GetUser(ctx, tx, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError{Kind: "user", ID: userID}
		}
		return err
	}
	if err := write(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) ListWorkExceptions(ctx context.Context, userID string, from, to time.Time) ([]domain.WorkException, error) {
	return e.Repo.ListWorkExceptions(ctx, e.DB, userID, from, to)
}

func (e Engine) ListStabilityIncidents(ctx context.Context, userID string, from, to time.Time) ([]domain.StabilityIncident, error) {
	return e.Repo.ListStabilityIncidents(ctx, e.DB, userID, from, to)
}

func midnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
