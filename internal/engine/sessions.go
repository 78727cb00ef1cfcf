package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"timeclock/internal/domain"
	"timeclock/internal/events"
	"timeclock/internal/repo"
)

// StartSession opens a session and its first WORK segment for userID.
func (e Engine) StartSession(ctx context.Context, userID string, projectID *string) (domain.Session, error) {
	if err := requireUser(userID); err != nil {
		return domain.Session{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Session{}, err
	}
	defer tx.Rollback()

	user, err := e.Repo.GetUser(ctx, tx, userID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && user.Archived) {
		return domain.Session{}, NotFoundError{Kind: "user", ID: userID}
	}
	if err != nil {
		return domain.Session{}, err
	}
	if _, err := e.Repo.ActiveSession(ctx, tx, userID); err == nil {
		return domain.Session{}, ConflictError{Reason: "user already has an active session"}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Session{}, err
	}

	now := e.now()
	s := domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		StartTime: now,
		Status:    domain.SessionActive,
		ProjectID: projectID,
	}
	if err := e.Repo.InsertSession(ctx, tx, s); err != nil {
		if isUniqueViolation(err) {
			return domain.Session{}, ConflictError{Reason: "user already has an active session"}
		}
		return domain.Session{}, fmt.Errorf("insert session: %w", err)
	}
	if err := e.Repo.InsertSegment(ctx, tx, domain.Segment{
		ID:        uuid.NewString(),
		SessionID: s.ID,
		Type:      domain.SegmentWork,
		ProjectID: projectID,
		StartTime: now,
	}); err != nil {
		return domain.Session{}, fmt.Errorf("insert segment: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "session.start", userID, "session", s.ID, userID, events.EventPayload{"project_id": projectID}); err != nil {
		return domain.Session{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

// activeOwnedSession loads sessionID and checks it is ACTIVE and owned by userID.
func (e Engine) activeOwnedSession(ctx context.Context, q repo.Querier, userID, sessionID string) (domain.Session, error) {
	s, err := e.Repo.GetSession(ctx, q, sessionID)
	if errors.Is(err, repo.ErrNotFound) {
		return s, NotFoundError{Kind: "active session", ID: sessionID}
	}
	if err != nil {
		return s, err
	}
	if s.UserID != userID || s.Status != domain.SessionActive {
		return s, NotFoundError{Kind: "active session", ID: sessionID}
	}
	return s, nil
}

// closeOpenSegment closes the segment FindOpenSegment picks and returns it.
// found is false when the session has no open segment.
func (e Engine) closeOpenSegment(ctx context.Context, q repo.Querier, sessionID string, now time.Time) (seg domain.Segment, found bool, err error) {
	seg, err = e.Repo.FindOpenSegment(ctx, q, sessionID)
	if errors.Is(err, repo.ErrNotFound) {
		return seg, false, nil
	}
	if err != nil {
		return seg, false, err
	}
	end := now
	seg.EndTime = &end
	seg.Duration = domain.ElapsedSeconds(seg.StartTime, now)
	if err := e.Repo.CloseSegment(ctx, q, seg.ID, now, seg.Duration); err != nil {
		return seg, false, staleAsConflict(err, "segment was closed concurrently")
	}
	return seg, true, nil
}

// EndSession closes every open segment of the session, recomputes its totals
// from the segments and marks it COMPLETED. A break still open on the session
// is closed with it.
func (e Engine) EndSession(ctx context.Context, userID, sessionID string) (domain.Session, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Session{}, err
	}
	defer tx.Rollback()

	s, err := e.activeOwnedSession(ctx, tx, userID, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	now := e.now()
	for {
		seg, found, err := e.closeOpenSegment(ctx, tx, s.ID, now)
		if err != nil {
			return domain.Session{}, err
		}
		if !found {
			break
		}
		if seg.Type == domain.SegmentBreak && seg.BreakID != nil {
			err := e.Repo.CloseBreak(ctx, tx, *seg.BreakID, now, seg.Duration)
			if err != nil && !errors.Is(err, repo.ErrStaleWrite) {
				return domain.Session{}, fmt.Errorf("close break: %w", err)
			}
		}
	}
	total, breaks, err := e.Repo.SegmentTotals(ctx, tx, s.ID)
	if err != nil {
		return domain.Session{}, err
	}
	if err := e.Repo.CloseSession(ctx, tx, s.ID, now, total, breaks, domain.SessionCompleted); err != nil {
		return domain.Session{}, staleAsConflict(err, "session was closed concurrently")
	}
	if err := e.Events.Append(ctx, tx, "session.end", userID, "session", s.ID, userID,
		events.EventPayload{"total_duration": total, "total_break_time": breaks}); err != nil {
		return domain.Session{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Session{}, err
	}
	end := now
	s.EndTime = &end
	s.TotalDuration = total
	s.TotalBreakTime = breaks
	s.Status = domain.SessionCompleted
	return s, nil
}

// SwitchProject closes the open WORK segment and opens a new one on projectID.
// Switching while on a break is a ConflictError; end the break first.
func (e Engine) SwitchProject(ctx context.Context, userID, sessionID string, projectID *string) (domain.Session, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Session{}, err
	}
	defer tx.Rollback()

	s, err := e.activeOwnedSession(ctx, tx, userID, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	open, err := e.Repo.FindOpenSegment(ctx, tx, s.ID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return domain.Session{}, err
	}
	if err == nil && open.Type == domain.SegmentBreak {
		return domain.Session{}, ConflictError{Reason: "session is on a break"}
	}
	now := e.now()
	if _, _, err := e.closeOpenSegment(ctx, tx, s.ID, now); err != nil {
		return domain.Session{}, err
	}
	if err := e.Repo.InsertSegment(ctx, tx, domain.Segment{
		ID:        uuid.NewString(),
		SessionID: s.ID,
		Type:      domain.SegmentWork,
		ProjectID: projectID,
		StartTime: now,
	}); err != nil {
		return domain.Session{}, fmt.Errorf("insert segment: %w", err)
	}
	if err := e.Repo.SetSessionProject(ctx, tx, s.ID, projectID); err != nil {
		return domain.Session{}, staleAsConflict(err, "session was closed concurrently")
	}
	if err := e.Events.Append(ctx, tx, "session.switch_project", userID, "session", s.ID, userID,
		events.EventPayload{"from": s.ProjectID, "to": projectID}); err != nil {
		return domain.Session{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Session{}, err
	}
	s.ProjectID = projectID
	return s, nil
}

// SessionTimeline returns a session owned by userID with its segments and breaks.
func (e Engine) SessionTimeline(ctx context.Context, userID, sessionID string) (domain.Timeline, error) {
	s, err := e.Repo.GetSession(ctx, e.DB, sessionID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && s.UserID != userID) {
		return domain.Timeline{}, NotFoundError{Kind: "session", ID: sessionID}
	}
	if err != nil {
		return domain.Timeline{}, err
	}
	return e.timeline(ctx, s)
}

// ActiveTimeline returns the user's ACTIVE session timeline.
func (e Engine) ActiveTimeline(ctx context.Context, userID string) (domain.Timeline, error) {
	s, err := e.Repo.ActiveSession(ctx, e.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Timeline{}, NotFoundError{Kind: "active session"}
	}
	if err != nil {
		return domain.Timeline{}, err
	}
	return e.timeline(ctx, s)
}

func (e Engine) timeline(ctx context.Context, s domain.Session) (domain.Timeline, error) {
	segments, err := e.Repo.ListSegments(ctx, e.DB, s.ID)
	if err != nil {
		return domain.Timeline{}, err
	}
	breaks, err := e.Repo.ListBreaks(ctx, e.DB, s.ID)
	if err != nil {
		return domain.Timeline{}, err
	}
	return domain.BuildTimeline(s, segments, breaks, e.now()), nil
}

// ListSessions returns the user's sessions started within [from, to], newest first.
func (e Engine) ListSessions(ctx context.Context, userID string, from, to *time.Time, limit int) ([]domain.Session, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return e.Repo.ListSessions(ctx, e.DB, repo.SessionFilters{UserID: userID, From: from, To: to, Limit: limit})
}
