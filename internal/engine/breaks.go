package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"timeclock/internal/domain"
	"timeclock/internal/events"
	"timeclock/internal/repo"
)

// StartBreak closes the open WORK segment and opens a break with its BREAK segment.
func (e Engine) StartBreak(ctx context.Context, userID, sessionID string, breakType domain.BreakType) (domain.Break, error) {
	if !breakType.Valid() {
		return domain.Break{}, ValidationError{Field: "break_type", Message: fmt.Sprintf("unknown type %q", breakType)}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Break{}, err
	}
	defer tx.Rollback()

	s, err := e.activeOwnedSession(ctx, tx, userID, sessionID)
	if err != nil {
		return domain.Break{}, err
	}
	open, err := e.Repo.FindOpenSegment(ctx, tx, s.ID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return domain.Break{}, err
	}
	if err == nil && open.Type == domain.SegmentBreak {
		return domain.Break{}, ConflictError{Reason: "session is already on a break"}
	}
	now := e.now()
	if _, _, err := e.closeOpenSegment(ctx, tx, s.ID, now); err != nil {
		return domain.Break{}, err
	}
	b := domain.Break{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: s.ID,
		Type:      breakType,
		StartTime: now,
	}
	if err := e.Repo.InsertBreak(ctx, tx, b); err != nil {
		return domain.Break{}, fmt.Errorf("insert break: %w", err)
	}
	if err := e.Repo.InsertSegment(ctx, tx, domain.Segment{
		ID:        uuid.NewString(),
		SessionID: s.ID,
		Type:      domain.SegmentBreak,
		BreakID:   &b.ID,
		StartTime: now,
	}); err != nil {
		return domain.Break{}, fmt.Errorf("insert segment: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "break.start", userID, "break", b.ID, userID,
		events.EventPayload{"session_id": s.ID, "type": breakType}); err != nil {
		return domain.Break{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Break{}, err
	}
	return b, nil
}

// closedWithSession reports whether b was still open when its session ended.
// EndSession stamps the break with the session's own end time.
func closedWithSession(b domain.Break, s domain.Session) bool {
	if b.EndTime == nil {
		return true
	}
	return s.EndTime != nil && b.EndTime.Equal(*s.EndTime)
}

// EndBreak closes the break and its BREAK segment, then resumes work on the
// session's current project. A break that was still open when its session
// ended is a ConflictError; a break ended earlier is NotFound.
func (e Engine) EndBreak(ctx context.Context, userID, breakID string) (domain.Break, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Break{}, err
	}
	defer tx.Rollback()

	b, err := e.Repo.GetBreak(ctx, tx, breakID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && b.UserID != userID) {
		return domain.Break{}, NotFoundError{Kind: "open break", ID: breakID}
	}
	if err != nil {
		return domain.Break{}, err
	}
	s, err := e.Repo.GetSession(ctx, tx, b.SessionID)
	if err != nil {
		return domain.Break{}, fmt.Errorf("load session %s: %w", b.SessionID, err)
	}
	if s.Status != domain.SessionActive && closedWithSession(b, s) {
		return domain.Break{}, ConflictError{Reason: "session ended while the break was open"}
	}
	if b.EndTime != nil || s.Status != domain.SessionActive {
		return domain.Break{}, NotFoundError{Kind: "open break", ID: breakID}
	}

	now := e.now()
	duration := domain.ElapsedSeconds(b.StartTime, now)
	seg, err := e.Repo.FindOpenBreakSegment(ctx, tx, b.ID)
	switch {
	case err == nil:
		if err := e.Repo.CloseSegment(ctx, tx, seg.ID, now, domain.ElapsedSeconds(seg.StartTime, now)); err != nil {
			return domain.Break{}, staleAsConflict(err, "break segment was closed concurrently")
		}
	case errors.Is(err, repo.ErrNotFound):
		e.logf("engine: break %s has no open segment", b.ID)
	default:
		return domain.Break{}, err
	}
	if err := e.Repo.CloseBreak(ctx, tx, b.ID, now, duration); err != nil {
		return domain.Break{}, staleAsConflict(err, "break was closed concurrently")
	}
	if err := e.Repo.InsertSegment(ctx, tx, domain.Segment{
		ID:        uuid.NewString(),
		SessionID: s.ID,
		Type:      domain.SegmentWork,
		ProjectID: s.ProjectID,
		StartTime: now,
	}); err != nil {
		return domain.Break{}, fmt.Errorf("insert segment: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "break.end", userID, "break", b.ID, userID,
		events.EventPayload{"session_id": s.ID, "duration": duration}); err != nil {
		return domain.Break{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Break{}, err
	}
	end := now
	b.EndTime = &end
	b.Duration = duration
	return b, nil
}
