package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"timeclock/internal/domain"
)

const sessionColumns = `id,user_id,start_time,end_time,total_duration,total_break_time,status,project_id`

func scanSession(row rowScanner) (domain.Session, error) {
	var s domain.Session
	var start string
	var end, project sql.NullString
	err := row.Scan(&s.ID, &s.UserID, &start, &end, &s.TotalDuration, &s.TotalBreakTime, &s.Status, &project)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	if s.StartTime, err = ParseTime(start); err != nil {
		return s, err
	}
	if s.EndTime, err = parseNullTime(end); err != nil {
		return s, err
	}
	s.ProjectID = stringPtr(project)
	return s, nil
}

func (r Repo) InsertSession(ctx context.Context, q Querier, s domain.Session) error {
	_, err := r.q(q).ExecContext(ctx, `INSERT INTO sessions(`+sessionColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		s.ID, s.UserID, FormatTime(s.StartTime), nullTime(s.EndTime), s.TotalDuration, s.TotalBreakTime, s.Status, nullableStringPtr(s.ProjectID))
	return err
}

func (r Repo) GetSession(ctx context.Context, q Querier, id string) (domain.Session, error) {
	return scanSession(r.q(q).QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id=?`, id))
}

// ActiveSession returns the user's ACTIVE session or ErrNotFound.
func (r Repo) ActiveSession(ctx context.Context, q Querier, userID string) (domain.Session, error) {
	return scanSession(r.q(q).QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id=? AND status=? ORDER BY start_time DESC LIMIT 1`,
		userID, domain.SessionActive))
}

type SessionFilters struct {
	UserID string
	Status string
	From   *time.Time
	To     *time.Time
	Limit  int
}

// ListSessions returns sessions newest first. From/To bound start_time inclusively.
func (r Repo) ListSessions(ctx context.Context, q Querier, f SessionFilters) ([]domain.Session, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.UserID != "" {
		clauses = append(clauses, "user_id=?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.From != nil {
		clauses = append(clauses, "start_time>=?")
		args = append(args, FormatTime(*f.From))
	}
	if f.To != nil {
		clauses = append(clauses, "start_time<=?")
		args = append(args, FormatTime(*f.To))
	}
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY start_time DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.q(q).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// CloseSession finalizes an ACTIVE session. ErrStaleWrite if it is no longer ACTIVE.
func (r Repo) CloseSession(ctx context.Context, q Querier, id string, end time.Time, totalDuration, totalBreak int64, status domain.SessionStatus) error {
	return expectOne(r.q(q).ExecContext(ctx,
		`UPDATE sessions SET end_time=?, total_duration=?, total_break_time=?, status=? WHERE id=? AND status=?`,
		FormatTime(end), totalDuration, totalBreak, status, id, domain.SessionActive))
}

func (r Repo) SetSessionProject(ctx context.Context, q Querier, id string, projectID *string) error {
	return expectOne(r.q(q).ExecContext(ctx,
		`UPDATE sessions SET project_id=? WHERE id=? AND status=?`,
		nullableStringPtr(projectID), id, domain.SessionActive))
}

const segmentColumns = `id,session_id,type,project_id,break_id,start_time,end_time,duration`

func scanSegment(row rowScanner) (domain.Segment, error) {
	var s domain.Segment
	var start string
	var end, project, breakID sql.NullString
	err := row.Scan(&s.ID, &s.SessionID, &s.Type, &project, &breakID, &start, &end, &s.Duration)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	if s.StartTime, err = ParseTime(start); err != nil {
		return s, err
	}
	if s.EndTime, err = parseNullTime(end); err != nil {
		return s, err
	}
	s.ProjectID = stringPtr(project)
	s.BreakID = stringPtr(breakID)
	return s, nil
}

func (r Repo) InsertSegment(ctx context.Context, q Querier, s domain.Segment) error {
	_, err := r.q(q).ExecContext(ctx, `INSERT INTO segments(`+segmentColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		s.ID, s.SessionID, s.Type, nullableStringPtr(s.ProjectID), nullableStringPtr(s.BreakID),
		FormatTime(s.StartTime), nullTime(s.EndTime), s.Duration)
	return err
}

// FindOpenSegment returns the session's open segment. When more than one is
// open the one with the latest start wins.
func (r Repo) FindOpenSegment(ctx context.Context, q Querier, sessionID string) (domain.Segment, error) {
	return scanSegment(r.q(q).QueryRowContext(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE session_id=? AND end_time IS NULL ORDER BY start_time DESC, id DESC LIMIT 1`,
		sessionID))
}

func (r Repo) FindOpenBreakSegment(ctx context.Context, q Querier, breakID string) (domain.Segment, error) {
	return scanSegment(r.q(q).QueryRowContext(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE break_id=? AND end_time IS NULL ORDER BY start_time DESC LIMIT 1`,
		breakID))
}

func (r Repo) ListSegments(ctx context.Context, q Querier, sessionID string) ([]domain.Segment, error) {
	rows, err := r.q(q).QueryContext(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE session_id=? ORDER BY start_time, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Segment
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// CloseSegment sets end time and duration on an open segment. ErrStaleWrite if
// it was already closed.
func (r Repo) CloseSegment(ctx context.Context, q Querier, id string, end time.Time, duration int64) error {
	return expectOne(r.q(q).ExecContext(ctx,
		`UPDATE segments SET end_time=?, duration=? WHERE id=? AND end_time IS NULL`,
		FormatTime(end), duration, id))
}

// SegmentTotals sums closed segment durations: all of them, and BREAK only.
func (r Repo) SegmentTotals(ctx context.Context, q Querier, sessionID string) (total, breaks int64, err error) {
	err = r.q(q).QueryRowContext(ctx,
		`SELECT COALESCE(SUM(duration),0), COALESCE(SUM(CASE WHEN type=? THEN duration ELSE 0 END),0) FROM segments WHERE session_id=?`,
		domain.SegmentBreak, sessionID).Scan(&total, &breaks)
	return total, breaks, err
}

const breakColumns = `id,user_id,session_id,type,start_time,end_time,duration`

func scanBreak(row rowScanner) (domain.Break, error) {
	var b domain.Break
	var start string
	var end sql.NullString
	err := row.Scan(&b.ID, &b.UserID, &b.SessionID, &b.Type, &start, &end, &b.Duration)
	if errors.Is(err, sql.ErrNoRows) {
		return b, ErrNotFound
	}
	if err != nil {
		return b, err
	}
	if b.StartTime, err = ParseTime(start); err != nil {
		return b, err
	}
	if b.EndTime, err = parseNullTime(end); err != nil {
		return b, err
	}
	return b, nil
}

func (r Repo) InsertBreak(ctx context.Context, q Querier, b domain.Break) error {
	_, err := r.q(q).ExecContext(ctx, `INSERT INTO breaks(`+breakColumns+`) VALUES (?,?,?,?,?,?,?)`,
		b.ID, b.UserID, b.SessionID, b.Type, FormatTime(b.StartTime), nullTime(b.EndTime), b.Duration)
	return err
}

func (r Repo) GetBreak(ctx context.Context, q Querier, id string) (domain.Break, error) {
	return scanBreak(r.q(q).QueryRowContext(ctx, `SELECT `+breakColumns+` FROM breaks WHERE id=?`, id))
}

// FindOpenBreak returns the break only when it is still open and owned by userID.
func (r Repo) FindOpenBreak(ctx context.Context, q Querier, id, userID string) (domain.Break, error) {
	return scanBreak(r.q(q).QueryRowContext(ctx,
		`SELECT `+breakColumns+` FROM breaks WHERE id=? AND user_id=? AND end_time IS NULL`, id, userID))
}

func (r Repo) CloseBreak(ctx context.Context, q Querier, id string, end time.Time, duration int64) error {
	return expectOne(r.q(q).ExecContext(ctx,
		`UPDATE breaks SET end_time=?, duration=? WHERE id=? AND end_time IS NULL`,
		FormatTime(end), duration, id))
}

func (r Repo) ListBreaks(ctx context.Context, q Querier, sessionID string) ([]domain.Break, error) {
	rows, err := r.q(q).QueryContext(ctx,
		`SELECT `+breakColumns+` FROM breaks WHERE session_id=? ORDER BY start_time, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Break
	for rows.Next() {
		b, err := scanBreak(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}
