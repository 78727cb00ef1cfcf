package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"timeclock/internal/domain"
)

const exceptionColumns = `id,user_id,type,date,scheduled_time_epoch,actual_time_epoch,reason,notes,compensation_date,created_at`

func scanException(row rowScanner) (domain.WorkException, error) {
	var w domain.WorkException
	var date, created string
	var scheduled, actual sql.NullInt64
	var reason, notes, compensation sql.NullString
	err := row.Scan(&w.ID, &w.UserID, &w.Type, &date, &scheduled, &actual, &reason, &notes, &compensation, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return w, ErrNotFound
	}
	if err != nil {
		return w, err
	}
	if w.Date, err = ParseTime(date); err != nil {
		return w, err
	}
	if w.CreatedAt, err = ParseTime(created); err != nil {
		return w, err
	}
	if w.CompensationDate, err = parseNullTime(compensation); err != nil {
		return w, err
	}
	w.ScheduledTimeEpoch = int64Ptr(scheduled)
	w.ActualTimeEpoch = int64Ptr(actual)
	w.Reason = reason.String
	w.Notes = notes.String
	return w, nil
}

func (r Repo) InsertWorkException(ctx context.Context, q Querier, w domain.WorkException) error {
	_, err := r.q(q).ExecContext(ctx, `INSERT INTO work_exceptions(`+exceptionColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		w.ID, w.UserID, w.Type, FormatTime(w.Date), nullableInt64Ptr(w.ScheduledTimeEpoch), nullableInt64Ptr(w.ActualTimeEpoch),
		nullable(w.Reason), nullable(w.Notes), nullTime(w.CompensationDate), FormatTime(w.CreatedAt))
	return err
}

// ListWorkExceptions returns the user's exceptions dated within [from, to], oldest first.
func (r Repo) ListWorkExceptions(ctx context.Context, q Querier, userID string, from, to time.Time) ([]domain.WorkException, error) {
	rows, err := r.q(q).QueryContext(ctx,
		`SELECT `+exceptionColumns+` FROM work_exceptions WHERE user_id=? AND date>=? AND date<=? ORDER BY date, id`,
		userID, FormatTime(from), FormatTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WorkException
	for rows.Next() {
		w, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

const incidentColumns = `id,user_id,type,severity,title,incident_date,resolved_at,task_id,resolution_task_id,created_at`

func scanIncident(row rowScanner) (domain.StabilityIncident, error) {
	var in domain.StabilityIncident
	var created string
	var title, taskID, resolutionID sql.NullString
	var resolved sql.NullInt64
	err := row.Scan(&in.ID, &in.UserID, &in.Type, &in.Severity, &title, &in.IncidentDate, &resolved, &taskID, &resolutionID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return in, ErrNotFound
	}
	if err != nil {
		return in, err
	}
	if in.CreatedAt, err = ParseTime(created); err != nil {
		return in, err
	}
	in.Title = title.String
	in.ResolvedAt = int64Ptr(resolved)
	in.TaskID = stringPtr(taskID)
	in.ResolutionTaskID = stringPtr(resolutionID)
	return in, nil
}

func (r Repo) InsertStabilityIncident(ctx context.Context, q Querier, in domain.StabilityIncident) error {
	_, err := r.q(q).ExecContext(ctx, `INSERT INTO stability_incidents(`+incidentColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		in.ID, in.UserID, in.Type, in.Severity, nullable(in.Title), in.IncidentDate, nullableInt64Ptr(in.ResolvedAt),
		nullableStringPtr(in.TaskID), nullableStringPtr(in.ResolutionTaskID), FormatTime(in.CreatedAt))
	return err
}

// ListStabilityIncidents returns incidents with incident_date in [from, to]
// (epoch seconds), oldest first.
func (r Repo) ListStabilityIncidents(ctx context.Context, q Querier, userID string, from, to time.Time) ([]domain.StabilityIncident, error) {
	rows, err := r.q(q).QueryContext(ctx,
		`SELECT `+incidentColumns+` FROM stability_incidents WHERE user_id=? AND incident_date>=? AND incident_date<=? ORDER BY incident_date, id`,
		userID, from.Unix(), to.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.StabilityIncident
	for rows.Next() {
		in, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, in)
	}
	return res, rows.Err()
}
