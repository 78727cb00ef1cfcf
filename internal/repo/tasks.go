package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"timeclock/internal/domain"
)

// taskSelect joins the completing session so effective completion dates can be
// derived without a second query.
const taskSelect = `SELECT t.id,t.title,COALESCE(t.description,''),t.project_id,t.assigned_to_id,t.created_by_id,t.status,t.score,
t.pr_links_json,t.created_at,t.completed_date,t.completed_session_id,s.start_time,t.approved_by_id,t.approved_at
FROM tasks t LEFT JOIN sessions s ON s.id = t.completed_session_id`

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var created string
	var project, assignee, prLinks, completed, sessionID, sessionStart, approvedBy, approvedAt sql.NullString
	var score sql.NullInt64
	err := row.Scan(&t.ID, &t.Title, &t.Description, &project, &assignee, &t.CreatedByID, &t.Status, &score,
		&prLinks, &created, &completed, &sessionID, &sessionStart, &approvedBy, &approvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.ProjectID = stringPtr(project)
	t.AssignedToID = stringPtr(assignee)
	t.CompletedSessionID = stringPtr(sessionID)
	t.ApprovedByID = stringPtr(approvedBy)
	if score.Valid {
		v := int(score.Int64)
		t.Score = &v
	}
	if prLinks.Valid && prLinks.String != "" {
		if err := json.Unmarshal([]byte(prLinks.String), &t.PRLinks); err != nil {
			return t, fmt.Errorf("decode pr links for task %s: %w", t.ID, err)
		}
	}
	if t.CreatedAt, err = ParseTime(created); err != nil {
		return t, err
	}
	if t.CompletedDate, err = parseNullTime(completed); err != nil {
		return t, err
	}
	if t.CompletedSessionStart, err = parseNullTime(sessionStart); err != nil {
		return t, err
	}
	if t.ApprovedAt, err = parseNullTime(approvedAt); err != nil {
		return t, err
	}
	return t, nil
}

func encodeLinks(links []string) (any, error) {
	if len(links) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(links)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (r Repo) InsertTask(ctx context.Context, q Querier, t domain.Task) error {
	links, err := encodeLinks(t.PRLinks)
	if err != nil {
		return err
	}
	_, err = r.q(q).ExecContext(ctx, `INSERT INTO tasks(id,title,description,project_id,assigned_to_id,created_by_id,status,score,pr_links_json,created_at,completed_date,completed_session_id,approved_by_id,approved_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, nullable(t.Description), nullableStringPtr(t.ProjectID), nullableStringPtr(t.AssignedToID), t.CreatedByID,
		t.Status, nullableIntPtr(t.Score), links, FormatTime(t.CreatedAt), nullTime(t.CompletedDate),
		nullableStringPtr(t.CompletedSessionID), nullableStringPtr(t.ApprovedByID), nullTime(t.ApprovedAt))
	return err
}

// UpdateTask rewrites the mutable fields of a task.
func (r Repo) UpdateTask(ctx context.Context, q Querier, t domain.Task) error {
	links, err := encodeLinks(t.PRLinks)
	if err != nil {
		return err
	}
	res, err := r.q(q).ExecContext(ctx, `UPDATE tasks SET title=?, description=?, project_id=?, assigned_to_id=?, status=?, score=?, pr_links_json=?,
completed_date=?, completed_session_id=?, approved_by_id=?, approved_at=? WHERE id=?`,
		t.Title, nullable(t.Description), nullableStringPtr(t.ProjectID), nullableStringPtr(t.AssignedToID), t.Status,
		nullableIntPtr(t.Score), links, nullTime(t.CompletedDate), nullableStringPtr(t.CompletedSessionID),
		nullableStringPtr(t.ApprovedByID), nullTime(t.ApprovedAt), t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetTask(ctx context.Context, q Querier, id string) (domain.Task, error) {
	return scanTask(r.q(q).QueryRowContext(ctx, taskSelect+` WHERE t.id=?`, id))
}

type TaskFilters struct {
	AssigneeID string
	Status     string
	ProjectID  string
	Limit      int
}

func (r Repo) ListTasks(ctx context.Context, q Querier, f TaskFilters) ([]domain.Task, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.AssigneeID != "" {
		clauses = append(clauses, "t.assigned_to_id=?")
		args = append(args, f.AssigneeID)
	}
	if f.Status != "" {
		clauses = append(clauses, "t.status=?")
		args = append(args, f.Status)
	}
	if f.ProjectID != "" {
		clauses = append(clauses, "t.project_id=?")
		args = append(args, f.ProjectID)
	}
	query := taskSelect + ` WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY t.created_at DESC, t.id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.q(q).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// ListTasksForUser returns every task assigned to the user.
func (r Repo) ListTasksForUser(ctx context.Context, q Querier, userID string) ([]domain.Task, error) {
	return r.ListTasks(ctx, q, TaskFilters{AssigneeID: userID})
}
