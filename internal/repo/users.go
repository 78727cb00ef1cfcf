package repo

import (
	"context"
	"database/sql"
	"errors"

	"timeclock/internal/domain"
)

const userColumns = `id,name,email,role,base_compensation_inr,archived,created_at`

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	var created string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.BaseCompensationINR, &u.Archived, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.CreatedAt, err = ParseTime(created)
	return u, err
}

func (r Repo) InsertUser(ctx context.Context, q Querier, u domain.User) error {
	_, err := r.q(q).ExecContext(ctx, `INSERT INTO users(`+userColumns+`) VALUES (?,?,?,?,?,?,?)`,
		u.ID, u.Name, u.Email, u.Role, u.BaseCompensationINR, u.Archived, FormatTime(u.CreatedAt))
	return err
}

func (r Repo) GetUser(ctx context.Context, q Querier, id string) (domain.User, error) {
	return scanUser(r.q(q).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
}

func (r Repo) GetUserByEmail(ctx context.Context, q Querier, email string) (domain.User, error) {
	return scanUser(r.q(q).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=?`, email))
}

func (r Repo) ListUsers(ctx context.Context, q Querier, includeArchived bool) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	if !includeArchived {
		query += ` WHERE archived=0`
	}
	query += ` ORDER BY name, id`
	rows, err := r.q(q).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r Repo) ArchiveUser(ctx context.Context, q Querier, id string) error {
	res, err := r.q(q).ExecContext(ctx, `UPDATE users SET archived=1 WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UserRole returns the role of an active user.
func (r Repo) UserRole(ctx context.Context, q Querier, id string) (domain.Role, error) {
	var role domain.Role
	err := r.q(q).QueryRowContext(ctx, `SELECT role FROM users WHERE id=? AND archived=0`, id).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return role, err
}

func (r Repo) CountUsers(ctx context.Context, q Querier) (int, error) {
	var n int
	err := r.q(q).QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}
