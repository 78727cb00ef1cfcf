package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"timeclock/internal/domain"
)

const snapshotColumns = `id,user_id,billing_cycle_start,billing_cycle_end,monthly_output_score,availability_score,stability_score,
base_compensation_inr,expected_payout_inr,difference_inr,working_days_in_cycle,snapshot_date,synced_by_id`

func scanSnapshot(row rowScanner) (domain.PayoutSnapshot, error) {
	var p domain.PayoutSnapshot
	var start, end, snapped string
	err := row.Scan(&p.ID, &p.UserID, &start, &end, &p.MonthlyOutputScore, &p.AvailabilityScore, &p.StabilityScore,
		&p.BaseCompensationINR, &p.ExpectedPayoutINR, &p.DifferenceINR, &p.WorkingDaysInCycle, &snapped, &p.SyncedByID)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if p.BillingCycleStart, err = ParseTime(start); err != nil {
		return p, err
	}
	if p.BillingCycleEnd, err = ParseTime(end); err != nil {
		return p, err
	}
	p.SnapshotDate, err = ParseTime(snapped)
	return p, err
}

// UpsertPayoutSnapshot inserts the snapshot or overwrites every computed field
// of the existing one for the same (user, cycle start, cycle end). The row id
// of an existing snapshot is kept.
func (r Repo) UpsertPayoutSnapshot(ctx context.Context, q Querier, p domain.PayoutSnapshot) error {
	_, err := r.q(q).ExecContext(ctx, `INSERT INTO payout_snapshots(`+snapshotColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(user_id, billing_cycle_start, billing_cycle_end) DO UPDATE SET
  monthly_output_score=excluded.monthly_output_score,
  availability_score=excluded.availability_score,
  stability_score=excluded.stability_score,
  base_compensation_inr=excluded.base_compensation_inr,
  expected_payout_inr=excluded.expected_payout_inr,
  difference_inr=excluded.difference_inr,
  working_days_in_cycle=excluded.working_days_in_cycle,
  snapshot_date=excluded.snapshot_date,
  synced_by_id=excluded.synced_by_id`,
		p.ID, p.UserID, FormatTime(p.BillingCycleStart), FormatTime(p.BillingCycleEnd),
		p.MonthlyOutputScore, p.AvailabilityScore, p.StabilityScore,
		p.BaseCompensationINR, p.ExpectedPayoutINR, p.DifferenceINR, p.WorkingDaysInCycle,
		FormatTime(p.SnapshotDate), p.SyncedByID)
	return err
}

func (r Repo) GetPayoutSnapshot(ctx context.Context, q Querier, userID string, start, end time.Time) (domain.PayoutSnapshot, error) {
	return scanSnapshot(r.q(q).QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM payout_snapshots WHERE user_id=? AND billing_cycle_start=? AND billing_cycle_end=?`,
		userID, FormatTime(start), FormatTime(end)))
}

func (r Repo) ListPayoutSnapshots(ctx context.Context, q Querier, start, end time.Time) ([]domain.PayoutSnapshot, error) {
	rows, err := r.q(q).QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM payout_snapshots WHERE billing_cycle_start=? AND billing_cycle_end=? ORDER BY user_id`,
		FormatTime(start), FormatTime(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PayoutSnapshot
	for rows.Next() {
		p, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
