package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"timeclock/internal/billing"
	"timeclock/internal/domain"
	"timeclock/internal/events"
)

// SyncPayoutSnapshots finalizes payouts for every active user for cycle. Each
// user is computed and upserted in its own transaction; on error the users
// already synced stay synced and the sync can be rerun.
func (e Engine) SyncPayoutSnapshots(ctx context.Context, actorID string, cycle billing.Cycle) ([]domain.PayoutSnapshot, error) {
	if err := e.Auth.RequireRole(ctx, e.DB, actorID, domain.RoleAdmin); err != nil {
		return nil, err
	}
	users, err := e.Repo.ListUsers(ctx, e.DB, false)
	if err != nil {
		return nil, err
	}
	res := make([]domain.PayoutSnapshot, 0, len(users))
	for _, u := range users {
		snap, err := e.syncUserPayout(ctx, actorID, u, cycle)
		if err != nil {
			return res, fmt.Errorf("sync payout for %s: %w", u.ID, err)
		}
		res = append(res, snap)
	}
	e.logf("payout: synced %d snapshots for cycle %s", len(res), cycle.Label())
	return res, nil
}

func (e Engine) syncUserPayout(ctx context.Context, actorID string, u domain.User, cycle billing.Cycle) (domain.PayoutSnapshot, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.PayoutSnapshot{}, err
	}
	defer tx.Rollback()

	card, err := e.scorecard(ctx, tx, u, cycle)
	if err != nil {
		return domain.PayoutSnapshot{}, err
	}
	snap := domain.PayoutSnapshot{
		ID:                  uuid.NewString(),
		UserID:              u.ID,
		BillingCycleStart:   cycle.Start,
		BillingCycleEnd:     cycle.End,
		MonthlyOutputScore:  card.MonthlyOutputScore,
		AvailabilityScore:   card.AvailabilityScore,
		StabilityScore:      card.StabilityScore,
		BaseCompensationINR: card.BaseCompensationINR,
		ExpectedPayoutINR:   card.ExpectedPayoutINR,
		DifferenceINR:       card.DifferenceINR,
		WorkingDaysInCycle:  card.WorkingDays,
		SnapshotDate:        e.now(),
		SyncedByID:          actorID,
	}
	if err := e.Repo.UpsertPayoutSnapshot(ctx, tx, snap); err != nil {
		return domain.PayoutSnapshot{}, fmt.Errorf("upsert payout snapshot: %w", err)
	}
	stored, err := e.Repo.GetPayoutSnapshot(ctx, tx, u.ID, cycle.Start, cycle.End)
	if err != nil {
		return domain.PayoutSnapshot{}, err
	}
	if err := e.Events.Append(ctx, tx, "payout.sync", u.ID, "payout_snapshot", stored.ID, actorID,
		events.EventPayload{"cycle": cycle.Label(), "expected_payout_inr": stored.ExpectedPayoutINR}); err != nil {
		return domain.PayoutSnapshot{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.PayoutSnapshot{}, err
	}
	return stored, nil
}

func (e Engine) ListPayoutSnapshots(ctx context.Context, cycle billing.Cycle) ([]domain.PayoutSnapshot, error) {
	return e.Repo.ListPayoutSnapshots(ctx, e.DB, cycle.Start, cycle.End)
}
