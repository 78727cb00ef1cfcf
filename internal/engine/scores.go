package engine

import (
	"context"
	"errors"

	"timeclock/internal/billing"
	"timeclock/internal/domain"
	"timeclock/internal/repo"
	"timeclock/internal/scoring"
)

// Scorecard is a live computation of a user's scores and payout for a cycle.
// It is never persisted; SyncPayoutSnapshots is the only writer of payouts.
type Scorecard struct {
	UserID              string        `json:"user_id"`
	Name                string        `json:"name"`
	Cycle               billing.Cycle `json:"cycle"`
	WorkingDays         int           `json:"working_days"`
	MonthlyOutputScore  float64       `json:"monthly_output_score"`
	AvailabilityScore   float64       `json:"availability_score"`
	StabilityScore      float64       `json:"stability_score"`
	BaseCompensationINR string        `json:"base_compensation_inr"`
	ExpectedPayoutINR   string        `json:"expected_payout_inr"`
	DifferenceINR       string        `json:"difference_inr"`
}

// CurrentCycle is the billing cycle containing the engine clock's now.
func (e Engine) CurrentCycle() billing.Cycle {
	return billing.CurrentCycle(e.now())
}

func (e Engine) scorecard(ctx context.Context, q repo.Querier, u domain.User, cycle billing.Cycle) (Scorecard, error) {
	exceptions, err := e.Repo.ListWorkExceptions(ctx, q, u.ID, cycle.Start, cycle.End)
	if err != nil {
		return Scorecard{}, err
	}
	incidents, err := e.Repo.ListStabilityIncidents(ctx, q, u.ID, cycle.Start, cycle.End)
	if err != nil {
		return Scorecard{}, err
	}
	tasks, err := e.Repo.ListTasksForUser(ctx, q, u.ID)
	if err != nil {
		return Scorecard{}, err
	}
	workingDays := cycle.WorkingDays()
	card := Scorecard{
		UserID:             u.ID,
		Name:               u.Name,
		Cycle:              cycle,
		WorkingDays:        workingDays,
		MonthlyOutputScore: scoring.OutputScore(tasks, cycle, e.outputVariant()),
		AvailabilityScore:  scoring.AvailabilityScore(exceptions, workingDays),
		StabilityScore:     scoring.StabilityScore(incidents),
	}
	payout, err := scoring.ComputePayout(u.BaseCompensationINR, card.MonthlyOutputScore, card.AvailabilityScore, card.StabilityScore)
	if err != nil {
		return Scorecard{}, err
	}
	card.BaseCompensationINR = payout.Base.StringFixed(2)
	card.ExpectedPayoutINR = payout.Expected.StringFixed(2)
	card.DifferenceINR = payout.Difference.StringFixed(2)
	return card, nil
}

// UserScores computes the user's scorecard for cycle without writing anything.
func (e Engine) UserScores(ctx context.Context, userID string, cycle billing.Cycle) (Scorecard, error) {
	u, err := e.Repo.GetUser(ctx, e.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return Scorecard{}, NotFoundError{Kind: "user", ID: userID}
	}
	if err != nil {
		return Scorecard{}, err
	}
	return e.scorecard(ctx, e.DB, u, cycle)
}

// TeamScores computes scorecards for every active user.
func (e Engine) TeamScores(ctx context.Context, cycle billing.Cycle) ([]Scorecard, error) {
	users, err := e.Repo.ListUsers(ctx, e.DB, false)
	if err != nil {
		return nil, err
	}
	cards := make([]Scorecard, 0, len(users))
	for _, u := range users {
		card, err := e.scorecard(ctx, e.DB, u, cycle)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}
