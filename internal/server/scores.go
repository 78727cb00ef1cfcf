package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"timeclock/internal/billing"
	"timeclock/internal/domain"
	"timeclock/internal/engine"
)

func registerScores(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "billing-cycle",
		Method:      http.MethodGet,
		Path:        "/billing-cycle",
		Summary:     "Resolve a billing cycle",
		Description: "Without cycle, returns the cycle containing now.",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Cycle string `query:"cycle" example:"2024-05"`
		At    string `query:"at" example:"2024-05-20T09:00:00Z"`
	}) (*struct {
		Body CycleResponse `json:"body"`
	}, error) {
		at, err := parseTimeParam("at", input.At)
		if err != nil {
			return nil, handleError(err)
		}
		cycle, err := cycleParam(e, input.Cycle)
		if err != nil {
			return nil, handleError(err)
		}
		if at != nil && input.Cycle == "" {
			cycle = billing.CurrentCycle(*at)
		}
		return &struct {
			Body CycleResponse `json:"body"`
		}{Body: cycleResponse(cycle)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "user-scores",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}/scores",
		Summary:     "Live scores for a user",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UserID string `path:"user_id"`
		Cycle  string `query:"cycle" example:"2024-05"`
	}) (*struct {
		Body engine.Scorecard `json:"body"`
	}, error) {
		if _, err := requireSelfOrAdmin(ctx, e, input.UserID); err != nil {
			return nil, handleError(err)
		}
		cycle, err := cycleParam(e, input.Cycle)
		if err != nil {
			return nil, handleError(err)
		}
		card, err := e.UserScores(ctx, input.UserID, cycle)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Scorecard `json:"body"`
		}{Body: card}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "team-scores",
		Method:      http.MethodGet,
		Path:        "/team/scores",
		Summary:     "Live scores for every active user",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Cycle string `query:"cycle" example:"2024-05"`
	}) (*struct {
		Body []engine.Scorecard `json:"body"`
	}, error) {
		if _, err := requireAdmin(ctx, e); err != nil {
			return nil, handleError(err)
		}
		cycle, err := cycleParam(e, input.Cycle)
		if err != nil {
			return nil, handleError(err)
		}
		cards, err := e.TeamScores(ctx, cycle)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []engine.Scorecard `json:"body"`
		}{Body: nonNilSlice(cards)}, nil
	})
}

func registerPayouts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "sync-payouts",
		Method:      http.MethodPost,
		Path:        "/payouts/sync",
		Summary:     "Snapshot payouts for a cycle",
		Description: "Recomputes and upserts one snapshot per active user. Defaults to the current cycle.",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body *SyncPayoutsRequest `json:"body" required:"false"`
	}) (*struct {
		Body []domain.PayoutSnapshot `json:"body"`
	}, error) {
		actorID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		label := ""
		if input.Body != nil {
			label = input.Body.Cycle
		}
		cycle, err := cycleParam(e, label)
		if err != nil {
			return nil, handleError(err)
		}
		snaps, err := e.SyncPayoutSnapshots(ctx, actorID, cycle)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.PayoutSnapshot `json:"body"`
		}{Body: nonNilSlice(snaps)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-payouts",
		Method:      http.MethodGet,
		Path:        "/payouts",
		Summary:     "List payout snapshots for a cycle",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Cycle string `query:"cycle" example:"2024-05"`
	}) (*struct {
		Body []domain.PayoutSnapshot `json:"body"`
	}, error) {
		if _, err := requireAdmin(ctx, e); err != nil {
			return nil, handleError(err)
		}
		cycle, err := cycleParam(e, input.Cycle)
		if err != nil {
			return nil, handleError(err)
		}
		snaps, err := e.ListPayoutSnapshots(ctx, cycle)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.PayoutSnapshot `json:"body"`
		}{Body: nonNilSlice(snaps)}, nil
	})
}
