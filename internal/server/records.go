package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"timeclock/internal/domain"
	"timeclock/internal/engine"
)

var recordErrors = []int{
	http.StatusBadRequest,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusInternalServerError,
}

func registerRecords(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "record-work-exception",
		Method:        http.MethodPost,
		Path:          "/users/{user_id}/work-exceptions",
		Summary:       "Record work exception",
		DefaultStatus: http.StatusCreated,
		Errors:        recordErrors,
	}, func(ctx context.Context, input *struct {
		UserID string               `path:"user_id"`
		Body   WorkExceptionRequest `json:"body"`
	}) (*struct {
		Body domain.WorkException `json:"body"`
	}, error) {
		actorID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		date, err := requiredTimeParam("date", input.Body.Date)
		if err != nil {
			return nil, handleError(err)
		}
		compensation, err := parseTimeParam("compensation_date", input.Body.CompensationDate)
		if err != nil {
			return nil, handleError(err)
		}
		w, err := e.RecordWorkException(ctx, engine.WorkExceptionOptions{
			UserID:             input.UserID,
			Type:               input.Body.Type,
			Date:               date,
			ScheduledTimeEpoch: input.Body.ScheduledTimeEpoch,
			ActualTimeEpoch:    input.Body.ActualTimeEpoch,
			Reason:             input.Body.Reason,
			Notes:              input.Body.Notes,
			CompensationDate:   compensation,
			ActorID:            actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkException `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-work-exceptions",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}/work-exceptions",
		Summary:     "List work exceptions in a billing cycle",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		UserID string `path:"user_id"`
		Cycle  string `query:"cycle" example:"2024-05"`
	}) (*struct {
		Body []domain.WorkException `json:"body"`
	}, error) {
		if _, err := requireSelfOrAdmin(ctx, e, input.UserID); err != nil {
			return nil, handleError(err)
		}
		cycle, err := cycleParam(e, input.Cycle)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListWorkExceptions(ctx, input.UserID, cycle.Start, cycle.End)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.WorkException `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "record-stability-incident",
		Method:        http.MethodPost,
		Path:          "/users/{user_id}/stability-incidents",
		Summary:       "Record stability incident",
		DefaultStatus: http.StatusCreated,
		Errors:        recordErrors,
	}, func(ctx context.Context, input *struct {
		UserID string                   `path:"user_id"`
		Body   StabilityIncidentRequest `json:"body"`
	}) (*struct {
		Body domain.StabilityIncident `json:"body"`
	}, error) {
		actorID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		incidentDate, err := requiredTimeParam("incident_date", input.Body.IncidentDate)
		if err != nil {
			return nil, handleError(err)
		}
		resolvedAt, err := parseTimeParam("resolved_at", input.Body.ResolvedAt)
		if err != nil {
			return nil, handleError(err)
		}
		in, err := e.RecordStabilityIncident(ctx, engine.StabilityIncidentOptions{
			UserID:           input.UserID,
			Type:             input.Body.Type,
			Severity:         input.Body.Severity,
			Title:            input.Body.Title,
			IncidentDate:     incidentDate,
			ResolvedAt:       resolvedAt,
			TaskID:           input.Body.TaskID,
			ResolutionTaskID: input.Body.ResolutionTaskID,
			ActorID:          actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.StabilityIncident `json:"body"`
		}{Body: in}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-stability-incidents",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}/stability-incidents",
		Summary:     "List stability incidents in a billing cycle",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		UserID string `path:"user_id"`
		Cycle  string `query:"cycle" example:"2024-05"`
	}) (*struct {
		Body []domain.StabilityIncident `json:"body"`
	}, error) {
		if _, err := requireSelfOrAdmin(ctx, e, input.UserID); err != nil {
			return nil, handleError(err)
		}
		cycle, err := cycleParam(e, input.Cycle)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListStabilityIncidents(ctx, input.UserID, cycle.Start, cycle.End)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.StabilityIncident `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})
}
