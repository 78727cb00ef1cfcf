package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"timeclock/internal/domain"
	"timeclock/internal/engine"
)

type sessionPath struct {
	SessionID string `path:"session_id"`
}

var sessionErrors = []int{
	http.StatusBadRequest,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusInternalServerError,
}

func registerSessions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "start-session",
		Method:        http.MethodPost,
		Path:          "/sessions",
		Summary:       "Clock in",
		DefaultStatus: http.StatusCreated,
		Errors:        sessionErrors,
	}, func(ctx context.Context, input *struct {
		Body *StartSessionRequest `json:"body" required:"false"`
	}) (*struct {
		Body domain.Session `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var projectID *string
		if input.Body != nil {
			projectID = input.Body.ProjectID
		}
		s, err := e.StartSession(ctx, userID, projectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Session `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "active-session",
		Method:      http.MethodGet,
		Path:        "/sessions/active",
		Summary:     "Active session timeline",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.Timeline `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		tl, err := e.ActiveTimeline(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Timeline `json:"body"`
		}{Body: tl}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/sessions",
		Summary:     "List sessions",
		Description: "Sessions started within [from, to], newest first. Admins may pass user_id.",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		UserID string `query:"user_id"`
		From   string `query:"from"`
		To     string `query:"to"`
		Limit  int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.Session `json:"body"`
	}, error) {
		callerID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		userID := callerID
		if input.UserID != "" {
			if _, err := requireSelfOrAdmin(ctx, e, input.UserID); err != nil {
				return nil, handleError(err)
			}
			userID = input.UserID
		}
		from, err := parseTimeParam("from", input.From)
		if err != nil {
			return nil, handleError(err)
		}
		to, err := parseTimeParam("to", input.To)
		if err != nil {
			return nil, handleError(err)
		}
		sessions, err := e.ListSessions(ctx, userID, from, to, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Session `json:"body"`
		}{Body: nonNilSlice(sessions)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/sessions/{session_id}",
		Summary:     "Session timeline",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *sessionPath) (*struct {
		Body domain.Timeline `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		tl, err := e.SessionTimeline(ctx, userID, input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Timeline `json:"body"`
		}{Body: tl}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "end-session",
		Method:      http.MethodPost,
		Path:        "/sessions/{session_id}/end",
		Summary:     "Clock out",
		Errors:      sessionErrors,
	}, func(ctx context.Context, input *sessionPath) (*struct {
		Body domain.Session `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.EndSession(ctx, userID, input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Session `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "switch-project",
		Method:      http.MethodPost,
		Path:        "/sessions/{session_id}/switch-project",
		Summary:     "Switch project",
		Description: "Closes the open work segment and opens one on the new project. A null project_id clears it.",
		Errors:      sessionErrors,
	}, func(ctx context.Context, input *struct {
		SessionID string               `path:"session_id"`
		Body      SwitchProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Session `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.SwitchProject(ctx, userID, input.SessionID, input.Body.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Session `json:"body"`
		}{Body: s}, nil
	})
}

func registerBreaks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "start-break",
		Method:        http.MethodPost,
		Path:          "/sessions/{session_id}/breaks",
		Summary:       "Start break",
		DefaultStatus: http.StatusCreated,
		Errors:        sessionErrors,
	}, func(ctx context.Context, input *struct {
		SessionID string            `path:"session_id"`
		Body      StartBreakRequest `json:"body"`
	}) (*struct {
		Body domain.Break `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, err := e.StartBreak(ctx, userID, input.SessionID, input.Body.Type)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Break `json:"body"`
		}{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "end-break",
		Method:      http.MethodPost,
		Path:        "/breaks/{break_id}/end",
		Summary:     "End break",
		Errors:      sessionErrors,
	}, func(ctx context.Context, input *struct {
		BreakID string `path:"break_id"`
	}) (*struct {
		Body domain.Break `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, err := e.EndBreak(ctx, userID, input.BreakID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Break `json:"body"`
		}{Body: b}, nil
	})
}
