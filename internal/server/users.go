package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"timeclock/internal/domain"
	"timeclock/internal/engine"
)

type userPath struct {
	UserID string `path:"user_id"`
}

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Create user",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateUserRequest `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		actorID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.CreateUser(ctx, actorID, engine.UserCreateOptions{
			Name:                input.Body.Name,
			Email:               input.Body.Email,
			Role:                input.Body.Role,
			BaseCompensationINR: input.Body.BaseCompensationINR,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		IncludeArchived bool `query:"include_archived"`
	}) (*struct {
		Body []domain.User `json:"body"`
	}, error) {
		if _, err := requireAdmin(ctx, e); err != nil {
			return nil, handleError(err)
		}
		users, err := e.ListUsers(ctx, input.IncludeArchived)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.User `json:"body"`
		}{Body: nonNilSlice(users)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}",
		Summary:     "Get user",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *userPath) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		if _, err := requireSelfOrAdmin(ctx, e, input.UserID); err != nil {
			return nil, handleError(err)
		}
		u, err := e.GetUser(ctx, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "archive-user",
		Method:      http.MethodPost,
		Path:        "/users/{user_id}/archive",
		Summary:     "Archive user",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *userPath) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		actorID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.ArchiveUser(ctx, actorID, input.UserID); err != nil {
			return nil, handleError(err)
		}
		u, err := e.GetUser(ctx, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/users/{user_id}/api-keys",
		Summary:       "Issue an API key",
		Description:   "The plaintext key is only returned by this call.",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UserID string              `path:"user_id"`
		Body   *CreateAPIKeyRequest `json:"body" required:"false"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		actorID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		name := ""
		if input.Body != nil {
			name = input.Body.Name
		}
		key, plain, err := e.CreateAPIKey(ctx, actorID, input.UserID, name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: apiKeyResponse(key, plain)}, nil
	})
}
