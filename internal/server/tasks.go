package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"timeclock/internal/domain"
	"timeclock/internal/engine"
	"timeclock/internal/repo"
)

type taskPath struct {
	TaskID string `path:"task_id"`
}

var taskErrors = []int{
	http.StatusBadRequest,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusInternalServerError,
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        taskErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		actorID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			Title:        input.Body.Title,
			Description:  input.Body.Description,
			ProjectID:    input.Body.ProjectID,
			AssignedToID: input.Body.AssignedToID,
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
		Description: "Members only see tasks assigned to them.",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		AssigneeID string `query:"assignee_id"`
		Status     string `query:"status" enum:"TODO,IN_PROGRESS,COMPLETED,PARTIALLY_COMPLETED"`
		ProjectID  string `query:"project_id"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		callerID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		admin, err := isAdmin(ctx, e, callerID)
		if err != nil {
			return nil, handleError(err)
		}
		filters := repo.TaskFilters{
			AssigneeID: input.AssigneeID,
			Status:     input.Status,
			ProjectID:  input.ProjectID,
			Limit:      normalizeLimit(input.Limit),
		}
		if !admin {
			filters.AssigneeID = callerID
		}
		tasks, err := e.ListTasks(ctx, filters)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: nonNilSlice(tasks)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		callerID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		assigned := t.AssignedToID != nil && *t.AssignedToID == callerID
		if !assigned && t.CreatedByID != callerID {
			admin, err := isAdmin(ctx, e, callerID)
			if err != nil {
				return nil, handleError(err)
			}
			if !admin {
				return nil, handleError(engine.NotFoundError{Kind: "task", ID: input.TaskID})
			}
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/complete",
		Summary:     "Complete task",
		Description: "Marks an assigned task COMPLETED, or PARTIALLY_COMPLETED when partial is set.",
		Errors:      taskErrors,
	}, func(ctx context.Context, input *struct {
		TaskID string              `path:"task_id"`
		Body   *CompleteTaskRequest `json:"body" required:"false"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var req CompleteTaskRequest
		if input.Body != nil {
			req = *input.Body
		}
		t, err := e.CompleteTask(ctx, userID, input.TaskID, req.Partial, req.PRLinks)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rate-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/rate",
		Summary:     "Rate task",
		Errors:      taskErrors,
	}, func(ctx context.Context, input *struct {
		TaskID string          `path:"task_id"`
		Body   RateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		actorID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.RateTask(ctx, actorID, input.TaskID, input.Body.Score)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/approve",
		Summary:     "Approve task",
		Errors:      taskErrors,
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		actorID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.ApproveTask(ctx, actorID, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})
}
