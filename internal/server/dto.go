package server

import (
	"encoding/json"
	"time"

	"timeclock/internal/billing"
	"timeclock/internal/domain"
)

type DevLoginRequest struct {
	UserID string `json:"user_id" minLength:"1"`
}

type DevLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type WhoAmIResponse struct {
	User   domain.User `json:"user"`
	Source string      `json:"source" enum:"jwt,api_key,legacy_header"`
}

type CreateUserRequest struct {
	Name                string      `json:"name" minLength:"1"`
	Email               string      `json:"email" format:"email"`
	Role                domain.Role `json:"role,omitempty" enum:"admin,member"`
	BaseCompensationINR string      `json:"base_compensation_inr,omitempty" example:"85000.00"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	// Key is only ever returned on creation.
	Key string `json:"key"`
}

type StartSessionRequest struct {
	ProjectID *string `json:"project_id,omitempty"`
}

type SwitchProjectRequest struct {
	ProjectID *string `json:"project_id,omitempty"`
}

type StartBreakRequest struct {
	Type domain.BreakType `json:"type" enum:"SHORT,LUNCH,OTHER,PRAYER"`
}

type CreateTaskRequest struct {
	Title        string `json:"title" minLength:"1"`
	Description  string `json:"description,omitempty"`
	ProjectID    string `json:"project_id,omitempty"`
	AssignedToID string `json:"assigned_to_id,omitempty"`
}

type CompleteTaskRequest struct {
	Partial bool     `json:"partial,omitempty"`
	PRLinks []string `json:"pr_links,omitempty"`
}

type RateTaskRequest struct {
	Score int `json:"score" minimum:"0" maximum:"200"`
}

type WorkExceptionRequest struct {
	Type               domain.WorkExceptionType `json:"type" enum:"FULL_DAY_LEAVE,HALF_DAY_LEAVE,LATE_ARRIVAL,EARLY_EXIT,WORK_FROM_HOME,SICK_LEAVE,EMERGENCY_LEAVE,UNAUTHORIZED_ABSENCE"`
	Date               string                   `json:"date" example:"2024-05-21"`
	ScheduledTimeEpoch *int64                   `json:"scheduled_time_epoch,omitempty"`
	ActualTimeEpoch    *int64                   `json:"actual_time_epoch,omitempty"`
	Reason             string                   `json:"reason,omitempty"`
	Notes              string                   `json:"notes,omitempty"`
	CompensationDate   string                   `json:"compensation_date,omitempty"`
}

type StabilityIncidentRequest struct {
	Type             domain.IncidentType `json:"type" enum:"PRODUCTION_BUG,SECURITY_VULNERABILITY,DATA_CORRUPTION,DEPLOYMENT_FAILURE,BREAKING_CHANGE,HOTFIX_REQUIRED,REGRESSION,PERFORMANCE_ISSUE,TEST_FAILURE,CODE_QUALITY_ISSUE"`
	Severity         domain.Severity     `json:"severity" enum:"CRITICAL,HIGH,MEDIUM,LOW,NEGLIGIBLE"`
	Title            string              `json:"title,omitempty"`
	IncidentDate     string              `json:"incident_date" example:"2024-05-21T10:00:00Z"`
	ResolvedAt       string              `json:"resolved_at,omitempty"`
	TaskID           string              `json:"task_id,omitempty"`
	ResolutionTaskID string              `json:"resolution_task_id,omitempty"`
}

type SyncPayoutsRequest struct {
	Cycle string `json:"cycle,omitempty" example:"2024-05"`
}

type CycleResponse struct {
	Label       string    `json:"label" example:"2024-05"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	WorkingDays int       `json:"working_days"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	UserID     string         `json:"user_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func cycleResponse(c billing.Cycle) CycleResponse {
	return CycleResponse{
		Label:       c.Label(),
		StartDate:   c.Start,
		EndDate:     c.End,
		WorkingDays: c.WorkingDays(),
	}
}

func apiKeyResponse(k domain.APIKey, plain string) APIKeyResponse {
	return APIKeyResponse{
		ID:        k.ID,
		UserID:    k.UserID,
		Name:      k.Name,
		CreatedAt: k.CreatedAt,
		Key:       plain,
	}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		UserID:     e.UserID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return map[string]any{"raw": raw}
	}
	return out
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
