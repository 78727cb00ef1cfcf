package timeclocksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Timeclock HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		APIKey:   apiKey,
		Timeout:  10 * time.Second,
	}
}

// Session represents the API session model.
type Session struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	TotalDuration  int64      `json:"total_duration"`
	TotalBreakTime int64      `json:"total_break_time"`
	Status         string     `json:"status"`
	ProjectID      *string    `json:"project_id,omitempty"`
}

type Segment struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	ProjectID *string    `json:"project_id,omitempty"`
	BreakID   *string    `json:"break_id,omitempty"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Duration  int64      `json:"duration"`
}

type Break struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id"`
	Type      string     `json:"type"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Duration  int64      `json:"duration"`
}

// Timeline is a session with its segments and breaks.
type Timeline struct {
	Session      Session   `json:"session"`
	Segments     []Segment `json:"segments"`
	Breaks       []Break   `json:"breaks"`
	ElapsedWork  int64     `json:"elapsed_work"`
	ElapsedBreak int64     `json:"elapsed_break"`
}

// Task represents the API task model (partial).
type Task struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Status       string   `json:"status"`
	AssignedToID *string  `json:"assigned_to_id,omitempty"`
	Score        *int     `json:"score,omitempty"`
	PRLinks      []string `json:"pr_links,omitempty"`
}

// Scorecard is a live score computation for one user and cycle.
type Scorecard struct {
	UserID              string  `json:"user_id"`
	Name                string  `json:"name"`
	WorkingDays         int     `json:"working_days"`
	MonthlyOutputScore  float64 `json:"monthly_output_score"`
	AvailabilityScore   float64 `json:"availability_score"`
	StabilityScore      float64 `json:"stability_score"`
	BaseCompensationINR string  `json:"base_compensation_inr"`
	ExpectedPayoutINR   string  `json:"expected_payout_inr"`
	DifferenceINR       string  `json:"difference_inr"`
}

// PayoutSnapshot is a stored payout for one user and cycle.
type PayoutSnapshot struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	BillingCycleStart  time.Time `json:"billing_cycle_start"`
	BillingCycleEnd    time.Time `json:"billing_cycle_end"`
	MonthlyOutputScore float64   `json:"monthly_output_score"`
	AvailabilityScore  float64   `json:"availability_score"`
	StabilityScore     float64   `json:"stability_score"`
	ExpectedPayoutINR  string    `json:"expected_payout_inr"`
	DifferenceINR      string    `json:"difference_inr"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	UserID     string         `json:"user_id"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses. Code and Message come from the error
// envelope when the body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// StartSession clocks the caller in. projectID may be empty.
func (c *Client) StartSession(ctx context.Context, projectID string) (Session, error) {
	body := map[string]any{}
	if projectID != "" {
		body["project_id"] = projectID
	}
	var resp Session
	err := c.do(ctx, http.MethodPost, "sessions", body, &resp)
	return resp, err
}

// ActiveSession returns the caller's active timeline.
func (c *Client) ActiveSession(ctx context.Context) (Timeline, error) {
	var resp Timeline
	err := c.do(ctx, http.MethodGet, "sessions/active", nil, &resp)
	return resp, err
}

func (c *Client) EndSession(ctx context.Context, sessionID string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("sessions/%s/end", url.PathEscape(sessionID)), nil, &resp)
	return resp, err
}

// SwitchProject moves the session onto projectID; an empty id clears the project.
func (c *Client) SwitchProject(ctx context.Context, sessionID, projectID string) (Session, error) {
	body := map[string]any{"project_id": nil}
	if projectID != "" {
		body["project_id"] = projectID
	}
	var resp Session
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("sessions/%s/switch-project", url.PathEscape(sessionID)), body, &resp)
	return resp, err
}

func (c *Client) StartBreak(ctx context.Context, sessionID, breakType string) (Break, error) {
	var resp Break
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("sessions/%s/breaks", url.PathEscape(sessionID)), map[string]any{"type": breakType}, &resp)
	return resp, err
}

func (c *Client) EndBreak(ctx context.Context, breakID string) (Break, error) {
	var resp Break
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("breaks/%s/end", url.PathEscape(breakID)), nil, &resp)
	return resp, err
}

// CompleteTask completes a task assigned to the caller.
func (c *Client) CompleteTask(ctx context.Context, taskID string, partial bool, prLinks []string) (Task, error) {
	body := map[string]any{"partial": partial}
	if len(prLinks) > 0 {
		body["pr_links"] = prLinks
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("tasks/%s/complete", url.PathEscape(taskID)), body, &resp)
	return resp, err
}

// UserScores returns live scores; cycle is "YYYY-MM" or empty for the current cycle.
func (c *Client) UserScores(ctx context.Context, userID, cycle string) (Scorecard, error) {
	endpoint := fmt.Sprintf("users/%s/scores", url.PathEscape(userID))
	if cycle != "" {
		endpoint += "?cycle=" + url.QueryEscape(cycle)
	}
	var resp Scorecard
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// SyncPayouts snapshots payouts for every active user. Admin only.
func (c *Client) SyncPayouts(ctx context.Context, cycle string) ([]PayoutSnapshot, error) {
	body := map[string]any{}
	if cycle != "" {
		body["cycle"] = cycle
	}
	var resp []PayoutSnapshot
	err := c.do(ctx, http.MethodPost, "payouts/sync", body, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
