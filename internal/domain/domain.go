package domain

import "time"

type SessionStatus string

const (
	SessionActive     SessionStatus = "ACTIVE"
	SessionCompleted  SessionStatus = "COMPLETED"
	SessionTerminated SessionStatus = "TERMINATED"
)

type SegmentType string

const (
	SegmentWork  SegmentType = "WORK"
	SegmentBreak SegmentType = "BREAK"
)

type BreakType string

const (
	BreakShort  BreakType = "SHORT"
	BreakLunch  BreakType = "LUNCH"
	BreakOther  BreakType = "OTHER"
	BreakPrayer BreakType = "PRAYER"
)

func (t BreakType) Valid() bool {
	switch t {
	case BreakShort, BreakLunch, BreakOther, BreakPrayer:
		return true
	}
	return false
}

type TaskStatus string

const (
	TaskTodo               TaskStatus = "TODO"
	TaskInProgress         TaskStatus = "IN_PROGRESS"
	TaskCompleted          TaskStatus = "COMPLETED"
	TaskPartiallyCompleted TaskStatus = "PARTIALLY_COMPLETED"
)

// Finished reports whether the status counts as a completion for scoring.
func (s TaskStatus) Finished() bool {
	return s == TaskCompleted || s == TaskPartiallyCompleted
}

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

type User struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	Role                Role      `json:"role" enum:"admin,member"`
	BaseCompensationINR string    `json:"base_compensation_inr"`
	Archived            bool      `json:"archived"`
	CreatedAt           time.Time `json:"created_at"`
}

type Session struct {
	ID             string        `json:"id"`
	UserID         string        `json:"user_id"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        *time.Time    `json:"end_time,omitempty"`
	TotalDuration  int64         `json:"total_duration"`
	TotalBreakTime int64         `json:"total_break_time"`
	Status         SessionStatus `json:"status" enum:"ACTIVE,COMPLETED,TERMINATED"`
	ProjectID      *string       `json:"project_id,omitempty"`
}

type Segment struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	Type      SegmentType `json:"type" enum:"WORK,BREAK"`
	ProjectID *string     `json:"project_id,omitempty"`
	BreakID   *string     `json:"break_id,omitempty"`
	StartTime time.Time   `json:"start_time"`
	EndTime   *time.Time  `json:"end_time,omitempty"`
	Duration  int64       `json:"duration"`
}

func (s Segment) Open() bool { return s.EndTime == nil }

type Break struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	SessionID string     `json:"session_id"`
	Type      BreakType  `json:"type" enum:"SHORT,LUNCH,OTHER,PRAYER"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Duration  int64      `json:"duration"`
}

// Timeline is a session together with everything hanging off it.
type Timeline struct {
	Session  Session   `json:"session"`
	Segments []Segment `json:"segments"`
	Breaks   []Break   `json:"breaks"`
	// Elapsed totals include the open segment up to the time the timeline was read.
	ElapsedWork  int64 `json:"elapsed_work"`
	ElapsedBreak int64 `json:"elapsed_break"`
}

type Task struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	ProjectID          *string    `json:"project_id,omitempty"`
	AssignedToID       *string    `json:"assigned_to_id,omitempty"`
	CreatedByID        string     `json:"created_by_id"`
	Status             TaskStatus `json:"status" enum:"TODO,IN_PROGRESS,COMPLETED,PARTIALLY_COMPLETED"`
	Score              *int       `json:"score,omitempty"`
	PRLinks            []string   `json:"pr_links,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	CompletedDate      *time.Time `json:"completed_date,omitempty"`
	CompletedSessionID *string    `json:"completed_session_id,omitempty"`
	// CompletedSessionStart is joined from the linked session, never stored on the task.
	CompletedSessionStart *time.Time `json:"completed_session_start,omitempty"`
	ApprovedByID          *string    `json:"approved_by_id,omitempty"`
	ApprovedAt            *time.Time `json:"approved_at,omitempty"`
}

type WorkExceptionType string

const (
	FullDayLeave        WorkExceptionType = "FULL_DAY_LEAVE"
	HalfDayLeave        WorkExceptionType = "HALF_DAY_LEAVE"
	LateArrival         WorkExceptionType = "LATE_ARRIVAL"
	EarlyExit           WorkExceptionType = "EARLY_EXIT"
	WorkFromHome        WorkExceptionType = "WORK_FROM_HOME"
	SickLeave           WorkExceptionType = "SICK_LEAVE"
	EmergencyLeave      WorkExceptionType = "EMERGENCY_LEAVE"
	UnauthorizedAbsence WorkExceptionType = "UNAUTHORIZED_ABSENCE"
)

func (t WorkExceptionType) Valid() bool {
	switch t {
	case FullDayLeave, HalfDayLeave, LateArrival, EarlyExit, WorkFromHome, SickLeave, EmergencyLeave, UnauthorizedAbsence:
		return true
	}
	return false
}

type WorkException struct {
	ID                 string            `json:"id"`
	UserID             string            `json:"user_id"`
	Type               WorkExceptionType `json:"type"`
	Date               time.Time         `json:"date"`
	ScheduledTimeEpoch *int64            `json:"scheduled_time_epoch,omitempty"`
	ActualTimeEpoch    *int64            `json:"actual_time_epoch,omitempty"`
	Reason             string            `json:"reason,omitempty"`
	Notes              string            `json:"notes,omitempty"`
	CompensationDate   *time.Time        `json:"compensation_date,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}

type IncidentType string

const (
	ProductionBug         IncidentType = "PRODUCTION_BUG"
	SecurityVulnerability IncidentType = "SECURITY_VULNERABILITY"
	DataCorruption        IncidentType = "DATA_CORRUPTION"
	DeploymentFailure     IncidentType = "DEPLOYMENT_FAILURE"
	BreakingChange        IncidentType = "BREAKING_CHANGE"
	HotfixRequired        IncidentType = "HOTFIX_REQUIRED"
	Regression            IncidentType = "REGRESSION"
	PerformanceIssue      IncidentType = "PERFORMANCE_ISSUE"
	TestFailure           IncidentType = "TEST_FAILURE"
	CodeQualityIssue      IncidentType = "CODE_QUALITY_ISSUE"
)

func (t IncidentType) Valid() bool {
	switch t {
	case ProductionBug, SecurityVulnerability, DataCorruption, DeploymentFailure, BreakingChange,
		HotfixRequired, Regression, PerformanceIssue, TestFailure, CodeQualityIssue:
		return true
	}
	return false
}

type Severity string

const (
	SeverityCritical   Severity = "CRITICAL"
	SeverityHigh       Severity = "HIGH"
	SeverityMedium     Severity = "MEDIUM"
	SeverityLow        Severity = "LOW"
	SeverityNegligible Severity = "NEGLIGIBLE"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityNegligible:
		return true
	}
	return false
}

type StabilityIncident struct {
	ID               string       `json:"id"`
	UserID           string       `json:"user_id"`
	Type             IncidentType `json:"type"`
	Severity         Severity     `json:"severity"`
	Title            string       `json:"title,omitempty"`
	IncidentDate     int64        `json:"incident_date"`
	ResolvedAt       *int64       `json:"resolved_at,omitempty"`
	TaskID           *string      `json:"task_id,omitempty"`
	ResolutionTaskID *string      `json:"resolution_task_id,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
}

type PayoutSnapshot struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"user_id"`
	BillingCycleStart   time.Time `json:"billing_cycle_start"`
	BillingCycleEnd     time.Time `json:"billing_cycle_end"`
	MonthlyOutputScore  float64   `json:"monthly_output_score"`
	AvailabilityScore   float64   `json:"availability_score"`
	StabilityScore      float64   `json:"stability_score"`
	BaseCompensationINR string    `json:"base_compensation_inr"`
	ExpectedPayoutINR   string    `json:"expected_payout_inr"`
	DifferenceINR       string    `json:"difference_inr"`
	WorkingDaysInCycle  int       `json:"working_days_in_cycle"`
	SnapshotDate        time.Time `json:"snapshot_date"`
	SyncedByID          string    `json:"synced_by_id"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	UserID     string `json:"user_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
