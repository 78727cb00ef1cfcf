package engine

import (
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"timeclock/internal/config"
	"timeclock/internal/engine/auth"
	"timeclock/internal/events"
	"timeclock/internal/notify"
	"timeclock/internal/repo"
	"timeclock/internal/scoring"
)

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Auth     auth.Service
	Config   *config.Config
	Notifier notify.Sink
	Logger   *log.Logger
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:       db,
		Repo:     r,
		Events:   events.Writer{Now: time.Now},
		Auth:     auth.Service{Repo: r},
		Config:   cfg,
		Notifier: notify.Discard,
		Logger:   log.Default(),
		Now:      time.Now,
	}
}

// now is the engine clock in UTC at the precision timestamps are stored with.
func (e Engine) now() time.Time {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	return now().UTC().Truncate(time.Millisecond)
}

func (e Engine) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

// dispatch hands notifications to the sink once their transaction committed.
// A panicking sink is logged and otherwise ignored.
func (e Engine) dispatch(ns ...notify.Notification) {
	if e.Notifier == nil {
		return
	}
	for _, n := range ns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logf("notify: sink panicked on %s: %v", n.Type, r)
				}
			}()
			e.Notifier.Notify(n)
		}()
	}
}

func (e Engine) outputVariant() scoring.OutputVariant {
	if e.Config == nil {
		return scoring.CompletedOrPartial
	}
	v, err := scoring.ParseOutputVariant(e.Config.Scoring.OutputVariant)
	if err != nil {
		return scoring.CompletedOrPartial
	}
	return v
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// staleAsConflict reports a lost conditional write as a ConflictError.
func staleAsConflict(err error, reason string) error {
	if errors.Is(err, repo.ErrStaleWrite) {
		return ConflictError{Reason: reason}
	}
	return err
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ValidationError{Field: "user_id", Message: "is required"}
	}
	return nil
}

