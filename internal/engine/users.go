package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"timeclock/internal/domain"
	"timeclock/internal/events"
	"timeclock/internal/repo"
)

type UserCreateOptions struct {
	Name                string
	Email               string
	Role                domain.Role
	BaseCompensationINR string
}

// CreateUser adds a user. Only admins may create users, except for the very
// first user, who is always created as admin.
func (e Engine) CreateUser(ctx context.Context, actorID string, opts UserCreateOptions) (domain.User, error) {
	opts.Name = strings.TrimSpace(opts.Name)
	opts.Email = strings.ToLower(strings.TrimSpace(opts.Email))
	if opts.Name == "" {
		return domain.User{}, ValidationError{Field: "name", Message: "is required"}
	}
	if _, err := mail.ParseAddress(opts.Email); err != nil {
		return domain.User{}, ValidationError{Field: "email", Message: "must be a valid address"}
	}
	if opts.Role == "" {
		opts.Role = domain.RoleMember
	}
	if opts.Role != domain.RoleAdmin && opts.Role != domain.RoleMember {
		return domain.User{}, ValidationError{Field: "role", Message: "must be admin or member"}
	}
	if opts.BaseCompensationINR == "" {
		opts.BaseCompensationINR = "0"
	}
	base, err := decimal.NewFromString(opts.BaseCompensationINR)
	if err != nil || base.IsNegative() {
		return domain.User{}, ValidationError{Field: "base_compensation_inr", Message: "must be a non-negative amount"}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	count, err := e.Repo.CountUsers(ctx, tx)
	if err != nil {
		return domain.User{}, err
	}
	if count == 0 {
		opts.Role = domain.RoleAdmin
	} else if err := e.Auth.RequireRole(ctx, tx, actorID, domain.RoleAdmin); err != nil {
		return domain.User{}, err
	}
	u := domain.User{
		ID:                  uuid.NewString(),
		Name:                opts.Name,
		Email:               opts.Email,
		Role:                opts.Role,
		BaseCompensationINR: base.StringFixed(2),
		CreatedAt:           e.now(),
	}
	if actorID == "" {
		actorID = u.ID
	}
	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, ConflictError{Reason: fmt.Sprintf("email %s already registered", u.Email)}
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "user.create", u.ID, "user", u.ID, actorID, events.EventPayload{"role": u.Role}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (e Engine) GetUser(ctx context.Context, id string) (domain.User, error) {
	u, err := e.Repo.GetUser(ctx, e.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return u, NotFoundError{Kind: "user", ID: id}
	}
	return u, err
}

func (e Engine) ListUsers(ctx context.Context, includeArchived bool) ([]domain.User, error) {
	return e.Repo.ListUsers(ctx, e.DB, includeArchived)
}

// ArchiveUser removes a user from payout syncs and team views. Their history stays.
func (e Engine) ArchiveUser(ctx context.Context, actorID, userID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Auth.RequireRole(ctx, tx, actorID, domain.RoleAdmin); err != nil {
		return err
	}
	if err := e.Repo.ArchiveUser(ctx, tx, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError{Kind: "user", ID: userID}
		}
		return err
	}
	if err := e.Events.Append(ctx, tx, "user.archive", userID, "user", userID, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateAPIKey issues a key for userID. The plaintext is returned once; only
// its hash is stored. Users may issue keys for themselves, admins for anyone.
func (e Engine) CreateAPIKey(ctx context.Context, actorID, userID, name string) (domain.APIKey, string, error) {
	if err := requireUser(userID); err != nil {
		return domain.APIKey{}, "", err
	}
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return domain.APIKey{}, "", err
	}
	plain := "tc_" + hex.EncodeToString(raw)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	defer tx.Rollback()
	if actorID != userID {
		if err := e.Auth.RequireRole(ctx, tx, actorID, domain.RoleAdmin); err != nil {
			return domain.APIKey{}, "", err
		}
	}
	if _, err := e.Repo.GetUser(ctx, tx, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.APIKey{}, "", NotFoundError{Kind: "user", ID: userID}
		}
		return domain.APIKey{}, "", err
	}
	key := domain.APIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: repo.FormatTime(e.now()),
	}
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("insert api key: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "api_key.create", userID, "api_key", key.ID, actorID, events.EventPayload{"name": key.Name}); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plain, nil
}
