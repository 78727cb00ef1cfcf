package auth

import (
	"context"
	"errors"
	"fmt"

	"timeclock/internal/domain"
	"timeclock/internal/repo"
)

// ForbiddenError indicates a missing role.
type ForbiddenError struct {
	Role domain.Role
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("role %s required", e.Role)
}

// Service answers role questions from the users table.
type Service struct {
	Repo repo.Repo
}

func (s Service) UserHasRole(ctx context.Context, q repo.Querier, userID string, role domain.Role) (bool, error) {
	got, err := s.Repo.UserRole(ctx, q, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return got == role, nil
}

// RequireRole returns ForbiddenError unless userID is an active user with role.
func (s Service) RequireRole(ctx context.Context, q repo.Querier, userID string, role domain.Role) error {
	ok, err := s.UserHasRole(ctx, q, userID, role)
	if err != nil {
		return err
	}
	if !ok {
		return ForbiddenError{Role: role}
	}
	return nil
}
