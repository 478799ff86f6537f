package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/niaga-erp/niaga/internal/shared"
)

// RepositoryPort abstracts user storage.
type RepositoryPort interface {
	GetUser(ctx context.Context, id int64) (User, error)
	ListByRole(ctx context.Context, role shared.Role) ([]User, error)
}

// Service answers role-capability questions for other modules.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// RequireSalesRep returns the user when it exists, is active and holds the
// sales capability.
func (s *Service) RequireSalesRep(ctx context.Context, id int64) (User, error) {
	if id == 0 {
		return User{}, shared.ValidationError("Sales representative is required")
	}
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return User{}, shared.ValidationError("Sales representative %d does not exist", id)
		}
		return User{}, fmt.Errorf("users: load %d: %w", id, err)
	}
	if !u.IsActive || !u.Role.CanSell() {
		return User{}, shared.ValidationError("User %s is not an active sales representative", u.Name)
	}
	return u, nil
}

// SalesRepIDs lists the ids of every active user with the sales capability.
func (s *Service) SalesRepIDs(ctx context.Context) ([]int64, error) {
	reps, err := s.repo.ListByRole(ctx, shared.RoleSales)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(reps))
	for _, u := range reps {
		ids = append(ids, u.ID)
	}
	return ids, nil
}
