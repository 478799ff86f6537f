package masterdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/niaga-erp/niaga/internal/shared"
)

// maxResolveAttempts bounds the find/insert loop when creators race.
const maxResolveAttempts = 3

// RepositoryPort abstracts customer and store storage.
type RepositoryPort interface {
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	FindCustomerByKey(ctx context.Context, key string) (Customer, error)
	InsertCustomer(ctx context.Context, c Customer) (Customer, bool, error)
	GetStore(ctx context.Context, id int64) (Store, error)
	FindStoreByKey(ctx context.Context, key string) (Store, error)
	InsertStore(ctx context.Context, s Store) (Store, bool, error)
}

// Service resolves free-text customer and store names to records.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Using returns a Service resolving through repo, typically one bound to the
// caller's transaction.
func (s *Service) Using(repo RepositoryPort) *Service {
	return &Service{repo: repo, logger: s.logger}
}

// ResolveCustomer returns the customer named by ref, creating it when absent.
// Names match case-insensitively, so concurrent creators converge on one row.
func (s *Service) ResolveCustomer(ctx context.Context, ref PartyRef) (Customer, error) {
	if ref.ID != 0 {
		c, err := s.repo.GetCustomer(ctx, ref.ID)
		if errors.Is(err, shared.ErrNotFound) {
			return Customer{}, shared.ValidationError("Customer %d does not exist", ref.ID)
		}
		return c, err
	}
	name := NormalizeName(ref.Name)
	if name == "" {
		return Customer{}, shared.ValidationError("Customer is required")
	}
	key := NameKey(name)
	for attempt := 0; attempt < maxResolveAttempts; attempt++ {
		existing, err := s.repo.FindCustomerByKey(ctx, key)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return Customer{}, fmt.Errorf("masterdata: find customer: %w", err)
		}
		created, inserted, err := s.repo.InsertCustomer(ctx, Customer{Name: name, Phone: ref.Phone, Address: ref.Address})
		if err != nil {
			return Customer{}, fmt.Errorf("masterdata: insert customer: %w", err)
		}
		if inserted {
			s.logger.Info("customer created", slog.Int64("customer_id", created.ID), slog.String("name", name))
			return created, nil
		}
	}
	return Customer{}, shared.ConflictError("Customer %q could not be resolved, please retry", name)
}

// ResolveStore returns the store named by ref, creating it when absent.
func (s *Service) ResolveStore(ctx context.Context, ref PartyRef) (Store, error) {
	if ref.ID != 0 {
		st, err := s.repo.GetStore(ctx, ref.ID)
		if errors.Is(err, shared.ErrNotFound) {
			return Store{}, shared.ValidationError("Store %d does not exist", ref.ID)
		}
		return st, err
	}
	name := NormalizeName(ref.Name)
	if name == "" {
		return Store{}, shared.ValidationError("Store is required")
	}
	key := NameKey(name)
	for attempt := 0; attempt < maxResolveAttempts; attempt++ {
		existing, err := s.repo.FindStoreByKey(ctx, key)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return Store{}, fmt.Errorf("masterdata: find store: %w", err)
		}
		created, inserted, err := s.repo.InsertStore(ctx, Store{Name: name, Address: ref.Address})
		if err != nil {
			return Store{}, fmt.Errorf("masterdata: insert store: %w", err)
		}
		if inserted {
			s.logger.Info("store created", slog.Int64("store_id", created.ID), slog.String("name", name))
			return created, nil
		}
	}
	return Store{}, shared.ConflictError("Store %q could not be resolved, please retry", name)
}
