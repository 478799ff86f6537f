package targets

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/niaga-erp/niaga/internal/shared"
	"github.com/niaga-erp/niaga/internal/users"
)

// RepositoryPort abstracts target storage.
type RepositoryPort interface {
	GetTarget(ctx context.Context, id int64) (Target, error)
	ActiveExists(ctx context.Context, userID int64, t shared.PeriodType, period string, excludeID int64) (bool, error)
	InsertTarget(ctx context.Context, t Target) (int64, error)
	UpdateTarget(ctx context.Context, t Target) error
	ListTargets(ctx context.Context, filter ListFilter) ([]Target, error)
}

// SalesRepChecker validates the sales capability of a user.
type SalesRepChecker interface {
	RequireSalesRep(ctx context.Context, id int64) (users.User, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator drops cached target charts.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service manages sales targets.
type Service struct {
	repo   RepositoryPort
	reps   SalesRepChecker
	audit  AuditPort
	cache  Invalidator
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service. audit and cache may be nil.
func NewService(repo RepositoryPort, reps SalesRepChecker, audit AuditPort, cache Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, reps: reps, audit: audit, cache: cache, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// CreateTarget stores a revenue goal. Only one active target may exist per
// user, type and period.
func (s *Service) CreateTarget(ctx context.Context, input CreateTargetInput) (Target, error) {
	period := strings.TrimSpace(input.Period)
	if err := shared.ValidatePeriodFormat(period, input.Type); err != nil {
		return Target{}, err
	}
	if !input.Amount.IsPositive() {
		return Target{}, shared.ValidationError("Target amount must be greater than zero")
	}
	rep, err := s.reps.RequireSalesRep(ctx, input.UserID)
	if err != nil {
		return Target{}, err
	}
	if err := s.ensureFree(ctx, input.UserID, input.Type, period, 0); err != nil {
		return Target{}, err
	}
	now := s.now()
	t := Target{
		UserID:    rep.ID,
		UserName:  rep.Name,
		Type:      input.Type,
		Period:    period,
		Amount:    input.Amount,
		IsActive:  true,
		CreatedBy: input.ActorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.ID, err = s.repo.InsertTarget(ctx, t)
	if err != nil {
		return Target{}, duplicateOr(err, t)
	}
	s.record(ctx, input.ActorID, "targets:create", t)
	return t, nil
}

// UpdateTarget changes the amount or period of an active target.
func (s *Service) UpdateTarget(ctx context.Context, id int64, input UpdateTargetInput) (Target, error) {
	t, err := s.repo.GetTarget(ctx, id)
	if err != nil {
		return Target{}, err
	}
	if !t.IsActive {
		return Target{}, shared.ConflictError("Target %d is no longer active", id)
	}
	if input.Amount != nil {
		if !input.Amount.IsPositive() {
			return Target{}, shared.ValidationError("Target amount must be greater than zero")
		}
		t.Amount = *input.Amount
	}
	if input.Period != nil {
		period := strings.TrimSpace(*input.Period)
		if err := shared.ValidatePeriodFormat(period, t.Type); err != nil {
			return Target{}, err
		}
		if period != t.Period {
			if err := s.ensureFree(ctx, t.UserID, t.Type, period, t.ID); err != nil {
				return Target{}, err
			}
			t.Period = period
		}
	}
	t.UpdatedAt = s.now()
	if err := s.repo.UpdateTarget(ctx, t); err != nil {
		return Target{}, duplicateOr(err, t)
	}
	s.record(ctx, input.ActorID, "targets:update", t)
	return t, nil
}

// DeactivateTarget retires a target; it no longer counts toward charts.
func (s *Service) DeactivateTarget(ctx context.Context, id, actorID int64) (Target, error) {
	t, err := s.repo.GetTarget(ctx, id)
	if err != nil {
		return Target{}, err
	}
	if !t.IsActive {
		return t, nil
	}
	t.IsActive = false
	t.UpdatedAt = s.now()
	if err := s.repo.UpdateTarget(ctx, t); err != nil {
		return Target{}, err
	}
	s.record(ctx, actorID, "targets:deactivate", t)
	return t, nil
}

// ListTargets returns targets matching filter.
func (s *Service) ListTargets(ctx context.Context, filter ListFilter) ([]Target, error) {
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, shared.ValidationError("Unknown target type %q", string(filter.Type))
	}
	return s.repo.ListTargets(ctx, filter)
}

// GenerateTargetPeriod returns the current period key of type t.
func (s *Service) GenerateTargetPeriod(t shared.PeriodType) (PeriodInfo, error) {
	if !t.IsValid() {
		return PeriodInfo{}, shared.ValidationError("Unknown target type %q", string(t))
	}
	period := shared.GeneratePeriod(t, s.now())
	window, err := shared.PeriodRange(period, t)
	if err != nil {
		return PeriodInfo{}, err
	}
	return PeriodInfo{Type: t, Period: period, Range: window}, nil
}

func (s *Service) ensureFree(ctx context.Context, userID int64, t shared.PeriodType, period string, excludeID int64) error {
	exists, err := s.repo.ActiveExists(ctx, userID, t, period, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return shared.ConflictError("An active %s target for %s already exists", strings.ToLower(t.Label()), period)
	}
	return nil
}

func duplicateOr(err error, t Target) error {
	if shared.IsUniqueViolation(err) {
		return shared.ConflictError("An active %s target for %s already exists", strings.ToLower(t.Type.Label()), t.Period)
	}
	return shared.TranslateDBError(err)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, t Target) {
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("targets cache bump", slog.Any("error", err))
		}
	}
	s.logger.Info("sales target", slog.String("action", action), slog.Int64("user_id", t.UserID), slog.String("period", t.Period))
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "sales_target",
		EntityID: strconv.FormatInt(t.ID, 10),
		Meta:     map[string]any{"type": string(t.Type), "period": t.Period, "amount": t.Amount.String(), "active": t.IsActive},
	}); err != nil {
		s.logger.Warn("targets audit", slog.String("action", action), slog.Any("error", err))
	}
}
