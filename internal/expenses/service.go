package expenses

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/niaga-erp/niaga/internal/shared"
)

// RepositoryPort abstracts transaction storage.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
	ListTransactions(ctx context.Context, filter ListFilter) ([]Transaction, error)
	SumByCategory(ctx context.Context, filter ListFilter) ([]CategoryTotal, error)
}

// TxRepository exposes transactional writes.
type TxRepository interface {
	InsertTransaction(ctx context.Context, t Transaction) (int64, error)
	InsertItem(ctx context.Context, it Item) (int64, error)
	DeleteTransaction(ctx context.Context, id int64) (Transaction, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator drops cached reports derived from transactions.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service records income and expense transactions.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	cache  Invalidator
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service. audit and cache may be nil.
func NewService(repo RepositoryPort, audit AuditPort, cache Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, cache: cache, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// CreateTransaction records a transaction and its optional line items.
func (s *Service) CreateTransaction(ctx context.Context, input CreateTransactionInput) (Transaction, error) {
	if !input.Type.IsValid() {
		return Transaction{}, shared.ValidationError("Transaction type must be EXPENSE or INCOME")
	}
	category := strings.TrimSpace(input.Category)
	if category == "" {
		return Transaction{}, shared.ValidationError("Category is required")
	}
	now := s.now()
	date, err := shared.ParseDate(input.Date, now)
	if err != nil {
		return Transaction{}, err
	}
	t := Transaction{
		Number:      shared.DocumentNumber(numberPrefix(input.Type), now),
		Type:        input.Type,
		Date:        date,
		Category:    category,
		Description: strings.TrimSpace(input.Description),
		Amount:      input.Amount,
		CreatedBy:   input.ActorID,
		CreatedAt:   now,
	}
	if len(input.Items) > 0 {
		sum := decimal.Zero
		for i, in := range input.Items {
			if in.Quantity <= 0 {
				return Transaction{}, shared.ValidationError("Item %d: quantity must be greater than zero", i+1)
			}
			if !in.UnitPrice.IsPositive() {
				return Transaction{}, shared.ValidationError("Item %d: unit price must be greater than zero", i+1)
			}
			line := in.UnitPrice.Mul(decimal.NewFromInt(in.Quantity))
			sum = sum.Add(line)
			t.Items = append(t.Items, Item{Description: strings.TrimSpace(in.Description), Quantity: in.Quantity, UnitPrice: in.UnitPrice, Amount: line})
		}
		if !t.Amount.IsZero() && !t.Amount.Equal(sum) {
			return Transaction{}, shared.ValidationError("Amount %s does not match the item total %s", t.Amount.StringFixed(2), sum.StringFixed(2))
		}
		t.Amount = sum
	}
	if !t.Amount.IsPositive() {
		return Transaction{}, shared.ValidationError("Amount must be greater than zero")
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertTransaction(ctx, t)
		if err != nil {
			return err
		}
		t.ID = id
		for i := range t.Items {
			t.Items[i].TransactionID = id
			if t.Items[i].ID, err = tx.InsertItem(ctx, t.Items[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	s.changed(ctx, input.ActorID, "expenses:create", t)
	return t, nil
}

// DeleteTransaction removes a transaction and its items.
func (s *Service) DeleteTransaction(ctx context.Context, id, actorID int64) error {
	var t Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		t, err = tx.DeleteTransaction(ctx, id)
		return err
	})
	if err != nil {
		return err
	}
	s.changed(ctx, actorID, "expenses:delete", t)
	return nil
}

// GetTransaction returns one transaction with its items.
func (s *Service) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// ListTransactions lists transactions newest first.
func (s *Service) ListTransactions(ctx context.Context, filter ListFilter) ([]Transaction, error) {
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, shared.ValidationError("Unknown transaction type %q", string(filter.Type))
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, shared.ValidationError("End date must not be before start date")
	}
	return s.repo.ListTransactions(ctx, filter)
}

// SumExpenses totals EXPENSE transactions dated inside window.
func (s *Service) SumExpenses(ctx context.Context, window shared.DateRange) (Summary, error) {
	rows, err := s.repo.SumByCategory(ctx, ListFilter{Type: TypeExpense, From: window.Start, To: window.End})
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Total: decimal.Zero, ByCategory: rows}
	for _, c := range rows {
		summary.Total = summary.Total.Add(c.Total)
	}
	return summary, nil
}

func numberPrefix(t Type) string {
	if t == TypeIncome {
		return "INC"
	}
	return "EXP"
}

func (s *Service) changed(ctx context.Context, actorID int64, action string, t Transaction) {
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("expenses cache bump", slog.Any("error", err))
		}
	}
	s.logger.Info("transaction", slog.String("action", action), slog.String("number", t.Number), slog.String("amount", t.Amount.String()))
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "transaction",
		EntityID: strconv.FormatInt(t.ID, 10),
		Meta:     map[string]any{"type": string(t.Type), "category": t.Category, "amount": t.Amount.String()},
	}); err != nil {
		s.logger.Warn("expenses audit", slog.String("action", action), slog.Any("error", err))
	}
}
