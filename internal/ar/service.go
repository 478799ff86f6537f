package ar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/niaga-erp/niaga/internal/shared"
)

// RepositoryPort defines data access methods for receivables.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error)
	ListOpenReceivables(ctx context.Context) ([]Invoice, error)
	ListPreparationCandidates(ctx context.Context) ([]Invoice, error)
	ListInvoiceIDs(ctx context.Context) ([]int64, error)
	ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]int64, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error)
}

// TxRepository is the transactional view used by mutations.
type TxRepository interface {
	GetOrderSnapshot(ctx context.Context, orderID int64) (OrderSnapshot, error)
	PurchaseOrderIDForOrder(ctx context.Context, orderID int64) (int64, error)
	InvoiceIDForOrder(ctx context.Context, orderID int64) (int64, bool, error)
	InsertInvoice(ctx context.Context, inv Invoice) (int64, error)
	InsertInvoiceItem(ctx context.Context, item InvoiceItem) (int64, error)
	GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error)
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	GetPayment(ctx context.Context, id int64) (Payment, error)
	DeletePayment(ctx context.Context, id int64) error
	SumPayments(ctx context.Context, invoiceID int64) (decimal.Decimal, error)
	UpdateInvoiceState(ctx context.Context, inv Invoice) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards against double-submitted payments.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Invalidator drops cached reports derived from invoices.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service handles receivables business logic.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
	cache       Invalidator
	policy      PreparationPolicy
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service instance. audit, idem and cache may be nil.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, cache Invalidator, policy PreparationPolicy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.MinPaymentStatus == "" {
		policy = DefaultPreparationPolicy()
	}
	return &Service{
		repo:        repo,
		audit:       audit,
		idempotency: idem,
		cache:       cache,
		policy:      policy,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Policy returns the preparation policy in force.
func (s *Service) Policy() PreparationPolicy {
	return s.policy
}

// CreateInvoiceFromOrder bills a completed order.
func (s *Service) CreateInvoiceFromOrder(ctx context.Context, input CreateInvoiceInput) (Invoice, error) {
	if input.OrderID == 0 {
		return Invoice{}, shared.ValidationError("Order is required")
	}
	for name, v := range map[string]decimal.Decimal{"Tax": input.Tax, "Discount": input.Discount, "Shipping cost": input.ShippingCost} {
		if v.IsNegative() {
			return Invoice{}, shared.ValidationError("%s must not be negative", name)
		}
	}
	now := s.now()
	invoiceDate, err := shared.ParseDate(input.InvoiceDate, now)
	if err != nil {
		return Invoice{}, err
	}
	term := input.TermDays
	if term == 0 {
		term = 30
	}
	dueDate, err := shared.ParseDate(input.DueDate, invoiceDate.AddDate(0, 0, term))
	if err != nil {
		return Invoice{}, err
	}
	if dueDate.Before(invoiceDate) {
		return Invoice{}, shared.ValidationError("Due date must not be before the invoice date")
	}

	var inv Invoice
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderSnapshot(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status != "COMPLETED" {
			return shared.ConflictError("Order %s must be completed before it is invoiced", order.Number)
		}
		if _, exists, err := tx.InvoiceIDForOrder(ctx, order.ID); err != nil {
			return err
		} else if exists {
			return shared.ConflictError("Order %s has already been invoiced", order.Number)
		}
		poID, err := tx.PurchaseOrderIDForOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		subtotal := decimal.Zero
		for _, it := range order.Items {
			subtotal = subtotal.Add(it.LineTotal)
		}
		if input.Discount.GreaterThan(subtotal) {
			return shared.ValidationError("Discount cannot exceed the subtotal")
		}
		total := subtotal.Sub(input.Discount).Add(input.Tax).Add(input.ShippingCost)
		inv = Invoice{
			Number:            shared.DocumentNumber("INV", now),
			OrderID:           order.ID,
			PurchaseOrderID:   poID,
			CustomerID:        order.CustomerID,
			CustomerName:      order.CustomerName,
			InvoiceDate:       invoiceDate,
			DueDate:           dueDate,
			Status:            InvoiceStatusDraft,
			PreparationStatus: PreparationWaiting,
			Subtotal:          subtotal,
			Tax:               input.Tax,
			Discount:          input.Discount,
			ShippingCost:      input.ShippingCost,
			TotalAmount:       total,
			CreatedBy:         input.ActorID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		inv = applyPaid(inv, decimal.Zero, now)
		id, err := tx.InsertInvoice(ctx, inv)
		if err != nil {
			return err
		}
		inv.ID = id
		inv.Items = make([]InvoiceItem, 0, len(order.Items))
		for _, it := range order.Items {
			it.InvoiceID = id
			itemID, err := tx.InsertInvoiceItem(ctx, it)
			if err != nil {
				return err
			}
			it.ID = itemID
			inv.Items = append(inv.Items, it)
		}
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.changed(ctx, input.ActorID, "ar:invoice_create", inv, map[string]any{"order_id": inv.OrderID, "total": inv.TotalAmount.String()})
	return inv, nil
}

// SendInvoice issues a draft invoice to the customer.
func (s *Service) SendInvoice(ctx context.Context, invoiceID, actorID int64) (Invoice, error) {
	return s.mutate(ctx, invoiceID, actorID, "ar:invoice_send", func(_ context.Context, _ TxRepository, inv *Invoice) error {
		if inv.Status != InvoiceStatusDraft {
			return shared.ConflictError("Invoice %s is already %s", inv.Number, inv.Status.Label())
		}
		inv.Status = InvoiceStatusSent
		if DaysOverdue(inv.DueDate, s.now()) > 0 {
			inv.Status = InvoiceStatusOverdue
		}
		return nil
	})
}

// CancelInvoice voids an invoice that has no payments.
func (s *Service) CancelInvoice(ctx context.Context, invoiceID int64, reason string, actorID int64) (Invoice, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Invoice{}, shared.ValidationError("Cancellation reason is required")
	}
	return s.mutate(ctx, invoiceID, actorID, "ar:invoice_cancel", func(ctx context.Context, tx TxRepository, inv *Invoice) error {
		if inv.Status == InvoiceStatusCancelled {
			return shared.ConflictError("Invoice %s is already cancelled", inv.Number)
		}
		paid, err := tx.SumPayments(ctx, inv.ID)
		if err != nil {
			return err
		}
		if paid.IsPositive() {
			return shared.ConflictError("Invoice %s has payments; delete them before cancelling", inv.Number)
		}
		inv.Status = InvoiceStatusCancelled
		inv.PreparationStatus = PreparationCancelled
		inv.PreparationNotes = reason
		return nil
	})
}

// RecordPayment books a payment and re-derives the invoice state.
func (s *Service) RecordPayment(ctx context.Context, input PaymentInput) (PaymentResult, error) {
	if input.InvoiceID == 0 {
		return PaymentResult{}, shared.ValidationError("Invoice is required")
	}
	if !input.Amount.IsPositive() {
		return PaymentResult{}, shared.ValidationError("Payment amount must be greater than zero")
	}
	now := s.now()
	paymentDate, err := shared.ParseDate(input.PaymentDate, now)
	if err != nil {
		return PaymentResult{}, err
	}
	if paymentDate.After(shared.DateOf(now)) {
		return PaymentResult{}, shared.ValidationError("Payment date cannot be in the future")
	}
	key := ""
	if input.RequestKey != "" && s.idempotency != nil {
		key = "payment:" + input.RequestKey
		if err := s.idempotency.CheckAndInsert(ctx, key, "ar"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return PaymentResult{}, shared.ConflictError("This payment was already submitted")
			}
			return PaymentResult{}, err
		}
	}

	var result PaymentResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, input.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status == InvoiceStatusCancelled {
			return shared.ConflictError("Invoice %s is cancelled", inv.Number)
		}
		payment := Payment{
			InvoiceID:   inv.ID,
			PaymentDate: paymentDate,
			Amount:      input.Amount,
			Method:      input.Method,
			Reference:   strings.TrimSpace(input.Reference),
			CreatedBy:   input.ActorID,
			CreatedAt:   now,
		}
		payment.ID, err = tx.InsertPayment(ctx, payment)
		if err != nil {
			return err
		}
		paid, err := tx.SumPayments(ctx, inv.ID)
		if err != nil {
			return err
		}
		inv = applyPaid(inv, paid, now)
		inv.UpdatedAt = now
		if err := tx.UpdateInvoiceState(ctx, inv); err != nil {
			return err
		}
		result = PaymentResult{Payment: payment, Invoice: inv}
		return nil
	})
	if err != nil {
		if key != "" {
			_ = s.idempotency.Delete(ctx, key)
		}
		return PaymentResult{}, err
	}
	s.changed(ctx, input.ActorID, "ar:payment_record", result.Invoice, map[string]any{
		"payment_id":     result.Payment.ID,
		"amount":         input.Amount.String(),
		"payment_status": string(result.Invoice.PaymentStatus),
	})
	return result, nil
}

// DeletePayment removes a payment and re-derives the invoice state.
func (s *Service) DeletePayment(ctx context.Context, paymentID, actorID int64) (Invoice, error) {
	var inv Invoice
	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		payment, err = tx.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		inv, err = tx.GetInvoiceForUpdate(ctx, payment.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status == InvoiceStatusCancelled {
			return shared.ConflictError("Invoice %s is cancelled", inv.Number)
		}
		if err := tx.DeletePayment(ctx, paymentID); err != nil {
			return err
		}
		paid, err := tx.SumPayments(ctx, inv.ID)
		if err != nil {
			return err
		}
		now := s.now()
		inv = applyPaid(inv, paid, now)
		inv.UpdatedAt = now
		return tx.UpdateInvoiceState(ctx, inv)
	})
	if err != nil {
		return Invoice{}, err
	}
	s.changed(ctx, actorID, "ar:payment_delete", inv, map[string]any{"payment_id": paymentID, "amount": payment.Amount.String()})
	return inv, nil
}

// GetInvoice returns the invoice with authoritative derived amounts.
func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	return s.validated(inv), nil
}

// ListInvoices returns reconciled invoices.
func (s *Service) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	invoices, err := s.repo.ListInvoices(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		invoices[i] = s.validated(invoices[i])
	}
	return invoices, nil
}

// ListPayments returns the payments of an invoice.
func (s *Service) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	return s.repo.ListPayments(ctx, invoiceID)
}

func (s *Service) validated(inv Invoice) Invoice {
	fixed, drift := Reconcile(inv)
	if drift {
		s.logger.Warn("invoice derived fields out of sync",
			slog.Int64("invoice_id", inv.ID),
			slog.String("stored_payment_status", string(inv.PaymentStatus)),
			slog.String("stored_remaining", inv.RemainingAmount.String()),
			slog.String("remaining", fixed.RemainingAmount.String()))
	}
	return fixed
}

// RepairInvoices recomputes paid and derived amounts of every invoice from
// its payments and returns how many rows were corrected.
func (s *Service) RepairInvoices(ctx context.Context) (int, error) {
	ids, err := s.repo.ListInvoiceIDs(ctx)
	if err != nil {
		return 0, err
	}
	repaired := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return repaired, err
		}
		var fixed bool
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			inv, err := tx.GetInvoiceForUpdate(ctx, id)
			if err != nil {
				return err
			}
			paid, err := tx.SumPayments(ctx, id)
			if err != nil {
				return err
			}
			stored := inv
			if inv.Status != InvoiceStatusCancelled {
				inv = applyPaid(inv, paid, s.now())
			} else {
				inv.PaidAmount = paid
				inv, _ = Reconcile(inv)
			}
			if sameState(stored, inv) {
				return nil
			}
			fixed = true
			inv.UpdatedAt = s.now()
			return tx.UpdateInvoiceState(ctx, inv)
		})
		if err != nil {
			return repaired, fmt.Errorf("repair invoice %d: %w", id, err)
		}
		if fixed {
			repaired++
		}
	}
	if repaired > 0 {
		s.logger.Info("invoices repaired", slog.Int("count", repaired))
		s.bump(ctx)
	}
	return repaired, nil
}

func sameState(a, b Invoice) bool {
	return a.Status == b.Status && a.PaymentStatus == b.PaymentStatus &&
		a.PaidAmount.Equal(b.PaidAmount) && a.RemainingAmount.Equal(b.RemainingAmount)
}

// MarkOverdue flags sent invoices whose due date passed without full payment.
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	today := shared.DateOf(asOf)
	ids, err := s.repo.ListOverdueCandidates(ctx, today)
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, id := range ids {
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			inv, err := tx.GetInvoiceForUpdate(ctx, id)
			if err != nil {
				return err
			}
			inv, _ = Reconcile(inv)
			if inv.Status != InvoiceStatusSent || inv.PaymentStatus.IsSettled() || DaysOverdue(inv.DueDate, today) == 0 {
				return nil
			}
			inv.Status = InvoiceStatusOverdue
			inv.UpdatedAt = s.now()
			if err := tx.UpdateInvoiceState(ctx, inv); err != nil {
				return err
			}
			marked++
			return nil
		})
		if err != nil {
			return marked, fmt.Errorf("mark invoice %d overdue: %w", id, err)
		}
	}
	if marked > 0 {
		s.bump(ctx)
	}
	return marked, nil
}

// ConfirmPreparation moves an invoice through warehouse preparation.
func (s *Service) ConfirmPreparation(ctx context.Context, invoiceID int64, input PreparationInput, actorID int64) (Invoice, error) {
	switch input.Status {
	case PreparationPreparing, PreparationReady, PreparationCancelled:
	default:
		return Invoice{}, shared.ValidationError("Unknown preparation status %q", string(input.Status))
	}
	return s.mutate(ctx, invoiceID, actorID, "ar:preparation", func(_ context.Context, _ TxRepository, inv *Invoice) error {
		fixed, _ := Reconcile(*inv)
		*inv = fixed
		if !CanMovePreparation(inv.PreparationStatus, input.Status) {
			return shared.ConflictError("Invoice %s cannot move from %s to %s",
				inv.Number, inv.PreparationStatus.Label(), input.Status.Label())
		}
		if input.Status != PreparationCancelled && !IsEligibleForPreparation(*inv, s.policy) {
			return shared.ConflictError("Invoice %s is %s; preparation requires %s",
				inv.Number, inv.PaymentStatus.Label(), s.policy.MinPaymentStatus.Label())
		}
		inv.PreparationStatus = input.Status
		inv.PreparationNotes = strings.TrimSpace(input.Notes)
		return nil
	})
}

// PreparationQueue lists invoices the warehouse may work on.
func (s *Service) PreparationQueue(ctx context.Context) ([]Invoice, error) {
	candidates, err := s.repo.ListPreparationCandidates(ctx)
	if err != nil {
		return nil, err
	}
	queue := make([]Invoice, 0, len(candidates))
	for _, inv := range candidates {
		inv = s.validated(inv)
		if IsEligibleForPreparation(inv, s.policy) {
			queue = append(queue, inv)
		}
	}
	return queue, nil
}

// ReceivablesAging buckets open receivables as of asOf.
func (s *Service) ReceivablesAging(ctx context.Context, asOf time.Time) (AgingReport, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	invoices, err := s.repo.ListOpenReceivables(ctx)
	if err != nil {
		return AgingReport{}, err
	}
	return BuildAgingReport(invoices, asOf), nil
}

func (s *Service) mutate(ctx context.Context, invoiceID, actorID int64, action string, apply func(context.Context, TxRepository, *Invoice) error) (Invoice, error) {
	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		inv, err = tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := apply(ctx, tx, &inv); err != nil {
			return err
		}
		inv.UpdatedAt = s.now()
		return tx.UpdateInvoiceState(ctx, inv)
	})
	if err != nil {
		return Invoice{}, err
	}
	s.changed(ctx, actorID, action, inv, nil)
	return inv, nil
}

func (s *Service) changed(ctx context.Context, actorID int64, action string, inv Invoice, meta map[string]any) {
	s.bump(ctx)
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["status"] = string(inv.Status)
	meta["preparation_status"] = string(inv.PreparationStatus)
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "invoice",
		EntityID: strconv.FormatInt(inv.ID, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("ar audit", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) bump(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("analytics cache bump", slog.Any("error", err))
	}
}
