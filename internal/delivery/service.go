package delivery

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/niaga-erp/niaga/internal/inventory"
	"github.com/niaga-erp/niaga/internal/shared"
)

const (
	invoiceCancelled        = "CANCELLED"
	preparationReadyForShip = "READY_FOR_DELIVERY"
)

// RepositoryPort abstracts delivery storage.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetDelivery(ctx context.Context, id int64) (Delivery, error)
	ListDeliveries(ctx context.Context, filter ListFilter) ([]Delivery, error)
}

// TxRepository exposes delivery writes plus the stock ledger of the same transaction.
type TxRepository interface {
	inventory.StockWriter
	GetInvoiceSnapshot(ctx context.Context, invoiceID int64) (InvoiceSnapshot, error)
	OpenDeliveryExists(ctx context.Context, invoiceID int64) (bool, error)
	InsertDelivery(ctx context.Context, d Delivery) (int64, error)
	GetDeliveryForUpdate(ctx context.Context, id int64) (Delivery, error)
	UpdateDeliveryStatus(ctx context.Context, d Delivery) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements delivery scheduling and status transitions.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	observer inventory.Observer
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service. audit and observer may be nil.
func NewService(repo RepositoryPort, audit AuditPort, observer inventory.Observer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		audit:    audit,
		observer: observer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateDelivery schedules the delivery of an invoice that is ready to ship.
func (s *Service) CreateDelivery(ctx context.Context, input CreateDeliveryInput) (Delivery, error) {
	if input.InvoiceID <= 0 {
		return Delivery{}, shared.ValidationError("Invoice is required")
	}
	now := s.now()
	date, err := shared.ParseDate(input.DeliveryDate, now)
	if err != nil {
		return Delivery{}, err
	}
	if date.Before(shared.DateOf(now)) {
		return Delivery{}, shared.ValidationError("Delivery date cannot be in the past")
	}
	d := Delivery{
		Number:        shared.DocumentNumber("DLV", now),
		InvoiceID:     input.InvoiceID,
		Status:        StatusPending,
		DeliveryDate:  date,
		DriverID:      input.DriverID,
		HelperID:      input.HelperID,
		VehicleNumber: strings.TrimSpace(input.VehicleNumber),
		Notes:         strings.TrimSpace(input.Notes),
		CreatedBy:     input.ActorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceSnapshot(ctx, input.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status == invoiceCancelled {
			return shared.ConflictError("Invoice %s is cancelled", inv.Number)
		}
		if inv.PreparationStatus != preparationReadyForShip {
			return shared.ConflictError("Invoice %s is not ready for delivery", inv.Number)
		}
		open, err := tx.OpenDeliveryExists(ctx, inv.ID)
		if err != nil {
			return err
		}
		if open {
			return shared.ConflictError("Invoice %s already has a delivery", inv.Number)
		}
		d.InvoiceNumber = inv.Number
		d.ID, err = tx.InsertDelivery(ctx, d)
		return err
	})
	if err != nil {
		return Delivery{}, err
	}
	s.afterCommit(ctx, input.ActorID, "delivery:create", d, nil)
	return d, nil
}

// UpdateStatus moves a delivery along its lifecycle. A return puts every
// invoiced quantity back into stock in the same transaction.
func (s *Service) UpdateStatus(ctx context.Context, deliveryID int64, input UpdateStatusInput) (Delivery, error) {
	if !input.Status.IsValid() {
		return Delivery{}, shared.ValidationError("Unknown delivery status %q", string(input.Status))
	}
	reason := strings.TrimSpace(input.Reason)
	if input.Status == StatusReturned && reason == "" {
		return Delivery{}, shared.ValidationError("Return reason is required")
	}
	var (
		d         Delivery
		movements []inventory.StockMovement
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		d, err = tx.GetDeliveryForUpdate(ctx, deliveryID)
		if err != nil {
			return err
		}
		if !d.Status.CanTransition(input.Status) {
			return shared.ConflictError("Delivery %s cannot move from %s to %s", d.Number, d.Status.Label(), input.Status.Label())
		}
		now := s.now()
		d.Status = input.Status
		d.StatusReason = reason
		d.UpdatedAt = now
		switch input.Status {
		case StatusDelivered:
			d.DeliveredAt = &now
		case StatusReturned:
			d.ReturnedAt = &now
			movements, err = s.restock(ctx, tx, d, input.ActorID)
			if err != nil {
				return err
			}
		}
		return tx.UpdateDeliveryStatus(ctx, d)
	})
	if err != nil {
		return Delivery{}, err
	}
	s.afterCommit(ctx, input.ActorID, "delivery:status", d, movements)
	return d, nil
}

// GetDelivery returns one delivery.
func (s *Service) GetDelivery(ctx context.Context, id int64) (Delivery, error) {
	return s.repo.GetDelivery(ctx, id)
}

// ListDeliveries lists deliveries newest first.
func (s *Service) ListDeliveries(ctx context.Context, filter ListFilter) ([]Delivery, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, shared.ValidationError("Unknown delivery status %q", string(filter.Status))
	}
	return s.repo.ListDeliveries(ctx, filter)
}

func (s *Service) restock(ctx context.Context, tx TxRepository, d Delivery, actorID int64) ([]inventory.StockMovement, error) {
	inv, err := tx.GetInvoiceSnapshot(ctx, d.InvoiceID)
	if err != nil {
		return nil, err
	}
	movements := make([]inventory.StockMovement, 0, len(inv.Lines))
	for _, line := range inv.Lines {
		m, err := inventory.Post(ctx, tx, inventory.MovementInput{
			ProductID: line.ProductID,
			Direction: inventory.DirectionIn,
			Quantity:  line.Quantity,
			Source:    inventory.SourceDeliveryReturn,
			RefID:     d.ID,
			Note:      d.Number,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, nil
}

func (s *Service) afterCommit(ctx context.Context, actorID int64, action string, d Delivery, movements []inventory.StockMovement) {
	if s.observer != nil {
		for _, m := range movements {
			s.observer.StockMoved(m)
		}
	}
	s.logger.Info("delivery transition", slog.String("action", action), slog.String("delivery", d.Number), slog.String("status", string(d.Status)))
	if s.audit == nil {
		return
	}
	meta := map[string]any{"status": string(d.Status), "invoice_id": d.InvoiceID, "movements": len(movements)}
	if d.StatusReason != "" {
		meta["reason"] = d.StatusReason
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "delivery",
		EntityID: strconv.FormatInt(d.ID, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("delivery audit", slog.String("action", action), slog.Any("error", err))
	}
}
