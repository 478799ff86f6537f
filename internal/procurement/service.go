package procurement

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/niaga-erp/niaga/internal/inventory"
	"github.com/niaga-erp/niaga/internal/shared"
)

const orderStatusCanceled = "CANCELED"

// RepositoryPort abstracts purchase order storage.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error)
}

// TxRepository exposes purchase order writes and the ledger reads the stock check needs.
type TxRepository interface {
	LookupProduct(ctx context.Context, productID int64) (inventory.Product, error)
	MovementsByRef(ctx context.Context, source inventory.Source, refID int64) ([]inventory.StockMovement, error)
	GetOrderSnapshot(ctx context.Context, orderID int64) (OrderSnapshot, error)
	PurchaseOrderExists(ctx context.Context, orderID int64) (bool, error)
	InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (int64, error)
	InsertItem(ctx context.Context, item Item) (int64, error)
	GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	GetPurchaseOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	UpdatePurchaseOrder(ctx context.Context, po PurchaseOrder) error
	UpdateItemNotes(ctx context.Context, itemID int64, notes string) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ApprovalPort records stock confirmation decisions.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// Service coordinates purchase orders and warehouse stock confirmation.
type Service struct {
	repo      RepositoryPort
	audit     AuditPort
	approvals ApprovalPort
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds Service. audit and approvals may be nil.
func NewService(repo RepositoryPort, audit AuditPort, approvals ApprovalPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		audit:     audit,
		approvals: approvals,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreatePurchaseOrder copies an order's lines into a new purchase order.
func (s *Service) CreatePurchaseOrder(ctx context.Context, input CreatePOInput) (PurchaseOrder, error) {
	if input.OrderID <= 0 {
		return PurchaseOrder{}, shared.ValidationError("Order is required")
	}
	for name, v := range map[string]decimal.Decimal{"Discount": input.Discount, "Tax": input.Tax, "Shipping cost": input.ShippingCost} {
		if v.IsNegative() {
			return PurchaseOrder{}, shared.ValidationError("%s must not be negative", name)
		}
	}
	var po PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderSnapshot(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status == orderStatusCanceled {
			return shared.ConflictError("Order %s is canceled", order.Number)
		}
		if len(order.Items) == 0 {
			return shared.ValidationError("Order %s has no items", order.Number)
		}
		exists, err := tx.PurchaseOrderExists(ctx, order.ID)
		if err != nil {
			return err
		}
		if exists {
			return shared.ConflictError("Order %s already has a purchase order", order.Number)
		}
		now := s.now()
		po = PurchaseOrder{
			Number:       shared.DocumentNumber("PO", now),
			OrderID:      order.ID,
			OrderNumber:  order.Number,
			Status:       POStatusPending,
			StockStatus:  StockWaiting,
			Discount:     input.Discount,
			Tax:          input.Tax,
			ShippingCost: input.ShippingCost,
			CreatedBy:    input.ActorID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		for _, it := range order.Items {
			po.Subtotal = po.Subtotal.Add(it.LineTotal)
		}
		if po.Discount.GreaterThan(po.Subtotal) {
			return shared.ValidationError("Discount cannot exceed the subtotal")
		}
		po.TotalPayment = po.Subtotal.Sub(po.Discount).Add(po.Tax).Add(po.ShippingCost)
		id, err := tx.InsertPurchaseOrder(ctx, po)
		if err != nil {
			return err
		}
		po.ID = id
		po.Items = make([]Item, 0, len(order.Items))
		for _, it := range order.Items {
			it.POID = id
			itemID, err := tx.InsertItem(ctx, it)
			if err != nil {
				return err
			}
			it.ID = itemID
			po.Items = append(po.Items, it)
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.record(ctx, input.ActorID, "procurement:po_create", po, map[string]any{"total": po.TotalPayment.String()})
	return po, nil
}

// CheckStock computes per-item availability against the live ledger.
func (s *Service) CheckStock(ctx context.Context, poID int64) (StockCheck, error) {
	var check StockCheck
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPurchaseOrder(ctx, poID)
		if err != nil {
			return err
		}
		check, err = s.availability(ctx, tx, po)
		return err
	})
	return check, err
}

// ConfirmPurchaseOrderStock records the warehouse decision. A STOCK_AVAILABLE
// claim the ledger cannot support is refused unless Override is set.
func (s *Service) ConfirmPurchaseOrderStock(ctx context.Context, poID int64, input ConfirmStockInput) (PurchaseOrder, StockCheck, error) {
	if input.Status != StockAvailable && input.Status != StockInsufficient {
		return PurchaseOrder{}, StockCheck{}, shared.ValidationError("Stock status must be %s or %s", StockAvailable, StockInsufficient)
	}
	var (
		po     PurchaseOrder
		check  StockCheck
		action shared.ApprovalAction
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		po, err = tx.GetPurchaseOrderForUpdate(ctx, poID)
		if err != nil {
			return err
		}
		if !po.Status.Reviewable() {
			return shared.ConflictError("Purchase order %s cannot be confirmed while %s", po.Number, po.Status.Label())
		}
		known := make(map[int64]int, len(po.Items))
		for i, it := range po.Items {
			known[it.ID] = i
		}
		for itemID := range input.ItemNotes {
			if _, ok := known[itemID]; !ok {
				return shared.ValidationError("Item %d does not belong to purchase order %s", itemID, po.Number)
			}
		}
		check, err = s.availability(ctx, tx, po)
		if err != nil {
			return err
		}
		override := false
		action = shared.ApprovalReject
		if input.Status == StockAvailable {
			action = shared.ApprovalApprove
			if !check.AllAvailable {
				if !input.Override {
					return shared.ConflictError("Insufficient stock for %s", strings.Join(check.Short(), ", "))
				}
				override = true
				action = shared.ApprovalOverride
			}
		}

		now := s.now()
		po.StockStatus = input.Status
		po.StockNotes = strings.TrimSpace(input.Notes)
		po.StockOverride = override
		po.DateStockConfirmation = &now
		po.UserStockConfirmationID = input.ActorID
		po.UpdatedAt = now
		po.Status = POStatusPending
		if input.Status == StockAvailable {
			po.Status = POStatusProcessing
		}
		if err := tx.UpdatePurchaseOrder(ctx, po); err != nil {
			return err
		}
		for itemID, note := range input.ItemNotes {
			note = strings.TrimSpace(note)
			if err := tx.UpdateItemNotes(ctx, itemID, note); err != nil {
				return err
			}
			po.Items[known[itemID]].Notes = note
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, StockCheck{}, err
	}
	if s.approvals != nil {
		if err := s.approvals.Record(ctx, shared.ApprovalLog{Module: "purchase_order", RefID: po.ID, ActorID: input.ActorID, Action: action, Note: po.StockNotes}); err != nil {
			s.logger.Warn("procurement approval record", slog.Any("error", err))
		}
	}
	s.record(ctx, input.ActorID, "procurement:stock_confirm", po, map[string]any{
		"stock_status": string(po.StockStatus),
		"override":     po.StockOverride,
		"short":        check.Short(),
	})
	return po, check, nil
}

// CompletePurchaseOrder closes a purchase order whose stock was confirmed.
func (s *Service) CompletePurchaseOrder(ctx context.Context, poID, actorID int64) (PurchaseOrder, error) {
	return s.transition(ctx, poID, actorID, "procurement:po_complete", func(po *PurchaseOrder) error {
		if po.Status != POStatusProcessing || po.StockStatus != StockAvailable {
			return shared.ConflictError("Purchase order %s needs confirmed stock before completion", po.Number)
		}
		po.Status = POStatusCompleted
		return nil
	})
}

// CancelPurchaseOrder cancels an open purchase order.
func (s *Service) CancelPurchaseOrder(ctx context.Context, poID, actorID int64) (PurchaseOrder, error) {
	return s.transition(ctx, poID, actorID, "procurement:po_cancel", func(po *PurchaseOrder) error {
		if !po.Status.Reviewable() {
			return shared.ConflictError("Purchase order %s cannot be cancelled while %s", po.Number, po.Status.Label())
		}
		po.Status = POStatusCancelled
		return nil
	})
}

// GetPurchaseOrder returns a purchase order with its items.
func (s *Service) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.GetPurchaseOrder(ctx, id)
}

// ListPurchaseOrders lists purchase orders newest first.
func (s *Service) ListPurchaseOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error) {
	if filter.Status != "" && !slices.Contains(AllPOStatuses(), filter.Status) {
		return nil, shared.ValidationError("Unknown purchase order status %q", string(filter.Status))
	}
	if filter.StockStatus != "" && !slices.Contains(AllStockStatuses(), filter.StockStatus) {
		return nil, shared.ValidationError("Unknown stock status %q", string(filter.StockStatus))
	}
	return s.repo.ListPurchaseOrders(ctx, filter)
}

func (s *Service) availability(ctx context.Context, tx TxRepository, po PurchaseOrder) (StockCheck, error) {
	stock := make(map[int64]int64, len(po.Items))
	for _, it := range po.Items {
		if _, ok := stock[it.ProductID]; ok {
			continue
		}
		product, err := tx.LookupProduct(ctx, it.ProductID)
		if err != nil {
			return StockCheck{}, err
		}
		stock[it.ProductID] = product.CurrentStock
	}
	reserved, err := tx.MovementsByRef(ctx, inventory.SourceOrder, po.OrderID)
	if err != nil {
		return StockCheck{}, err
	}
	released, err := tx.MovementsByRef(ctx, inventory.SourceOrderCancel, po.OrderID)
	if err != nil {
		return StockCheck{}, err
	}
	return CheckAvailability(po.ID, po.Items, stock, ReservedByProduct(append(reserved, released...))), nil
}

func (s *Service) transition(ctx context.Context, poID, actorID int64, action string, apply func(*PurchaseOrder) error) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		po, err = tx.GetPurchaseOrderForUpdate(ctx, poID)
		if err != nil {
			return err
		}
		if err := apply(&po); err != nil {
			return err
		}
		po.UpdatedAt = s.now()
		return tx.UpdatePurchaseOrder(ctx, po)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.record(ctx, actorID, action, po, nil)
	return po, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, po PurchaseOrder, meta map[string]any) {
	s.logger.Info("purchase order", slog.String("action", action), slog.String("number", po.Number), slog.String("status", string(po.Status)))
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["status"] = string(po.Status)
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "purchase_order",
		EntityID: strconv.FormatInt(po.ID, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("procurement audit", slog.String("action", action), slog.Any("error", err))
	}
}
