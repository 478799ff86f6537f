package sales

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/niaga-erp/niaga/internal/inventory"
	"github.com/niaga-erp/niaga/internal/masterdata"
	"github.com/niaga-erp/niaga/internal/shared"
	"github.com/niaga-erp/niaga/internal/users"
)

// RepositoryPort abstracts order storage.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]Order, error)
}

// TxRepository exposes order writes plus the stock ledger of the same transaction.
type TxRepository interface {
	inventory.StockWriter
	InsertOrder(ctx context.Context, o Order) (int64, error)
	InsertOrderItem(ctx context.Context, orderID int64, item OrderItem) (int64, error)
	GetOrderForUpdate(ctx context.Context, id int64) (Order, error)
	UpdateOrderStatus(ctx context.Context, o Order) error
	Parties() masterdata.RepositoryPort
}

// SalesRepChecker validates the sales capability of a user.
type SalesRepChecker interface {
	RequireSalesRep(ctx context.Context, id int64) (users.User, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ApprovalPort records confirmation decisions.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// Service implements the order lifecycle.
type Service struct {
	repo      RepositoryPort
	reps      SalesRepChecker
	parties   *masterdata.Service
	audit     AuditPort
	approvals ApprovalPort
	observer  inventory.Observer
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds Service. audit, approvals and observer may be nil.
func NewService(repo RepositoryPort, reps SalesRepChecker, parties *masterdata.Service, audit AuditPort, approvals ApprovalPort, observer inventory.Observer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		reps:      reps,
		parties:   parties,
		audit:     audit,
		approvals: approvals,
		observer:  observer,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder places an order and reserves its stock in one transaction.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (Order, error) {
	if len(input.Items) == 0 {
		return Order{}, shared.ValidationError("Order must have at least one item")
	}
	for i, item := range input.Items {
		if item.ProductID == 0 {
			return Order{}, shared.ValidationError("Item %d: product is required", i+1)
		}
		if item.Quantity <= 0 {
			return Order{}, shared.ValidationError("Item %d: quantity must be greater than zero", i+1)
		}
		if item.Price != nil && item.Price.IsNegative() {
			return Order{}, shared.ValidationError("Item %d: price must not be negative", i+1)
		}
	}
	if input.Customer.Empty() {
		return Order{}, shared.ValidationError("Customer is required")
	}
	if input.Store.Empty() {
		return Order{}, shared.ValidationError("Store is required")
	}
	if _, err := s.reps.RequireSalesRep(ctx, input.SalesRepID); err != nil {
		return Order{}, err
	}

	now := s.now()
	order := Order{
		Number:               shared.DocumentNumber("SO", now),
		SalesRepID:           input.SalesRepID,
		Status:               OrderStatusNew,
		RequiresConfirmation: input.RequiresConfirmation,
		Notes:                strings.TrimSpace(input.Notes),
		CreatedBy:            input.ActorID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if input.RequiresConfirmation {
		order.Status = OrderStatusPendingConfirmation
	}

	var movements []inventory.StockMovement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order.Items = order.Items[:0]
		movements = movements[:0]
		// new customers and stores roll back with the order
		parties := s.parties.Using(tx.Parties())
		customer, err := parties.ResolveCustomer(ctx, input.Customer)
		if err != nil {
			return err
		}
		store, err := parties.ResolveStore(ctx, input.Store)
		if err != nil {
			return err
		}
		order.CustomerID, order.CustomerName = customer.ID, customer.Name
		order.StoreID, order.StoreName = store.ID, store.Name
		for _, in := range input.Items {
			product, err := tx.LookupProduct(ctx, in.ProductID)
			if err != nil {
				return err
			}
			if !product.IsActive {
				return shared.ValidationError("Product %s is inactive", product.Name)
			}
			price := product.Price
			if in.Price != nil {
				price = *in.Price
			}
			order.Items = append(order.Items, OrderItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    in.Quantity,
				Price:       price,
				LineTotal:   price.Mul(decimal.NewFromInt(in.Quantity)),
			})
		}
		order.TotalAmount = order.ComputeTotal()
		if !order.CheckTotals() {
			return fmt.Errorf("sales: order totals diverged")
		}
		id, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		for i := range order.Items {
			order.Items[i].OrderID = id
			itemID, err := tx.InsertOrderItem(ctx, id, order.Items[i])
			if err != nil {
				return err
			}
			order.Items[i].ID = itemID
			m, err := inventory.Post(ctx, tx, inventory.MovementInput{
				ProductID: order.Items[i].ProductID,
				Direction: inventory.DirectionOut,
				Quantity:  order.Items[i].Quantity,
				Source:    inventory.SourceOrder,
				RefID:     id,
				Note:      order.Number,
				ActorID:   input.ActorID,
			})
			if err != nil {
				return err
			}
			movements = append(movements, m)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.afterCommit(ctx, input.ActorID, "sales:order_create", order, movements, map[string]any{"total": order.TotalAmount.String()})
	return order, nil
}

// ConfirmOrder approves (to NEW) or rejects (to CANCELED, releasing stock)
// an order awaiting confirmation.
func (s *Service) ConfirmOrder(ctx context.Context, orderID int64, input ConfirmOrderInput, actorID int64) (Order, error) {
	var order Order
	var movements []inventory.StockMovement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanConfirm() {
			return shared.ConflictError("Order %s cannot be confirmed while %s", order.Number, order.Status.Label())
		}
		now := s.now()
		order.ConfirmedBy = actorID
		order.ConfirmedAt = &now
		order.AdminNotes = strings.TrimSpace(input.Notes)
		order.UpdatedAt = now
		if input.Approve {
			order.Status = OrderStatusNew
			return tx.UpdateOrderStatus(ctx, order)
		}
		order.Status = OrderStatusCanceled
		order.CanceledAt = &now
		order.CancelReason = order.AdminNotes
		if order.CancelReason == "" {
			order.CancelReason = "Rejected at confirmation"
		}
		movements, err = s.releaseStock(ctx, tx, order, actorID)
		if err != nil {
			return err
		}
		return tx.UpdateOrderStatus(ctx, order)
	})
	if err != nil {
		return Order{}, err
	}
	action := shared.ApprovalApprove
	if !input.Approve {
		action = shared.ApprovalReject
	}
	if s.approvals != nil {
		if err := s.approvals.Record(ctx, shared.ApprovalLog{Module: "sales_order", RefID: order.ID, ActorID: actorID, Action: action, Note: order.AdminNotes}); err != nil {
			s.logger.Warn("sales approval record", slog.Any("error", err))
		}
	}
	s.afterCommit(ctx, actorID, "sales:order_confirm", order, movements, map[string]any{"approved": input.Approve})
	return order, nil
}

// StartProcessing moves a NEW order into IN_PROCESS.
func (s *Service) StartProcessing(ctx context.Context, orderID, actorID int64) (Order, error) {
	return s.transition(ctx, orderID, actorID, "sales:order_process", func(o *Order) error {
		if !o.Status.CanProcess() {
			return shared.ConflictError("Order %s cannot start processing while %s", o.Number, o.Status.Label())
		}
		o.Status = OrderStatusInProcess
		return nil
	})
}

// CompleteOrder marks the order fulfilled.
func (s *Service) CompleteOrder(ctx context.Context, orderID, actorID int64) (Order, error) {
	return s.transition(ctx, orderID, actorID, "sales:order_complete", func(o *Order) error {
		if !o.Status.CanComplete() {
			return shared.ConflictError("Order %s cannot be completed while %s", o.Number, o.Status.Label())
		}
		now := s.now()
		o.Status = OrderStatusCompleted
		o.CompletedAt = &now
		return nil
	})
}

// CancelOrder cancels a non-terminal order and returns its reserved stock.
func (s *Service) CancelOrder(ctx context.Context, orderID int64, reason string, actorID int64) (Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Order{}, shared.ValidationError("Cancellation reason is required")
	}
	var order Order
	var movements []inventory.StockMovement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanCancel() {
			return shared.ConflictError("Order %s cannot be canceled while %s", order.Number, order.Status.Label())
		}
		now := s.now()
		order.Status = OrderStatusCanceled
		order.CanceledAt = &now
		order.CancelReason = reason
		order.UpdatedAt = now
		movements, err = s.releaseStock(ctx, tx, order, actorID)
		if err != nil {
			return err
		}
		return tx.UpdateOrderStatus(ctx, order)
	})
	if err != nil {
		return Order{}, err
	}
	s.afterCommit(ctx, actorID, "sales:order_cancel", order, movements, map[string]any{"reason": reason})
	return order, nil
}

// GetOrder returns an order with its items.
func (s *Service) GetOrder(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrders lists orders newest first.
func (s *Service) ListOrders(ctx context.Context, filter ListFilter) ([]Order, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, shared.ValidationError("Unknown order status %q", string(filter.Status))
	}
	return s.repo.ListOrders(ctx, filter)
}

func (s *Service) transition(ctx context.Context, orderID, actorID int64, action string, apply func(*Order) error) (Order, error) {
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := apply(&order); err != nil {
			return err
		}
		order.UpdatedAt = s.now()
		return tx.UpdateOrderStatus(ctx, order)
	})
	if err != nil {
		return Order{}, err
	}
	s.afterCommit(ctx, actorID, action, order, nil, nil)
	return order, nil
}

// releaseStock posts one IN movement per item of a canceled order.
func (s *Service) releaseStock(ctx context.Context, tx TxRepository, order Order, actorID int64) ([]inventory.StockMovement, error) {
	movements := make([]inventory.StockMovement, 0, len(order.Items))
	for _, item := range order.Items {
		m, err := inventory.Post(ctx, tx, inventory.MovementInput{
			ProductID: item.ProductID,
			Direction: inventory.DirectionIn,
			Quantity:  item.Quantity,
			Source:    inventory.SourceOrderCancel,
			RefID:     order.ID,
			Note:      order.Number,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, nil
}

func (s *Service) afterCommit(ctx context.Context, actorID int64, action string, order Order, movements []inventory.StockMovement, meta map[string]any) {
	if s.observer != nil {
		for _, m := range movements {
			s.observer.StockMoved(m)
		}
	}
	s.logger.Info("order transition", slog.String("action", action), slog.String("order", order.Number), slog.String("status", string(order.Status)))
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["status"] = string(order.Status)
	meta["movements"] = len(movements)
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "order",
		EntityID: strconv.FormatInt(order.ID, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("sales audit", slog.String("action", action), slog.Any("error", err))
	}
}
