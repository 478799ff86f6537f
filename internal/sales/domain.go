package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/niaga-erp/niaga/internal/masterdata"
)

// OrderStatus represents the lifecycle of a customer order.
type OrderStatus string

const (
	OrderStatusNew                 OrderStatus = "NEW"
	OrderStatusPendingConfirmation OrderStatus = "PENDING_CONFIRMATION"
	OrderStatusInProcess           OrderStatus = "IN_PROCESS"
	OrderStatusCompleted           OrderStatus = "COMPLETED"
	OrderStatusCanceled            OrderStatus = "CANCELED"
)

// AllOrderStatuses lists every status.
func AllOrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusNew, OrderStatusPendingConfirmation, OrderStatusInProcess, OrderStatusCompleted, OrderStatusCanceled}
}

// Label returns a display name.
func (s OrderStatus) Label() string {
	switch s {
	case OrderStatusNew:
		return "New"
	case OrderStatusPendingConfirmation:
		return "Awaiting confirmation"
	case OrderStatusInProcess:
		return "In process"
	case OrderStatusCompleted:
		return "Completed"
	case OrderStatusCanceled:
		return "Canceled"
	default:
		return string(s)
	}
}

// IsValid checks if the status is known.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusNew, OrderStatusPendingConfirmation, OrderStatusInProcess, OrderStatusCompleted, OrderStatusCanceled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCanceled
}

// CanConfirm checks if the order awaits an approve/reject decision.
func (s OrderStatus) CanConfirm() bool {
	return s == OrderStatusPendingConfirmation
}

// CanProcess checks if work on the order may start.
func (s OrderStatus) CanProcess() bool {
	return s == OrderStatusNew
}

// CanComplete checks if the order may be completed.
func (s OrderStatus) CanComplete() bool {
	return s == OrderStatusNew || s == OrderStatusInProcess
}

// CanCancel checks if the order may still be canceled.
func (s OrderStatus) CanCancel() bool {
	return !s.IsTerminal() && s.IsValid()
}

// Order is a customer order placed by a sales representative.
type Order struct {
	ID                   int64           `json:"id"`
	Number               string          `json:"number"`
	CustomerID           int64           `json:"customer_id"`
	CustomerName         string          `json:"customer_name"`
	StoreID              int64           `json:"store_id"`
	StoreName            string          `json:"store_name"`
	SalesRepID           int64           `json:"sales_rep_id"`
	Status               OrderStatus     `json:"status"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	RequiresConfirmation bool            `json:"requires_confirmation"`
	Notes                string          `json:"notes,omitempty"`
	AdminNotes           string          `json:"admin_notes,omitempty"`
	ConfirmedBy          int64           `json:"confirmed_by,omitempty"`
	ConfirmedAt          *time.Time      `json:"confirmed_at,omitempty"`
	CompletedAt          *time.Time      `json:"completed_at,omitempty"`
	CanceledAt           *time.Time      `json:"canceled_at,omitempty"`
	CancelReason         string          `json:"cancel_reason,omitempty"`
	CreatedBy            int64           `json:"created_by"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	Items                []OrderItem     `json:"items"`
}

// OrderItem is one product line of an order.
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// ComputeTotal sums the line totals.
func (o Order) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal)
	}
	return total
}

// CheckTotals verifies every line total and the order total.
func (o Order) CheckTotals() bool {
	for _, item := range o.Items {
		if !item.LineTotal.Equal(item.Price.Mul(decimal.NewFromInt(item.Quantity))) {
			return false
		}
	}
	return o.TotalAmount.Equal(o.ComputeTotal())
}

// OrderItemInput is one requested line. Price defaults to the product price.
type OrderItemInput struct {
	ProductID int64            `json:"product_id" validate:"required,gt=0"`
	Quantity  int64            `json:"quantity" validate:"required,gt=0"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

// CreateOrderInput is the request to place an order.
type CreateOrderInput struct {
	SalesRepID           int64               `json:"sales_rep_id"`
	Customer             masterdata.PartyRef `json:"customer"`
	Store                masterdata.PartyRef `json:"store"`
	RequiresConfirmation bool                `json:"requires_confirmation"`
	Notes                string              `json:"notes" validate:"max=1000"`
	Items                []OrderItemInput    `json:"items" validate:"dive"`
	ActorID              int64               `json:"-"`
}

// ConfirmOrderInput carries the approve/reject decision.
type ConfirmOrderInput struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes" validate:"max=1000"`
}

// CancelOrderInput carries the cancellation reason.
type CancelOrderInput struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// ListFilter narrows order listings.
type ListFilter struct {
	Status     OrderStatus
	SalesRepID int64
	Limit      int
}
