package procurement

import (
	"time"

	"github.com/shopspring/decimal"
)

// POStatus is the lifecycle of a purchase order.
type POStatus string

const (
	POStatusPending    POStatus = "PENDING"
	POStatusProcessing POStatus = "PROCESSING"
	POStatusCompleted  POStatus = "COMPLETED"
	POStatusCancelled  POStatus = "CANCELLED"
)

// AllPOStatuses lists every purchase order status.
func AllPOStatuses() []POStatus {
	return []POStatus{POStatusPending, POStatusProcessing, POStatusCompleted, POStatusCancelled}
}

// Label returns a display name.
func (s POStatus) Label() string {
	switch s {
	case POStatusPending:
		return "Pending"
	case POStatusProcessing:
		return "Processing"
	case POStatusCompleted:
		return "Completed"
	case POStatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}

// Reviewable reports whether stock may be (re)confirmed.
func (s POStatus) Reviewable() bool {
	return s == POStatusPending || s == POStatusProcessing
}

// StockStatus is the warehouse stock-confirmation sub-state.
type StockStatus string

const (
	StockWaiting      StockStatus = "WAITING_CONFIRMATION"
	StockAvailable    StockStatus = "STOCK_AVAILABLE"
	StockInsufficient StockStatus = "INSUFFICIENT_STOCK"
)

// AllStockStatuses lists every stock confirmation status.
func AllStockStatuses() []StockStatus {
	return []StockStatus{StockWaiting, StockAvailable, StockInsufficient}
}

// Label returns a display name.
func (s StockStatus) Label() string {
	switch s {
	case StockWaiting:
		return "Waiting for confirmation"
	case StockAvailable:
		return "Stock available"
	case StockInsufficient:
		return "Insufficient stock"
	default:
		return string(s)
	}
}

// PurchaseOrder is the fulfilment document of a customer order.
type PurchaseOrder struct {
	ID                      int64           `json:"id"`
	Number                  string          `json:"number"`
	OrderID                 int64           `json:"order_id"`
	OrderNumber             string          `json:"order_number"`
	Status                  POStatus        `json:"status"`
	StockStatus             StockStatus     `json:"stock_status"`
	StockNotes              string          `json:"stock_notes,omitempty"`
	StockOverride           bool            `json:"stock_override"`
	DateStockConfirmation   *time.Time      `json:"date_stock_confirmation,omitempty"`
	UserStockConfirmationID int64           `json:"user_stock_confirmation_id,omitempty"`
	Subtotal                decimal.Decimal `json:"subtotal"`
	Discount                decimal.Decimal `json:"discount"`
	Tax                     decimal.Decimal `json:"tax"`
	ShippingCost            decimal.Decimal `json:"shipping_cost"`
	TotalPayment            decimal.Decimal `json:"total_payment"`
	CreatedBy               int64           `json:"created_by"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
	Items                   []Item          `json:"items"`
}

// Item mirrors one order line with its confirmation note.
type Item struct {
	ID          int64           `json:"id"`
	POID        int64           `json:"purchase_order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Notes       string          `json:"notes,omitempty"`
}

// OrderSnapshot is the part of an order a purchase order copies.
type OrderSnapshot struct {
	ID     int64
	Number string
	Status string
	Items  []Item
}

// CreatePOInput requests a purchase order for an order.
type CreatePOInput struct {
	OrderID      int64           `json:"order_id" validate:"required,gt=0"`
	Discount     decimal.Decimal `json:"discount"`
	Tax          decimal.Decimal `json:"tax"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	ActorID      int64           `json:"-"`
}

// ConfirmStockInput is the warehouse decision on a purchase order.
type ConfirmStockInput struct {
	Status    StockStatus      `json:"status" validate:"required"`
	Notes     string           `json:"notes" validate:"max=1000"`
	ItemNotes map[int64]string `json:"item_notes"`
	Override  bool             `json:"override"`
	ActorID   int64            `json:"-"`
}

// ItemAvailability is the computed stock position of one item.
type ItemAvailability struct {
	ItemID       int64  `json:"item_id"`
	ProductID    int64  `json:"product_id"`
	ProductName  string `json:"product_name"`
	Required     int64  `json:"required"`
	CurrentStock int64  `json:"current_stock"`
	Reserved     int64  `json:"reserved"`
	Available    bool   `json:"available"`
	Shortfall    int64  `json:"shortfall"`
}

// StockCheck is the computed availability of a whole purchase order.
type StockCheck struct {
	POID         int64              `json:"purchase_order_id"`
	Items        []ItemAvailability `json:"items"`
	AllAvailable bool               `json:"all_available"`
}

// Short lists the product names that cannot be supplied.
func (c StockCheck) Short() []string {
	var names []string
	seen := map[int64]bool{}
	for _, it := range c.Items {
		if !it.Available && !seen[it.ProductID] {
			seen[it.ProductID] = true
			names = append(names, it.ProductName)
		}
	}
	return names
}

// ListFilter narrows purchase order listings.
type ListFilter struct {
	Status      POStatus
	StockStatus StockStatus
	Limit       int
}
