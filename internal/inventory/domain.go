package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the sign of a stock movement.
type Direction string

const (
	// DirectionIn adds to current stock.
	DirectionIn Direction = "IN"
	// DirectionOut removes from current stock.
	DirectionOut Direction = "OUT"
)

// Source identifies the business event behind a movement.
type Source string

const (
	SourceOrder              Source = "ORDER"
	SourceOrderCancel        Source = "ORDER_CANCEL"
	SourceProduction         Source = "PRODUCTION"
	SourceProductionReversal Source = "PRODUCTION_REVERSAL"
	SourceAdjustment         Source = "ADJUSTMENT"
	SourceOpname             Source = "OPNAME"
	SourceDeliveryReturn     Source = "DELIVERY_RETURN"
)

// AllSources lists every movement source.
func AllSources() []Source {
	return []Source{SourceOrder, SourceOrderCancel, SourceProduction, SourceProductionReversal, SourceAdjustment, SourceOpname, SourceDeliveryReturn}
}

// Label returns a display name.
func (s Source) Label() string {
	switch s {
	case SourceOrder:
		return "Order reservation"
	case SourceOrderCancel:
		return "Order cancellation"
	case SourceProduction:
		return "Production"
	case SourceProductionReversal:
		return "Production reversal"
	case SourceAdjustment:
		return "Manual adjustment"
	case SourceOpname:
		return "Stock opname"
	case SourceDeliveryReturn:
		return "Delivery return"
	default:
		return string(s)
	}
}

// Product is a sellable item with its ledger-maintained stock counter.
type Product struct {
	ID           int64           `json:"id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	CategoryID   int64           `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Unit         string          `json:"unit"`
	Price        decimal.Decimal `json:"price"`
	Cost         decimal.Decimal `json:"cost"`
	CurrentStock int64           `json:"current_stock"`
	MinStock     int64           `json:"min_stock"`
	IsActive     bool            `json:"is_active"`
}

// StockMovement is an immutable ledger record of one stock change.
type StockMovement struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"product_id"`
	Direction  Direction `json:"direction"`
	Quantity   int64     `json:"quantity"`
	Source     Source    `json:"source"`
	RefID      int64     `json:"ref_id,omitempty"`
	Note       string    `json:"note,omitempty"`
	StockAfter int64     `json:"stock_after"`
	CreatedBy  int64     `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// Signed returns the quantity with the movement's sign applied.
func (m StockMovement) Signed() int64 {
	if m.Direction == DirectionOut {
		return -m.Quantity
	}
	return m.Quantity
}

// MovementInput describes one stock change to post.
type MovementInput struct {
	ProductID int64
	Direction Direction
	Quantity  int64
	Source    Source
	RefID     int64
	Note      string
	ActorID   int64
}

// ProductionLog records goods produced into stock.
type ProductionLog struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"product_id"`
	Quantity   int64     `json:"quantity"`
	Notes      string    `json:"notes,omitempty"`
	ProducedBy int64     `json:"produced_by"`
	ProducedAt time.Time `json:"produced_at"`
}

// ProductionInput is the request to record production.
type ProductionInput struct {
	ProductID  int64  `json:"product_id" validate:"required,gt=0"`
	Quantity   int64  `json:"quantity" validate:"required,gt=0"`
	Notes      string `json:"notes" validate:"max=500"`
	RequestKey string `json:"request_key,omitempty" validate:"omitempty,max=100"`
	ActorID    int64  `json:"-"`
}

// AdjustmentInput is a signed manual correction.
type AdjustmentInput struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Delta     int64  `json:"delta" validate:"required,ne=0"`
	Reason    string `json:"reason" validate:"required,max=500"`
	ActorID   int64  `json:"-"`
}

// OpnameCount is a physically counted quantity for one product.
type OpnameCount struct {
	ProductID  int64 `json:"product_id" validate:"required,gt=0"`
	CountedQty int64 `json:"counted_qty" validate:"gte=0"`
}

// OpnameInput is a stock-take submission.
type OpnameInput struct {
	Notes   string        `json:"notes" validate:"max=500"`
	Items   []OpnameCount `json:"items" validate:"required,min=1,dive"`
	ActorID int64         `json:"-"`
}

// StockOpname is a recorded stock-take.
type StockOpname struct {
	ID        int64        `json:"id"`
	Notes     string       `json:"notes,omitempty"`
	CreatedBy int64        `json:"created_by"`
	CreatedAt time.Time    `json:"created_at"`
	Items     []OpnameItem `json:"items"`
}

// OpnameItem keeps system and counted quantities side by side.
type OpnameItem struct {
	ProductID  int64 `json:"product_id"`
	SystemQty  int64 `json:"system_qty"`
	CountedQty int64 `json:"counted_qty"`
	Difference int64 `json:"difference"`
	MovementID int64 `json:"movement_id,omitempty"`
}

// ErrInsufficientStock is wrapped by the conflict error returned when an
// outbound movement exceeds current stock.
var ErrInsufficientStock = errors.New("inventory: insufficient stock")

// ErrInvalidQuantity indicates a non-positive movement quantity.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
