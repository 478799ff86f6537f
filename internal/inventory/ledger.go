package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/niaga-erp/niaga/internal/shared"
)

// StockWriter is the transaction-scoped view of product stock. Every module
// that moves stock receives one from its own transaction.
type StockWriter interface {
	LookupProduct(ctx context.Context, productID int64) (Product, error)
	// DecrementStock subtracts qty only when current stock covers it; ok is
	// false and nothing changes otherwise.
	DecrementStock(ctx context.Context, productID, qty int64) (after int64, ok bool, err error)
	IncrementStock(ctx context.Context, productID, qty int64) (after int64, err error)
	InsertMovement(ctx context.Context, m StockMovement) (int64, error)
}

// Post applies one movement: the stock counter update and the movement
// record are written through the same writer, so they commit or roll back
// together.
func Post(ctx context.Context, w StockWriter, in MovementInput) (StockMovement, error) {
	if in.ProductID == 0 {
		return StockMovement{}, shared.ValidationError("Product is required")
	}
	if in.Quantity <= 0 {
		return StockMovement{}, &shared.Error{Kind: shared.KindValidation, Message: "Quantity must be greater than zero", Err: ErrInvalidQuantity}
	}
	var after int64
	switch in.Direction {
	case DirectionOut:
		var ok bool
		var err error
		after, ok, err = w.DecrementStock(ctx, in.ProductID, in.Quantity)
		if err != nil {
			return StockMovement{}, fmt.Errorf("inventory: decrement %d: %w", in.ProductID, err)
		}
		if !ok {
			return StockMovement{}, insufficient(ctx, w, in)
		}
	case DirectionIn:
		var err error
		after, err = w.IncrementStock(ctx, in.ProductID, in.Quantity)
		if err != nil {
			return StockMovement{}, fmt.Errorf("inventory: increment %d: %w", in.ProductID, err)
		}
	default:
		return StockMovement{}, shared.ValidationError("Unknown movement direction %q", string(in.Direction))
	}
	m := StockMovement{
		ProductID:  in.ProductID,
		Direction:  in.Direction,
		Quantity:   in.Quantity,
		Source:     in.Source,
		RefID:      in.RefID,
		Note:       in.Note,
		StockAfter: after,
		CreatedBy:  in.ActorID,
		CreatedAt:  time.Now().UTC(),
	}
	id, err := w.InsertMovement(ctx, m)
	if err != nil {
		return StockMovement{}, fmt.Errorf("inventory: insert movement: %w", err)
	}
	m.ID = id
	return m, nil
}

func insufficient(ctx context.Context, w StockWriter, in MovementInput) error {
	p, err := w.LookupProduct(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFoundError("product", in.ProductID)
		}
		return err
	}
	return &shared.Error{
		Kind:    shared.KindConflict,
		Message: fmt.Sprintf("Insufficient stock for %s: requested %d, available %d", p.Name, in.Quantity, p.CurrentStock),
		Err:     ErrInsufficientStock,
	}
}

// Reverse builds the compensating input for a recorded movement.
func Reverse(m StockMovement, source Source, actorID int64, note string) MovementInput {
	dir := DirectionIn
	if m.Direction == DirectionIn {
		dir = DirectionOut
	}
	return MovementInput{
		ProductID: m.ProductID,
		Direction: dir,
		Quantity:  m.Quantity,
		Source:    source,
		RefID:     m.RefID,
		Note:      note,
		ActorID:   actorID,
	}
}
