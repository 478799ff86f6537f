package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/niaga-erp/niaga/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListMovements(ctx context.Context, productID int64, limit int) ([]StockMovement, error)
	ListLowStock(ctx context.Context) ([]Product, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards against double-submitted requests.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Observer is notified of committed movements.
type Observer interface {
	StockMoved(m StockMovement)
}

// Service coordinates inventory operations.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
	observer    Observer
	logger      *slog.Logger
}

// NewService builds Service. audit, idem and observer may be nil.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, observer Observer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, idempotency: idem, observer: observer, logger: logger}
}

// RecordProduction adds produced goods to stock.
func (s *Service) RecordProduction(ctx context.Context, input ProductionInput) (ProductionLog, error) {
	if input.ProductID == 0 {
		return ProductionLog{}, shared.ValidationError("Product is required")
	}
	if input.Quantity <= 0 {
		return ProductionLog{}, shared.ValidationError("Production quantity must be greater than zero")
	}
	key := ""
	if input.RequestKey != "" && s.idempotency != nil {
		key = "production:" + input.RequestKey
		if err := s.idempotency.CheckAndInsert(ctx, key, "inventory"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return ProductionLog{}, shared.ConflictError("This production was already recorded")
			}
			return ProductionLog{}, err
		}
	}
	log := ProductionLog{
		ProductID:  input.ProductID,
		Quantity:   input.Quantity,
		Notes:      input.Notes,
		ProducedBy: input.ActorID,
		ProducedAt: time.Now().UTC(),
	}
	var movement StockMovement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.LookupProduct(ctx, input.ProductID)
		if err != nil {
			return err
		}
		if !product.IsActive {
			return shared.ConflictError("Product %s is inactive", product.Name)
		}
		id, err := tx.InsertProductionLog(ctx, log)
		if err != nil {
			return err
		}
		log.ID = id
		movement, err = Post(ctx, tx, MovementInput{
			ProductID: input.ProductID,
			Direction: DirectionIn,
			Quantity:  input.Quantity,
			Source:    SourceProduction,
			RefID:     id,
			Note:      input.Notes,
			ActorID:   input.ActorID,
		})
		return err
	})
	if err != nil {
		if key != "" {
			_ = s.idempotency.Delete(ctx, key)
		}
		return ProductionLog{}, err
	}
	s.committed(ctx, input.ActorID, "inventory:production", "production_log", log.ID, movement)
	return log, nil
}

// DeleteProduction removes a production log and takes its quantity back
// out of stock. It fails when that stock has already been consumed.
func (s *Service) DeleteProduction(ctx context.Context, logID, actorID int64) (StockMovement, error) {
	var movement StockMovement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		log, err := tx.GetProductionLogForUpdate(ctx, logID)
		if err != nil {
			return err
		}
		movement, err = Post(ctx, tx, MovementInput{
			ProductID: log.ProductID,
			Direction: DirectionOut,
			Quantity:  log.Quantity,
			Source:    SourceProductionReversal,
			RefID:     log.ID,
			Note:      fmt.Sprintf("Reversal of production #%d", log.ID),
			ActorID:   actorID,
		})
		if err != nil {
			if errors.Is(err, ErrInsufficientStock) {
				return shared.ConflictError("Cannot delete production #%d: its stock has already been used", log.ID)
			}
			return err
		}
		return tx.DeleteProductionLog(ctx, log.ID)
	})
	if err != nil {
		return StockMovement{}, err
	}
	s.committed(ctx, actorID, "inventory:production_delete", "production_log", logID, movement)
	return movement, nil
}

// AdjustStock posts a signed manual correction.
func (s *Service) AdjustStock(ctx context.Context, input AdjustmentInput) (StockMovement, error) {
	if input.ProductID == 0 {
		return StockMovement{}, shared.ValidationError("Product is required")
	}
	if input.Delta == 0 {
		return StockMovement{}, shared.ValidationError("Adjustment quantity must not be zero")
	}
	if input.Reason == "" {
		return StockMovement{}, shared.ValidationError("Adjustment reason is required")
	}
	mv := MovementInput{
		ProductID: input.ProductID,
		Direction: DirectionIn,
		Quantity:  input.Delta,
		Source:    SourceAdjustment,
		Note:      input.Reason,
		ActorID:   input.ActorID,
	}
	if input.Delta < 0 {
		mv.Direction = DirectionOut
		mv.Quantity = -input.Delta
	}
	var movement StockMovement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		movement, err = Post(ctx, tx, mv)
		return err
	})
	if err != nil {
		return StockMovement{}, err
	}
	s.committed(ctx, input.ActorID, "inventory:adjust", "product", input.ProductID, movement)
	return movement, nil
}

// PostStockOpname records counted quantities and posts one movement per
// product whose count differs from the system quantity.
func (s *Service) PostStockOpname(ctx context.Context, input OpnameInput) (StockOpname, error) {
	if len(input.Items) == 0 {
		return StockOpname{}, shared.ValidationError("Stock opname must have at least one item")
	}
	seen := make(map[int64]struct{}, len(input.Items))
	for _, item := range input.Items {
		if item.ProductID == 0 {
			return StockOpname{}, shared.ValidationError("Product is required on every opname line")
		}
		if item.CountedQty < 0 {
			return StockOpname{}, shared.ValidationError("Counted quantity must not be negative")
		}
		if _, dup := seen[item.ProductID]; dup {
			return StockOpname{}, shared.ValidationError("Product %d is counted twice", item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
	}
	opname := StockOpname{Notes: input.Notes, CreatedBy: input.ActorID, CreatedAt: time.Now().UTC()}
	var movements []StockMovement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertOpname(ctx, opname)
		if err != nil {
			return err
		}
		opname.ID = id
		opname.Items = opname.Items[:0]
		movements = movements[:0]
		for _, count := range input.Items {
			product, err := tx.GetProductForUpdate(ctx, count.ProductID)
			if err != nil {
				return err
			}
			item := OpnameItem{
				ProductID:  count.ProductID,
				SystemQty:  product.CurrentStock,
				CountedQty: count.CountedQty,
				Difference: count.CountedQty - product.CurrentStock,
			}
			if item.Difference != 0 {
				mv := MovementInput{
					ProductID: count.ProductID,
					Direction: DirectionIn,
					Quantity:  item.Difference,
					Source:    SourceOpname,
					RefID:     id,
					Note:      input.Notes,
					ActorID:   input.ActorID,
				}
				if item.Difference < 0 {
					mv.Direction = DirectionOut
					mv.Quantity = -item.Difference
				}
				m, err := Post(ctx, tx, mv)
				if err != nil {
					return err
				}
				item.MovementID = m.ID
				movements = append(movements, m)
			}
			if err := tx.InsertOpnameItem(ctx, id, item); err != nil {
				return err
			}
			opname.Items = append(opname.Items, item)
		}
		return nil
	})
	if err != nil {
		return StockOpname{}, err
	}
	s.committed(ctx, input.ActorID, "inventory:opname", "stock_opname", opname.ID, movements...)
	return opname, nil
}

// GetProduct returns a product with its current stock.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListMovements returns recent movements of a product.
func (s *Service) ListMovements(ctx context.Context, productID int64, limit int) ([]StockMovement, error) {
	if productID == 0 {
		return nil, shared.ValidationError("Product is required")
	}
	return s.repo.ListMovements(ctx, productID, limit)
}

// LowStock lists products at or below their minimum stock.
func (s *Service) LowStock(ctx context.Context) ([]Product, error) {
	return s.repo.ListLowStock(ctx)
}

func (s *Service) committed(ctx context.Context, actorID int64, action, entity string, entityID int64, movements ...StockMovement) {
	if s.observer != nil {
		for _, m := range movements {
			s.observer.StockMoved(m)
		}
	}
	if s.audit == nil {
		return
	}
	meta := map[string]any{"movements": len(movements)}
	if len(movements) == 1 {
		meta["product_id"] = movements[0].ProductID
		meta["quantity"] = movements[0].Signed()
		meta["stock_after"] = movements[0].StockAfter
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("inventory audit", slog.String("action", action), slog.Any("error", err))
	}
}
