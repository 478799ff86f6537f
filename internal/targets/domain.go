// Package targets stores revenue goals per sales user and period.
package targets

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/niaga-erp/niaga/internal/shared"
)

// Target is a revenue goal for one user over one period.
type Target struct {
	ID        int64             `json:"id"`
	UserID    int64             `json:"user_id"`
	UserName  string            `json:"user_name"`
	Type      shared.PeriodType `json:"target_type"`
	Period    string            `json:"target_period"`
	Amount    decimal.Decimal   `json:"target_amount"`
	IsActive  bool              `json:"is_active"`
	CreatedBy int64             `json:"created_by"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// CreateTargetInput defines a new target.
type CreateTargetInput struct {
	UserID  int64             `json:"user_id" validate:"required,gt=0"`
	Type    shared.PeriodType `json:"target_type" validate:"required"`
	Period  string            `json:"target_period" validate:"required,max=7"`
	Amount  decimal.Decimal   `json:"target_amount"`
	ActorID int64             `json:"-"`
}

// UpdateTargetInput changes the amount or period of a target. Nil fields stay.
type UpdateTargetInput struct {
	Period  *string          `json:"target_period" validate:"omitempty,max=7"`
	Amount  *decimal.Decimal `json:"target_amount"`
	ActorID int64            `json:"-"`
}

// PeriodInfo is the current period key of a type with its date range.
type PeriodInfo struct {
	Type   shared.PeriodType `json:"target_type"`
	Period string            `json:"target_period"`
	Range  shared.DateRange  `json:"range"`
}

// ListFilter narrows target listings.
type ListFilter struct {
	UserID     int64
	Type       shared.PeriodType
	ActiveOnly bool
}
