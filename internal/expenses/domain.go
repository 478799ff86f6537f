// Package expenses records operating income and expense transactions.
package expenses

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type separates money going out from money coming in.
type Type string

const (
	TypeExpense Type = "EXPENSE"
	TypeIncome  Type = "INCOME"
)

// AllTypes lists every transaction type.
func AllTypes() []Type {
	return []Type{TypeExpense, TypeIncome}
}

// Label returns a display name.
func (t Type) Label() string {
	switch t {
	case TypeExpense:
		return "Expense"
	case TypeIncome:
		return "Income"
	default:
		return string(t)
	}
}

// IsValid reports whether t is a known type.
func (t Type) IsValid() bool {
	return t == TypeExpense || t == TypeIncome
}

// Transaction is one dated income or expense entry.
type Transaction struct {
	ID          int64           `json:"id"`
	Number      string          `json:"number"`
	Type        Type            `json:"type"`
	Date        time.Time       `json:"date"`
	Category    string          `json:"category"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Items       []Item          `json:"items,omitempty"`
	CreatedBy   int64           `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Item is one line of an itemised transaction.
type Item struct {
	ID            int64           `json:"id"`
	TransactionID int64           `json:"transaction_id"`
	Description   string          `json:"description"`
	Quantity      int64           `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Amount        decimal.Decimal `json:"amount"`
}

// ItemInput describes one line of a new transaction.
type ItemInput struct {
	Description string          `json:"description" validate:"required,max=200"`
	Quantity    int64           `json:"quantity" validate:"gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CreateTransactionInput records a transaction. When items are present the
// amount is their sum; a non-zero Amount must agree with it.
type CreateTransactionInput struct {
	Type        Type            `json:"type" validate:"required"`
	Date        string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Category    string          `json:"category" validate:"required,max=100"`
	Description string          `json:"description" validate:"max=500"`
	Amount      decimal.Decimal `json:"amount"`
	Items       []ItemInput     `json:"items" validate:"dive"`
	ActorID     int64           `json:"-"`
}

// CategoryTotal sums transactions of one category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// Summary totals one transaction type inside a window.
type Summary struct {
	Total      decimal.Decimal `json:"total"`
	ByCategory []CategoryTotal `json:"by_category"`
}

// ListFilter narrows transaction listings. Zero dates are open bounds.
type ListFilter struct {
	Type     Type
	Category string
	From     time.Time
	To       time.Time
	Limit    int
}
