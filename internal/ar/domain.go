package ar

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the document state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusSent      InvoiceStatus = "SENT"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// AllInvoiceStatuses lists every invoice status.
func AllInvoiceStatuses() []InvoiceStatus {
	return []InvoiceStatus{InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled}
}

// Label returns a display name.
func (s InvoiceStatus) Label() string {
	switch s {
	case InvoiceStatusDraft:
		return "Draft"
	case InvoiceStatusSent:
		return "Sent"
	case InvoiceStatusPaid:
		return "Paid"
	case InvoiceStatusOverdue:
		return "Overdue"
	case InvoiceStatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}

// PaymentStatus is derived from total and paid amounts, never set directly.
type PaymentStatus string

const (
	PaymentStatusUnpaid        PaymentStatus = "UNPAID"
	PaymentStatusPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	PaymentStatusPaid          PaymentStatus = "PAID"
	PaymentStatusOverpaid      PaymentStatus = "OVERPAID"
)

// AllPaymentStatuses lists every payment status.
func AllPaymentStatuses() []PaymentStatus {
	return []PaymentStatus{PaymentStatusUnpaid, PaymentStatusPartiallyPaid, PaymentStatusPaid, PaymentStatusOverpaid}
}

// Label returns a display name.
func (s PaymentStatus) Label() string {
	switch s {
	case PaymentStatusUnpaid:
		return "Unpaid"
	case PaymentStatusPartiallyPaid:
		return "Partially paid"
	case PaymentStatusPaid:
		return "Paid"
	case PaymentStatusOverpaid:
		return "Overpaid"
	default:
		return string(s)
	}
}

// IsSettled reports whether the invoice is fully paid.
func (s PaymentStatus) IsSettled() bool {
	return s == PaymentStatusPaid || s == PaymentStatusOverpaid
}

// PreparationStatus is the warehouse readiness of an invoice's goods.
type PreparationStatus string

const (
	PreparationWaiting   PreparationStatus = "WAITING_PREPARATION"
	PreparationPreparing PreparationStatus = "PREPARING"
	PreparationReady     PreparationStatus = "READY_FOR_DELIVERY"
	PreparationCancelled PreparationStatus = "CANCELLED_PREPARATION"
)

// AllPreparationStatuses lists every preparation status.
func AllPreparationStatuses() []PreparationStatus {
	return []PreparationStatus{PreparationWaiting, PreparationPreparing, PreparationReady, PreparationCancelled}
}

// Label returns a display name.
func (s PreparationStatus) Label() string {
	switch s {
	case PreparationWaiting:
		return "Waiting for preparation"
	case PreparationPreparing:
		return "Preparing"
	case PreparationReady:
		return "Ready for delivery"
	case PreparationCancelled:
		return "Preparation cancelled"
	default:
		return string(s)
	}
}

// IsFinal reports whether the preparation can no longer change.
func (s PreparationStatus) IsFinal() bool {
	return s == PreparationReady || s == PreparationCancelled
}

// AgingCategory buckets an open receivable by days past due.
type AgingCategory string

const (
	AgingCurrent       AgingCategory = "CURRENT"
	AgingOverdue1To30  AgingCategory = "OVERDUE_1_30"
	AgingOverdue31To60 AgingCategory = "OVERDUE_31_60"
	AgingOverdue60Plus AgingCategory = "OVERDUE_60_PLUS"
)

// AllAgingCategories lists every bucket in ascending age.
func AllAgingCategories() []AgingCategory {
	return []AgingCategory{AgingCurrent, AgingOverdue1To30, AgingOverdue31To60, AgingOverdue60Plus}
}

// Label returns a display name.
func (c AgingCategory) Label() string {
	switch c {
	case AgingCurrent:
		return "Current"
	case AgingOverdue1To30:
		return "1-30 days overdue"
	case AgingOverdue31To60:
		return "31-60 days overdue"
	case AgingOverdue60Plus:
		return "Over 60 days overdue"
	default:
		return string(c)
	}
}

// Invoice bills a completed order.
type Invoice struct {
	ID                int64             `json:"id"`
	Number            string            `json:"number"`
	OrderID           int64             `json:"order_id"`
	PurchaseOrderID   int64             `json:"purchase_order_id,omitempty"`
	CustomerID        int64             `json:"customer_id"`
	CustomerName      string            `json:"customer_name"`
	InvoiceDate       time.Time         `json:"invoice_date"`
	DueDate           time.Time         `json:"due_date"`
	Status            InvoiceStatus     `json:"status"`
	PaymentStatus     PaymentStatus     `json:"payment_status"`
	PreparationStatus PreparationStatus `json:"preparation_status"`
	PreparationNotes  string            `json:"preparation_notes,omitempty"`
	Subtotal          decimal.Decimal   `json:"subtotal"`
	Tax               decimal.Decimal   `json:"tax"`
	Discount          decimal.Decimal   `json:"discount"`
	ShippingCost      decimal.Decimal   `json:"shipping_cost"`
	TotalAmount       decimal.Decimal   `json:"total_amount"`
	PaidAmount        decimal.Decimal   `json:"paid_amount"`
	RemainingAmount   decimal.Decimal   `json:"remaining_amount"`
	CreatedBy         int64             `json:"created_by"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	Items             []InvoiceItem     `json:"items,omitempty"`
}

// InvoiceItem is one billed product line.
type InvoiceItem struct {
	ID          int64           `json:"id"`
	InvoiceID   int64           `json:"invoice_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// Payment is an immutable receipt against an invoice.
type Payment struct {
	ID          int64           `json:"id"`
	InvoiceID   int64           `json:"invoice_id"`
	PaymentDate time.Time       `json:"payment_date"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	Reference   string          `json:"reference,omitempty"`
	CreatedBy   int64           `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

// OrderSnapshot is the part of an order an invoice is built from.
type OrderSnapshot struct {
	ID           int64
	Number       string
	Status       string
	CustomerID   int64
	CustomerName string
	Items        []InvoiceItem
}

// CreateInvoiceInput requests an invoice for a completed order.
type CreateInvoiceInput struct {
	OrderID      int64           `json:"order_id" validate:"required,gt=0"`
	InvoiceDate  string          `json:"invoice_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate      string          `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	TermDays     int             `json:"term_days" validate:"gte=0,lte=365"`
	Tax          decimal.Decimal `json:"tax"`
	Discount     decimal.Decimal `json:"discount"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	ActorID      int64           `json:"-"`
}

// PaymentInput records a receipt.
type PaymentInput struct {
	InvoiceID   int64           `json:"-"`
	PaymentDate string          `json:"payment_date" validate:"omitempty,datetime=2006-01-02"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method" validate:"required,oneof=CASH TRANSFER GIRO CARD OTHER"`
	Reference   string          `json:"reference" validate:"max=100"`
	RequestKey  string          `json:"request_key,omitempty" validate:"omitempty,max=100"`
	ActorID     int64           `json:"-"`
}

// PaymentResult is a recorded payment with the invoice it updated.
type PaymentResult struct {
	Payment Payment `json:"payment"`
	Invoice Invoice `json:"invoice"`
}

// PreparationInput moves an invoice through warehouse preparation.
type PreparationInput struct {
	Status PreparationStatus `json:"status" validate:"required"`
	Notes  string            `json:"notes" validate:"max=1000"`
}

// CancelInvoiceInput carries the cancellation reason.
type CancelInvoiceInput struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// ListFilter narrows invoice listings.
type ListFilter struct {
	Status        InvoiceStatus
	PaymentStatus PaymentStatus
	CustomerID    int64
	Limit         int
}

// AgingRow is one open receivable in an aging report.
type AgingRow struct {
	InvoiceID       int64           `json:"invoice_id"`
	Number          string          `json:"number"`
	CustomerName    string          `json:"customer_name"`
	DueDate         time.Time       `json:"due_date"`
	DaysOverdue     int             `json:"days_overdue"`
	Category        AgingCategory   `json:"category"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
}

// AgingReport groups open receivables by age.
type AgingReport struct {
	AsOf   time.Time                         `json:"as_of"`
	Rows   []AgingRow                        `json:"rows"`
	Totals map[AgingCategory]decimal.Decimal `json:"totals"`
	Total  decimal.Decimal                   `json:"total"`
}
