package delivery

import (
	"slices"
	"time"
)

// Status represents the lifecycle of a delivery.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusInTransit Status = "IN_TRANSIT"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
	StatusReturned  Status = "RETURNED"
)

// AllStatuses lists every delivery status.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusInTransit, StatusDelivered, StatusCancelled, StatusReturned}
}

// Label returns a display name.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInTransit:
		return "In transit"
	case StatusDelivered:
		return "Delivered"
	case StatusCancelled:
		return "Cancelled"
	case StatusReturned:
		return "Returned"
	default:
		return string(s)
	}
}

// IsValid checks if the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInTransit, StatusDelivered, StatusCancelled, StatusReturned:
		return true
	default:
		return false
	}
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusInTransit, StatusCancelled},
	StatusInTransit: {StatusDelivered, StatusCancelled, StatusReturned},
	StatusDelivered: {StatusReturned},
}

// CanTransition reports whether a delivery may move from s to next.
func (s Status) CanTransition(next Status) bool {
	return slices.Contains(transitions[s], next)
}

// Delivery carries the goods of one invoice to the customer.
type Delivery struct {
	ID            int64      `json:"id"`
	Number        string     `json:"number"`
	InvoiceID     int64      `json:"invoice_id"`
	InvoiceNumber string     `json:"invoice_number"`
	Status        Status     `json:"status"`
	DeliveryDate  time.Time  `json:"delivery_date"`
	DriverID      int64      `json:"driver_id,omitempty"`
	HelperID      int64      `json:"helper_id,omitempty"`
	VehicleNumber string     `json:"vehicle_number,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	StatusReason  string     `json:"status_reason,omitempty"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	ReturnedAt    *time.Time `json:"returned_at,omitempty"`
	CreatedBy     int64      `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// InvoiceLine is one invoiced product quantity.
type InvoiceLine struct {
	ProductID int64
	Quantity  int64
}

// InvoiceSnapshot is the part of an invoice a delivery depends on.
type InvoiceSnapshot struct {
	ID                int64
	Number            string
	Status            string
	PreparationStatus string
	Lines             []InvoiceLine
}

// CreateDeliveryInput schedules a delivery for an invoice.
type CreateDeliveryInput struct {
	InvoiceID     int64  `json:"invoice_id" validate:"required,gt=0"`
	DeliveryDate  string `json:"delivery_date" validate:"omitempty,datetime=2006-01-02"`
	DriverID      int64  `json:"driver_id" validate:"gte=0"`
	HelperID      int64  `json:"helper_id" validate:"gte=0"`
	VehicleNumber string `json:"vehicle_number" validate:"max=50"`
	Notes         string `json:"notes" validate:"max=1000"`
	ActorID       int64  `json:"-"`
}

// UpdateStatusInput moves a delivery along its lifecycle.
type UpdateStatusInput struct {
	Status  Status `json:"status" validate:"required"`
	Reason  string `json:"reason" validate:"max=500"`
	ActorID int64  `json:"-"`
}

// ListFilter narrows delivery listings.
type ListFilter struct {
	Status    Status
	InvoiceID int64
	Limit     int
}
