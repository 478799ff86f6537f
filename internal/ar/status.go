package ar

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/niaga-erp/niaga/internal/shared"
)

// DerivePaymentStatus classifies paid against total.
func DerivePaymentStatus(total, paid decimal.Decimal) PaymentStatus {
	switch {
	case !paid.IsPositive():
		return PaymentStatusUnpaid
	case paid.LessThan(total):
		return PaymentStatusPartiallyPaid
	case paid.Equal(total):
		return PaymentStatusPaid
	default:
		return PaymentStatusOverpaid
	}
}

// RemainingAmount is total minus paid, floored at zero.
func RemainingAmount(total, paid decimal.Decimal) decimal.Decimal {
	remaining := total.Sub(paid)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// Reconcile recomputes the derived fields of inv from its total and paid
// amounts. The bool reports whether the stored values disagreed.
func Reconcile(inv Invoice) (Invoice, bool) {
	status := DerivePaymentStatus(inv.TotalAmount, inv.PaidAmount)
	remaining := RemainingAmount(inv.TotalAmount, inv.PaidAmount)
	drift := status != inv.PaymentStatus || !remaining.Equal(inv.RemainingAmount)
	inv.PaymentStatus = status
	inv.RemainingAmount = remaining
	if inv.Status != InvoiceStatusCancelled && status.IsSettled() && inv.Status != InvoiceStatusPaid {
		inv.Status = InvoiceStatusPaid
		drift = true
	}
	return inv, drift
}

// applyPaid sets a new paid amount and moves the document status with it.
// A payment on a draft sends it; losing full payment drops PAID back to
// SENT or OVERDUE depending on the due date.
func applyPaid(inv Invoice, paid decimal.Decimal, today time.Time) Invoice {
	inv.PaidAmount = paid
	inv.PaymentStatus = DerivePaymentStatus(inv.TotalAmount, paid)
	inv.RemainingAmount = RemainingAmount(inv.TotalAmount, paid)
	switch {
	case inv.PaymentStatus.IsSettled():
		inv.Status = InvoiceStatusPaid
	case inv.Status == InvoiceStatusPaid, inv.Status == InvoiceStatusDraft && paid.IsPositive():
		inv.Status = InvoiceStatusSent
		if DaysOverdue(inv.DueDate, today) > 0 {
			inv.Status = InvoiceStatusOverdue
		}
	}
	return inv
}

// PreparationPolicy decides the minimum payment state for warehouse work.
type PreparationPolicy struct {
	MinPaymentStatus PaymentStatus
}

// DefaultPreparationPolicy only releases fully paid invoices.
func DefaultPreparationPolicy() PreparationPolicy {
	return PreparationPolicy{MinPaymentStatus: PaymentStatusPaid}
}

// ParsePreparationPolicy accepts PAID or PARTIALLY_PAID; empty means PAID.
func ParsePreparationPolicy(raw string) (PreparationPolicy, error) {
	switch s := PaymentStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case "":
		return DefaultPreparationPolicy(), nil
	case PaymentStatusPaid, PaymentStatusPartiallyPaid:
		return PreparationPolicy{MinPaymentStatus: s}, nil
	default:
		return PreparationPolicy{}, shared.ValidationError("Preparation threshold must be PAID or PARTIALLY_PAID, got %q", raw)
	}
}

func paymentRank(s PaymentStatus) int {
	switch s {
	case PaymentStatusPartiallyPaid:
		return 1
	case PaymentStatusPaid, PaymentStatusOverpaid:
		return 2
	default:
		return 0
	}
}

// IsEligibleForPreparation is the single rule deciding whether warehouse
// preparation may proceed for an invoice.
func IsEligibleForPreparation(inv Invoice, policy PreparationPolicy) bool {
	if inv.Status == InvoiceStatusCancelled || inv.Status == InvoiceStatusDraft {
		return false
	}
	if inv.PreparationStatus == PreparationCancelled {
		return false
	}
	threshold := policy.MinPaymentStatus
	if threshold == "" {
		threshold = PaymentStatusPaid
	}
	return paymentRank(inv.PaymentStatus) >= paymentRank(threshold)
}

// CanMovePreparation reports whether from -> to is an allowed preparation step.
func CanMovePreparation(from, to PreparationStatus) bool {
	switch to {
	case PreparationPreparing:
		return from == PreparationWaiting
	case PreparationReady:
		return from == PreparationPreparing
	case PreparationCancelled:
		return !from.IsFinal()
	default:
		return false
	}
}

// DaysOverdue counts whole UTC days past due, never negative.
func DaysOverdue(due, today time.Time) int {
	days := shared.DaysBetween(due, today)
	if days < 0 {
		return 0
	}
	return days
}

// CategorizeReceivable buckets an open invoice by age. ok is false for
// invoices that are not open receivables.
func CategorizeReceivable(inv Invoice, today time.Time) (category AgingCategory, daysOverdue int, ok bool) {
	if inv.Status == InvoiceStatusCancelled {
		return "", 0, false
	}
	if inv.PaymentStatus != PaymentStatusUnpaid && inv.PaymentStatus != PaymentStatusPartiallyPaid {
		return "", 0, false
	}
	days := DaysOverdue(inv.DueDate, today)
	switch {
	case days == 0:
		return AgingCurrent, 0, true
	case days <= 30:
		return AgingOverdue1To30, days, true
	case days <= 60:
		return AgingOverdue31To60, days, true
	default:
		return AgingOverdue60Plus, days, true
	}
}

// BuildAgingReport reconciles and buckets invoices as of today.
func BuildAgingReport(invoices []Invoice, today time.Time) AgingReport {
	report := AgingReport{
		AsOf:   shared.DateOf(today),
		Rows:   []AgingRow{},
		Totals: make(map[AgingCategory]decimal.Decimal, 4),
		Total:  decimal.Zero,
	}
	for _, c := range AllAgingCategories() {
		report.Totals[c] = decimal.Zero
	}
	for _, inv := range invoices {
		inv, _ = Reconcile(inv)
		category, days, ok := CategorizeReceivable(inv, today)
		if !ok {
			continue
		}
		report.Rows = append(report.Rows, AgingRow{
			InvoiceID:       inv.ID,
			Number:          inv.Number,
			CustomerName:    inv.CustomerName,
			DueDate:         inv.DueDate,
			DaysOverdue:     days,
			Category:        category,
			RemainingAmount: inv.RemainingAmount,
		})
		report.Totals[category] = report.Totals[category].Add(inv.RemainingAmount)
		report.Total = report.Total.Add(inv.RemainingAmount)
	}
	return report
}
