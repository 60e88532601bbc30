// Package linking measures how far purchase orders have been consumed by
// the invoices raised against them.
package linking

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"docket/api/internal/store"
)

// invoiceSummer is the slice of the store the calculator needs.
type invoiceSummer interface {
	SumInvoicedAgainst(ctx context.Context, poNumber string) (decimal.Decimal, error)
}

// Consumption reports the invoiced share of one PO.
type Consumption struct {
	PONumber      string          `json:"po_number"`
	POAmount      decimal.Decimal `json:"po_amount"`
	TotalInvoiced decimal.Decimal `json:"total_invoiced"`
	Remaining     decimal.Decimal `json:"remaining"`
	PercentUsed   float64         `json:"percent_used"`
}

// Calculator computes PO consumption from stored invoices.
type Calculator struct {
	store invoiceSummer
}

func NewCalculator(store invoiceSummer) *Calculator {
	return &Calculator{store: store}
}

// TotalInvoiced sums the amounts of invoices carrying the PO's number. A PO
// without a number has nothing invoiced against it.
func (c *Calculator) TotalInvoiced(ctx context.Context, po store.Document) (decimal.Decimal, error) {
	if po.PONumber == "" {
		return decimal.Zero, nil
	}
	total, err := c.store.SumInvoicedAgainst(ctx, po.PONumber)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum invoiced against %s: %w", po.PONumber, err)
	}
	return total, nil
}

// Consumption builds the full consumption report for one PO. Remaining can
// go negative when a PO is over-invoiced; callers surface that as-is.
func (c *Calculator) Consumption(ctx context.Context, po store.Document) (Consumption, error) {
	invoiced, err := c.TotalInvoiced(ctx, po)
	if err != nil {
		return Consumption{}, err
	}

	result := Consumption{
		PONumber:      po.PONumber,
		POAmount:      po.Amount,
		TotalInvoiced: invoiced,
		Remaining:     po.Amount.Sub(invoiced),
	}
	if po.Amount.IsPositive() {
		percent, _ := invoiced.Div(po.Amount).Mul(decimal.NewFromInt(100)).Float64()
		result.PercentUsed = percent
	}
	return result, nil
}
