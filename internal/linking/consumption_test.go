package linking

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"docket/api/internal/store"
)

type fakeSummer struct {
	totals map[string]decimal.Decimal
	err    error
}

func (f *fakeSummer) SumInvoicedAgainst(_ context.Context, poNumber string) (decimal.Decimal, error) {
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.totals[poNumber], nil
}

func TestTotalInvoiced(t *testing.T) {
	calc := NewCalculator(&fakeSummer{totals: map[string]decimal.Decimal{
		"PO-7731": decimal.NewFromInt(30000),
	}})

	po := store.Document{Category: store.CategoryClientPO, PONumber: "PO-7731", Amount: decimal.NewFromInt(42000)}
	total, err := calc.TotalInvoiced(context.Background(), po)
	if err != nil {
		t.Fatalf("TotalInvoiced() error = %v", err)
	}
	if !total.Equal(decimal.NewFromInt(30000)) {
		t.Fatalf("total invoiced = %s, want 30000", total)
	}
}

func TestTotalInvoicedWithoutPONumber(t *testing.T) {
	calc := NewCalculator(&fakeSummer{err: errors.New("must not be called")})

	po := store.Document{Category: store.CategoryClientPO, Amount: decimal.NewFromInt(42000)}
	total, err := calc.TotalInvoiced(context.Background(), po)
	if err != nil {
		t.Fatalf("TotalInvoiced() error = %v", err)
	}
	if !total.IsZero() {
		t.Fatalf("total invoiced = %s, want 0", total)
	}
}

func TestConsumption(t *testing.T) {
	calc := NewCalculator(&fakeSummer{totals: map[string]decimal.Decimal{
		"PO-7731": decimal.NewFromInt(31500),
	}})

	po := store.Document{Category: store.CategoryClientPO, PONumber: "PO-7731", Amount: decimal.NewFromInt(42000)}
	got, err := calc.Consumption(context.Background(), po)
	if err != nil {
		t.Fatalf("Consumption() error = %v", err)
	}

	if !got.TotalInvoiced.Equal(decimal.NewFromInt(31500)) {
		t.Fatalf("total invoiced = %s", got.TotalInvoiced)
	}
	if !got.Remaining.Equal(decimal.NewFromInt(10500)) {
		t.Fatalf("remaining = %s", got.Remaining)
	}
	if got.PercentUsed != 75 {
		t.Fatalf("percent used = %v, want 75", got.PercentUsed)
	}
}

func TestConsumptionOverInvoiced(t *testing.T) {
	calc := NewCalculator(&fakeSummer{totals: map[string]decimal.Decimal{
		"PO-7731": decimal.NewFromInt(50000),
	}})

	po := store.Document{Category: store.CategoryClientPO, PONumber: "PO-7731", Amount: decimal.NewFromInt(42000)}
	got, err := calc.Consumption(context.Background(), po)
	if err != nil {
		t.Fatalf("Consumption() error = %v", err)
	}
	if !got.Remaining.Equal(decimal.NewFromInt(-8000)) {
		t.Fatalf("remaining = %s, want -8000", got.Remaining)
	}
}

func TestConsumptionZeroAmount(t *testing.T) {
	calc := NewCalculator(&fakeSummer{totals: map[string]decimal.Decimal{
		"PO-7731": decimal.NewFromInt(100),
	}})

	po := store.Document{Category: store.CategoryClientPO, PONumber: "PO-7731"}
	got, err := calc.Consumption(context.Background(), po)
	if err != nil {
		t.Fatalf("Consumption() error = %v", err)
	}
	if got.PercentUsed != 0 {
		t.Fatalf("percent used = %v, want 0 for zero-amount PO", got.PercentUsed)
	}
}

func TestConsumptionPropagatesStoreError(t *testing.T) {
	calc := NewCalculator(&fakeSummer{err: errors.New("db down")})

	po := store.Document{Category: store.CategoryClientPO, PONumber: "PO-7731", Amount: decimal.NewFromInt(42000)}
	if _, err := calc.Consumption(context.Background(), po); err == nil {
		t.Fatal("expected Consumption() to fail when the store fails")
	}
}
