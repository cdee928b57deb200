package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func paymentWithAmount(id, code, amount string) Payment {
	return Payment{
		ID:     id,
		Code:   code,
		Amount: decimal.RequireFromString(amount),
		Status: PaymentStatusPaid,
		Active: true,
	}
}

func TestGroupTotalsRecomputed(t *testing.T) {
	t.Parallel()

	g := Group{
		ProviderID:   "p-1",
		ProviderName: "Proveedor Uno",
		Payments: []Payment{
			paymentWithAmount("pay-1", "", "10.00"),
			paymentWithAmount("pay-2", "BANCO-001", "15.50"),
		},
	}

	if got := g.TotalCount(); got != 2 {
		t.Fatalf("TotalCount() = %d, want 2", got)
	}
	if got := g.TotalAmount(); !got.Equal(decimal.RequireFromString("25.50")) {
		t.Fatalf("TotalAmount() = %s, want 25.50", got)
	}

	// Totals must track membership, not a cached value.
	g.Payments = append(g.Payments, paymentWithAmount("pay-3", "TARJ-001", "4.50"))
	if got := g.TotalCount(); got != 3 {
		t.Fatalf("TotalCount() after append = %d, want 3", got)
	}
	if got := g.TotalAmount(); !got.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("TotalAmount() after append = %s, want 30.00", got)
	}
}

func TestGroupSplitByChannel(t *testing.T) {
	t.Parallel()

	g := Group{
		Payments: []Payment{
			paymentWithAmount("pay-1", "BANCO-001", "1.00"),
			paymentWithAmount("pay-2", "TARJ-001", "2.00"),
			paymentWithAmount("pay-3", "", "3.00"),
			paymentWithAmount("pay-4", "BANCO-777", "4.00"),
		},
	}

	card, bank := g.SplitByChannel()

	if len(card) != 2 || card[0] != "pay-2" || card[1] != "pay-3" {
		t.Fatalf("card ids = %v, want [pay-2 pay-3]", card)
	}
	if len(bank) != 2 || bank[0] != "pay-1" || bank[1] != "pay-4" {
		t.Fatalf("bank ids = %v, want [pay-1 pay-4]", bank)
	}
}

func TestTagForIndexAlternates(t *testing.T) {
	t.Parallel()

	if got := TagForIndex(0); got != GroupTagEven {
		t.Fatalf("TagForIndex(0) = %s, want %s", got, GroupTagEven)
	}
	if got := TagForIndex(1); got != GroupTagOdd {
		t.Fatalf("TagForIndex(1) = %s, want %s", got, GroupTagOdd)
	}
	if got := TagForIndex(2); got != GroupTagEven {
		t.Fatalf("TagForIndex(2) = %s, want %s", got, GroupTagEven)
	}
}
