package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTicketNumber(t *testing.T) {
	tests := []struct {
		year, seq int
		want      string
		id        int64
	}{
		{2025, 1, "2025000001", 2025000001},
		{2025, 42, "2025000042", 2025000042},
		{2026, 999999, "2026999999", 2026999999},
	}
	for _, tt := range tests {
		if got := TicketNumber(tt.year, tt.seq); got != tt.want {
			t.Errorf("TicketNumber(%d, %d) = %q, want %q", tt.year, tt.seq, got, tt.want)
		}
		if got := TicketID(tt.year, tt.seq); got != tt.id {
			t.Errorf("TicketID(%d, %d) = %d, want %d", tt.year, tt.seq, got, tt.id)
		}
	}
}

func TestMovementKind_Signed(t *testing.T) {
	tests := []struct {
		kind MovementKind
		want int64
	}{
		{MovementEntry, 5},
		{MovementExitSale, -5},
		{MovementExitManual, -5},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.Signed(5); got != tt.want {
				t.Errorf("Signed(5) = %d, want %d", got, tt.want)
			}
			if !tt.kind.Valid() {
				t.Errorf("%s should be valid", tt.kind)
			}
		})
	}
	if MovementKind("TRANSFER").Valid() {
		t.Error("unknown kind reported as valid")
	}
}

func TestPaymentMethod_Valid(t *testing.T) {
	for _, m := range []PaymentMethod{PaymentCash, PaymentCard, PaymentCheck, PaymentTransfer} {
		if !m.Valid() {
			t.Errorf("%s should be valid", m)
		}
	}
	if PaymentMethod("BITCOIN").Valid() {
		t.Error("BITCOIN should not be valid")
	}
}

func TestProduct_PriceWithVAT(t *testing.T) {
	tests := []struct {
		name  string
		price string
		rate  string
		want  string
	}{
		{"20% VAT on €100", "100", "20", "120"},
		{"10% VAT on €50", "50", "10", "55"},
		{"0% VAT", "100", "0", "100"},
		{"5.5% VAT", "100", "5.5", "105.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Product{SalePrice: decimal.RequireFromString(tt.price), VATRate: decimal.RequireFromString(tt.rate)}
			if got := p.PriceWithVAT(); !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("PriceWithVAT() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSale_Change(t *testing.T) {
	s := &Sale{
		TotalTTC: decimal.RequireFromString("17.50"),
		Payments: []Payment{
			{Method: PaymentCard, Amount: decimal.RequireFromString("10")},
			{Method: PaymentCash, Amount: decimal.RequireFromString("10")},
		},
	}
	if got := s.PaidTotal(); !got.Equal(decimal.NewFromInt(20)) {
		t.Errorf("PaidTotal() = %s, want 20", got)
	}
	if got := s.Change(); !got.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("Change() = %s, want 2.5", got)
	}
}
