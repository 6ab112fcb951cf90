package mongo

import (
	"testing"

	"orderhub/internal/cart/domain"

	"github.com/shopspring/decimal"
)

func TestLineDocKeepsPricePrecision(t *testing.T) {
	l := domain.Line{ItemID: "A", Quantity: 2, Name: "Baklava", Price: decimal.RequireFromString("4.10")}

	got, err := fromDoc(toDoc(l))
	if err != nil {
		t.Fatalf("fromDoc returned error: %v", err)
	}
	if !got.Price.Equal(l.Price) || got.ItemID != "A" || got.Quantity != 2 {
		t.Fatalf("unexpected line %+v", got)
	}

	if _, err := fromDoc(lineDoc{ItemID: "B", Price: "abc"}); err == nil {
		t.Fatal("expected malformed price to fail")
	}
}
