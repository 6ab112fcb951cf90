package domain

import (
	"errors"
	"testing"
)

func line(id string, qty int) Line {
	return Line{ItemID: id, Quantity: qty}
}

func assertCart(t *testing.T, name string, got Cart, want ...Line) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: expected %d lines, got %d: %+v", name, len(want), len(got), got)
	}
	for i := range want {
		if got[i].ItemID != want[i].ItemID || got[i].Quantity != want[i].Quantity {
			t.Fatalf("%s[%d]: expected %s:%d, got %s:%d", name, i, want[i].ItemID, want[i].Quantity, got[i].ItemID, got[i].Quantity)
		}
	}
}

func TestMergeRemoteWinsAndLocalOnlyIsPushed(t *testing.T) {
	remote := Cart{line("A", 1), line("C", 3)}
	local := Cart{line("A", 2), line("B", 1)}

	res := Merge(remote, local)

	assertCart(t, "merged", res.Merged, line("A", 1), line("C", 3), line("B", 1))
	assertCart(t, "toPush", res.ToPush, line("B", 1))
}

func TestMergeEmptyRemoteTakesLocal(t *testing.T) {
	local := Cart{line("A", 2), line("B", 1)}

	res := Merge(nil, local)

	assertCart(t, "merged", res.Merged, local...)
	assertCart(t, "toPush", res.ToPush, local...)
}

func TestMergeBothEmpty(t *testing.T) {
	res := Merge(Cart{}, nil)
	if res.Merged == nil || res.ToPush == nil {
		t.Fatal("expected empty, non-nil carts")
	}
	assertCart(t, "merged", res.Merged)
	assertCart(t, "toPush", res.ToPush)
}

func TestMergeEmptyLocalKeepsRemote(t *testing.T) {
	remote := Cart{line("A", 1)}
	res := Merge(remote, nil)
	assertCart(t, "merged", res.Merged, line("A", 1))
	assertCart(t, "toPush", res.ToPush)
}

func TestMergeIsIdempotent(t *testing.T) {
	remote := Cart{line("A", 1), line("C", 3)}
	local := Cart{line("A", 2), line("B", 1)}

	first := Merge(remote, local)
	second := Merge(first.Merged, local)

	assertCart(t, "merged", second.Merged, first.Merged...)
	assertCart(t, "toPush", second.ToPush)
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	remote := make(Cart, 1, 4)
	remote[0] = line("A", 1)
	local := Cart{line("B", 1)}

	res := Merge(remote, local)
	res.Merged[0].Quantity = 99
	if remote[0].Quantity != 1 {
		t.Fatal("merge result aliases the remote cart")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cart Cart
		want error
	}{
		{"ok", Cart{line("A", 1), line("B", 2)}, nil},
		{"missing id", Cart{line(" ", 1)}, ErrInvalidCart},
		{"zero quantity", Cart{line("A", 0)}, ErrInvalidCart},
		{"duplicate", Cart{line("A", 1), line("A", 2)}, ErrDuplicateLine},
	}
	for _, tt := range tests {
		err := tt.cart.Validate()
		if tt.want == nil && err != nil {
			t.Fatalf("%s: unexpected error %v", tt.name, err)
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}
