// Package domain holds the cart model and the login-time merge of a guest
// cart into a user's stored cart.
package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCart   = errors.New("invalid cart")
	ErrDuplicateLine = errors.New("item appears twice in cart")
)

const MaxLineQuantity = 100

// Line is one cart entry. Name, Price and PhotoRef are copies for offline
// rendering; only ItemID and Quantity matter for merging.
type Line struct {
	ItemID   string          `json:"itemId"`
	Quantity int             `json:"quantity"`
	Name     string          `json:"name,omitempty"`
	Price    decimal.Decimal `json:"price"`
	PhotoRef string          `json:"photoRef,omitempty"`
}

type Cart []Line

type MergeResult struct {
	Merged Cart `json:"merged"`
	ToPush Cart `json:"toPush"`
}

// Merge resolves a local cart against the stored one. A non-empty remote
// cart is the base and wins for every item present in both; local-only
// lines are appended and returned in ToPush. Quantities are never summed.
// An empty remote cart takes the whole local cart, which is pushed in full.
func Merge(remote, local Cart) MergeResult {
	if len(remote) == 0 {
		return MergeResult{
			Merged: append(Cart{}, local...),
			ToPush: append(Cart{}, local...),
		}
	}

	merged := append(make(Cart, 0, len(remote)+len(local)), remote...)
	toPush := Cart{}
	seen := make(map[string]bool, len(remote)+len(local))
	for _, l := range remote {
		seen[l.ItemID] = true
	}
	for _, l := range local {
		if seen[l.ItemID] {
			continue
		}
		seen[l.ItemID] = true
		merged = append(merged, l)
		toPush = append(toPush, l)
	}
	return MergeResult{Merged: merged, ToPush: toPush}
}

// Validate checks ids and quantities and rejects duplicate items.
func (c Cart) Validate() error {
	seen := make(map[string]bool, len(c))
	for i, l := range c {
		if strings.TrimSpace(l.ItemID) == "" {
			return fmt.Errorf("%w: line %d: itemId is required", ErrInvalidCart, i+1)
		}
		if l.Quantity < 1 || l.Quantity > MaxLineQuantity {
			return fmt.Errorf("%w: line %d: quantity %d, must be in range [1, %d]", ErrInvalidCart, i+1, l.Quantity, MaxLineQuantity)
		}
		if l.Price.IsNegative() {
			return fmt.Errorf("%w: line %d: price cannot be negative", ErrInvalidCart, i+1)
		}
		if seen[l.ItemID] {
			return fmt.Errorf("%w: %s", ErrDuplicateLine, l.ItemID)
		}
		seen[l.ItemID] = true
	}
	return nil
}
