package syncagent

import (
	"strings"
	"testing"

	"orderhub/internal/order/domain/models"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
)

func TestBoardShowsOrders(t *testing.T) {
	b := NewBoard("Downtown")
	if !strings.Contains(b.View(), "no orders yet") {
		t.Fatalf("expected empty board, got:\n%s", b.View())
	}

	o := order("a", models.StatusReady, true, 2)
	o.Number = "ORD_20260101_001"
	o.Type = models.TypeTakeaway
	o.TotalPrice = decimal.RequireFromString("270")

	m, _ := b.Update(OrdersMsg{o})
	view := m.View()
	for _, want := range []string{"Downtown", "ORD_20260101_001", "packed", "270.00"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q on the board:\n%s", want, view)
		}
	}

	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}); cmd == nil {
		t.Fatal("expected q to quit")
	}
}
