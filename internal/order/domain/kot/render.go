package kot

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	ticketWidth  = 42
	nameColWidth = 22
)

var (
	ticketTitleStyle = lipgloss.NewStyle().Bold(true).Align(lipgloss.Center).Width(ticketWidth)
	ticketMetaStyle  = lipgloss.NewStyle().Width(ticketWidth)
	ticketRuleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	ticketBoxStyle   = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				Padding(0, 1)
)

// Render lays the ticket out as a printable document.
func Render(t Ticket) string {
	title := ticketTitleStyle.Render(t.RestaurantName)
	outlet := ticketTitleStyle.Render(t.OutletName)

	meta := []string{
		fmt.Sprintf("Order:    %s", t.OrderNumber),
		fmt.Sprintf("Type:     %s", t.OrderType),
	}
	if t.TableNumber != "" {
		meta = append(meta, fmt.Sprintf("Table:    %s", t.TableNumber))
	}
	meta = append(meta,
		fmt.Sprintf("Customer: %s", t.CustomerName),
		fmt.Sprintf("Printed:  %s", t.GeneratedAt.Format("2006-01-02 15:04")),
	)

	rule := ticketRuleStyle.Render(strings.Repeat("-", ticketWidth))

	items := make([]string, 0, len(t.Items)+1)
	items = append(items, fmt.Sprintf("%-*s %4s %12s", nameColWidth, "ITEM", "QTY", "PRICE"))
	for _, line := range t.Items {
		items = append(items, fmt.Sprintf("%-*s %4d %12s", nameColWidth, truncate(line.Name, nameColWidth), line.Quantity, line.UnitPrice.StringFixed(2)))
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		title,
		outlet,
		rule,
		ticketMetaStyle.Render(strings.Join(meta, "\n")),
		rule,
		strings.Join(items, "\n"),
	)
	return ticketBoxStyle.Render(body)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}
