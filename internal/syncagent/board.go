package syncagent

import (
	"fmt"
	"strings"

	"orderhub/internal/order/domain/lifecycle"
	"orderhub/internal/order/domain/models"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// OrdersMsg carries a fresh cache snapshot into the board.
type OrdersMsg []models.Order

var (
	boardTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	boardHead  = lipgloss.NewStyle().Bold(true).Underline(true)
	boardDim   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusTint = map[models.Status]lipgloss.Color{
		models.StatusPending:   "214",
		models.StatusConfirmed: "39",
		models.StatusPreparing: "141",
		models.StatusReady:     "42",
		models.StatusCancelled: "196",
	}
)

// Board is a terminal view of an agent's cache.
type Board struct {
	title  string
	orders []models.Order
}

func NewBoard(title string) Board {
	return Board{title: title}
}

func (b Board) Init() tea.Cmd {
	return nil
}

func (b Board) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return b, tea.Quit
		}
	case OrdersMsg:
		b.orders = msg
	}
	return b, nil
}

func (b Board) View() string {
	var sb strings.Builder
	sb.WriteString(boardTitle.Render(b.title))
	sb.WriteString("\n")
	sb.WriteString(boardHead.Render(fmt.Sprintf("%-18s %-9s %-18s %-8s %10s", "ORDER", "TYPE", "STATUS", "PAYMENT", "TOTAL")))
	sb.WriteString("\n")

	if len(b.orders) == 0 {
		sb.WriteString(boardDim.Render("no orders yet"))
		sb.WriteString("\n")
	}
	for _, o := range b.orders {
		label := lifecycle.Label(o.Type, o.Status)
		status := lipgloss.NewStyle().Foreground(statusTint[o.Status]).Render(fmt.Sprintf("%-18s", label))
		sb.WriteString(fmt.Sprintf("%-18s %-9s %s %-8s %10s\n",
			o.Number, o.Type, status, o.PaymentStatus, o.TotalPrice.StringFixed(2)))
	}

	sb.WriteString("\n")
	sb.WriteString(boardDim.Render("q to quit"))
	return sb.String()
}
