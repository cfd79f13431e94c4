package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"concierge/pkg/chat"
	"concierge/pkg/conn"
	"concierge/pkg/tasks"
)

// Theme defines the visual styling for the concierge TUI.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Muted     lipgloss.Color
}

// DefaultTheme returns the default theme.
func DefaultTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("12"),  // Blue
		Secondary: lipgloss.Color("14"),  // Cyan
		Success:   lipgloss.Color("10"),  // Green
		Warning:   lipgloss.Color("11"),  // Yellow
		Error:     lipgloss.Color("9"),   // Red
		Muted:     lipgloss.Color("240"), // Gray
	}
}

// ConnectionDot renders the connection indicator.
func (t Theme) ConnectionDot(s conn.State) string {
	color := t.Error
	switch s {
	case conn.Open:
		color = t.Success
	case conn.Connecting:
		color = t.Warning
	}
	return lipgloss.NewStyle().Foreground(color).Render("●") + " " + s.Indicator()
}

// UserLine renders an outgoing message with its delivery badge.
func (t Theme) UserLine(m *chat.Message) string {
	who := lipgloss.NewStyle().Foreground(t.Primary).Bold(true).Render("you")
	badge := m.Status.Badge()
	if m.Status == chat.StatusRead {
		badge = lipgloss.NewStyle().Foreground(t.Secondary).Render(badge)
	} else {
		badge = lipgloss.NewStyle().Foreground(t.Muted).Render(badge)
	}
	return who + ": " + m.Text + " " + badge
}

// SystemLine renders a message from the service.
func (t Theme) SystemLine(m *chat.Message) string {
	who := lipgloss.NewStyle().Foreground(t.Secondary).Bold(true).Render("concierge")
	return who + ": " + m.Text
}

// Card renders one task card on a single line plus an optional meta line.
func (t Theme) Card(c tasks.Card, selected bool) string {
	pill := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#ffffff")).
		Background(lipgloss.Color(c.StateColor)).
		Padding(0, 1).
		Render(string(c.State))

	heading := lipgloss.NewStyle()
	if c.Done {
		heading = heading.Strikethrough(true).Faint(true)
	}
	line := pill + " " + heading.Render(c.Heading)
	if c.Priority != "" {
		line += " " + lipgloss.NewStyle().Foreground(lipgloss.Color(c.PriorityColor)).Bold(true).Render("#"+c.Priority)
	}

	cursor := "  "
	if selected {
		cursor = lipgloss.NewStyle().Foreground(t.Primary).Render("▸ ")
	}
	out := cursor + line
	if c.Meta != "" {
		out += "\n    " + lipgloss.NewStyle().Foreground(t.Muted).Render(c.Meta)
	}
	return out
}

// plainCard renders a card without styling for line mode and one-shot output.
func plainCard(c tasks.Card) string {
	var b strings.Builder
	b.WriteString("[" + string(c.State) + "] ")
	if c.Done {
		b.WriteString("~" + c.Heading + "~")
	} else {
		b.WriteString(c.Heading)
	}
	if c.Priority != "" {
		b.WriteString(" #" + c.Priority)
	}
	if c.ID != "" {
		b.WriteString("  (" + c.ID + ")")
	}
	if c.Meta != "" {
		b.WriteString("\n    " + c.Meta)
	}
	return b.String()
}
