package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/redmonkez12/fmea-api/internal/user"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(10)

	badgeStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

	roleBadges = map[user.Role]lipgloss.Style{
		user.RoleAdmin: badgeStyle.Foreground(lipgloss.Color("230")).Background(lipgloss.Color("166")),
		user.RoleUser:  badgeStyle.Foreground(lipgloss.Color("230")).Background(lipgloss.Color("24")),
	}

	verifiedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	unverifiedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

func roleBadge(r user.Role) string {
	style, ok := roleBadges[r]
	if !ok {
		style = badgeStyle
	}
	return style.Render(string(r))
}

func verification(verified bool) string {
	if verified {
		return verifiedStyle.Render("verified")
	}
	return unverifiedStyle.Render("pending")
}
