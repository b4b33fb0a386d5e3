package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/linuxlewis/claude-usage/internal/config"
	"github.com/linuxlewis/claude-usage/internal/models"
	"github.com/linuxlewis/claude-usage/internal/services/usage"
	"github.com/linuxlewis/claude-usage/internal/ui/components"
	"github.com/linuxlewis/claude-usage/internal/ui/styles"
)

// View renders the application.
func (m *Model) View() string {
	if !m.ready {
		return m.spinner.View() + " Starting..."
	}

	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("Claude Usage"))
	b.WriteString("\n")

	b.WriteString(m.renderAccountStrip())
	b.WriteString("\n\n")

	if m.mode != inputNone {
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderUsage())

	if m.showHistory {
		b.WriteString("\n")
		b.WriteString(m.renderHistory())
	}

	if m.showHelp {
		b.WriteString("\n")
		b.WriteString(m.renderHelp())
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return styles.DocStyle.Render(b.String())
}

// renderAccountStrip renders the account labels with the active one
// highlighted.
func (m *Model) renderAccountStrip() string {
	if len(m.accounts) == 0 {
		return styles.HelpStyle.Render("No accounts yet. Press a to add one.")
	}

	var parts []string
	for _, acc := range m.accounts {
		if acc.ID == m.activeID {
			parts = append(parts, styles.ActiveAccountStyle.Render("● "+acc.Label))
		} else {
			parts = append(parts, styles.InactiveAccountStyle.Render("○ "+acc.Label))
		}
	}
	return strings.Join(parts, "   ")
}

// renderUsage renders the limit bars for the active account.
func (m *Model) renderUsage() string {
	if m.activeID == "" {
		return ""
	}

	acc := m.activeAccount()
	if acc != nil && !acc.IsConfigured() {
		return styles.WarningTextStyle.Render("Account not configured. Press s to set the session key, o for the org id.") + "\n"
	}

	if m.usage.ErrorState == usage.ErrorAuthExpired {
		banner := styles.AuthExpiredStyle.Render("Session expired. Press s to enter a new session key.")
		if m.usage.Snapshot == nil {
			return banner + "\n"
		}
		return banner + "\n\n" + m.renderBars()
	}

	if m.usage.Snapshot == nil {
		return m.spinner.View() + styles.HelpStyle.Render(" Fetching usage...") + "\n"
	}

	return m.renderBars()
}

func (m *Model) renderBars() string {
	width := m.width - 8
	if width < 40 {
		width = 40
	}

	var lines []string
	for _, limit := range m.usage.Snapshot.Limits() {
		lines = append(lines, components.UsageBar(
			limit.Limit.Utilization,
			limit.Name,
			m.resetAnnotation(limit),
			width,
		))
	}
	return strings.Join(lines, "\n") + "\n"
}

// resetAnnotation formats a limit's reset time per the configured
// display mode.
func (m *Model) resetAnnotation(limit models.NamedLimit) string {
	if limit.Limit.ResetsAt == nil {
		return ""
	}
	countdown := m.resetDisplay == config.ResetDisplayCountdown
	formatted := models.FormatReset(*limit.Limit.ResetsAt, m.now, countdown)
	if countdown {
		return "resets in " + formatted
	}
	return "resets " + formatted
}

func (m *Model) renderHistory() string {
	width := m.width - 16
	if width < 30 {
		width = 30
	}

	chart := components.RenderLineChart(m.history, width, 8, "Highest utilization %")

	var b strings.Builder
	b.WriteString(styles.SubTitleStyle.Render("History"))
	b.WriteString("\n")
	b.WriteString(chart)
	b.WriteString("\n")
	for _, row := range m.historyLog {
		line := fmt.Sprintf("  %s  high %3.0f%%  5h %3.0f%%  7d %3.0f%%",
			row.FetchedAt.Local().Format("Jan 2 15:04"),
			row.Highest, row.FiveHour, row.SevenDay)
		b.WriteString(styles.HelpStyle.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderHelp() string {
	rows := []struct{ key, desc string }{
		{"tab", "next account"},
		{"a", "add account"},
		{"n", "rename account"},
		{"d", "delete account"},
		{"s", "set session key"},
		{"o", "set org id"},
		{"r", "refresh now"},
		{"h", "toggle history"},
		{"t", "toggle reset display"},
		{"q", "quit"},
	}

	var lines []string
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("  %s  %s",
			styles.HelpKeyStyle.Width(4).Render(row.key),
			styles.HelpDescStyle.Render(row.desc)))
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m *Model) renderFooter() string {
	var parts []string

	if m.usage.Snapshot != nil && !m.usage.LastUpdated.IsZero() {
		updated := "Updated " + models.FormatAgo(m.usage.LastUpdated, m.now)
		if m.usage.ErrorState == usage.ErrorNetwork {
			updated = styles.StaleTextStyle.Render(updated + " (refresh failed)")
		}
		parts = append(parts, updated)
	}

	if len(m.history) > 1 {
		parts = append(parts, components.RenderSparkline(m.history, 16))
	}

	if m.statusText != "" {
		status := m.statusText
		if m.statusError {
			status = styles.ErrorTextStyle.Render(status)
		}
		parts = append(parts, status)
	}

	parts = append(parts, "? help")

	footer := strings.Join(parts, "  ·  ")
	if m.width > 4 {
		footer = ansi.Truncate(footer, m.width-4, "…")
	}
	return styles.FooterStyle.Render(footer)
}
