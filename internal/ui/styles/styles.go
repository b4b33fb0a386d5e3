// Package styles defines the visual styling for the application.
package styles

import "github.com/charmbracelet/lipgloss"

// Color definitions for the theme.
var (
	// Primary colors
	Primary = lipgloss.Color("208") // Claude orange
	Subtle  = lipgloss.Color("240") // Gray

	// Status colors
	Success = lipgloss.Color("42")  // Green
	Error   = lipgloss.Color("196") // Red
	Warning = lipgloss.Color("220") // Yellow
	Info    = lipgloss.Color("39")  // Blue

	// Background colors
	BgDark  = lipgloss.Color("235")
	BgLight = lipgloss.Color("237")

	// Text colors
	TextPrimary   = lipgloss.Color("252")
	TextSecondary = lipgloss.Color("245")
	TextMuted     = lipgloss.Color("240")
)

// TitleStyle is used for main headings.
var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	MarginBottom(1)

// SubTitleStyle is used for section headings.
var SubTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(TextPrimary).
	MarginBottom(1)

// DocStyle provides consistent document margins.
var DocStyle = lipgloss.NewStyle().
	Margin(1, 2).
	Padding(0, 1)

// CardStyle creates a bordered card container.
var CardStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Subtle).
	Padding(1, 2).
	MarginBottom(1)

// CardTitleStyle styles card headers.
var CardTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	MarginBottom(1)

// ActiveAccountStyle marks the account currently being polled.
var ActiveAccountStyle = lipgloss.NewStyle().
	Foreground(Primary).
	Bold(true)

// InactiveAccountStyle styles accounts not currently selected.
var InactiveAccountStyle = lipgloss.NewStyle().
	Foreground(TextSecondary)

// ProgressLabelStyle styles progress bar labels.
var ProgressLabelStyle = lipgloss.NewStyle().
	Foreground(TextSecondary)

// HelpStyle is the base style for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(TextMuted)

// HelpKeyStyle styles keyboard shortcut keys.
var HelpKeyStyle = lipgloss.NewStyle().
	Foreground(Primary).
	Bold(true)

// HelpDescStyle styles help descriptions.
var HelpDescStyle = lipgloss.NewStyle().
	Foreground(TextSecondary)

// FooterStyle styles the status footer line.
var FooterStyle = lipgloss.NewStyle().
	Foreground(TextMuted).
	MarginTop(1)

// UsageLowStyle for comfortable utilization (<50%).
var UsageLowStyle = lipgloss.NewStyle().
	Foreground(Success)

// UsageMediumStyle for elevated utilization (50-80%).
var UsageMediumStyle = lipgloss.NewStyle().
	Foreground(Warning)

// UsageHighStyle for utilization approaching the limit (>=80%).
var UsageHighStyle = lipgloss.NewStyle().
	Foreground(Error)

// AuthExpiredStyle for the expired-session banner.
var AuthExpiredStyle = lipgloss.NewStyle().
	Foreground(Error).
	Bold(true)

// ErrorTextStyle for error messages.
var ErrorTextStyle = lipgloss.NewStyle().
	Foreground(Error)

// WarningTextStyle for warning messages.
var WarningTextStyle = lipgloss.NewStyle().
	Foreground(Warning)

// StaleTextStyle marks data that failed to refresh.
var StaleTextStyle = lipgloss.NewStyle().
	Foreground(Warning).
	Italic(true)

// GetUsageStyle returns the appropriate style for a utilization
// percentage. Higher utilization means closer to the limit.
func GetUsageStyle(percent float64) lipgloss.Style {
	switch {
	case percent >= 80:
		return UsageHighStyle
	case percent >= 50:
		return UsageMediumStyle
	default:
		return UsageLowStyle
	}
}

// CenterHorizontal centers content horizontally within a given width.
func CenterHorizontal(content string, width int) string {
	return lipgloss.NewStyle().Width(width).Align(lipgloss.Center).Render(content)
}
