// Package components provides reusable UI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/linuxlewis/claude-usage/internal/logger"
	"github.com/linuxlewis/claude-usage/internal/ui/styles"
)

// RenderGradientBar renders the bar part with gradient colors. The
// gradient runs green to red as utilization climbs toward the limit.
func RenderGradientBar(percent float64, width int) string {
	if width < 1 {
		return ""
	}

	filled := int(float64(width) * percent / 100)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	var barChars []string
	for i := 0; i < width; i++ {
		if i < filled {
			t := float64(i) / float64(max(1, width-1))
			color := interpolateColor("#51cf66", "#ff6b6b", t)
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
			barChars = append(barChars, style.Render("█"))
		} else {
			style := lipgloss.NewStyle().Foreground(styles.Subtle)
			barChars = append(barChars, style.Render("░"))
		}
	}

	return strings.Join(barChars, "")
}

// UsageBar renders a labelled utilization bar with percentage and an
// optional trailing annotation such as the reset time.
func UsageBar(percent float64, label, annotation string, width int) string {
	const labelWidth = 16
	const percentWidth = 6

	annotationWidth := 0
	if annotation != "" {
		annotationWidth = len(annotation) + 2
	}

	barWidth := width - labelWidth - percentWidth - annotationWidth - 4
	if barWidth < 5 {
		barWidth = 5
	}

	bar := RenderGradientBar(percent, barWidth)

	labelStr := styles.ProgressLabelStyle.
		Width(labelWidth).
		Render(label)

	percentStr := styles.GetUsageStyle(percent).
		Width(percentWidth).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%.0f%%", percent))

	if annotation == "" {
		return fmt.Sprintf("%s [%s] %s", labelStr, bar, percentStr)
	}

	annotationStr := styles.HelpStyle.Render(annotation)
	return fmt.Sprintf("%s [%s] %s  %s", labelStr, bar, percentStr, annotationStr)
}

func interpolateColor(fromHex, toHex string, t float64) string {
	from := hexToRGB(fromHex)
	to := hexToRGB(toHex)

	r := int(float64(from[0]) + t*(float64(to[0])-float64(from[0])))
	g := int(float64(from[1]) + t*(float64(to[1])-float64(from[1])))
	b := int(float64(from[2]) + t*(float64(to[2])-float64(from[2])))

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hexToRGB(hex string) [3]int {
	hex = strings.TrimPrefix(hex, "#")
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		logger.Error("failed to parse hex color", "hex", hex, "error", err)
		return [3]int{0, 0, 0}
	}
	return [3]int{r, g, b}
}
