package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
)

func TestNewSpinner(t *testing.T) {
	s := NewSpinner("Loading")
	if s.label != "Loading" {
		t.Error("Spinner label mismatch")
	}
}

func TestSpinnerMethods(t *testing.T) {
	s := NewSpinner("Init")

	s.SetLabel("Fetching usage")
	if s.label != "Fetching usage" {
		t.Errorf("label = %s, want Fetching usage", s.label)
	}

	if s.View() == "" {
		t.Error("View returned empty")
	}
	if s.ViewWithLabel() == "" {
		t.Error("ViewWithLabel returned empty")
	}
	if s.Init() == nil {
		t.Error("Init should return command")
	}
	if s.Tick() == nil {
		t.Error("Tick should return command")
	}

	_, cmd := s.Update(spinner.TickMsg{})
	if cmd == nil {
		t.Error("Update should return command for tick")
	}
}

func TestRenderGradientBar(t *testing.T) {
	if s := RenderGradientBar(50, 0); s != "" {
		t.Errorf("zero width bar = %q, want empty", s)
	}

	full := RenderGradientBar(100, 10)
	if strings.Contains(full, "░") {
		t.Error("full bar should have no empty cells")
	}
	if !strings.Contains(full, "█") {
		t.Error("full bar should contain filled cells")
	}

	empty := RenderGradientBar(0, 10)
	if strings.Contains(empty, "█") {
		t.Error("empty bar should have no filled cells")
	}

	// Out-of-range values are clamped rather than panicking.
	if s := RenderGradientBar(150, 10); strings.Contains(s, "░") {
		t.Error("over-limit bar should render fully filled")
	}
	if s := RenderGradientBar(-5, 10); strings.Contains(s, "█") {
		t.Error("negative bar should render fully empty")
	}
}

func TestUsageBar(t *testing.T) {
	s := UsageBar(75, "Session (5h)", "", 60)
	if !strings.Contains(s, "Session (5h)") {
		t.Error("bar should contain the label")
	}
	if !strings.Contains(s, "75%") {
		t.Error("bar should contain the percentage")
	}
}

func TestUsageBarWithAnnotation(t *testing.T) {
	s := UsageBar(40, "Weekly (7d)", "resets 3:04 PM", 80)
	if !strings.Contains(s, "resets 3:04 PM") {
		t.Error("bar should contain the annotation")
	}
}

func TestRenderLineChart(t *testing.T) {
	data := []float64{10, 20, 30, 40}
	s := RenderLineChart(data, 30, 5, "Usage")
	if s == "" {
		t.Error("RenderLineChart returned empty")
	}

	empty := RenderLineChart(nil, 30, 5, "Usage")
	if !strings.Contains(empty, "No history") {
		t.Errorf("empty chart = %q, want placeholder", empty)
	}
}

func TestRenderSparkline(t *testing.T) {
	if s := RenderSparkline(nil, 10); s != "" {
		t.Errorf("empty sparkline = %q, want empty", s)
	}

	s := RenderSparkline([]float64{1, 2, 3}, 10)
	if s == "" {
		t.Error("RenderSparkline returned empty")
	}

	if s := RenderSparkline(make([]float64, 5), 10); s == "" {
		t.Error("all-zero sparkline should still render")
	}
}
