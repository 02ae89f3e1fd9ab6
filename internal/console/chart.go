package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/noah-isme/gema-exam-console/internal/dto"
	"github.com/noah-isme/gema-exam-console/internal/grading"
	"github.com/noah-isme/gema-exam-console/internal/results"
)

const chartBarWidth = 30

// ChartRenderer draws the score distribution histogram.
type ChartRenderer struct {
	bar   lipgloss.Style
	label lipgloss.Style
	count lipgloss.Style
}

// NewChartRenderer probes the terminal colour profile and builds the styles.
func NewChartRenderer() (*ChartRenderer, error) {
	renderer := lipgloss.DefaultRenderer()
	if renderer == nil {
		return nil, fmt.Errorf("no terminal renderer")
	}
	_ = renderer.ColorProfile()
	return &ChartRenderer{
		bar:   renderer.NewStyle().Foreground(lipgloss.Color("#3498db")),
		label: renderer.NewStyle().Foreground(lipgloss.Color("#7f8c8d")).Width(7),
		count: renderer.NewStyle().Bold(true),
	}, nil
}

// NewChartCapability wraps init in a lazily initialised handle.
func NewChartCapability(init func() (*ChartRenderer, error)) *results.Capability[*ChartRenderer] {
	if init == nil {
		init = NewChartRenderer
	}
	return results.NewCapability(init)
}

// Render draws one bar per bucket.
func (r *ChartRenderer) Render(distribution []int) string {
	peak := 0
	for _, n := range distribution {
		if n > peak {
			peak = n
		}
	}

	var b strings.Builder
	for i, n := range distribution {
		width := 0
		if peak > 0 {
			width = n * chartBarWidth / peak
		}
		if n > 0 && width == 0 {
			width = 1
		}
		b.WriteString(r.label.Render(bucketLabel(i)))
		b.WriteString(r.bar.Render(strings.Repeat("█", width)))
		b.WriteString(" ")
		b.WriteString(r.count.Render(fmt.Sprint(n)))
		b.WriteString("\n")
	}
	return b.String()
}

// renderChart shows a placeholder while the renderer loads and plain counts
// when it could not be initialised.
func renderChart(chart *results.Capability[*ChartRenderer], distribution []int) string {
	if len(distribution) == 0 {
		return ""
	}
	renderer, ok, err := chart.Peek()
	switch {
	case ok:
		return renderer.Render(distribution)
	case err != nil:
		parts := make([]string, len(distribution))
		for i, n := range distribution {
			parts[i] = fmt.Sprintf("%s:%d", bucketLabel(i), n)
		}
		return "distribution " + strings.Join(parts, " ") + "\n"
	default:
		return "loading chart...\n"
	}
}

func bucketLabel(i int) string {
	width := 2 * grading.MaxScore / dto.ScoreDistributionBuckets
	return fmt.Sprintf("%g-%g", float64(i)*width, float64(i+1)*width)
}
