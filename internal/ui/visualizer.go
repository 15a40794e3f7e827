package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/radiobox/internal/sampler"
)

const barGlyph = '█'

// Span is the filled row range [Top, Bottom) of one visualizer column.
type Span struct {
	Top, Bottom int
}

// Visualizer lays out a band array on a width x height cell grid, one Span per column.
type Visualizer interface {
	Render(bands sampler.Bands, width, height int) []Span
}

// Bars draws each band as a column rising from the bottom edge.
type Bars struct{}

func (Bars) Render(bands sampler.Bands, width, height int) []Span {
	return renderColumns(bands, width, height, func(level int) Span {
		return Span{Top: height - level, Bottom: height}
	})
}

// Mirror draws each band centred vertically, growing up and down at once.
type Mirror struct{}

func (Mirror) Render(bands sampler.Bands, width, height int) []Span {
	return renderColumns(bands, width, height, func(level int) Span {
		top := (height - level) / 2
		return Span{Top: top, Bottom: top + level}
	})
}

// VisualizerFor returns the variant registered under name, falling back to Bars.
func VisualizerFor(name string) Visualizer {
	switch name {
	case "mirror":
		return Mirror{}
	default:
		return Bars{}
	}
}

func renderColumns(bands sampler.Bands, width, height int, span func(level int) Span) []Span {
	if width <= 0 || height <= 0 {
		return nil
	}

	spans := make([]Span, width)
	bandWidth := width / sampler.BandCount
	for x := range spans {
		band := x * sampler.BandCount / width
		// leave a one-column gap between bands when there is room for it
		if bandWidth >= 3 && (x+1)%bandWidth == 0 {
			continue
		}
		if level := bandLevel(bands[band], height); level > 0 {
			spans[x] = span(level)
		}
	}
	return spans
}

// bandLevel scales a band value in [0, sampler.BandHeight] to [0, height] rows.
func bandLevel(v uint8, height int) int {
	level := int(v) * height / sampler.BandHeight
	return min(level, height)
}

func (ui *UI) drawVisualizer(screen tcell.Screen, x, y, width, height int) {
	style := tcell.StyleDefault.Foreground(ui.colors.bands).Background(ui.colors.background)
	vis := VisualizerFor(ui.status.Visualizer)

	for col, span := range vis.Render(ui.bands, width, height) {
		for row := span.Top; row < span.Bottom; row++ {
			screen.SetContent(x+col, y+row, barGlyph, nil, style)
		}
	}
}

// nextStyle returns the style after current in cycle order.
func nextStyle(styles []string, current string) string {
	if len(styles) == 0 {
		return current
	}
	for i, s := range styles {
		if s == current {
			return styles[(i+1)%len(styles)]
		}
	}
	return styles[0]
}
