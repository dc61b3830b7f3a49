package display

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// DefaultGaugeWidth is the number of cells in a rendered gauge bar.
const DefaultGaugeWidth = 30

// Gauge bar cells.
const (
	cellNeedle = "●"
	cellBand   = "▓"
	cellScale  = "─"
)

var (
	labelStyle  = lipgloss.NewStyle().Width(8).Foreground(lipgloss.Color("8"))
	valueStyle  = lipgloss.NewStyle().Width(10).Bold(true)
	bandStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	needleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	onStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	offStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// Renderer draws a Model as a block of terminal text.
type Renderer struct {
	GaugeWidth int
}

// NewRenderer creates a Renderer with DefaultGaugeWidth.
func NewRenderer() *Renderer {
	return &Renderer{GaugeWidth: DefaultGaugeWidth}
}

// Render returns the dashboard for one frame.
func (r *Renderer) Render(m Model, shotLabel string, online bool) string {
	width := r.GaugeWidth
	if width < 2 {
		width = DefaultGaugeWidth
	}

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#000000")).
		Background(lipgloss.Color(m.Background.Hex())).
		Padding(0, 2).
		Width(width + 30).
		Render(m.Label)

	temp := lipgloss.JoinHorizontal(lipgloss.Top,
		labelStyle.Render("Temp"),
		valueStyle.Render(fmt.Sprintf("%.1f°C", m.Temperature.Needle)),
		renderBar(m.Temperature, width),
		dimStyle.Render(fmt.Sprintf("  set %.1f", (m.Temperature.Band.Start+m.Temperature.Band.End)/2)),
	)
	press := lipgloss.JoinHorizontal(lipgloss.Top,
		labelStyle.Render("Press"),
		valueStyle.Render(fmt.Sprintf("%.1fbar", m.Pressure.Needle)),
		renderBar(m.Pressure, width),
	)

	heater := offStyle.Render("[ OFF ]")
	if m.HeaterSwitch {
		heater = onStyle.Render("[ ON  ]")
	}
	link := errStyle.Render("offline")
	if online {
		link = onStyle.Render("online")
	}
	footer := strings.Join([]string{
		labelStyle.Render("Heater") + heater,
		shotLabel,
		fmt.Sprintf("Vol %.0fml", m.ShotVolumeML),
		"MQTT " + link,
	}, "   ")

	return lipgloss.JoinVertical(lipgloss.Left, header, "", temp, press, "", footer)
}

// renderBar draws [min ───▓▓●▓─── max] for g.
func renderBar(g Gauge, width int) string {
	span := g.Max - g.Min
	needle := -1
	if span > 0 && !math.IsNaN(g.Needle) {
		pos := (g.Needle - g.Min) / span * float64(width)
		needle = int(math.Floor(pos))
		if needle < 0 {
			needle = 0
		}
		if needle > width-1 {
			needle = width - 1
		}
	}

	var b strings.Builder
	b.WriteString(dimStyle.Render(fmt.Sprintf("%3.0f ", g.Min)))
	for i := 0; i < width; i++ {
		v := g.Min + (float64(i)+0.5)*span/float64(width)
		switch {
		case i == needle:
			b.WriteString(needleStyle.Render(cellNeedle))
		case v >= g.Band.Start && v <= g.Band.End:
			b.WriteString(bandStyle.Render(cellBand))
		default:
			b.WriteString(dimStyle.Render(cellScale))
		}
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf(" %.0f", g.Max)))
	return b.String()
}
