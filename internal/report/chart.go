package report

import (
	"fmt"
	"math"
	"strings"
)

// ════════════════════════════════════════════════════════════════════
// SVG Chart Generator
// ════════════════════════════════════════════════════════════════════

// ChartConfig holds rendering parameters for SVG charts.
type ChartConfig struct {
	Width        int    // SVG width in pixels (default: 640)
	Height       int    // SVG height in pixels (default: 320)
	MarginTop    int    // top margin
	MarginRight  int    // right margin
	MarginBottom int    // bottom margin
	MarginLeft   int    // left margin
	BgColor      string // background color
	GridColor    string // reference line color
	TextColor    string // label color
	FontSize     int    // label font size
	Title        string // chart title
}

// DefaultChartConfig returns sensible defaults for chart rendering.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:        640,
		Height:       320,
		MarginTop:    40,
		MarginRight:  60,
		MarginBottom: 20,
		MarginLeft:   120,
		BgColor:      "#ffffff",
		GridColor:    "#bdbdbd",
		TextColor:    "#333333",
		FontSize:     11,
	}
}

// plotArea returns the usable drawing area dimensions.
func (c ChartConfig) plotArea() (x, y, w, h int) {
	return c.MarginLeft, c.MarginTop,
		c.Width - c.MarginLeft - c.MarginRight,
		c.Height - c.MarginTop - c.MarginBottom
}

// ════════════════════════════════════════════════════════════════════
// Accuracy Bar Chart (Horizontal)
// ════════════════════════════════════════════════════════════════════

// BarItem is one bar of an accuracy chart.
type BarItem struct {
	Label string
	Value float64 // percent, 0-100
	Count int     // records behind the value
}

// AccuracyBarChart draws one horizontal bar per item on a fixed 0-100%
// scale with a dashed reference line at ref (e.g. the always-positive
// baseline). Bars at or above ref are green, the rest red.
func AccuracyBarChart(items []BarItem, ref float64, cfg ChartConfig) string {
	if len(items) == 0 {
		return emptySVG(cfg, "No data")
	}
	if cfg.Width == 0 {
		title := cfg.Title
		cfg = DefaultChartConfig()
		cfg.Title = title
	}
	// Grow the canvas so bars never get thinner than 12px.
	if need := cfg.MarginTop + cfg.MarginBottom + 18*len(items); cfg.Height < need {
		cfg.Height = need
	}

	px, py, pw, ph := cfg.plotArea()
	barH := math.Min(float64(ph)/float64(len(items))*0.7, 24)
	gap := (float64(ph) - barH*float64(len(items))) / float64(len(items)+1)

	var sb strings.Builder
	sb.WriteString(svgHeader(cfg))
	sb.WriteString(fmt.Sprintf(`<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`,
		cfg.Width, cfg.Height, cfg.BgColor))
	if cfg.Title != "" {
		sb.WriteString(fmt.Sprintf(`<text x="%d" y="20" font-size="14" font-weight="bold" fill="%s" text-anchor="middle">%s</text>`,
			cfg.Width/2, cfg.TextColor, escapeXML(cfg.Title)))
	}

	for i, item := range items {
		v := clampPct(item.Value)
		by := float64(py) + gap + float64(i)*(barH+gap)
		bw := v / 100 * float64(pw)
		color := "#4caf50"
		if v < ref {
			color = "#ef5350"
		}
		sb.WriteString(fmt.Sprintf(`<rect x="%d" y="%.1f" width="%.1f" height="%.1f" fill="%s" rx="2"/>`,
			px, by, bw, barH, color))
		sb.WriteString(fmt.Sprintf(`<text x="%d" y="%.1f" font-size="%d" fill="%s" text-anchor="end">%s</text>`,
			px-5, by+barH/2+4, cfg.FontSize, cfg.TextColor, escapeXML(item.Label)))
		sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" font-size="%d" fill="%s">%.1f%% (n=%d)</text>`,
			float64(px)+bw+5, by+barH/2+4, cfg.FontSize, cfg.TextColor, item.Value, item.Count))
	}

	if ref > 0 {
		rx := float64(px) + clampPct(ref)/100*float64(pw)
		sb.WriteString(fmt.Sprintf(`<line x1="%.1f" y1="%d" x2="%.1f" y2="%d" stroke="%s" stroke-width="1" stroke-dasharray="4,3"/>`,
			rx, py, rx, py+ph, cfg.GridColor))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// ════════════════════════════════════════════════════════════════════
// Gauge / Dial Chart
// ════════════════════════════════════════════════════════════════════

// GaugeChart generates an SVG semicircular gauge for a 0-100 value such as
// direction accuracy.
func GaugeChart(value float64, label string, width int) string {
	if width == 0 {
		width = 200
	}
	height := width/2 + 30

	cx := float64(width) / 2
	cy := float64(width)/2 - 10
	radius := float64(width)/2 - 20

	value = clampPct(value)

	// Angle: 180° (left) to 0° (right), value maps 0→180°, 100→0°
	angle := math.Pi - (value/100)*math.Pi
	needleX := cx + radius*0.85*math.Cos(angle)
	needleY := cy - radius*0.85*math.Sin(angle)

	var color string
	switch {
	case value < 45:
		color = "#ef5350"
	case value < 55:
		color = "#ff9800"
	case value < 65:
		color = "#ffc107"
	default:
		color = "#4caf50"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, width, height, width, height))
	sb.WriteString(fmt.Sprintf(`<rect width="%d" height="%d" fill="white"/>`, width, height))

	sb.WriteString(fmt.Sprintf(`<path d="M%.1f,%.1f A%.1f,%.1f 0 0,1 %.1f,%.1f" fill="none" stroke="#e0e0e0" stroke-width="12" stroke-linecap="round"/>`,
		cx-radius, cy, radius, radius, cx+radius, cy))

	endX := cx + radius*math.Cos(angle)
	endY := cy - radius*math.Sin(angle)
	largeArc := 0
	if value > 50 {
		largeArc = 1
	}
	sb.WriteString(fmt.Sprintf(`<path d="M%.1f,%.1f A%.1f,%.1f 0 %d,1 %.1f,%.1f" fill="none" stroke="%s" stroke-width="12" stroke-linecap="round"/>`,
		cx-radius, cy, radius, radius, largeArc, endX, endY, color))

	sb.WriteString(fmt.Sprintf(`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#333" stroke-width="2"/>`,
		cx, cy, needleX, needleY))
	sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="5" fill="#333"/>`, cx, cy))

	sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" font-size="22" font-weight="bold" fill="%s" text-anchor="middle">%.1f</text>`,
		cx, cy+25, color, value))

	sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%d" font-size="11" fill="#666" text-anchor="middle">%s</text>`,
		cx, height-5, escapeXML(label)))

	sb.WriteString("</svg>")
	return sb.String()
}

// ════════════════════════════════════════════════════════════════════
// SVG Helpers
// ════════════════════════════════════════════════════════════════════

func clampPct(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func svgHeader(cfg ChartConfig) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height)
}

func emptySVG(cfg ChartConfig, msg string) string {
	if cfg.Width == 0 {
		cfg.Width = 400
	}
	if cfg.Height == 0 {
		cfg.Height = 200
	}
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d"><rect width="%d" height="%d" fill="#f5f5f5"/><text x="%d" y="%d" text-anchor="middle" fill="#999" font-size="14">%s</text></svg>`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height, cfg.Width/2, cfg.Height/2, escapeXML(msg))
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}
