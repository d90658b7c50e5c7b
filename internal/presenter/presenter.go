// Package presenter turns analysis results into display models. It has no
// side effects.
package presenter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/raine/skinalyzer-bot/internal/analysis"
)

const barWidth = 20

// Bar is one proportional probability bar.
type Bar struct {
	Class   string
	Percent float64 // verbatim from the service
	Fill    float64 // Percent clamped to 0..100, for drawing only
}

// DisplayModel is everything a front end needs to render a result.
type DisplayModel struct {
	Label      string
	Confidence float64
	Bars       []Bar
	Tips       string
}

// Present maps result into a DisplayModel. Bars keep the service's order and
// percentages are not renormalized. A nil result yields nil.
func Present(result *analysis.Result) *DisplayModel {
	if result == nil {
		return nil
	}
	bars := make([]Bar, 0, len(result.Probabilities))
	for _, p := range result.Probabilities {
		bars = append(bars, Bar{
			Class:   p.Class,
			Percent: p.Percent,
			Fill:    clamp(p.Percent),
		})
	}
	return &DisplayModel{
		Label:      result.Label,
		Confidence: result.ConfidencePercent,
		Bars:       bars,
		Tips:       result.Tips,
	}
}

// Total is the sum of the displayed percentages. It is whatever the service
// returned and need not be 100.
func (m *DisplayModel) Total() float64 {
	var sum float64
	for _, b := range m.Bars {
		sum += b.Percent
	}
	return sum
}

// FormatPercent prints p without trailing zeros ("92", "3.5").
func FormatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64) + "%"
}

// TextBar draws fill as a fixed width bar of block characters. Fill outside
// 0..100 draws an empty or full bar.
func TextBar(fill float64) string {
	n := int(clamp(fill)/100*barWidth + 0.5)
	return strings.Repeat("█", n) + strings.Repeat("░", barWidth-n)
}

// Render produces a plain text rendering of m.
func Render(m *DisplayModel) string {
	if m == nil {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\nConfidence: %s\n", m.Label, FormatPercent(m.Confidence))
	if len(m.Bars) > 0 {
		sb.WriteString("\n")
	}
	for _, b := range m.Bars {
		fmt.Fprintf(&sb, "%s %s\n%s\n", b.Class, FormatPercent(b.Percent), TextBar(b.Fill))
	}
	if m.Tips != "" {
		fmt.Fprintf(&sb, "\n💡 %s\n", m.Tips)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func clamp(p float64) float64 {
	switch {
	case p < 0 || math.IsNaN(p):
		return 0
	case p > 100:
		return 100
	}
	return p
}
