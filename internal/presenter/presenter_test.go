package presenter

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raine/skinalyzer-bot/internal/analysis"
)

func acneResult() *analysis.Result {
	return &analysis.Result{
		Label:             "Acne",
		ConfidencePercent: 92,
		Probabilities: analysis.Probabilities{
			{Class: "Acne", Percent: 92},
			{Class: "Eczema", Percent: 3},
			{Class: "Fungal Infection", Percent: 2},
			{Class: "Healthy", Percent: 3},
		},
		Tips: "Use non-comedogenic products and wash your face twice a day.",
	}
}

func TestPresent_AcneScenario(t *testing.T) {
	m := Present(acneResult())
	require.NotNil(t, m)

	assert.Equal(t, "Acne", m.Label)
	assert.Equal(t, 92.0, m.Confidence)
	require.Len(t, m.Bars, 4)
	assert.Equal(t, []string{"Acne", "Eczema", "Fungal Infection", "Healthy"}, []string{
		m.Bars[0].Class, m.Bars[1].Class, m.Bars[2].Class, m.Bars[3].Class,
	})
	assert.Equal(t, 100.0, m.Total())
	assert.Equal(t, acneResult().Tips, m.Tips)
}

func TestPresent_Nil(t *testing.T) {
	assert.Nil(t, Present(nil))
	assert.Equal(t, "", Render(nil))
}

func TestPresent_NoRenormalization(t *testing.T) {
	m := Present(&analysis.Result{
		Label:             "Eczema",
		ConfidencePercent: 40,
		Probabilities: analysis.Probabilities{
			{Class: "Eczema", Percent: 40},
			{Class: "Acne", Percent: 130},
			{Class: "Healthy", Percent: -5},
		},
	})
	assert.Equal(t, 165.0, m.Total())
	assert.Equal(t, 130.0, m.Bars[1].Percent)
	assert.Equal(t, 100.0, m.Bars[1].Fill)
	assert.Equal(t, -5.0, m.Bars[2].Percent)
	assert.Equal(t, 0.0, m.Bars[2].Fill)
}

func TestRender(t *testing.T) {
	text := Render(Present(acneResult()))

	assert.True(t, strings.HasPrefix(text, "Acne\nConfidence: 92%"))
	assert.Contains(t, text, "Fungal Infection 2%")
	assert.Contains(t, text, "💡 Use non-comedogenic")

	// Bars appear in service order
	assert.Less(t, strings.Index(text, "Eczema 3%"), strings.Index(text, "Healthy 3%"))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "92%", FormatPercent(92))
	assert.Equal(t, "3.25%", FormatPercent(3.25))
	assert.Equal(t, "0%", FormatPercent(0))
}

func TestTextBar(t *testing.T) {
	assert.Equal(t, strings.Repeat("░", barWidth), TextBar(0))
	assert.Equal(t, strings.Repeat("█", barWidth), TextBar(100))
	assert.Equal(t, strings.Repeat("█", 10)+strings.Repeat("░", 10), TextBar(50))

	assert.Equal(t, strings.Repeat("█", barWidth), TextBar(150))
	assert.Equal(t, strings.Repeat("░", barWidth), TextBar(-40))
	assert.Equal(t, strings.Repeat("░", barWidth), TextBar(math.NaN()))
}
