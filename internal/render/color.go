package render

import (
	"math"

	"github.com/passbi/od_dashboard/internal/matrix"
	"github.com/passbi/od_dashboard/internal/models"
)

// RGBA is a color as consumed by the map layers
type RGBA [4]uint8

var (
	// ZoneFill is the base layer fill of every zone polygon
	ZoneFill = RGBA{200, 200, 200, 50}
	// FlowColor is the color of flow lines
	FlowColor = RGBA{255, 0, 0, 128}
	// LabelColor is the color of zone id labels
	LabelColor = RGBA{0, 0, 0, 255}
)

const (
	choroplethAlpha = 180
	LabelSize       = 14
	FlowWidth       = 2
)

// ColorScale maps a value to a white-to-red ramp:
// [255, 255(1-v/max), 255(1-v/max), 180]
func ColorScale(value, maxValue float64) RGBA {
	if maxValue <= 0 {
		maxValue = 1
	}

	ratio := value / maxValue
	if math.IsNaN(ratio) || ratio < 0 {
		ratio = 0
	} else if ratio > 1 {
		ratio = 1
	}

	fade := uint8(math.Round(255 * (1 - ratio)))
	return RGBA{255, fade, fade, choroplethAlpha}
}

// LegendMax returns the largest metric value over all zones, or 1 when every zone is zero
func LegendMax(totals matrix.ZoneTotals, metric models.Metric) float64 {
	maxValue := totals.Max(metric)
	if maxValue == 0 {
		return 1
	}
	return maxValue
}
