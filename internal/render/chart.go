package render

import (
	"fmt"
	"strconv"

	"github.com/passbi/od_dashboard/internal/filter"
	"github.com/passbi/od_dashboard/internal/models"
	"github.com/passbi/od_dashboard/internal/zones"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultZoom is the initial map zoom level
const DefaultZoom = 11

// Bar is one entry of the volume-by-pair chart
type Bar struct {
	Pair   string      `json:"pair"`
	Volume float64     `json:"volume"`
	Mode   models.Mode `json:"modo"`
}

// BarChart returns one bar per filtered record, uncapped.
// Records without a mode label take the selected mode.
func BarChart(view filter.FilteredView, selected models.Mode) []Bar {
	bars := make([]Bar, 0, len(view.Records))
	for _, r := range view.Records {
		mode := r.Mode
		if mode == "" {
			mode = selected
		}
		bars = append(bars, Bar{Pair: r.Pair(), Volume: r.Volume, Mode: mode})
	}
	return bars
}

// ViewState is the initial camera of the map
type ViewState struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      float64 `json:"zoom"`
	Pitch     float64 `json:"pitch"`
}

// View centers the map on the mean of all zone centroids
func View(reg *zones.Registry, zoom float64) (ViewState, error) {
	center, err := reg.MeanCenter()
	if err != nil {
		return ViewState{}, fmt.Errorf("failed to center map: %w", err)
	}
	if zoom <= 0 {
		zoom = DefaultZoom
	}
	return ViewState{Latitude: center.Lat, Longitude: center.Lon, Zoom: zoom}, nil
}

// FormatTotal renders an integer with pt-BR thousands grouping ("1.234.567")
func FormatTotal(n int64) string {
	return message.NewPrinter(language.BrazilianPortuguese).Sprintf("%d", n)
}

func formatID(id models.ZoneID) string {
	return strconv.FormatInt(int64(id), 10)
}
