package pipeline

import (
	"fmt"

	"github.com/passbi/od_dashboard/internal/filter"
	"github.com/passbi/od_dashboard/internal/models"
	"github.com/passbi/od_dashboard/internal/render"
	"github.com/paulmach/orb/geojson"
)

// BuildOptions are the display settings of a dashboard
type BuildOptions struct {
	DisplayCap int
	Zoom       float64
}

// DefaultBuildOptions returns the 500 line cap and zoom 11
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{DisplayCap: filter.DefaultDisplayCap, Zoom: render.DefaultZoom}
}

// Summary is the text block under the maps
type Summary struct {
	TotalVolume    float64 `json:"total_volume"`
	RoundedTotal   int64   `json:"rounded_total"`
	TotalFormatted string  `json:"total_formatted"`
	Count          int     `json:"count"`
	Displayed      int     `json:"displayed"`
	Unresolved     int     `json:"unresolved"`
}

// DashboardView is everything the client needs to draw one dashboard state
type DashboardView struct {
	DatasetID string                     `json:"dataset_id"`
	Modes     []models.Mode              `json:"modes"`
	State     models.FilterState         `json:"state"`
	Bounds    models.VolumeRange         `json:"volume_bounds"`
	Options   filter.Options             `json:"options"`
	View      render.ViewState           `json:"view"`
	Flows     []render.FlowSegment       `json:"flows"`
	Zones     *geojson.FeatureCollection `json:"zones"`
	Labels    []render.Label             `json:"labels"`
	LegendMax float64                    `json:"legend_max"`
	Chart     []render.Bar               `json:"chart"`
	Summary   Summary                    `json:"summary"`
}

// Build applies the request to the prepared table and renders every payload.
// Totals and the chart use the whole filtered view; only flow lines are capped.
func Build(p *Prepared, req Request, opts BuildOptions) (*DashboardView, error) {
	view := filter.Apply(p.Enriched, req.State(p))
	display := filter.DisplaySubset(view, opts.DisplayCap)
	flows := render.FlowSegments(display)

	camera, err := render.View(p.Dataset.Registry, opts.Zoom)
	if err != nil {
		return nil, fmt.Errorf("failed to build view state: %w", err)
	}

	var selected models.Mode
	if len(p.Modes) == 1 {
		selected = p.Modes[0]
	}

	unresolved := 0
	for _, r := range view.Records {
		if !r.Resolved() {
			unresolved++
		}
	}

	metric := view.State.Metric
	return &DashboardView{
		DatasetID: p.Dataset.Info.ID,
		Modes:     p.Modes,
		State:     view.State,
		Bounds:    p.Bounds,
		Options:   p.Options,
		View:      camera,
		Flows:     flows,
		Zones:     render.Choropleth(p.Dataset.Registry, p.Totals, metric),
		Labels:    render.Labels(p.Dataset.Registry),
		LegendMax: render.LegendMax(p.Totals, metric),
		Chart:     render.BarChart(view, selected),
		Summary: Summary{
			TotalVolume:    view.TotalVolume,
			RoundedTotal:   view.RoundedTotal(),
			TotalFormatted: render.FormatTotal(view.RoundedTotal()),
			Count:          view.Count,
			Displayed:      len(flows),
			Unresolved:     unresolved,
		},
	}, nil
}
