package pipeline

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/passbi/od_dashboard/internal/ingest"
	"github.com/passbi/od_dashboard/internal/models"
)

// ErrInvalidRequest wraps every query parsing failure
var ErrInvalidRequest = errors.New("invalid request")

// Request is the dashboard filter state as sent by the client.
// Nil volume bounds fall back to the bounds of the active table.
type Request struct {
	Modes        []models.Mode // tables to show, combined when more than one
	Origins      models.Selection
	Destinations models.Selection
	VolumeMin    *float64
	VolumeMax    *float64
	Metric       models.Metric
	ModeFilter   []models.Mode // restricts a combined table to some modes
}

// DefaultRequest selects everything for the dataset default mode
func DefaultRequest() Request {
	return Request{
		Origins:      models.SelectAll(),
		Destinations: models.SelectAll(),
		Metric:       models.MetricTotal,
	}
}

// ParseRequest reads a request from query values:
// modes, origins, destinations, volume_min, volume_max, metric, mode
func ParseRequest(q url.Values) (Request, error) {
	req := DefaultRequest()
	var err error

	req.Modes = parseModes(q.Get("modes"))
	req.ModeFilter = parseModes(q.Get("mode"))

	if req.Origins, err = parseSelection(q.Get("origins")); err != nil {
		return req, fmt.Errorf("%w: origins: %v", ErrInvalidRequest, err)
	}
	if req.Destinations, err = parseSelection(q.Get("destinations")); err != nil {
		return req, fmt.Errorf("%w: destinations: %v", ErrInvalidRequest, err)
	}
	if req.VolumeMin, err = parseBound(q.Get("volume_min")); err != nil {
		return req, fmt.Errorf("%w: volume_min: %v", ErrInvalidRequest, err)
	}
	if req.VolumeMax, err = parseBound(q.Get("volume_max")); err != nil {
		return req, fmt.Errorf("%w: volume_max: %v", ErrInvalidRequest, err)
	}
	if req.VolumeMin != nil && req.VolumeMax != nil && *req.VolumeMin > *req.VolumeMax {
		return req, fmt.Errorf("%w: volume_min %g is above volume_max %g", ErrInvalidRequest, *req.VolumeMin, *req.VolumeMax)
	}
	if req.Metric, err = models.ParseMetric(q.Get("metric")); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	return req, nil
}

// parseModes accepts full labels ("Coletivo") and keywords ("onibus")
func parseModes(s string) []models.Mode {
	var modes []models.Mode
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		modes = append(modes, ingest.InferMode(part))
	}
	return modes
}

func parseSelection(s string) (models.Selection, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "all", "todos":
		return models.SelectAll(), nil
	case "none":
		return models.SelectIDs(), nil
	}

	var ids []models.ZoneID
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.EqualFold(part, "all") || strings.EqualFold(part, "todos") {
			return models.SelectAll(), nil
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return models.Selection{}, fmt.Errorf("bad zone id %q", part)
		}
		ids = append(ids, models.ZoneID(id))
	}
	return models.SelectIDs(ids...), nil
}

func parseBound(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("bad number %q", s)
	}
	return &v, nil
}

// State resolves the request against the prepared table
func (r Request) State(p *Prepared) models.FilterState {
	state := models.FilterState{
		Origins:      r.Origins,
		Destinations: r.Destinations,
		Volume:       p.Bounds,
		Modes:        r.ModeFilter,
		Metric:       r.Metric,
	}
	if state.Metric == "" {
		state.Metric = models.MetricTotal
	}
	if r.VolumeMin != nil {
		state.Volume.Min = *r.VolumeMin
	}
	if r.VolumeMax != nil {
		state.Volume.Max = *r.VolumeMax
	}
	return state
}

// CanonicalKey renders the request so that equivalent requests share a key:
// selections are sorted and deduplicated, modes are ordered
func (r Request) CanonicalKey() string {
	metric := r.Metric
	if metric == "" {
		metric = models.MetricTotal
	}

	parts := []string{
		"modes=" + canonicalModes(r.Modes),
		"o=" + canonicalSelection(r.Origins),
		"d=" + canonicalSelection(r.Destinations),
		"vmin=" + canonicalBound(r.VolumeMin),
		"vmax=" + canonicalBound(r.VolumeMax),
		"metric=" + string(metric),
		"mode=" + canonicalModes(r.ModeFilter),
	}
	return strings.Join(parts, "&")
}

func canonicalModes(modes []models.Mode) string {
	if len(modes) == 0 {
		return "*"
	}
	seen := make(map[models.Mode]struct{}, len(modes))
	var out []models.Mode
	for _, m := range modes {
		if _, dup := seen[m]; !dup {
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	models.SortModes(out)
	return joinModes(out)
}

func canonicalSelection(sel models.Selection) string {
	if sel.All {
		return "all"
	}
	ids := append([]models.ZoneID(nil), sel.IDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var b strings.Builder
	var last models.ZoneID
	for i, id := range ids {
		if i > 0 && id == last {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(int64(id), 10))
		last = id
	}
	if b.Len() == 0 {
		return "none"
	}
	return b.String()
}

func canonicalBound(v *float64) string {
	if v == nil {
		return "*"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
