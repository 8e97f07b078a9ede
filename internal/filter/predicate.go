package filter

import "github.com/passbi/od_dashboard/internal/models"

// Predicate is one dashboard filter.
// Predicates are combined conjunctively: a record is kept when all match.
type Predicate interface {
	Name() string
	Match(r models.EnrichedRecord) bool
}

// OriginIn keeps records whose origin is in the set
type OriginIn struct {
	IDs map[models.ZoneID]struct{}
}

func (p *OriginIn) Name() string {
	return "origin"
}

func (p *OriginIn) Match(r models.EnrichedRecord) bool {
	_, ok := p.IDs[r.Origin]
	return ok
}

// DestinationIn keeps records whose destination is in the set
type DestinationIn struct {
	IDs map[models.ZoneID]struct{}
}

func (p *DestinationIn) Name() string {
	return "destination"
}

func (p *DestinationIn) Match(r models.EnrichedRecord) bool {
	_, ok := p.IDs[r.Destination]
	return ok
}

// VolumeBetween keeps records with Min <= volume <= Max
type VolumeBetween struct {
	Range models.VolumeRange
}

func (p *VolumeBetween) Name() string {
	return "volume"
}

func (p *VolumeBetween) Match(r models.EnrichedRecord) bool {
	return p.Range.Contains(r.Volume)
}

// ModeIn keeps records labelled with one of the modes.
// Unlabelled records (single-mode tables) always match.
type ModeIn struct {
	Modes map[models.Mode]struct{}
}

func (p *ModeIn) Name() string {
	return "mode"
}

func (p *ModeIn) Match(r models.EnrichedRecord) bool {
	if r.Mode == "" {
		return true
	}
	_, ok := p.Modes[r.Mode]
	return ok
}

func idSet(ids []models.ZoneID) map[models.ZoneID]struct{} {
	set := make(map[models.ZoneID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Predicates builds the predicate chain for a filter state whose selections
// have already been expanded to literal ids
func Predicates(state models.FilterState) []Predicate {
	preds := []Predicate{
		&OriginIn{IDs: idSet(state.Origins.IDs)},
		&DestinationIn{IDs: idSet(state.Destinations.IDs)},
		&VolumeBetween{Range: state.Volume},
	}

	if len(state.Modes) > 0 {
		modes := make(map[models.Mode]struct{}, len(state.Modes))
		for _, m := range state.Modes {
			modes[m] = struct{}{}
		}
		preds = append(preds, &ModeIn{Modes: modes})
	}

	return preds
}

// MatchAll reports whether every predicate accepts the record
func MatchAll(preds []Predicate, r models.EnrichedRecord) bool {
	for _, p := range preds {
		if !p.Match(r) {
			return false
		}
	}
	return true
}
