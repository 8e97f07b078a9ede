package zones

import (
	"errors"
	"fmt"

	"github.com/passbi/od_dashboard/internal/models"
)

var (
	// ErrMalformedGeometry matches any *MalformedGeometryError
	ErrMalformedGeometry = errors.New("malformed zone geometry")
	// ErrDuplicateZone matches any *DuplicateZoneError
	ErrDuplicateZone = errors.New("duplicate zone id")
	// ErrEmptyRegistry is returned when no zone could be registered
	ErrEmptyRegistry = errors.New("zone registry is empty")
)

// MalformedGeometryError reports a feature that cannot be registered as a zone.
// Index is the feature position in the collection.
type MalformedGeometryError struct {
	Index  int
	ZoneID models.ZoneID
	HasID  bool
	Reason string
}

func (e *MalformedGeometryError) Error() string {
	if e.HasID {
		return fmt.Sprintf("malformed geometry for zone %d (feature %d): %s", e.ZoneID, e.Index, e.Reason)
	}
	return fmt.Sprintf("malformed geometry at feature %d: %s", e.Index, e.Reason)
}

func (e *MalformedGeometryError) Is(target error) bool {
	return target == ErrMalformedGeometry
}

// DuplicateZoneError reports two features declaring the same zone id
type DuplicateZoneError struct {
	ID          models.ZoneID
	FirstIndex  int
	SecondIndex int
}

func (e *DuplicateZoneError) Error() string {
	return fmt.Sprintf("duplicate zone id %d (features %d and %d)", e.ID, e.FirstIndex, e.SecondIndex)
}

func (e *DuplicateZoneError) Is(target error) bool {
	return target == ErrDuplicateZone
}
