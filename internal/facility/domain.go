package facility

import (
	"context"
	"errors"
)

// Facility is the organisational unit event data is recorded against.
// Hierarchy: facility belongs to a district, district to a province.
type Facility struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	DistrictID int64  `json:"district_id"`
	District   string `json:"district"`
	ProvinceID int64  `json:"province_id"`
	Province   string `json:"province"`
}

// Level is the organisational scope a statement is aggregated over.
type Level string

const (
	// LevelFacility scopes a statement to a single facility.
	LevelFacility Level = "FACILITY"
	// LevelDistrict scopes a statement to the caller's accessible district set.
	LevelDistrict Level = "DISTRICT"
	// LevelProvince expands to all accessible facilities in a province.
	LevelProvince Level = "PROVINCE"
)

// Valid reports whether the level is one of the supported scopes.
func (l Level) Valid() bool {
	switch l {
	case LevelFacility, LevelDistrict, LevelProvince:
		return true
	}
	return false
}

// Directory supplies facility metadata and hierarchy lookups.
type Directory interface {
	GetFacility(ctx context.Context, id int64) (Facility, error)
	FacilitiesInProvince(ctx context.Context, provinceID int64) ([]int64, error)
}

var (
	// ErrFacilityNotFound indicates the facility does not exist.
	ErrFacilityNotFound = errors.New("facility: not found")
	// ErrInvalidLevel indicates an unsupported aggregation level.
	ErrInvalidLevel = errors.New("facility: invalid aggregation level")
	// ErrFacilityRequired indicates FACILITY level without a facility ID.
	ErrFacilityRequired = errors.New("facility: facility id required for facility level")
)
