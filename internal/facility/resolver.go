package facility

import (
	"context"
	"fmt"

	"github.com/aegis-hfm/aegis-hfm/internal/shared"
)

// Resolver expands a requested aggregation scope into the effective facility
// ID set, bounded by the caller-supplied access scope. It is a pure function
// over externally supplied access data; it performs no authorization itself.
type Resolver struct {
	dir Directory
}

// NewResolver constructs the resolver.
func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve returns the facility IDs a statement should aggregate over.
//
// FACILITY requires requestedFacilityID and membership in the access scope.
// DISTRICT expands to the full accessible set. PROVINCE expands through the
// facility-district-province relation of the requested facility, intersected
// with accessibility; without a requested facility it behaves like DISTRICT.
func (r *Resolver) Resolve(ctx context.Context, level Level, requestedFacilityID *int64, scope shared.AccessScope) ([]int64, error) {
	if r == nil {
		return nil, fmt.Errorf("facility: resolver not initialised")
	}
	if !level.Valid() {
		return nil, ErrInvalidLevel
	}
	if scope.Empty() {
		return nil, fmt.Errorf("facility: empty access scope: %w", shared.ErrAccessDenied)
	}

	switch level {
	case LevelFacility:
		if requestedFacilityID == nil {
			return nil, ErrFacilityRequired
		}
		if !scope.Contains(*requestedFacilityID) {
			return nil, fmt.Errorf("facility %d: %w", *requestedFacilityID, shared.ErrAccessDenied)
		}
		return []int64{*requestedFacilityID}, nil

	case LevelDistrict:
		return scope.IDs(), nil

	case LevelProvince:
		if requestedFacilityID == nil {
			return scope.IDs(), nil
		}
		if r.dir == nil {
			return nil, fmt.Errorf("facility: directory required for province expansion")
		}
		anchor, err := r.dir.GetFacility(ctx, *requestedFacilityID)
		if err != nil {
			return nil, err
		}
		members, err := r.dir.FacilitiesInProvince(ctx, anchor.ProvinceID)
		if err != nil {
			return nil, fmt.Errorf("facility: expand province %d: %w", anchor.ProvinceID, err)
		}
		return scope.Intersect(members), nil
	}
	return nil, ErrInvalidLevel
}
