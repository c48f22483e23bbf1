package facility

import (
	"context"
	"errors"
	"testing"

	"github.com/aegis-hfm/aegis-hfm/internal/shared"
)

type fakeDirectory struct {
	facilities map[int64]Facility
	provinces  map[int64][]int64
}

func (f *fakeDirectory) GetFacility(ctx context.Context, id int64) (Facility, error) {
	fac, ok := f.facilities[id]
	if !ok {
		return Facility{}, ErrFacilityNotFound
	}
	return fac, nil
}

func (f *fakeDirectory) FacilitiesInProvince(ctx context.Context, provinceID int64) ([]int64, error) {
	return f.provinces[provinceID], nil
}

func TestResolveFacilityLevel(t *testing.T) {
	r := NewResolver(&fakeDirectory{})
	scope := shared.NewAccessScope([]int64{1, 2, 3})
	id := int64(2)
	ids, err := r.Resolve(context.Background(), LevelFacility, &id, scope)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != 2 {
		t.Fatalf("expected [2] got %v", ids)
	}
}

func TestResolveFacilityLevelDenied(t *testing.T) {
	r := NewResolver(&fakeDirectory{})
	scope := shared.NewAccessScope([]int64{1, 2})
	id := int64(9)
	_, err := r.Resolve(context.Background(), LevelFacility, &id, scope)
	if !errors.Is(err, shared.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
}

func TestResolveFacilityLevelRequiresID(t *testing.T) {
	r := NewResolver(&fakeDirectory{})
	_, err := r.Resolve(context.Background(), LevelFacility, nil, shared.NewAccessScope([]int64{1}))
	if !errors.Is(err, ErrFacilityRequired) {
		t.Fatalf("expected ErrFacilityRequired, got %v", err)
	}
}

func TestResolveDistrictLevel(t *testing.T) {
	r := NewResolver(&fakeDirectory{})
	scope := shared.NewAccessScope([]int64{3, 1, 2})
	ids, err := r.Resolve(context.Background(), LevelDistrict, nil, scope)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Fatalf("expected sorted accessible set got %v", ids)
	}
}

func TestResolveProvinceLevelIntersectsAccess(t *testing.T) {
	dir := &fakeDirectory{
		facilities: map[int64]Facility{
			5: {ID: 5, DistrictID: 10, ProvinceID: 100},
		},
		provinces: map[int64][]int64{100: {5, 6, 7, 8}},
	}
	r := NewResolver(dir)
	scope := shared.NewAccessScope([]int64{5, 7, 99})
	anchor := int64(5)
	ids, err := r.Resolve(context.Background(), LevelProvince, &anchor, scope)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != 5 || ids[1] != 7 {
		t.Fatalf("expected [5 7] got %v", ids)
	}
}

func TestResolveEmptyScopeDenied(t *testing.T) {
	r := NewResolver(&fakeDirectory{})
	for _, level := range []Level{LevelFacility, LevelDistrict, LevelProvince} {
		id := int64(1)
		_, err := r.Resolve(context.Background(), level, &id, shared.NewAccessScope(nil))
		if !errors.Is(err, shared.ErrAccessDenied) {
			t.Fatalf("level %s: expected access denied, got %v", level, err)
		}
	}
}

func TestResolveInvalidLevel(t *testing.T) {
	r := NewResolver(&fakeDirectory{})
	_, err := r.Resolve(context.Background(), Level("REGION"), nil, shared.NewAccessScope(nil))
	if !errors.Is(err, ErrInvalidLevel) {
		t.Fatalf("expected ErrInvalidLevel, got %v", err)
	}
}
