package facility

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides facility metadata lookups backed by PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a facility repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetFacility fetches one facility with its district and province names.
func (r *Repository) GetFacility(ctx context.Context, id int64) (Facility, error) {
	if r == nil || r.pool == nil {
		return Facility{}, fmt.Errorf("facility repo not initialised")
	}
	const query = `
SELECT f.id, f.name, f.facility_type, d.id, d.name, p.id, p.name
FROM facilities f
JOIN districts d ON d.id = f.district_id
JOIN provinces p ON p.id = d.province_id
WHERE f.id = $1`
	var fac Facility
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&fac.ID, &fac.Name, &fac.Type,
		&fac.DistrictID, &fac.District,
		&fac.ProvinceID, &fac.Province,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Facility{}, ErrFacilityNotFound
		}
		return Facility{}, err
	}
	return fac, nil
}

// FacilitiesInProvince lists facility IDs under the province.
func (r *Repository) FacilitiesInProvince(ctx context.Context, provinceID int64) ([]int64, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("facility repo not initialised")
	}
	const query = `
SELECT f.id
FROM facilities f
JOIN districts d ON d.id = f.district_id
WHERE d.province_id = $1
ORDER BY f.id`
	rows, err := r.pool.Query(ctx, query, provinceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
