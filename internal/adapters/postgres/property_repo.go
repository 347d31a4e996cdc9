package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/samirrijal/estatemap/internal/core/domain"
)

// mappableSelect lists approved, geotagged properties with their owner's name.
// The users join is LEFT so a listing whose owner row is gone still shows up.
const mappableSelect = `
	SELECT p.id, p.title, p.price::float8,
	       p.latitude::float8, p.longitude::float8,
	       p.property_type, COALESCE(p.status, ''), p.is_approved,
	       COALESCE(u.name, ''), COALESCE(p.location, ''),
	       COALESCE(p.bedrooms, 0), COALESCE(p.bathrooms, 0), COALESCE(p.area_sqft, 0)::float8
	FROM properties p
	LEFT JOIN users u ON u.id = p.user_id
	WHERE p.is_approved = true
	  AND p.latitude IS NOT NULL
	  AND p.longitude IS NOT NULL`

// PropertyRepo implements ports.PropertyRepository with pgx.
type PropertyRepo struct {
	db *DB
}

// NewPropertyRepo creates a new PropertyRepo.
func NewPropertyRepo(db *DB) *PropertyRepo {
	return &PropertyRepo{db: db}
}

// ListMappable returns every approved property with both coordinates set.
func (r *PropertyRepo) ListMappable(ctx context.Context) ([]domain.Property, error) {
	rows, err := r.db.Pool.Query(ctx, mappableSelect+`
	ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("query mappable properties: %w", err)
	}
	return scanProperties(rows)
}

// ListMappableInBox returns mappable properties inside box, edges included.
func (r *PropertyRepo) ListMappableInBox(ctx context.Context, box domain.Bounds) ([]domain.Property, error) {
	rows, err := r.db.Pool.Query(ctx, mappableSelect+`
	  AND p.latitude BETWEEN $1 AND $2
	  AND p.longitude BETWEEN $3 AND $4
	ORDER BY p.id`, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
	if err != nil {
		return nil, fmt.Errorf("query mappable properties in box: %w", err)
	}
	return scanProperties(rows)
}

func scanProperties(rows pgx.Rows) ([]domain.Property, error) {
	defer rows.Close()

	var props []domain.Property
	for rows.Next() {
		var (
			p        domain.Property
			category string
		)
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Price,
			&p.Latitude, &p.Longitude,
			&category, &p.Status, &p.Approved,
			&p.OwnerName, &p.Address,
			&p.Bedrooms, &p.Bathrooms, &p.AreaSqft,
		); err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		p.Category = domain.Category(category)
		props = append(props, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate properties: %w", err)
	}
	return props, nil
}
