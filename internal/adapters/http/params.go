package http

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/samirrijal/estatemap/internal/core/domain"
	"github.com/samirrijal/estatemap/internal/core/usecases"
)

// parseNearbyQuery reads latitude, longitude and radius (meters) from the query string.
// latitude and longitude are required; radius defaults to defaultRadius and may
// not exceed maxRadius when maxRadius is positive.
func parseNearbyQuery(c *fiber.Ctx, defaultRadius, maxRadius float64) (usecases.NearbyQuery, error) {
	var q usecases.NearbyQuery

	lat, err := optionalFloat(c, "latitude")
	if err != nil {
		return q, err
	}
	lng, err := optionalFloat(c, "longitude")
	if err != nil {
		return q, err
	}
	if lat == nil || lng == nil {
		return q, fmt.Errorf("%w: latitude and longitude are required", domain.ErrInvalidArgument)
	}
	q.Lat, q.Lng = lat, lng

	if defaultRadius <= 0 {
		defaultRadius = usecases.DefaultNearbyRadiusMeters
	}
	radius, err := optionalFloat(c, "radius")
	if err != nil {
		return q, err
	}
	q.RadiusMeters = defaultRadius
	if radius != nil {
		if *radius <= 0 {
			return q, fmt.Errorf("%w: radius must be a positive number of meters", domain.ErrInvalidArgument)
		}
		q.RadiusMeters = *radius
	}
	if maxRadius > 0 && q.RadiusMeters > maxRadius {
		return q, fmt.Errorf("%w: radius must not exceed %.0f meters", domain.ErrInvalidArgument, maxRadius)
	}

	return q, nil
}

// optionalFloat returns nil when the parameter is absent or blank.
func optionalFloat(c *fiber.Ctx, name string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", domain.ErrInvalidArgument, name)
	}
	return &v, nil
}
