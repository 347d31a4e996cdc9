package http

import (
	"github.com/gofiber/fiber/v2"
)

// MapPropertiesHandler returns a marker for every approved, geotagged property.
// GET /v1/map/properties
func MapPropertiesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		markers, err := deps.Map.ListMarkers(c.UserContext())
		if err != nil {
			return errFromService(c, err, "error fetching properties with map data")
		}
		return c.JSON(markers)
	}
}

// NearbyPropertiesHandler returns properties within a radius of a point, nearest first.
// GET /v1/map/nearby?latitude=40.0&longitude=-73.0&radius=2000
func NearbyPropertiesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := parseNearbyQuery(c, deps.DefaultRadiusMeters, deps.MaxRadiusMeters)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		nearby, err := deps.Map.FindNearby(c.UserContext(), q)
		if err != nil {
			return errFromService(c, err, "error fetching nearby properties")
		}
		return c.JSON(nearby)
	}
}

// ClustersHandler returns properties grouped into 0.01° grid cells.
// GET /v1/map/clusters
func ClustersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		clusters, err := deps.Map.Clusters(c.UserContext())
		if err != nil {
			return errFromService(c, err, "error fetching property clusters")
		}
		return c.JSON(clusters)
	}
}

// HeatmapHandler returns price-weighted heatmap points.
// GET /v1/map/heatmap
func HeatmapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		points, err := deps.Map.Heatmap(c.UserContext())
		if err != nil {
			return errFromService(c, err, "error fetching heatmap data")
		}
		return c.JSON(points)
	}
}

// BoundsHandler returns the box enclosing all visible properties.
// An all-zero box means there is nothing to show.
// GET /v1/map/bounds
func BoundsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bounds, err := deps.Map.Bounds(c.UserContext())
		if err != nil {
			return errFromService(c, err, "error fetching property bounds")
		}
		return c.JSON(bounds)
	}
}
