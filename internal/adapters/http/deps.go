package http

import (
	"github.com/nats-io/nats.go"
	"github.com/samirrijal/estatemap/internal/adapters/postgres"
	"github.com/samirrijal/estatemap/internal/adapters/valkey"
	"github.com/samirrijal/estatemap/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Map   *usecases.MapService
	NATS  *nats.Conn
	DB    *postgres.DB
	Cache *valkey.Cache

	// DefaultRadiusMeters and MaxRadiusMeters bound the nearby search radius.
	// Zero values fall back to usecases.DefaultNearbyRadiusMeters and no upper bound.
	DefaultRadiusMeters float64
	MaxRadiusMeters     float64
}
