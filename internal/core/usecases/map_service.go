package usecases

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/estatemap/internal/core/domain"
	"github.com/samirrijal/estatemap/internal/core/ports"
	"github.com/samirrijal/estatemap/internal/pkg/geospatial"
	"github.com/samirrijal/estatemap/internal/pkg/metrics"
)

const (
	// DefaultNearbyRadiusMeters is used when a nearby query omits the radius.
	DefaultNearbyRadiusMeters = 5000.0

	// HeatmapPriceDivisor maps a price onto heatmap intensity (price 100000 -> 1.0).
	// Intensity is not clamped; renderers pick their own colour scale.
	HeatmapPriceDivisor = 100000.0

	// DefaultCacheTTLSeconds applies when NewMapService gets a non-positive TTL.
	DefaultCacheTTLSeconds = 60
)

// Cache keys for payloads that do not depend on request parameters.
const (
	cacheKeyMarkers  = "map:markers"
	cacheKeyClusters = "map:clusters"
	cacheKeyHeatmap  = "map:heatmap"
	cacheKeyBounds   = "map:bounds"

	// cacheKeyNearbyGen holds the current nearby generation. Nearby keys embed
	// it, so replacing it on a property event orphans every cached nearby result.
	cacheKeyNearbyGen = "map:nearby:gen"
	nearbyGenTTL      = 24 * 60 * 60
)

var tracer = otel.Tracer("github.com/samirrijal/estatemap/internal/core/usecases")

// NearbyQuery is a validated nearby-search request.
// Lat and Lng are required; a zero RadiusMeters means DefaultNearbyRadiusMeters.
type NearbyQuery struct {
	Lat          *float64
	Lng          *float64
	RadiusMeters float64
}

// MapService answers the geo queries behind the listing map.
type MapService struct {
	properties ports.PropertyRepository
	cache      ports.CacheService
	publisher  ports.EventPublisher
	cacheTTL   int
}

// NewMapService creates a new MapService. cache and publisher may be nil.
func NewMapService(properties ports.PropertyRepository, cache ports.CacheService, publisher ports.EventPublisher, cacheTTL int) *MapService {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTLSeconds
	}
	return &MapService{
		properties: properties,
		cache:      cache,
		publisher:  publisher,
		cacheTTL:   cacheTTL,
	}
}

// ListMarkers returns a marker for every approved, geotagged property.
func (s *MapService) ListMarkers(ctx context.Context) ([]domain.MapMarker, error) {
	return cached(ctx, s, "markers", cacheKeyMarkers, func(ctx context.Context) ([]domain.MapMarker, error) {
		props, err := s.listMappable(ctx)
		if err != nil {
			return nil, err
		}
		markers := make([]domain.MapMarker, 0, len(props))
		for i := range props {
			markers = append(markers, domain.NewMapMarker(&props[i]))
		}
		return markers, nil
	})
}

// FindNearby returns the properties within q.RadiusMeters of the query point,
// nearest first. The store narrows candidates with a bounding box; exact
// great-circle distance decides membership.
func (s *MapService) FindNearby(ctx context.Context, q NearbyQuery) ([]domain.NearbyMarker, error) {
	if q.Lat == nil || q.Lng == nil {
		return nil, fmt.Errorf("%w: latitude and longitude are required", domain.ErrInvalidArgument)
	}
	lat, lng := *q.Lat, *q.Lng
	if !finite(lat) || lat < -90 || lat > 90 {
		return nil, fmt.Errorf("%w: latitude must be between -90 and 90", domain.ErrInvalidArgument)
	}
	if !finite(lng) || lng < -180 || lng > 180 {
		return nil, fmt.Errorf("%w: longitude must be between -180 and 180", domain.ErrInvalidArgument)
	}
	radius := q.RadiusMeters
	if radius == 0 {
		radius = DefaultNearbyRadiusMeters
	}
	if !finite(radius) || radius < 0 {
		return nil, fmt.Errorf("%w: radius must be a positive number of meters", domain.ErrInvalidArgument)
	}

	key := s.nearbyKey(ctx, lat, lng, radius)
	return cached(ctx, s, "nearby", key, func(ctx context.Context) ([]domain.NearbyMarker, error) {
		minLat, minLng, maxLat, maxLng := geospatial.BoundingBox(lat, lng, radius)
		box := domain.Bounds{MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng}

		candidates, err := s.properties.ListMappableInBox(ctx, box)
		if err != nil {
			return nil, fmt.Errorf("%w: list properties in box: %w", domain.ErrRetrieval, err)
		}

		maxKm := radius / 1000
		out := make([]domain.NearbyMarker, 0, len(candidates))
		for i := range candidates {
			p := &candidates[i]
			if !p.Mappable() {
				continue
			}
			d := geospatial.DistanceKm(lat, lng, *p.Latitude, *p.Longitude)
			if d > maxKm {
				continue
			}
			out = append(out, domain.NearbyMarker{MapMarker: domain.NewMapMarker(p), Distance: d})
		}

		slices.SortFunc(out, func(a, b domain.NearbyMarker) int {
			if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})

		metrics.NearbyCandidates.Observe(float64(len(candidates)))
		metrics.NearbyMatches.Observe(float64(len(out)))
		return out, nil
	})
}

// Clusters groups properties into fixed 0.01° grid cells.
// Every property lands in exactly one cluster, so counts sum to the number of
// visible properties.
func (s *MapService) Clusters(ctx context.Context) ([]domain.Cluster, error) {
	return cached(ctx, s, "clusters", cacheKeyClusters, func(ctx context.Context) ([]domain.Cluster, error) {
		props, err := s.listMappable(ctx)
		if err != nil {
			return nil, err
		}
		return buildClusters(props), nil
	})
}

type cellKey struct {
	lat, lng float64
}

type cellAcc struct {
	count      int
	priceSum   float64
	categories map[domain.Category]struct{}
}

func buildClusters(props []domain.Property) []domain.Cluster {
	cells := make(map[cellKey]*cellAcc)
	for i := range props {
		p := &props[i]
		cLat, cLng := geospatial.GridCell(*p.Latitude, *p.Longitude)
		k := cellKey{lat: cLat, lng: cLng}
		acc, ok := cells[k]
		if !ok {
			acc = &cellAcc{categories: make(map[domain.Category]struct{})}
			cells[k] = acc
		}
		acc.count++
		acc.priceSum += p.Price
		acc.categories[p.Category] = struct{}{}
	}

	clusters := make([]domain.Cluster, 0, len(cells))
	for k, acc := range cells {
		cats := make([]domain.Category, 0, len(acc.categories))
		for c := range acc.categories {
			cats = append(cats, c)
		}
		slices.Sort(cats)

		clusters = append(clusters, domain.Cluster{
			Location:   domain.GeoPoint{Lat: k.lat, Lng: k.lng},
			Count:      acc.count,
			AvgPrice:   acc.priceSum / float64(acc.count),
			Categories: cats,
			Geohash:    geospatial.CellHash(k.lat, k.lng),
		})
	}

	slices.SortFunc(clusters, func(a, b domain.Cluster) int {
		if c := cmp.Compare(a.Location.Lat, b.Location.Lat); c != 0 {
			return c
		}
		return cmp.Compare(a.Location.Lng, b.Location.Lng)
	})
	return clusters
}

// Heatmap returns one point per property weighted by price / HeatmapPriceDivisor.
func (s *MapService) Heatmap(ctx context.Context) ([]domain.HeatPoint, error) {
	return cached(ctx, s, "heatmap", cacheKeyHeatmap, func(ctx context.Context) ([]domain.HeatPoint, error) {
		props, err := s.listMappable(ctx)
		if err != nil {
			return nil, err
		}
		points := make([]domain.HeatPoint, 0, len(props))
		for i := range props {
			p := &props[i]
			points = append(points, domain.HeatPoint{
				Lat:       *p.Latitude,
				Lng:       *p.Longitude,
				Intensity: p.Price / HeatmapPriceDivisor,
				Category:  p.Category,
			})
		}
		return points, nil
	})
}

// Bounds returns the box enclosing every visible property, or the all-zero
// box when there is none.
func (s *MapService) Bounds(ctx context.Context) (domain.Bounds, error) {
	return cached(ctx, s, "bounds", cacheKeyBounds, func(ctx context.Context) (domain.Bounds, error) {
		props, err := s.listMappable(ctx)
		if err != nil {
			return domain.Bounds{}, err
		}
		return boundsOf(props), nil
	})
}

func boundsOf(props []domain.Property) domain.Bounds {
	var b domain.Bounds
	for i := range props {
		lat, lng := *props[i].Latitude, *props[i].Longitude
		if i == 0 {
			b = domain.Bounds{MinLat: lat, MaxLat: lat, MinLng: lng, MaxLng: lng}
			continue
		}
		b.MinLat = math.Min(b.MinLat, lat)
		b.MaxLat = math.Max(b.MaxLat, lat)
		b.MinLng = math.Min(b.MinLng, lng)
		b.MaxLng = math.Max(b.MaxLng, lng)
	}
	return b
}

// nearbyKey builds the cache key for a nearby query from the exact inputs and
// the current nearby generation.
func (s *MapService) nearbyKey(ctx context.Context, lat, lng, radius float64) string {
	gen := "0"
	if s.cache != nil {
		if b, err := s.cache.Get(ctx, cacheKeyNearbyGen); err == nil && len(b) > 0 {
			gen = string(b)
		}
	}
	return strings.Join([]string{
		"map:nearby",
		gen,
		strconv.FormatFloat(lat, 'g', -1, 64),
		strconv.FormatFloat(lng, 'g', -1, 64),
		strconv.FormatFloat(radius, 'g', -1, 64),
	}, ":")
}

// HandlePropertyEvent drops cached map payloads and tells live clients to refresh.
// Nearby results are invalidated by moving to a new nearby generation.
func (s *MapService) HandlePropertyEvent(ctx context.Context, event *domain.PropertyEvent) error {
	if s.cache != nil {
		for _, key := range []string{cacheKeyMarkers, cacheKeyClusters, cacheKeyHeatmap, cacheKeyBounds} {
			if err := s.cache.Delete(ctx, key); err != nil {
				slog.WarnContext(ctx, "cache invalidation failed", "key", key, "error", err)
			}
		}
		if err := s.cache.Set(ctx, cacheKeyNearbyGen, []byte(uuid.NewString()), nearbyGenTTL); err != nil {
			return fmt.Errorf("bump nearby generation: %w", err)
		}
	}

	if s.publisher == nil {
		return nil
	}
	update := &domain.MapUpdate{
		ID:         uuid.NewString(),
		Reason:     event.Kind,
		PropertyID: event.PropertyID,
		At:         time.Now().UTC(),
	}
	if err := s.publisher.PublishMapUpdate(ctx, update); err != nil {
		return fmt.Errorf("publish map update: %w", err)
	}
	return nil
}

// listMappable loads visible properties, dropping any row the store should
// have filtered out.
func (s *MapService) listMappable(ctx context.Context) ([]domain.Property, error) {
	props, err := s.properties.ListMappable(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list properties: %w", domain.ErrRetrieval, err)
	}
	out := make([]domain.Property, 0, len(props))
	for _, p := range props {
		if p.Mappable() {
			out = append(out, p)
		}
	}
	return out, nil
}

// cached wraps load with a tracing span, query metrics and a read-through cache.
func cached[T any](ctx context.Context, s *MapService, op, key string, load func(context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, "MapService."+op)
	defer span.End()
	span.SetAttributes(attribute.String("map.cache_key", key))

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var v T
			if err := json.Unmarshal(data, &v); err == nil {
				metrics.CacheHits.WithLabelValues(op).Inc()
				metrics.MapQueries.WithLabelValues(op, "ok").Inc()
				span.SetAttributes(attribute.Bool("map.cache_hit", true))
				return v, nil
			}
		}
		metrics.CacheMisses.WithLabelValues(op).Inc()
	}

	v, err := load(ctx)
	if err != nil {
		metrics.MapQueries.WithLabelValues(op, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return v, err
	}
	metrics.MapQueries.WithLabelValues(op, "ok").Inc()

	if s.cache != nil {
		if data, err := json.Marshal(v); err == nil {
			_ = s.cache.Set(ctx, key, data, s.cacheTTL)
		}
	}
	return v, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
