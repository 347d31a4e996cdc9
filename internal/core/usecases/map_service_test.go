package usecases

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/samirrijal/estatemap/internal/core/domain"
	"github.com/samirrijal/estatemap/internal/pkg/geospatial"
)

// ---- Mocks ----

type mockPropertyRepo struct {
	listMappableFn      func(ctx context.Context) ([]domain.Property, error)
	listMappableInBoxFn func(ctx context.Context, box domain.Bounds) ([]domain.Property, error)
	calls               int
}

func (m *mockPropertyRepo) ListMappable(ctx context.Context) ([]domain.Property, error) {
	m.calls++
	if m.listMappableFn != nil {
		return m.listMappableFn(ctx)
	}
	return nil, nil
}

func (m *mockPropertyRepo) ListMappableInBox(ctx context.Context, box domain.Bounds) ([]domain.Property, error) {
	m.calls++
	if m.listMappableInBoxFn != nil {
		return m.listMappableInBoxFn(ctx, box)
	}
	return nil, nil
}

type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
	setErr  error
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return b, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	c.deleted = append(c.deleted, key)
	return nil
}

type mockPublisher struct {
	updates []*domain.MapUpdate
	err     error
}

func (p *mockPublisher) PublishMapUpdate(ctx context.Context, update *domain.MapUpdate) error {
	if p.err != nil {
		return p.err
	}
	p.updates = append(p.updates, update)
	return nil
}

// ---- Fixtures ----

func ptr(f float64) *float64 { return &f }

func prop(id int64, lat, lng, price float64, cat domain.Category) domain.Property {
	return domain.Property{
		ID:        id,
		Title:     "Listing",
		Price:     price,
		Latitude:  ptr(lat),
		Longitude: ptr(lng),
		Category:  cat,
		Approved:  true,
	}
}

// store serves props like the database: box queries honour the box.
func store(props ...domain.Property) *mockPropertyRepo {
	return &mockPropertyRepo{
		listMappableFn: func(ctx context.Context) ([]domain.Property, error) {
			return props, nil
		},
		listMappableInBoxFn: func(ctx context.Context, box domain.Bounds) ([]domain.Property, error) {
			var out []domain.Property
			for _, p := range props {
				if p.Latitude != nil && p.Longitude != nil && box.Contains(p.Location()) {
					out = append(out, p)
				}
			}
			return out, nil
		},
	}
}

func brokenStore() *mockPropertyRepo {
	err := errors.New("db down")
	return &mockPropertyRepo{
		listMappableFn: func(ctx context.Context) ([]domain.Property, error) { return nil, err },
		listMappableInBoxFn: func(ctx context.Context, box domain.Bounds) ([]domain.Property, error) {
			return nil, err
		},
	}
}

func scenario() []domain.Property {
	return []domain.Property{
		prop(1, 40.0, -73.0, 500000, domain.CategoryResidential),
		prop(2, 40.01, -73.01, 700000, domain.CategoryCommercial),
	}
}

// ---- ListMarkers ----

func TestListMarkers_OnlyMappable(t *testing.T) {
	unapproved := prop(3, 40.0, -73.0, 100, domain.CategoryRental)
	unapproved.Approved = false
	noCoords := prop(4, 0, 0, 100, domain.CategoryRental)
	noCoords.Latitude = nil

	svc := NewMapService(store(append(scenario(), unapproved, noCoords)...), nil, nil, 0)
	markers, err := svc.ListMarkers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := map[int64]bool{}
	for _, m := range markers {
		got[m.ID] = true
	}
	if len(got) != 2 || !got[1] || !got[2] {
		t.Errorf("expected markers {1,2}, got %v", got)
	}
}

func TestListMarkers_DoesNotMutateStoreSlice(t *testing.T) {
	hidden := prop(9, 1, 1, 1, domain.CategoryRental)
	hidden.Approved = false
	rows := []domain.Property{hidden, prop(1, 40, -73, 1, domain.CategoryRental)}

	svc := NewMapService(store(rows...), nil, nil, 0)
	if _, err := svc.ListMarkers(context.Background()); err != nil {
		t.Fatal(err)
	}
	if rows[0].ID != 9 {
		t.Errorf("store slice was modified: %+v", rows[0])
	}
}

func TestListMarkers_RetrievalFailure(t *testing.T) {
	svc := NewMapService(brokenStore(), nil, nil, 0)
	_, err := svc.ListMarkers(context.Background())
	if !errors.Is(err, domain.ErrRetrieval) {
		t.Fatalf("expected ErrRetrieval, got %v", err)
	}
}

// ---- FindNearby ----

func TestFindNearby_Scenario(t *testing.T) {
	svc := NewMapService(store(scenario()...), nil, nil, 0)
	ctx := context.Background()

	wide, err := svc.FindNearby(ctx, NearbyQuery{Lat: ptr(40.0), Lng: ptr(-73.0), RadiusMeters: 2000})
	if err != nil {
		t.Fatal(err)
	}
	if len(wide) != 2 || wide[0].ID != 1 || wide[1].ID != 2 {
		t.Fatalf("expected [1 2] within 2km, got %+v", wide)
	}
	if math.Abs(wide[1].Distance-1.4) > 0.05 {
		t.Errorf("expected ~1.4km, got %f", wide[1].Distance)
	}

	narrow, err := svc.FindNearby(ctx, NearbyQuery{Lat: ptr(40.0), Lng: ptr(-73.0), RadiusMeters: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if len(narrow) != 1 || narrow[0].ID != 1 {
		t.Fatalf("expected only 1 within 1km, got %+v", narrow)
	}
}

func TestFindNearby_SortedAndWithinRadius(t *testing.T) {
	props := []domain.Property{
		prop(1, 40.03, -73.0, 1, domain.CategoryRental),
		prop(2, 40.01, -73.0, 1, domain.CategoryRental),
		prop(3, 40.02, -73.0, 1, domain.CategoryRental),
		prop(4, 40.2, -73.0, 1, domain.CategoryRental),
	}
	svc := NewMapService(store(props...), nil, nil, 0)

	got, err := svc.FindNearby(context.Background(), NearbyQuery{Lat: ptr(40.0), Lng: ptr(-73.0), RadiusMeters: 5000})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	for i, m := range got {
		if m.Distance > 5 {
			t.Errorf("result %d at %fkm exceeds radius", m.ID, m.Distance)
		}
		if i > 0 && got[i-1].Distance > m.Distance {
			t.Errorf("results not sorted at %d", i)
		}
	}
	if got[0].ID != 2 || got[1].ID != 3 || got[2].ID != 1 {
		t.Errorf("unexpected order %d %d %d", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestFindNearby_GrowingRadiusIsSuperset(t *testing.T) {
	props := []domain.Property{
		prop(1, 40.0, -73.0, 1, domain.CategoryRental),
		prop(2, 40.005, -73.004, 1, domain.CategoryRental),
		prop(3, 40.02, -73.03, 1, domain.CategoryRental),
		prop(4, 40.08, -72.95, 1, domain.CategoryRental),
	}
	svc := NewMapService(store(props...), nil, nil, 0)

	prev := map[int64]bool{}
	for _, r := range []float64{100, 1000, 3000, 10000, 20000} {
		got, err := svc.FindNearby(context.Background(), NearbyQuery{Lat: ptr(40.0), Lng: ptr(-73.0), RadiusMeters: r})
		if err != nil {
			t.Fatal(err)
		}
		cur := map[int64]bool{}
		for _, m := range got {
			cur[m.ID] = true
		}
		for id := range prev {
			if !cur[id] {
				t.Errorf("radius %.0f dropped property %d", r, id)
			}
		}
		prev = cur
	}
	if len(prev) != 4 {
		t.Errorf("expected all 4 within 20km, got %v", prev)
	}
}

func TestFindNearby_TiesBrokenByID(t *testing.T) {
	svc := NewMapService(store(
		prop(7, 40.0, -73.0, 1, domain.CategoryRental),
		prop(3, 40.0, -73.0, 1, domain.CategoryRental),
	), nil, nil, 0)

	got, err := svc.FindNearby(context.Background(), NearbyQuery{Lat: ptr(40.0), Lng: ptr(-73.0)})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != 3 || got[1].ID != 7 {
		t.Errorf("expected ids [3 7], got %+v", got)
	}
}

func TestFindNearby_DefaultRadius(t *testing.T) {
	var box domain.Bounds
	repo := &mockPropertyRepo{
		listMappableInBoxFn: func(ctx context.Context, b domain.Bounds) ([]domain.Property, error) {
			box = b
			return nil, nil
		},
	}
	svc := NewMapService(repo, nil, nil, 0)

	if _, err := svc.FindNearby(context.Background(), NearbyQuery{Lat: ptr(0), Lng: ptr(0)}); err != nil {
		t.Fatal(err)
	}
	want := DefaultNearbyRadiusMeters / 111320
	if math.Abs(box.MaxLat-want) > 1e-12 || math.Abs(box.MinLat+want) > 1e-12 {
		t.Errorf("expected lat delta %f, got box %+v", want, box)
	}
}

func TestFindNearby_InvalidArgument(t *testing.T) {
	svc := NewMapService(store(scenario()...), nil, nil, 0)

	tests := []struct {
		name string
		q    NearbyQuery
	}{
		{"missing latitude", NearbyQuery{Lng: ptr(-73)}},
		{"missing longitude", NearbyQuery{Lat: ptr(40)}},
		{"latitude out of range", NearbyQuery{Lat: ptr(91), Lng: ptr(0)}},
		{"longitude out of range", NearbyQuery{Lat: ptr(0), Lng: ptr(-181)}},
		{"NaN latitude", NearbyQuery{Lat: ptr(math.NaN()), Lng: ptr(0)}},
		{"negative radius", NearbyQuery{Lat: ptr(40), Lng: ptr(-73), RadiusMeters: -1}},
		{"infinite radius", NearbyQuery{Lat: ptr(40), Lng: ptr(-73), RadiusMeters: math.Inf(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.FindNearby(context.Background(), tt.q)
			if !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestFindNearby_RetrievalFailure(t *testing.T) {
	svc := NewMapService(brokenStore(), nil, nil, 0)
	_, err := svc.FindNearby(context.Background(), NearbyQuery{Lat: ptr(40), Lng: ptr(-73)})
	if !errors.Is(err, domain.ErrRetrieval) {
		t.Fatalf("expected ErrRetrieval, got %v", err)
	}
}

// ---- Clusters ----

func TestClusters_SameCellGrouped(t *testing.T) {
	svc := NewMapService(store(
		prop(1, 40.001, -73.001, 400000, domain.CategoryResidential),
		prop(2, 40.002, -73.002, 600000, domain.CategoryResidential),
		prop(3, 40.003, -73.003, 800000, domain.CategoryRental),
		prop(4, 41.5, -74.5, 100000, domain.CategoryCommercial),
	), nil, nil, 0)

	clusters, err := svc.Clusters(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}

	c := clusters[0]
	if c.Count != 3 {
		t.Errorf("expected 3 in the first cell, got %d", c.Count)
	}
	if c.AvgPrice != 600000 {
		t.Errorf("expected avg 600000, got %f", c.AvgPrice)
	}
	if len(c.Categories) != 2 || c.Categories[0] != domain.CategoryRental || c.Categories[1] != domain.CategoryResidential {
		t.Errorf("expected sorted distinct categories, got %v", c.Categories)
	}
	if c.Location.Lat != 40 {
		t.Errorf("expected floored cell latitude 40, got %f", c.Location.Lat)
	}
	if len(c.Geohash) != 6 {
		t.Errorf("expected 6-char geohash, got %q", c.Geohash)
	}
}

func TestClusters_LocationIsSouthWestCorner(t *testing.T) {
	svc := NewMapService(store(
		prop(1, -33.8688, 151.2093, 1, domain.CategoryRental),
		prop(2, -33.8612, 151.2001, 1, domain.CategoryRental),
	), nil, nil, 0)

	clusters, err := svc.Clusters(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	loc := clusters[0].Location
	if math.Abs(loc.Lat-(-33.87)) > 1e-9 || math.Abs(loc.Lng-151.20) > 1e-9 {
		t.Errorf("expected corner (-33.87, 151.20), got (%v, %v)", loc.Lat, loc.Lng)
	}
}

func TestClusters_CountsSumToTotal(t *testing.T) {
	props := []domain.Property{
		prop(1, 40.0, -73.0, 1, domain.CategoryRental),
		prop(2, 40.01, -73.01, 1, domain.CategoryRental),
		prop(3, 40.011, -73.011, 1, domain.CategoryRental),
		prop(4, -33.87, 151.21, 1, domain.CategoryRental),
		prop(5, 51.5, -0.12, 1, domain.CategoryRental),
	}
	svc := NewMapService(store(props...), nil, nil, 0)

	clusters, err := svc.Clusters(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	total := 0
	for i, c := range clusters {
		total += c.Count
		if i > 0 {
			prev := clusters[i-1].Location
			if prev.Lat > c.Location.Lat || (prev.Lat == c.Location.Lat && prev.Lng > c.Location.Lng) {
				t.Errorf("clusters not sorted at %d", i)
			}
		}
	}
	if total != len(props) {
		t.Errorf("expected counts to sum to %d, got %d", len(props), total)
	}
}

func TestClusters_Empty(t *testing.T) {
	svc := NewMapService(store(), nil, nil, 0)
	clusters, err := svc.Clusters(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if clusters == nil || len(clusters) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", clusters)
	}
}

// ---- Heatmap ----

func TestHeatmap_Intensity(t *testing.T) {
	svc := NewMapService(store(
		prop(1, 40.0, -73.0, 500000, domain.CategoryResidential),
		prop(2, 40.0, -73.0, 2500000, domain.CategoryCommercial),
	), nil, nil, 0)

	points, err := svc.Heatmap(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Intensity != 5.0 {
		t.Errorf("expected 5.0, got %f", points[0].Intensity)
	}
	if points[1].Intensity != 25.0 {
		t.Errorf("expected unclamped 25.0, got %f", points[1].Intensity)
	}
	if points[0].Lat != 40.0 || points[0].Lng != -73.0 || points[0].Category != domain.CategoryResidential {
		t.Errorf("unexpected point %+v", points[0])
	}
}

// ---- Bounds ----

func TestBounds_Empty(t *testing.T) {
	svc := NewMapService(store(), nil, nil, 0)
	b, err := svc.Bounds(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !b.IsEmpty() {
		t.Errorf("expected zero sentinel, got %+v", b)
	}
}

func TestBounds_SingleProperty(t *testing.T) {
	svc := NewMapService(store(prop(1, 10, 20, 1, domain.CategoryRental)), nil, nil, 0)
	b, err := svc.Bounds(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := domain.Bounds{MinLat: 10, MaxLat: 10, MinLng: 20, MaxLng: 20}
	if b != want {
		t.Errorf("expected %+v, got %+v", want, b)
	}
}

func TestBounds_ContainsEveryProperty(t *testing.T) {
	props := append(scenario(),
		prop(3, -12.5, 45.25, 1, domain.CategoryRental),
		prop(4, 60.1, -150.9, 1, domain.CategoryRental),
	)
	svc := NewMapService(store(props...), nil, nil, 0)

	b, err := svc.Bounds(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := domain.Bounds{MinLat: -12.5, MaxLat: 60.1, MinLng: -150.9, MaxLng: 45.25}
	if b != want {
		t.Errorf("expected %+v, got %+v", want, b)
	}
	for _, p := range props {
		if !b.Contains(p.Location()) {
			t.Errorf("bounds %+v miss property %d", b, p.ID)
		}
	}
}

func TestBounds_RetrievalFailure(t *testing.T) {
	svc := NewMapService(brokenStore(), nil, nil, 0)
	if _, err := svc.Bounds(context.Background()); !errors.Is(err, domain.ErrRetrieval) {
		t.Fatalf("expected ErrRetrieval, got %v", err)
	}
}

// ---- Cache and events ----

func TestCache_SecondCallServedFromCache(t *testing.T) {
	repo := store(scenario()...)
	cache := newMemCache()
	svc := NewMapService(repo, cache, nil, 30)
	ctx := context.Background()

	first, err := svc.Heatmap(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Heatmap(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if repo.calls != 1 {
		t.Errorf("expected 1 store call, got %d", repo.calls)
	}
	if len(second) != len(first) || second[1].Intensity != first[1].Intensity {
		t.Errorf("cached payload differs: %+v vs %+v", first, second)
	}
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	cache := newMemCache()
	svc := NewMapService(brokenStore(), cache, nil, 30)

	if _, err := svc.Bounds(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(cache.data) != 0 {
		t.Errorf("expected nothing cached, got %v", cache.data)
	}
}

func TestHandlePropertyEvent_InvalidatesAndPublishes(t *testing.T) {
	repo := store(scenario()...)
	cache := newMemCache()
	pub := &mockPublisher{}
	svc := NewMapService(repo, cache, pub, 30)
	ctx := context.Background()

	if _, err := svc.ListMarkers(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Bounds(ctx); err != nil {
		t.Fatal(err)
	}

	err := svc.HandlePropertyEvent(ctx, &domain.PropertyEvent{ID: "e1", Kind: domain.PropertyApproved, PropertyID: 2})
	if err != nil {
		t.Fatal(err)
	}

	if len(cache.deleted) != 4 {
		t.Errorf("expected 4 invalidated keys, got %v", cache.deleted)
	}
	if _, err := cache.Get(ctx, cacheKeyMarkers); err == nil {
		t.Error("markers should have been invalidated")
	}
	if len(pub.updates) != 1 {
		t.Fatalf("expected 1 map update, got %d", len(pub.updates))
	}
	u := pub.updates[0]
	if u.Reason != domain.PropertyApproved || u.PropertyID != 2 || u.ID == "" || u.At.IsZero() {
		t.Errorf("unexpected update %+v", u)
	}

	calls := repo.calls
	if _, err := svc.ListMarkers(ctx); err != nil {
		t.Fatal(err)
	}
	if repo.calls != calls+1 {
		t.Error("expected a store read after invalidation")
	}
}

func TestHandlePropertyEvent_PublishError(t *testing.T) {
	svc := NewMapService(store(), nil, &mockPublisher{err: errors.New("nats down")}, 0)
	err := svc.HandlePropertyEvent(context.Background(), &domain.PropertyEvent{Kind: domain.PropertyDeleted})
	if err == nil {
		t.Fatal("expected publish error")
	}
}

func TestHandlePropertyEvent_NoCacheNoPublisher(t *testing.T) {
	svc := NewMapService(store(), nil, nil, 0)
	if err := svc.HandlePropertyEvent(context.Background(), &domain.PropertyEvent{Kind: domain.PropertyUpdated}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// boxBlindStore returns every property for any box, so only the exact
// distance check decides membership.
func boxBlindStore(props *[]domain.Property) *mockPropertyRepo {
	return &mockPropertyRepo{
		listMappableFn: func(ctx context.Context) ([]domain.Property, error) {
			return *props, nil
		},
		listMappableInBoxFn: func(ctx context.Context, box domain.Bounds) ([]domain.Property, error) {
			return *props, nil
		},
	}
}

func TestFindNearby_CachedRadiusIsExact(t *testing.T) {
	props := []domain.Property{prop(1, 40.008992, -73.0, 1, domain.CategoryRental)}
	d := geospatial.DistanceKm(40.0, -73.0, 40.008992, -73.0)
	if d <= 0.9996 || d > 1.0 {
		t.Fatalf("fixture distance %f km must lie in (0.9996, 1.0]", d)
	}

	svc := NewMapService(boxBlindStore(&props), newMemCache(), nil, 60)
	ctx := context.Background()

	wide, err := svc.FindNearby(ctx, NearbyQuery{Lat: ptr(40.0), Lng: ptr(-73.0), RadiusMeters: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if len(wide) != 1 {
		t.Fatalf("expected 1 result within 1000m, got %d", len(wide))
	}

	narrow, err := svc.FindNearby(ctx, NearbyQuery{Lat: ptr(40.0), Lng: ptr(-73.0), RadiusMeters: 999.6})
	if err != nil {
		t.Fatal(err)
	}
	if len(narrow) != 0 {
		t.Fatalf("expected no result within 999.6m, got %+v", narrow)
	}
}

func TestFindNearby_CachedPointIsExact(t *testing.T) {
	props := []domain.Property{prop(1, 40.005, -73.0, 1, domain.CategoryRental)}
	svc := NewMapService(boxBlindStore(&props), newMemCache(), nil, 60)
	ctx := context.Background()

	if _, err := svc.FindNearby(ctx, NearbyQuery{Lat: ptr(40.0), Lng: ptr(-73.0), RadiusMeters: 2000}); err != nil {
		t.Fatal(err)
	}
	got, err := svc.FindNearby(ctx, NearbyQuery{Lat: ptr(40.0000004), Lng: ptr(-73.0), RadiusMeters: 2000})
	if err != nil {
		t.Fatal(err)
	}
	want := geospatial.DistanceKm(40.0000004, -73.0, 40.005, -73.0)
	if len(got) != 1 || got[0].Distance != want {
		t.Fatalf("expected distance %v from the second point, got %+v", want, got)
	}
}

func TestHandlePropertyEvent_InvalidatesNearby(t *testing.T) {
	props := []domain.Property{prop(1, 40.0, -73.0, 1, domain.CategoryRental)}
	svc := NewMapService(boxBlindStore(&props), newMemCache(), nil, 60)
	ctx := context.Background()
	q := NearbyQuery{Lat: ptr(40.0), Lng: ptr(-73.0), RadiusMeters: 1000}

	before, err := svc.FindNearby(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != 1 {
		t.Fatalf("expected 1 result before delete, got %d", len(before))
	}

	props = nil
	if err := svc.HandlePropertyEvent(ctx, &domain.PropertyEvent{Kind: domain.PropertyDeleted, PropertyID: 1}); err != nil {
		t.Fatal(err)
	}

	after, err := svc.FindNearby(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 0 {
		t.Fatalf("deleted property still served from cache: %+v", after)
	}
	markers, err := svc.ListMarkers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(markers) != 0 {
		t.Fatalf("deleted property still listed: %+v", markers)
	}
}

func TestHandlePropertyEvent_GenerationBumpFails(t *testing.T) {
	cache := newMemCache()
	cache.setErr = errors.New("valkey down")
	pub := &mockPublisher{}
	svc := NewMapService(store(), cache, pub, 60)

	err := svc.HandlePropertyEvent(context.Background(), &domain.PropertyEvent{Kind: domain.PropertyUpdated})
	if err == nil {
		t.Fatal("expected error so the event is redelivered")
	}
	if len(pub.updates) != 0 {
		t.Errorf("expected no map update before the cache is consistent, got %d", len(pub.updates))
	}
}
