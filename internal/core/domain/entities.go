package domain

import (
	"time"
)

// Category is the kind of listing.
type Category string

const (
	CategoryResidential Category = "residential"
	CategoryCommercial  Category = "commercial"
	CategoryRental      Category = "rental"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryResidential, CategoryCommercial, CategoryRental:
		return true
	}
	return false
}

// Property is a listing row as stored by the listing service.
// Latitude and Longitude are nil for listings that were never geotagged.
type Property struct {
	ID        int64    `json:"id"`
	Title     string   `json:"title"`
	Price     float64  `json:"price"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Category  Category `json:"category"`
	Status    string   `json:"status"`
	Approved  bool     `json:"approved"`
	OwnerName string   `json:"ownerName"`
	Address   string   `json:"address"`
	Bedrooms  int      `json:"bedrooms"`
	Bathrooms int      `json:"bathrooms"`
	AreaSqft  float64  `json:"areaSqft"`
}

// Mappable reports whether the property may appear on the map:
// it must be approved and carry both coordinates.
func (p *Property) Mappable() bool {
	return p.Approved && p.Latitude != nil && p.Longitude != nil
}

// Location returns the property coordinate. Callers must check Mappable first.
func (p *Property) Location() GeoPoint {
	return GeoPoint{Lat: *p.Latitude, Lng: *p.Longitude}
}

// MapMarker is a property rendered as a map marker.
type MapMarker struct {
	ID        int64    `json:"id"`
	Title     string   `json:"title"`
	Price     float64  `json:"price"`
	Location  GeoPoint `json:"location"`
	Category  Category `json:"category"`
	Status    string   `json:"status"`
	OwnerName string   `json:"ownerName"`
	Address   string   `json:"address"`
	Bedrooms  int      `json:"bedrooms"`
	Bathrooms int      `json:"bathrooms"`
	AreaSqft  float64  `json:"areaSqft"`
}

// NewMapMarker builds a marker from a mappable property.
func NewMapMarker(p *Property) MapMarker {
	return MapMarker{
		ID:        p.ID,
		Title:     p.Title,
		Price:     p.Price,
		Location:  p.Location(),
		Category:  p.Category,
		Status:    p.Status,
		OwnerName: p.OwnerName,
		Address:   p.Address,
		Bedrooms:  p.Bedrooms,
		Bathrooms: p.Bathrooms,
		AreaSqft:  p.AreaSqft,
	}
}

// NearbyMarker is a marker annotated with its distance from the query point.
type NearbyMarker struct {
	MapMarker
	Distance float64 `json:"distance"` // km
}

// Cluster groups the properties that fall into one grid cell.
type Cluster struct {
	// Location is the south-west corner of the 0.01° cell (coordinates
	// floored to the grid), not its centre or the members' centroid.
	Location   GeoPoint   `json:"location"`
	Count      int        `json:"count"`
	AvgPrice   float64    `json:"avgPrice"`
	Categories []Category `json:"categories"`
	Geohash    string     `json:"geohash"`
}

// HeatPoint is one weighted point of the price heatmap.
type HeatPoint struct {
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Intensity float64  `json:"intensity"`
	Category  Category `json:"category"`
}

// PropertyEventKind names a lifecycle change published by the listing service.
type PropertyEventKind string

const (
	PropertyCreated  PropertyEventKind = "created"
	PropertyUpdated  PropertyEventKind = "updated"
	PropertyApproved PropertyEventKind = "approved"
	PropertyDeleted  PropertyEventKind = "deleted"
)

// PropertyEvent is received when a listing changes elsewhere.
type PropertyEvent struct {
	ID         string            `json:"id"`
	Kind       PropertyEventKind `json:"kind"`
	PropertyID int64             `json:"property_id"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// MapUpdate tells live map clients to refetch map data.
type MapUpdate struct {
	ID         string            `json:"id"`
	Reason     PropertyEventKind `json:"reason"`
	PropertyID int64             `json:"property_id"`
	At         time.Time         `json:"at"`
}
