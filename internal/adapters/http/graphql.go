package http

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/estatemap/internal/core/domain"
	"github.com/samirrijal/estatemap/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to the map service.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	markerFields := func() graphql.Fields {
		return graphql.Fields{
			"id":        &graphql.Field{Type: graphql.ID},
			"title":     &graphql.Field{Type: graphql.String},
			"price":     &graphql.Field{Type: graphql.Float},
			"location":  &graphql.Field{Type: geoPointType},
			"category":  &graphql.Field{Type: graphql.String},
			"status":    &graphql.Field{Type: graphql.String},
			"ownerName": &graphql.Field{Type: graphql.String},
			"address":   &graphql.Field{Type: graphql.String},
			"bedrooms":  &graphql.Field{Type: graphql.Int},
			"bathrooms": &graphql.Field{Type: graphql.Int},
			"areaSqft":  &graphql.Field{Type: graphql.Float},
		}
	}

	markerType := graphql.NewObject(graphql.ObjectConfig{
		Name:   "MapMarker",
		Fields: markerFields(),
	})

	nearbyFields := markerFields()
	nearbyFields["distance"] = &graphql.Field{
		Type:        graphql.Float,
		Description: "Distance from the query point in kilometres",
	}
	nearbyType := graphql.NewObject(graphql.ObjectConfig{
		Name:   "NearbyMarker",
		Fields: nearbyFields,
	})

	clusterType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Cluster",
		Fields: graphql.Fields{
			"location":   &graphql.Field{Type: geoPointType},
			"count":      &graphql.Field{Type: graphql.Int},
			"avgPrice":   &graphql.Field{Type: graphql.Float},
			"categories": &graphql.Field{Type: graphql.NewList(graphql.String)},
			"geohash":    &graphql.Field{Type: graphql.String},
		},
	})

	heatPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "HeatPoint",
		Fields: graphql.Fields{
			"lat":       &graphql.Field{Type: graphql.Float},
			"lng":       &graphql.Field{Type: graphql.Float},
			"intensity": &graphql.Field{Type: graphql.Float},
			"category":  &graphql.Field{Type: graphql.String},
		},
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"minLat": &graphql.Field{Type: graphql.Float},
			"maxLat": &graphql.Field{Type: graphql.Float},
			"minLng": &graphql.Field{Type: graphql.Float},
			"maxLng": &graphql.Field{Type: graphql.Float},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"mapProperties": &graphql.Field{
				Type:        graphql.NewList(markerType),
				Description: "Markers for every approved, geotagged property",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					markers, err := deps.Map.ListMarkers(p.Context)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(markers))
					for i := range markers {
						out = append(out, markerMap(&markers[i]))
					}
					return out, nil
				},
			},
			"nearbyProperties": &graphql.Field{
				Type:        graphql.NewList(nearbyType),
				Description: "Properties within radius meters of a point, nearest first",
				Args: graphql.FieldConfigArgument{
					"latitude":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"longitude": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius":    &graphql.ArgumentConfig{Type: graphql.Float},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["latitude"].(float64)
					lng := p.Args["longitude"].(float64)
					q := usecases.NearbyQuery{Lat: &lat, Lng: &lng, RadiusMeters: deps.DefaultRadiusMeters}
					if r, ok := p.Args["radius"].(float64); ok {
						if r <= 0 {
							return nil, fmt.Errorf("%w: radius must be a positive number of meters", domain.ErrInvalidArgument)
						}
						q.RadiusMeters = r
					}
					if deps.MaxRadiusMeters > 0 && q.RadiusMeters > deps.MaxRadiusMeters {
						return nil, fmt.Errorf("%w: radius must not exceed %.0f meters", domain.ErrInvalidArgument, deps.MaxRadiusMeters)
					}

					nearby, err := deps.Map.FindNearby(p.Context, q)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(nearby))
					for i := range nearby {
						m := markerMap(&nearby[i].MapMarker)
						m["distance"] = nearby[i].Distance
						out = append(out, m)
					}
					return out, nil
				},
			},
			"propertyClusters": &graphql.Field{
				Type:        graphql.NewList(clusterType),
				Description: "Properties grouped into 0.01 degree grid cells",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					clusters, err := deps.Map.Clusters(p.Context)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(clusters))
					for _, cl := range clusters {
						cats := make([]string, 0, len(cl.Categories))
						for _, cat := range cl.Categories {
							cats = append(cats, string(cat))
						}
						out = append(out, map[string]interface{}{
							"location":   pointMap(cl.Location),
							"count":      cl.Count,
							"avgPrice":   cl.AvgPrice,
							"categories": cats,
							"geohash":    cl.Geohash,
						})
					}
					return out, nil
				},
			},
			"propertyHeatmap": &graphql.Field{
				Type:        graphql.NewList(heatPointType),
				Description: "Price-weighted heatmap points",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					points, err := deps.Map.Heatmap(p.Context)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(points))
					for _, hp := range points {
						out = append(out, map[string]interface{}{
							"lat":       hp.Lat,
							"lng":       hp.Lng,
							"intensity": hp.Intensity,
							"category":  string(hp.Category),
						})
					}
					return out, nil
				},
			},
			"propertyBounds": &graphql.Field{
				Type:        boundsType,
				Description: "Box enclosing all visible properties; all zero when there are none",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					b, err := deps.Map.Bounds(p.Context)
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"minLat": b.MinLat,
						"maxLat": b.MaxLat,
						"minLng": b.MinLng,
						"maxLng": b.MaxLng,
					}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func pointMap(p domain.GeoPoint) map[string]interface{} {
	return map[string]interface{}{"lat": p.Lat, "lng": p.Lng}
}

func markerMap(m *domain.MapMarker) map[string]interface{} {
	return map[string]interface{}{
		"id":        strconv.FormatInt(m.ID, 10),
		"title":     m.Title,
		"price":     m.Price,
		"location":  pointMap(m.Location),
		"category":  string(m.Category),
		"status":    m.Status,
		"ownerName": m.OwnerName,
		"address":   m.Address,
		"bedrooms":  m.Bedrooms,
		"bathrooms": m.Bathrooms,
		"areaSqft":  m.AreaSqft,
	}
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})
		if result.HasErrors() {
			LoggerFromCtx(c.UserContext()).Warn("graphql query failed", "errors", result.Errors)
		}

		return c.JSON(result)
	}
}
