// Package geo ranks nearby physical vendors for a location and query. It
// builds a bounding-box Overpass query, applies an ordered keyword filter,
// and scores candidates by query relevance and planar distance.
package geo

import (
	"fmt"
	"strings"
)

// FilterRule pairs a query keyword with an Overpass shop filter.
type FilterRule struct {
	Keyword string
	Filter  string
}

// filterRules is an ordered priority list evaluated top to bottom; the first
// rule whose keyword is a substring of the lower-cased query wins. Order is
// load-bearing: "repair" outranks "car" for a query like "car repair shop".
var filterRules = []FilterRule{
	{"repair", `["shop"~"repair|service",i]`},
	{"car", `["shop"~"car_repair|auto",i]`},
	{"water bottle", `["shop"~"supermarket|convenience|drinks|water",i]`},
	{"bottle", `["shop"~"supermarket|convenience|drinks|water",i]`},
}

// ShopFilter selects the Overpass shop filter for a query. A non-empty query
// with no rule match falls back to a case-insensitive category-name match on
// the query text itself; an empty query matches any shop.
func ShopFilter(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	for _, rule := range filterRules {
		if strings.Contains(q, rule.Keyword) {
			return rule.Filter
		}
	}
	if q != "" {
		// Double quotes would terminate the Overpass string literal.
		q = strings.ReplaceAll(q, `"`, "")
		return fmt.Sprintf(`["shop"~"%s",i]`, q)
	}
	return `["shop"]`
}

// MetersToDegrees converts a radius in meters to a degree offset using the
// fixed equirectangular approximation of 1 degree latitude ~ 111 km. The
// same factor is applied to longitude without latitude correction, so the
// box grows inaccurate away from the equator and at large radii.
func MetersToDegrees(meters float64) float64 {
	return meters / 111000.0
}

// BoundingBox is a latitude/longitude rectangle.
type BoundingBox struct {
	South float64
	West  float64
	North float64
	East  float64
}

// NewBoundingBox builds the box [lat-d, lat+d] x [lon-d, lon+d] for the
// given radius in meters.
func NewBoundingBox(lat, lon, radiusMeters float64) BoundingBox {
	d := MetersToDegrees(radiusMeters)
	return BoundingBox{
		South: lat - d,
		West:  lon - d,
		North: lat + d,
		East:  lon + d,
	}
}

// buildQL renders the Overpass QL covering node, way, and relation geometry
// with centroid output for non-point geometries.
func buildQL(filter string, b BoundingBox) string {
	bbox := fmt.Sprintf("(%f,%f,%f,%f)", b.South, b.West, b.North, b.East)
	var sb strings.Builder
	sb.WriteString("[out:json][timeout:25];\n(\n")
	for _, kind := range []string{"node", "way", "relation"} {
		fmt.Fprintf(&sb, "  %s%s%s;\n", kind, filter, bbox)
	}
	sb.WriteString(");\nout center;\n")
	return sb.String()
}
