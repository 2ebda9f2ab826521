package domain

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// ValidateQueryRequest validates a pipeline query before any collaborator is
// reached. SourceURL is optional but must be an absolute http(s) URL when
// present; ExtraData is forwarded opaquely and never inspected here.
func ValidateQueryRequest(q QueryRequest) error {
	if strings.TrimSpace(q.Query) == "" {
		return NewValidationError("query", q.Query, ErrInvalidQuery)
	}
	if q.SourceURL != "" {
		u, err := url.Parse(q.SourceURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return NewValidationError("source_url", q.SourceURL, ErrInvalidURL)
		}
	}
	return nil
}

// VendorQuery holds validated parameters for a vendor ranking request.
type VendorQuery struct {
	Lat    float64
	Lon    float64
	Radius float64
	Query  string
}

// DefaultVendorRadius is the search radius in meters when none is given.
const DefaultVendorRadius = 5000

// ParseVendorQuery validates raw vendor-endpoint parameters. Latitude and
// longitude are required; radius defaults to DefaultVendorRadius meters.
func ParseVendorQuery(lat, lon, radius, query string) (VendorQuery, error) {
	vq := VendorQuery{Radius: DefaultVendorRadius, Query: strings.TrimSpace(query)}

	v, err := parseCoord(lat, 90)
	if err != nil {
		return vq, NewValidationError("lat", lat, err)
	}
	vq.Lat = v

	v, err = parseCoord(lon, 180)
	if err != nil {
		return vq, NewValidationError("lon", lon, err)
	}
	vq.Lon = v

	if radius != "" {
		r, err := strconv.ParseFloat(radius, 64)
		if err != nil || math.IsNaN(r) || r <= 0 {
			return vq, NewValidationError("radius", radius, ErrInvalidRadius)
		}
		vq.Radius = r
	}
	return vq, nil
}

func parseCoord(s string, limit float64) (float64, error) {
	if s == "" {
		return 0, ErrInvalidCoordinate
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || v < -limit || v > limit {
		return 0, ErrInvalidCoordinate
	}
	return v, nil
}
