package geo

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/shoplens-ai/shoplens/engine/domain"
)

// OverpassQuerier is the slice of OverpassClient the ranker needs.
type OverpassQuerier interface {
	Query(ctx context.Context, ql string) ([]Element, error)
}

// Ranker turns a vendor query into a relevance-and-distance ordered list of
// nearby shops.
type Ranker struct {
	overpass OverpassQuerier
	logger   *slog.Logger
}

func NewRanker(overpass OverpassQuerier, logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{overpass: overpass, logger: logger}
}

// Rank queries Overpass for shops inside the query's bounding box and sorts
// them by descending relevance, then ascending distance. Vendors with no
// usable coordinates sink to the bottom of their relevance tier.
func (r *Ranker) Rank(ctx context.Context, q domain.VendorQuery) ([]domain.VendorRecord, error) {
	box := NewBoundingBox(q.Lat, q.Lon, q.Radius)
	ql := buildQL(ShopFilter(q.Query), box)

	elements, err := r.overpass.Query(ctx, ql)
	if err != nil {
		return nil, fmt.Errorf("geo: vendor search: %w", err)
	}
	r.logger.Debug("overpass query complete", "elements", len(elements), "query", q.Query)

	needle := strings.ToLower(strings.TrimSpace(q.Query))
	vendors := make([]domain.VendorRecord, 0, len(elements))
	for _, el := range elements {
		vendors = append(vendors, score(el, q, needle))
	}

	sort.SliceStable(vendors, func(i, j int) bool {
		if vendors[i].Relevance != vendors[j].Relevance {
			return vendors[i].Relevance > vendors[j].Relevance
		}
		return vendors[i].Distance < vendors[j].Distance
	})
	return vendors, nil
}

// score extracts a vendor record from an Overpass element. Ways and
// relations use their computed center; nodes use lat/lon directly.
// Relevance counts which of name and category contain the query text, so it
// ranges 0 to 2 and is 0 for an empty query or missing coordinates.
func score(el Element, q domain.VendorQuery, needle string) domain.VendorRecord {
	v := domain.VendorRecord{
		Name:     "Unknown",
		Shop:     "Unknown",
		Distance: math.Inf(1),
	}
	if name, ok := el.Tags["name"]; ok && name != "" {
		v.Name = name
	}
	if shop, ok := el.Tags["shop"]; ok && shop != "" {
		v.Shop = shop
	}

	switch {
	case el.Lat != nil && el.Lon != nil:
		v.Lat, v.Lon = el.Lat, el.Lon
	case el.Center != nil:
		v.Lat, v.Lon = &el.Center.Lat, &el.Center.Lon
	}
	if v.Lat == nil || v.Lon == nil {
		return v
	}

	dLat := *v.Lat - q.Lat
	dLon := *v.Lon - q.Lon
	v.Distance = math.Sqrt(dLat*dLat + dLon*dLon)

	if needle != "" {
		if strings.Contains(strings.ToLower(v.Name), needle) {
			v.Relevance++
		}
		if strings.Contains(strings.ToLower(v.Shop), needle) {
			v.Relevance++
		}
	}
	return v
}
