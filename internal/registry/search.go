package registry

import "strings"

// SearchLands returns parcels matching every set filter. Price bounds do not
// apply to parcels and are ignored.
func (e *Engine) SearchLands(f SearchFilters) []LandRecord {
	return e.filterLands(func(land LandRecord) bool {
		return matchLand(land, f)
	})
}

// SearchMarketplace returns listings matching every set filter, evaluated
// against the land snapshot held by each listing.
func (e *Engine) SearchMarketplace(f SearchFilters) []Listing {
	return e.filterListings(func(l Listing) bool {
		if f.MinPrice != nil && l.Price < *f.MinPrice {
			return false
		}
		if f.MaxPrice != nil && l.Price > *f.MaxPrice {
			return false
		}
		return matchLand(l.Land, f)
	})
}

// SearchByCoordinates returns parcels whose origin lies inside [lo, hi].
func (e *Engine) SearchByCoordinates(lo, hi Coordinates) []LandRecord {
	r := CoordinateRange{Min: lo, Max: hi}
	return e.filterLands(func(land LandRecord) bool {
		return r.Contains(land.Coordinates)
	})
}

// LandsNear returns parcels whose origin differs from c by at most radius on
// each axis independently.
func (e *Engine) LandsNear(c Coordinates, radius uint32) []LandRecord {
	return e.filterLands(func(land LandRecord) bool {
		return chebyshevWithin(land.Coordinates, c, radius)
	})
}

func matchLand(land LandRecord, f SearchFilters) bool {
	if f.LandType != nil && land.LandType != *f.LandType {
		return false
	}
	if f.MinArea != nil {
		area, err := Area(land.Dimensions)
		if err != nil || area < *f.MinArea {
			return false
		}
	}
	if f.Range != nil && !f.Range.Contains(land.Coordinates) {
		return false
	}
	return matchFeatures(land.Metadata, f.Features)
}

// matchFeatures requires every wanted string to be a substring of at least
// one recorded special feature.
func matchFeatures(meta *LandMetadata, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	if meta == nil {
		return false
	}
	for _, w := range wanted {
		found := false
		for _, have := range meta.SpecialFeatures {
			if strings.Contains(have, w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
