// Package geo decides delivery eligibility against circular service areas.
package geo

import (
	"math"

	"storefront/internal/models"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Nearest is the closest service area to a point.
type Nearest struct {
	Index      int
	Area       models.ServiceArea
	DistanceKm float64
}

// DistanceKm returns the haversine distance between two coordinates.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// IsDeliverable reports whether the point lies inside at least one area.
// An empty area list is never deliverable.
func IsDeliverable(lat, lon float64, areas []models.ServiceArea) bool {
	for _, area := range areas {
		if DistanceKm(lat, lon, area.Latitude, area.Longitude) <= area.RadiusKm {
			return true
		}
	}
	return false
}

// NearestArea returns the minimum-distance area whether or not the point is
// inside it. The first area wins exact ties. ok is false when no distance is
// comparable, as with NaN coordinates.
func NearestArea(lat, lon float64, areas []models.ServiceArea) (Nearest, bool) {
	if len(areas) == 0 {
		return Nearest{}, false
	}

	best := Nearest{Index: -1, DistanceKm: math.Inf(1)}
	for i, area := range areas {
		d := DistanceKm(lat, lon, area.Latitude, area.Longitude)
		if d < best.DistanceKm {
			best = Nearest{Index: i, Area: area, DistanceKm: d}
		}
	}
	if best.Index < 0 {
		return Nearest{}, false
	}
	return best, true
}

// AddressDeliverable applies revalidation rules: addresses without
// coordinates are kept unconditionally.
func AddressDeliverable(addr models.Address, areas []models.ServiceArea) bool {
	if !addr.HasCoordinates() {
		return true
	}
	return IsDeliverable(*addr.Latitude, *addr.Longitude, areas)
}

// ValidCoordinates reports whether lat/lon are within WGS84 bounds.
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
