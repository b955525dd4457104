// Package geocode resolves US zip codes to geographic coordinates.
//
// The rest of the app depends only on the Geocoder interface. The concrete
// implementations are:
//   - Client       → HTTP calls to a Zippopotam-style provider (client.go)
//   - CachedGeocoder → Redis cache wrapped around any Geocoder (cache.go)
//
// Zip lookups are slow (a network round trip to a third party) and zip→
// coordinate mappings essentially never change, which is why the cache layer
// exists and why the service only looks up a zip when its value changed.
package geocode

import (
	"context"
	"errors"
	"math"
)

// ErrZipNotFound is returned when the provider doesn't recognise the zip.
// Callers treat this as "leave the geographic fields unset", never as a
// reason to fail the surrounding save.
var ErrZipNotFound = errors.New("geocode: zip code not found")

// Location is a resolved zip code.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	State     string  `json:"state"` // two-letter abbreviation, e.g. "NY"
}

// Geocoder resolves a zip code to a Location.
//
// Implementations return ErrZipNotFound for unknown zips and other errors
// for transport failures (timeouts, 5xx responses).
type Geocoder interface {
	Lookup(ctx context.Context, zip string) (*Location, error)
}

// earthRadiusMiles is the mean Earth radius. Good to within ~0.5% anywhere,
// which is far more accurate than a zip centroid is in the first place.
const earthRadiusMiles = 3958.8

// DistanceMiles returns the great-circle distance between two points using
// the haversine formula.
//
// WHY HAVERSINE AND NOT THE SIMPLER SPHERICAL LAW OF COSINES?
// The law-of-cosines formula loses precision for small distances (acos of a
// number very close to 1). Haversine stays numerically stable down to
// distances of a few feet, and "members within N miles" is exactly the small-
// distance regime we query.
func DistanceMiles(lat1, lng1, lat2, lng2 float64) float64 {
	const degToRad = math.Pi / 180

	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(a))
}

// BoundingBox returns a latitude/longitude box guaranteed to contain every
// point within radiusMiles of the center. The box is a coarse SQL pre-filter;
// callers still apply DistanceMiles for the exact cut, so it only has to be
// conservative, not tight.
//
// One degree of latitude is ~69 miles everywhere. One degree of longitude
// shrinks with latitude by cos(lat), so we widen the box accordingly. No
// antimeridian handling — US zip codes don't straddle it (the Aleutians come
// close, and the conservative clamp below covers them).
func BoundingBox(lat, lng, radiusMiles float64) (minLat, maxLat, minLng, maxLng float64) {
	const milesPerDegLat = 69.0

	dLat := radiusMiles / milesPerDegLat

	// Guard the cos() collapse near the poles: below 0.01 (about 89.4°) we
	// just span all longitudes.
	cosLat := math.Cos(lat * math.Pi / 180)
	var dLng float64
	if cosLat < 0.01 {
		dLng = 180
	} else {
		dLng = radiusMiles / (milesPerDegLat * cosLat)
	}

	minLat = math.Max(lat-dLat, -90)
	maxLat = math.Min(lat+dLat, 90)
	minLng = math.Max(lng-dLng, -180)
	maxLng = math.Min(lng+dLng, 180)
	return minLat, maxLat, minLng, maxLng
}
