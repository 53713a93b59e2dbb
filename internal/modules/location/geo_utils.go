// README: Pure geographic computation helpers (haversine, distance ordering).
package location

import (
	"math"

	"courier/internal/types"
)

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func HaversineKm(a, b types.Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// SortByDistance performs an insertion sort (fine for small N) on any slice
// where each element exposes a distance via the accessor function.
func SortByDistance[T any](items []T, dist func(T) float64) {
	for i := 1; i < len(items); i++ {
		key := items[i]
		j := i - 1
		for j >= 0 && dist(items[j]) > dist(key) {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = key
	}
}

// OrderByDistanceDesc returns a copy of pts ordered farthest-from-origin
// first. This is the collection order a driver walks a multi-stop route in:
// start at the outermost stop and work inward toward the customer.
func OrderByDistanceDesc(origin types.Point, pts []types.Point) []types.Point {
	out := make([]types.Point, len(pts))
	copy(out, pts)
	SortByDistance(out, func(p types.Point) float64 { return -HaversineKm(origin, p) })
	return out
}

// CollectionRouteKm sums the legs of the collection route: consecutive stops
// ordered farthest-first, plus the final leg from the nearest stop to the
// customer.
func CollectionRouteKm(customer types.Point, stops []types.Point) float64 {
	if len(stops) == 0 {
		return 0
	}
	ordered := OrderByDistanceDesc(customer, stops)
	var total float64
	for i := 1; i < len(ordered); i++ {
		total += HaversineKm(ordered[i-1], ordered[i])
	}
	total += HaversineKm(ordered[len(ordered)-1], customer)
	return total
}
