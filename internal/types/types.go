// README: Shared primitive types (IDs and coordinates).
package types

// ID is an opaque entity identifier (hex string from the ID generator).
type ID string

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}

// Zero reports whether the point carries no coordinates. Stops created from
// free-text addresses may never be geocoded; distance math falls back to a
// base-tier figure for them.
func (p Point) Zero() bool {
	return p.Lat == 0 && p.Lng == 0
}
