package location

import (
	"math"
	"testing"

	"courier/internal/types"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      types.Point
		wantKm    float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         types.Point{Lat: 25.033, Lng: 121.565},
			b:         types.Point{Lat: 25.033, Lng: 121.565},
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name:      "Taipei 101 to Taipei Main Station (~5km)",
			a:         types.Point{Lat: 25.0340, Lng: 121.5645},
			b:         types.Point{Lat: 25.0478, Lng: 121.5170},
			wantKm:    5.2,
			tolerance: 1.0,
		},
		{
			name:      "New York to Los Angeles (~3944km)",
			a:         types.Point{Lat: 40.7128, Lng: -74.0060},
			b:         types.Point{Lat: 34.0522, Lng: -118.2437},
			wantKm:    3944,
			tolerance: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("HaversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	a := types.Point{Lat: 25.0, Lng: 121.0}
	b := types.Point{Lat: 26.0, Lng: 122.0}
	d1 := HaversineKm(a, b)
	d2 := HaversineKm(b, a)
	if math.Abs(d1-d2) > 0.0001 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}

// offsetKm places a point roughly km kilometres north of origin.
func offsetKm(origin types.Point, km float64) types.Point {
	return types.Point{Lat: origin.Lat + km/111.0, Lng: origin.Lng}
}

func TestOrderByDistanceDesc(t *testing.T) {
	customer := types.Point{Lat: 25.0, Lng: 121.5}
	// stops at ~2km, ~5km, ~1km from the customer
	stops := []types.Point{
		offsetKm(customer, 2),
		offsetKm(customer, 5),
		offsetKm(customer, 1),
	}

	ordered := OrderByDistanceDesc(customer, stops)

	want := []float64{5, 2, 1}
	for i, p := range ordered {
		got := HaversineKm(customer, p)
		if math.Abs(got-want[i]) > 0.2 {
			t.Errorf("position %d: distance %f, want ~%f", i, got, want[i])
		}
	}
	// input must not be reordered in place
	if HaversineKm(customer, stops[0]) > 3 {
		t.Error("OrderByDistanceDesc mutated its input")
	}
}

func TestCollectionRouteKm(t *testing.T) {
	customer := types.Point{Lat: 25.0, Lng: 121.5}
	stops := []types.Point{
		offsetKm(customer, 2),
		offsetKm(customer, 5),
		offsetKm(customer, 1),
	}

	// farthest-first walk: 5km -> 2km -> 1km -> customer = 3 + 1 + 1 = 5km
	got := CollectionRouteKm(customer, stops)
	if math.Abs(got-5.0) > 0.3 {
		t.Errorf("CollectionRouteKm = %f, want ~5", got)
	}
}

func TestCollectionRouteKm_SingleStop(t *testing.T) {
	customer := types.Point{Lat: 25.0, Lng: 121.5}
	stop := offsetKm(customer, 4)
	got := CollectionRouteKm(customer, []types.Point{stop})
	if math.Abs(got-4.0) > 0.2 {
		t.Errorf("single stop route = %f, want ~4", got)
	}
}

func TestCollectionRouteKm_Empty(t *testing.T) {
	if got := CollectionRouteKm(types.Point{Lat: 25, Lng: 121}, nil); got != 0 {
		t.Errorf("empty route = %f, want 0", got)
	}
}

func TestSortByDistance(t *testing.T) {
	type cand struct {
		id   types.ID
		dist float64
	}
	items := []cand{{"c", 5.0}, {"a", 1.0}, {"b", 3.0}}

	SortByDistance(items, func(c cand) float64 { return c.dist })

	if items[0].id != "a" || items[1].id != "b" || items[2].id != "c" {
		t.Errorf("unexpected sort order: %v", items)
	}
}
