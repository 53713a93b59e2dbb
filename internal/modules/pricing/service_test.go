package pricing

import (
	"context"
	"testing"

	"courier/internal/types"
)

func TestFeeFor_Tariff(t *testing.T) {
	tests := []struct {
		name       string
		items      int
		distanceKm float64
		want       int64
	}{
		{"base tier", 1, 3, 25},
		{"second item", 2, 3, 30},
		{"extra distance", 1, 5, 35},
		{"items and distance", 3, 7, 55}, // 25 + 2*5 + 4*5
		{"under included distance", 1, 1, 25},
		{"zero distance", 1, 0, 25},
		{"rounding", 1, 3.4, 27}, // 25 + 0.4*5 = 27
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FeeFor(tt.items, tt.distanceKm)
			if got.Amount != tt.want {
				t.Errorf("FeeFor(%d, %v) = %d, want %d", tt.items, tt.distanceKm, got.Amount, tt.want)
			}
		})
	}
}

func TestQuote_FallbackOnMissingCoordinates(t *testing.T) {
	svc := NewService(nil)
	customer := types.Point{Lat: 25.0, Lng: 121.5}

	// one stop has no coordinates: whole route prices at the base tier
	fee, err := svc.Quote(context.Background(), QuoteRequest{
		Customer:  customer,
		Stops:     []types.Point{{Lat: 25.05, Lng: 121.5}, {}},
		ItemCount: 1,
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if fee.Amount != 25 {
		t.Errorf("fallback quote = %d, want 25", fee.Amount)
	}
}

func TestQuote_MinimumOneItem(t *testing.T) {
	svc := NewService(nil)
	fee, err := svc.Quote(context.Background(), QuoteRequest{ItemCount: 0})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if fee.Amount != 25 {
		t.Errorf("zero-item quote = %d, want 25", fee.Amount)
	}
}

func TestQuickOffers(t *testing.T) {
	offers := QuickOffers(types.Money{Amount: 25, Currency: "USD"})
	want := []int64{30, 35, 40, 45}
	for i, o := range offers {
		if o.Amount != want[i] {
			t.Errorf("offer %d = %d, want %d", i, o.Amount, want[i])
		}
		if o.Currency != "USD" {
			t.Errorf("offer %d currency = %q", i, o.Currency)
		}
	}
}
