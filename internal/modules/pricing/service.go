// README: Pricing service computes delivery fee quotes from item count and route distance.
package pricing

import (
	"context"
	"log"
	"math"

	"courier/internal/modules/location"
	"courier/internal/types"
)

// Geocoder resolves an address for a coordinate pair. Failures degrade to
// fallback pricing, never abort a quote.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, p types.Point) (string, error)
}

type Service struct {
	geocoder Geocoder
}

func NewService(geocoder Geocoder) *Service {
	return &Service{geocoder: geocoder}
}

type QuoteRequest struct {
	Customer  types.Point
	Stops     []types.Point
	ItemCount int
}

// Quote computes the delivery fee. The route distance is the collection
// walk defined by location.CollectionRouteKm; if the customer or any stop
// lacks coordinates the whole route falls back to the base-tier distance.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (types.Money, error) {
	items := req.ItemCount
	if items < 1 {
		items = 1
	}
	km := routeKm(req.Customer, req.Stops)
	return FeeFor(items, km), nil
}

// FeeFor applies the tariff formula to an item count and a total route
// distance, rounding to the nearest whole currency unit.
func FeeFor(itemCount int, distanceKm float64) types.Money {
	fee := float64(baseFee) +
		math.Max(0, float64(itemCount-1))*perExtraItem +
		math.Max(0, distanceKm-includedKm)*perExtraKm
	return types.Money{Amount: int64(math.Round(fee)), Currency: currency}
}

// QuickOffers returns the four deterministic counter-offer amounts a driver
// is shown on the initial proposal screen: base price plus fixed steps.
func QuickOffers(base types.Money) [4]types.Money {
	var out [4]types.Money
	for i, step := range quickOfferSteps {
		out[i] = base.Add(step)
	}
	return out
}

// ResolveAddress fills in a stop's address from its coordinates. A geocoder
// failure is logged and swallowed; order creation never fails on it.
func (s *Service) ResolveAddress(ctx context.Context, p types.Point) string {
	if s.geocoder == nil || p.Zero() {
		return ""
	}
	addr, err := s.geocoder.ReverseGeocode(ctx, p)
	if err != nil {
		log.Printf("pricing: reverse geocode failed: %v", err)
		return ""
	}
	return addr
}

func routeKm(customer types.Point, stops []types.Point) float64 {
	if customer.Zero() || len(stops) == 0 {
		return fallbackKm
	}
	for _, p := range stops {
		if p.Zero() {
			return fallbackKm
		}
	}
	return location.CollectionRouteKm(customer, stops)
}
