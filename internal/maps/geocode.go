// README: Google Maps reverse-geocoding wrapper.
package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"courier/internal/types"
)

// GeocodeService handles interactions with the Google Geocoding API.
type GeocodeService struct {
	client *maps.Client
}

// NewGeocodeService creates a new GeocodeService with the given API Key.
func NewGeocodeService(apiKey string) (*GeocodeService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GeocodeService{client: client}, nil
}

// ReverseGeocode resolves the formatted address for a coordinate pair.
// Callers treat failure as non-fatal: an unresolvable stop keeps its raw
// address text and falls back to base-tier distance pricing.
func (s *GeocodeService) ReverseGeocode(ctx context.Context, p types.Point) (string, error) {
	results, err := s.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: p.Lat, Lng: p.Lng},
	})
	if err != nil {
		return "", fmt.Errorf("geocoding api error: %w", err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("no address found for %f,%f", p.Lat, p.Lng)
	}
	return results[0].FormattedAddress, nil
}
