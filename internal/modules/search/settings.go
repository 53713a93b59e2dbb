// README: Search window parameters loaded through the settings cache, with config defaults.
package search

import (
	"context"
	"strconv"
	"time"

	"courier/internal/config"
	"courier/internal/settings"
)

const (
	KeyRadiusKm        = "search_radius_km"
	KeyDurationSeconds = "search_duration_seconds"
)

// Settings resolves the search radius and window duration. Values come from
// the settings table through the TTL cache; a missing or malformed value
// falls back to the configured default.
type Settings struct {
	provider settings.Provider
	defaults config.SearchConfig
}

func NewSettings(provider settings.Provider, defaults config.SearchConfig) *Settings {
	return &Settings{provider: provider, defaults: defaults}
}

func (s *Settings) Window(ctx context.Context) (radiusKm float64, duration time.Duration) {
	radiusKm = s.defaults.DefaultRadiusKm
	duration = time.Duration(s.defaults.DefaultDurationSeconds) * time.Second

	if s.provider == nil {
		return radiusKm, duration
	}
	if v, err := s.provider.Get(ctx, KeyRadiusKm); err == nil {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			radiusKm = f
		}
	}
	if v, err := s.provider.Get(ctx, KeyDurationSeconds); err == nil {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			duration = time.Duration(n) * time.Second
		}
	}
	return radiusKm, duration
}
