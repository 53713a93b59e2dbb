package search

import (
	"context"
	"testing"
	"time"

	"courier/internal/config"
)

func TestWindowFromProvider(t *testing.T) {
	s := NewSettings(staticProvider{values: map[string]string{
		KeyRadiusKm:        "7.5",
		KeyDurationSeconds: "90",
	}}, config.SearchConfig{DefaultRadiusKm: 10, DefaultDurationSeconds: 60})

	radius, duration := s.Window(context.Background())
	if radius != 7.5 {
		t.Errorf("radius = %v, want 7.5", radius)
	}
	if duration != 90*time.Second {
		t.Errorf("duration = %v, want 90s", duration)
	}
}

func TestWindowFallsBackOnBadValues(t *testing.T) {
	cases := []struct {
		name   string
		values map[string]string
	}{
		{"missing keys", map[string]string{}},
		{"unparseable", map[string]string{KeyRadiusKm: "wide", KeyDurationSeconds: "soon"}},
		{"non-positive", map[string]string{KeyRadiusKm: "0", KeyDurationSeconds: "-5"}},
	}
	defaults := config.SearchConfig{DefaultRadiusKm: 10, DefaultDurationSeconds: 60}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSettings(staticProvider{values: tc.values}, defaults)
			radius, duration := s.Window(context.Background())
			if radius != 10 || duration != time.Minute {
				t.Errorf("got %v/%v, want defaults 10/1m", radius, duration)
			}
		})
	}
}

func TestWindowNilProvider(t *testing.T) {
	s := NewSettings(nil, config.SearchConfig{DefaultRadiusKm: 10, DefaultDurationSeconds: 60})
	radius, duration := s.Window(context.Background())
	if radius != 10 || duration != time.Minute {
		t.Errorf("got %v/%v, want defaults", radius, duration)
	}
}
