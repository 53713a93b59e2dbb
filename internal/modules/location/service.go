// README: Driver presence service: availability updates and candidate queries.
package location

import (
	"context"

	"courier/internal/types"
)

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

type AvailabilityUpdate struct {
	DriverID  types.ID
	Position  types.Point
	Available bool
}

// SetAvailability adds an available driver to the GEO candidate set, or
// removes one going offline.
func (s *Service) SetAvailability(ctx context.Context, u AvailabilityUpdate) error {
	if !u.Available {
		return s.store.RemoveDriver(ctx, u.DriverID)
	}
	return s.store.SetDriver(ctx, u.DriverID, u.Position)
}

// Candidates returns available drivers within radiusKm of p, closest first,
// excluding any already notified for orderID.
func (s *Service) Candidates(ctx context.Context, orderID types.ID, p types.Point, radiusKm float64) ([]types.ID, error) {
	ids, err := s.store.NearbyDrivers(ctx, p, radiusKm)
	if err != nil {
		return nil, err
	}
	seen, err := s.store.NotifiedDrivers(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

// MarkDispatched records that the given drivers were pinged for the order.
func (s *Service) MarkDispatched(ctx context.Context, orderID types.ID, drivers []types.ID) error {
	return s.store.RecordDispatch(ctx, orderID, drivers)
}

func (s *Service) RegisterDeviceToken(ctx context.Context, userID types.ID, token string) error {
	return s.store.SetDeviceToken(ctx, userID, token)
}
