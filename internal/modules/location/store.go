// README: Driver presence store backed by Redis GEO, plus dispatch bookkeeping sets.
package location

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"courier/internal/types"
)

const (
	driverGeoKey       = "presence:drivers"
	dispatchKeyPrefix  = "dispatch:order:%s:dispatched_at"
	notifiedKeyPrefix  = "dispatch:order:%s:notified"
	deviceTokenHashKey = "device_tokens"
	// TTL for dispatch bookkeeping keys (search windows resolve within minutes,
	// but keep the audit trail around for a week).
	keyTTL = 7 * 24 * time.Hour
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

func (s *Store) SetDriver(ctx context.Context, id types.ID, pos types.Point) error {
	return s.redis.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: pos.Lng,
		Latitude:  pos.Lat,
	}).Err()
}

func (s *Store) RemoveDriver(ctx context.Context, id types.ID) error {
	return s.redis.ZRem(ctx, driverGeoKey, string(id)).Err()
}

func (s *Store) NearbyDrivers(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	results, err := s.redis.GeoSearch(ctx, driverGeoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}

// RecordDispatch records the dispatch timestamp and the set of notified
// drivers for an order. Re-dispatch on radius expansion adds to the same set
// so a driver is not notified twice.
func (s *Store) RecordDispatch(ctx context.Context, orderID types.ID, driverIDs []types.ID) error {
	pipe := s.redis.Pipeline()
	pipe.SetNX(ctx, dispatchedAtKey(orderID), time.Now().UTC().Format(time.RFC3339), keyTTL)
	if len(driverIDs) > 0 {
		members := make([]interface{}, len(driverIDs))
		for i, d := range driverIDs {
			members[i] = string(d)
		}
		pipe.SAdd(ctx, notifiedKey(orderID), members...)
		pipe.Expire(ctx, notifiedKey(orderID), keyTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// NotifiedDrivers returns the drivers already pinged for this order.
func (s *Store) NotifiedDrivers(ctx context.Context, orderID types.ID) (map[types.ID]bool, error) {
	members, err := s.redis.SMembers(ctx, notifiedKey(orderID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[types.ID]bool, len(members))
	for _, m := range members {
		out[types.ID(m)] = true
	}
	return out, nil
}

// DeviceToken resolves a user's FCM device token, registered by the client app.
func (s *Store) DeviceToken(ctx context.Context, userID types.ID) (string, error) {
	v, err := s.redis.HGet(ctx, deviceTokenHashKey, string(userID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}

func (s *Store) SetDeviceToken(ctx context.Context, userID types.ID, token string) error {
	return s.redis.HSet(ctx, deviceTokenHashKey, string(userID), token).Err()
}

func dispatchedAtKey(orderID types.ID) string {
	return fmt.Sprintf(dispatchKeyPrefix, string(orderID))
}

func notifiedKey(orderID types.ID) string {
	return fmt.Sprintf(notifiedKeyPrefix, string(orderID))
}
