// README: Push channel: redis pub/sub subscription to per-order change records.
package tracking

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"courier/internal/modules/order"
	"courier/internal/types"
)

// SubscriptionState is the push channel's reported health. Anything other
// than active after the grace period means the poll channel must carry the
// order on its fast cadence.
type SubscriptionState string

const (
	StateConnecting SubscriptionState = "connecting"
	StateActive     SubscriptionState = "active"
	StateError      SubscriptionState = "error"
	StateTimeout    SubscriptionState = "timeout"
	StateClosed     SubscriptionState = "closed"
)

// Subscription is one established (or establishing) push channel for a
// single order. Records carries decoded snapshots and is closed when the
// channel dies or Close is called.
type Subscription interface {
	Records() <-chan *order.Order
	State() SubscriptionState
	Close()
}

// Feed opens push subscriptions. A Subscribe error is non-fatal to the
// caller; it just means polling carries the full load.
type Feed interface {
	Subscribe(ctx context.Context, id types.ID) (Subscription, error)
}

// RedisFeed subscribes to the orders:events:<id> channel that the order
// store publishes to after every applied write.
type RedisFeed struct {
	client *redis.Client
}

func NewRedisFeed(client *redis.Client) *RedisFeed {
	return &RedisFeed{client: client}
}

func (f *RedisFeed) Subscribe(ctx context.Context, id types.ID) (Subscription, error) {
	ps := f.client.Subscribe(ctx, order.EventChannel(id))
	s := &redisSubscription{
		ps:      ps,
		records: make(chan *order.Order, 8),
	}
	s.state.Store(StateConnecting)
	go s.run(ctx)
	return s, nil
}

type redisSubscription struct {
	ps      *redis.PubSub
	records chan *order.Order
	state   atomic.Value
	closer  sync.Once
}

func (s *redisSubscription) Records() <-chan *order.Order { return s.records }

func (s *redisSubscription) State() SubscriptionState {
	return s.state.Load().(SubscriptionState)
}

func (s *redisSubscription) Close() {
	s.closer.Do(func() {
		s.state.Store(StateClosed)
		_ = s.ps.Close()
	})
}

func (s *redisSubscription) run(ctx context.Context) {
	defer close(s.records)

	// Receive blocks until the server confirms the subscription. Only then
	// is the channel considered active.
	if _, err := s.ps.Receive(ctx); err != nil {
		if s.State() == StateConnecting {
			s.state.Store(StateError)
		}
		return
	}
	s.state.Store(StateActive)

	for msg := range s.ps.Channel() {
		o, err := order.DecodeRecord([]byte(msg.Payload))
		if err != nil {
			log.Printf("tracking: dropping malformed record on %s: %v", msg.Channel, err)
			continue
		}
		select {
		case s.records <- o:
		default:
			// Slow consumer. Records are full snapshots so dropping one
			// loses nothing the next record does not carry.
		}
	}
	if s.State() == StateActive {
		s.state.Store(StateClosed)
	}
}
