// README: Dual-channel synchronizer: merges push records and throttled polls
// into one monotonic view stream per observed order.
package tracking

import (
	"context"
	"log"
	"time"

	"courier/internal/modules/order"
	"courier/internal/modules/search"
	"courier/internal/types"
)

// Reader is the poll channel's point read. Satisfied by the order store.
type Reader interface {
	Get(ctx context.Context, id types.ID) (*order.Order, error)
}

// SearchTimer recomputes remaining time for a snapshot and issues the
// expiry collapse and halfway expansion writes. Satisfied by search.Timer
// running against the order service.
type SearchTimer interface {
	Evaluate(ctx context.Context, o *order.Order) (search.Outcome, error)
}

// Synchronizer builds one observation stream per order. Each stream owns a
// push subscription and a poll ticker and merges both through a single
// shared rule, so neither channel can contradict the other.
type Synchronizer struct {
	feed   Feed
	reader Reader
	timer  SearchTimer

	tick      time.Duration
	grace     time.Duration
	slowEvery int
}

func NewSynchronizer(feed Feed, reader Reader, timer SearchTimer) *Synchronizer {
	return &Synchronizer{
		feed:      feed,
		reader:    reader,
		timer:     timer,
		tick:      500 * time.Millisecond,
		grace:     2 * time.Second,
		slowEvery: 5,
	}
}

// Observe starts a synchronizer instance for one order. The returned
// channel emits views until a terminal signal is merged, then delivers the
// final view and closes. The cancel function tears down both channels; it
// is safe to call more than once.
func (s *Synchronizer) Observe(ctx context.Context, id types.ID) (<-chan View, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	in := &instance{
		id:     id,
		sync:   s,
		views:  make(chan View, 16),
		pollCh: make(chan *order.Order, 1),
	}
	go in.run(ctx)
	return in.views, cancel
}

// instance is the per-order, per-observer state. All fields are owned by
// the run goroutine; nothing here is shared.
type instance struct {
	id     types.ID
	sync   *Synchronizer
	views  chan View
	pollCh chan *order.Order

	sub        Subscription
	subRecords <-chan *order.Order
	unhealthy  bool
	graceEnd   time.Time

	current  *order.Order
	lastView View
	emitted  bool
	polling  bool
}

func (in *instance) run(ctx context.Context) {
	defer close(in.views)

	sub, err := in.sync.feed.Subscribe(ctx, in.id)
	if err != nil {
		// ChannelUnavailable: polling carries the order alone.
		log.Printf("tracking: push subscribe for %s: %v", in.id, err)
		in.unhealthy = true
	} else {
		in.sub = sub
		in.subRecords = sub.Records()
		defer sub.Close()
	}
	in.graceEnd = time.Now().Add(in.sync.grace)

	ticker := time.NewTicker(in.sync.tick)
	defer ticker.Stop()

	in.startPoll(ctx)

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-in.subRecords:
			if !ok {
				// Push channel died mid-stream. Nil channel blocks forever,
				// leaving the ticker and poll channel in the select.
				in.subRecords = nil
				in.unhealthy = true
				continue
			}
			if in.merge(ctx, rec) {
				return
			}
		case rec := <-in.pollCh:
			in.polling = false
			if rec != nil && in.merge(ctx, rec) {
				return
			}
		case <-ticker.C:
			ticks++
			in.checkHealth(time.Now())
			if in.shouldPoll(ticks) {
				in.startPoll(ctx)
			}
			if in.current != nil && in.merge(ctx, in.current) {
				return
			}
		}
	}
}

// checkHealth flips the instance to unhealthy once the push channel misses
// its confirmation grace or reports a failure state. Unhealthy is sticky
// for the lifetime of the instance.
func (in *instance) checkHealth(now time.Time) {
	if in.unhealthy || in.sub == nil {
		return
	}
	switch in.sub.State() {
	case StateActive:
	case StateConnecting:
		if now.After(in.graceEnd) {
			in.unhealthy = true
		}
	default:
		in.unhealthy = true
	}
}

// shouldPoll throttles the poll channel: every tick while the push channel
// is unhealthy, every slowEvery-th tick otherwise. Never stacks requests.
func (in *instance) shouldPoll(ticks int) bool {
	if in.polling {
		return false
	}
	if in.unhealthy {
		return true
	}
	return ticks%in.sync.slowEvery == 0
}

// startPoll issues a point read without blocking the run loop. A late
// response after teardown lands in the buffered channel and is dropped
// with the instance.
func (in *instance) startPoll(ctx context.Context) {
	in.polling = true
	go func() {
		rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		o, err := in.sync.reader.Get(rctx, in.id)
		if err != nil {
			// StoreTimeout or StoreUnavailable: the next tick retries.
			o = nil
		}
		select {
		case in.pollCh <- o:
		case <-ctx.Done():
		}
	}()
}

// merge applies one record through the shared rule, strongest signal
// first, and short-circuits. Both channels and the local tick path feed
// records through here, so out-of-order and duplicated delivery cannot
// diverge the view. Returns true when a terminal signal ends the stream.
func (in *instance) merge(ctx context.Context, rec *order.Order) bool {
	if rec.DriverID != nil || rec.SearchStatus == order.SearchFound {
		adopted := *rec
		adopted.SearchStatus = order.SearchFound
		in.emitFinal(ctx, Snapshot(&adopted, nil))
		return true
	}
	if rec.SearchStatus == order.SearchStopped {
		in.emitFinal(ctx, Snapshot(rec, nil))
		return true
	}
	if rec.Status != order.StatusPending {
		in.emitFinal(ctx, Snapshot(rec, nil))
		return true
	}

	// Still pending: recompute remaining from the absolute expiry. A
	// transmitted countdown is never trusted.
	out, err := in.sync.timer.Evaluate(ctx, rec)
	if err != nil {
		log.Printf("tracking: search evaluation for %s: %v", in.id, err)
	}
	if out.Collapsed {
		// This instance issued the effective stopped write; adopt it
		// without waiting for the record to come back around.
		adopted := *rec
		adopted.SearchStatus = order.SearchStopped
		in.emitFinal(ctx, Snapshot(&adopted, nil))
		return true
	}

	in.current = rec
	in.emit(Snapshot(rec, out.Remaining))
	return false
}

// emit publishes a view if it differs from the last one. Dropping on a
// full buffer is fine for intermediate views; the next tick re-emits.
func (in *instance) emit(v View) {
	if in.emitted && viewEqual(in.lastView, v) {
		return
	}
	select {
	case in.views <- v:
		in.lastView = v
		in.emitted = true
	default:
	}
}

// emitFinal delivers the terminal view even to a slow consumer; the stream
// closes right after, so this send must not be dropped.
func (in *instance) emitFinal(ctx context.Context, v View) {
	select {
	case in.views <- v:
	case <-ctx.Done():
	}
}
