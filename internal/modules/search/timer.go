// README: Search timer: remaining-time computation, halfway expansion, idempotent expiry collapse.
package search

import (
	"context"
	"math"
	"time"

	"courier/internal/modules/order"
	"courier/internal/types"
)

// Remaining computes the seconds left in the search window from the
// absolute expiry instant. Always derived from expiresAt, never from a
// locally decremented counter, so suspended clients cannot drift. Returns
// nil when no window is set.
func Remaining(expiresAt *time.Time, now time.Time) *int {
	if expiresAt == nil {
		return nil
	}
	secs := int(math.Ceil(expiresAt.Sub(now).Seconds()))
	if secs < 0 {
		secs = 0
	}
	return &secs
}

// Store is the slice of the order layer the timer writes through. Both
// writes are conditional in the store, so concurrent timers racing on the
// same order are harmless.
type Store interface {
	CollapseSearch(ctx context.Context, id types.ID) (bool, error)
	ExpandSearch(ctx context.Context, id types.ID) (bool, error)
}

// Timer owns the expiry policy for one client's view of search windows.
// It is driven by the synchronizer's tick; it never schedules itself.
type Timer struct {
	store    Store
	settings *Settings
	now      func() time.Time
}

func NewTimer(store Store, settings *Settings) *Timer {
	return &Timer{store: store, settings: settings, now: time.Now}
}

// Outcome is what one evaluation of an order snapshot produced.
type Outcome struct {
	// Remaining is the countdown to display; nil when the search is not
	// ticking (no window, search concluded, or order not pending).
	Remaining *int
	// Collapsed is set when this evaluation issued the effective
	// stopped write.
	Collapsed bool
}

// Evaluate recomputes remaining time for a snapshot and issues the expiry
// collapse or halfway expansion writes when due. Safe to call every tick:
// both writes are conditional no-ops once applied.
func (t *Timer) Evaluate(ctx context.Context, o *order.Order) (Outcome, error) {
	if o.Status != order.StatusPending || o.SearchConcluded() {
		return Outcome{}, nil
	}
	active := o.SearchStatus == order.SearchSearching || o.SearchStatus == order.SearchExpanded
	if !active {
		return Outcome{}, nil
	}

	rem := Remaining(o.SearchExpiresAt, t.now())
	if rem == nil {
		return Outcome{}, nil
	}

	if *rem == 0 {
		applied, err := t.store.CollapseSearch(ctx, o.ID)
		if err != nil {
			// Transient store failure: keep ticking, the next tick retries.
			return Outcome{Remaining: rem}, err
		}
		return Outcome{Remaining: rem, Collapsed: applied}, nil
	}

	if o.SearchStatus == order.SearchSearching && t.settings != nil {
		_, duration := t.settings.Window(ctx)
		if float64(*rem) <= duration.Seconds()/2 {
			if _, err := t.store.ExpandSearch(ctx, o.ID); err != nil {
				return Outcome{Remaining: rem}, err
			}
		}
	}

	return Outcome{Remaining: rem}, nil
}
