// README: Client-facing view tuples derived from order snapshots.
package tracking

import (
	"courier/internal/modules/order"
	"courier/internal/types"
)

// Display statuses for the search phase. Once the order leaves pending the
// raw order status is displayed instead.
const (
	DisplayPending     = "pending"
	DisplaySearching   = "searching"
	DisplayDriverFound = "driver_found"
	DisplayNoDriver    = "no_driver_found"
)

// NegotiationView is the price-negotiation slice of a snapshot, shaped for
// rendering rather than for writes.
type NegotiationView struct {
	Status           order.NegotiationStatus
	DriverProposed   *types.Money
	CustomerProposed *types.Money
	Negotiated       *types.Money
}

// View is one emission of the observe stream.
type View struct {
	OrderID       types.ID
	DisplayStatus string
	// RemainingSeconds is non-nil only while the driver search is ticking.
	RemainingSeconds *int
	DriverID         *types.ID
	Fee              types.Money
	Negotiation      NegotiationView
}

// Snapshot shapes an order record into a view. remaining is the countdown
// recomputed by the caller from the absolute expiry; it is ignored unless
// the search is still ticking.
func Snapshot(o *order.Order, remaining *int) View {
	v := View{
		OrderID:       o.ID,
		DisplayStatus: displayStatus(o),
		DriverID:      o.DriverID,
		Fee:           o.BillableFee(),
		Negotiation: NegotiationView{
			Status:           o.NegotiationStatus,
			DriverProposed:   o.DriverProposedPrice,
			CustomerProposed: o.CustomerProposedPrice,
			Negotiated:       o.NegotiatedPrice,
		},
	}
	if o.Status == order.StatusPending && !o.SearchConcluded() {
		v.RemainingSeconds = remaining
	}
	return v
}

func displayStatus(o *order.Order) string {
	if o.Status != order.StatusPending {
		return string(o.Status)
	}
	if o.DriverID != nil {
		return DisplayDriverFound
	}
	switch o.SearchStatus {
	case order.SearchSearching, order.SearchExpanded:
		return DisplaySearching
	case order.SearchFound:
		return DisplayDriverFound
	case order.SearchStopped:
		return DisplayNoDriver
	}
	return DisplayPending
}

func viewEqual(a, b View) bool {
	return a.OrderID == b.OrderID &&
		a.DisplayStatus == b.DisplayStatus &&
		intPtrEqual(a.RemainingSeconds, b.RemainingSeconds) &&
		idPtrEqual(a.DriverID, b.DriverID) &&
		a.Fee == b.Fee &&
		a.Negotiation.Status == b.Negotiation.Status &&
		moneyPtrEqual(a.Negotiation.DriverProposed, b.Negotiation.DriverProposed) &&
		moneyPtrEqual(a.Negotiation.CustomerProposed, b.Negotiation.CustomerProposed) &&
		moneyPtrEqual(a.Negotiation.Negotiated, b.Negotiation.Negotiated)
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func idPtrEqual(a, b *types.ID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func moneyPtrEqual(a, b *types.Money) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
