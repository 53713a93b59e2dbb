// README: Order aggregate, status enums, and wire encoding for change events.
package order

import (
	"encoding/json"
	"fmt"
	"time"

	"courier/internal/types"
)

type Status string

const (
	StatusNone      Status = "none"
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusPickedUp  Status = "picked_up"
	StatusInTransit Status = "in_transit"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// SearchStatus is the driver-search sub-state, meaningful only while the
// order is pending. The empty value maps to NULL in the store.
type SearchStatus string

const (
	SearchNone      SearchStatus = ""
	SearchSearching SearchStatus = "searching"
	SearchExpanded  SearchStatus = "expanded"
	SearchFound     SearchStatus = "found"
	SearchStopped   SearchStatus = "stopped"
)

type NegotiationStatus string

const (
	NegotiationNone             NegotiationStatus = ""
	NegotiationDriverProposed   NegotiationStatus = "driver_proposed"
	NegotiationCustomerProposed NegotiationStatus = "customer_proposed"
	NegotiationAccepted         NegotiationStatus = "accepted"
)

// Stop is one pickup point on the route. Address or coordinates may be
// missing; pricing degrades rather than failing.
type Stop struct {
	Address     string
	Description string
	Position    types.Point
	Items       []string
	ImageRefs   []string
}

type Order struct {
	ID            types.ID
	CustomerID    types.ID
	DriverID      *types.ID
	Status        Status
	StatusVersion int

	SearchStatus    SearchStatus
	SearchExpiresAt *time.Time

	NegotiationStatus     NegotiationStatus
	DriverProposedPrice   *types.Money
	CustomerProposedPrice *types.Money
	NegotiatedPrice       *types.Money
	TotalFee              types.Money

	Route     []Stop
	CreatedAt time.Time
}

// BillableFee is the negotiated price once negotiation concluded, otherwise
// the quoted total fee.
func (o *Order) BillableFee() types.Money {
	if o.NegotiationStatus == NegotiationAccepted && o.NegotiatedPrice != nil {
		return *o.NegotiatedPrice
	}
	return o.TotalFee
}

// Terminal reports whether the order reached a final status.
func (o *Order) Terminal() bool {
	return o.Status == StatusCompleted || o.Status == StatusCancelled
}

// SearchConcluded reports whether the driver search is over, either because
// a driver claimed the order (driverID outranks searchStatus) or because the
// search collapsed. Callers must not drive countdown behavior past this.
func (o *Order) SearchConcluded() bool {
	if o.DriverID != nil {
		return true
	}
	return o.SearchStatus == SearchFound || o.SearchStatus == SearchStopped
}

type Event struct {
	ID         int64
	OrderID    types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// EventChannel is the redis pub/sub channel carrying change records for one
// order row.
func EventChannel(id types.ID) string {
	return fmt.Sprintf("orders:events:%s", string(id))
}

// EncodeRecord marshals an order snapshot for the change-event channel.
func EncodeRecord(o *Order) ([]byte, error) {
	return json.Marshal(o)
}

// DecodeRecord unmarshals a change-event payload back into an order
// snapshot. Consumers must treat the record as best-effort: events may be
// duplicated, dropped, or delivered out of order.
func DecodeRecord(data []byte) (*Order, error) {
	var o Order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("decoding order record: %w", err)
	}
	return &o, nil
}
