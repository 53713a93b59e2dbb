// README: Order state machine: legal transitions plus actor permission checks.
package order

import "courier/internal/types"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleDriver   Role = "driver"
	RoleAdmin    Role = "admin"
)

// Actor is the party attempting a transition.
type Actor struct {
	ID   types.ID
	Role Role
}

// AllowedTransitions represents the order state flow (diagram) as code.
// Terminal states have no outgoing edges; nothing moves backward.
var AllowedTransitions = map[Status][]Status{
	StatusPending:   {StatusAccepted, StatusCancelled},
	StatusAccepted:  {StatusPickedUp, StatusCancelled},
	StatusPickedUp:  {StatusInTransit},
	StatusInTransit: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// CheckTransition validates the edge and the actor's right to take it.
// Returns ErrInvalidTransition for an illegal edge, ErrActorNotPermitted for
// a role/relationship mismatch.
func CheckTransition(o *Order, to Status, actor Actor) error {
	if !CanTransition(o.Status, to) {
		return ErrInvalidTransition
	}
	switch to {
	case StatusAccepted:
		// A claim. Any driver may take a pending order.
		if actor.Role != RoleDriver {
			return ErrActorNotPermitted
		}
	case StatusPickedUp, StatusInTransit, StatusCompleted:
		// Only the assigned driver advances the delivery.
		if actor.Role != RoleDriver || o.DriverID == nil || *o.DriverID != actor.ID {
			return ErrActorNotPermitted
		}
	case StatusCancelled:
		switch actor.Role {
		case RoleAdmin:
		case RoleCustomer:
			if o.CustomerID != actor.ID {
				return ErrActorNotPermitted
			}
		case RoleDriver:
			// Drivers may only abandon an order nobody has claimed yet.
			if o.Status != StatusPending {
				return ErrActorNotPermitted
			}
		default:
			return ErrActorNotPermitted
		}
	}
	return nil
}

// ApplyTransition validates and applies a status change to the in-memory
// order. The authoritative write is the store's conditional update; this
// keeps the local copy consistent for callers that continue using it.
func ApplyTransition(o *Order, to Status, actor Actor) error {
	if err := CheckTransition(o, to, actor); err != nil {
		return err
	}
	o.Status = to
	if to == StatusAccepted {
		// Entering accepted always carries the claiming driver.
		id := actor.ID
		o.DriverID = &id
		o.SearchStatus = SearchFound
	}
	return nil
}
