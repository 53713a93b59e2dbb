// README: Negotiation protocol rules: propose / accept, one outstanding proposal at a time.
package order

import "courier/internal/types"

// proposalStatusFor maps the proposing party to the negotiation state their
// proposal puts the order in. Admins do not negotiate.
func proposalStatusFor(role Role) (NegotiationStatus, error) {
	switch role {
	case RoleDriver:
		return NegotiationDriverProposed, nil
	case RoleCustomer:
		return NegotiationCustomerProposed, nil
	default:
		return NegotiationNone, ErrActorNotPermitted
	}
}

// ValidateProposalAmount enforces the only amount rule the engine has:
// proposals must be positive. Quick-offer ladders are a UI concern.
func ValidateProposalAmount(amount int64) error {
	if amount <= 0 {
		return ErrProposalInvalid
	}
	return nil
}

// CheckProposal validates a price proposal against the order. Proposing is
// legal only while the order is accepted and the actor is a negotiating
// party on this order. Proposing while the counterparty has an outstanding
// proposal is allowed: the new proposal displaces it (last offer wins).
func CheckProposal(o *Order, actor Actor, amount int64) (NegotiationStatus, error) {
	if err := ValidateProposalAmount(amount); err != nil {
		return NegotiationNone, err
	}
	if o.Status != StatusAccepted || o.NegotiationStatus == NegotiationAccepted {
		return NegotiationNone, ErrInvalidTransition
	}
	if err := checkNegotiationParty(o, actor); err != nil {
		return NegotiationNone, err
	}
	return proposalStatusFor(actor.Role)
}

// AcceptablePrice returns the counterparty's outstanding proposal that actor
// may accept, or an error if none is outstanding.
func AcceptablePrice(o *Order, actor Actor) (types.Money, error) {
	if o.Status != StatusAccepted {
		return types.Money{}, ErrInvalidTransition
	}
	if err := checkNegotiationParty(o, actor); err != nil {
		return types.Money{}, err
	}
	switch actor.Role {
	case RoleCustomer:
		if o.NegotiationStatus == NegotiationDriverProposed && o.DriverProposedPrice != nil {
			return *o.DriverProposedPrice, nil
		}
	case RoleDriver:
		if o.NegotiationStatus == NegotiationCustomerProposed && o.CustomerProposedPrice != nil {
			return *o.CustomerProposedPrice, nil
		}
	}
	return types.Money{}, ErrNoProposal
}

func checkNegotiationParty(o *Order, actor Actor) error {
	switch actor.Role {
	case RoleCustomer:
		if o.CustomerID != actor.ID {
			return ErrActorNotPermitted
		}
	case RoleDriver:
		if o.DriverID == nil || *o.DriverID != actor.ID {
			return ErrActorNotPermitted
		}
	default:
		return ErrActorNotPermitted
	}
	return nil
}
