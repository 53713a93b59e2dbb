// README: Order service implements the command surface: create, claim, advance, cancel, negotiate.
package order

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"courier/internal/modules/pricing"
	"courier/internal/types"
)

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrActorNotPermitted = errors.New("actor not permitted for this transition")
	ErrStaleWrite        = errors.New("conditional update did not apply")
	ErrProposalInvalid   = errors.New("proposed amount must be a positive number")
	ErrNoProposal        = errors.New("no outstanding proposal to accept")
	ErrNotFound          = errors.New("order not found")
	ErrBadRequest        = errors.New("bad request")
)

// Pricing quotes a fee for a route and resolves stop addresses.
type Pricing interface {
	Quote(ctx context.Context, req pricing.QuoteRequest) (types.Money, error)
	ResolveAddress(ctx context.Context, p types.Point) string
}

// Notifier delivers a best-effort message to a user. Dispatch failures are
// logged, never retried, and never fail the command that triggered them.
type Notifier interface {
	Notify(ctx context.Context, userID types.ID, title, body string)
}

// Presence supplies driver candidates for the search fan-out.
type Presence interface {
	Candidates(ctx context.Context, orderID types.ID, p types.Point, radiusKm float64) ([]types.ID, error)
	MarkDispatched(ctx context.Context, orderID types.ID, drivers []types.ID) error
}

// SearchSettings yields the current search window parameters.
type SearchSettings interface {
	Window(ctx context.Context) (radiusKm float64, duration time.Duration)
}

type Service struct {
	store    *Store
	pricing  Pricing
	notifier Notifier
	presence Presence
	search   SearchSettings
}

func NewService(store *Store, pricing Pricing, notifier Notifier, presence Presence, search SearchSettings) *Service {
	return &Service{store: store, pricing: pricing, notifier: notifier, presence: presence, search: search}
}

type CreateCommand struct {
	CustomerID  types.ID
	CustomerPos types.Point
	Stops       []Stop
}

type ClaimCommand struct {
	OrderID  types.ID
	DriverID types.ID
}

type AdvanceCommand struct {
	OrderID types.ID
	Next    Status
	Actor   Actor
}

type CancelCommand struct {
	OrderID types.ID
	Actor   Actor
	Reason  string
}

type ProposeCommand struct {
	OrderID types.ID
	Actor   Actor
	Amount  int64
}

type AcceptProposalCommand struct {
	OrderID types.ID
	Actor   Actor
}

type RestartSearchCommand struct {
	OrderID    types.ID
	CustomerID types.ID
}

// Create quotes the fee, initialises the search window, persists the order,
// and fans the search out to nearby drivers.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	if cmd.CustomerID == "" || len(cmd.Stops) == 0 {
		return "", ErrBadRequest
	}

	stops := make([]Stop, len(cmd.Stops))
	copy(stops, cmd.Stops)
	points := make([]types.Point, 0, len(stops))
	items := 0
	for i := range stops {
		if stops[i].Address == "" {
			stops[i].Address = s.pricing.ResolveAddress(ctx, stops[i].Position)
		}
		points = append(points, stops[i].Position)
		items += len(stops[i].Items)
	}
	if items < 1 {
		items = 1
	}

	fee, err := s.pricing.Quote(ctx, pricing.QuoteRequest{
		Customer:  cmd.CustomerPos,
		Stops:     points,
		ItemCount: items,
	})
	if err != nil {
		return "", fmt.Errorf("quoting order: %w", err)
	}

	radius, duration := s.search.Window(ctx)
	now := time.Now()
	expiresAt := now.Add(duration)

	o := &Order{
		ID:              newID(),
		CustomerID:      cmd.CustomerID,
		Status:          StatusPending,
		StatusVersion:   0,
		SearchStatus:    SearchSearching,
		SearchExpiresAt: &expiresAt,
		TotalFee:        fee,
		Route:           stops,
		CreatedAt:       now,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return "", err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusPending,
		ActorType:  string(RoleCustomer),
		ActorID:    &cmd.CustomerID,
		CreatedAt:  now,
	})

	s.dispatch(o.ID, cmd.CustomerPos, radius, fee)
	return o.ID, nil
}

// Claim assigns the calling driver to a pending order. Losing the race is an
// ErrStaleWrite; the driver's app re-reads and shows the new state.
func (s *Service) Claim(ctx context.Context, cmd ClaimCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if err := CheckTransition(o, StatusAccepted, Actor{ID: cmd.DriverID, Role: RoleDriver}); err != nil {
		return err
	}
	ok, err := s.store.Claim(ctx, o.ID, cmd.DriverID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStaleWrite
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: StatusPending,
		ToStatus:   StatusAccepted,
		ActorType:  string(RoleDriver),
		ActorID:    &cmd.DriverID,
		CreatedAt:  time.Now(),
	})
	s.notify(o.CustomerID, "Driver found", "A driver has accepted your delivery.")
	return nil
}

// Advance moves the delivery forward (picked_up, in_transit, completed).
func (s *Service) Advance(ctx context.Context, cmd AdvanceCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if err := CheckTransition(o, cmd.Next, cmd.Actor); err != nil {
		return err
	}
	ok, err := s.store.UpdateStatus(ctx, o.ID, o.Status, cmd.Next, o.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStaleWrite
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: o.Status,
		ToStatus:   cmd.Next,
		ActorType:  string(cmd.Actor.Role),
		ActorID:    &cmd.Actor.ID,
		CreatedAt:  time.Now(),
	})
	if cmd.Next == StatusCompleted {
		s.notify(o.CustomerID, "Delivery completed", "Your delivery has been completed.")
	}
	return nil
}

func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if err := CheckTransition(o, StatusCancelled, cmd.Actor); err != nil {
		return err
	}
	ok, err := s.store.UpdateStatus(ctx, o.ID, o.Status, StatusCancelled, o.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStaleWrite
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: o.Status,
		ToStatus:   StatusCancelled,
		ActorType:  string(cmd.Actor.Role),
		ActorID:    &cmd.Actor.ID,
		CreatedAt:  time.Now(),
	})
	// Cancelling is the implicit rejection signal for any open negotiation.
	if cmd.Actor.Role != RoleCustomer {
		s.notify(o.CustomerID, "Order cancelled", "Your delivery was cancelled.")
	} else if o.DriverID != nil {
		s.notify(*o.DriverID, "Order cancelled", "The customer cancelled the delivery.")
	}
	return nil
}

// Propose submits a price proposal, displacing any counterparty proposal.
func (s *Service) Propose(ctx context.Context, cmd ProposeCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	status, err := CheckProposal(o, cmd.Actor, cmd.Amount)
	if err != nil {
		return err
	}
	ok, err := s.store.SetProposal(ctx, o.ID, status, cmd.Amount)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStaleWrite
	}
	if cmd.Actor.Role == RoleDriver {
		s.notify(o.CustomerID, "New price proposal", fmt.Sprintf("The driver proposed %d %s.", cmd.Amount, o.TotalFee.Currency))
	} else if o.DriverID != nil {
		s.notify(*o.DriverID, "New price proposal", fmt.Sprintf("The customer proposed %d %s.", cmd.Amount, o.TotalFee.Currency))
	}
	return nil
}

// AcceptProposal concludes negotiation at the counterparty's outstanding price.
func (s *Service) AcceptProposal(ctx context.Context, cmd AcceptProposalCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	price, err := AcceptablePrice(o, cmd.Actor)
	if err != nil {
		return err
	}
	ok, err := s.store.AcceptProposal(ctx, o.ID, o.NegotiationStatus, price.Amount)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStaleWrite
	}
	if cmd.Actor.Role == RoleCustomer && o.DriverID != nil {
		s.notify(*o.DriverID, "Proposal accepted", fmt.Sprintf("Agreed price: %d %s.", price.Amount, price.Currency))
	} else {
		s.notify(o.CustomerID, "Proposal accepted", fmt.Sprintf("Agreed price: %d %s.", price.Amount, price.Currency))
	}
	return nil
}

// RestartSearch re-opens the driver search after a stopped collapse.
func (s *Service) RestartSearch(ctx context.Context, cmd RestartSearchCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if o.CustomerID != cmd.CustomerID {
		return ErrActorNotPermitted
	}
	if o.Status != StatusPending || o.SearchStatus != SearchStopped {
		return ErrInvalidTransition
	}
	radius, duration := s.search.Window(ctx)
	ok, err := s.store.RestartSearch(ctx, o.ID, time.Now().Add(duration))
	if err != nil {
		return err
	}
	if !ok {
		return ErrStaleWrite
	}
	if len(o.Route) > 0 {
		s.dispatch(o.ID, o.Route[0].Position, radius, o.TotalFee)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

// ExpandSearch widens the candidate radius mid-window and re-dispatches.
// Called by the search timer subsystem, not by clients.
func (s *Service) ExpandSearch(ctx context.Context, id types.ID) (bool, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	ok, err := s.store.ExpandSearch(ctx, id)
	if err != nil || !ok {
		return ok, err
	}
	radius, _ := s.search.Window(ctx)
	if len(o.Route) > 0 {
		s.dispatch(o.ID, o.Route[0].Position, radius*2, o.TotalFee)
	}
	return true, nil
}

// CollapseSearch marks an expired search stopped. Only the first caller
// gets applied=true, so the customer is told about the outcome exactly once.
func (s *Service) CollapseSearch(ctx context.Context, id types.ID) (bool, error) {
	ok, err := s.store.CollapseSearch(ctx, id)
	if err != nil || !ok {
		return ok, err
	}
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return true, nil
	}
	s.notify(o.CustomerID, "No drivers found", "The search window ended. You can restart the search from the order screen.")
	return true, nil
}

// dispatch pings nearby drivers about a searchable order. Fire-and-forget:
// the search outcome depends on claims, not on notification delivery.
func (s *Service) dispatch(orderID types.ID, origin types.Point, radiusKm float64, fee types.Money) {
	if s.presence == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		drivers, err := s.presence.Candidates(ctx, orderID, origin, radiusKm)
		if err != nil {
			log.Printf("order: candidate query for %s: %v", orderID, err)
			return
		}
		for _, d := range drivers {
			s.notify(d, "New delivery nearby", fmt.Sprintf("Estimated fee %d %s.", fee.Amount, fee.Currency))
		}
		if err := s.presence.MarkDispatched(ctx, orderID, drivers); err != nil {
			log.Printf("order: recording dispatch for %s: %v", orderID, err)
		}
	}()
}

func (s *Service) notify(userID types.ID, title, body string) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.notifier.Notify(ctx, userID, title, body)
	}()
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
