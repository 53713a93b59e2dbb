// README: State machine tests (transition table + actor permissions), no database needed.
package order

import (
	"errors"
	"testing"

	"courier/internal/types"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		// happy-path forward transitions
		{StatusPending, StatusAccepted, true},
		{StatusAccepted, StatusPickedUp, true},
		{StatusPickedUp, StatusInTransit, true},
		{StatusInTransit, StatusCompleted, true},
		// cancels
		{StatusPending, StatusCancelled, true},
		{StatusAccepted, StatusCancelled, true},
		{StatusPickedUp, StatusCancelled, false},
		{StatusInTransit, StatusCancelled, false},
		// invalid: terminal states have no outgoing transitions
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusAccepted, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		// invalid: skipping states
		{StatusPending, StatusPickedUp, false},
		{StatusPending, StatusInTransit, false},
		{StatusPending, StatusCompleted, false},
		{StatusAccepted, StatusInTransit, false},
		{StatusAccepted, StatusCompleted, false},
		// invalid: backward moves
		{StatusAccepted, StatusPending, false},
		{StatusInTransit, StatusPickedUp, false},
	}
	for _, tc := range cases {
		got := CanTransition(tc.from, tc.to)
		if got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func driverID(id string) *types.ID {
	d := types.ID(id)
	return &d
}

func TestCheckTransition_Permissions(t *testing.T) {
	accepted := &Order{CustomerID: "c1", DriverID: driverID("d1"), Status: StatusAccepted}
	pending := &Order{CustomerID: "c1", Status: StatusPending}

	cases := []struct {
		name    string
		order   *Order
		to      Status
		actor   Actor
		wantErr error
	}{
		{"assigned driver picks up", accepted, StatusPickedUp, Actor{ID: "d1", Role: RoleDriver}, nil},
		{"other driver cannot pick up", accepted, StatusPickedUp, Actor{ID: "d2", Role: RoleDriver}, ErrActorNotPermitted},
		{"customer cannot pick up", accepted, StatusPickedUp, Actor{ID: "c1", Role: RoleCustomer}, ErrActorNotPermitted},
		{"owner cancels accepted", accepted, StatusCancelled, Actor{ID: "c1", Role: RoleCustomer}, nil},
		{"stranger cannot cancel", accepted, StatusCancelled, Actor{ID: "c2", Role: RoleCustomer}, ErrActorNotPermitted},
		{"driver cannot cancel accepted", accepted, StatusCancelled, Actor{ID: "d1", Role: RoleDriver}, ErrActorNotPermitted},
		{"driver may abandon pending", pending, StatusCancelled, Actor{ID: "d9", Role: RoleDriver}, nil},
		{"admin cancels anything cancellable", accepted, StatusCancelled, Actor{ID: "a1", Role: RoleAdmin}, nil},
		{"only drivers claim", pending, StatusAccepted, Actor{ID: "c1", Role: RoleCustomer}, ErrActorNotPermitted},
		{"illegal edge beats permission", pending, StatusPickedUp, Actor{ID: "d1", Role: RoleDriver}, ErrInvalidTransition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckTransition(tc.order, tc.to, tc.actor)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("CheckTransition = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestApplyTransition_ClaimSetsDriver(t *testing.T) {
	o := &Order{CustomerID: "c1", Status: StatusPending, SearchStatus: SearchSearching}
	if err := ApplyTransition(o, StatusAccepted, Actor{ID: "d1", Role: RoleDriver}); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if o.Status != StatusAccepted {
		t.Errorf("status = %s, want accepted", o.Status)
	}
	if o.DriverID == nil || *o.DriverID != "d1" {
		t.Error("claim must set driver id atomically with the status change")
	}
	if o.SearchStatus != SearchFound {
		t.Errorf("search status = %s, want found", o.SearchStatus)
	}
}

func TestApplyTransition_TerminalHasNoExit(t *testing.T) {
	for _, from := range []Status{StatusCompleted, StatusCancelled} {
		for _, to := range []Status{StatusPending, StatusAccepted, StatusPickedUp, StatusInTransit, StatusCompleted, StatusCancelled} {
			if from == to {
				continue
			}
			o := &Order{CustomerID: "c1", DriverID: driverID("d1"), Status: from}
			if err := ApplyTransition(o, to, Actor{ID: "a1", Role: RoleAdmin}); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s -> %s: err = %v, want ErrInvalidTransition", from, to, err)
			}
		}
	}
}
