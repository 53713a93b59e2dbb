// README: Order service flow tests (DB-backed, gated on COURIER_TEST_DSN).
package order

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"courier/internal/modules/pricing"
	"courier/internal/types"
)

type stubPricing struct{}

func (stubPricing) Quote(_ context.Context, _ pricing.QuoteRequest) (types.Money, error) {
	return types.Money{Amount: 25, Currency: "USD"}, nil
}

func (stubPricing) ResolveAddress(_ context.Context, _ types.Point) string { return "" }

type stubSearchSettings struct{ duration time.Duration }

func (s stubSearchSettings) Window(_ context.Context) (float64, time.Duration) {
	return 10, s.duration
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(setupTestStore(t), stubPricing{}, nil, nil, stubSearchSettings{duration: time.Minute})
}

func mustCreateOrder(t *testing.T, svc *Service, customerID types.ID) types.ID {
	t.Helper()
	id, err := svc.Create(context.Background(), CreateCommand{
		CustomerID:  customerID,
		CustomerPos: types.Point{Lat: 25.033, Lng: 121.565},
		Stops: []Stop{
			{Address: "1 Market St", Position: types.Point{Lat: 25.0478, Lng: 121.5318}, Items: []string{"parcel"}},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return id
}

func assertStatus(t *testing.T, svc *Service, orderID types.ID, want Status) {
	t.Helper()
	o, err := svc.Get(context.Background(), orderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if o.Status != want {
		t.Fatalf("expected status %s, got %s", want, o.Status)
	}
}

func TestOrderFlowHappyPath(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	orderID := mustCreateOrder(t, svc, "c_happy")
	assertStatus(t, svc, orderID, StatusPending)

	o, err := svc.Get(ctx, orderID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if o.SearchStatus != SearchSearching {
		t.Fatalf("expected searching, got %s", o.SearchStatus)
	}
	if o.SearchExpiresAt == nil || !o.SearchExpiresAt.After(time.Now()) {
		t.Fatal("expected a future search expiry")
	}

	if err := svc.Claim(ctx, ClaimCommand{OrderID: orderID, DriverID: "d1"}); err != nil {
		t.Fatalf("claim: %v", err)
	}
	o, _ = svc.Get(ctx, orderID)
	if o.Status != StatusAccepted || o.DriverID == nil || *o.DriverID != "d1" {
		t.Fatalf("claim must set accepted+driver, got %s/%v", o.Status, o.DriverID)
	}
	if o.SearchStatus != SearchFound {
		t.Fatalf("expected search found after claim, got %s", o.SearchStatus)
	}

	driver := Actor{ID: "d1", Role: RoleDriver}
	for _, next := range []Status{StatusPickedUp, StatusInTransit, StatusCompleted} {
		if err := svc.Advance(ctx, AdvanceCommand{OrderID: orderID, Next: next, Actor: driver}); err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
	}
	assertStatus(t, svc, orderID, StatusCompleted)
}

func TestOrderFlowCancelPending(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	orderID := mustCreateOrder(t, svc, "c_cancel")
	if err := svc.Cancel(ctx, CancelCommand{OrderID: orderID, Actor: Actor{ID: "c_cancel", Role: RoleCustomer}, Reason: "user_cancel"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	assertStatus(t, svc, orderID, StatusCancelled)

	// cancelling a pending order also ends the search
	o, _ := svc.Get(ctx, orderID)
	if o.SearchStatus != SearchStopped {
		t.Fatalf("expected search stopped after cancel, got %s", o.SearchStatus)
	}
}

func TestNegotiationFlow(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	orderID := mustCreateOrder(t, svc, "c_neg")
	if err := svc.Claim(ctx, ClaimCommand{OrderID: orderID, DriverID: "d_neg"}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	driver := Actor{ID: "d_neg", Role: RoleDriver}
	customer := Actor{ID: "c_neg", Role: RoleCustomer}

	if err := svc.Propose(ctx, ProposeCommand{OrderID: orderID, Actor: driver, Amount: 40}); err != nil {
		t.Fatalf("driver propose: %v", err)
	}
	o, _ := svc.Get(ctx, orderID)
	if o.NegotiationStatus != NegotiationDriverProposed || o.DriverProposedPrice == nil || o.DriverProposedPrice.Amount != 40 {
		t.Fatalf("unexpected negotiation state after driver proposal: %+v", o)
	}

	// customer counter-proposal displaces the driver's
	if err := svc.Propose(ctx, ProposeCommand{OrderID: orderID, Actor: customer, Amount: 30}); err != nil {
		t.Fatalf("customer propose: %v", err)
	}
	o, _ = svc.Get(ctx, orderID)
	if o.DriverProposedPrice != nil {
		t.Fatal("counter-proposal must clear the driver's proposal")
	}
	if o.CustomerProposedPrice == nil || o.CustomerProposedPrice.Amount != 30 {
		t.Fatalf("expected customer proposal of 30, got %+v", o.CustomerProposedPrice)
	}

	if err := svc.AcceptProposal(ctx, AcceptProposalCommand{OrderID: orderID, Actor: driver}); err != nil {
		t.Fatalf("driver accept: %v", err)
	}
	o, _ = svc.Get(ctx, orderID)
	if o.NegotiationStatus != NegotiationAccepted {
		t.Fatalf("expected negotiation accepted, got %s", o.NegotiationStatus)
	}
	if o.DriverProposedPrice != nil || o.CustomerProposedPrice != nil {
		t.Fatal("acceptance must clear both proposal fields")
	}
	if o.NegotiatedPrice == nil || o.NegotiatedPrice.Amount != 30 {
		t.Fatalf("expected negotiated price 30, got %+v", o.NegotiatedPrice)
	}
	if o.BillableFee().Amount != 30 {
		t.Fatalf("negotiated price must override the quoted fee")
	}
}

func TestRestartSearchAfterCollapse(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	orderID := mustCreateOrder(t, svc, "c_restart")
	ok, err := svc.store.CollapseSearch(ctx, orderID)
	if err != nil || !ok {
		t.Fatalf("collapse: applied=%v err=%v", ok, err)
	}

	// restart only by the owning customer
	err = svc.RestartSearch(ctx, RestartSearchCommand{OrderID: orderID, CustomerID: "someone_else"})
	if err != ErrActorNotPermitted {
		t.Fatalf("expected ErrActorNotPermitted, got %v", err)
	}

	if err := svc.RestartSearch(ctx, RestartSearchCommand{OrderID: orderID, CustomerID: "c_restart"}); err != nil {
		t.Fatalf("restart: %v", err)
	}
	o, _ := svc.Get(ctx, orderID)
	if o.SearchStatus != SearchSearching {
		t.Fatalf("expected searching after restart, got %s", o.SearchStatus)
	}
	if o.SearchExpiresAt == nil || !o.SearchExpiresAt.After(time.Now()) {
		t.Fatal("restart must set a fresh future expiry")
	}

	// a second restart without a collapse is invalid
	if err := svc.RestartSearch(ctx, RestartSearchCommand{OrderID: orderID, CustomerID: "c_restart"}); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("COURIER_TEST_DSN")
	if dsn == "" {
		t.Skip("COURIER_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}

	if _, err := db.Exec(ctx, "TRUNCATE TABLE order_state_events, orders"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	return NewStore(db, nil)
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}
	cleaned := stripSQLComments(string(content))
	for _, stmt := range splitSQL(cleaned) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
