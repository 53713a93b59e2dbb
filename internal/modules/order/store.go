// README: Order store backed by PostgreSQL; conditional updates are the only concurrency control.
package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"courier/internal/types"
)

type Store struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

// NewStore creates the order store. redis may be nil in tests; change events
// are then simply not published.
func NewStore(db *pgxpool.Pool, redis *redis.Client) *Store {
	return &Store{db: db, redis: redis}
}

func (s *Store) Create(ctx context.Context, o *Order) error {
	route, err := json.Marshal(o.Route)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO orders (
			id, customer_id, driver_id, status, status_version,
			search_status, search_expires_at,
			negotiation_status, driver_proposed_price, customer_proposed_price,
			negotiated_price, total_fee, currency, route, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9, $10,
			$11, $12, $13, $14, $15
		)`,
		string(o.ID),
		string(o.CustomerID),
		idPtr(o.DriverID),
		string(o.Status),
		o.StatusVersion,
		nullIfEmpty(string(o.SearchStatus)),
		o.SearchExpiresAt,
		nullIfEmpty(string(o.NegotiationStatus)),
		moneyPtr(o.DriverProposedPrice),
		moneyPtr(o.CustomerProposedPrice),
		moneyPtr(o.NegotiatedPrice),
		o.TotalFee.Amount,
		o.TotalFee.Currency,
		route,
		o.CreatedAt,
	)
	if err != nil {
		return err
	}
	s.publish(ctx, o)
	return nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, customer_id, driver_id, status, status_version,
		       search_status, search_expires_at,
		       negotiation_status, driver_proposed_price, customer_proposed_price,
		       negotiated_price, total_fee, currency, route, created_at
		FROM orders
		WHERE id = $1`, string(id),
	)

	var o Order
	var driverID, searchStatus, negStatus sql.NullString
	var expiresAt sql.NullTime
	var driverPrice, customerPrice, negotiatedPrice sql.NullInt64
	var route []byte

	err := row.Scan(
		&o.ID, &o.CustomerID, &driverID, &o.Status, &o.StatusVersion,
		&searchStatus, &expiresAt,
		&negStatus, &driverPrice, &customerPrice,
		&negotiatedPrice, &o.TotalFee.Amount, &o.TotalFee.Currency, &route, &o.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if driverID.Valid {
		d := types.ID(driverID.String)
		o.DriverID = &d
	}
	o.SearchStatus = SearchStatus(searchStatus.String)
	if expiresAt.Valid {
		t := expiresAt.Time
		o.SearchExpiresAt = &t
	}
	o.NegotiationStatus = NegotiationStatus(negStatus.String)
	o.DriverProposedPrice = moneyFromNull(driverPrice, o.TotalFee.Currency)
	o.CustomerProposedPrice = moneyFromNull(customerPrice, o.TotalFee.Currency)
	o.NegotiatedPrice = moneyFromNull(negotiatedPrice, o.TotalFee.Currency)
	if len(route) > 0 {
		if err := json.Unmarshal(route, &o.Route); err != nil {
			return nil, err
		}
	}
	return &o, nil
}

// Claim atomically assigns a driver to a pending, unclaimed order and moves
// it to accepted. driver_id and status change in the same guarded write so a
// reader can never observe accepted without the driver set.
func (s *Store) Claim(ctx context.Context, id, driverID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = 'accepted',
		    driver_id = $2,
		    search_status = 'found',
		    status_version = status_version + 1
		WHERE id = $1 AND status = 'pending' AND driver_id IS NULL`,
		string(id), string(driverID),
	)
	if err != nil {
		return false, err
	}
	return s.applied(ctx, id, tag.RowsAffected())
}

// UpdateStatus performs the status-and-version guarded transition write.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    status_version = status_version + 1,
		    search_status = CASE WHEN $1 = 'cancelled' AND status = 'pending' THEN 'stopped' ELSE search_status END
		WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(to), string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return s.applied(ctx, id, tag.RowsAffected())
}

// CollapseSearch is the idempotent expiry write: only a pending order still
// actively searching collapses to stopped. Duplicate calls are no-ops.
func (s *Store) CollapseSearch(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET search_status = 'stopped'
		WHERE id = $1 AND status = 'pending' AND search_status IN ('searching', 'expanded')`,
		string(id),
	)
	if err != nil {
		return false, err
	}
	return s.applied(ctx, id, tag.RowsAffected())
}

// ExpandSearch widens an active search once; only searching expands.
func (s *Store) ExpandSearch(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET search_status = 'expanded'
		WHERE id = $1 AND status = 'pending' AND search_status = 'searching'`,
		string(id),
	)
	if err != nil {
		return false, err
	}
	return s.applied(ctx, id, tag.RowsAffected())
}

// RestartSearch re-enters searching with a fresh expiry after a collapse.
func (s *Store) RestartSearch(ctx context.Context, id types.ID, expiresAt time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET search_status = 'searching',
		    search_expires_at = $2
		WHERE id = $1 AND status = 'pending' AND search_status = 'stopped'`,
		string(id), expiresAt,
	)
	if err != nil {
		return false, err
	}
	return s.applied(ctx, id, tag.RowsAffected())
}

// SetProposal writes one party's price proposal, clearing the counterparty's
// outstanding proposal in the same statement. Guarded on the order still
// being in negotiation-eligible state.
func (s *Store) SetProposal(ctx context.Context, id types.ID, status NegotiationStatus, amount int64) (bool, error) {
	var query string
	switch status {
	case NegotiationDriverProposed:
		query = `
			UPDATE orders
			SET negotiation_status = 'driver_proposed',
			    driver_proposed_price = $2,
			    customer_proposed_price = NULL
			WHERE id = $1 AND status = 'accepted'
			  AND (negotiation_status IS NULL OR negotiation_status <> 'accepted')`
	case NegotiationCustomerProposed:
		query = `
			UPDATE orders
			SET negotiation_status = 'customer_proposed',
			    customer_proposed_price = $2,
			    driver_proposed_price = NULL
			WHERE id = $1 AND status = 'accepted'
			  AND (negotiation_status IS NULL OR negotiation_status <> 'accepted')`
	default:
		return false, ErrProposalInvalid
	}
	tag, err := s.db.Exec(ctx, query, string(id), amount)
	if err != nil {
		return false, err
	}
	return s.applied(ctx, id, tag.RowsAffected())
}

// AcceptProposal concludes negotiation at the counterparty's outstanding
// price. The guard re-checks both the negotiation state and the exact
// amount, so a proposal replaced between read and write is not accepted.
func (s *Store) AcceptProposal(ctx context.Context, id types.ID, outstanding NegotiationStatus, amount int64) (bool, error) {
	var query string
	switch outstanding {
	case NegotiationDriverProposed:
		query = `
			UPDATE orders
			SET negotiation_status = 'accepted',
			    negotiated_price = $2,
			    driver_proposed_price = NULL,
			    customer_proposed_price = NULL
			WHERE id = $1 AND status = 'accepted'
			  AND negotiation_status = 'driver_proposed' AND driver_proposed_price = $2`
	case NegotiationCustomerProposed:
		query = `
			UPDATE orders
			SET negotiation_status = 'accepted',
			    negotiated_price = $2,
			    driver_proposed_price = NULL,
			    customer_proposed_price = NULL
			WHERE id = $1 AND status = 'accepted'
			  AND negotiation_status = 'customer_proposed' AND customer_proposed_price = $2`
	default:
		return false, ErrNoProposal
	}
	tag, err := s.db.Exec(ctx, query, string(id), amount)
	if err != nil {
		return false, err
	}
	return s.applied(ctx, id, tag.RowsAffected())
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO order_state_events (
			order_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.OrderID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		idPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

// applied re-reads and publishes the row after a successful conditional
// write. Publication is best-effort; subscribers have the poll channel.
func (s *Store) applied(ctx context.Context, id types.ID, rows int64) (bool, error) {
	if rows != 1 {
		return false, nil
	}
	o, err := s.Get(ctx, id)
	if err != nil {
		log.Printf("order: re-read after write failed for %s: %v", id, err)
		return true, nil
	}
	s.publish(ctx, o)
	return true, nil
}

func (s *Store) publish(ctx context.Context, o *Order) {
	if s.redis == nil {
		return
	}
	payload, err := EncodeRecord(o)
	if err != nil {
		log.Printf("order: encoding change record for %s: %v", o.ID, err)
		return
	}
	if err := s.redis.Publish(ctx, EventChannel(o.ID), payload).Err(); err != nil {
		log.Printf("order: publishing change record for %s: %v", o.ID, err)
	}
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func moneyPtr(v *types.Money) *int64 {
	if v == nil {
		return nil
	}
	n := v.Amount
	return &n
}

func moneyFromNull(v sql.NullInt64, currency string) *types.Money {
	if !v.Valid {
		return nil
	}
	return &types.Money{Amount: v.Int64, Currency: currency}
}

func nullIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
