// README: Settings store backed by a PostgreSQL key/value table.
package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("setting not found")

// Provider is the read interface the rest of the engine depends on.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	row := s.db.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key)
	var v string
	err := row.Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}
