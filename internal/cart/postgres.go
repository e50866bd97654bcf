package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bitcoinuniversity/invest/internal/domain"
)

// PgPersister implements Persister with PostgreSQL. Records are stored as TEXT, not
// JSONB, so a damaged record is read back as-is and handled by the store.
type PgPersister struct {
	pool *pgxpool.Pool
}

// NewPgPersister creates a new PostgreSQL cart persister.
func NewPgPersister(pool *pgxpool.Pool) *PgPersister {
	return &PgPersister{pool: pool}
}

func (p *PgPersister) Load(ctx context.Context, id domain.Identity) ([]byte, error) {
	var data string
	err := p.pool.QueryRow(ctx,
		`SELECT data FROM cart_states WHERE identity = $1`, string(id)).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cart state: %w", err)
	}
	return []byte(data), nil
}

func (p *PgPersister) Save(ctx context.Context, id domain.Identity, data []byte) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO cart_states (identity, data, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (identity) DO UPDATE SET data = $2, updated_at = NOW()`,
		string(id), string(data))
	if err != nil {
		return fmt.Errorf("writing cart state: %w", err)
	}
	return nil
}
