package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bitcoinuniversity/invest/internal/domain"
	"github.com/bitcoinuniversity/invest/internal/submit"
)

// Repository defines persistent storage for checkout receipts.
type Repository interface {
	Save(ctx context.Context, r Receipt) error
	GetByID(ctx context.Context, id uuid.UUID) (*Receipt, error)
	ListByWallet(ctx context.Context, wallet domain.Identity, limit int) ([]Receipt, error)
	ListAll(ctx context.Context, limit int) ([]Receipt, error)
}

const defaultListLimit = 50

// PgRepository implements Repository with PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL receipt repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const (
	receiptColumns = `id, wallet, kind, transaction_id, principal, fee, value, items, created_at`
	receiptSelect  = `id, wallet, kind, transaction_id, principal::text, fee::text, value::text, items, created_at`
)

func (r *PgRepository) Save(ctx context.Context, rc Receipt) error {
	items, err := json.Marshal(rc.Items)
	if err != nil {
		return fmt.Errorf("encoding receipt items: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO checkout_receipts (`+receiptColumns+`)
		 VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8::jsonb, $9)`,
		rc.ID, string(rc.Wallet), string(rc.Kind), rc.TransactionID,
		rc.Principal, rc.Fee, rc.Value, items, rc.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving receipt: %w", err)
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Receipt, error) {
	rc, err := scanReceipt(r.pool.QueryRow(ctx,
		`SELECT `+receiptSelect+` FROM checkout_receipts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return &rc, nil
}

func (r *PgRepository) ListByWallet(ctx context.Context, wallet domain.Identity, limit int) ([]Receipt, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+receiptSelect+` FROM checkout_receipts
		 WHERE wallet = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, string(wallet), limit)
	if err != nil {
		return nil, fmt.Errorf("listing receipts for %s: %w", wallet, err)
	}
	return collectReceipts(rows)
}

func (r *PgRepository) ListAll(ctx context.Context, limit int) ([]Receipt, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+receiptSelect+` FROM checkout_receipts
		 ORDER BY created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return collectReceipts(rows)
}

func collectReceipts(rows pgx.Rows) ([]Receipt, error) {
	defer rows.Close()

	var receipts []Receipt
	for rows.Next() {
		rc, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning receipt: %w", err)
		}
		receipts = append(receipts, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating receipts: %w", err)
	}
	return receipts, nil
}

func scanReceipt(row pgx.Row) (Receipt, error) {
	var (
		rc     Receipt
		wallet string
		kind   string
		items  []byte
	)
	err := row.Scan(&rc.ID, &wallet, &kind, &rc.TransactionID,
		&rc.Principal, &rc.Fee, &rc.Value, &items, &rc.CreatedAt)
	if err != nil {
		return Receipt{}, err
	}
	rc.Wallet = domain.Identity(wallet)
	rc.Kind = submit.Kind(kind)
	if err := json.Unmarshal(items, &rc.Items); err != nil {
		return Receipt{}, fmt.Errorf("decoding receipt items: %w", err)
	}
	return rc, nil
}

// MemoryRepository implements Repository in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	receipts []Receipt
}

// NewMemoryRepository creates an empty in-memory receipt repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) Save(_ context.Context, rc Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts = append(m.receipts, rc)
	return nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rc := range m.receipts {
		if rc.ID == id {
			return &rc, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRepository) ListByWallet(ctx context.Context, wallet domain.Identity, limit int) ([]Receipt, error) {
	return m.list(limit, func(rc Receipt) bool { return rc.Wallet == wallet }), nil
}

func (m *MemoryRepository) ListAll(_ context.Context, limit int) ([]Receipt, error) {
	return m.list(limit, func(Receipt) bool { return true }), nil
}

// list returns matching receipts newest first.
func (m *MemoryRepository) list(limit int, keep func(Receipt) bool) []Receipt {
	if limit <= 0 {
		limit = defaultListLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Receipt
	for _, rc := range slices.Backward(m.receipts) {
		if len(out) == limit {
			break
		}
		if keep(rc) {
			out = append(out, rc)
		}
	}
	return out
}
