package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/bitcoinuniversity/invest/internal/domain"
)

// ErrItemNotFound indicates that no cart item carries the requested id.
var ErrItemNotFound = errors.New("cart item not found")

// Persister stores one serialized cart record per identity.
// Load returns (nil, nil) when nothing has been stored for the identity.
type Persister interface {
	Load(ctx context.Context, id domain.Identity) ([]byte, error)
	Save(ctx context.Context, id domain.Identity, data []byte) error
}

// NewItem is the caller-supplied part of a cart item; the store assigns id and timestamp.
type NewItem struct {
	TargetType  domain.TargetType
	TargetID    string
	TargetName  string
	Amount      string
	Currency    string
	Description string
}

// Store serves carts straight from the Persister: every operation loads the
// identity's record and every mutation saves it back. Nothing is held in process,
// so instances sharing a durable persister see each other's writes.
type Store struct {
	persister Persister
	now       func() time.Time

	mu sync.Mutex // serializes read-modify-write cycles within this process
}

// NewStore creates a Store backed by the given Persister.
func NewStore(persister Persister) *Store {
	return &Store{
		persister: persister,
		now:       time.Now,
	}
}

// Items returns a copy of the identity's cart in insertion order.
func (s *Store) Items(ctx context.Context, id domain.Identity) ([]domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return append([]domain.CartItem(nil), items...), nil
}

// AddItem appends a new item unless one with the same intent tuple already exists.
// The returned bool is false when the insertion was a no-op; the existing item is returned then.
func (s *Store) AddItem(ctx context.Context, id domain.Identity, in NewItem) (domain.CartItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx, id)
	if err != nil {
		return domain.CartItem{}, false, err
	}

	now := s.now()
	item := domain.CartItem{
		ID:          domain.NewCartItemID(in.TargetType, in.TargetID, now),
		TargetType:  in.TargetType,
		TargetID:    in.TargetID,
		TargetName:  in.TargetName,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Description: in.Description,
		AddedAt:     now,
	}

	if existing, ok := lo.Find(items, item.SameIntent); ok {
		return existing, false, nil
	}

	updated := append(append([]domain.CartItem(nil), items...), item)
	if err := s.save(ctx, id, updated); err != nil {
		return domain.CartItem{}, false, err
	}
	return item, true, nil
}

// RemoveItem deletes the item with the given id. Removing an unknown id is a no-op.
func (s *Store) RemoveItem(ctx context.Context, id domain.Identity, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !lo.ContainsBy(items, func(c domain.CartItem) bool { return c.ID == itemID }) {
		return nil
	}
	return s.save(ctx, id, lo.Reject(items, func(c domain.CartItem, _ int) bool { return c.ID == itemID }))
}

// RemoveItems deletes every item whose id is in itemIDs. Unknown ids are ignored.
func (s *Store) RemoveItems(ctx context.Context, id domain.Identity, itemIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	kept := lo.Reject(items, func(c domain.CartItem, _ int) bool { return lo.Contains(itemIDs, c.ID) })
	if len(kept) == len(items) {
		return nil
	}
	return s.save(ctx, id, kept)
}

// UpdateItemAmount replaces the amount of an item in place.
func (s *Store) UpdateItemAmount(ctx context.Context, id domain.Identity, itemID, amount string) (domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx, id)
	if err != nil {
		return domain.CartItem{}, err
	}
	_, idx, ok := lo.FindIndexOf(items, func(c domain.CartItem) bool { return c.ID == itemID })
	if !ok {
		return domain.CartItem{}, ErrItemNotFound
	}

	updated := append([]domain.CartItem(nil), items...)
	updated[idx].Amount = amount
	if err := s.save(ctx, id, updated); err != nil {
		return domain.CartItem{}, err
	}
	return updated[idx], nil
}

// Clear empties the identity's cart.
func (s *Store) Clear(ctx context.Context, id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.save(ctx, id, nil)
}

// TotalItems returns the number of items in the cart.
func (s *Store) TotalItems(ctx context.Context, id domain.Identity) (int, error) {
	items, err := s.Items(ctx, id)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// TotalAmount sums every item's amount as a float, ignoring currency.
// Mixed-currency carts therefore produce a number with no single unit; callers that
// need per-currency figures should use CurrencyBreakdown.
func (s *Store) TotalAmount(ctx context.Context, id domain.Identity) (float64, error) {
	items, err := s.Items(ctx, id)
	if err != nil {
		return 0, err
	}
	return TotalAmount(items), nil
}

// TotalAmount sums item amounts with float parsing, regardless of currency.
func TotalAmount(items []domain.CartItem) float64 {
	return lo.Reduce(items, func(acc float64, c domain.CartItem, _ int) float64 {
		return acc + domain.ParseAmountFloat(c.Amount)
	}, 0)
}

// CurrencyBreakdown sums item amounts per currency tag.
func CurrencyBreakdown(items []domain.CartItem) map[string]float64 {
	out := make(map[string]float64)
	for _, c := range items {
		out[c.Currency] += domain.ParseAmountFloat(c.Amount)
	}
	return out
}

// load reads the cart for id from the persister. Must be called with s.mu held.
func (s *Store) load(ctx context.Context, id domain.Identity) ([]domain.CartItem, error) {
	data, err := s.persister.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading cart for %s: %w", id, err)
	}
	return decode(id, data), nil
}

// save persists items for id. Must be called with s.mu held.
func (s *Store) save(ctx context.Context, id domain.Identity, items []domain.CartItem) error {
	if items == nil {
		items = []domain.CartItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding cart for %s: %w", id, err)
	}
	if err := s.persister.Save(ctx, id, data); err != nil {
		return fmt.Errorf("saving cart for %s: %w", id, err)
	}
	return nil
}

// decode parses a persisted cart. Corrupt records degrade to an empty cart.
func decode(id domain.Identity, data []byte) []domain.CartItem {
	if len(strings.TrimSpace(string(data))) == 0 {
		return []domain.CartItem{}
	}
	var items []domain.CartItem
	if err := json.Unmarshal(data, &items); err != nil {
		slog.Warn("discarding malformed cart record", "identity", id, "error", err)
		return []domain.CartItem{}
	}
	if items == nil {
		return []domain.CartItem{}
	}
	return items
}
