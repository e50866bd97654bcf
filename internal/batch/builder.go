package batch

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/samber/lo"

	"github.com/bitcoinuniversity/invest/internal/domain"
)

// FunctionName is the contract function that accepts a batch of investments.
const FunctionName = "batchInvest"

// FeeBasisPoints is the platform fee charged on top of the principal (100 bp = 1%).
const FeeBasisPoints = 100

// ItemMetadata is the per-item JSON blob passed alongside the parallel arrays.
type ItemMetadata struct {
	CartItemID  string    `json:"cartItemId"`
	Currency    string    `json:"currency"`
	Description string    `json:"description,omitempty"`
	AddedAt     time.Time `json:"addedAt"`
}

// Batch is the argument tuple of one batchInvest call plus the native value to send.
type Batch struct {
	TargetTypes []string
	TargetIDs   []string
	TargetNames []string
	Amounts     []*big.Int // base units
	Metadata    []string   // JSON-encoded ItemMetadata

	Principal *big.Int // sum of Amounts
	Fee       *big.Int // Principal * FeeBasisPoints / 10000
	Value     *big.Int // Principal + Fee
}

// Build projects cart items, in order, into a Batch. Amounts are not validated:
// an amount that does not parse is sent as zero base units.
func Build(items []domain.CartItem) Batch {
	b := Batch{
		TargetTypes: lo.Map(items, func(c domain.CartItem, _ int) string { return string(c.TargetType) }),
		TargetIDs:   lo.Map(items, func(c domain.CartItem, _ int) string { return c.TargetID }),
		TargetNames: lo.Map(items, func(c domain.CartItem, _ int) string { return c.TargetName }),
		Amounts:     lo.Map(items, func(c domain.CartItem, _ int) *big.Int { return domain.ToBaseUnits(c.Amount) }),
		Metadata:    lo.Map(items, func(c domain.CartItem, _ int) string { return encodeMetadata(c) }),
	}

	b.Principal = lo.Reduce(b.Amounts, func(acc *big.Int, a *big.Int, _ int) *big.Int {
		return acc.Add(acc, a)
	}, new(big.Int))
	b.Fee = Fee(b.Principal)
	b.Value = new(big.Int).Add(b.Principal, b.Fee)
	return b
}

// Fee returns the platform fee for a principal, rounded down to whole base units.
func Fee(principal *big.Int) *big.Int {
	fee := new(big.Int).Mul(principal, big.NewInt(FeeBasisPoints))
	return fee.Quo(fee, big.NewInt(10_000))
}

// Len returns the number of items in the batch.
func (b Batch) Len() int {
	return len(b.TargetIDs)
}

// Args renders the call arguments in contract order, with amounts as decimal strings.
func (b Batch) Args() []any {
	return []any{
		b.TargetTypes,
		b.TargetIDs,
		b.TargetNames,
		lo.Map(b.Amounts, func(a *big.Int, _ int) string { return a.String() }),
		b.Metadata,
	}
}

func encodeMetadata(c domain.CartItem) string {
	data, err := json.Marshal(ItemMetadata{
		CartItemID:  c.ID,
		Currency:    c.Currency,
		Description: c.Description,
		AddedAt:     c.AddedAt,
	})
	if err != nil {
		// ItemMetadata holds only strings and a time; Marshal cannot fail on it.
		return "{}"
	}
	return string(data)
}
