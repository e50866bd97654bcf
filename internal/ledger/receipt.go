package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/bitcoinuniversity/invest/internal/batch"
	"github.com/bitcoinuniversity/invest/internal/domain"
	"github.com/bitcoinuniversity/invest/internal/submit"
)

// ErrNotFound indicates that the requested receipt was not found.
var ErrNotFound = errors.New("receipt not found")

// ReceiptItem is one investment line of a settled checkout.
type ReceiptItem struct {
	TargetType domain.TargetType `json:"targetType"`
	TargetID   string            `json:"targetId"`
	TargetName string            `json:"targetName"`
	Amount     string            `json:"amount"`    // as entered in the cart
	BaseUnits  string            `json:"baseUnits"` // amount sent on chain
	Currency   string            `json:"currency"`
}

// Receipt records a successful checkout.
type Receipt struct {
	ID            uuid.UUID       `json:"id"`
	Wallet        domain.Identity `json:"wallet"`
	Kind          submit.Kind     `json:"kind"`
	TransactionID string          `json:"transactionId"`
	Principal     string          `json:"principal"` // native unit, decimal string
	Fee           string          `json:"fee"`
	Value         string          `json:"value"`
	Items         []ReceiptItem   `json:"items"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// NewReceipt builds the receipt for a submitted batch.
func NewReceipt(wallet domain.Identity, items []domain.CartItem, b batch.Batch, res submit.Result) Receipt {
	return Receipt{
		ID:            uuid.New(),
		Wallet:        wallet,
		Kind:          res.Kind,
		TransactionID: res.ID,
		Principal:     domain.FormatBaseUnits(b.Principal),
		Fee:           domain.FormatBaseUnits(b.Fee),
		Value:         domain.FormatBaseUnits(b.Value),
		Items: lo.Map(items, func(c domain.CartItem, i int) ReceiptItem {
			return ReceiptItem{
				TargetType: c.TargetType,
				TargetID:   c.TargetID,
				TargetName: c.TargetName,
				Amount:     c.Amount,
				BaseUnits:  b.Amounts[i].String(),
				Currency:   c.Currency,
			}
		}),
		CreatedAt: res.SubmittedAt,
	}
}
