package domain

import (
	"fmt"
	"time"
)

// CartItem is a not-yet-submitted intent to fund a target with a given amount.
type CartItem struct {
	ID          string     `json:"id"`
	TargetType  TargetType `json:"targetType"`
	TargetID    string     `json:"targetId"`
	TargetName  string     `json:"targetName"`
	Amount      string     `json:"amount"`   // user-entered decimal string, not normalized
	Currency    string     `json:"currency"` // display tag only
	Description string     `json:"description,omitempty"`
	AddedAt     time.Time  `json:"addedAt"`
}

// NewCartItemID builds the per-insertion id "{targetType}_{targetId}_{unixMillis}".
func NewCartItemID(targetType TargetType, targetID string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d", targetType, targetID, at.UnixMilli())
}

// SameIntent reports whether two items describe the same (type, target, amount, currency) tuple.
func (c CartItem) SameIntent(other CartItem) bool {
	return c.TargetType == other.TargetType &&
		c.TargetID == other.TargetID &&
		c.Amount == other.Amount &&
		c.Currency == other.Currency
}
