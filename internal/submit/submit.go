package submit

import (
	"context"
	"errors"
	"time"

	"github.com/bitcoinuniversity/invest/internal/batch"
	"github.com/bitcoinuniversity/invest/internal/domain"
	"github.com/bitcoinuniversity/invest/internal/relay"
)

// ErrWalletNotConnected is returned when a submission is attempted without a wallet.
var ErrWalletNotConnected = errors.New("wallet not connected")

// Kind tells a relayed submission apart from a synthetic demo one.
type Kind string

const (
	KindRelayed Kind = "relayed"
	KindDemo    Kind = "demo"
)

// IsDemo reports whether k marks a submission that never reached a chain.
func (k Kind) IsDemo() bool { return k == KindDemo }

// Result is the terminal outcome of a successful submission.
type Result struct {
	Kind        Kind      `json:"kind"`
	ID          string    `json:"id"` // relay queue id, or a mock hash for KindDemo
	SubmittedAt time.Time `json:"submittedAt"`
}

// IsDemo reports whether the result was synthesized without touching a chain.
func (r Result) IsDemo() bool { return r.Kind.IsDemo() }

// Submitter sends a prepared batch on behalf of a wallet.
type Submitter interface {
	Submit(ctx context.Context, wallet domain.Identity, b batch.Batch) (Result, error)
}

// StatusProber looks up a relayed transaction once. It is not used on the
// checkout path.
type StatusProber interface {
	TransactionStatus(ctx context.Context, queueID string) (relay.Status, error)
}
