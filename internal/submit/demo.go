package submit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"regexp"
	"time"

	"github.com/bitcoinuniversity/invest/internal/batch"
	"github.com/bitcoinuniversity/invest/internal/domain"
)

// DefaultDemoDelay is how long a demo submission pretends to take.
const DefaultDemoDelay = 2 * time.Second

var mockHashPattern = regexp.MustCompile(`^0x[0-9a-f]{64}$`)

// IsMockHash reports whether id has the shape of a demo transaction hash.
func IsMockHash(id string) bool {
	return mockHashPattern.MatchString(id)
}

// DemoSubmitter fakes a submission when no contract is configured. After a fixed
// delay it returns a random 32-byte hex hash and never fails.
type DemoSubmitter struct {
	delay time.Duration
	now   func() time.Time
}

// NewDemoSubmitter creates a demo submitter with the given artificial delay.
func NewDemoSubmitter(delay time.Duration) *DemoSubmitter {
	if delay < 0 {
		delay = 0
	}
	return &DemoSubmitter{delay: delay, now: time.Now}
}

// Submit waits for the demo delay regardless of ctx; an in-flight submission cannot be cancelled.
func (s *DemoSubmitter) Submit(_ context.Context, wallet domain.Identity, b batch.Batch) (Result, error) {
	if !wallet.Connected() {
		return Result{}, ErrWalletNotConnected
	}

	time.Sleep(s.delay)

	hash := mockHash()
	slog.Info("demo batch submitted", "wallet", wallet, "hash", hash, "items", b.Len())
	return Result{Kind: KindDemo, ID: hash, SubmittedAt: s.now()}, nil
}

func mockHash() string {
	var buf [32]byte
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(buf[:])
	return "0x" + hex.EncodeToString(buf[:])
}
