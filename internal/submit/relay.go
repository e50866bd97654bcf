package submit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bitcoinuniversity/invest/internal/batch"
	"github.com/bitcoinuniversity/invest/internal/domain"
	"github.com/bitcoinuniversity/invest/internal/relay"
)

// ContractWriter is the part of the relay client used for submissions.
type ContractWriter interface {
	WriteContract(ctx context.Context, req relay.WriteRequest) (string, error)
}

// RelaySubmitter submits batches to the configured contract through the relay.
type RelaySubmitter struct {
	writer   ContractWriter
	contract string
	now      func() time.Time
}

// NewRelaySubmitter creates a submitter targeting the given contract address.
func NewRelaySubmitter(writer ContractWriter, contract string) *RelaySubmitter {
	return &RelaySubmitter{writer: writer, contract: contract, now: time.Now}
}

func (s *RelaySubmitter) Submit(ctx context.Context, wallet domain.Identity, b batch.Batch) (Result, error) {
	if !wallet.Connected() {
		return Result{}, ErrWalletNotConnected
	}

	queueID, err := s.writer.WriteContract(ctx, relay.WriteRequest{
		ContractAddress: s.contract,
		FunctionName:    batch.FunctionName,
		Args:            b.Args(),
		Value:           b.Value.String(),
		Account:         wallet.String(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("submitting batch: %w", err)
	}

	slog.Info("batch relayed", "wallet", wallet, "queueId", queueID, "items", b.Len(), "value", b.Value.String())
	return Result{Kind: KindRelayed, ID: queueID, SubmittedAt: s.now()}, nil
}
