package checkout

import (
	"log/slog"

	"github.com/bitcoinuniversity/invest/internal/domain"
	"github.com/bitcoinuniversity/invest/internal/ledger"
)

// Notifier tells the user how a checkout attempt ended.
type Notifier interface {
	Succeeded(id domain.Identity, r ledger.Receipt)
	Failed(id domain.Identity, err error)
	Rejected(id domain.Identity, err error)
}

// LogNotifier reports checkout outcomes to the structured log.
type LogNotifier struct{}

func (LogNotifier) Succeeded(id domain.Identity, r ledger.Receipt) {
	slog.Info("checkout succeeded",
		"wallet", id, "kind", r.Kind, "transactionId", r.TransactionID,
		"items", len(r.Items), "value", r.Value)
}

func (LogNotifier) Failed(id domain.Identity, err error) {
	slog.Error("checkout failed", "wallet", id, "error", err)
}

func (LogNotifier) Rejected(id domain.Identity, err error) {
	slog.Warn("checkout rejected", "wallet", id, "reason", err)
}
