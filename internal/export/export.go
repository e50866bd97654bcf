package export

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/bitcoinuniversity/invest/internal/domain"
	"github.com/bitcoinuniversity/invest/internal/ledger"
)

// DefaultWindow is how many recent receipts an export covers.
const DefaultWindow = 1000

// Sheet names written by every SheetWriter.
const (
	SheetReceipts = "RECEIPTS"
	SheetItems    = "ITEMS"
	SheetTargets  = "TARGETS"
	SheetSummary  = "SUMMARY"
)

// Summary aggregates one export run.
type Summary struct {
	At        time.Time
	Receipts  int
	Relayed   int
	Demo      int
	Principal decimal.Decimal
	Fee       decimal.Decimal
}

// Report is everything an export run hands to a SheetWriter.
type Report struct {
	Receipts []ledger.Receipt
	Summary  Summary
}

// SheetWriter writes an export report to a spreadsheet destination.
type SheetWriter interface {
	Write(ctx context.Context, report Report) error
}

// ReceiptSource lists the most recent receipts across all wallets.
type ReceiptSource interface {
	Recent(ctx context.Context, limit int) ([]ledger.Receipt, error)
}

// Service builds receipt reports and delegates writing to a SheetWriter.
type Service struct {
	receipts ReceiptSource
	writer   SheetWriter
	window   int
	now      func() time.Time
}

// NewService creates a new export Service.
func NewService(receipts ReceiptSource, writer SheetWriter) *Service {
	return &Service{receipts: receipts, writer: writer, window: DefaultWindow, now: time.Now}
}

// Export writes recent receipts and returns how many were exported.
func (s *Service) Export(ctx context.Context) (int, error) {
	receipts, err := s.receipts.Recent(ctx, s.window)
	if err != nil {
		return 0, fmt.Errorf("loading receipts: %w", err)
	}

	report := Report{Receipts: receipts, Summary: summarize(receipts, s.now())}
	if err := s.writer.Write(ctx, report); err != nil {
		return 0, fmt.Errorf("writing export: %w", err)
	}
	return len(receipts), nil
}

func summarize(receipts []ledger.Receipt, at time.Time) Summary {
	demo := lo.CountBy(receipts, func(r ledger.Receipt) bool { return r.Kind.IsDemo() })
	relayed := lo.Filter(receipts, func(r ledger.Receipt, _ int) bool { return !r.Kind.IsDemo() })
	return Summary{
		At:        at.UTC(),
		Receipts:  len(receipts),
		Relayed:   len(relayed),
		Demo:      demo,
		Principal: sumField(relayed, func(r ledger.Receipt) string { return r.Principal }),
		Fee:       sumField(relayed, func(r ledger.Receipt) string { return r.Fee }),
	}
}

func sumField(receipts []ledger.Receipt, field func(ledger.Receipt) string) decimal.Decimal {
	return lo.Reduce(receipts, func(acc decimal.Decimal, r ledger.Receipt, _ int) decimal.Decimal {
		return acc.Add(domain.SafeParse(field(r)))
	}, decimal.Zero)
}

// buildReceipts builds the RECEIPTS sheet, one row per checkout.
// Columns: Date | Wallet | Kind | Transaction | Items | Principal | Fee | Value
func buildReceipts(receipts []ledger.Receipt) [][]any {
	data := make([][]any, 0, len(receipts)+1)
	data = append(data, []any{"Date", "Wallet", "Kind", "Transaction", "Items", "Principal", "Fee", "Value"})
	for _, r := range receipts {
		data = append(data, []any{
			r.CreatedAt.UTC().Format(time.DateTime),
			r.Wallet.String(),
			string(r.Kind),
			r.TransactionID,
			len(r.Items),
			toFloat(domain.SafeParse(r.Principal)),
			toFloat(domain.SafeParse(r.Fee)),
			toFloat(domain.SafeParse(r.Value)),
		})
	}
	return data
}

// buildItems builds the ITEMS sheet, one row per invested target line.
// Columns: Date | Wallet | Transaction | Type | Target ID | Target | Amount | Currency
func buildItems(receipts []ledger.Receipt) [][]any {
	data := [][]any{{"Date", "Wallet", "Transaction", "Type", "Target ID", "Target", "Amount", "Currency"}}
	for _, r := range receipts {
		for _, it := range r.Items {
			data = append(data, []any{
				r.CreatedAt.UTC().Format(time.DateTime),
				r.Wallet.String(),
				r.TransactionID,
				string(it.TargetType),
				it.TargetID,
				it.TargetName,
				toFloat(domain.SafeParse(it.Amount)),
				it.Currency,
			})
		}
	}
	return data
}

type targetKey struct {
	targetType domain.TargetType
	targetID   string
	currency   string
}

// buildTargets builds the TARGETS sheet: totals per target and currency over
// relayed checkouts, largest first.
// Columns: Type | Target ID | Target | Currency | Investors | Total
func buildTargets(receipts []ledger.Receipt) [][]any {
	type line struct {
		wallet domain.Identity
		item   ledger.ReceiptItem
	}
	lines := lo.FlatMap(receipts, func(r ledger.Receipt, _ int) []line {
		if r.Kind.IsDemo() {
			return nil
		}
		return lo.Map(r.Items, func(it ledger.ReceiptItem, _ int) line { return line{wallet: r.Wallet, item: it} })
	})
	grouped := lo.GroupBy(lines, func(l line) targetKey {
		return targetKey{targetType: l.item.TargetType, targetID: l.item.TargetID, currency: l.item.Currency}
	})

	type total struct {
		key       targetKey
		name      string
		investors int
		amount    decimal.Decimal
	}
	totals := make([]total, 0, len(grouped))
	for key, ls := range grouped {
		totals = append(totals, total{
			key:       key,
			name:      ls[len(ls)-1].item.TargetName,
			investors: len(lo.UniqBy(ls, func(l line) domain.Identity { return l.wallet })),
			amount: lo.Reduce(ls, func(acc decimal.Decimal, l line, _ int) decimal.Decimal {
				return acc.Add(domain.SafeParse(l.item.Amount))
			}, decimal.Zero),
		})
	}
	slices.SortFunc(totals, func(a, b total) int {
		if c := b.amount.Cmp(a.amount); c != 0 {
			return c
		}
		return cmp.Compare(a.key.targetID, b.key.targetID)
	})

	data := [][]any{{"Type", "Target ID", "Target", "Currency", "Investors", "Total"}}
	for _, t := range totals {
		data = append(data, []any{
			string(t.key.targetType), t.key.targetID, t.name, t.key.currency, t.investors, toFloat(t.amount),
		})
	}
	return data
}

var summaryHeader = []any{"Date", "Receipts", "Relayed", "Demo", "Principal", "Fee"}

func summaryRow(s Summary) []any {
	return []any{
		s.At.Format("02.01.2006 15:04"),
		s.Receipts, s.Relayed, s.Demo,
		toFloat(s.Principal), toFloat(s.Fee),
	}
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
