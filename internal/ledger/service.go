package ledger

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/bitcoinuniversity/invest/internal/domain"
)

// leaderboardWindow bounds how many receipts the leaderboard aggregates.
const leaderboardWindow = 1000

// Service records checkout receipts and serves investment views over them.
type Service struct {
	repo  Repository
	cache *investmentCache
}

// NewService creates a ledger service. A non-positive ttl uses the default.
func NewService(repo Repository, ttl time.Duration) *Service {
	return &Service{repo: repo, cache: newInvestmentCache(ttl)}
}

// Record stores a receipt. Cached views are not touched; callers invalidate them.
func (s *Service) Record(ctx context.Context, r Receipt) error {
	if err := s.repo.Save(ctx, r); err != nil {
		return fmt.Errorf("recording receipt %s: %w", r.ID, err)
	}
	return nil
}

// Receipt returns a single receipt by id.
func (s *Service) Receipt(ctx context.Context, id uuid.UUID) (*Receipt, error) {
	return s.repo.GetByID(ctx, id)
}

// Investments returns the wallet's most recent receipts, newest first. The
// returned slice is the caller's own.
func (s *Service) Investments(ctx context.Context, wallet domain.Identity, limit int) ([]Receipt, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	key := cacheKey{wallet: wallet, limit: limit}
	if receipts, ok := s.cache.get(key); ok {
		return slices.Clone(receipts), nil
	}

	receipts, err := s.repo.ListByWallet(ctx, wallet, limit)
	if err != nil {
		return nil, err
	}
	s.cache.set(key, receipts)
	return slices.Clone(receipts), nil
}

// Recent returns the most recent receipts across all wallets.
func (s *Service) Recent(ctx context.Context, limit int) ([]Receipt, error) {
	return s.repo.ListAll(ctx, limit)
}

// Invalidate drops cached investment views for the wallet.
func (s *Service) Invalidate(wallet domain.Identity) {
	s.cache.invalidate(wallet)
	slog.Debug("investment cache invalidated", "wallet", wallet)
}

// InvestorTotal is one leaderboard row.
type InvestorTotal struct {
	Wallet     domain.Identity `json:"wallet"`
	Principal  string          `json:"principal"`
	Checkouts  int             `json:"checkouts"`
	LastInvest time.Time       `json:"lastInvestedAt"`
}

// Leaderboard ranks wallets by invested principal. Demo receipts are excluded.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]InvestorTotal, error) {
	receipts, err := s.repo.ListAll(ctx, leaderboardWindow)
	if err != nil {
		return nil, fmt.Errorf("loading receipts for leaderboard: %w", err)
	}

	relayed := lo.Filter(receipts, func(r Receipt, _ int) bool {
		return !r.Kind.IsDemo()
	})
	byWallet := lo.GroupBy(relayed, func(r Receipt) domain.Identity { return r.Wallet })

	totals := make([]InvestorTotal, 0, len(byWallet))
	for wallet, rs := range byWallet {
		principal := lo.Reduce(rs, func(acc decimal.Decimal, r Receipt, _ int) decimal.Decimal {
			return acc.Add(domain.SafeParse(r.Principal))
		}, decimal.Zero)
		last := lo.MaxBy(rs, func(a, b Receipt) bool { return a.CreatedAt.After(b.CreatedAt) })
		totals = append(totals, InvestorTotal{
			Wallet:     wallet,
			Principal:  principal.String(),
			Checkouts:  len(rs),
			LastInvest: last.CreatedAt,
		})
	}

	slices.SortFunc(totals, func(a, b InvestorTotal) int {
		if c := domain.SafeParse(b.Principal).Cmp(domain.SafeParse(a.Principal)); c != 0 {
			return c
		}
		return cmp.Compare(a.Wallet, b.Wallet)
	})

	if limit > 0 && len(totals) > limit {
		totals = totals[:limit]
	}
	return totals, nil
}
