package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/bitcoinuniversity/invest/internal/batch"
	"github.com/bitcoinuniversity/invest/internal/domain"
	"github.com/bitcoinuniversity/invest/internal/ledger"
	"github.com/bitcoinuniversity/invest/internal/submit"
)

var (
	// ErrEmptyCart is returned when checking out a cart with no items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrCheckoutInProgress is returned while a previous checkout for the same identity is still submitting.
	ErrCheckoutInProgress = errors.New("checkout already in progress")
)

const (
	// settled states older than this are forgotten and read back as idle
	stateRetention = 15 * time.Minute
	sweepInterval  = time.Minute
)

// SubmitError carries a failure reported by the submission path, as opposed to
// a failure of the service itself.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string { return e.Err.Error() }
func (e *SubmitError) Unwrap() error { return e.Err }

// Cart is the part of the cart store the orchestrator needs.
type Cart interface {
	Items(ctx context.Context, id domain.Identity) ([]domain.CartItem, error)
	RemoveItems(ctx context.Context, id domain.Identity, itemIDs []string) error
}

// Recorder stores receipts of successful checkouts.
type Recorder interface {
	Record(ctx context.Context, r ledger.Receipt) error
}

// Publisher announces that a wallet's investment views are stale.
type Publisher interface {
	Publish(ctx context.Context, wallet domain.Identity) error
}

// Orchestrator sequences a checkout: build the batch, submit it, then clear the
// cart and refresh investment views on success.
type Orchestrator struct {
	cart      Cart
	submitter submit.Submitter
	recorder  Recorder
	publisher Publisher
	notifier  Notifier
	now       func() time.Time

	mu        sync.Mutex
	states    map[domain.Identity]State
	lastSweep time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier replaces the default log notifier.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// NewOrchestrator creates an orchestrator. recorder and publisher may be nil.
func NewOrchestrator(cart Cart, submitter submit.Submitter, recorder Recorder, publisher Publisher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cart:      cart,
		submitter: submitter,
		recorder:  recorder,
		publisher: publisher,
		notifier:  LogNotifier{},
		now:       time.Now,
		states:    make(map[domain.Identity]State),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the identity's current checkout state.
func (o *Orchestrator) State(id domain.Identity) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.states[id]; ok {
		return s
	}
	return State{Phase: PhaseIdle}
}

// Checkout submits the identity's cart as one batch. Precondition failures
// (ErrWalletNotConnected, ErrEmptyCart) leave both cart and state untouched.
// Submission failures are returned as *SubmitError. Once submitting, the
// caller's cancellation is ignored.
func (o *Orchestrator) Checkout(ctx context.Context, id domain.Identity) (ledger.Receipt, error) {
	if !id.Connected() {
		o.notifier.Rejected(id, submit.ErrWalletNotConnected)
		return ledger.Receipt{}, submit.ErrWalletNotConnected
	}

	started, restore, ok := o.begin(id)
	if !ok {
		return ledger.Receipt{}, ErrCheckoutInProgress
	}

	items, err := o.cart.Items(ctx, id)
	if err != nil {
		restore()
		return ledger.Receipt{}, fmt.Errorf("loading cart: %w", err)
	}
	if len(items) == 0 {
		restore()
		o.notifier.Rejected(id, ErrEmptyCart)
		return ledger.Receipt{}, ErrEmptyCart
	}

	ctx = context.WithoutCancel(ctx)
	b := batch.Build(items)

	res, err := o.submitter.Submit(ctx, id, b)
	if err != nil {
		o.settle(id, failed(started, err, o.now()))
		o.notifier.Failed(id, err)
		return ledger.Receipt{}, &SubmitError{Err: err}
	}

	if res.IsDemo() {
		slog.Info("demo checkout, nothing sent on chain", "wallet", id, "hash", res.ID)
	}

	receipt := ledger.NewReceipt(id, items, b, res)
	o.afterSuccess(ctx, id, items, receipt)
	o.settle(id, succeeded(started, res, o.now()))
	o.notifier.Succeeded(id, receipt)
	return receipt, nil
}

// begin moves the identity into PhaseSubmitting unless it is already there.
// The returned restore func puts back whatever state preceded the call.
func (o *Orchestrator) begin(id domain.Identity) (State, func(), bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	o.sweep(now)

	prev, existed := o.states[id]
	if existed && !prev.canStart() {
		return prev, nil, false
	}
	s := submitting(now)
	o.states[id] = s

	restore := func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if existed {
			o.states[id] = prev
		} else {
			delete(o.states, id)
		}
	}
	return s, restore, true
}

// sweep drops settled states past stateRetention. Callers hold o.mu.
func (o *Orchestrator) sweep(now time.Time) {
	if now.Sub(o.lastSweep) < sweepInterval {
		return
	}
	o.lastSweep = now
	for id, s := range o.states {
		if s.Phase == PhaseSettled && now.Sub(s.SettledAt) > stateRetention {
			delete(o.states, id)
		}
	}
}

func (o *Orchestrator) settle(id domain.Identity, s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states[id] = s
}

// afterSuccess applies the side effects of a submitted batch. The transaction is
// already out, so failures here are logged rather than returned.
// Only the submitted items leave the cart.
func (o *Orchestrator) afterSuccess(ctx context.Context, id domain.Identity, items []domain.CartItem, r ledger.Receipt) {
	submitted := lo.Map(items, func(c domain.CartItem, _ int) string { return c.ID })
	if err := o.cart.RemoveItems(ctx, id, submitted); err != nil {
		slog.Error("clearing cart after checkout", "wallet", id, "error", err)
	}
	if o.recorder != nil {
		if err := o.recorder.Record(ctx, r); err != nil {
			slog.Error("recording checkout receipt", "wallet", id, "receipt", r.ID, "error", err)
		}
	}
	if o.publisher != nil {
		if err := o.publisher.Publish(ctx, id); err != nil {
			slog.Warn("invalidating investment views", "wallet", id, "error", err)
		}
	}
}
