package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bitcoinuniversity/invest/internal/batch"
	"github.com/bitcoinuniversity/invest/internal/cart"
	"github.com/bitcoinuniversity/invest/internal/domain"
	"github.com/bitcoinuniversity/invest/internal/invalidate"
	"github.com/bitcoinuniversity/invest/internal/ledger"
	"github.com/bitcoinuniversity/invest/internal/submit"
)

const wallet = domain.Identity("0xabc")

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(ctx context.Context, id domain.Identity, b batch.Batch) (submit.Result, error) {
	args := m.Called(ctx, id, b)
	return args.Get(0).(submit.Result), args.Error(1)
}

type fixture struct {
	store     *cart.Store
	submitter *MockSubmitter
	ledger    *ledger.Service
	orch      *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := cart.NewStore(cart.NewMemoryPersister())
	sub := new(MockSubmitter)
	svc := ledger.NewService(ledger.NewMemoryRepository(), time.Minute)
	orch := NewOrchestrator(store, sub, svc, invalidate.NewLocal(svc))
	return &fixture{store: store, submitter: sub, ledger: svc, orch: orch}
}

func (f *fixture) fill(t *testing.T, id domain.Identity, amounts ...string) {
	t.Helper()
	for i, amount := range amounts {
		_, _, err := f.store.AddItem(context.Background(), id, cart.NewItem{
			TargetType: domain.TargetTypeGrant,
			TargetID:   string(rune('a' + i)),
			TargetName: "Open Lab Grant",
			Amount:     amount,
			Currency:   "ETH",
		})
		require.NoError(t, err)
	}
}

func TestCheckoutEmptyCartNeverSubmits(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Checkout(context.Background(), wallet)

	assert.ErrorIs(t, err, ErrEmptyCart)
	f.submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, PhaseIdle, f.orch.State(wallet).Phase)
}

func TestCheckoutWithoutWalletNeverSubmits(t *testing.T) {
	f := newFixture(t)
	f.fill(t, domain.Anonymous, "1", "2")

	_, err := f.orch.Checkout(context.Background(), domain.Anonymous)

	assert.ErrorIs(t, err, submit.ErrWalletNotConnected)
	f.submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)

	items, err := f.store.Items(context.Background(), domain.Anonymous)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, PhaseIdle, f.orch.State(domain.Anonymous).Phase)
}

func TestCheckoutSuccessClearsCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fill(t, wallet, "100", "250.5")

	res := submit.Result{Kind: submit.KindRelayed, ID: "queue-7", SubmittedAt: time.Now()}
	f.submitter.On("Submit", mock.Anything, wallet, mock.MatchedBy(func(b batch.Batch) bool {
		return b.Len() == 2 && b.Value.String() == "354005000000000000000"
	})).Return(res, nil).Once()

	receipt, err := f.orch.Checkout(ctx, wallet)
	require.NoError(t, err)
	f.submitter.AssertExpectations(t)

	assert.Equal(t, "queue-7", receipt.TransactionID)
	assert.Equal(t, "350.5", receipt.Principal)
	assert.Equal(t, "3.505", receipt.Fee)

	items, err := f.store.Items(ctx, wallet)
	require.NoError(t, err)
	assert.Empty(t, items)

	state := f.orch.State(wallet)
	assert.Equal(t, PhaseSettled, state.Phase)
	assert.Equal(t, OutcomeSucceeded, state.Outcome)
	require.NotNil(t, state.Result)
	assert.Equal(t, "queue-7", state.Result.ID)

	recorded, err := f.ledger.Investments(ctx, wallet, 10)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, receipt.ID, recorded[0].ID)
}

func TestCheckoutFailureKeepsCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fill(t, wallet, "1", "2", "3")

	rejection := errors.New("user rejected transaction")
	f.submitter.On("Submit", mock.Anything, wallet, mock.Anything).Return(submit.Result{}, rejection).Once()

	_, err := f.orch.Checkout(ctx, wallet)
	require.Error(t, err)
	assert.Equal(t, "user rejected transaction", err.Error())
	var submitErr *SubmitError
	require.ErrorAs(t, err, &submitErr)
	assert.ErrorIs(t, err, rejection)

	items, err := f.store.Items(ctx, wallet)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	state := f.orch.State(wallet)
	assert.Equal(t, PhaseSettled, state.Phase)
	assert.Equal(t, OutcomeFailed, state.Outcome)
	assert.Equal(t, "user rejected transaction", state.Error)

	recorded, err := f.ledger.Investments(ctx, wallet, 10)
	require.NoError(t, err)
	assert.Empty(t, recorded)
}

func TestCheckoutRetryAfterFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fill(t, wallet, "5")

	f.submitter.On("Submit", mock.Anything, wallet, mock.Anything).Return(submit.Result{}, errors.New("rpc timeout")).Once()
	f.submitter.On("Submit", mock.Anything, wallet, mock.Anything).
		Return(submit.Result{Kind: submit.KindRelayed, ID: "queue-2"}, nil).Once()

	_, err := f.orch.Checkout(ctx, wallet)
	require.Error(t, err)

	receipt, err := f.orch.Checkout(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, "queue-2", receipt.TransactionID)
	assert.Equal(t, OutcomeSucceeded, f.orch.State(wallet).Outcome)
	f.submitter.AssertNumberOfCalls(t, "Submit", 2)
}

// blockingSubmitter holds every submission until release is closed.
type blockingSubmitter struct {
	entered chan struct{}
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (b *blockingSubmitter) Submit(ctx context.Context, _ domain.Identity, _ batch.Batch) (submit.Result, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	b.entered <- struct{}{}
	<-b.release
	return submit.Result{Kind: submit.KindDemo, ID: "0x01", SubmittedAt: time.Now()}, ctx.Err()
}

func TestConcurrentCheckoutIsRejected(t *testing.T) {
	ctx := context.Background()
	store := cart.NewStore(cart.NewMemoryPersister())
	sub := &blockingSubmitter{entered: make(chan struct{}, 1), release: make(chan struct{})}
	orch := NewOrchestrator(store, sub, nil, nil)

	_, _, err := store.AddItem(ctx, wallet, cart.NewItem{TargetType: domain.TargetTypeDAO, TargetID: "d", Amount: "1", Currency: "ETH"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := orch.Checkout(ctx, wallet)
		done <- err
	}()
	<-sub.entered

	assert.Equal(t, PhaseSubmitting, orch.State(wallet).Phase)
	_, err = orch.Checkout(ctx, wallet)
	assert.ErrorIs(t, err, ErrCheckoutInProgress)

	close(sub.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, sub.calls)
	assert.Equal(t, OutcomeSucceeded, orch.State(wallet).Outcome)
}

func TestCheckoutIgnoresCallerCancellation(t *testing.T) {
	store := cart.NewStore(cart.NewMemoryPersister())
	sub := &blockingSubmitter{entered: make(chan struct{}, 1), release: make(chan struct{})}
	orch := NewOrchestrator(store, sub, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	_, _, err := store.AddItem(ctx, wallet, cart.NewItem{TargetType: domain.TargetTypeDAO, TargetID: "d", Amount: "1", Currency: "ETH"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := orch.Checkout(ctx, wallet)
		done <- err
	}()
	<-sub.entered
	cancel()
	close(sub.release)

	require.NoError(t, <-done)
	items, err := store.Items(context.Background(), wallet)
	require.NoError(t, err)
	assert.Empty(t, items)
}

type spyNotifier struct {
	succeeded, failed, rejected int
}

func (s *spyNotifier) Succeeded(domain.Identity, ledger.Receipt) { s.succeeded++ }
func (s *spyNotifier) Failed(domain.Identity, error)             { s.failed++ }
func (s *spyNotifier) Rejected(domain.Identity, error)           { s.rejected++ }

func TestNotifierReceivesEveryOutcome(t *testing.T) {
	ctx := context.Background()
	store := cart.NewStore(cart.NewMemoryPersister())
	sub := new(MockSubmitter)
	spy := &spyNotifier{}
	orch := NewOrchestrator(store, sub, nil, nil, WithNotifier(spy))

	_, _ = orch.Checkout(ctx, wallet)
	_, _ = orch.Checkout(ctx, domain.Anonymous)

	_, _, err := store.AddItem(ctx, wallet, cart.NewItem{TargetType: domain.TargetTypeDAO, TargetID: "d", Amount: "1", Currency: "ETH"})
	require.NoError(t, err)
	sub.On("Submit", mock.Anything, wallet, mock.Anything).Return(submit.Result{}, errors.New("boom")).Once()
	sub.On("Submit", mock.Anything, wallet, mock.Anything).Return(submit.Result{Kind: submit.KindDemo, ID: "0x02"}, nil).Once()
	_, _ = orch.Checkout(ctx, wallet)
	_, _ = orch.Checkout(ctx, wallet)

	assert.Equal(t, 2, spy.rejected)
	assert.Equal(t, 1, spy.failed)
	assert.Equal(t, 1, spy.succeeded)
}

// slowCart delays the first Items call until release is closed.
type slowCart struct {
	*cart.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (c *slowCart) Items(ctx context.Context, id domain.Identity) ([]domain.CartItem, error) {
	first := false
	c.once.Do(func() { first = true })
	if first {
		close(c.entered)
		<-c.release
	}
	return c.Store.Items(ctx, id)
}

func TestCheckoutClaimsStateBeforeReadingCart(t *testing.T) {
	ctx := context.Background()
	store := cart.NewStore(cart.NewMemoryPersister())
	slow := &slowCart{Store: store, entered: make(chan struct{}), release: make(chan struct{})}
	sub := &blockingSubmitter{entered: make(chan struct{}, 1), release: make(chan struct{})}
	orch := NewOrchestrator(slow, sub, nil, nil)

	_, _, err := store.AddItem(ctx, wallet, cart.NewItem{TargetType: domain.TargetTypeDAO, TargetID: "d", Amount: "1", Currency: "ETH"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := orch.Checkout(ctx, wallet)
		done <- err
	}()
	<-slow.entered

	_, err = orch.Checkout(ctx, wallet)
	require.ErrorIs(t, err, ErrCheckoutInProgress)

	close(slow.release)
	<-sub.entered

	late, _, err := store.AddItem(ctx, wallet, cart.NewItem{TargetType: domain.TargetTypeGrant, TargetID: "g", Amount: "2", Currency: "ETH"})
	require.NoError(t, err)
	close(sub.release)
	require.NoError(t, <-done)

	assert.Equal(t, 1, sub.calls)
	items, err := store.Items(ctx, wallet)
	require.NoError(t, err)
	require.Len(t, items, 1, "items added while submitting stay in the cart")
	assert.Equal(t, late.ID, items[0].ID)
}

func TestEmptyCartKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fill(t, wallet, "1")
	f.submitter.On("Submit", mock.Anything, wallet, mock.Anything).
		Return(submit.Result{Kind: submit.KindRelayed, ID: "queue-9"}, nil).Once()

	_, err := f.orch.Checkout(ctx, wallet)
	require.NoError(t, err)

	_, err = f.orch.Checkout(ctx, wallet)
	require.ErrorIs(t, err, ErrEmptyCart)

	state := f.orch.State(wallet)
	assert.Equal(t, PhaseSettled, state.Phase)
	assert.Equal(t, OutcomeSucceeded, state.Outcome)
	f.submitter.AssertNumberOfCalls(t, "Submit", 1)
}

func TestCartLoadFailureIsNotASubmitError(t *testing.T) {
	store := cart.NewStore(brokenPersister{})
	sub := new(MockSubmitter)
	orch := NewOrchestrator(store, sub, nil, nil)

	_, err := orch.Checkout(context.Background(), wallet)
	require.Error(t, err)
	var submitErr *SubmitError
	assert.False(t, errors.As(err, &submitErr))
	assert.Equal(t, PhaseIdle, orch.State(wallet).Phase)
	sub.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
}

type brokenPersister struct{}

func (brokenPersister) Load(context.Context, domain.Identity) ([]byte, error) {
	return nil, errors.New("connection refused")
}
func (brokenPersister) Save(context.Context, domain.Identity, []byte) error {
	return errors.New("connection refused")
}

func TestSettledStatesExpire(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	clock := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	f.orch.now = func() time.Time { return clock }

	other := domain.Identity("0xdef")
	f.fill(t, wallet, "1")
	f.fill(t, other, "2")
	f.submitter.On("Submit", mock.Anything, mock.Anything, mock.Anything).
		Return(submit.Result{Kind: submit.KindRelayed, ID: "queue-1"}, nil)

	_, err := f.orch.Checkout(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, PhaseSettled, f.orch.State(wallet).Phase)

	clock = clock.Add(stateRetention + sweepInterval)
	_, err = f.orch.Checkout(ctx, other)
	require.NoError(t, err)

	assert.Equal(t, PhaseIdle, f.orch.State(wallet).Phase)
	assert.Equal(t, PhaseSettled, f.orch.State(other).Phase)

	f.orch.mu.Lock()
	assert.Len(t, f.orch.states, 1)
	f.orch.mu.Unlock()
}
