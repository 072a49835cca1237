package usecases

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mintex/exchange-core/backend/internal/entities"
)

// fakeTransactor serializes transactions with one mutex, standing in for
// the per-row lock the database provides.
type fakeTransactor struct {
	mu sync.Mutex
}

func (t *fakeTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}

type fakeOrdersRepo struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]*entities.Order

	failUpdateState error
}

func newFakeOrdersRepo() *fakeOrdersRepo {
	return &fakeOrdersRepo{nextID: 1, orders: make(map[int64]*entities.Order)}
}

func (r *fakeOrdersRepo) Get(_ context.Context, id int64) (*entities.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, entities.ErrOrderNotFound
	}
	clone := *order
	return &clone, nil
}

func (r *fakeOrdersRepo) GetForUpdate(ctx context.Context, id int64) (*entities.Order, error) {
	return r.Get(ctx, id)
}

func (r *fakeOrdersRepo) Insert(_ context.Context, order *entities.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order.ID = r.nextID
	r.nextID++
	clone := *order
	r.orders[order.ID] = &clone
	return nil
}

func (r *fakeOrdersRepo) UpdateState(_ context.Context, id int64, state entities.OrderState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failUpdateState != nil {
		return r.failUpdateState
	}
	order, ok := r.orders[id]
	if !ok {
		return entities.ErrOrderNotFound
	}
	order.State = state
	order.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakeOrdersRepo) FindPending(_ context.Context, limit int) ([]entities.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []entities.Order
	for _, order := range r.orders {
		if order.State == entities.StatePending && len(pending) < limit {
			pending = append(pending, *order)
		}
	}
	return pending, nil
}

func (r *fakeOrdersRepo) FindByMember(_ context.Context, memberID int64, marketID string, state entities.OrderState) ([]entities.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var found []entities.Order
	for _, order := range r.orders {
		if order.MemberID != memberID {
			continue
		}
		if marketID != "" && order.MarketID != marketID {
			continue
		}
		if state != "" && order.State != state {
			continue
		}
		found = append(found, *order)
	}
	return found, nil
}

type fakeLedger struct {
	mu        sync.Mutex
	transfers []entities.Transfer
	failWith  error
}

func (l *fakeLedger) Transfer(_ context.Context, t entities.Transfer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failWith != nil {
		return l.failWith
	}
	l.transfers = append(l.transfers, t)
	return nil
}

func (l *fakeLedger) recorded() []entities.Transfer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]entities.Transfer(nil), l.transfers...)
}

type fakeMailbox struct {
	mu       sync.Mutex
	messages []entities.MailboxMessage
}

func (m *fakeMailbox) Enqueue(_ context.Context, msg entities.MailboxMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *fakeMailbox) recorded() []entities.MailboxMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.MailboxMessage(nil), m.messages...)
}

type fakeNotifier struct {
	mu      sync.Mutex
	created []entities.Order
	updated []entities.Order
}

func (n *fakeNotifier) OrderCreated(_ context.Context, order *entities.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, *order)
}

func (n *fakeNotifier) OrderUpdated(_ context.Context, order *entities.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updated = append(n.updated, *order)
}

func (n *fakeNotifier) updatedOrders() []entities.Order {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]entities.Order(nil), n.updated...)
}

type lifecycleFixture struct {
	service  *OrderService
	repo     *fakeOrdersRepo
	ledger   *fakeLedger
	mailbox  *fakeMailbox
	notifier *fakeNotifier
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()

	f := &lifecycleFixture{
		repo:     newFakeOrdersRepo(),
		ledger:   &fakeLedger{},
		mailbox:  &fakeMailbox{},
		notifier: &fakeNotifier{},
	}
	f.service = NewOrderService(testLogger(), f.repo, f.ledger, f.mailbox, f.notifier, &fakeTransactor{})
	return f
}

func (f *lifecycleFixture) seedOrder(t *testing.T, state entities.OrderState) *entities.Order {
	t.Helper()

	order := &entities.Order{
		MemberID:     7,
		MarketID:     "btc_usd",
		Bid:          "usd",
		Ask:          "btc",
		Side:         entities.SideBid,
		OrdType:      entities.TypeLimit,
		Price:        decimal.NullDecimal{Decimal: decimal.RequireFromString("100"), Valid: true},
		Volume:       decimal.RequireFromString("1"),
		OriginVolume: decimal.RequireFromString("1"),
		Locked:       decimal.RequireFromString("100"),
		OriginLocked: decimal.RequireFromString("100"),
		State:        state,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	require.NoError(t, f.repo.Insert(context.Background(), order))
	return order
}

func TestSubmitTransitionsPendingToWait(t *testing.T) {
	f := newLifecycleFixture(t)
	order := f.seedOrder(t, entities.StatePending)

	transition := f.service.Submit(context.Background(), order.ID)

	require.Equal(t, OutcomeApplied, transition.Outcome)
	require.Equal(t, entities.StateWait, transition.To)

	stored, err := f.repo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, entities.StateWait, stored.State)

	transfers := f.ledger.recorded()
	require.Len(t, transfers, 1)
	require.Equal(t, entities.AccountMain, transfers[0].FromKind)
	require.Equal(t, entities.AccountLocked, transfers[0].ToKind)
	require.Equal(t, "usd", transfers[0].Currency)
	require.True(t, transfers[0].Amount.Equal(decimal.RequireFromString("100")))
	require.Equal(t, "order-1", transfers[0].Reference)
	require.Equal(t, "submit", transfers[0].Operation)

	messages := f.mailbox.recorded()
	require.Len(t, messages, 1)
	require.Equal(t, order.ID, messages[0].ID)
	require.Equal(t, "btc_usd", messages[0].Market)
	require.Equal(t, entities.SideBid, messages[0].Side)
	require.Equal(t, entities.TypeLimit, messages[0].OrdType)
	require.True(t, messages[0].Volume.Equal(decimal.RequireFromString("1")))
	require.True(t, messages[0].Locked.Equal(decimal.RequireFromString("100")))
	require.Equal(t, order.CreatedAt.Unix(), messages[0].Timestamp)

	updated := f.notifier.updatedOrders()
	require.Len(t, updated, 1)
	require.Equal(t, entities.StateWait, updated[0].State)
}

func TestSubmitIsIdempotent(t *testing.T) {
	f := newLifecycleFixture(t)
	order := f.seedOrder(t, entities.StatePending)

	first := f.service.Submit(context.Background(), order.ID)
	second := f.service.Submit(context.Background(), order.ID)

	require.Equal(t, OutcomeApplied, first.Outcome)
	require.Equal(t, OutcomeNoop, second.Outcome)

	// No second fund movement and no second mailbox message
	require.Len(t, f.ledger.recorded(), 1)
	require.Len(t, f.mailbox.recorded(), 1)

	stored, err := f.repo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, entities.StateWait, stored.State)
}

func TestSubmitInsufficientFundsRejectsOrder(t *testing.T) {
	f := newLifecycleFixture(t)
	f.ledger.failWith = entities.ErrInsufficientFunds
	order := f.seedOrder(t, entities.StatePending)

	transition := f.service.Submit(context.Background(), order.ID)

	require.Equal(t, OutcomeFailed, transition.Outcome)
	require.ErrorIs(t, transition.Reason, entities.ErrInsufficientFunds)

	stored, err := f.repo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, entities.StateReject, stored.State)

	require.Empty(t, f.mailbox.recorded())
}

func TestSubmitUnknownOrder(t *testing.T) {
	f := newLifecycleFixture(t)

	transition := f.service.Submit(context.Background(), 404)

	require.Equal(t, OutcomeFailed, transition.Outcome)
	require.ErrorIs(t, transition.Reason, entities.ErrOrderNotFound)
	require.Empty(t, f.ledger.recorded())
	require.Empty(t, f.mailbox.recorded())
}

func TestCancelReleasesFunds(t *testing.T) {
	f := newLifecycleFixture(t)
	order := f.seedOrder(t, entities.StatePending)

	require.Equal(t, OutcomeApplied, f.service.Submit(context.Background(), order.ID).Outcome)

	transition := f.service.Cancel(context.Background(), order.ID)
	require.Equal(t, OutcomeApplied, transition.Outcome)
	require.Equal(t, entities.StateCancel, transition.To)

	stored, err := f.repo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, entities.StateCancel, stored.State)

	transfers := f.ledger.recorded()
	require.Len(t, transfers, 2)
	release := transfers[1]
	require.Equal(t, entities.AccountLocked, release.FromKind)
	require.Equal(t, entities.AccountMain, release.ToKind)
	require.True(t, release.Amount.Equal(decimal.RequireFromString("100")))
	require.Equal(t, "cancel", release.Operation)

	// Cancellation is not announced to the matching engine
	require.Len(t, f.mailbox.recorded(), 1)
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newLifecycleFixture(t)
	order := f.seedOrder(t, entities.StatePending)

	require.Equal(t, OutcomeNoop, f.service.Cancel(context.Background(), order.ID).Outcome)

	f.service.Submit(context.Background(), order.ID)
	require.Equal(t, OutcomeApplied, f.service.Cancel(context.Background(), order.ID).Outcome)
	require.Equal(t, OutcomeNoop, f.service.Cancel(context.Background(), order.ID).Outcome)

	require.Len(t, f.ledger.recorded(), 2)
}

func TestCancelFailureLeavesOrderWaiting(t *testing.T) {
	f := newLifecycleFixture(t)
	order := f.seedOrder(t, entities.StatePending)
	f.service.Submit(context.Background(), order.ID)

	f.ledger.failWith = entities.ErrInsufficientFunds

	transition := f.service.Cancel(context.Background(), order.ID)
	require.Equal(t, OutcomeFailed, transition.Outcome)

	stored, err := f.repo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, entities.StateWait, stored.State)
}

func TestRejectedOrderStaysRejectedOnRetry(t *testing.T) {
	f := newLifecycleFixture(t)
	f.ledger.failWith = entities.ErrInsufficientFunds
	order := f.seedOrder(t, entities.StatePending)

	f.service.Submit(context.Background(), order.ID)

	// Funds arrive later; the retry must not resurrect the rejected order
	f.ledger.failWith = nil
	transition := f.service.Submit(context.Background(), order.ID)

	require.Equal(t, OutcomeNoop, transition.Outcome)

	stored, err := f.repo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, entities.StateReject, stored.State)
	require.Empty(t, f.ledger.recorded())
}

func TestConcurrentSubmitAndCancelSerialize(t *testing.T) {
	f := newLifecycleFixture(t)
	order := f.seedOrder(t, entities.StatePending)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.service.Submit(context.Background(), order.ID)
	}()
	go func() {
		defer wg.Done()
		f.service.Cancel(context.Background(), order.ID)
	}()
	wg.Wait()

	stored, err := f.repo.Get(context.Background(), order.ID)
	require.NoError(t, err)

	// Either submit won the lock first and cancel unwound it afterwards, or
	// cancel hit the pending order as a no-op and submit went through.
	require.Contains(t, []entities.OrderState{entities.StateWait, entities.StateCancel}, stored.State)

	transfers := f.ledger.recorded()
	require.Equal(t, "submit", transfers[0].Operation)
	if stored.State == entities.StateCancel {
		require.Len(t, transfers, 2)
		require.Equal(t, "cancel", transfers[1].Operation)
	} else {
		require.Len(t, transfers, 1)
	}

	require.Len(t, f.mailbox.recorded(), 1)
}

func TestOrderInvariantsHoldAfterLifecycle(t *testing.T) {
	f := newLifecycleFixture(t)
	order := f.seedOrder(t, entities.StatePending)

	f.service.Submit(context.Background(), order.ID)
	f.service.Cancel(context.Background(), order.ID)

	stored, err := f.repo.Get(context.Background(), order.ID)
	require.NoError(t, err)

	require.True(t, stored.Volume.LessThanOrEqual(stored.OriginVolume))
	require.True(t, stored.Locked.LessThanOrEqual(stored.OriginLocked))
	require.False(t, stored.FundsUsed().IsNegative())
	require.True(t, stored.OriginVolume.IsPositive())
}
