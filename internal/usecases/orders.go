package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mintex/exchange-core/backend/internal/entities"
)

// Ledger operation kinds. Together with the order reference they form the
// idempotency key of a fund movement.
const (
	opSubmit = "submit"
	opCancel = "cancel"
)

// OrdersRepository is the persistence contract the lifecycle manager needs.
// GetForUpdate must acquire an exclusive lock on the order row that is held
// until the surrounding transaction ends.
type OrdersRepository interface {
	Get(ctx context.Context, id int64) (*entities.Order, error)
	GetForUpdate(ctx context.Context, id int64) (*entities.Order, error)
	Insert(ctx context.Context, order *entities.Order) error
	UpdateState(ctx context.Context, id int64, state entities.OrderState) error
	FindPending(ctx context.Context, limit int) ([]entities.Order, error)
	FindByMember(ctx context.Context, memberID int64, marketID string, state entities.OrderState) ([]entities.Order, error)
}

// FundLedger moves funds between two sub-accounts of a member atomically.
// It must run on the same transaction as the order state mutation so both
// commit or roll back together.
type FundLedger interface {
	Transfer(ctx context.Context, transfer entities.Transfer) error
}

// MatchingMailbox hands a normalized order message to the matching engine.
// The channel is at-least-once; it is only written after commit.
type MatchingMailbox interface {
	Enqueue(ctx context.Context, msg entities.MailboxMessage) error
}

// EventNotifier announces committed creations and updates downstream.
type EventNotifier interface {
	OrderCreated(ctx context.Context, order *entities.Order)
	OrderUpdated(ctx context.Context, order *entities.Order)
}

// Transactor runs a function inside one database transaction. Satisfied by
// the pgx transactor wired in pkg/database.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Outcome classifies the result of a lifecycle operation. Callers observe
// the order state for the authoritative result; submit and cancel never
// propagate their internal failures.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeNoop
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeNoop:
		return "noop"
	default:
		return "failed"
	}
}

// Transition reports what a submit or cancel did to the order.
type Transition struct {
	Outcome Outcome
	From    entities.OrderState
	To      entities.OrderState
	Reason  error // set when Outcome is OutcomeFailed
}

// OrderService orchestrates the order lifecycle: creation into pending,
// submission into the live book, and cancellation. All fund movement goes
// through the ledger; balances are never mutated directly.
type OrderService struct {
	logger     *slog.Logger
	repo       OrdersRepository
	ledger     FundLedger
	mailbox    MatchingMailbox
	notifier   EventNotifier
	transactor Transactor
}

func NewOrderService(
	logger *slog.Logger,
	repo OrdersRepository,
	ledger FundLedger,
	mailbox MatchingMailbox,
	notifier EventNotifier,
	transactor Transactor,
) *OrderService {
	return &OrderService{
		logger:     logger,
		repo:       repo,
		ledger:     ledger,
		mailbox:    mailbox,
		notifier:   notifier,
		transactor: transactor,
	}
}

// Submit moves a pending order into the wait state: it locks the order row,
// reserves the member's funds through the ledger and persists the new state
// in one transaction. The mailbox hand-off and event publication run only
// after the transaction has committed. Submitting an order that is no
// longer pending is a no-op, which makes retries by an at-least-once caller
// safe.
func (s *OrderService) Submit(ctx context.Context, orderID int64) Transition {
	var submitted *entities.Order

	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		order, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		if order.State != entities.StatePending {
			return nil
		}

		transfer := entities.Transfer{
			MemberID:  order.MemberID,
			Currency:  order.LockedCurrency(),
			Amount:    order.Locked,
			Reference: orderReference(order.ID),
			Operation: opSubmit,
			FromKind:  entities.AccountMain,
			ToKind:    entities.AccountLocked,
		}
		if err = s.ledger.Transfer(ctx, transfer); err != nil {
			return fmt.Errorf("locking funds: %w", err)
		}

		if err = s.repo.UpdateState(ctx, order.ID, entities.StateWait); err != nil {
			return fmt.Errorf("persisting wait state: %w", err)
		}

		order.State = entities.StateWait
		submitted = order
		return nil
	})
	if err != nil {
		s.logger.Error("order submit failed", "order_id", orderID, "error", err)
		s.reject(ctx, orderID)
		return Transition{Outcome: OutcomeFailed, From: entities.StatePending, To: entities.StateReject, Reason: err}
	}

	if submitted == nil {
		return Transition{Outcome: OutcomeNoop}
	}

	// Post-commit effects only: the transaction is durable at this point,
	// so a crash here at worst re-delivers, never orphans.
	s.afterCommit(ctx, entities.StatePending, submitted)

	return Transition{Outcome: OutcomeApplied, From: entities.StatePending, To: entities.StateWait}
}

// Cancel unwinds an active order: it releases the reserved funds back to
// the member's main sub-account and persists the cancel state in one
// transaction. No mailbox message is sent; removing the order from the live
// book is the matching engine's concern. Cancelling an order that is not in
// the wait state is a no-op.
func (s *OrderService) Cancel(ctx context.Context, orderID int64) Transition {
	var canceled *entities.Order

	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		order, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		if order.State != entities.StateWait {
			return nil
		}

		transfer := entities.Transfer{
			MemberID:  order.MemberID,
			Currency:  order.LockedCurrency(),
			Amount:    order.Locked,
			Reference: orderReference(order.ID),
			Operation: opCancel,
			FromKind:  entities.AccountLocked,
			ToKind:    entities.AccountMain,
		}
		if err = s.ledger.Transfer(ctx, transfer); err != nil {
			return fmt.Errorf("unlocking funds: %w", err)
		}

		if err = s.repo.UpdateState(ctx, order.ID, entities.StateCancel); err != nil {
			return fmt.Errorf("persisting cancel state: %w", err)
		}

		order.State = entities.StateCancel
		canceled = order
		return nil
	})
	if err != nil {
		// The transaction rolled back as a whole, so the order is still in
		// wait with its funds locked. Log and abandon.
		s.logger.Error("order cancel failed", "order_id", orderID, "error", err)
		return Transition{Outcome: OutcomeFailed, From: entities.StateWait, To: entities.StateWait, Reason: err}
	}

	if canceled == nil {
		return Transition{Outcome: OutcomeNoop}
	}

	s.afterCommit(ctx, entities.StateWait, canceled)

	return Transition{Outcome: OutcomeApplied, From: entities.StateWait, To: entities.StateCancel}
}

// GetOrder returns a single order by id.
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*entities.Order, error) {
	return s.repo.Get(ctx, id)
}

// ListOrders returns a member's orders, optionally filtered by market and
// state.
func (s *OrderService) ListOrders(ctx context.Context, memberID int64, marketID string, state entities.OrderState) ([]entities.Order, error) {
	return s.repo.FindByMember(ctx, memberID, marketID, state)
}

// FindPending exposes the pending backlog to the submit dispatcher.
func (s *OrderService) FindPending(ctx context.Context, limit int) ([]entities.Order, error) {
	return s.repo.FindPending(ctx, limit)
}

// afterCommit runs the downstream effects of a committed transition: the
// matching-engine hand-off for orders entering wait, then the event bus and
// member push. Both channels tolerate duplicates, so failures there are
// logged and left to redelivery.
func (s *OrderService) afterCommit(ctx context.Context, from entities.OrderState, order *entities.Order) {
	if from == entities.StatePending && order.State == entities.StateWait {
		if err := s.mailbox.Enqueue(ctx, entities.NewMailboxMessage(order)); err != nil {
			s.logger.Error("matching mailbox enqueue failed", "order_id", order.ID, "error", err)
		}
	}

	s.notifier.OrderUpdated(ctx, order)
}

// reject force-fails an order after a submit attempt broke down. It runs in
// a fresh transaction; the failed attempt has already rolled back, so the
// ledger holds no debit from it and no reversal is needed.
func (s *OrderService) reject(ctx context.Context, orderID int64) {
	var rejected *entities.Order

	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		order, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.State != entities.StatePending {
			return nil
		}
		if err = s.repo.UpdateState(ctx, order.ID, entities.StateReject); err != nil {
			return err
		}

		order.State = entities.StateReject
		rejected = order
		return nil
	})
	if err != nil {
		if errors.Is(err, entities.ErrOrderNotFound) {
			return
		}
		s.logger.Error("forcing order to reject failed", "order_id", orderID, "error", err)
		return
	}

	if rejected != nil {
		s.afterCommit(ctx, entities.StatePending, rejected)
	}
}

func orderReference(id int64) string {
	return fmt.Sprintf("order-%d", id)
}
