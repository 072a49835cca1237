package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tx "github.com/Thiht/transactor/pgx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mintex/exchange-core/backend/internal/entities"
	"github.com/mintex/exchange-core/backend/pkg/database"
)

// LedgerRepository is the fund ledger: the system of record for member
// sub-account balances. Transfer is the only way balances move; callers
// never touch them directly.
type LedgerRepository struct {
	logger *slog.Logger

	db tx.DBGetter
}

func NewLedgerRepository(logger *slog.Logger, pg *database.Postgres) *LedgerRepository {
	return &LedgerRepository{logger: logger, db: pg.DBGetter}
}

// Transfer atomically moves the amount between the member's two
// sub-accounts of a currency. The (reference, operation) pair is a
// uniqueness guard: a retried transfer that already applied is a silent
// no-op. The debit fails with entities.ErrInsufficientFunds when the source
// balance does not cover the amount; because everything runs on the
// caller's transaction, a failure leaves no partial movement behind.
func (r *LedgerRepository) Transfer(ctx context.Context, t entities.Transfer) error {
	if !t.Amount.IsPositive() {
		return nil
	}

	tag, err := r.db(ctx).Exec(ctx,
		`INSERT INTO ledger_operations (id, reference, operation, member_id, currency, amount, from_kind, to_kind)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (reference, operation) DO NOTHING`,
		uuid.New(), t.Reference, t.Operation, t.MemberID, t.Currency, t.Amount, t.FromKind, t.ToKind)
	if err != nil {
		return fmt.Errorf("recording ledger operation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Info("ledger operation already applied",
			"reference", t.Reference, "operation", t.Operation)
		return nil
	}

	tag, err = r.db(ctx).Exec(ctx,
		`UPDATE accounts SET balance = balance - $4, updated_at = NOW()
		WHERE member_id = $1 AND currency = $2 AND kind = $3 AND balance >= $4`,
		t.MemberID, t.Currency, t.FromKind, t.Amount)
	if err != nil {
		return fmt.Errorf("debiting %s %s account: %w", t.Currency, t.FromKind, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("debiting %s %s of member %d: %w",
			t.Amount, t.Currency, t.MemberID, entities.ErrInsufficientFunds)
	}

	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO accounts (member_id, currency, kind, balance)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (member_id, currency, kind)
		DO UPDATE SET balance = accounts.balance + EXCLUDED.balance, updated_at = NOW()`,
		t.MemberID, t.Currency, t.ToKind, t.Amount)
	if err != nil {
		return fmt.Errorf("crediting %s %s account: %w", t.Currency, t.ToKind, err)
	}

	return nil
}

// Deposit credits a member's main sub-account. Used by account funding; the
// reference keeps the credit auditable alongside order transfers.
func (r *LedgerRepository) Deposit(ctx context.Context, memberID int64, currency string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("deposit amount must be positive, got %s", amount)
	}

	reference := fmt.Sprintf("deposit-%s", uuid.New())

	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO ledger_operations (id, reference, operation, member_id, currency, amount, from_kind, to_kind)
		VALUES ($1, $2, 'deposit', $3, $4, $5, 'external', $6)`,
		uuid.New(), reference, memberID, currency, amount, entities.AccountMain)
	if err != nil {
		return fmt.Errorf("recording deposit: %w", err)
	}

	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO accounts (member_id, currency, kind, balance)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (member_id, currency, kind)
		DO UPDATE SET balance = accounts.balance + EXCLUDED.balance, updated_at = NOW()`,
		memberID, currency, entities.AccountMain, amount)
	if err != nil {
		return fmt.Errorf("crediting deposit: %w", err)
	}

	return nil
}

// GetAccount returns one sub-account balance row.
func (r *LedgerRepository) GetAccount(ctx context.Context, memberID int64, currency string, kind entities.AccountKind) (*entities.Account, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, member_id, currency, kind, balance, created_at, updated_at
		FROM accounts WHERE member_id = $1 AND currency = $2 AND kind = $3`,
		memberID, currency, kind)
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}

	account, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[entities.Account])
	if errors.Is(err, pgx.ErrNoRows) {
		return &entities.Account{MemberID: memberID, Currency: currency, Kind: kind, Balance: decimal.Zero}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("collecting account: %w", err)
	}

	return &account, nil
}

// FindAccounts lists every sub-account of a member.
func (r *LedgerRepository) FindAccounts(ctx context.Context, memberID int64) ([]entities.Account, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, member_id, currency, kind, balance, created_at, updated_at
		FROM accounts WHERE member_id = $1 ORDER BY currency, kind`,
		memberID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying member %d accounts: %w", memberID, err)
	}

	accounts, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.Account])
	if err != nil {
		r.logger.Error("failed to collect account rows", "error", err)
		return nil, err
	}

	return accounts, nil
}
