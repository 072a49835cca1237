package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountKind names a member sub-account within the fund ledger. Active
// orders reserve funds by moving them from the main sub-account into the
// locked one; cancellation moves them back.
type AccountKind string

const (
	AccountMain   AccountKind = "main"
	AccountLocked AccountKind = "locked"
)

// Account is one (member, currency, kind) balance row in the fund ledger.
type Account struct {
	ID        int64           `json:"id" db:"id"`
	MemberID  int64           `json:"member_id" db:"member_id"`
	Currency  string          `json:"currency" db:"currency"`
	Kind      AccountKind     `json:"kind" db:"kind"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Transfer describes one atomic movement between two sub-accounts of a
// member. The (Reference, Operation) pair is the idempotency key: applying
// the same transfer twice moves funds once.
type Transfer struct {
	MemberID  int64
	Currency  string
	Amount    decimal.Decimal
	Reference string      // audit tag, e.g. "order-42"
	Operation string      // operation kind, e.g. "submit", "cancel"
	FromKind  AccountKind
	ToKind    AccountKind
}
