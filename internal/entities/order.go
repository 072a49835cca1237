package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide determines which currency an order spends and which it earns.
type OrderSide string

const (
	SideAsk OrderSide = "ask" // sell base currency
	SideBid OrderSide = "bid" // buy base currency
)

type OrderType string

const (
	TypeLimit  OrderType = "limit"
	TypeMarket OrderType = "market"
)

// OrderState is the lifecycle state of an order. The integer weight is used
// only for ordering and filtering, never for transition decisions.
type OrderState string

const (
	StatePending OrderState = "pending"
	StateWait    OrderState = "wait"
	StateDone    OrderState = "done"
	StateCancel  OrderState = "cancel"
	StateReject  OrderState = "reject"
)

var stateWeights = map[OrderState]int{
	StatePending: 0,
	StateWait:    100,
	StateDone:    200,
	StateCancel:  -100,
	StateReject:  -200,
}

// Weight returns the numeric weight of the state.
func (s OrderState) Weight() int {
	return stateWeights[s]
}

// Terminal reports whether no further lifecycle transition is possible.
func (s OrderState) Terminal() bool {
	return s == StateDone || s == StateCancel || s == StateReject
}

// Order is the central persistent entity. Quantities are fixed-point
// decimals; Volume and Locked only ever decrease after creation.
type Order struct {
	ID            int64               `json:"id" db:"id"`
	MemberID      int64               `json:"member_id" db:"member_id"`
	MarketID      string              `json:"market_id" db:"market_id"`
	Bid           string              `json:"bid" db:"bid"` // quote currency code
	Ask           string              `json:"ask" db:"ask"` // base currency code
	Side          OrderSide           `json:"side" db:"side"`
	OrdType       OrderType           `json:"ord_type" db:"ord_type"`
	Price         decimal.NullDecimal `json:"price" db:"price"` // present iff limit
	Volume        decimal.Decimal     `json:"volume" db:"volume"`
	OriginVolume  decimal.Decimal     `json:"origin_volume" db:"origin_volume"`
	Locked        decimal.Decimal     `json:"locked" db:"locked"`
	OriginLocked  decimal.Decimal     `json:"origin_locked" db:"origin_locked"`
	FundsReceived decimal.Decimal     `json:"funds_received" db:"funds_received"`
	Fee           decimal.Decimal     `json:"fee" db:"fee"`
	TradesCount   int64               `json:"trades_count" db:"trades_count"`
	State         OrderState          `json:"state" db:"state"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at" db:"updated_at"`
}

// LockedCurrency is the currency reserved against this order: a bid order
// spends the quote currency, an ask order spends the base currency.
func (o *Order) LockedCurrency() string {
	if o.Side == SideBid {
		return o.Bid
	}
	return o.Ask
}

// IncomeCurrency is the currency the order earns when it trades.
func (o *Order) IncomeCurrency() string {
	if o.Side == SideBid {
		return o.Ask
	}
	return o.Bid
}

// FundsUsed is the portion of the original reservation already consumed.
func (o *Order) FundsUsed() decimal.Decimal {
	return o.OriginLocked.Sub(o.Locked)
}

// Validate checks the creation-time rules: a limit order must carry a
// positive price, a market order must not carry one, and the requested
// volume must be positive.
func (o *Order) Validate() error {
	switch o.OrdType {
	case TypeLimit:
		if !o.Price.Valid || !o.Price.Decimal.IsPositive() {
			return ErrMissingPrice
		}
	case TypeMarket:
		if o.Price.Valid {
			return ErrPriceNotAllowed
		}
	default:
		return ErrInvalidOrderType
	}

	if o.Side != SideAsk && o.Side != SideBid {
		return ErrInvalidOrderSide
	}
	if !o.OriginVolume.IsPositive() {
		return ErrInvalidVolume
	}
	if !o.Volume.IsPositive() {
		return ErrInvalidVolume
	}

	return nil
}

// MailboxMessage is the normalized hand-off sent to the matching engine for
// every order entering the wait state. Delivery is at-least-once; consumers
// must tolerate duplicates of the same order id.
type MailboxMessage struct {
	ID        int64               `json:"id"`
	Market    string              `json:"market"`
	Side      OrderSide           `json:"side"`
	OrdType   OrderType           `json:"ord_type"`
	Volume    decimal.Decimal     `json:"volume"`
	Price     decimal.NullDecimal `json:"price"`
	Locked    decimal.Decimal     `json:"locked"`
	Timestamp int64               `json:"timestamp"` // epoch seconds
}

// NewMailboxMessage builds the matching-engine hand-off for an order.
func NewMailboxMessage(o *Order) MailboxMessage {
	return MailboxMessage{
		ID:        o.ID,
		Market:    o.MarketID,
		Side:      o.Side,
		OrdType:   o.OrdType,
		Volume:    o.Volume,
		Price:     o.Price,
		Locked:    o.Locked,
		Timestamp: o.CreatedAt.Unix(),
	}
}
