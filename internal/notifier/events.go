// Package notifier maps committed order transitions to named market events
// and member-facing push notifications. It only ever runs after the
// transition's transaction has committed.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mintex/exchange-core/backend/internal/entities"
)

// Market event names published on the event bus.
const (
	EventOrderCreated   = "order_created"
	EventOrderUpdated   = "order_updated"
	EventOrderCanceled  = "order_canceled"
	EventOrderCompleted = "order_completed"
)

// EventPublisher writes a payload to a named topic of the event bus.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// PushGateway delivers a payload to the owning member's live connections.
type PushGateway interface {
	PushToMember(ctx context.Context, memberID int64, payload any) error
}

// Notifier fans a committed transition out to the event bus and the member
// push channel. Market orders are never announced; only limit orders are
// visible downstream.
type Notifier struct {
	logger *slog.Logger
	events EventPublisher
	push   PushGateway
}

func New(logger *slog.Logger, events EventPublisher, push PushGateway) *Notifier {
	return &Notifier{logger: logger, events: events, push: push}
}

// OrderCreated announces a freshly committed pending order.
func (n *Notifier) OrderCreated(ctx context.Context, order *entities.Order) {
	n.publish(ctx, order, EventOrderCreated)
}

// OrderUpdated announces a committed state change, selecting the event name
// by the resulting state.
func (n *Notifier) OrderUpdated(ctx context.Context, order *entities.Order) {
	n.publish(ctx, order, updateEvent(order.State))
}

func (n *Notifier) publish(ctx context.Context, order *entities.Order, event string) {
	if order.OrdType != entities.TypeLimit {
		return
	}

	topic := fmt.Sprintf("market.%s.%s", order.MarketID, event)
	if err := n.events.Publish(ctx, topic, NewOrderPayload(order)); err != nil {
		n.logger.Error("event publish failed", "topic", topic, "order_id", order.ID, "error", err)
	}

	if err := n.push.PushToMember(ctx, order.MemberID, NewMemberPush(order)); err != nil {
		n.logger.Error("member push failed", "member_id", order.MemberID, "order_id", order.ID, "error", err)
	}
}

func updateEvent(state entities.OrderState) string {
	switch state {
	case entities.StateCancel:
		return EventOrderCanceled
	case entities.StateDone:
		return EventOrderCompleted
	default:
		return EventOrderUpdated
	}
}

// OrderPayload is the event-bus serialization of an order's public fields
// at commit time. State carries the raw integer weight.
type OrderPayload struct {
	ID            int64  `json:"id"`
	MemberID      int64  `json:"member_id"`
	MarketID      string `json:"market_id"`
	Side          string `json:"side"`
	OrdType       string `json:"ord_type"`
	Price         string `json:"price,omitempty"`
	Volume        string `json:"volume"`
	OriginVolume  string `json:"origin_volume"`
	Locked        string `json:"locked"`
	OriginLocked  string `json:"origin_locked"`
	FundsReceived string `json:"funds_received"`
	Fee           string `json:"fee"`
	TradesCount   int64  `json:"trades_count"`
	State         int    `json:"state"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
}

func NewOrderPayload(o *entities.Order) OrderPayload {
	p := OrderPayload{
		ID:            o.ID,
		MemberID:      o.MemberID,
		MarketID:      o.MarketID,
		Side:          string(o.Side),
		OrdType:       string(o.OrdType),
		Volume:        o.Volume.String(),
		OriginVolume:  o.OriginVolume.String(),
		Locked:        o.Locked.String(),
		OriginLocked:  o.OriginLocked.String(),
		FundsReceived: o.FundsReceived.String(),
		Fee:           o.Fee.String(),
		TradesCount:   o.TradesCount,
		State:         o.State.Weight(),
		CreatedAt:     o.CreatedAt.Unix(),
		UpdatedAt:     o.UpdatedAt.Unix(),
	}
	if o.Price.Valid {
		p.Price = o.Price.Decimal.String()
	}
	return p
}

// MemberPush is the UI-facing notification for the owning member. Numeric
// fields travel as fixed-point decimal strings; price is null for absent.
type MemberPush struct {
	ID              int64   `json:"id"`
	At              int64   `json:"at"`
	Market          string  `json:"market"`
	Side            string  `json:"side"`
	Price           *string `json:"price"`
	State           string  `json:"state"`
	RemainingVolume string  `json:"remaining_volume"`
	OriginVolume    string  `json:"origin_volume"`
}

func NewMemberPush(o *entities.Order) MemberPush {
	p := MemberPush{
		ID:              o.ID,
		At:              time.Now().Unix(),
		Market:          o.MarketID,
		Side:            string(o.Side),
		State:           string(o.State),
		RemainingVolume: o.Volume.String(),
		OriginVolume:    o.OriginVolume.String(),
	}
	if o.Price.Valid {
		s := o.Price.Decimal.String()
		p.Price = &s
	}
	return p
}
