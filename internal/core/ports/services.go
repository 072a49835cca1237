package ports

import (
	"context"

	"github.com/mintex/exchange-core/backend/internal/entities"
	"github.com/mintex/exchange-core/backend/internal/usecases"
)

// OrderLifecycle defines the interface for order lifecycle operations.
type OrderLifecycle interface {
	CreateOrder(ctx context.Context, req usecases.CreateOrderRequest, market entities.Market, depth []usecases.PriceLevel) (*entities.Order, error)
	Submit(ctx context.Context, orderID int64) usecases.Transition
	Cancel(ctx context.Context, orderID int64) usecases.Transition
	GetOrder(ctx context.Context, id int64) (*entities.Order, error)
	ListOrders(ctx context.Context, memberID int64, marketID string, state entities.OrderState) ([]entities.Order, error)
	FindPending(ctx context.Context, limit int) ([]entities.Order, error)
}

// MarketProvider resolves market configuration by id.
type MarketProvider interface {
	Get(id string) (entities.Market, error)
	All() []entities.Market
}

// DepthProvider serves order-book level snapshots, best price first.
type DepthProvider interface {
	Levels(marketID string, side entities.OrderSide) []usecases.PriceLevel
}
