package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"

	"github.com/mintex/exchange-core/backend/internal/entities"
	"github.com/mintex/exchange-core/backend/pkg/database"
)

const orderColumns = `id, member_id, market_id, bid, ask, side, ord_type, price,
	volume, origin_volume, locked, origin_locked, funds_received, fee,
	trades_count, state, created_at, updated_at`

// OrdersRepository persists orders. All methods run on the connection bound
// to the context, so they participate in the caller's transaction when one
// is open.
type OrdersRepository struct {
	logger *slog.Logger

	db tx.DBGetter
}

func NewOrdersRepository(logger *slog.Logger, pg *database.Postgres) *OrdersRepository {
	return &OrdersRepository{logger: logger, db: pg.DBGetter}
}

func (r *OrdersRepository) Get(ctx context.Context, id int64) (*entities.Order, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate loads the order under an exclusive row lock. It must be
// called inside a transaction; the lock is held until that transaction
// ends, serializing concurrent submit/cancel attempts on the same id.
func (r *OrdersRepository) GetForUpdate(ctx context.Context, id int64) (*entities.Order, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *OrdersRepository) get(ctx context.Context, id int64, suffix string) (*entities.Order, error) {
	query := fmt.Sprintf("SELECT %s FROM orders WHERE id = $1%s", orderColumns, suffix)

	rows, err := r.db(ctx).Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("querying order %d: %w", id, err)
	}

	order, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[entities.Order])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entities.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("collecting order %d: %w", id, err)
	}

	return &order, nil
}

func (r *OrdersRepository) Insert(ctx context.Context, order *entities.Order) error {
	query := `INSERT INTO orders (member_id, market_id, bid, ask, side, ord_type, price,
			volume, origin_volume, locked, origin_locked, funds_received, fee, trades_count, state,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`

	err := r.db(ctx).QueryRow(ctx, query,
		order.MemberID, order.MarketID, order.Bid, order.Ask, order.Side, order.OrdType, order.Price,
		order.Volume, order.OriginVolume, order.Locked, order.OriginLocked, order.FundsReceived,
		order.Fee, order.TradesCount, order.State, order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	return nil
}

func (r *OrdersRepository) UpdateState(ctx context.Context, id int64, state entities.OrderState) error {
	tag, err := r.db(ctx).Exec(ctx,
		"UPDATE orders SET state = $2, updated_at = NOW() WHERE id = $1", id, state)
	if err != nil {
		return fmt.Errorf("updating order %d state: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrOrderNotFound
	}

	return nil
}

// FindPending returns the oldest pending orders, up to limit. The submit
// dispatcher drains this backlog.
func (r *OrdersRepository) FindPending(ctx context.Context, limit int) ([]entities.Order, error) {
	query := fmt.Sprintf("SELECT %s FROM orders WHERE state = $1 ORDER BY id LIMIT $2", orderColumns)

	rows, err := r.db(ctx).Query(ctx, query, entities.StatePending, limit)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying pending orders: %w", err)
	}

	orders, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.Order])
	if err != nil {
		r.logger.Error("failed to collect pending order rows", "error", err)
		return nil, err
	}

	return orders, nil
}

// FindByMember lists a member's orders, optionally narrowed by market and
// state. Results come newest first.
func (r *OrdersRepository) FindByMember(ctx context.Context, memberID int64, marketID string, state entities.OrderState) ([]entities.Order, error) {
	builder := sq.Select(orderColumns).
		From("orders").
		Where(sq.Eq{"member_id": memberID}).
		OrderBy("id DESC").
		PlaceholderFormat(sq.Dollar)

	if marketID != "" {
		builder = builder.Where(sq.Eq{"market_id": marketID})
	}
	if state != "" {
		builder = builder.Where(sq.Eq{"state": state})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building orders query: %w", err)
	}

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying member %d orders: %w", memberID, err)
	}

	orders, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.Order])
	if err != nil {
		r.logger.Error("failed to collect order rows", "error", err)
		return nil, err
	}

	return orders, nil
}
