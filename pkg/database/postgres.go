package database

import (
	"context"
	"fmt"
	"time"

	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	cfg "github.com/mintex/exchange-core/backend/config"
)

const defaultConnTimeoutSeconds = 5

// Postgres bundles the connection pool with the transactor used to scope
// multi-statement units of work. Repositories resolve their connection
// through DBGetter so they run on the transaction bound to the context.
type Postgres struct {
	Pool       *pgxpool.Pool
	DBGetter   tx.DBGetter
	Transactor *tx.Transactor
}

type settings struct {
	maxPoolSize       int32
	connTimeout       int
	healthCheckPeriod int
	isolation         pgx.TxIsoLevel
}

type Option func(*settings)

func MaxPoolSize(size int32) Option {
	return func(s *settings) { s.maxPoolSize = size }
}

// ConnTimeout sets the connect timeout in seconds.
func ConnTimeout(seconds int) Option {
	return func(s *settings) { s.connTimeout = seconds }
}

// HealthCheckPeriod sets the pool health check period in seconds.
func HealthCheckPeriod(seconds int) Option {
	return func(s *settings) { s.healthCheckPeriod = seconds }
}

// Isolation sets the default transaction isolation level for the pool.
func Isolation(level pgx.TxIsoLevel) Option {
	return func(s *settings) { s.isolation = level }
}

func New(config *cfg.Config, opts ...Option) (*Postgres, error) {
	s := settings{
		connTimeout: defaultConnTimeoutSeconds,
		isolation:   pgx.ReadCommitted,
	}
	for _, opt := range opts {
		opt(&s)
	}

	poolConfig, err := pgxpool.ParseConfig(config.DB.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}

	if s.maxPoolSize > 0 {
		poolConfig.MaxConns = s.maxPoolSize
	}
	if s.healthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = time.Duration(s.healthCheckPeriod) * time.Second
	}
	poolConfig.ConnConfig.ConnectTimeout = time.Duration(s.connTimeout) * time.Second
	poolConfig.ConnConfig.RuntimeParams["default_transaction_isolation"] = string(s.isolation)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err = pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	transactor, dbGetter := tx.NewTransactorFromPool(pool)

	return &Postgres{
		Pool:       pool,
		DBGetter:   dbGetter,
		Transactor: transactor,
	}, nil
}

func (p *Postgres) Close() {
	p.Pool.Close()
}
