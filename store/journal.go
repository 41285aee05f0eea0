package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/evdnx/gotrade/types"
)

// CycleRecord is one journaled trading cycle.
type CycleRecord struct {
	Symbol            string
	Signal            string
	Strategy          string
	Traded            bool
	StopLossEvaluated bool
	StopLossTriggered bool
	ErrorKind         string
	Error             string
	StartedAt         time.Time
	FinishedAt        time.Time
}

// querier is the subset of *pgxpool.Pool the journal uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Journal appends cycles and order acknowledgements to Postgres.
type Journal struct {
	db querier
}

func NewJournal(db querier) *Journal { return &Journal{db: db} }

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS cycles (
		id BIGSERIAL PRIMARY KEY,
		symbol TEXT NOT NULL,
		signal TEXT NOT NULL,
		strategy TEXT NOT NULL,
		traded BOOLEAN NOT NULL,
		stop_loss_evaluated BOOLEAN NOT NULL,
		stop_loss_triggered BOOLEAN NOT NULL,
		error_kind TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		order_id BIGINT NOT NULL,
		symbol TEXT NOT NULL,
		client_order_id TEXT NOT NULL,
		side TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		orig_qty DOUBLE PRECISION NOT NULL,
		executed_qty DOUBLE PRECISION NOT NULL,
		cumulative_quote_qty DOUBLE PRECISION NOT NULL,
		transact_time TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (symbol, order_id)
	)`,
}

// Migrate creates the journal tables.
func (j *Journal) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := j.db.Exec(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (j *Journal) RecordCycle(ctx context.Context, c CycleRecord) error {
	_, err := j.db.Exec(ctx,
		`INSERT INTO cycles (symbol, signal, strategy, traded, stop_loss_evaluated, stop_loss_triggered,
			error_kind, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.Symbol, c.Signal, c.Strategy, c.Traded, c.StopLossEvaluated, c.StopLossTriggered,
		c.ErrorKind, c.Error, c.StartedAt, c.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to record cycle: %w", err)
	}
	return nil
}

func (j *Journal) RecordOrder(ctx context.Context, a types.OrderAck) error {
	_, err := j.db.Exec(ctx,
		`INSERT INTO orders (order_id, symbol, client_order_id, side, type, status, price, orig_qty,
			executed_qty, cumulative_quote_qty, transact_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (symbol, order_id) DO UPDATE SET status = EXCLUDED.status,
			executed_qty = EXCLUDED.executed_qty, cumulative_quote_qty = EXCLUDED.cumulative_quote_qty`,
		a.OrderID, a.Symbol, a.ClientOrderID, string(a.Side), string(a.Type), string(a.Status), a.Price,
		a.OrigQty, a.ExecutedQty, a.CumulativeQuoteQty, a.TransactTime)
	if err != nil {
		return fmt.Errorf("failed to record order: %w", err)
	}
	return nil
}

// RecentOrders returns the newest journaled orders of symbol, newest first.
func (j *Journal) RecentOrders(ctx context.Context, symbol string, limit int) ([]types.Order, error) {
	rows, err := j.db.Query(ctx,
		`SELECT order_id, symbol, client_order_id, side, type, status, price, orig_qty,
			executed_qty, cumulative_quote_qty, transact_time
		FROM orders WHERE symbol = $1 ORDER BY transact_time DESC LIMIT $2`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var out []types.Order
	for rows.Next() {
		var o types.Order
		var side, typ, status string
		if err := rows.Scan(&o.OrderID, &o.Symbol, &o.ClientOrderID, &side, &typ, &status, &o.Price,
			&o.OrigQty, &o.ExecutedQty, &o.CumulativeQuoteQty, &o.Time); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.Side, o.Type, o.Status = types.Side(side), types.OrderType(typ), types.OrderStatus(status)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return out, nil
}
