package repository

import (
	"context"

	"crosslag/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type TradeRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewTradeRepository(pool PgxPool, tracer trace.Tracer) *TradeRepository {
	return &TradeRepository{pool: pool, tracer: tracer}
}

// UpsertPosition persists an open position so a restart can rehydrate
// the risk manager.
func (r *TradeRepository) UpsertPosition(ctx context.Context, p *domain.Position) error {
	_, span := r.tracer.Start(ctx, "trade-repo.upsert-position")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO positions (id, symbol, side, entry_price, units, stop_loss, take_profit, opened_at, unrealized_pnl, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		     unrealized_pnl = EXCLUDED.unrealized_pnl,
		     status = EXCLUDED.status`,
		p.ID, p.Symbol, string(p.Side), p.EntryPrice, p.Units, p.StopLoss, p.TakeProfit, p.OpenedAt, p.UnrealizedPnL, string(p.Status),
	)
	return err
}

// OpenPositions loads every position still marked open.
func (r *TradeRepository) OpenPositions(ctx context.Context) ([]*domain.Position, error) {
	_, span := r.tracer.Start(ctx, "trade-repo.open-positions")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id, symbol, side, entry_price, units, stop_loss, take_profit, opened_at, unrealized_pnl, status
		 FROM positions
		 WHERE status = 'open'
		 ORDER BY opened_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		p := &domain.Position{}
		var side, status string
		if err := rows.Scan(&p.ID, &p.Symbol, &side, &p.EntryPrice, &p.Units, &p.StopLoss, &p.TakeProfit, &p.OpenedAt, &p.UnrealizedPnL, &status); err != nil {
			return nil, err
		}
		p.Side = domain.PositionSide(side)
		p.Status = domain.PositionStatus(status)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// RecordClose marks the position closed and writes the trade row in
// one round trip.
func (r *TradeRepository) RecordClose(ctx context.Context, result *domain.TradeResult) error {
	_, span := r.tracer.Start(ctx, "trade-repo.record-close")
	defer span.End()

	if _, err := r.pool.Exec(ctx,
		`UPDATE positions SET status = 'closed', unrealized_pnl = 0 WHERE id = $1`,
		result.PositionID,
	); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO trades (position_id, symbol, side, entry_price, exit_price, units, realized_pnl, reason, opened_at, closed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		result.PositionID, result.Symbol, string(result.Side), result.EntryPrice, result.ExitPrice,
		result.Units, result.RealizedPnL, string(result.Reason), result.OpenedAt, result.ClosedAt,
	)
	return err
}

// RecentTrades returns closed trades, newest first.
func (r *TradeRepository) RecentTrades(ctx context.Context, limit int) ([]domain.TradeResult, error) {
	_, span := r.tracer.Start(ctx, "trade-repo.recent-trades")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT position_id, symbol, side, entry_price, exit_price, units, realized_pnl, reason, opened_at, closed_at
		 FROM trades
		 ORDER BY closed_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.TradeResult
	for rows.Next() {
		var t domain.TradeResult
		var side, reason string
		if err := rows.Scan(&t.PositionID, &t.Symbol, &side, &t.EntryPrice, &t.ExitPrice, &t.Units, &t.RealizedPnL, &reason, &t.OpenedAt, &t.ClosedAt); err != nil {
			return nil, err
		}
		t.Side = domain.PositionSide(side)
		t.Reason = domain.CloseReason(reason)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// TradeReturns converts closed trades into per-trade fractional
// returns, oldest first, for the risk metrics calculation.
func (r *TradeRepository) TradeReturns(ctx context.Context, limit int) ([]float64, error) {
	trades, err := r.RecentTrades(ctx, limit)
	if err != nil {
		return nil, err
	}
	returns := make([]float64, 0, len(trades))
	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		notional := t.EntryPrice * t.Units
		if notional == 0 {
			continue
		}
		returns = append(returns, t.RealizedPnL/notional)
	}
	return returns, nil
}
