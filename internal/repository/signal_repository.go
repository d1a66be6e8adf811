package repository

import (
	"context"

	"crosslag/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type SignalRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewSignalRepository(pool PgxPool, tracer trace.Tracer) *SignalRepository {
	return &SignalRepository{pool: pool, tracer: tracer}
}

// InsertSignal persists one emitted signal. Metadata is stored as the
// deterministic details line, not raw JSON, so rows stay greppable.
func (r *SignalRepository) InsertSignal(ctx context.Context, symbol string, sig *domain.Signal) error {
	_, span := r.tracer.Start(ctx, "signal-repo.insert-signal")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO signals (symbol, signal_type, strength, confidence, strategy, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		symbol, string(sig.Type), sig.Strength, sig.Confidence, sig.Strategy, sig.DetailsText(), sig.Timestamp,
	)
	return err
}

// RecentSignals returns the newest signals first.
func (r *SignalRepository) RecentSignals(ctx context.Context, symbol string, limit int) ([]domain.Signal, error) {
	_, span := r.tracer.Start(ctx, "signal-repo.recent-signals")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT signal_type, strength, confidence, strategy, created_at
		 FROM signals
		 WHERE symbol = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		symbol, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []domain.Signal
	for rows.Next() {
		var s domain.Signal
		var signalType string
		if err := rows.Scan(&signalType, &s.Strength, &s.Confidence, &s.Strategy, &s.Timestamp); err != nil {
			return nil, err
		}
		s.Type = domain.SignalType(signalType)
		signals = append(signals, s)
	}
	return signals, rows.Err()
}
