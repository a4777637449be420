package rates

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository stores euro based exchange rates, one row per currency.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Upsert(ctx context.Context, rates map[string]decimal.Decimal) error {
	if len(rates) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for currency, rate := range rates {
		batch.Queue(`
			INSERT INTO euro_exchange_rates (currency, rate)
			VALUES ($1, $2)
			ON CONFLICT (currency) DO UPDATE SET rate = EXCLUDED.rate, updated_at = NOW()`,
			currency, rate)
	}
	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert exchange rates: %w", err)
	}
	return nil
}

func (r *Repository) All(ctx context.Context) (map[string]decimal.Decimal, error) {
	rows, err := r.db.Query(ctx, `SELECT currency, rate FROM euro_exchange_rates`)
	if err != nil {
		return nil, fmt.Errorf("failed to load exchange rates: %w", err)
	}
	defer rows.Close()

	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var currency string
		var rate decimal.Decimal
		if err := rows.Scan(&currency, &rate); err != nil {
			return nil, err
		}
		out[currency] = rate
	}
	return out, rows.Err()
}
