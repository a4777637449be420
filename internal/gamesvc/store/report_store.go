package store

import (
	"context"
	"fmt"

	"github.com/avvvet/pickbox-services/internal/gamesvc/engine"
	"github.com/shopspring/decimal"
)

// WinnerTotals aggregates games that were settled on their final level.
type WinnerTotals struct {
	Currency string
	Winners  int64
	Paid     decimal.Decimal
}

func (s *Store) WinnersByCurrency(ctx context.Context) ([]WinnerTotals, error) {
	rows, err := s.db.Query(ctx, `
		SELECT currency, COUNT(*), COALESCE(SUM(paid_prize), 0)
		FROM games
		WHERE state = $1 AND current_level_index = total_levels
		GROUP BY currency
		ORDER BY currency`, string(engine.GameCollected))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate winners: %w", err)
	}
	defer rows.Close()

	var totals []WinnerTotals
	for rows.Next() {
		var w WinnerTotals
		if err := rows.Scan(&w.Currency, &w.Winners, &w.Paid); err != nil {
			return nil, err
		}
		totals = append(totals, w)
	}
	return totals, rows.Err()
}
