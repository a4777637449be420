package service

import (
	"context"
	"sort"

	"github.com/avvvet/pickbox-services/internal/gamesvc/engine"
	"github.com/avvvet/pickbox-services/internal/gamesvc/ledger"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type LevelPrize struct {
	LevelIndex int             `json:"level_index"`
	WinPrize   decimal.Decimal `json:"win_prize"`
}

type PrizeTable struct {
	GameID   int64        `json:"game_id,omitempty"`
	Currency string       `json:"currency"`
	Prizes   []LevelPrize `json:"prizes"`
}

type Balance struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

// GameSummary is a finished game flow with what the ledger moved for it.
type GameSummary struct {
	engine.Flow
	Balances []Balance `json:"balances"`
}

type SummaryPage struct {
	Data   []GameSummary `json:"data"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

type WinnersPayouts struct {
	Currency     string          `json:"currency"`
	TotalPayouts decimal.Decimal `json:"total_payouts"`
	TotalWinners int64           `json:"total_winners"`
}

type DepositReport struct {
	TotalPaid  decimal.Decimal `json:"total_paid"`
	Currency   string          `json:"currency"`
	Average    decimal.Decimal `json:"average"`
	LastUpdate string          `json:"last_update"`
}

// Prizes lists the configured win prizes in the caller's currency. When no
// rate is known the table is shown in the prize currency.
func (s *GameService) Prizes(ctx context.Context, c Caller) (PrizeTable, error) {
	cfg, err := s.configs.Get(ctx)
	if err != nil {
		return PrizeTable{}, err
	}
	currency := c.Currency
	rate, err := s.rates.Rate(ctx, cfg.PrizeCurrency, currency)
	if err != nil {
		log.Warnf("no exchange rate %s->%s, listing prizes in %s: %v", cfg.PrizeCurrency, currency, cfg.PrizeCurrency, err)
		rate, currency = decimal.NewFromInt(1), cfg.PrizeCurrency
	}

	table := PrizeTable{Currency: currency, Prizes: make([]LevelPrize, 0, len(cfg.Levels))}
	for i, rule := range cfg.Levels {
		table.Prizes = append(table.Prizes, LevelPrize{
			LevelIndex: i + 1,
			WinPrize:   rule.WinPrize.Mul(rate).Round(0),
		})
	}
	return table, nil
}

// GamePrizes lists the win prizes fixed when the game was started.
func (s *GameService) GamePrizes(ctx context.Context, c Caller, gameID int64) (PrizeTable, error) {
	g, err := s.store.GetGame(ctx, gameID, c.UserID)
	if err != nil {
		return PrizeTable{}, err
	}
	table := PrizeTable{GameID: g.ID, Currency: g.Currency, Prizes: make([]LevelPrize, 0, len(g.Levels))}
	for _, l := range g.Levels {
		table.Prizes = append(table.Prizes, LevelPrize{LevelIndex: l.Index, WinPrize: l.WinPrize})
	}
	return table, nil
}

// Summary pages through the caller's finished games with their ledger balances.
func (s *GameService) Summary(ctx context.Context, c Caller, limit, offset int) (SummaryPage, error) {
	cfg, err := s.configs.Get(ctx)
	if err != nil {
		return SummaryPage{}, err
	}
	games, total, err := s.store.FinishedGames(ctx, c.UserID, limit, offset)
	if err != nil {
		return SummaryPage{}, err
	}

	ids := make([]int64, 0, len(games))
	for _, g := range games {
		ids = append(ids, g.ID)
	}
	balances, err := s.reports.SourcesBalances(ctx, ledger.SourceGames, ids)
	if err != nil {
		return SummaryPage{}, &engine.ServiceError{Op: "balances", Err: err}
	}

	now := s.now().UTC()
	page := SummaryPage{Data: make([]GameSummary, 0, len(games)), Total: total, Limit: limit, Offset: offset}
	for _, g := range games {
		page.Data = append(page.Data, GameSummary{
			Flow:     g.View(cfg, now, nil),
			Balances: sortedBalances(balances[g.ID]),
		})
	}
	return page, nil
}

func sortedBalances(m map[string]decimal.Decimal) []Balance {
	out := make([]Balance, 0, len(m))
	for cur, amt := range m {
		out = append(out, Balance{Currency: cur, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

// Winners totals the payouts of every game won on its final level, in the
// caller's currency. Unknown rates count at par.
func (s *GameService) Winners(ctx context.Context, c Caller) (WinnersPayouts, error) {
	totals, err := s.store.WinnersByCurrency(ctx)
	if err != nil {
		return WinnersPayouts{}, err
	}
	out := WinnersPayouts{Currency: c.Currency, TotalPayouts: decimal.Zero}
	for _, t := range totals {
		rate := decimal.NewFromInt(1)
		if t.Currency != c.Currency {
			if r, err := s.rates.Rate(ctx, t.Currency, c.Currency); err == nil {
				rate = r
			} else {
				log.Warnf("no exchange rate %s->%s, counting winners at par: %v", t.Currency, c.Currency, err)
			}
		}
		out.TotalPayouts = out.TotalPayouts.Add(t.Paid.Mul(rate).Round(0))
		out.TotalWinners += t.Winners
	}
	return out, nil
}

// Statistics converts the ledger's deposit sums for games into the caller's
// currency. Sums in a currency without a rate are left out.
func (s *GameService) Statistics(ctx context.Context, c Caller) (DepositReport, error) {
	stats, err := s.reports.DepositStatistics(ctx, ledger.SourceGames, "money")
	if err != nil {
		return DepositReport{}, &engine.ServiceError{Op: "deposit statistics", Err: err}
	}

	total := decimal.Zero
	for cur, amount := range stats.Sums {
		if cur == c.Currency {
			total = total.Add(amount)
			continue
		}
		rate, err := s.rates.Rate(ctx, cur, c.Currency)
		if err != nil {
			log.Warnf("no exchange rate %s->%s, skipping deposits: %v", cur, c.Currency, err)
			continue
		}
		total = total.Add(amount.Mul(rate))
	}

	report := DepositReport{
		TotalPaid:  total.Ceil(),
		Currency:   c.Currency,
		Average:    decimal.Zero,
		LastUpdate: stats.LastUpdate,
	}
	if stats.UsersCount > 0 {
		report.Average = total.Div(decimal.NewFromInt(stats.UsersCount)).Ceil()
	}
	return report, nil
}
