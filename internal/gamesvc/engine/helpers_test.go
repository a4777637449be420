package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/avvvet/pickbox-services/internal/gamesvc/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeLedger struct {
	mu          sync.Mutex
	withdrawals []ledger.Transaction
	deposits    []ledger.Transaction
	withdrawErr error
	depositErr  error
	seq         int
}

func (f *fakeLedger) Withdraw(_ context.Context, tx ledger.Transaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.withdrawErr != nil {
		return "", f.withdrawErr
	}
	f.withdrawals = append(f.withdrawals, tx)
	f.seq++
	return fmt.Sprintf("w-%d", f.seq), nil
}

func (f *fakeLedger) Deposit(_ context.Context, tx ledger.Transaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.depositErr != nil {
		return "", f.depositErr
	}
	f.deposits = append(f.deposits, tx)
	f.seq++
	return fmt.Sprintf("d-%d", f.seq), nil
}

// seqRand returns queued values and then zero.
type seqRand struct {
	vals []int
}

func (r *seqRand) Intn(n int) int {
	if len(r.vals) == 0 {
		return 0
	}
	v := r.vals[0]
	r.vals = r.vals[1:]
	return v % n
}

func testConfig(boxes ...int) Config {
	levels := make([]LevelRule, 0, len(boxes))
	for i, b := range boxes {
		levels = append(levels, LevelRule{
			Boxes:      b,
			WinPrize:   decimal.NewFromInt(int64(100 * (i + 1))),
			LeavePrize: decimal.NewFromInt(int64(10 * (i + 1))),
		})
	}
	return Config{
		GamePrice:      decimal.NewFromInt(5),
		RevealPrice:    decimal.NewFromInt(2),
		RevealMinBoxes: 3,
		PlayTime:       5 * time.Minute,
		PrizeCurrency:  "EUR",
		Levels:         levels,
	}
}

func testEnv(cfg Config, l Ledger, rnd Randomizer) Env {
	return Env{Config: cfg, Ledger: l, Rand: rnd, Now: t0}
}

// startedGame starts a game whose winner on every level is box 1.
func startedGame(t *testing.T, cfg Config, l *fakeLedger) *Game {
	t.Helper()
	g := NewGame(7, "EUR", cfg.TotalLevels(), t0)
	g.ID = 42
	require.NoError(t, g.Start(context.Background(), testEnv(cfg, l, &seqRand{}), decimal.NewFromInt(1)))
	return g
}
