package engine

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/avvvet/pickbox-services/internal/gamesvc/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LevelRule is the reward schedule entry for one level index.
type LevelRule struct {
	Boxes      int
	WinPrize   decimal.Decimal
	LeavePrize decimal.Decimal
}

// Config holds the game rules. It is loaded once per operation and passed
// explicitly; nothing in this package reads it from global state.
type Config struct {
	GamePrice      decimal.Decimal
	RevealPrice    decimal.Decimal
	RevealMinBoxes int
	PlayTime       time.Duration
	PrizeCurrency  string
	Levels         []LevelRule
}

func (c Config) TotalLevels() int {
	return len(c.Levels)
}

func (c Config) Validate() error {
	if len(c.Levels) == 0 {
		return errors.New("config: total_levels must be at least 1")
	}
	for i, l := range c.Levels {
		if l.Boxes < 2 {
			return fmt.Errorf("config: box_count.level_%d must be at least 2", i+1)
		}
		if l.WinPrize.IsNegative() || l.LeavePrize.IsNegative() {
			return fmt.Errorf("config: prizes of level %d must not be negative", i+1)
		}
	}
	if c.GamePrice.IsNegative() || c.RevealPrice.IsNegative() {
		return errors.New("config: prices must not be negative")
	}
	if c.PlayTime <= 0 {
		return errors.New("config: seconds_to_play must be positive")
	}
	if c.PrizeCurrency == "" {
		return errors.New("config: prize_currency is required")
	}
	return nil
}

// Ledger is the part of the ledger service the engine drives.
type Ledger interface {
	Withdraw(ctx context.Context, tx ledger.Transaction) (string, error)
	Deposit(ctx context.Context, tx ledger.Transaction) (string, error)
}

type Randomizer interface {
	// Intn returns a uniform value in [0, n).
	Intn(n int) int
}

// CryptoRand draws from crypto/rand.
type CryptoRand struct{}

func (CryptoRand) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(fmt.Sprintf("crypto/rand: %v", err))
	}
	return int(v.Int64())
}

// Env is everything a transition needs besides the game itself.
type Env struct {
	Config Config
	Ledger Ledger
	Rand   Randomizer
	Now    time.Time

	// RequestKey identifies the caller's logical request; it seeds the
	// idempotency key of the entry fee charge.
	RequestKey string
}

var keySpace = uuid.MustParse("8f0f3b8e-4c1a-5d7e-9b2a-6a0c1f4e2d10")

// operationKey is stable for the same logical ledger operation, so a retry
// after a local rollback presents the ledger with the same key.
func operationKey(format string, args ...any) string {
	return uuid.NewSHA1(keySpace, []byte(fmt.Sprintf(format, args...))).String()
}
