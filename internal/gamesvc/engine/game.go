package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/avvvet/pickbox-services/internal/gamesvc/ledger"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Game is one play-through. It exclusively owns its levels.
type Game struct {
	ID                int64
	UserID            int64
	Currency          string
	TotalLevels       int
	CurrentLevelIndex int
	State             GameState
	Active            bool
	PaidPrize         decimal.Decimal
	TransactionIDs    []string
	UpdatedAt         time.Time
	Expired           bool
	RequestKey        string
	Levels            []*Level

	events []WonEvent
}

// WonEvent is emitted when the player answers the final level correctly.
type WonEvent struct {
	GameID   int64
	UserID   int64
	Currency string
	Prize    decimal.Decimal
	At       time.Time
}

func NewGame(userID int64, currency string, totalLevels int, now time.Time) *Game {
	return &Game{
		UserID:      userID,
		Currency:    currency,
		TotalLevels: totalLevels,
		State:       GamePending,
		Active:      true,
		PaidPrize:   decimal.Zero,
		UpdatedAt:   now,
	}
}

// AttachLevels sets the game's levels ordered by index.
func (g *Game) AttachLevels(levels []*Level) {
	sort.Slice(levels, func(i, j int) bool { return levels[i].Index < levels[j].Index })
	for _, l := range levels {
		l.game = g
		l.GameID = g.ID
	}
	g.Levels = levels
}

func (g *Game) LevelAt(index int) *Level {
	for _, l := range g.Levels {
		if l.Index == index {
			return l
		}
	}
	return nil
}

func (g *Game) levelIn(state LevelState) *Level {
	for _, l := range g.Levels {
		if l.State == state {
			return l
		}
	}
	return nil
}

// CurrentLevel returns the active or collectable level, if any.
func (g *Game) CurrentLevel() *Level {
	for _, l := range g.Levels {
		if l.State.Current() {
			return l
		}
	}
	return nil
}

func (g *Game) Terminal() bool {
	return g.State == GameCollected
}

// DrainEvents returns and clears the events raised since the last call.
func (g *Game) DrainEvents() []WonEvent {
	ev := g.events
	g.events = nil
	return ev
}

func (g *Game) touch(now time.Time) {
	g.UpdatedAt = now
}

func (g *Game) addTransaction(id string) {
	g.TransactionIDs = append(g.TransactionIDs, id)
}

// Start charges the entry fee, creates every level and activates the first.
// The game must already have an id, which is the ledger source id.
func (g *Game) Start(ctx context.Context, env Env, rate decimal.Decimal) error {
	if g.State != GamePending {
		return fmt.Errorf("game %d: cannot start from state %s", g.ID, g.State)
	}
	if g.ID == 0 {
		return errors.New("game must be persisted before start")
	}
	cfg := env.Config

	if cfg.GamePrice.IsPositive() {
		key := operationKey("game:%d:entry-fee", g.ID)
		if env.RequestKey != "" {
			key = operationKey("start:%d:%s", g.UserID, env.RequestKey)
		}
		txID, err := env.Ledger.Withdraw(ctx, ledger.Transaction{
			UserID:         g.UserID,
			Amount:         cfg.GamePrice,
			Currency:       ledger.CurrencyCoin,
			SourceType:     ledger.SourceGames,
			SourceID:       g.ID,
			IdempotencyKey: key,
		})
		if err != nil {
			return ledgerError(err, "entry fee", "Not enough coins to start a new game", cfg.GamePrice)
		}
		g.addTransaction(txID)
	}

	levels := make([]*Level, 0, cfg.TotalLevels())
	for i, rule := range cfg.Levels {
		levels = append(levels, GenerateLevel(i+1, rule, cfg.RevealPrice, rate, env.Rand, env.Now))
	}
	g.AttachLevels(levels)
	g.TotalLevels = len(levels)
	g.State = GameStarted
	if err := levels[0].Activate(env.Now); err != nil {
		return err
	}

	log.WithFields(log.Fields{"game_id": g.ID, "user_id": g.UserID, "levels": g.TotalLevels}).Info("game started")
	return nil
}

// Answer resolves the active level and settles the game when it ends.
func (g *Game) Answer(ctx context.Context, env Env, choice int) error {
	lvl := g.levelIn(LevelActive)
	if lvl == nil {
		return fmt.Errorf("%w: game %d has no active level", ErrActiveLevelNotFound, g.ID)
	}
	if err := lvl.Answer(choice, env.Now); err != nil {
		return err
	}
	switch lvl.State {
	case LevelLost:
		return g.settle(ctx, env, lvl.LeavePrize)
	case LevelWon:
		if err := g.settle(ctx, env, lvl.WinPrize); err != nil {
			return err
		}
		g.events = append(g.events, WonEvent{
			GameID:   g.ID,
			UserID:   g.UserID,
			Currency: g.Currency,
			Prize:    lvl.WinPrize,
			At:       env.Now,
		})
	}
	return nil
}

// RevealOne buys the elimination of one box on the active level.
func (g *Game) RevealOne(ctx context.Context, env Env) (int, error) {
	lvl := g.levelIn(LevelActive)
	if lvl == nil {
		return 0, fmt.Errorf("%w: game %d has no active level", ErrActiveLevelNotFound, g.ID)
	}
	return lvl.Reveal(ctx, env)
}

// Pass moves from the collectable level to the next one.
func (g *Game) Pass(env Env) error {
	lvl := g.levelIn(LevelCanCollect)
	if lvl == nil {
		return fmt.Errorf("%w: game %d has no passable level", ErrActiveLevelNotFound, g.ID)
	}
	_, err := lvl.Pass(env.Now)
	return err
}

// Collect banks the collectable level's win prize and ends the game.
func (g *Game) Collect(ctx context.Context, env Env) error {
	lvl := g.levelIn(LevelCanCollect)
	if lvl == nil {
		return fmt.Errorf("%w: game %d has no collectable level", ErrActiveLevelNotFound, g.ID)
	}
	amount, err := lvl.Collect(env.Now)
	if err != nil {
		return err
	}
	return g.settle(ctx, env, amount)
}

// ExpirationDue reports whether the play-time budget has run out.
func (g *Game) ExpirationDue(now time.Time, playTime time.Duration) bool {
	return now.Sub(g.UpdatedAt) > playTime
}

// ExpireIfDue forces expiration once the play-time budget is exceeded.
// guard persists the expired flag and runs before any payout attempt. The
// returned ErrGameExpired means the caller's operation must not be applied.
func (g *Game) ExpireIfDue(ctx context.Context, env Env, guard func(context.Context) error) error {
	if g.Expired {
		return ErrGameExpired
	}
	if !g.ExpirationDue(env.Now, env.Config.PlayTime) {
		return nil
	}
	g.Expired = true
	if guard != nil {
		if err := guard(ctx); err != nil {
			g.Expired = false
			return err
		}
	}

	lvl := g.CurrentLevel()
	if lvl == nil {
		return ErrGameExpired
	}
	if err := lvl.Expire(); err != nil {
		return err
	}
	amount := lvl.LeavePrize
	if lvl.ChosenBox != nil && *lvl.ChosenBox == lvl.WinnerBox {
		amount = lvl.WinPrize
	}
	log.WithFields(log.Fields{"game_id": g.ID, "level": lvl.Index, "amount": amount.String()}).Info("game expired")
	if err := g.settle(ctx, env, amount); err != nil {
		return err
	}
	return ErrGameExpired
}

// settle pays amount in the game currency and makes the game terminal. A
// zero amount makes no ledger call. Every game settles at most once, so the
// payout key is per game.
func (g *Game) settle(ctx context.Context, env Env, amount decimal.Decimal) error {
	if g.Terminal() {
		return fmt.Errorf("game %d is already settled", g.ID)
	}
	if !amount.IsZero() {
		txID, err := env.Ledger.Deposit(ctx, ledger.Transaction{
			UserID:         g.UserID,
			Amount:         amount,
			Currency:       g.Currency,
			SourceType:     ledger.SourceGames,
			SourceID:       g.ID,
			IdempotencyKey: operationKey("game:%d:payout", g.ID),
		})
		if err != nil {
			return &ServiceError{Op: "payout", Err: err}
		}
		g.addTransaction(txID)
	}
	g.PaidPrize = amount
	g.State = GameCollected
	g.Active = false
	log.WithFields(log.Fields{"game_id": g.ID, "user_id": g.UserID, "amount": amount.String()}).Info("game settled")
	return nil
}

func ledgerError(err error, op, message string, needed decimal.Decimal) error {
	var insufficient *ledger.InsufficientFundsError
	if errors.As(err, &insufficient) {
		return &InsufficientFundsError{Message: message, Current: insufficient.CurrentValue, Needed: needed}
	}
	return &ServiceError{Op: op, Err: err}
}
