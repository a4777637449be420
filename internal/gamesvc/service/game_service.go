package service

import (
	"context"
	"errors"
	"time"

	"github.com/avvvet/pickbox-services/internal/gamesvc/engine"
	"github.com/avvvet/pickbox-services/internal/gamesvc/ledger"
	"github.com/avvvet/pickbox-services/internal/gamesvc/metrics"
	"github.com/avvvet/pickbox-services/internal/gamesvc/store"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type GameStore interface {
	InTx(ctx context.Context, fn func(store.Tx) error) error
	GetGame(ctx context.Context, gameID, userID int64) (*engine.Game, error)
	GameByRequestKey(ctx context.Context, userID int64, key string) (*engine.Game, error)
	FinishedGames(ctx context.Context, userID int64, limit, offset int) ([]*engine.Game, int, error)
	WinnersByCurrency(ctx context.Context) ([]store.WinnerTotals, error)
}

type RateProvider interface {
	Rate(ctx context.Context, base, target string) (decimal.Decimal, error)
}

type LedgerReports interface {
	SourcesBalances(ctx context.Context, sourceType string, ids []int64) (ledger.Balances, error)
	DepositStatistics(ctx context.Context, sourceType, kind string) (ledger.DepositStatistics, error)
}

type Notifier interface {
	GameWon(ctx context.Context, ev engine.WonEvent) error
}

// Caller identifies who is playing and in which currency.
type Caller struct {
	UserID   int64
	Currency string
	// RequestKey is the client supplied idempotency key, if any.
	RequestKey string
}

// GameService runs every game operation as one locked transaction.
type GameService struct {
	store   GameStore
	configs *ConfigCache
	ledger  engine.Ledger
	reports LedgerReports
	rates   RateProvider
	notify  Notifier

	rand engine.Randomizer
	now  func() time.Time
}

func NewGameService(gameStore GameStore, configs *ConfigCache, l engine.Ledger,
	reports LedgerReports, rates RateProvider, notify Notifier) *GameService {
	return &GameService{
		store:   gameStore,
		configs: configs,
		ledger:  l,
		reports: reports,
		rates:   rates,
		notify:  notify,
		rand:    engine.CryptoRand{},
		now:     time.Now,
	}
}

func (s *GameService) env(cfg engine.Config, c Caller) engine.Env {
	return engine.Env{
		Config:     cfg,
		Ledger:     s.ledger,
		Rand:       s.rand,
		Now:        s.now().UTC(),
		RequestKey: c.RequestKey,
	}
}

// StartGame charges the entry fee and creates a game with all its levels.
// A repeated request key returns the game that key already started.
func (s *GameService) StartGame(ctx context.Context, c Caller) (flow engine.Flow, err error) {
	defer func() { metrics.GameOperations.WithLabelValues("start", metrics.Outcome(err)).Inc() }()

	cfg, err := s.configs.Get(ctx)
	if err != nil {
		return engine.Flow{}, err
	}
	if c.RequestKey != "" {
		flow, err := s.replayedStart(ctx, cfg, c)
		if !errors.Is(err, engine.ErrGameNotFound) {
			return flow, err
		}
	}
	rate, err := s.rates.Rate(ctx, cfg.PrizeCurrency, c.Currency)
	if err != nil {
		return engine.Flow{}, &engine.ServiceError{Op: "exchange rate", Err: err}
	}
	env := s.env(cfg, c)

	err = s.store.InTx(ctx, func(tx store.Tx) error {
		g := engine.NewGame(c.UserID, c.Currency, cfg.TotalLevels(), env.Now)
		g.RequestKey = c.RequestKey
		if err := tx.CreateGame(ctx, g); err != nil {
			return err
		}
		if err := g.Start(ctx, env, rate); err != nil {
			return err
		}
		if err := tx.SaveGame(ctx, g); err != nil {
			return err
		}
		flow = g.View(cfg, env.Now, nil)
		return nil
	})
	if errors.Is(err, store.ErrDuplicateRequest) {
		// a concurrent request with the same key won the insert
		return s.replayedStart(ctx, cfg, c)
	}
	if err != nil {
		return engine.Flow{}, err
	}
	return flow, nil
}

func (s *GameService) replayedStart(ctx context.Context, cfg engine.Config, c Caller) (engine.Flow, error) {
	g, err := s.store.GameByRequestKey(ctx, c.UserID, c.RequestKey)
	if err != nil {
		return engine.Flow{}, err
	}
	log.WithFields(log.Fields{"game_id": g.ID, "user_id": c.UserID}).Info("start replayed")
	return g.View(cfg, s.now().UTC(), nil), nil
}

func (s *GameService) Answer(ctx context.Context, c Caller, gameID int64, choice int) (engine.Flow, error) {
	return s.mutate(ctx, c, gameID, "answer", func(ctx context.Context, g *engine.Game, env engine.Env) (*int, error) {
		return nil, g.Answer(ctx, env, choice)
	})
}

func (s *GameService) Reveal(ctx context.Context, c Caller, gameID int64) (engine.Flow, error) {
	return s.mutate(ctx, c, gameID, "reveal", func(ctx context.Context, g *engine.Game, env engine.Env) (*int, error) {
		box, err := g.RevealOne(ctx, env)
		if err != nil {
			return nil, err
		}
		return &box, nil
	})
}

func (s *GameService) Pass(ctx context.Context, c Caller, gameID int64) (engine.Flow, error) {
	return s.mutate(ctx, c, gameID, "pass", func(_ context.Context, g *engine.Game, env engine.Env) (*int, error) {
		return nil, g.Pass(env)
	})
}

func (s *GameService) Collect(ctx context.Context, c Caller, gameID int64) (engine.Flow, error) {
	return s.mutate(ctx, c, gameID, "collect", func(ctx context.Context, g *engine.Game, env engine.Env) (*int, error) {
		return nil, g.Collect(ctx, env)
	})
}

// GetGame returns the game flow after settling a due expiration.
func (s *GameService) GetGame(ctx context.Context, c Caller, gameID int64) (engine.Flow, error) {
	return s.mutate(ctx, c, gameID, "get", nil)
}

type operation func(ctx context.Context, g *engine.Game, env engine.Env) (*int, error)

// mutate locks the game, settles a due expiration and otherwise applies op.
// An expired game is never mutated further: the caller gets its view instead.
func (s *GameService) mutate(ctx context.Context, c Caller, gameID int64, name string, op operation) (flow engine.Flow, err error) {
	outcome := "ok"
	defer func() {
		if err != nil {
			outcome = metrics.Outcome(err)
		}
		metrics.GameOperations.WithLabelValues(name, outcome).Inc()
	}()

	cfg, err := s.configs.Get(ctx)
	if err != nil {
		return engine.Flow{}, err
	}
	env := s.env(cfg, c)

	var events []engine.WonEvent
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		g, err := tx.LockGame(ctx, gameID, c.UserID)
		if err != nil {
			return err
		}

		alreadyExpired := g.Expired
		err = g.ExpireIfDue(ctx, env, func(ctx context.Context) error {
			return tx.MarkExpired(ctx, g.ID)
		})
		switch {
		case errors.Is(err, engine.ErrGameExpired):
			outcome = "expired"
			if !alreadyExpired {
				if err := tx.SaveGame(ctx, g); err != nil {
					return err
				}
			}
			flow = g.View(cfg, env.Now, nil)
			return nil
		case err != nil:
			return err
		}

		if op == nil {
			flow = g.View(cfg, env.Now, nil)
			return nil
		}
		revealed, err := op(ctx, g, env)
		if err != nil {
			return err
		}
		if err := tx.SaveGame(ctx, g); err != nil {
			return err
		}
		flow = g.View(cfg, env.Now, revealed)
		events = g.DrainEvents()
		return nil
	})
	if err != nil {
		return engine.Flow{}, err
	}

	s.publish(ctx, events)
	return flow, nil
}

// publish runs after commit so consumers never see a rolled back win.
func (s *GameService) publish(ctx context.Context, events []engine.WonEvent) {
	if s.notify == nil {
		return
	}
	for _, ev := range events {
		if err := s.notify.GameWon(ctx, ev); err != nil {
			log.WithFields(log.Fields{"game_id": ev.GameID, "user_id": ev.UserID}).
				Errorf("failed to publish game won: %v", err)
		}
	}
}
