package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/avvvet/pickbox-services/internal/gamesvc/config"
	"github.com/avvvet/pickbox-services/internal/gamesvc/engine"
	"github.com/avvvet/pickbox-services/internal/gamesvc/ledger"
	"github.com/avvvet/pickbox-services/internal/gamesvc/store"
	"github.com/shopspring/decimal"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// memStore serializes transactions with one mutex, which is what row locks
// on a single game amount to. Writes are staged and only land on commit.
type memStore struct {
	mu      sync.Mutex
	games   map[int64]*engine.Game
	nextID  int64
	levelID int64
	winners []store.WinnerTotals
	commits int
}

func newMemStore() *memStore {
	return &memStore{games: map[int64]*engine.Game{}}
}

func (m *memStore) InTx(_ context.Context, fn func(store.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{m: m, staged: map[int64]*engine.Game{}}
	if err := fn(tx); err != nil {
		return err
	}
	for id, g := range tx.staged {
		m.games[id] = cloneGame(g)
	}
	m.commits++
	return nil
}

func (m *memStore) GetGame(_ context.Context, gameID, userID int64) (*engine.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok || g.UserID != userID {
		return nil, engine.ErrGameNotFound
	}
	return cloneGame(g), nil
}

func (m *memStore) GameByRequestKey(_ context.Context, userID int64, key string) (*engine.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.games {
		if g.UserID == userID && g.RequestKey == key {
			return cloneGame(g), nil
		}
	}
	return nil, engine.ErrGameNotFound
}

func (m *memStore) FinishedGames(_ context.Context, userID int64, limit, offset int) ([]*engine.Game, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*engine.Game
	for _, g := range m.games {
		if g.UserID == userID && !g.Active {
			all = append(all, cloneGame(g))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *memStore) WinnersByCurrency(context.Context) ([]store.WinnerTotals, error) {
	return m.winners, nil
}

func (m *memStore) committed(id int64) *engine.Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.games[id]; ok {
		return cloneGame(g)
	}
	return nil
}

type memTx struct {
	m      *memStore
	staged map[int64]*engine.Game
}

func (t *memTx) current(id int64) (*engine.Game, bool) {
	if g, ok := t.staged[id]; ok {
		return g, true
	}
	g, ok := t.m.games[id]
	return g, ok
}

func (t *memTx) CreateGame(_ context.Context, g *engine.Game) error {
	if g.RequestKey != "" {
		for _, games := range []map[int64]*engine.Game{t.m.games, t.staged} {
			for _, other := range games {
				if other.UserID == g.UserID && other.RequestKey == g.RequestKey {
					return store.ErrDuplicateRequest
				}
			}
		}
	}
	t.m.nextID++
	g.ID = t.m.nextID
	t.staged[g.ID] = cloneGame(g)
	return nil
}

func (t *memTx) LockGame(_ context.Context, gameID, userID int64) (*engine.Game, error) {
	g, ok := t.current(gameID)
	if !ok || g.UserID != userID {
		return nil, engine.ErrGameNotFound
	}
	return cloneGame(g), nil
}

func (t *memTx) MarkExpired(_ context.Context, gameID int64) error {
	g, ok := t.current(gameID)
	if !ok {
		return engine.ErrGameNotFound
	}
	if g.Expired {
		return fmt.Errorf("game %d was already expired", gameID)
	}
	cp := cloneGame(g)
	cp.Expired = true
	t.staged[gameID] = cp
	return nil
}

func (t *memTx) SaveGame(_ context.Context, g *engine.Game) error {
	for _, l := range g.Levels {
		if l.ID == 0 {
			t.m.levelID++
			l.ID = t.m.levelID
		}
	}
	t.staged[g.ID] = cloneGame(g)
	return nil
}

func cloneGame(g *engine.Game) *engine.Game {
	cp := *g
	cp.DrainEvents()
	cp.TransactionIDs = append([]string(nil), g.TransactionIDs...)
	levels := make([]*engine.Level, 0, len(g.Levels))
	for _, l := range g.Levels {
		lc := *l
		lc.Revealable = append([]int(nil), l.Revealable...)
		lc.TransactionIDs = append([]string(nil), l.TransactionIDs...)
		if l.ChosenBox != nil {
			v := *l.ChosenBox
			lc.ChosenBox = &v
		}
		levels = append(levels, &lc)
	}
	cp.AttachLevels(levels)
	return &cp
}

type fakeLedger struct {
	mu          sync.Mutex
	withdrawals []ledger.Transaction
	deposits    []ledger.Transaction
	withdrawErr error
	depositErr  error

	balances    ledger.Balances
	balancesErr error
	stats       ledger.DepositStatistics
	statsErr    error
	balanceIDs  []int64
}

func (f *fakeLedger) Withdraw(_ context.Context, tx ledger.Transaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.withdrawErr != nil {
		return "", f.withdrawErr
	}
	f.withdrawals = append(f.withdrawals, tx)
	return fmt.Sprintf("w-%d", len(f.withdrawals)), nil
}

func (f *fakeLedger) Deposit(_ context.Context, tx ledger.Transaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.depositErr != nil {
		return "", f.depositErr
	}
	f.deposits = append(f.deposits, tx)
	return fmt.Sprintf("d-%d", len(f.deposits)), nil
}

func (f *fakeLedger) depositCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deposits)
}

func (f *fakeLedger) SourcesBalances(_ context.Context, _ string, ids []int64) (ledger.Balances, error) {
	f.balanceIDs = ids
	return f.balances, f.balancesErr
}

func (f *fakeLedger) DepositStatistics(context.Context, string, string) (ledger.DepositStatistics, error) {
	return f.stats, f.statsErr
}

type mapRates map[string]decimal.Decimal

func (m mapRates) Rate(_ context.Context, base, target string) (decimal.Decimal, error) {
	if base == target {
		return decimal.NewFromInt(1), nil
	}
	r, ok := m[base+"->"+target]
	if !ok {
		return decimal.Zero, errors.New("unknown currency")
	}
	return r, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []engine.WonEvent
	err    error
}

func (n *recordingNotifier) GameWon(_ context.Context, ev engine.WonEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

// firstBox makes box 1 the winner on every level.
type firstBox struct{}

func (firstBox) Intn(int) int { return 0 }

type rulesSource map[string]string

func (r rulesSource) GameConfigs(context.Context) (map[string]string, error) {
	return r, nil
}

// testRules has two levels of three boxes, priced in EUR.
func testRules() rulesSource {
	return rulesSource{
		config.KeyGamePrice:      "5",
		config.KeyRevealPrice:    "2",
		config.KeyRevealMinBoxes: "3",
		config.KeySecondsToPlay:  "300",
		config.KeyPrizeCurrency:  "EUR",
		config.KeyTotalLevels:    "2",
		config.BoxCountKey(1):    "3",
		config.WinPrizeKey(1):    "100",
		config.LeavePrizeKey(1):  "10",
		config.BoxCountKey(2):    "3",
		config.WinPrizeKey(2):    "200",
		config.LeavePrizeKey(2):  "20",
	}
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc    *GameService
	store  *memStore
	ledger *fakeLedger
	notify *recordingNotifier
	clock  *clock
}

func newFixture() *fixture {
	f := &fixture{
		store:  newMemStore(),
		ledger: &fakeLedger{},
		notify: &recordingNotifier{},
		clock:  &clock{t: t0},
	}
	rates := mapRates{"EUR->USD": decimal.NewFromInt(2), "USD->EUR": decimal.RequireFromString("0.5")}
	f.svc = NewGameService(f.store, NewConfigCache(testRules(), time.Minute), f.ledger, f.ledger, rates, f.notify)
	f.svc.rand = firstBox{}
	f.svc.now = f.clock.Now
	return f
}

var player = Caller{UserID: 7, Currency: "EUR"}
