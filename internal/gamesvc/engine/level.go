package engine

import (
	"context"
	"time"

	"github.com/avvvet/pickbox-services/internal/gamesvc/ledger"
	"github.com/shopspring/decimal"
)

// Level is one stage of a game with a hidden winner box.
type Level struct {
	ID             int64
	GameID         int64
	Index          int
	BoxCount       int
	WinnerBox      int
	ChosenBox      *int
	Revealable     []int
	RevealPrice    decimal.Decimal
	WinPrize       decimal.Decimal
	LeavePrize     decimal.Decimal
	LastMoveTime   time.Time
	State          LevelState
	TransactionIDs []string

	game *Game
}

// GenerateLevel builds an inactive level with a uniformly drawn winner box.
// Prizes are converted with rate and rounded to whole currency units.
func GenerateLevel(index int, rule LevelRule, revealPrice, rate decimal.Decimal, rnd Randomizer, now time.Time) *Level {
	winner := 1 + rnd.Intn(rule.Boxes)
	revealable := make([]int, 0, rule.Boxes-1)
	for box := 1; box <= rule.Boxes; box++ {
		if box != winner {
			revealable = append(revealable, box)
		}
	}
	return &Level{
		Index:        index,
		BoxCount:     rule.Boxes,
		WinnerBox:    winner,
		Revealable:   revealable,
		RevealPrice:  revealPrice,
		WinPrize:     scalePrize(rule.WinPrize, rate),
		LeavePrize:   scalePrize(rule.LeavePrize, rate),
		LastMoveTime: now,
		State:        LevelInactive,
	}
}

func scalePrize(p, rate decimal.Decimal) decimal.Decimal {
	return p.Mul(rate).Round(0)
}

func (l *Level) Game() *Game {
	return l.game
}

// Next returns the level with the following index, or nil on the last level.
func (l *Level) Next() *Level {
	if l.game == nil {
		return nil
	}
	return l.game.LevelAt(l.Index + 1)
}

func (l *Level) IsLast() bool {
	if l.game != nil {
		return l.Index >= l.game.TotalLevels
	}
	return l.Next() == nil
}

func (l *Level) transition(ev levelEvent) error {
	st, err := l.State.next(ev)
	if err != nil {
		return err
	}
	l.State = st
	return nil
}

// Activate makes the level the game's current level.
func (l *Level) Activate(now time.Time) error {
	if err := l.transition(evActivate); err != nil {
		return err
	}
	l.LastMoveTime = now
	if l.game != nil {
		l.game.CurrentLevelIndex = l.Index
		l.game.touch(now)
	}
	return nil
}

// CanReveal reports whether a box may be bought off this level. The +1
// counts the winner box, which is never revealable but occupies a slot.
func (l *Level) CanReveal(minBoxes int) bool {
	return l.State == LevelActive && !l.IsLast() && len(l.Revealable) > 0 &&
		len(l.Revealable)+1 >= minBoxes
}

// Reveal charges the reveal price and eliminates one random non-winner box.
func (l *Level) Reveal(ctx context.Context, env Env) (int, error) {
	if _, err := l.State.next(evReveal); err != nil {
		return 0, err
	}
	if !l.CanReveal(env.Config.RevealMinBoxes) {
		return 0, &LevelNotRevealableError{
			Remaining: len(l.Revealable) + 1,
			Limit:     env.Config.RevealMinBoxes,
			LastLevel: l.IsLast(),
		}
	}
	g := l.game
	if l.RevealPrice.IsPositive() {
		txID, err := env.Ledger.Withdraw(ctx, ledger.Transaction{
			UserID:         g.UserID,
			Amount:         l.RevealPrice,
			Currency:       ledger.CurrencyCoin,
			SourceType:     ledger.SourceGames,
			SourceID:       g.ID,
			IdempotencyKey: operationKey("game:%d:level:%d:reveal:%d", g.ID, l.Index, len(l.TransactionIDs)),
		})
		if err != nil {
			return 0, ledgerError(err, "reveal", "Not enough coins to reveal a box", l.RevealPrice)
		}
		l.TransactionIDs = append(l.TransactionIDs, txID)
		g.addTransaction(txID)
	}

	i := env.Rand.Intn(len(l.Revealable))
	box := l.Revealable[i]
	l.Revealable = append(l.Revealable[:i:i], l.Revealable[i+1:]...)
	l.LastMoveTime = env.Now
	g.touch(env.Now)
	return box, nil
}

// Answer records the player's choice and resolves the level.
func (l *Level) Answer(choice int, now time.Time) error {
	if choice < 1 || choice > l.BoxCount {
		if _, err := l.State.next(evAnswerWrong); err != nil {
			return err
		}
		return ErrInvalidChoice
	}
	ev := evAnswerWrong
	if choice == l.WinnerBox {
		ev = evAnswerRight
		if l.Next() == nil {
			ev = evAnswerRightLast
		}
	}
	if err := l.transition(ev); err != nil {
		return err
	}
	l.ChosenBox = &choice
	l.LastMoveTime = now
	if l.game != nil {
		l.game.touch(now)
	}
	return nil
}

// Expire forces a current level to lost without touching the ledger.
func (l *Level) Expire() error {
	return l.transition(evExpire)
}

// Pass leaves a collectable level for the next one and returns it activated.
func (l *Level) Pass(now time.Time) (*Level, error) {
	if err := l.transition(evPass); err != nil {
		return nil, err
	}
	l.LastMoveTime = now
	if l.game != nil {
		l.game.touch(now)
	}
	next := l.Next()
	if next != nil {
		if err := next.Activate(now); err != nil {
			return nil, err
		}
	}
	return next, nil
}

// Collect banks the level and returns the amount to pay out.
func (l *Level) Collect(now time.Time) (decimal.Decimal, error) {
	if err := l.transition(evCollect); err != nil {
		return decimal.Zero, err
	}
	l.LastMoveTime = now
	if l.game != nil {
		l.game.touch(now)
	}
	return l.WinPrize, nil
}

// RevealedBoxes lists the boxes that are neither the winner nor still revealable.
func (l *Level) RevealedBoxes() []int {
	left := make(map[int]bool, len(l.Revealable))
	for _, b := range l.Revealable {
		left[b] = true
	}
	revealed := []int{}
	for box := 1; box <= l.BoxCount; box++ {
		if box != l.WinnerBox && !left[box] {
			revealed = append(revealed, box)
		}
	}
	return revealed
}

// PossibleAnswers lists the boxes not yet eliminated.
func (l *Level) PossibleAnswers() []int {
	answers := []int{}
	revealed := make(map[int]bool)
	for _, b := range l.RevealedBoxes() {
		revealed[b] = true
	}
	for box := 1; box <= l.BoxCount; box++ {
		if !revealed[box] {
			answers = append(answers, box)
		}
	}
	return answers
}
