package engine

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EndReasonWon  = "won"
	EndReasonLost = "lost"
)

// Flow is the externally visible projection of a game.
type Flow struct {
	ID              int64           `json:"id"`
	State           GameState       `json:"state"`
	UserID          int64           `json:"user_id"`
	TotalLevels     int             `json:"total_levels"`
	CurrentLevel    int             `json:"current_level"`
	Currency        string          `json:"currency"`
	Revealed        *int            `json:"revealed"`
	PaidPrize       decimal.Decimal `json:"paid_prize"`
	HasEnded        bool            `json:"has_ended"`
	EndReason       string          `json:"end_reason"`
	Level           *LevelFlow      `json:"level"`
	IsExpired       bool            `json:"is_expired"`
	ExpiresAt       int64           `json:"expires_at"`
	SecondsToExpire int64           `json:"seconds_to_expire"`
}

// LevelFlow is the player-facing projection of the current level.
type LevelFlow struct {
	Index             int              `json:"index"`
	PossibleAnswers   []int            `json:"possible_answers"`
	AllowReveal       bool             `json:"allow_reveal"`
	RevealPrice       decimal.Decimal  `json:"reveal_price"`
	RevealedBoxes     []int            `json:"revealed_boxes"`
	WinPrize          decimal.Decimal  `json:"win_prize"`
	State             LevelState       `json:"state"`
	Playable          bool             `json:"playable"`
	Payable           bool             `json:"payable"`
	NextLevelWinPrize *decimal.Decimal `json:"next_level_win_prize"`
}

// View assembles the game flow at now. revealed carries the box eliminated by
// the operation that produced this view, if any.
func (g *Game) View(cfg Config, now time.Time, revealed *int) Flow {
	f := Flow{
		ID:           g.ID,
		State:        g.State,
		UserID:       g.UserID,
		TotalLevels:  g.TotalLevels,
		CurrentLevel: g.CurrentLevelIndex,
		Currency:     g.Currency,
		Revealed:     revealed,
		PaidPrize:    g.PaidPrize,
		HasEnded:     g.Terminal(),
	}
	if f.HasEnded {
		f.EndReason = g.endReason()
	}
	if lvl := g.CurrentLevel(); lvl != nil {
		lf := lvl.view(cfg)
		f.Level = &lf
	}

	deadline := g.UpdatedAt.Add(cfg.PlayTime)
	f.ExpiresAt = deadline.Unix()
	left := int64(math.Floor(deadline.Sub(now).Seconds()))
	f.IsExpired = g.Expired || now.Sub(g.UpdatedAt) > cfg.PlayTime
	if !f.IsExpired && left > 0 {
		f.SecondsToExpire = left
	}
	return f
}

// endReason derives the outcome from the highest resolved level.
func (g *Game) endReason() string {
	var last *Level
	for _, l := range g.Levels {
		if !l.State.Resolved() || l.State == LevelPassed {
			continue
		}
		if last == nil || l.Index > last.Index {
			last = l
		}
	}
	if last == nil {
		return ""
	}
	if last.State == LevelLost {
		return EndReasonLost
	}
	return EndReasonWon
}

func (l *Level) view(cfg Config) LevelFlow {
	lf := LevelFlow{
		Index:           l.Index,
		PossibleAnswers: l.PossibleAnswers(),
		AllowReveal:     l.CanReveal(cfg.RevealMinBoxes),
		RevealPrice:     l.RevealPrice,
		RevealedBoxes:   l.RevealedBoxes(),
		WinPrize:        l.WinPrize,
		State:           l.State,
		Playable:        l.State == LevelActive,
		Payable:         l.State == LevelCanCollect,
	}
	if next := l.Next(); next != nil {
		p := next.WinPrize
		lf.NextLevelWinPrize = &p
	}
	return lf
}
