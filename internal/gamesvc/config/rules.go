package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/avvvet/pickbox-services/internal/gamesvc/engine"
	"github.com/shopspring/decimal"
)

// Keys of the game_configs table.
const (
	KeyGamePrice      = "game_price"
	KeyRevealPrice    = "reveal_price"
	KeyRevealMinBoxes = "reveal_min_boxes"
	KeySecondsToPlay  = "seconds_to_play"
	KeyPrizeCurrency  = "prize_currency"
	KeyTotalLevels    = "total_levels"
)

func BoxCountKey(level int) string   { return fmt.Sprintf("box_count.level_%d", level) }
func WinPrizeKey(level int) string   { return fmt.Sprintf("win_prize.level_%d", level) }
func LeavePrizeKey(level int) string { return fmt.Sprintf("leave_prize.level_%d", level) }

// ParseRules turns the raw game_configs rows into validated game rules.
func ParseRules(kv map[string]string) (engine.Config, error) {
	p := parser{kv: kv}
	cfg := engine.Config{
		GamePrice:      p.amount(KeyGamePrice),
		RevealPrice:    p.amount(KeyRevealPrice),
		RevealMinBoxes: p.integer(KeyRevealMinBoxes),
		PlayTime:       time.Duration(p.integer(KeySecondsToPlay)) * time.Second,
		PrizeCurrency:  p.str(KeyPrizeCurrency),
	}
	total := p.integer(KeyTotalLevels)
	for i := 1; i <= total && p.err == nil; i++ {
		cfg.Levels = append(cfg.Levels, engine.LevelRule{
			Boxes:      p.integer(BoxCountKey(i)),
			WinPrize:   p.amount(WinPrizeKey(i)),
			LeavePrize: p.amount(LeavePrizeKey(i)),
		})
	}
	if p.err != nil {
		return engine.Config{}, p.err
	}
	if err := cfg.Validate(); err != nil {
		return engine.Config{}, err
	}
	return cfg, nil
}

// parser keeps the first error so ParseRules reads top to bottom.
type parser struct {
	kv  map[string]string
	err error
}

func (p *parser) str(key string) string {
	if p.err != nil {
		return ""
	}
	v, ok := p.kv[key]
	if !ok {
		p.err = fmt.Errorf("config: missing key %q", key)
	}
	return v
}

func (p *parser) integer(key string) int {
	v := p.str(key)
	if p.err != nil {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.err = fmt.Errorf("config: %s: %w", key, err)
	}
	return n
}

func (p *parser) amount(key string) decimal.Decimal {
	v := p.str(key)
	if p.err != nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		p.err = fmt.Errorf("config: %s: %w", key, err)
	}
	return d
}
