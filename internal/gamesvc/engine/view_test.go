package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewRevealThresholdScenario(t *testing.T) {
	cfg := testConfig(2, 3, 4)
	cfg.Levels[2].Boxes = 4
	l := &fakeLedger{}
	g := startedGame(t, cfg, l)
	env := testEnv(cfg, l, CryptoRand{})

	flow := g.View(cfg, t0, nil)
	require.NotNil(t, flow.Level)
	assert.Equal(t, 1, flow.Level.Index)
	assert.False(t, flow.Level.AllowReveal)
	assert.True(t, flow.Level.Playable)
	assert.False(t, flow.Level.Payable)
	assert.Equal(t, []int{1, 2}, flow.Level.PossibleAnswers)
	assert.Empty(t, flow.Level.RevealedBoxes)
	require.NotNil(t, flow.Level.NextLevelWinPrize)
	assert.True(t, g.LevelAt(2).WinPrize.Equal(*flow.Level.NextLevelWinPrize))

	require.NoError(t, g.Answer(context.Background(), env, 1))
	flow = g.View(cfg, t0, nil)
	assert.False(t, flow.Level.Playable)
	assert.True(t, flow.Level.Payable)
	assert.False(t, flow.Level.AllowReveal)

	require.NoError(t, g.Pass(env))
	flow = g.View(cfg, t0, nil)
	assert.Equal(t, 2, flow.CurrentLevel)
	assert.True(t, flow.Level.AllowReveal)

	require.NoError(t, g.Answer(context.Background(), env, 1))
	require.NoError(t, g.Pass(env))
	flow = g.View(cfg, t0, nil)
	assert.Equal(t, 3, flow.Level.Index)
	assert.False(t, flow.Level.AllowReveal, "last level is never revealable")
	assert.Nil(t, flow.Level.NextLevelWinPrize)
}

func TestViewAfterReveal(t *testing.T) {
	cfg := testConfig(5, 3)
	l := &fakeLedger{}
	g := startedGame(t, cfg, l)

	box, err := g.RevealOne(context.Background(), testEnv(cfg, l, &seqRand{vals: []int{1}}))
	require.NoError(t, err)
	assert.Equal(t, 3, box)

	flow := g.View(cfg, t0, &box)
	require.NotNil(t, flow.Revealed)
	assert.Equal(t, 3, *flow.Revealed)
	assert.Equal(t, []int{3}, flow.Level.RevealedBoxes)
	assert.Equal(t, []int{1, 2, 4, 5}, flow.Level.PossibleAnswers)
}

func TestViewExpiryFields(t *testing.T) {
	cfg := testConfig(3, 3)
	g := startedGame(t, cfg, &fakeLedger{})

	flow := g.View(cfg, t0.Add(90*time.Second), nil)
	assert.False(t, flow.IsExpired)
	assert.Equal(t, t0.Add(cfg.PlayTime).Unix(), flow.ExpiresAt)
	assert.Equal(t, int64(210), flow.SecondsToExpire)

	flow = g.View(cfg, t0.Add(cfg.PlayTime+time.Second), nil)
	assert.True(t, flow.IsExpired)
	assert.Zero(t, flow.SecondsToExpire)

	g.Expired = true
	flow = g.View(cfg, t0, nil)
	assert.True(t, flow.IsExpired)
	assert.Zero(t, flow.SecondsToExpire)
}

func TestViewJSONShape(t *testing.T) {
	cfg := testConfig(3, 3)
	g := startedGame(t, cfg, &fakeLedger{})

	raw, err := json.Marshal(g.View(cfg, t0, nil))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	for _, k := range []string{"id", "state", "user_id", "total_levels", "current_level", "currency",
		"revealed", "paid_prize", "has_ended", "end_reason", "level", "is_expired", "expires_at", "seconds_to_expire"} {
		assert.Contains(t, m, k)
	}
	lvl, ok := m["level"].(map[string]any)
	require.True(t, ok)
	for _, k := range []string{"index", "possible_answers", "allow_reveal", "reveal_price", "revealed_boxes",
		"win_prize", "state", "playable", "payable", "next_level_win_prize"} {
		assert.Contains(t, lvl, k)
	}
	assert.Equal(t, "started", m["state"])
	assert.Equal(t, "", m["end_reason"])
	assert.Equal(t, decimal.Zero.String(), m["paid_prize"])
}
