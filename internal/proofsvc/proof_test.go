package proofsvc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avvvet/pickbox-services/internal/comm"
	"github.com/avvvet/pickbox-services/internal/gamesvc/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type gameList map[int64][]int64

func (g gameList) CollectedGameIDs(_ context.Context, userID int64) ([]int64, error) {
	return g[userID], nil
}

type balanceStub struct {
	balances ledger.Balances
	err      error
	calls    int
}

func (b *balanceStub) SourcesBalances(context.Context, string, []int64) (ledger.Balances, error) {
	b.calls++
	return b.balances, b.err
}

type memProofs struct {
	saved []SocialProof
}

func (m *memProofs) Upsert(_ context.Context, p SocialProof) error {
	m.saved = append(m.saved, p)
	return nil
}

var wonAt = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

func TestGameWonSumsBalancesInWinCurrency(t *testing.T) {
	balances := &balanceStub{balances: ledger.Balances{
		1: {"EUR": decimal.NewFromInt(300), "COIN": decimal.NewFromInt(-5)},
		2: {"EUR": decimal.NewFromInt(10)},
		3: {"USD": decimal.NewFromInt(99)},
	}}
	proofs := &memProofs{}
	agg := NewAggregator(gameList{7: {1, 2, 3}}, balances, proofs)
	agg.now = func() time.Time { return wonAt }

	require.NoError(t, agg.GameWon(context.Background(), comm.GameWon{GameID: 2, UserID: 7, Currency: "EUR"}))
	require.Len(t, proofs.saved, 1)
	p := proofs.saved[0]
	assert.Equal(t, int64(7), p.UserID)
	assert.Equal(t, 3, p.PlayCount)
	assert.True(t, decimal.NewFromInt(310).Equal(p.WonAmount), p.WonAmount.String())
	assert.Equal(t, "EUR", p.Currency)
	assert.Equal(t, wonAt, p.UpdatedAt)
}

func TestGameWonWithoutFinishedGamesSkipsLedger(t *testing.T) {
	balances := &balanceStub{}
	proofs := &memProofs{}
	agg := NewAggregator(gameList{}, balances, proofs)

	require.NoError(t, agg.GameWon(context.Background(), comm.GameWon{UserID: 9, Currency: "EUR"}))
	assert.Zero(t, balances.calls)
	require.Len(t, proofs.saved, 1)
	assert.Zero(t, proofs.saved[0].PlayCount)
	assert.True(t, proofs.saved[0].WonAmount.IsZero())
}

func TestGameWonLedgerFailureSavesNothing(t *testing.T) {
	proofs := &memProofs{}
	agg := NewAggregator(gameList{7: {1}}, &balanceStub{err: errors.New("503")}, proofs)

	assert.Error(t, agg.GameWon(context.Background(), comm.GameWon{UserID: 7, Currency: "EUR"}))
	assert.Empty(t, proofs.saved)
}

type winRecorder struct {
	got []comm.GameWon
}

func (w *winRecorder) GameWon(_ context.Context, won comm.GameWon) error {
	w.got = append(w.got, won)
	return nil
}

func TestHandleMessage(t *testing.T) {
	rec := &winRecorder{}
	payload, err := comm.Wrap(comm.TypeGameWon, "inst", comm.GameWon{GameID: 4, UserID: 7, Currency: "EUR"})
	require.NoError(t, err)

	handleMessage(context.Background(), payload, rec)
	require.Len(t, rec.got, 1)
	assert.Equal(t, int64(4), rec.got[0].GameID)

	other, err := comm.Wrap("something-else", "inst", struct{}{})
	require.NoError(t, err)
	handleMessage(context.Background(), other, rec)
	handleMessage(context.Background(), []byte("{broken"), rec)
	assert.Len(t, rec.got, 1)
}

func TestUpsertDocKeepsInsertOnlyFields(t *testing.T) {
	filter, update, err := upsertDoc(SocialProof{
		UserID: 7, PlayCount: 3, WonAmount: decimal.RequireFromString("310.50"), Currency: "EUR", UpdatedAt: wonAt,
	})
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "user_id", Value: int64(7)}}, filter)

	set := update.Map()["$set"].(bson.D).Map()
	assert.Equal(t, 3, set["play_count"])
	amount := set["won_amount"].(primitive.Decimal128)
	assert.Equal(t, "310.50", amount.String())

	onInsert := update.Map()["$setOnInsert"].(bson.D).Map()
	assert.Equal(t, "EUR", onInsert["currency"])
	assert.Equal(t, false, onInsert["visible"])
	assert.NotContains(t, set, "currency")
}

func TestUpsertDocStoresTwoDecimalPlaces(t *testing.T) {
	for in, want := range map[string]string{"200": "200.00", "12.5": "12.50", "0.125": "0.13"} {
		_, update, err := upsertDoc(SocialProof{UserID: 1, WonAmount: decimal.RequireFromString(in)})
		require.NoError(t, err)
		amount := update.Map()["$set"].(bson.D).Map()["won_amount"].(primitive.Decimal128)
		assert.Equal(t, want, amount.String(), in)
	}
}
