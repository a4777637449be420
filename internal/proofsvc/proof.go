package proofsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/avvvet/pickbox-services/internal/comm"
	"github.com/avvvet/pickbox-services/internal/gamesvc/ledger"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// SocialProof is the public record of how much a user has won.
type SocialProof struct {
	UserID    int64
	PlayCount int
	WonAmount decimal.Decimal
	Currency  string
	UpdatedAt time.Time
}

type GameLister interface {
	CollectedGameIDs(ctx context.Context, userID int64) ([]int64, error)
}

type BalanceReader interface {
	SourcesBalances(ctx context.Context, sourceType string, ids []int64) (ledger.Balances, error)
}

type ProofStore interface {
	// Upsert refreshes the counters of an existing proof or inserts a
	// hidden one. The currency of an existing proof never changes.
	Upsert(ctx context.Context, p SocialProof) error
}

type Aggregator struct {
	games    GameLister
	balances BalanceReader
	proofs   ProofStore
	now      func() time.Time
}

func NewAggregator(games GameLister, balances BalanceReader, proofs ProofStore) *Aggregator {
	return &Aggregator{games: games, balances: balances, proofs: proofs, now: time.Now}
}

// GameWon recomputes the winner's totals over every finished game: the play
// count and the ledger balances of those games in the win currency.
func (a *Aggregator) GameWon(ctx context.Context, won comm.GameWon) error {
	ids, err := a.games.CollectedGameIDs(ctx, won.UserID)
	if err != nil {
		return fmt.Errorf("list games of user %d: %w", won.UserID, err)
	}

	total := decimal.Zero
	if len(ids) > 0 {
		balances, err := a.balances.SourcesBalances(ctx, ledger.SourceGames, ids)
		if err != nil {
			return fmt.Errorf("balances of user %d: %w", won.UserID, err)
		}
		for _, byCurrency := range balances {
			if amount, ok := byCurrency[won.Currency]; ok {
				total = total.Add(amount)
			}
		}
	}

	proof := SocialProof{
		UserID:    won.UserID,
		PlayCount: len(ids),
		WonAmount: total,
		Currency:  won.Currency,
		UpdatedAt: a.now().UTC(),
	}
	if err := a.proofs.Upsert(ctx, proof); err != nil {
		return fmt.Errorf("save social proof of user %d: %w", won.UserID, err)
	}
	log.WithFields(log.Fields{
		"user_id":    proof.UserID,
		"play_count": proof.PlayCount,
		"won_amount": proof.WonAmount.String(),
	}).Info("social proof updated")
	return nil
}
