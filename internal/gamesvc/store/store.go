package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/pickbox-services/internal/gamesvc/engine"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateRequest means the user already started a game with the same
// request key.
var ErrDuplicateRequest = errors.New("game already started for this request")

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Tx is the write side of one game operation. Every method runs inside the
// same database transaction.
type Tx interface {
	CreateGame(ctx context.Context, g *engine.Game) error
	// LockGame loads the game with its levels, holding row locks on all of
	// them until the transaction ends.
	LockGame(ctx context.Context, gameID, userID int64) (*engine.Game, error)
	MarkExpired(ctx context.Context, gameID int64) error
	SaveGame(ctx context.Context, g *engine.Game) error
}

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// InTx runs fn in one transaction, committing only when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&gameTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type gameTx struct {
	q querier
}
