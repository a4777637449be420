package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/pickbox-services/internal/gamesvc/engine"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const gameColumns = `id, user_id, currency, current_level_index, total_levels, state, is_active,
	transaction_ids, paid_prize, updated_at, is_expired, request_key`

const levelColumns = `id, game_id, level_index, boxes_count, winner_box, chosen_box, revealable_boxes,
	reveal_price, win_prize, leave_prize, last_move_time, state, transaction_ids`

func scanGame(row pgx.Row) (*engine.Game, error) {
	g := &engine.Game{}
	var state string
	var requestKey *string
	err := row.Scan(
		&g.ID,
		&g.UserID,
		&g.Currency,
		&g.CurrentLevelIndex,
		&g.TotalLevels,
		&state,
		&g.Active,
		&g.TransactionIDs,
		&g.PaidPrize,
		&g.UpdatedAt,
		&g.Expired,
		&requestKey,
	)
	if err != nil {
		return nil, err
	}
	if requestKey != nil {
		g.RequestKey = *requestKey
	}
	g.State = engine.GameState(state)
	if !g.State.Valid() {
		return nil, fmt.Errorf("game %d has unknown state %q", g.ID, state)
	}
	return g, nil
}

func scanLevel(row pgx.Row) (*engine.Level, error) {
	l := &engine.Level{}
	var state string
	err := row.Scan(
		&l.ID,
		&l.GameID,
		&l.Index,
		&l.BoxCount,
		&l.WinnerBox,
		&l.ChosenBox,
		&l.Revealable,
		&l.RevealPrice,
		&l.WinPrize,
		&l.LeavePrize,
		&l.LastMoveTime,
		&state,
		&l.TransactionIDs,
	)
	if err != nil {
		return nil, err
	}
	l.State = engine.LevelState(state)
	if !l.State.Valid() {
		return nil, fmt.Errorf("level %d has unknown state %q", l.ID, state)
	}
	return l, nil
}

func queryLevels(ctx context.Context, q querier, query string, args ...any) ([]*engine.Level, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []*engine.Level
	for rows.Next() {
		l, err := scanLevel(rows)
		if err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	return levels, rows.Err()
}

// CreateGame inserts the game row. A second game for the same user and
// request key is refused with ErrDuplicateRequest.
func (t *gameTx) CreateGame(ctx context.Context, g *engine.Game) error {
	query := `
		INSERT INTO games (user_id, currency, current_level_index, total_levels, state, is_active, paid_prize,
			updated_at, request_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, request_key) DO NOTHING
		RETURNING id`
	err := t.q.QueryRow(ctx, query,
		g.UserID, g.Currency, g.CurrentLevelIndex, g.TotalLevels, string(g.State), g.Active, g.PaidPrize, g.UpdatedAt,
		nullable(g.RequestKey),
	).Scan(&g.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDuplicateRequest
		}
		return fmt.Errorf("failed to create game: %w", err)
	}
	return nil
}

func (t *gameTx) LockGame(ctx context.Context, gameID, userID int64) (*engine.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1 AND user_id = $2 FOR UPDATE`
	g, err := scanGame(t.q.QueryRow(ctx, query, gameID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, engine.ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to lock game: %w", err)
	}

	levels, err := queryLevels(ctx, t.q,
		`SELECT `+levelColumns+` FROM levels WHERE game_id = $1 ORDER BY level_index FOR UPDATE`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock levels of game %d: %w", gameID, err)
	}
	g.AttachLevels(levels)
	return g, nil
}

// MarkExpired sets the one-shot flag without touching updated_at.
func (t *gameTx) MarkExpired(ctx context.Context, gameID int64) error {
	tag, err := t.q.Exec(ctx, `UPDATE games SET is_expired = TRUE WHERE id = $1 AND NOT is_expired`, gameID)
	if err != nil {
		return fmt.Errorf("failed to mark game %d expired: %w", gameID, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("game %d was already expired", gameID)
	}
	return nil
}

// SaveGame writes the game row and every level. New levels are inserted.
func (t *gameTx) SaveGame(ctx context.Context, g *engine.Game) error {
	_, err := t.q.Exec(ctx, `
		UPDATE games
		SET current_level_index = $2, total_levels = $3, state = $4, is_active = $5,
			transaction_ids = $6, paid_prize = $7, updated_at = $8, is_expired = $9
		WHERE id = $1`,
		g.ID, g.CurrentLevelIndex, g.TotalLevels, string(g.State), g.Active,
		nonNil(g.TransactionIDs), g.PaidPrize, g.UpdatedAt, g.Expired,
	)
	if err != nil {
		return fmt.Errorf("failed to save game %d: %w", g.ID, err)
	}
	if len(g.Levels) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, l := range g.Levels {
		if l.ID == 0 {
			batch.Queue(`
				INSERT INTO levels (game_id, level_index, boxes_count, winner_box, chosen_box, revealable_boxes,
					reveal_price, win_prize, leave_prize, last_move_time, state, transaction_ids)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				RETURNING id`,
				g.ID, l.Index, l.BoxCount, l.WinnerBox, l.ChosenBox, nonNilInts(l.Revealable),
				l.RevealPrice, l.WinPrize, l.LeavePrize, l.LastMoveTime, string(l.State), nonNil(l.TransactionIDs))
			continue
		}
		batch.Queue(`
			UPDATE levels
			SET chosen_box = $2, revealable_boxes = $3, last_move_time = $4, state = $5,
				transaction_ids = $6, updated_at = NOW()
			WHERE id = $1`,
			l.ID, l.ChosenBox, nonNilInts(l.Revealable), l.LastMoveTime, string(l.State), nonNil(l.TransactionIDs))
	}

	br := t.q.SendBatch(ctx, batch)
	for _, l := range g.Levels {
		if l.ID == 0 {
			if err := br.QueryRow().Scan(&l.ID); err != nil {
				br.Close()
				return levelWriteError(g.ID, l.Index, err)
			}
			l.GameID = g.ID
			continue
		}
		if _, err := br.Exec(); err != nil {
			br.Close()
			return levelWriteError(g.ID, l.Index, err)
		}
	}
	return br.Close()
}

func levelWriteError(gameID int64, index int, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "unique_game_level" {
		return fmt.Errorf("level %d of game %d already exists", index, gameID)
	}
	return fmt.Errorf("failed to write level %d of game %d: %w", index, gameID, err)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilInts(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}

// GetGame reads a game with its levels without locking.
func (s *Store) GetGame(ctx context.Context, gameID, userID int64) (*engine.Game, error) {
	return s.readGame(ctx, `id = $1 AND user_id = $2`, gameID, userID)
}

// GameByRequestKey finds the game the user started with key.
func (s *Store) GameByRequestKey(ctx context.Context, userID int64, key string) (*engine.Game, error) {
	return s.readGame(ctx, `user_id = $1 AND request_key = $2`, userID, key)
}

func (s *Store) readGame(ctx context.Context, where string, args ...any) (*engine.Game, error) {
	g, err := scanGame(s.db.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE `+where, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, engine.ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	levels, err := queryLevels(ctx, s.db,
		`SELECT `+levelColumns+` FROM levels WHERE game_id = $1 ORDER BY level_index`, g.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get levels of game %d: %w", g.ID, err)
	}
	g.AttachLevels(levels)
	return g, nil
}

// FinishedGames pages through the user's inactive games, newest first.
func (s *Store) FinishedGames(ctx context.Context, userID int64, limit, offset int) ([]*engine.Game, int, error) {
	var total int
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM games WHERE user_id = $1 AND NOT is_active`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count games: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+gameColumns+`
		FROM games
		WHERE user_id = $1 AND NOT is_active
		ORDER BY id DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []*engine.Game
	ids := []int64{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, 0, err
		}
		games = append(games, g)
		ids = append(ids, g.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(games) == 0 {
		return games, total, nil
	}

	levels, err := queryLevels(ctx, s.db,
		`SELECT `+levelColumns+` FROM levels WHERE game_id = ANY($1) ORDER BY game_id, level_index`, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list levels: %w", err)
	}
	byGame := make(map[int64][]*engine.Level, len(games))
	for _, l := range levels {
		byGame[l.GameID] = append(byGame[l.GameID], l)
	}
	for _, g := range games {
		g.AttachLevels(byGame[g.ID])
	}
	return games, total, nil
}

// CollectedGameIDs lists every finished game of the user.
func (s *Store) CollectedGameIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id FROM games WHERE user_id = $1 AND state = $2 ORDER BY id`, userID, string(engine.GameCollected))
	if err != nil {
		return nil, fmt.Errorf("failed to list collected games: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}
