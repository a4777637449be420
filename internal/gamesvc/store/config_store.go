package store

import (
	"context"
	"fmt"
)

// GameConfigs returns the raw key/value rows of game_configs.
func (s *Store) GameConfigs(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.Query(ctx, `SELECT key, value FROM game_configs`)
	if err != nil {
		return nil, fmt.Errorf("failed to load game configs: %w", err)
	}
	defer rows.Close()

	kv := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		kv[k] = v
	}
	return kv, rows.Err()
}
