package comm

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeGameWon = "game-won"
)

// Message is the envelope of every message exchanged over NATS.
type Message struct {
	Type     string          `json:"type"` // e.g. "game-won"
	Data     json.RawMessage `json:"data"`
	SourceId string          `json:"sourceid"` // instance id of the publisher
	SentAt   time.Time       `json:"sent_at"`
}

type GameWon struct {
	GameID   int64           `json:"game_id"`
	UserID   int64           `json:"user_id"`
	Currency string          `json:"currency"`
	Prize    decimal.Decimal `json:"prize"`
	WonAt    time.Time       `json:"won_at"`
}

// Wrap marshals data into an envelope of the given type.
func Wrap(msgType, sourceId string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Message{
		Type:     msgType,
		Data:     raw,
		SourceId: sourceId,
		SentAt:   time.Now().UTC(),
	})
}
