package proofsvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/avvvet/pickbox-services/internal/comm"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const handleTimeout = 30 * time.Second

type WinHandler interface {
	GameWon(ctx context.Context, won comm.GameWon) error
}

// Subscribe consumes win notifications on topic. Replicas share the queue
// group so each win is handled once.
func Subscribe(nc *nats.Conn, topic, queue string, h WinHandler) (*nats.Subscription, error) {
	return nc.QueueSubscribe(topic, queue, func(m *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		handleMessage(ctx, m.Data, h)
	})
}

func handleMessage(ctx context.Context, data []byte, h WinHandler) {
	var msg comm.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Errorf("invalid message: %v", err)
		return
	}
	if msg.Type != comm.TypeGameWon {
		return
	}
	var won comm.GameWon
	if err := json.Unmarshal(msg.Data, &won); err != nil {
		log.Errorf("invalid game-won payload: %v", err)
		return
	}
	if err := h.GameWon(ctx, won); err != nil {
		log.WithField("game_id", won.GameID).Errorf("game-won not processed: %v", err)
	}
}
