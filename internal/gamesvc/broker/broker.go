package broker

import (
	"context"

	"github.com/avvvet/pickbox-services/internal/comm"
	"github.com/avvvet/pickbox-services/internal/gamesvc/engine"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

type publisher interface {
	Publish(subj string, data []byte) error
}

type Broker struct {
	Conn       publisher
	WonTopic   string
	InstanceId string
}

func NewBroker(nc *nats.Conn, wonTopic, instanceId string) *Broker {
	return &Broker{Conn: nc, WonTopic: wonTopic, InstanceId: instanceId}
}

// GameWon announces a won game to the social proof consumer.
func (b *Broker) GameWon(_ context.Context, ev engine.WonEvent) error {
	payload, err := comm.Wrap(comm.TypeGameWon, b.InstanceId, comm.GameWon{
		GameID:   ev.GameID,
		UserID:   ev.UserID,
		Currency: ev.Currency,
		Prize:    ev.Prize,
		WonAt:    ev.At,
	})
	if err != nil {
		log.Errorf("unable to marshal game-won for game %d: %s", ev.GameID, err)
		return err
	}
	return b.Publish(b.WonTopic, payload)
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
