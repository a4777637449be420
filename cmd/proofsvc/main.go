package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	config "github.com/avvvet/pickbox-services/configs"
	mongodb "github.com/avvvet/pickbox-services/internal/db"
	settings "github.com/avvvet/pickbox-services/internal/gamesvc/config"
	"github.com/avvvet/pickbox-services/internal/gamesvc/db"
	"github.com/avvvet/pickbox-services/internal/gamesvc/ledger"
	"github.com/avvvet/pickbox-services/internal/gamesvc/store"
	natscli "github.com/avvvet/pickbox-services/internal/nats"
	"github.com/avvvet/pickbox-services/internal/proofsvc"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "proof"

var instanceId string

func init() {
	config.LoadEnv(SERVICE_NAME)
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
}

func main() {
	cfg := settings.Load()

	// pg connection
	dbpool, err := db.Connect(cfg.DBUrl)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	mdb, err := mongodb.ConnectToDB(os.Getenv("MONGODB_URI"))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mdb.Client().Disconnect(context.Background())
	if err := mongodb.CreateUniqueIndex(context.Background(), mdb, proofsvc.Collection, "user_id"); err != nil {
		log.Fatalf("Failed to index %s: %v", proofsvc.Collection, err)
	}

	// NATS connection
	n, err := natscli.Connect(SERVICE_NAME + "_service_" + instanceId)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer n.Conn.Close()
	log.Infof("NATS connected at %s", n.Url)

	agg := proofsvc.NewAggregator(
		store.New(dbpool),
		ledger.NewClient(cfg.LedgerURL, cfg.LedgerToken, cfg.LedgerTimeout),
		proofsvc.NewMongoStore(mdb),
	)

	sub, err := proofsvc.Subscribe(n.Conn, cfg.WonTopic, SERVICE_NAME+"svc", agg)
	if err != nil {
		log.Fatalf("Subscribe %s error: %v", cfg.WonTopic, err)
	}
	log.Infof("%s service listening on %s", SERVICE_NAME, cfg.WonTopic)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		log.Warnf("drain subscription: %v", err)
	}
	log.Infof("%s service stopped", SERVICE_NAME)
}
