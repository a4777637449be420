package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	"golang.org/x/sync/errgroup"

	config "github.com/avvvet/pickbox-services/configs"
	"github.com/avvvet/pickbox-services/internal/gamesvc/broker"
	settings "github.com/avvvet/pickbox-services/internal/gamesvc/config"
	"github.com/avvvet/pickbox-services/internal/gamesvc/db"
	handlers "github.com/avvvet/pickbox-services/internal/gamesvc/handlers"
	"github.com/avvvet/pickbox-services/internal/gamesvc/ledger"
	"github.com/avvvet/pickbox-services/internal/gamesvc/metrics"
	"github.com/avvvet/pickbox-services/internal/gamesvc/rates"
	"github.com/avvvet/pickbox-services/internal/gamesvc/service"
	"github.com/avvvet/pickbox-services/internal/gamesvc/store"
	nats "github.com/avvvet/pickbox-services/internal/nats"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "game"

var instanceId string

func init() {
	config.LoadEnv(SERVICE_NAME)
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
}

func main() {
	cfg := settings.Load()
	metrics.Init()

	// pg connection
	dbpool, err := db.Connect(cfg.DBUrl)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	gameStore := store.New(dbpool)

	rateRepo := rates.NewRepository(dbpool)
	rateProvider := rates.NewProvider(rateRepo)
	refresher := rates.NewRefresher(rates.NewFetcher(cfg.RatesURL, cfg.RatesTimeout), rateRepo, cfg.RatesInterval)

	ledgerClient := ledger.NewClient(cfg.LedgerURL, cfg.LedgerToken, cfg.LedgerTimeout)

	// Connect to NATS
	n, err := nats.Connect(SERVICE_NAME + "_service_" + instanceId)
	if err != nil {
		log.Fatalf("Error: unable to connect to NATS server %v", err)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// win notifications for the social proof service
	wonBroker := broker.NewBroker(n.Conn, cfg.WonTopic, instanceId)

	gameService := service.NewGameService(
		gameStore,
		service.NewConfigCache(gameStore, cfg.GameConfigTTL),
		metrics.InstrumentLedger(ledgerClient),
		ledgerClient,
		rateProvider,
		wonBroker,
	)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	r.Handle("/metrics", metrics.Handler())

	// Init handlers and routes
	h := handlers.NewHandler(gameService, cfg.Port)
	h.InitAuth(cfg.JWTSecret, os.Getenv("JWT_DEBUG_TOKEN") != "")
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return refresher.Run(gctx)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Errorf("%s service stopped with error: %+v", SERVICE_NAME, err)
		return
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
