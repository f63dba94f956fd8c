package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"example.com/activitylog/internal/api"
	"example.com/activitylog/internal/auth"
	"example.com/activitylog/internal/config"
	"example.com/activitylog/internal/domain"
	"example.com/activitylog/internal/events"
	"example.com/activitylog/internal/kv"
	"example.com/activitylog/internal/logging"
	"example.com/activitylog/internal/persistence"
	httptransport "example.com/activitylog/internal/transport/http"
)

type publisher interface {
	domain.Publisher
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := logging.Configure(cfg.Logging.Logger()); err != nil {
		log.Fatal().Err(err).Msg("failed to configure logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := kv.Open(ctx, cfg.Store.KV())
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("failed to open store")
	}
	defer store.Close()

	var pub publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		pub = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}
	defer pub.Close()

	controller := domain.NewController(persistence.NewActivityStore(store), domain.WithPublisher(pub))
	go func() {
		if err := controller.Init(ctx); err != nil {
			log.Error().Err(err).Msg("initial load failed")
			return
		}
		log.Info().Msg("activity list loaded")
	}()

	router := mux.NewRouter()
	api.NewHandler(controller).RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.Auth.Secret, Issuer: cfg.Auth.Issuer}, func(r *http.Request) bool {
		switch r.URL.Path {
		case "/healthz", "/readyz", "/metrics":
			return true
		}
		return r.Method == http.MethodOptions
	})
	if !authMiddleware.Enabled() {
		log.Warn().Msg("auth secret not set, API is open")
	}

	server := httptransport.NewServer(
		httptransport.DefaultServerConfig(cfg.HTTPAddress),
		httptransport.Chain(router, httptransport.RequestLogger, httptransport.CORS(cfg.CORSOrigin), authMiddleware.Wrap),
	)

	go func() {
		log.Info().Str("address", cfg.HTTPAddress).Str("backend", cfg.Store.Backend).Msg("activitylog api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := controller.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("pending activity events not published")
	}
}
