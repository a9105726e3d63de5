// README: Entry point; loads config, wires services, starts the HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"antar/internal/config"
	httptransport "antar/internal/http"
	"antar/internal/infra"
	"antar/internal/modules/chat"
	"antar/internal/modules/identity"
	"antar/internal/modules/order"
)

func main() {
	log := infra.NewLogger("antar-api")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Fatal().Msg("ANTAR_FIREBASE_PROJECT_ID is required")
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("firebase init")
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db init")
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer func() { _ = redisClient.Close() }()

	resolver := identity.NewResolver(identity.NewStore(dbPool), log)

	orderStore := order.NewStore(dbPool)
	claimSvc := order.NewService(orderStore, log)
	aggregator := order.NewAggregator(orderStore, log)

	chatStore := chat.NewStore(dbPool, redisClient, log)
	feed := chat.NewRedisFeed(redisClient, log)
	chatSvc := chat.NewService(chatStore, feed, chat.Options{
		ReconcileInterval: cfg.Chat.ReconcileInterval,
	}, log)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Resolver:     resolver,
		Claims:       claimSvc,
		Active:       aggregator,
		Chat:         chatSvc,
		Verifier:     verifier,
		PollInterval: cfg.Poll.Interval,
		Log:          log,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("addr", cfg.HTTP.Addr).Msg("listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server")
	}
	log.Info().Msg("stopped")
}
