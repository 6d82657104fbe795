package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/patcharinz/healthmate-api/services/session-service/internal/config"
	"github.com/patcharinz/healthmate-api/services/session-service/internal/gateway"
	"github.com/patcharinz/healthmate-api/services/session-service/internal/handler"
	"github.com/patcharinz/healthmate-api/services/session-service/internal/repository"
	"github.com/patcharinz/healthmate-api/services/session-service/internal/store"
	"github.com/patcharinz/healthmate-api/services/session-service/internal/usecase"
	sharedauth "github.com/patcharinz/healthmate-api/shared/auth"
	"github.com/patcharinz/healthmate-api/shared/discovery"
	"github.com/patcharinz/healthmate-api/shared/mailer"
)

func main() {
	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "session-service").
		Logger()

	cfg := config.NewSessionServiceConfig(&logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongoClient, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	if err := mongoClient.Ping(ctx, nil); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping mongodb")
	}
	db := mongoClient.Database(cfg.MongoDatabase)

	localStore, err := store.New(store.Config{
		Driver:    cfg.StoreDriver,
		Namespace: cfg.StoreNamespace,
		Redis: &store.RedisConfig{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create local store")
	}

	gw, err := gateway.NewHTTPGateway(gateway.HTTPConfig{
		BaseURL:   cfg.Gateway.BaseURL,
		APIKey:    cfg.Gateway.APIKey,
		JWTSecret: cfg.Gateway.JWTSecret,
		Audience:  cfg.Gateway.Audience,
		Issuer:    cfg.Gateway.Issuer,
		Timeout:   cfg.Gateway.Timeout,
	}, gateway.NewStoreSessionStorage(localStore), &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create auth gateway client")
	}

	sessionRepo := repository.NewSessionMongoRepository(ctx, &logger, db)
	activityRepo := repository.NewActivityMongoRepository(ctx, &logger, db)

	activityLogger := usecase.NewActivityLogger(activityRepo, &logger, cfg.ActivityQueueSize)
	tracker := usecase.NewSessionTracker(sessionRepo, localStore, activityLogger, &logger)
	verification := usecase.NewVerificationService(
		localStore,
		gw,
		mailer.NewMailer(&logger),
		&logger,
		cfg.VerificationTokenTTL,
	)
	authManager := usecase.NewAuthManager(gw, localStore, tracker, activityLogger, &logger, usecase.AuthConfig{
		PasswordResetRedirectURL: cfg.PasswordResetRedirectURL,
	})

	jwtAuth := sharedauth.NewJWTAuthenticator(cfg.Gateway.Audience, cfg.Gateway.Issuer)
	h, err := handler.New(authManager, tracker, verification, jwtAuth, cfg.Gateway.JWTSecret, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create handler")
	}

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	h.RegisterRoutes(router)

	serviceID := cfg.ServiceName + "-" + uuid.NewString()
	var registry *discovery.Registry
	if cfg.ConsulAddr != "" {
		registry, err = discovery.NewRegistry(cfg.ConsulAddr, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create consul registry")
		}
		if err := registry.Register(discovery.Registration{
			ID:      serviceID,
			Name:    cfg.ServiceName,
			Address: cfg.AdvertiseAddr,
			Port:    cfg.AdvertisePort,
		}); err != nil {
			logger.Fatal().Err(err).Msg("failed to register with consul")
		}
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("session service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if registry != nil {
		if err := registry.Deregister(serviceID); err != nil {
			logger.Warn().Err(err).Msg("failed to deregister from consul")
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown failed")
	}

	activityLogger.Close()

	if err := localStore.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("failed to close local store")
	}
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("failed to disconnect mongodb")
	}
}
