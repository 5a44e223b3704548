package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Maycon01282/bot2/internal/api"
	"github.com/Maycon01282/bot2/internal/application/factories/infrastructure"
	"github.com/Maycon01282/bot2/internal/config"
	"github.com/Maycon01282/bot2/internal/dedupe"
	"github.com/Maycon01282/bot2/internal/domain/catalog"
	"github.com/Maycon01282/bot2/internal/gateway"
	"github.com/Maycon01282/bot2/internal/infrastructure/mercadopago"
	"github.com/Maycon01282/bot2/internal/infrastructure/telegram"
	"github.com/Maycon01282/bot2/internal/router"
	"github.com/Maycon01282/bot2/internal/usecase"
	"github.com/Maycon01282/bot2/internal/worker"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With("app", cfg.App.Name, "version", cfg.App.Version)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	infraFactory := infrastructure.NewFactory(cfg, logger)
	defer infraFactory.Close()

	store, err := infraFactory.DedupeStore(ctx)
	if err != nil {
		logger.Error("failed to init dedupe store", "backend", cfg.Dedupe.Backend, "error", err)
		os.Exit(1)
	}

	// Sinks
	messenger, err := telegram.NewMessenger(telegram.Config{
		Token:     cfg.Telegram.Token,
		APIServer: cfg.Telegram.APIServer,
	})
	if err != nil {
		logger.Error("failed to init telegram bot", "error", err)
		os.Exit(1)
	}

	botUsername := cfg.Telegram.BotUsername
	if botUsername == "" {
		if botUsername, err = messenger.Username(ctx); err != nil {
			logger.Warn("could not resolve bot username, accepting commands for any bot", "error", err)
		}
	}

	mp := mercadopago.New(mercadopago.Config{
		BaseURL:     cfg.MercadoPago.BaseURL,
		AccessToken: cfg.MercadoPago.AccessToken,
		Timeout:     cfg.MercadoPago.Timeout,
		BackURLs: mercadopago.BackURLs{
			Success: cfg.MercadoPago.SuccessURL,
			Failure: cfg.MercadoPago.FailureURL,
			Pending: cfg.MercadoPago.PendingURL,
		},
		NotificationURL: cfg.MercadoPago.NotificationURL,
		Sandbox:         cfg.MercadoPago.Sandbox,
	})

	// Routing
	table := usecase.Routes(usecase.Deps{
		Messenger: messenger,
		Links:     mp,
		Payments:  mp,
		Publisher: infraFactory.Publisher(),
		Catalog:   catalog.Default(),
		Amounts:   usecase.DefaultAmounts,
		Logger:    logger,

		BotUsername: botUsername,
	})
	for _, e := range table.Entries() {
		logger.Debug("route registered", "route", e.String())
	}
	eventRouter := router.New(table, store, router.WithLogger(logger))

	gw := gateway.New(
		gateway.WithTelegramSecret(cfg.Telegram.SecretToken),
		gateway.WithPaymentSecret(cfg.MercadoPago.WebhookSecret),
	)
	if cfg.Telegram.SecretToken == "" {
		logger.Warn("TELEGRAM_SECRET_TOKEN not set, chat webhook is unauthenticated")
	}
	if cfg.MercadoPago.WebhookSecret == "" {
		logger.Warn("MP_WEBHOOK_SECRET not set, payment webhook signatures are not checked")
	}

	if evictor, ok := store.(dedupe.Evictor); ok && cfg.Dedupe.SweepInterval > 0 {
		janitor := worker.NewJanitor(evictor, cfg.Dedupe.TTL, cfg.Dedupe.SweepInterval, logger)
		go janitor.Run(ctx)
	}

	handlers := api.NewHandlers(gw, eventRouter, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      api.NewRouter(handlers, cfg.HTTP.MaxBodyBytes, logger),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", "port", cfg.HTTP.Port, "dedupe_backend", cfg.Dedupe.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen failed", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return
	}

	logger.Info("server exited")
}
