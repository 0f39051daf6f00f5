package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/monepiceriz/api/internal/config"
	"github.com/monepiceriz/api/internal/database"
	"github.com/monepiceriz/api/internal/enum"
	"github.com/monepiceriz/api/internal/events"
	"github.com/monepiceriz/api/internal/logging"
	"github.com/monepiceriz/api/internal/metrics"
	"github.com/monepiceriz/api/internal/payment"
	"github.com/monepiceriz/api/internal/router"
	"github.com/monepiceriz/api/internal/service"
	"github.com/monepiceriz/api/internal/store"
	"github.com/monepiceriz/api/internal/ws"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	gateway, err := openGateway(cfg, logger)
	if err != nil {
		return err
	}

	// The hub and dispatcher outlive the signal context: they are stopped only
	// after the HTTP server has finished and the event queue has drained.
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	hub := ws.NewHub(logger)
	go hub.Run(bgCtx)

	sinks := []events.Sink{events.NewLogSink(logger), events.NewHubSink(hub)}
	var kafkaSink *events.KafkaSink
	if brokers := events.ParseBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		kafkaSink = events.NewKafkaSink(brokers, cfg.KafkaTopic)
		sinks = append(sinks, kafkaSink)
		logger.Info("publishing order events to kafka", zap.Strings("brokers", brokers), zap.String("topic", cfg.KafkaTopic))
	}
	dispatcher := events.NewDispatcher(cfg.EventBuffer, logger, sinks, events.WithMetrics(m))
	go dispatcher.Run(bgCtx)

	svc := service.NewOrderService(repo, gateway, dispatcher, logger,
		service.WithMetrics(m),
		service.WithWeightPolicy(cfg.WeightPolicy()),
		service.WithCaptureTimeout(cfg.PaymentCaptureTimeout),
		service.WithCurrency(cfg.Currency),
		service.WithLabelLocale(cfg.LabelLocale),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(cfg, svc, hub, logger, m, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreDriver), zap.String("gateway", cfg.PaymentGateway))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("event dispatcher close", zap.Error(err))
	}
	stopBackground()
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			logger.Warn("kafka writer close", zap.Error(err))
		}
	}
	return nil
}

func openRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (service.OrderRepository, func(), error) {
	if cfg.StoreDriver == enum.StoreDriverMemory {
		logger.Warn("using in-memory order store; orders are lost on restart")
		return store.NewMemoryRepository(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	repo := store.NewPostgresRepository(pool, func(db database.DBTX) store.OrderStore {
		return database.New(db)
	})
	return repo, pool.Close, nil
}

func openGateway(cfg *config.Config, logger *zap.Logger) (payment.Gateway, error) {
	if cfg.PaymentGateway == enum.GatewayStripe {
		return payment.NewStripeGateway(payment.StripeConfig{
			APIKey:    cfg.StripeAPIKey,
			AccountID: cfg.StripeAccountID,
			Logger:    logger,
		})
	}
	logger.Warn("using manual payment gateway; captures are recorded without charging")
	return payment.NewManualGateway(), nil
}
