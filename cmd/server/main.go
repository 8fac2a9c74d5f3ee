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

	"boostmarket/internal/config"
	"boostmarket/internal/db"
	"boostmarket/internal/events"
	"boostmarket/internal/handlers"
	"boostmarket/internal/logger"
	"boostmarket/internal/services"
	"boostmarket/internal/store"
	"boostmarket/internal/websocket"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.Must(cfg.AppEnv)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				log.Warn("kafka writer close failed", zap.Error(err))
			}
		}()
		publisher = kafkaPublisher
		log.Info("publishing events to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	audit := store.NewAuditStore(kv)
	hub := websocket.NewHub()
	wallets := services.NewWalletService(store.NewWalletStore(kv), store.NewLedgerStore(kv), audit, hub, publisher, log)
	wallets.RestrictRealms(cfg.Realms)
	conversion, err := services.NewConversionService(wallets, store.NewExchangeStore(kv), store.NewExchangeQuoteStore(kv), audit, publisher, log, services.ConversionConfig{
		Rates:    cfg.ExchangeRates,
		Fees:     cfg.ConversionFees,
		QuoteTTL: cfg.QuoteTTL,
	})
	if err != nil {
		return fmt.Errorf("conversion config: %w", err)
	}
	catalog := services.NewCatalogService(store.NewCatalogStore(kv), audit, log)
	if cfg.CatalogSeedPath != "" {
		if _, err := catalog.Seed(ctx, cfg.CatalogSeedPath); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
	}
	orders := services.NewOrderService(store.NewOrderStore(kv), catalog, wallets, audit, hub, publisher, log, cfg.DefaultRealm)

	handler := handlers.New(cfg, wallets, conversion, catalog, orders, audit, hub, log)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("boostmarket API listening", zap.String("addr", server.Addr), zap.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server shut down")
	return nil
}

// openStore builds the KV adapter selected by cfg.StoreDriver.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (store.KV, func(), error) {
	switch cfg.StoreDriver {
	case "", "memory":
		log.Warn("using in-memory store; data is lost on restart")
		return store.NewMemoryKV(), func() {}, nil
	case "sqlite":
		kv, err := store.NewSQLiteKV(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return kv, func() { _ = kv.Close() }, nil
	case "postgres":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		database, err := db.Connect(connectCtx, cfg.DatabaseURL, db.DefaultPool)
		if err != nil {
			return nil, nil, err
		}
		return store.NewPostgresKV(database, db.NewTxRunner(database)), func() { _ = database.Close() }, nil
	case "redis":
		client := store.NewRedisClient(store.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		kv := store.NewRedisKV(client, "")
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := kv.HealthCheck(pingCtx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return kv, func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
