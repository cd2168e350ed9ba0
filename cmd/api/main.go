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

	"storefront-core/internal/config"
	"storefront-core/internal/database"
	"storefront-core/internal/events"
	"storefront-core/internal/fanout"
	"storefront-core/internal/handler"
	"storefront-core/internal/ledger"
	"storefront-core/internal/proof"
	"storefront-core/internal/repository"
	"storefront-core/internal/router"
	"storefront-core/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting storefront-core API server")

	// Context for the application lifecycle, cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	inventoryRepo := repository.NewInventoryRepository(pool, logger)
	commissionRepo := repository.NewCommissionRepository(pool, logger)
	payoutRepo := repository.NewPayoutRepository(pool, logger)
	paymentRepo := repository.NewPaymentRepository(pool, logger)
	outboxRepo := repository.NewOutboxRepository(pool, logger)

	// Initialize ledgers
	inventory := ledger.NewInventoryLedger(pool, inventoryRepo, productRepo, logger)
	commissions := ledger.NewCommissionLedger(pool, commissionRepo, payoutRepo, cfg.Commission.Percentage, logger)

	// Initialize notification fan-out
	store, closeStore, err := newHistoryStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	hub := fanout.NewHub(cfg.Notification.SubscriberBuffer, cfg.Notification.ToastLimit)
	fan := fanout.New(orderRepo, store, hub, cfg.Notification.HistoryTTL, logger)

	// Initialize proof storage with remote storage and local fallback
	proofStorage := newProofStorage(ctx, cfg, logger)

	// Initialize services
	fees := service.Fees{ShippingCost: cfg.Order.ShippingCost, AdminFee: cfg.Order.AdminFee}
	orderService := service.NewOrderService(orderRepo, productRepo, outboxRepo, inventory, commissions, fees, logger)
	courierService := service.NewCourierService(orderRepo, outboxRepo, logger)
	paymentService := service.NewPaymentProofService(orderRepo, paymentRepo, outboxRepo, proofStorage, logger)
	payoutService := service.NewPayoutService(commissions, logger)
	catalogService := service.NewCatalogService(inventory, logger)

	// Initialize HTTP handlers
	mux := router.New(router.Handlers{
		Orders:         handler.NewOrderHandler(orderService, courierService, paymentService, logger),
		Inventory:      handler.NewInventoryHandler(catalogService, logger),
		Commissions:    handler.NewCommissionHandler(payoutService, logger),
		Notifications:  handler.NewNotificationHandler(fan, logger),
		ProofFiles:     http.FileServer(http.Dir(cfg.LocalStorage.Dir)),
		ProofFilesPath: cfg.LocalStorage.BaseURL,
	}, cfg.Auth.APIKey, cfg.Auth.JWTSecret, logger)

	// Create HTTP server. WriteTimeout is left unset for websocket streams.
	server := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Event transport: Kafka when enabled, otherwise straight into the fan-out
	var publisher events.Publisher
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		consumer := events.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup(), cfg.Kafka.Topic, fan, logger)
		g.Go(func() error { return consumer.Run(gctx) })
	} else {
		publisher = events.NewLocalBus(fan, logger)
		logger.Info().Msg("kafka disabled, delivering events in process")
	}
	defer publisher.Close()

	relay := events.NewRelay(pool, outboxRepo, publisher, cfg.Outbox.BatchSize, cfg.Outbox.PollInterval, logger)
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error { return fan.RunPruner(gctx, cfg.Notification.PruneInterval) })

	g.Go(func() error {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info().Msg("server shutdown completed")
	return nil
}

// newHistoryStore returns the configured notification history store and a
// function releasing its resources.
func newHistoryStore(cfg *config.Config, logger zerolog.Logger) (fanout.HistoryStore, func(), error) {
	n := cfg.Notification
	if n.Store != "redis" {
		logger.Info().Msg("using in-memory notification history")
		return fanout.NewMemoryStore(n.HistoryLimit, n.HistoryTTL), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("addr", cfg.Redis.Addr).Msg("using redis notification history")
	return fanout.NewRedisStore(client, cfg.Redis.KeyPrefix, n.HistoryLimit, n.HistoryTTL), func() { client.Close() }, nil
}

// newProofStorage prefers Cloudinary, then S3, and always falls back to local files.
func newProofStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) proof.Storage {
	local := proof.NewLocalStorage(cfg.LocalStorage.Dir, cfg.LocalStorage.BaseURL, logger)

	var primary proof.Storage
	switch {
	case cfg.Cloudinary.Enabled:
		c := cfg.Cloudinary
		storage, err := proof.NewCloudinaryStorage(c.CloudName, c.APIKey, c.APISecret, c.Folder, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise cloudinary storage, falling back to local file system only")
		} else {
			primary = storage
		}
	case cfg.S3.Enabled:
		storage, err := proof.NewS3Storage(ctx, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Prefix, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 storage, falling back to local file system only")
		} else {
			primary = storage
		}
	default:
		logger.Info().
			Str("dir", cfg.LocalStorage.Dir).
			Msg("using local file system for payment proofs (remote storage disabled)")
	}

	return proof.NewFallbackStorage(primary, local, logger)
}
