package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lixing-Zhang/storefront/internal/auth"
	"github.com/Lixing-Zhang/storefront/internal/config"
	"github.com/Lixing-Zhang/storefront/internal/handlers"
	"github.com/Lixing-Zhang/storefront/internal/notify"
	"github.com/Lixing-Zhang/storefront/internal/repository"
	"github.com/Lixing-Zhang/storefront/internal/service"
	"github.com/Lixing-Zhang/storefront/internal/uploads"
	"github.com/Lixing-Zhang/storefront/pkg/logger"
)

const version = "1.0.0"

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	log.Info("starting storefront api server",
		"port", cfg.Server.Port,
		"host", cfg.Server.Host,
		"storage", cfg.Storage.Driver,
		"notify_sink", cfg.Notify.Sink,
		"log_level", cfg.LogLevel,
	)

	ctx := context.Background()

	// Initialize storage
	store, pinger, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open storage", "error", err)
		os.Exit(1)
	}

	// Seed the administrator
	created, err := auth.EnsureAdmin(ctx, store, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, cfg.Auth.BcryptCost, log)
	if err != nil {
		log.Error("failed to seed administrator", "error", err)
		os.Exit(1)
	}
	if created && cfg.UsesDefaultAdminPassword() {
		log.Warn("administrator created with the default password, set ADMIN_PASSWORD")
	}
	authorizer, err := auth.NewPasswordAuthorizer(store, cfg.Auth.BcryptCost)
	if err != nil {
		log.Error("failed to initialize authorizer", "error", err)
		os.Exit(1)
	}

	photos, err := uploads.NewStore(cfg.Storage.UploadDir)
	if err != nil {
		log.Error("failed to initialize upload directory", "error", err)
		os.Exit(1)
	}

	// Initialize notifications
	sink := newSink(cfg.Notify, log)
	dispatcher := notify.NewDispatcher(sink, cfg.Notify.QueueSize, cfg.Notify.Timeout, log)
	renderer, err := notify.NewRenderer(cfg.Notify.Language)
	if err != nil {
		log.Error("failed to load notification messages", "error", err)
		os.Exit(1)
	}

	// Initialize services
	productService := service.NewProductService(store, photos, log)
	orderService := service.NewOrderService(store, service.NewDeliveryPolicy(cfg.Delivery), renderer, dispatcher, log)

	// Create router
	router := handlers.NewRouter(handlers.Routes{
		Health:         handlers.NewHealthHandler(version, pinger, log),
		Products:       handlers.NewProductHandler(productService, log),
		Orders:         handlers.NewOrderHandler(orderService, log),
		Static:         handlers.NewStaticHandler(photos, cfg.Storage.FrontendDir, log),
		Authorizer:     authorizer,
		Logger:         log,
		RequestTimeout: time.Duration(cfg.Server.RequestTimeout) * time.Second,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	exitCode := 0
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		exitCode = 1
	}

	// Flush queued notifications before the sinks go away
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warn("pending notifications dropped", "error", err)
	}
	if closer, ok := sink.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Error("failed to close notification sink", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		log.Error("failed to close storage", "error", err)
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	log.Info("server stopped gracefully")
}

// openStore builds the configured backing store, wrapped with the Redis read
// cache when REDIS_ADDR is set. The returned pinger is nil for stores without
// a connection to check.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (repository.Store, handlers.Pinger, error) {
	var (
		store  repository.Store
		pinger handlers.Pinger
	)

	switch cfg.Storage.Driver {
	case config.StorageMemory:
		store = repository.NewMemoryStore()
	case config.StorageJSON:
		fileStore, err := repository.NewFileStore(cfg.Storage.DataDir)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using json file storage", "dir", fileStore.Dir())
		store = fileStore
	case config.StoragePostgres:
		pg, err := repository.NewPostgresStore(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		log.Info("using postgres storage")
		store, pinger = pg, pg
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	if cfg.Cache.Addr == "" {
		return store, pinger, nil
	}

	client, err := repository.NewRedisClient(ctx, cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	log.Info("product cache enabled", "addr", cfg.Cache.Addr, "ttl", cfg.Cache.TTL)
	return repository.NewCachedStore(store, client, cfg.Cache.TTL, log), pinger, nil
}

func newSink(cfg config.NotifyConfig, log *slog.Logger) notify.Sink {
	switch cfg.Sink {
	case config.SinkTelegram:
		return notify.NewTelegramSink(cfg.TelegramAPIURL, cfg.TelegramToken, cfg.TelegramChatID)
	case config.SinkRelay:
		return notify.NewRelaySink(cfg.RelayURL)
	case config.SinkKafka:
		return notify.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		return notify.NewLogSink(log)
	}
}
