package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lixing-Zhang/storefront/internal/config"
	"github.com/Lixing-Zhang/storefront/internal/handlers"
	"github.com/Lixing-Zhang/storefront/internal/middleware"
	"github.com/Lixing-Zhang/storefront/internal/notify"
	"github.com/Lixing-Zhang/storefront/pkg/logger"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// The bot relay accepts rendered order messages from the storefront on
// POST /send_order and forwards them to the shop's Telegram chat.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	if cfg.Notify.TelegramToken == "" || cfg.Notify.TelegramChatID == "" {
		log.Error("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required for the bot relay")
		os.Exit(1)
	}

	sender := notify.NewTelegramSink(cfg.Notify.TelegramAPIURL, cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
	relay := handlers.NewRelayHandler(sender, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", handlers.NewHealthHandler("1.0.0", nil, log).ServeHTTP)
	r.Post("/send_order", relay.SendOrder)

	addr := fmt.Sprintf("%s:%s", cfg.Relay.Host, cfg.Relay.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("bot relay listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("bot relay failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down bot relay...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("bot relay forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("bot relay stopped gracefully")
}
