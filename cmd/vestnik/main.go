package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vestnik/internal/app"
	"vestnik/internal/config"
	"vestnik/internal/logger"
	"vestnik/internal/storage"
	"vestnik/internal/telegram"
)

func main() {
	currencySlot := flag.String("currency", "", "post the currency summary for the given slot (morning|evening) and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger.Init(cfg.Debug)

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Error("storage init failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	sender := telegram.New(cfg.Telegram.Token, cfg.Telegram.ChannelID)
	bot := app.New(cfg, store, sender)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *currencySlot != "" {
		if err := bot.PublishCurrency(ctx, *currencySlot); err != nil {
			logger.Error("currency post failed", "slot", *currencySlot, "error", err)
			os.Exit(1)
		}
		return
	}

	if cfg.Monitoring.Enabled {
		go startMonitoringServer(cfg.Monitoring.Addr, store)
	}

	logger.Info("starting", "sources", len(cfg.Sources), "checkInterval", cfg.CheckInterval())
	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("bot stopped", "error", err)
		os.Exit(1)
	}
}

func startMonitoringServer(addr string, store *storage.Store) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		hours := 24
		if raw := req.URL.Query().Get("hours"); raw == "all" {
			hours = 0
		}
		stats, err := store.NewsStats(hours)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total":       stats.Total,
			"by_category": stats.ByCategory,
		})
	})

	logger.Info("monitoring server listening", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("monitoring server error", "error", err)
	}
}
