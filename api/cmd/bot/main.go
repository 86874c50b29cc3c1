package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"foodbot/api/internal/config"
	"foodbot/api/internal/engines"
	"foodbot/api/internal/httpserver"
	"foodbot/api/internal/logging"
	"foodbot/api/internal/store"
	"foodbot/api/internal/telegram"
)

func main() {
	cfg := config.Load()
	closeLog, err := logging.Setup(cfg.LogFile)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer closeLog()

	if strings.TrimSpace(cfg.TelegramBotToken) == "" {
		log.Fatal("missing required env TELEGRAM_BOT_TOKEN")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	reg, err := engines.Build(cfg)
	if err != nil {
		log.Fatalf("engines: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal(err)
	}
	bot.Debug = false

	r := &telegram.Router{
		Bot:        bot,
		EngManager: engines.NewManager(reg),
		Timeout:    cfg.RequestTimeout,
	}

	mux := http.NewServeMux()
	var ping func(context.Context) error
	if dsn := store.ResolveDSN(cfg.DatabaseURL); dsn != "" {
		db, repo, err := store.OpenHistory(ctx, dsn, cfg.HistoryRetention)
		if err != nil {
			log.Fatalf("store: %v", err)
		}
		defer db.Close()
		r.History = repo
		ping = db.PingContext
	}
	mux.HandleFunc("/healthz", httpserver.Healthz(ping))

	addr := "0.0.0.0:" + cfg.Port
	pool := telegram.NewPool(telegram.DefaultConcurrency)
	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		startWebhookMode(ctx, addr, mux, bot, r, pool, webhookURL)
	} else {
		startPollingMode(ctx, addr, mux, bot, r, pool)
	}
}

func startWebhookMode(ctx context.Context, addr string, mux *http.ServeMux, bot *tgbotapi.BotAPI, r *telegram.Router, pool *telegram.Pool, baseURL string) {
	path := telegram.WebhookPath(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		log.Fatal(err)
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		log.Fatal(err)
	}

	mux.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
		upd, err := bot.HandleUpdate(req)
		if err != nil {
			log.Printf("webhook: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// Telegram redelivers the update if we give up waiting for a slot.
		if !pool.Go(req.Context(), func() { r.HandleUpdate(*upd) }) {
			http.Error(w, "busy", http.StatusServiceUnavailable)
		}
	})

	log.Printf("webhook listening on %s%s", addr, path)
	if err := httpserver.Run(ctx, addr, mux); err != nil {
		log.Fatal(err)
	}
}

func startPollingMode(ctx context.Context, addr string, mux *http.ServeMux, bot *tgbotapi.BotAPI, r *telegram.Router, pool *telegram.Pool) {
	go func() {
		if err := httpserver.Run(ctx, addr, mux); err != nil {
			log.Fatal(err)
		}
	}()
	log.Printf("polling as @%s", bot.Self.UserName)
	telegram.RunPolling(ctx, bot, pool, r.HandleUpdate)
}
