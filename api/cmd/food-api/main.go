package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"foodbot/api/internal/config"
	"foodbot/api/internal/engines"
	"foodbot/api/internal/handle"
	"foodbot/api/internal/httpserver"
	"foodbot/api/internal/logging"
	"foodbot/api/internal/store"
)

func main() {
	cfg := config.Load()
	closeLog, err := logging.Setup(cfg.LogFile)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer closeLog()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	reg, err := engines.Build(cfg)
	if err != nil {
		log.Fatalf("engines: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		rec  handle.Recorder
		ping func(context.Context) error
	)
	if dsn := store.ResolveDSN(cfg.DatabaseURL); dsn != "" {
		db, repo, err := store.OpenHistory(ctx, dsn, cfg.HistoryRetention)
		if err != nil {
			log.Fatalf("store: %v", err)
		}
		defer db.Close()
		rec, ping = repo, db.PingContext
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz(ping))
	handle.New(reg, rec, cfg.RequestTimeout).Register(mux)

	log.Printf("food-api: providers=%v default=%s", reg.Names(), reg.Default())
	if err := httpserver.Run(ctx, ":"+cfg.Port, mux); err != nil {
		log.Fatal(err)
	}
}
