package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tusharbansal19/Scratch/internal/app"
	"github.com/tusharbansal19/Scratch/internal/bus"
	httpx "github.com/tusharbansal19/Scratch/internal/http"
	"github.com/tusharbansal19/Scratch/internal/persist"
	"github.com/tusharbansal19/Scratch/internal/reaper"
	"github.com/tusharbansal19/Scratch/internal/store"
	"github.com/tusharbansal19/Scratch/internal/ws"
)

func main() {
	// Load local .env (dev only)
	_ = godotenv.Load()

	cfg := app.LoadConfig()
	logger := app.NewLogger(cfg.Env)

	// Cancel on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Postgres connection + migrations
	pg, err := store.NewPostgres(ctx, cfg, logger)
	if err != nil {
		logger.Error("postgres.connect", "err", err)
		log.Fatal(err)
	}
	defer pg.Close()
	if err := store.RunMigrations(ctx, pg, logger); err != nil {
		logger.Error("migrations", "err", err)
		log.Fatal(err)
	}

	// Fanout bus: redis when reachable, in-process fallback otherwise
	b := bus.Dial(ctx, cfg, logger)
	defer b.Close()

	// Connection registry + persistence worker
	registry := ws.NewRegistry(logger)
	worker := persist.NewWorker(logger, pg, cfg.PersistBatchSize, cfg.PersistFlushEvery)
	workerDone := make(chan struct{})
	go func() {
		worker.Run(ctx) // drains + final flush on cancel
		close(workerDone)
	}()

	// Fanout listener: bus -> local broadcast
	listener := ws.NewListener(logger, b, registry)
	go listener.Run(ctx)

	// Empty-room reaper
	rp := reaper.New(logger, registry, pg, cfg.ReapEvery, cfg.ReapGrace)
	go rp.Run(ctx)

	// HTTP + WS router
	hub := ws.NewHub(logger, b, registry, pg, worker)
	router := httpx.NewRouter(cfg, logger, hub, pg)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("server.listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server.crash", "err", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("server.shutdown.start")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)

	// Let the worker finish its final flush before the pool closes
	<-workerDone

	logger.Info("server.shutdown.complete")
}
