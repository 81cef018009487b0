package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"famline/internal/audit"
	"famline/internal/auth"
	"famline/internal/callstore"
	"famline/internal/callsvc"
	"famline/internal/config"
	"famline/internal/group"
	"famline/internal/httpapi"
	"famline/internal/mediahub"
	"famline/pkg/logger"
	"famline/pkg/storage"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := storage.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), storage.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := storage.OpenRedis(rootCtx, storage.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	if err := os.MkdirAll(cfg.Call.RecordingsDir, 0o755); err != nil {
		log.Error("recordings dir init failed", "dir", cfg.Call.RecordingsDir, "err", err)
		os.Exit(1)
	}

	audits := audit.NewService(audit.NewPostgresRepo(db))

	calls := callsvc.New(
		callstore.NewRedisLive(rdb),
		callstore.NewPostgresHistory(db),
		callsvc.Options{
			RingTimeout: cfg.Call.RingTimeout,
			Caps:        callsvc.NewRedisCaps(rdb, cfg.Call.MaxActiveCalls),
			Audit:       audits,
			Logger:      logger.Component(log, "callsvc"),
		},
	)

	directory := group.NewPostgresDirectory(db)
	hub := mediahub.NewHub(mediahub.DefaultMaxMessageSize, logger.Component(log, "mediahub"))

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Auth:          authManager,
		Calls:         calls,
		Directory:     directory,
		RecordingsDir: cfg.Call.RecordingsDir,
	}
	registerRoutes(r, h, db, rdb, calls, hub)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
