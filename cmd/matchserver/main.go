package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mpetrov/chessmatch/internal/archive"
	appcfg "github.com/mpetrov/chessmatch/internal/config"
	"github.com/mpetrov/chessmatch/internal/gateway"
	"github.com/mpetrov/chessmatch/internal/match"
	"github.com/mpetrov/chessmatch/internal/obslog"
	"github.com/mpetrov/chessmatch/internal/records"
	"github.com/mpetrov/chessmatch/internal/statsapi"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("log init error: %v", err)
	}

	store, err := records.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("record store init error: %v", err)
	}

	hub := match.NewHub(store)

	var repo *archive.Repository
	if cfg.DatabaseURL != "" {
		repo, err = archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("archive init error: %v", err)
		}
		hub.AttachArchive(repo)
	} else {
		obslog.L().Warn("archive_disabled", zap.String("reason", "DATABASE_URL not set"))
	}

	gw := gateway.NewServer(hub,
		gateway.WithOriginPatterns(cfg.AllowedOrigins),
		gateway.WithQueueSize(cfg.SendQueueSize),
		gateway.WithWriteTimeout(time.Duration(cfg.WriteTimeoutSec)*time.Second),
	)
	wsSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stats := statsapi.NewServer(store)

	go func() {
		obslog.L().Info("ws_listen", zap.String("addr", cfg.ListenAddr))
		if err := wsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("ws_listen_error", zap.Error(err))
		}
	}()
	go func() {
		obslog.L().Info("stats_listen", zap.String("addr", cfg.StatsAddr))
		if err := stats.ListenAndServe(cfg.StatsAddr); err != nil {
			obslog.L().Error("stats_listen_error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	obslog.L().Info("shutdown_begin")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	_ = wsSrv.Shutdown(ctx)
	_ = stats.Shutdown()
	hub.CloseAll()
	_ = store.Close()
	if repo != nil {
		_ = repo.Close()
	}
	obslog.L().Info("shutdown_done")
}
