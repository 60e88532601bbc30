package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"docket/api/internal/app"
	"docket/api/internal/blob"
	"docket/api/internal/cache"
	"docket/api/internal/config"
	"docket/api/internal/logger"
	"docket/api/internal/metrics"
	"docket/api/internal/search"
	"docket/api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()
	metrics.Init()

	ctx := context.Background()

	db, err := store.Open(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()
	if err := store.InitSchema(ctx, db); err != nil {
		logger.Fatal("schema init failed", zap.Error(err))
	}
	dataStore := store.NewPostgresStore(db)

	var snapshots *cache.Cache
	if strings.TrimSpace(cfg.Redis.URL) != "" {
		snapshots, err = cache.New(cfg.Redis.URL, time.Duration(cfg.Redis.TTLSeconds)*time.Second)
		if err != nil {
			logger.Fatal("redis connection failed", zap.Error(err))
		}
		defer snapshots.Close()
	}

	pg := search.NewPostgres(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.Meili.URL) != "" {
		meiliClient = search.NewMeili(cfg.Meili.URL, cfg.Meili.MasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pg)
	searchService.ReindexAll(ctx)

	var files *blob.Store
	if strings.TrimSpace(cfg.Minio.Endpoint) != "" {
		files, err = blob.New(cfg.Minio)
		if err != nil {
			logger.Fatal("minio connection failed", zap.Error(err))
		}
		if err := files.EnsureBucket(ctx); err != nil {
			logger.Fatal("minio bucket setup failed", zap.Error(err))
		}
	}

	service := app.New(*cfg, dataStore, searchService, files, snapshots)

	if _, err := service.RunReconciliation(ctx); err != nil {
		logger.Warn("initial reconciliation failed, will retry on the next tick", zap.Error(err))
	}

	stopReconcile := make(chan struct{})
	go func() {
		reconcileLog := logger.Named("reconcile")
		ticker := time.NewTicker(service.ReconcileInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				report, err := service.RunReconciliation(ctx)
				if err != nil {
					reconcileLog.Error("scheduled run failed", zap.Error(err))
					continue
				}
				if report.Changed {
					if _, err := service.DashboardInsights(ctx); err != nil {
						reconcileLog.Warn("dashboard snapshot refresh failed", zap.Error(err))
					}
				}
			case <-stopReconcile:
				return
			}
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		hs := service.Health(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if !hs.OK {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(hs)
	})
	server := &http.Server{
		Addr:              cfg.Server.OpsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("docketd ops listener up", zap.String("addr", cfg.Server.OpsAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("ops server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	close(stopReconcile)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
