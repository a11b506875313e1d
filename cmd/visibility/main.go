package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fedemoisello/Visibility-Netsuite/internal/cache"
	"github.com/fedemoisello/Visibility-Netsuite/internal/config"
	apphttp "github.com/fedemoisello/Visibility-Netsuite/internal/http"
	applog "github.com/fedemoisello/Visibility-Netsuite/internal/log"
	"github.com/fedemoisello/Visibility-Netsuite/internal/services"
	"github.com/fedemoisello/Visibility-Netsuite/internal/store"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration",
			applog.FieldOperation, applog.OpValidate,
			applog.FieldError, err.Error())
		os.Exit(1)
	}

	uploadCache := cache.NewLRUCache[services.NormalizedUpload](cfg.CacheSize, cfg.CacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(uploadCache)
	cacheManager.StartCleanup(cfg.CacheCleanupInterval)

	svc := services.NewVisibilityService(uploadCache, store.New(), services.Goal{
		Owner:            cfg.GoalOwner,
		Target:           cfg.GoalTarget,
		FallbackProgress: cfg.GoalFallbackProgress,
	}, logger)

	srv := apphttp.NewServer(":"+cfg.Port, svc, logger, apphttp.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		TopClients:     cfg.TopClients,
	})
	srv.IdleTimeout = 120 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received",
			applog.FieldOperation, applog.OpShutdown,
			"signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err.Error())
		}
		cacheManager.Stop()
		cancel()
	}()

	logger.Info("Starting visibility server",
		applog.FieldOperation, applog.OpStartup,
		"port", cfg.Port,
		"cache_size", cfg.CacheSize,
		"goal_configured", cfg.GoalConfigured(),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", applog.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
