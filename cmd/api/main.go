package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/estatemap/internal/adapters/http"
	natsadapter "github.com/samirrijal/estatemap/internal/adapters/nats"
	"github.com/samirrijal/estatemap/internal/adapters/postgres"
	"github.com/samirrijal/estatemap/internal/adapters/valkey"
	"github.com/samirrijal/estatemap/internal/core/ports"
	"github.com/samirrijal/estatemap/internal/core/usecases"
	"github.com/samirrijal/estatemap/internal/pkg/config"
	"github.com/samirrijal/estatemap/internal/pkg/logging"
	"github.com/samirrijal/estatemap/internal/pkg/metrics"
	"github.com/samirrijal/estatemap/internal/pkg/telemetry"
)

const poolMetricsInterval = 15 * time.Second

func main() {
	cfg, err := config.Load("estatemap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), postgres.PoolOptions{
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go reportPoolMetrics(ctx, db)

	// Cache (optional)
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, serving uncached", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	// NATS (optional): map update publisher, property event subscriber, WebSocket relay
	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, live updates disabled", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	mapSvc := usecases.NewMapService(postgres.NewPropertyRepo(db), cacheSvc, publisher, cfg.Map.CacheTTLSeconds)

	deps := &http.Dependencies{
		Map:                 mapSvc,
		DB:                  db,
		Cache:               cache,
		DefaultRadiusMeters: cfg.Map.DefaultRadiusMeters,
		MaxRadiusMeters:     cfg.Map.MaxRadiusMeters,
	}

	if pub != nil {
		deps.NATS = pub.Conn()

		sub, err := natsadapter.NewSubscriber(pub.Conn())
		if err != nil {
			slog.Warn("property event subscriber unavailable", "error", err)
		} else if err := sub.SubscribePropertyEvents(ctx, mapSvc.HandlePropertyEvent); err != nil {
			slog.Warn("subscribe property events failed", "error", err)
		} else {
			defer sub.Close()
			slog.Info("listening for property events", "subject", natsadapter.SubjectPropertyEvents)
		}
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "EstateMap API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func reportPoolMetrics(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(poolMetricsInterval)
	defer ticker.Stop()
	for {
		metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
