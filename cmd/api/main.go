package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"docex/docs"
	"docex/internal/config"
	"docex/internal/extractor"
	handlers "docex/internal/http/handler"
	"docex/internal/http/middleware"
	"docex/internal/logger"
	"docex/internal/metrics"
	"docex/internal/otel"
	"docex/internal/repository/memory"
	"docex/internal/service"
	"docex/internal/worker"
)

const shutdownTimeout = 30 * time.Second

// @title Document Extraction API
// @version 1.0
// @description Asynchronous field extraction from ID document images.
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, os.Stdout)

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize tracing")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	jobMetrics, err := metrics.NewJobMetrics(reg)
	if err != nil {
		log.WithError(err).Fatal("failed to register job metrics")
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.WithError(err).Fatal("failed to register http metrics")
	}

	// Job lifecycle engine: registry, runner, worker pool, reaper
	repo := memory.NewJobMemory()
	ex := extractor.NewFireworksClient(cfg.Fireworks, log)
	runner := service.NewTaskRunner(repo, ex, cfg.Fireworks.Timeout, jobMetrics, log)
	pool := worker.NewPool(log,
		worker.WithWorkers(cfg.Jobs.Workers),
		worker.WithQueueSize(cfg.Jobs.QueueSize),
		worker.WithPanicHandler(runner.HandlePanic),
	)
	reaper := service.NewReaper(repo, cfg.Jobs.Retention(), jobMetrics, log)
	jobSvc := service.NewJobService(repo, runner, reaper, pool, jobMetrics, log)

	appCfg := handlers.ServerConfig(cfg.Upload)
	appCfg.DisableStartupMessage = true
	app := fiber.New(appCfg)

	// Register global middleware
	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger(log))
	app.Use(httpMetrics.Handler())
	app.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// Register HTTP routes with injected service
	handlers.RegisterRoutes(app, cfg.Upload, jobSvc)

	if cfg.SwaggerEnabled {
		// Swagger UI with dynamic host and scheme
		app.Get("/swagger/*", func(c *fiber.Ctx) error {
			scheme := c.Protocol()
			if proto := c.Get("X-Forwarded-Proto"); proto != "" {
				scheme = strings.Split(proto, ",")[0]
			}

			docs.SwaggerInfo.Host = c.Get("Host")
			docs.SwaggerInfo.Schemes = []string{scheme}

			return swagger.HandlerDefault(c)
		})
	}

	addr := ":" + cfg.Port
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return reaper.Run(gctx, cfg.Jobs.CleanupInterval)
	})

	g.Go(func() error {
		log.WithFields(logrus.Fields{"addr": addr, "app_host": cfg.AppHost}).Info("server_started")
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	// Shutdown order: stop accepting requests, drain queued jobs, flush spans.
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.WithError(err).Error("http shutdown")
		}
		if err := pool.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("worker pool shutdown")
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.WithError(err).Error("tracer shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
	log.Info("shutdown complete")
}

// corsConfig allows credentials only for an explicit origin list; fiber
// rejects credentials combined with a wildcard origin.
func corsConfig(origins []string) cors.Config {
	return cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept," + middleware.RequestIDHeader,
		ExposeHeaders:    middleware.RequestIDHeader,
		AllowCredentials: !slices.Contains(origins, "*"),
	}
}
