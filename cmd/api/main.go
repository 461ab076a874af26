package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/auth"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/broker"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/config"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/gateway"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/logging"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/metrics"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/storage"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/store"

	_ "github.com/bizmatters/agent-builder/coverletter-orchestrator/docs" // swagger docs
)

// @title Cover Letter Orchestrator API
// @version 1.0
// @description Gateway for the guided cover letter workflow.
// @description
// @description Login, resume analysis requests, the job catalog, saved documents and the
// @description per-user push channel that delivers analysis feedback and notifications.

// @contact.name API Support
// @contact.email support@bizmatters.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT token.

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("gateway stopped", zap.Error(err))
	}
	logger.Info("server exited")
}

func run(cfg *config.ServerConfig, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := initTracer()
	if err != nil {
		return err
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	logger.Info("connecting to PostgreSQL database")
	pool, err := store.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseAttempts, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := store.Migrate(ctx, pool, logger); err != nil {
		return err
	}
	logger.Info("database ready")

	jwtManager, err := auth.NewJWTManager(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT manager: %w", err)
	}

	resumes, err := storage.NewResumeStore(
		storage.WithEndpoint(cfg.S3.Endpoint),
		storage.WithBucket(cfg.S3.Bucket),
		storage.WithRegion(cfg.S3.Region),
		storage.WithAccessKey(cfg.S3.AccessKey),
		storage.WithSecretKey(cfg.S3.SecretKey),
		storage.WithSSL(cfg.S3.UseSSL),
		storage.WithURLExpiry(cfg.S3.URLExpiry),
	)
	if err != nil {
		return err
	}
	if err := resumes.EnsureBucket(ctx); err != nil {
		// Uploads fail until storage is reachable; the rest of the API still works.
		logger.Error("object storage not ready", zap.Error(err))
	}

	saramaCfg := broker.NewSaramaConfig(cfg.Kafka.ClientID)
	producer, err := broker.DialProducer(cfg.Kafka.Brokers, saramaCfg, cfg.Kafka.RequestTopic, logger)
	if err != nil {
		return err
	}
	defer producer.Close()

	group, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID, saramaCfg)
	if err != nil {
		return fmt.Errorf("failed to create kafka consumer group: %w", err)
	}
	defer group.Close()

	pushMetrics, err := metrics.NewPushMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize push metrics: %w", err)
	}
	hub := gateway.NewPushHub(jwtManager, logger.Named("push"), pushMetrics, cfg.PushSendBuffer)
	defer hub.Close()

	handler := gateway.NewHandler(gateway.HandlerConfig{
		Users:         store.NewUserStore(pool),
		Jobs:          store.NewJobStore(pool),
		Documents:     store.NewDocumentStore(pool),
		Resumes:       resumes,
		Publisher:     producer,
		JWTManager:    jwtManager,
		Logger:        logger.Named("gateway"),
		TokenTTL:      cfg.TokenTTL,
		MaxResumeSize: cfg.MaxResumeSize,
	})

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     newRouter(handler, hub, jwtManager, pool, logger),
		ReadTimeout: 15 * time.Second,
		// Push connections are long lived; the hub sets its own write deadlines.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	relay := broker.NewRelay(hub, logger.Named("relay"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting API server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("starting analysis relay", zap.Strings("topics", relay.Topics()))
		return relay.Run(gctx, group)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		hub.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return group.Close()
	})

	return g.Wait()
}

// pinger reports database reachability for /ready.
type pinger interface {
	Ping(ctx context.Context) error
}

func newRouter(handler *gateway.Handler, hub *gateway.PushHub, jwtManager *auth.JWTManager, db pinger, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gateway.LoggingMiddleware(logger.Named("http")))

	// Health checks MUST be at the root for the WebService standard
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"error":  "database connection failed",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	handler.RegisterRoutes(api, hub, auth.RequireAuth(jwtManager, logger.Named("auth")))

	return router
}

// initTracer initializes OpenTelemetry tracing
func initTracer() (*trace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp, nil
}
