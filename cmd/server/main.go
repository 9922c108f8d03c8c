package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appbilling "github.com/facturio/backend/internal/application/billing"
	appfollowup "github.com/facturio/backend/internal/application/followup"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/infrastructure/config"
	"github.com/facturio/backend/internal/infrastructure/document"
	"github.com/facturio/backend/internal/infrastructure/logger"
	"github.com/facturio/backend/internal/infrastructure/messaging"
	"github.com/facturio/backend/internal/infrastructure/persistence"
	"github.com/facturio/backend/internal/infrastructure/scheduler"
	"github.com/facturio/backend/internal/infrastructure/telemetry"
	"github.com/facturio/backend/internal/interfaces/http/handler"
	"github.com/facturio/backend/internal/interfaces/http/middleware"
	"github.com/facturio/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Facturio Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize OpenTelemetry tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Attach query spans to request traces
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBName:          cfg.Database.DBName,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	clock := shared.SystemClock{}

	// Initialize repositories
	quoteRepo := persistence.NewGormQuoteRepository(db.DB, cfg.Billing.QuoteNumberPrefix, clock)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB, cfg.Billing.InvoiceNumPrefix, cfg.Billing.CreditNotePrefix, clock)
	followUpRepo := persistence.NewGormFollowUpRepository(db.DB)
	followUpLogRepo := persistence.NewGormFollowUpLogRepository(db.DB)

	// PDF rendering and document storage. The stub renderer keeps the
	// API functional on hosts without a Chrome install.
	var renderer document.PDFRenderer
	if cfg.Document.RendererEnabled {
		chromeRenderer, err := document.NewChromedpRenderer(&document.ChromedpConfig{
			DefaultTimeout: cfg.Document.RenderTimeout,
			RemoteURL:      cfg.Document.RemoteChromeURL,
			NoSandbox:      cfg.Document.NoSandbox,
			Logger:         log,
		})
		if err != nil {
			log.Fatal("Failed to initialize PDF renderer", zap.Error(err))
		}
		renderer = chromeRenderer
		log.Info("Chromium PDF renderer enabled",
			zap.String("remote_url", cfg.Document.RemoteChromeURL),
		)
	} else {
		renderer = document.NewStubRenderer()
	}
	defer func() {
		if err := renderer.Close(); err != nil {
			log.Error("Error closing PDF renderer", zap.Error(err))
		}
	}()

	var docStorage document.Storage
	if cfg.Document.Storage.Enabled {
		s3Storage, err := document.NewS3Storage(document.S3Config{
			Endpoint:     cfg.Document.Storage.Endpoint,
			Region:       cfg.Document.Storage.Region,
			Bucket:       cfg.Document.Storage.Bucket,
			AccessKey:    cfg.Document.Storage.AccessKey,
			SecretKey:    cfg.Document.Storage.SecretKey,
			UseSSL:       cfg.Document.Storage.UseSSL,
			UsePathStyle: cfg.Document.Storage.UsePathStyle,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize document storage", zap.Error(err))
		}
		docStorage = s3Storage
		log.Info("S3 document storage enabled",
			zap.String("bucket", cfg.Document.Storage.Bucket),
		)
	} else {
		docStorage = document.NewMemoryStorage()
	}

	templateEngine := document.NewTemplateEngine(cfg.Mail.Locale)
	documentService := document.NewService(templateEngine, renderer, docStorage, log)

	// Outbound email
	var sender messaging.Sender
	switch cfg.Mail.Provider {
	case "smtp":
		sender = messaging.NewSMTPSender(messaging.SMTPConfig{
			Host:     cfg.Mail.SMTP.Host,
			Port:     cfg.Mail.SMTP.Port,
			Username: cfg.Mail.SMTP.Username,
			Password: cfg.Mail.SMTP.Password,
			From:     cfg.Mail.From,
			FromName: cfg.Mail.FromName,
		}, log)
	case "postmark":
		sender = messaging.NewPostmarkSender(cfg.Mail.Postmark.ServerToken)
	default:
		sender = messaging.NewNoopSender(log)
		log.Warn("Mail provider not configured, reminders will not be delivered",
			zap.String("provider", cfg.Mail.Provider),
		)
	}
	composer := messaging.NewReminderComposer(cfg.Mail.Locale, cfg.Mail.From)

	// Initialize application services
	quoteService := appbilling.NewQuoteService(quoteRepo, invoiceRepo, clock, cfg.Billing.PaymentTermDays, log)
	followUpScheduler := appfollowup.NewScheduler(
		invoiceRepo,
		followUpRepo,
		nil,
		appfollowup.SchedulerConfig{
			LookAheadDays: cfg.FollowUp.LookAheadDays,
			Thresholds:    stageThresholds(cfg.FollowUp.Thresholds),
		},
		clock,
		log,
	)
	statusController := appbilling.NewInvoiceStatusController(invoiceRepo, followUpRepo, followUpScheduler, clock, log)
	dispatcher := appfollowup.NewDispatcher(
		invoiceRepo,
		followUpRepo,
		followUpLogRepo,
		nil,
		sender,
		composer,
		documentService,
		log,
	)

	// Background sweeps: status refresh, follow-up scheduling, reminder
	// dispatch and stale follow-up recovery.
	if cfg.Scheduler.Enabled {
		runner := scheduler.NewRunner(
			scheduler.RunnerConfig{JobTimeout: cfg.Scheduler.JobTimeout},
			scheduler.BillingTasks(cfg.Scheduler, statusController, followUpScheduler, dispatcher, clock),
			log,
		)
		if err := runner.Start(context.Background()); err != nil {
			log.Fatal("Failed to start background scheduler", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := runner.Stop(stopCtx); err != nil {
				log.Error("Error stopping background scheduler", zap.Error(err))
			}
		}()
	} else {
		log.Warn("Background scheduler disabled, statuses and reminders will not advance")
	}

	// Initialize HTTP handlers
	quoteHandler := handler.NewQuoteHandler(quoteService, quoteRepo)
	invoiceHandler := handler.NewInvoiceHandler(invoiceRepo, statusController, quoteService, documentService)
	followUpHandler := handler.NewFollowUpHandler(followUpRepo, followUpLogRepo, followUpScheduler, dispatcher, clock)
	systemHandler := handler.NewSystemHandler(db)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Tracing - Propagate trace context
	// 5. Security - Add security headers
	// 6. CORS - Handle cross-origin requests
	// 7. BodyLimit - Limit request body size
	// 8. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(quoteHandler).
		Register(invoiceHandler).
		Register(followUpHandler).
		Register(systemHandler)
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// stageThresholds maps the configured escalation ladder into the
// scheduler's representation.
func stageThresholds(in []config.StageThreshold) []appfollowup.StageThreshold {
	out := make([]appfollowup.StageThreshold, 0, len(in))
	for _, th := range in {
		out = append(out, appfollowup.StageThreshold{
			Stage:          th.Stage,
			MinDaysOverdue: th.MinDaysOverdue,
		})
	}
	return out
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
