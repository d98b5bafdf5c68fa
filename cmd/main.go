// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Shivanand-hulikatti/mentor-booking/internal/auth"
	"github.com/Shivanand-hulikatti/mentor-booking/internal/config"
	"github.com/Shivanand-hulikatti/mentor-booking/internal/database"
	"github.com/Shivanand-hulikatti/mentor-booking/internal/events"
	"github.com/Shivanand-hulikatti/mentor-booking/internal/handler"
	"github.com/Shivanand-hulikatti/mentor-booking/internal/model"
	"github.com/Shivanand-hulikatti/mentor-booking/internal/notify"
	"github.com/Shivanand-hulikatti/mentor-booking/internal/repository"
	"github.com/Shivanand-hulikatti/mentor-booking/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	// ── 1. Connect to PostgreSQL ──────────────────────────────────────────
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("connected to postgres", zap.String("host", cfg.Database.Host))

	// ── 2. Outbound integrations ──────────────────────────────────────────
	verifier := newVerifier(cfg.Auth, logger)

	emailLogs := repository.NewEmailLogRepository(pool, cfg.Database.QueryTimeout)
	var mailer notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.Mail.Enabled() {
		mailer = notify.NewGraphMailer(notify.GraphConfig{
			ClientID:     cfg.Mail.ClientID,
			ClientSecret: cfg.Mail.ClientSecret,
			TokenURL:     cfg.Mail.ResolvedTokenURL(),
			BaseURL:      cfg.Mail.GraphBaseURL,
			FromUser:     cfg.Mail.FromUser,
		}, nil, logger)
	} else {
		logger.Warn("mail provider not configured, notifications will be logged only")
	}
	notifier := notify.NewRecordingNotifier(mailer, emailLogs, logger)

	var publisher events.Publisher = events.Nop{}
	if cfg.Events.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
		if err != nil {
			logger.Fatal("rabbitmq", zap.Error(err))
		}
		defer amqpPub.Close()
		publisher = amqpPub
		logger.Info("publishing booking events", zap.String("exchange", cfg.Events.Exchange))
	}

	var rdb *redis.Client
	if cfg.RateLimit.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
	}

	// ── 3. Wire up layers ────────────────────────────────────────────────
	slotRepo := repository.NewSlotRepository(pool, cfg.Database.QueryTimeout)
	bookingRepo := repository.NewBookingRepository(pool, cfg.Database.QueryTimeout)
	availabilitySvc := service.NewAvailabilityService(slotRepo)
	bookingSvc := service.NewBookingService(service.BookingDeps{
		Store:             bookingRepo,
		Emails:            emailLogs,
		Notifier:          notifier,
		Events:            publisher,
		Templates:         notify.Templates{Brand: cfg.Mail.Brand},
		Logger:            logger,
		EnforcePartyCheck: cfg.Auth.EnforcePartyCheck,
	})
	bookingHandler := handler.NewBookingHandler(availabilitySvc, bookingSvc, logger)

	// ── 4. Build the router ───────────────────────────────────────────────
	r := handler.NewRouter(logger)
	r.Use(handler.CORS(cfg.Server.CORSAllowedOrigins))

	// Health
	r.Get("/health", handler.HealthCheck)

	// API routes
	r.Group(func(r chi.Router) {
		r.Use(handler.Authenticate(verifier, logger))
		if rdb != nil {
			r.Use(handler.RateLimit(handler.NewRedisCounter(rdb), cfg.RateLimit.Requests, cfg.RateLimit.Window, logger))
		}
		bookingHandler.Routes(r)
	})

	// ── 5. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Run in background goroutine so we can listen for shutdown signal.
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newVerifier(cfg config.AuthConfig, logger *zap.Logger) auth.Verifier {
	if cfg.Mode == "jwt" {
		if cfg.JWTSecret == "" {
			logger.Warn("SUPABASE_JWT_SECRET is empty, every request will be rejected")
			return auth.VerifierFunc(func(context.Context, string) (model.Identity, error) {
				return model.Identity{}, auth.ErrConfig
			})
		}
		return auth.NewJWTVerifier(cfg.JWTSecret)
	}
	if cfg.SupabaseURL == "" || cfg.SupabaseAnonKey == "" {
		logger.Warn("SUPABASE_URL or SUPABASE_ANON_KEY is empty, every request will be rejected")
	}
	return auth.NewSupabaseVerifier(cfg.SupabaseURL, cfg.SupabaseAnonKey, nil, logger)
}

func newLogger(level string) *zap.Logger {
	zc := zap.NewProductionConfig()
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		zc.Level = lvl
	}
	logger, _ := zc.Build()
	return logger
}
