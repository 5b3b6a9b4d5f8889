package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/hoken-app/insurance-portal/internal/notification/adapters/http/handlers"
	"github.com/hoken-app/insurance-portal/internal/notification/adapters/messaging"
	"github.com/hoken-app/insurance-portal/internal/notification/adapters/repository/mongodb"
	"github.com/hoken-app/insurance-portal/internal/notification/app/service"
	"github.com/hoken-app/insurance-portal/internal/platform/cache"
	"github.com/hoken-app/insurance-portal/internal/platform/config"
	"github.com/hoken-app/insurance-portal/internal/platform/database"
	"github.com/hoken-app/insurance-portal/internal/platform/health"
	"github.com/hoken-app/insurance-portal/internal/platform/logger"
	"github.com/hoken-app/insurance-portal/internal/platform/messaging/kafka"
	"github.com/hoken-app/insurance-portal/internal/platform/metrics"
	"github.com/hoken-app/insurance-portal/internal/platform/middleware"
	"github.com/hoken-app/insurance-portal/internal/platform/resilience"
	"github.com/hoken-app/insurance-portal/internal/platform/response"
	"github.com/hoken-app/insurance-portal/internal/platform/telemetry"
)

const maxRequestBytes = 1 << 20

type Server struct {
	config              *config.Config
	logger              logger.Logger
	telemetry           *telemetry.Telemetry
	httpServer          *http.Server
	db                  *database.DB
	cache               *cache.RedisCache
	eventPublisher      *kafka.EventPublisher
	consumer            *kafka.Consumer
	metrics             *metrics.Metrics
	health              *health.Handler
	notificationService *service.NotificationService

	consumerCtx    context.Context
	consumerCancel context.CancelFunc
	consumerDone   sync.WaitGroup
}

type Option func(*Server)

func WithConfig(cfg *config.Config) Option {
	return func(s *Server) {
		s.config = cfg
	}
}

func WithLogger(logger logger.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithTelemetry(telemetry *telemetry.Telemetry) Option {
	return func(s *Server) {
		s.telemetry = telemetry
	}
}

func New(ctx context.Context, opts ...Option) (*Server, error) {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}

	if s.config == nil {
		return nil, errors.New("config is required")
	}
	if s.logger == nil {
		s.logger = logger.NewNop()
	}

	if err := s.initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	return s, nil
}

func (s *Server) initialize(ctx context.Context) error {
	opts := []service.Option{}
	if s.telemetry != nil {
		s.metrics = metrics.NewMetrics("notification", s.telemetry.Registry())
		opts = append(opts, service.WithTracer(s.telemetry.Tracer()))
	} else {
		s.metrics = metrics.NewMetrics("notification", nil)
	}
	opts = append(opts, service.WithMetrics(s.metrics))

	s.health = health.NewHandler(s.config.Service.Name, s.config.Version)

	// Initialize database
	db, err := database.New(ctx, s.config.Mongo)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	s.db = db
	s.health.AddCheck("mongodb", health.FromPinger(db))

	// Initialize cache (optional)
	if s.config.Redis.Host != "" {
		redisCache, err := cache.NewRedisCache(ctx, s.config.Redis, "notification")
		if err != nil {
			s.logger.Warn("Failed to initialize Redis cache", "error", err)
		} else {
			s.cache = redisCache
			s.health.AddOptionalCheck("redis", health.FromPinger(redisCache))

			breakerCfg := resilience.DefaultCircuitBreakerConfig("redis")
			breakerCfg.OnStateChange = func(name string, from, to resilience.State) {
				s.logger.Warn("Cache circuit breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
				s.metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			}
			opts = append(opts, service.WithCountCache(resilience.GuardCache(redisCache, breakerCfg), s.config.Redis.CountTTL))
		}
	}

	// Initialize Kafka (optional)
	if len(s.config.Kafka.Brokers) > 0 {
		publisher, err := kafka.NewEventPublisher(s.config.Kafka, s.logger, s.metrics)
		if err != nil {
			s.logger.Warn("Failed to initialize Kafka publisher", "error", err)
		} else {
			s.eventPublisher = publisher
			opts = append(opts, service.WithPublisher(publisher))
		}
	}

	// Initialize repositories
	// The unique message_id index that makes CreateBroadcast idempotent is
	// created by cmd/services/migration, which must run before the service.
	notificationRepo := mongodb.NewNotificationRepository(db.Notifications(), mongodb.WithLogger(s.logger))
	readStatusRepo := mongodb.NewReadStatusRepository(db.ReadStatus())

	// Initialize service
	s.notificationService = service.NewNotificationService(notificationRepo, readStatusRepo, s.logger, opts...)

	// Broadcast ingestion (optional)
	if len(s.config.Kafka.Brokers) > 0 && len(s.config.Kafka.BroadcastTopics) > 0 {
		handler := messaging.NewBroadcastHandler(s.notificationService, s.logger)
		consumer, err := kafka.NewConsumer(s.config.Kafka, handler.Handle, s.logger, s.metrics)
		if err != nil {
			s.logger.Warn("Failed to initialize Kafka consumer", "error", err)
		} else {
			s.consumer = consumer
			s.consumerCtx, s.consumerCancel = context.WithCancel(context.Background())
		}
	}

	// Setup HTTP server
	s.setupHTTPServer()

	return nil
}

func (s *Server) setupHTTPServer() {
	router := mux.NewRouter()

	// Add middleware
	router.Use(s.recoveryMiddleware)
	router.Use(logger.HTTPMiddleware(s.logger))
	router.Use(s.metrics.HTTPMetricsMiddleware())
	router.Use(middleware.SecurityHeaders("/api/v1/user_notification"))
	router.Use(middleware.RequestSizeLimit(maxRequestBytes))

	// Add auth middleware
	auth := middleware.NewAuthMiddleware(
		[]byte(s.config.Auth.JWTSecret),
		middleware.WithSessionCookie(s.config.Auth.SessionCookie),
		middleware.WithAdminRole(s.config.Auth.AdminRole),
		middleware.WithRejectHook(func(reason string) {
			s.metrics.AuthFailures.WithLabelValues(reason).Inc()
		}),
	)
	router.Use(auth.Middleware)

	// Health checks
	router.HandleFunc("/health/live", s.health.LivenessHandler()).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", s.health.ReadinessHandler()).Methods(http.MethodGet)
	router.HandleFunc("/health", s.health.HealthHandler()).Methods(http.MethodGet)
	router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	// API routes
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.RateLimit(&middleware.RateLimitConfig{
		RequestsPerMinute: s.config.HTTP.RateLimitPerMinute,
		BurstSize:         s.config.HTTP.RateLimitBurst,
		OnLimited: func(key string) {
			s.metrics.RateLimited.Inc()
		},
	}))

	notificationHandler := handlers.NewNotificationHandler(s.notificationService, s.logger)
	notificationHandler.RegisterRoutes(apiRouter, handlers.Guards{
		Owner: auth.RequireOwner("user_id"),
		Admin: auth.RequireRole(s.config.Auth.AdminRole),
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.HTTP.Port),
		Handler:      middleware.CORS(middleware.DefaultCORSConfig(s.config.HTTP.CORSOrigins...))(router),
		ReadTimeout:  s.config.HTTP.ReadTimeout,
		WriteTimeout: s.config.HTTP.WriteTimeout,
		IdleTimeout:  s.config.HTTP.IdleTimeout,
	}
}

// Start runs the broadcast consumer in the background and blocks serving HTTP
func (s *Server) Start() error {
	if s.consumer != nil {
		s.consumerDone.Add(1)
		go func() {
			defer s.consumerDone.Done()
			if err := s.consumer.Run(s.consumerCtx); err != nil {
				s.logger.Error("Kafka consumer stopped", "error", err)
			}
		}()
	}

	s.logger.Info("Starting HTTP server", "port", s.config.HTTP.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.consumer != nil {
		s.consumerCancel()
		_ = s.consumer.Close()
		s.consumerDone.Wait()
	}
	if s.eventPublisher != nil {
		_ = s.eventPublisher.Close()
	}
	if s.cache != nil {
		_ = s.cache.Close()
	}
	if s.db != nil {
		_ = s.db.Close(ctx)
	}

	return nil
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered", "error", err, "path", r.URL.Path)
				response.Error(w, response.ErrInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
