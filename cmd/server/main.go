package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aryan0dhankhar/projecthub/internal/domain"
	"github.com/aryan0dhankhar/projecthub/internal/handler"
	"github.com/aryan0dhankhar/projecthub/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/projecthub/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/projecthub/internal/observability/metrics"
	"github.com/aryan0dhankhar/projecthub/internal/observability/tracing"
	"github.com/aryan0dhankhar/projecthub/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/projecthub/internal/reliability/retry"
	"github.com/aryan0dhankhar/projecthub/internal/repository"
	"github.com/aryan0dhankhar/projecthub/internal/security"
	"github.com/aryan0dhankhar/projecthub/internal/security/audit"
	"github.com/aryan0dhankhar/projecthub/internal/security/auth"
	"github.com/aryan0dhankhar/projecthub/internal/security/middleware"
	"github.com/aryan0dhankhar/projecthub/internal/security/ratelimit"
	"github.com/aryan0dhankhar/projecthub/internal/service"
	"github.com/aryan0dhankhar/projecthub/pkg/config"
	"github.com/aryan0dhankhar/projecthub/pkg/database"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting projecthub server", slog.String("environment", cfg.Environment))
	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET not set, using the development default")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing
	shutdownTracing, err := tracing.Init(ctx, log, tracing.Options{
		ServiceName: "projecthub",
		Environment: cfg.Environment,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    !cfg.IsProduction(),
	})
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Postgres, with migrations applied before serving
	dbConfig := &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Name,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	pool, err := retry.Do(ctx, retry.DefaultConfig(), log, "connect postgres", func(ctx context.Context) (*database.ConnectionPool, error) {
		return database.NewConnectionPool(ctx, dbConfig, log)
	})
	if err != nil {
		log.Error("failed to connect to Postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Migrate(); err != nil {
		log.Error("failed to apply migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	metrics.RegisterDBStats(pool.GetDB())
	readiness := map[string]handler.Checker{"postgres": pool.Health}

	// 5. Redis is optional unless it backs the sequence allocator
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = retry.Do(ctx, retry.DefaultConfig(), log, "connect redis", func(context.Context) (*redis.Client, error) {
			return redis.NewClient(cfg.RedisURL)
		})
		if err != nil {
			log.Error("failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()
		readiness["redis"] = redisClient.Ping
	}

	// 6. Initialize repositories
	db := pool.GetDB()
	memberRepo := repository.NewPostgresMemberRepository(db, log)
	projectRepo := repository.NewPostgresProjectRepository(db, log)

	var sequences domain.SequenceAllocator
	switch cfg.SequenceBackend {
	case config.SequenceBackendRedis:
		breaker := circuitbreaker.New(5, 2, 30*time.Second)
		breaker.OnStateChange(func(from, to circuitbreaker.State) {
			log.Warn("redis sequence breaker changed state",
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		})
		sequences = repository.NewRedisSequenceAllocator(redisClient, breaker, log)
	default:
		sequences = repository.NewPostgresSequenceAllocator(db, log)
	}

	// 7. Initialize security components
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, "projecthub", cfg.TokenTTL)
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	policy := security.CreatorOrAdmin
	if cfg.StrictOwnership {
		policy = security.CreatorOnly
	}
	authorizer := security.NewAuthorizer(policy, log)
	proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Error("invalid TRUSTED_PROXIES", slog.String("error", err.Error()))
		os.Exit(1)
	}
	loginLimiter := ratelimit.NewLimiter(cfg.LoginRatePerMinute, time.Minute)
	auditLogger := audit.NewLogger(log)

	// 8. Initialize services
	memberService := service.NewMemberService(memberRepo, hasher, log)
	authService := service.NewAuthService(memberRepo, hasher, tokenManager, log)
	projectService := service.NewProjectService(projectRepo, memberRepo, sequences, authorizer, log)

	// 9. Setup HTTP routes
	mux := handler.NewRouter(handler.RouterDeps{
		Members:      handler.NewMemberHandler(memberService, log),
		Projects:     handler.NewProjectHandler(projectService, log),
		Auth:         handler.NewAuthHandler(authService, log),
		Health:       handler.NewHealthHandler(readiness, log),
		Tokens:       tokenManager,
		Resolver:     authService,
		LoginLimiter: loginLimiter,
		Proxies:      proxies,
		Audit:        auditLogger,
		Metrics:      promhttp.Handler(),
		Logger:       log,
	})

	// Chain middleware: tracing -> request ID -> metrics -> request log -> CORS -> input checks -> mux.
	// Responses written before routing (preflights, 415s) are counted under route "unmatched".
	var root http.Handler = metrics.CaptureRoute(mux)
	root = middleware.SanitizeInputs(log)(root)
	root = middleware.ValidateJSONContentType(log)(root)
	root = middleware.CORS(cfg.CORSAllowedOrigins)(root)
	root = middleware.RequestLogger(log)(root)
	root = metrics.HTTPMetricsMiddleware(root)
	root = middleware.RequestID(root)
	root = otelhttp.NewHandler(root, "projecthub.http")

	// 10. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("sequence_backend", cfg.SequenceBackend),
		slog.String("ownership_policy", policy.String()),
		slog.Int("login_rate_per_minute", cfg.LoginRatePerMinute),
		slog.Int("trusted_proxies", len(cfg.TrustedProxies)),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-sigChan:
		log.Info("shutdown signal received")
	case err := <-serverErr:
		log.Error("server error", slog.String("error", err.Error()))
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	cancel()
	loginLimiter.Stop()
	log.Info("server stopped")
}
