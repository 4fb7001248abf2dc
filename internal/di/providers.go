package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sandeepkv93/step-leaderboard-service/internal/app"
	"github.com/sandeepkv93/step-leaderboard-service/internal/config"
	"github.com/sandeepkv93/step-leaderboard-service/internal/database"
	"github.com/sandeepkv93/step-leaderboard-service/internal/fitness"
	"github.com/sandeepkv93/step-leaderboard-service/internal/health"
	"github.com/sandeepkv93/step-leaderboard-service/internal/http/handler"
	"github.com/sandeepkv93/step-leaderboard-service/internal/http/middleware"
	"github.com/sandeepkv93/step-leaderboard-service/internal/http/router"
	"github.com/sandeepkv93/step-leaderboard-service/internal/observability"
	"github.com/sandeepkv93/step-leaderboard-service/internal/repository"
	"github.com/sandeepkv93/step-leaderboard-service/internal/security"
	"github.com/sandeepkv93/step-leaderboard-service/internal/service"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideReadinessProbeRunner,
)

var RepositorySet = wire.NewSet(
	repository.NewCredentialRepository,
)

var SecuritySet = wire.NewSet(
	provideJWTManager,
)

var ServiceSet = wire.NewSet(
	service.NewGoogleOAuthProvider,
	wire.Bind(new(service.OAuthProvider), new(*service.GoogleOAuthProvider)),
	service.NewAuthService,
	wire.Bind(new(service.AuthServiceInterface), new(*service.AuthService)),
	provideTokenRefresher,
	provideFitnessClient,
	wire.Bind(new(service.StepAggregator), new(*fitness.Client)),
	provideRunLock,
	provideSyncService,
	wire.Bind(new(service.SyncServiceInterface), new(*service.SyncService)),
	provideLeaderboardService,
	wire.Bind(new(service.LeaderboardServiceInterface), new(*service.LeaderboardService)),
)

var HTTPSet = wire.NewSet(
	handler.NewAuthHandler,
	handler.NewLeaderboardHandler,
	handler.NewSyncHandler,
	provideGlobalRateLimiter,
	provideAuthRateLimiter,
	provideSyncRateLimiter,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(provideApp)

type MigrationRunner struct {
	cfg *config.Config
	db  *gorm.DB
}

func NewMigrationRunner(cfg *config.Config, db *gorm.DB) *MigrationRunner {
	return &MigrationRunner{cfg: cfg, db: db}
}

func (m *MigrationRunner) Run() error {
	if err := database.Migrate(m.db); err != nil {
		return err
	}
	if err := database.Seed(m.db, m.cfg.SeedDemoPassword); err != nil {
		return err
	}
	fmt.Println("migration complete")
	return nil
}

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

func provideOpenDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg)
}

func provideRuntimeDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	if err := database.Seed(db, cfg.SeedDemoPassword); err != nil {
		return nil, err
	}
	return db, nil
}

func provideRedisClient(cfg *config.Config) redis.UniversalClient {
	if !cfg.RedisEnabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret, cfg.JWTAccessTTL)
}

// provideTokenRefresher returns nil when sync is disabled; the sync service
// reports runs as not configured in that case instead of failing startup.
func provideTokenRefresher(cfg *config.Config) (service.TokenRefresher, error) {
	if !cfg.SyncEnabled || cfg.GoogleClientSecret == "" {
		return nil, nil
	}
	return service.NewGoogleTokenRefresher(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.HTTPClientTimeout)
}

func provideFitnessClient(cfg *config.Config) *fitness.Client {
	return fitness.NewClient(cfg.HTTPClientTimeout)
}

func provideRunLock(cfg *config.Config, redisClient redis.UniversalClient) service.RunLock {
	if cfg.RedisEnabled && redisClient != nil {
		return service.NewRedisRunLock(redisClient, cfg.RedisKeyPrefix, cfg.SyncLockTTL)
	}
	return service.NewLocalRunLock()
}

func provideSyncService(
	repo repository.CredentialRepository,
	refresher service.TokenRefresher,
	aggregator service.StepAggregator,
	lock service.RunLock,
	cfg *config.Config,
) *service.SyncService {
	return service.NewSyncService(repo, refresher, aggregator, lock, cfg.SyncZone(), cfg.SyncConcurrency)
}

func provideLeaderboardService(repo repository.CredentialRepository, cfg *config.Config) *service.LeaderboardService {
	return service.NewLeaderboardService(repo, cfg.LeaderboardLimit)
}

func provideGlobalRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.GlobalRateLimiterFunc {
	if cfg.RedisEnabled && redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, cfg.RedisKeyPrefix+":rl:api")
		return middleware.NewDistributedRateLimiter(
			redisLimiter,
			cfg.APIRateLimitPerMin,
			time.Minute,
			middleware.FailOpen,
			"api",
		).Middleware()
	}
	return middleware.NewRateLimiter(cfg.APIRateLimitPerMin, time.Minute).Middleware()
}

func provideAuthRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.AuthRateLimiterFunc {
	if cfg.RedisEnabled && redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, cfg.RedisKeyPrefix+":rl:auth")
		return middleware.NewDistributedRateLimiter(
			redisLimiter,
			cfg.AuthRateLimitPerMin,
			time.Minute,
			middleware.FailClosed,
			"auth",
		).Middleware()
	}
	return middleware.NewRateLimiter(cfg.AuthRateLimitPerMin, time.Minute).Middleware()
}

func provideSyncRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.SyncRateLimiterFunc {
	if cfg.RedisEnabled && redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, cfg.RedisKeyPrefix+":rl:sync")
		return middleware.NewDistributedRateLimiter(
			redisLimiter,
			cfg.SyncRateLimitPerMin,
			time.Minute,
			middleware.FailClosed,
			"sync",
		).Middleware()
	}
	return middleware.NewRateLimiter(cfg.SyncRateLimitPerMin, time.Minute).Middleware()
}

func provideRouterDependencies(
	authHandler *handler.AuthHandler,
	leaderboardHandler *handler.LeaderboardHandler,
	syncHandler *handler.SyncHandler,
	jwt *security.JWTManager,
	globalRateLimiter router.GlobalRateLimiterFunc,
	authRateLimiter router.AuthRateLimiterFunc,
	syncRateLimiter router.SyncRateLimiterFunc,
	readiness *health.ProbeRunner,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		AuthHandler:        authHandler,
		LeaderboardHandler: leaderboardHandler,
		SyncHandler:        syncHandler,
		JWTManager:         jwt,
		CORSOrigins:        cfg.CORSAllowedOrigins,
		AuthRateLimitRPM:   cfg.AuthRateLimitPerMin,
		SyncRateLimitRPM:   cfg.SyncRateLimitPerMin,
		APIRateLimitRPM:    cfg.APIRateLimitPerMin,
		GlobalRateLimiter:  globalRateLimiter,
		AuthRateLimiter:    authRateLimiter,
		SyncRateLimiter:    syncRateLimiter,
		Readiness:          readiness,
		EnableOTelHTTP:     cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideReadinessProbeRunner(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient) *health.ProbeRunner {
	checkers := make([]health.Checker, 0, 2)
	if c := health.NewDBChecker(db); c != nil {
		checkers = append(checkers, c)
	}
	if cfg.RedisEnabled {
		if c := health.NewRedisChecker(redisClient); c != nil {
			checkers = append(checkers, c)
		}
	}
	return health.NewProbeRunner(cfg.ReadinessProbeTimeout, cfg.ServerStartGracePeriod, checkers...)
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient redis.UniversalClient,
	readiness *health.ProbeRunner,
) *app.App {
	return app.New(cfg, logger, server, runtime, db, redisClient, readiness)
}
