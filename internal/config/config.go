package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	HTTPPort string

	DatabaseURL string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	SyncEnabled        bool

	// SyncZoneOffset anchors the "today" window for step aggregation. The
	// leaderboard serves a single-location workforce, so a fixed offset is
	// used instead of server-local time (the batch job may run anywhere).
	SyncZoneOffset    time.Duration
	SyncConcurrency   int
	SyncLockTTL       time.Duration
	HTTPClientTimeout time.Duration
	LeaderboardLimit  int

	JWTIssuer       string
	JWTAudience     string
	JWTAccessSecret string
	JWTAccessTTL    time.Duration

	CORSAllowedOrigins  []string
	AuthRateLimitPerMin int
	APIRateLimitPerMin  int
	SyncRateLimitPerMin int

	SeedDemoPassword string

	RedisEnabled   bool
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	ReadinessProbeTimeout  time.Duration
	ServerStartGracePeriod time.Duration

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELLogLevel              string
}

func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")
	googleClientID := os.Getenv("GOOGLE_OAUTH_CLIENT_ID")
	googleClientSecret := os.Getenv("GOOGLE_OAUTH_CLIENT_SECRET")
	syncEnabled := getEnvBool("SYNC_ENABLED", true)
	if _, explicitlySet := os.LookupEnv("SYNC_ENABLED"); !explicitlySet &&
		(googleClientID == "" || googleClientSecret == "") && isLocalLikeEnv(env) {
		syncEnabled = false
	}

	cfg := &Config{
		Env:                 env,
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		GoogleClientID:      googleClientID,
		GoogleClientSecret:  googleClientSecret,
		GoogleRedirectURL:   getEnv("GOOGLE_OAUTH_REDIRECT_URL", "postmessage"),
		SyncEnabled:         syncEnabled,
		SyncConcurrency:     getEnvInt("SYNC_CONCURRENCY", 4),
		LeaderboardLimit:    getEnvInt("LEADERBOARD_LIMIT", 50),
		JWTIssuer:           getEnv("JWT_ISSUER", "step-leaderboard-service"),
		JWTAudience:         getEnv("JWT_AUDIENCE", "step-leaderboard-service-api"),
		JWTAccessSecret:     os.Getenv("JWT_ACCESS_SECRET"),
		CORSAllowedOrigins:  splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		AuthRateLimitPerMin: getEnvInt("AUTH_RATE_LIMIT_PER_MIN", 30),
		APIRateLimitPerMin:  getEnvInt("API_RATE_LIMIT_PER_MIN", 120),
		SyncRateLimitPerMin: getEnvInt("SYNC_RATE_LIMIT_PER_MIN", 2),
		SeedDemoPassword:    os.Getenv("SEED_DEMO_PASSWORD"),
		RedisEnabled:        getEnvBool("REDIS_ENABLED", false),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		RedisKeyPrefix:      getEnv("REDIS_KEY_PREFIX", "stepboard"),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "step-leaderboard-service"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", env),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELTraceSamplingRatio:   getEnvFloat("OTEL_TRACE_SAMPLING_RATIO", 1.0),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", true),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", true),
		OTELLogsEnabled:          getEnvBool("OTEL_LOGS_ENABLED", true),
		OTELLogLevel:             strings.ToLower(getEnv("OTEL_LOG_LEVEL", "info")),
	}

	var err error
	if cfg.SyncZoneOffset, err = parseDurationEnv("SYNC_ZONE_OFFSET", "5h30m"); err != nil {
		return nil, err
	}
	if cfg.SyncLockTTL, err = parseDurationEnv("SYNC_LOCK_TTL", "10m"); err != nil {
		return nil, err
	}
	if cfg.HTTPClientTimeout, err = parseDurationEnv("HTTP_CLIENT_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", "15m"); err != nil {
		return nil, err
	}
	if cfg.ReadinessProbeTimeout, err = parseDurationEnv("READINESS_PROBE_TIMEOUT", "1s"); err != nil {
		return nil, err
	}
	if cfg.ServerStartGracePeriod, err = parseDurationEnv("SERVER_START_GRACE_PERIOD", "0s"); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsExportInterval, err = parseDurationEnv("OTEL_METRICS_EXPORT_INTERVAL", "10s"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if len(c.JWTAccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 chars")
	}
	if c.SyncEnabled && c.GoogleClientID == "" {
		errs = append(errs, "GOOGLE_OAUTH_CLIENT_ID is required when SYNC_ENABLED=true")
	}
	if c.SyncEnabled && c.GoogleClientSecret == "" {
		errs = append(errs, "GOOGLE_OAUTH_CLIENT_SECRET is required when SYNC_ENABLED=true")
	}
	if c.SyncZoneOffset < -12*time.Hour || c.SyncZoneOffset > 14*time.Hour {
		errs = append(errs, "SYNC_ZONE_OFFSET must be between -12h and 14h")
	}
	if c.SyncConcurrency <= 0 {
		errs = append(errs, "SYNC_CONCURRENCY must be > 0")
	}
	if c.SyncLockTTL <= 0 {
		errs = append(errs, "SYNC_LOCK_TTL must be > 0")
	}
	if c.HTTPClientTimeout <= 0 {
		errs = append(errs, "HTTP_CLIENT_TIMEOUT must be > 0")
	}
	if c.LeaderboardLimit <= 0 {
		errs = append(errs, "LEADERBOARD_LIMIT must be > 0")
	}
	if c.JWTAccessTTL <= 0 || c.JWTAccessTTL > time.Hour {
		errs = append(errs, "JWT_ACCESS_TTL must be between 1s and 1h")
	}
	if c.AuthRateLimitPerMin <= 0 {
		errs = append(errs, "AUTH_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.APIRateLimitPerMin <= 0 {
		errs = append(errs, "API_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.SyncRateLimitPerMin <= 0 {
		errs = append(errs, "SYNC_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.RedisEnabled && c.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR is required when REDIS_ENABLED=true")
	}
	if (c.OTELMetricsEnabled || c.OTELTracingEnabled || c.OTELLogsEnabled) && c.OTELExporterOTLPEndpoint == "" {
		errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTel is enabled")
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1")
	}
	if c.OTELMetricsExportInterval <= 0 {
		errs = append(errs, "OTEL_METRICS_EXPORT_INTERVAL must be > 0")
	}
	if !isValidLogLevel(c.OTELLogLevel) {
		errs = append(errs, "OTEL_LOG_LEVEL must be one of debug, info, warn, error")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// SyncZone is the fixed reference timezone for day-window computation.
func (c *Config) SyncZone() *time.Location {
	return time.FixedZone("sync", int(c.SyncZoneOffset/time.Second))
}

func isLocalLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "development", "dev", "local", "test":
		return true
	default:
		return false
	}
}

func isValidLogLevel(v string) bool {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func parseDurationEnv(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, def))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
