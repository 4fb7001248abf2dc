package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sandeepkv93/step-leaderboard-service/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/exemplar"
	"go.opentelemetry.io/otel/sdk/resource"
)

type AppMetrics struct {
	authLoginCounter            metric.Int64Counter
	tokenRefreshCounter         metric.Int64Counter
	fitnessSourceQueryCounter   metric.Int64Counter
	fitnessSourceQueryDuration  metric.Float64Histogram
	syncRunDuration             metric.Float64Histogram
	syncUserOutcomeCounter      metric.Int64Counter
	syncRunCounter              metric.Int64Counter
	stepsReportedHistogram      metric.Float64Histogram
	apiRequestDuration          metric.Float64Histogram
	middlewareValidationCounter metric.Int64Counter
	rateLimitDecisionCounter    metric.Int64Counter
	rateLimitRetryAfter         metric.Float64Histogram
	healthCheckResultCounter    metric.Int64Counter
	healthCheckDuration         metric.Float64Histogram
	databaseStartupCounter      metric.Int64Counter
	databaseStartupDuration     metric.Float64Histogram
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithExemplarFilter(exemplar.TraceBasedFilter),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: "api.request.duration"},
			sdkmetric.Stream{
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
				},
			},
		)),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: "sync.run.duration"},
			sdkmetric.Stream{
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
				},
			},
		)),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("step-leaderboard-service")
	loginCounter, err := meter.Int64Counter("auth.login.attempts")
	if err != nil {
		return nil, err
	}
	tokenRefreshCounter, err := meter.Int64Counter("sync.token_refresh.events")
	if err != nil {
		return nil, err
	}
	fitnessSourceQueryCounter, err := meter.Int64Counter("fitness.source_query.events")
	if err != nil {
		return nil, err
	}
	fitnessSourceQueryDuration, err := meter.Float64Histogram(
		"fitness.source_query.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of per-source fitness aggregate queries in seconds"),
	)
	if err != nil {
		return nil, err
	}
	syncRunDuration, err := meter.Float64Histogram(
		"sync.run.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Wall-clock duration of a full sync-all run in seconds"),
	)
	if err != nil {
		return nil, err
	}
	syncUserOutcomeCounter, err := meter.Int64Counter("sync.user.outcomes")
	if err != nil {
		return nil, err
	}
	syncRunCounter, err := meter.Int64Counter("sync.run.events")
	if err != nil {
		return nil, err
	}
	stepsReportedHistogram, err := meter.Float64Histogram(
		"steps.reported",
		metric.WithDescription("Step counts submitted via the manual update endpoint"),
	)
	if err != nil {
		return nil, err
	}
	apiRequestDuration, err := meter.Float64Histogram(
		"api.request.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of API endpoint requests in seconds"),
	)
	if err != nil {
		return nil, err
	}
	middlewareValidationCounter, err := meter.Int64Counter("http.middleware.validation.events")
	if err != nil {
		return nil, err
	}
	rateLimitDecisionCounter, err := meter.Int64Counter("http.rate_limit.decisions")
	if err != nil {
		return nil, err
	}
	rateLimitRetryAfter, err := meter.Float64Histogram(
		"http.rate_limit.retry_after",
		metric.WithUnit("s"),
		metric.WithDescription("Retry-after duration in seconds for throttled requests"),
	)
	if err != nil {
		return nil, err
	}
	healthCheckResultCounter, err := meter.Int64Counter("health.check.results")
	if err != nil {
		return nil, err
	}
	healthCheckDuration, err := meter.Float64Histogram(
		"health.check.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of health dependency checks in seconds"),
	)
	if err != nil {
		return nil, err
	}
	databaseStartupCounter, err := meter.Int64Counter("database.startup.events")
	if err != nil {
		return nil, err
	}
	databaseStartupDuration, err := meter.Float64Histogram(
		"database.startup.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of database connect, migrate and seed phases in seconds"),
	)
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appMetrics = &AppMetrics{
		authLoginCounter:            loginCounter,
		tokenRefreshCounter:         tokenRefreshCounter,
		fitnessSourceQueryCounter:   fitnessSourceQueryCounter,
		fitnessSourceQueryDuration:  fitnessSourceQueryDuration,
		syncRunDuration:             syncRunDuration,
		syncUserOutcomeCounter:      syncUserOutcomeCounter,
		syncRunCounter:              syncRunCounter,
		stepsReportedHistogram:      stepsReportedHistogram,
		apiRequestDuration:          apiRequestDuration,
		middlewareValidationCounter: middlewareValidationCounter,
		rateLimitDecisionCounter:    rateLimitDecisionCounter,
		rateLimitRetryAfter:         rateLimitRetryAfter,
		healthCheckResultCounter:    healthCheckResultCounter,
		healthCheckDuration:         healthCheckDuration,
		databaseStartupCounter:      databaseStartupCounter,
		databaseStartupDuration:     databaseStartupDuration,
	}
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func RecordAuthLogin(ctx context.Context, provider, status string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.authLoginCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

func RecordTokenRefresh(ctx context.Context, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.tokenRefreshCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordFitnessSourceQuery(ctx context.Context, source, outcome string, duration time.Duration) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("outcome", outcome),
	)
	m.fitnessSourceQueryCounter.Add(ctx, 1, attrs)
	m.fitnessSourceQueryDuration.Record(ctx, duration.Seconds(), attrs)
}

func RecordSyncRunDuration(ctx context.Context, duration time.Duration) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.syncRunDuration.Record(ctx, duration.Seconds())
}

func RecordSyncUserOutcome(ctx context.Context, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.syncUserOutcomeCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordSyncRunEvent(ctx context.Context, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.syncRunCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordStepsReported(ctx context.Context, steps int) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.stepsReportedHistogram.Record(ctx, float64(steps))
}

func RecordAPIRequestDuration(ctx context.Context, endpoint, status string, duration time.Duration) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.apiRequestDuration.Record(
		ctx,
		duration.Seconds(),
		metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("status", status),
		),
	)
}

func RecordMiddlewareValidationEvent(ctx context.Context, check, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.middlewareValidationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("check", check),
		attribute.String("outcome", outcome),
	))
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome, mode, keyType string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.rateLimitDecisionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
		attribute.String("mode", mode),
		attribute.String("key_type", keyType),
	))
}

func RecordRateLimitRetryAfter(ctx context.Context, scope, reason string, retryAfter time.Duration) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.rateLimitRetryAfter.Record(ctx, retryAfter.Seconds(), metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("reason", reason),
	))
}

func RecordHealthCheckResult(ctx context.Context, check, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.healthCheckResultCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("check", check),
		attribute.String("outcome", outcome),
	))
}

func RecordHealthCheckDuration(ctx context.Context, check string, duration time.Duration) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.healthCheckDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("check", check),
	))
}

func RecordDatabaseStartupEvent(ctx context.Context, phase, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.databaseStartupCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("phase", phase),
		attribute.String("outcome", outcome),
	))
}

func RecordDatabaseStartupDuration(ctx context.Context, phase string, duration time.Duration) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.databaseStartupDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("phase", phase),
	))
}
