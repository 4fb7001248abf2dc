package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/step-leaderboard-service/internal/health"
	"github.com/sandeepkv93/step-leaderboard-service/internal/http/handler"
	"github.com/sandeepkv93/step-leaderboard-service/internal/http/middleware"
	"github.com/sandeepkv93/step-leaderboard-service/internal/http/response"
	"github.com/sandeepkv93/step-leaderboard-service/internal/security"
)

type Dependencies struct {
	AuthHandler        *handler.AuthHandler
	LeaderboardHandler *handler.LeaderboardHandler
	SyncHandler        *handler.SyncHandler
	JWTManager         *security.JWTManager
	CORSOrigins        []string
	AuthRateLimitRPM   int
	SyncRateLimitRPM   int
	APIRateLimitRPM    int
	GlobalRateLimiter  GlobalRateLimiterFunc
	AuthRateLimiter    AuthRateLimiterFunc
	SyncRateLimiter    SyncRateLimiterFunc
	Readiness          *health.ProbeRunner
	EnableOTelHTTP     bool
}

type GlobalRateLimiterFunc func(http.Handler) http.Handler
type AuthRateLimiterFunc func(http.Handler) http.Handler
type SyncRateLimiterFunc func(http.Handler) http.Handler

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))
	if dep.GlobalRateLimiter != nil {
		r.Use(dep.GlobalRateLimiter)
	} else {
		r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute).Middleware())
	}

	authLimiter := dep.AuthRateLimiter
	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute).Middleware()
	}
	// Each batch run fans out one network call per user, so the trigger
	// endpoint gets a much tighter limit than the general API.
	syncLimiter := dep.SyncRateLimiter
	if syncLimiter == nil {
		syncLimiter = middleware.NewRateLimiter(dep.SyncRateLimitRPM, time.Minute).Middleware()
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter).Post("/signup", dep.AuthHandler.Signup)
			r.With(authLimiter).Post("/signin", dep.AuthHandler.Signin)
			r.With(authLimiter).Get("/google/url", dep.AuthHandler.GoogleLoginURL)
			r.With(authLimiter).Post("/google", dep.AuthHandler.GoogleProfile)
			r.With(authLimiter).Post("/google/callback", dep.AuthHandler.GoogleCallback)
		})

		r.With(middleware.AuthMiddleware(dep.JWTManager)).Post("/steps", dep.LeaderboardHandler.UpdateSteps)
		r.Get("/leaderboard", dep.LeaderboardHandler.Top)

		r.With(syncLimiter).Post("/sync-all", dep.SyncHandler.SyncAll)
		r.Get("/token-status", dep.SyncHandler.TokenStatus)
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
