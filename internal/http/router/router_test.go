package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sandeepkv93/step-leaderboard-service/internal/http/handler"
	"github.com/sandeepkv93/step-leaderboard-service/internal/security"
	"github.com/sandeepkv93/step-leaderboard-service/internal/service"
)

type routerAuthStub struct{}

func (routerAuthStub) GoogleLoginURL(state string) string { return "https://auth.example/" + state }
func (routerAuthStub) Register(context.Context, string, string, string, string) (*service.LoginResult, error) {
	return &service.LoginResult{AccessToken: "t"}, nil
}
func (routerAuthStub) LoginWithPassword(context.Context, string, string) (*service.LoginResult, error) {
	return nil, service.ErrInvalidCredentials
}
func (routerAuthStub) LoginWithGoogleProfile(context.Context, string, string, string, string) (*service.LoginResult, error) {
	return &service.LoginResult{AccessToken: "t"}, nil
}
func (routerAuthStub) LoginWithGoogleCode(context.Context, string) (*service.LoginResult, error) {
	return &service.LoginResult{AccessToken: "t"}, nil
}

type routerLeaderboardStub struct{}

func (routerLeaderboardStub) Top() ([]service.LeaderboardEntry, error) {
	return []service.LeaderboardEntry{{Name: "Walker", Steps: 100}}, nil
}
func (routerLeaderboardStub) UpdateSteps(string, int64) error { return nil }

type routerSyncStub struct{}

func (routerSyncStub) RunSync(context.Context) (*service.SyncOutcome, error) {
	return &service.SyncOutcome{RunID: "run-1"}, nil
}
func (routerSyncStub) TokenStatus() (*service.TokenStatusReport, error) {
	return &service.TokenStatusReport{}, nil
}

func newTestRouter() (http.Handler, *security.JWTManager) {
	jwtMgr := security.NewJWTManager("step-leaderboard-service", "step-leaderboard-service-api", "0123456789abcdef0123456789abcdef", 15*time.Minute)
	h := NewRouter(Dependencies{
		AuthHandler:        handler.NewAuthHandler(routerAuthStub{}),
		LeaderboardHandler: handler.NewLeaderboardHandler(routerLeaderboardStub{}),
		SyncHandler:        handler.NewSyncHandler(routerSyncStub{}),
		JWTManager:         jwtMgr,
		CORSOrigins:        []string{"https://app.example.com"},
		AuthRateLimitRPM:   100,
		SyncRateLimitRPM:   100,
		APIRateLimitRPM:    1000,
	})
	return h, jwtMgr
}

func TestRouterRoutes(t *testing.T) {
	h, jwtMgr := newTestRouter()
	token, _, err := jwtMgr.Issue("walker@example.com", "Walker")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	cases := []struct {
		name       string
		method     string
		path       string
		body       string
		auth       bool
		wantStatus int
	}{
		{name: "liveness", method: http.MethodGet, path: "/health/live", wantStatus: 200},
		{name: "readiness without probes", method: http.MethodGet, path: "/health/ready", wantStatus: 200},
		{name: "leaderboard", method: http.MethodGet, path: "/api/v1/leaderboard", wantStatus: 200},
		{name: "token status", method: http.MethodGet, path: "/api/v1/token-status", wantStatus: 200},
		{name: "google url", method: http.MethodGet, path: "/api/v1/auth/google/url", wantStatus: 200},
		{name: "signup", method: http.MethodPost, path: "/api/v1/auth/signup", body: `{"name":"W","email":"w@example.com","phone":"9876543210","password":"p"}`, wantStatus: 201},
		{name: "signin bad credentials", method: http.MethodPost, path: "/api/v1/auth/signin", body: `{"identifier":"w@example.com","password":"x"}`, wantStatus: 401},
		{name: "google callback", method: http.MethodPost, path: "/api/v1/auth/google/callback", body: `{"code":"abc"}`, wantStatus: 200},
		{name: "sync all", method: http.MethodPost, path: "/api/v1/sync-all", wantStatus: 200},
		{name: "steps without token", method: http.MethodPost, path: "/api/v1/steps", body: `{"steps":1}`, wantStatus: 401},
		{name: "steps with token", method: http.MethodPost, path: "/api/v1/steps", body: `{"steps":1}`, auth: true, wantStatus: 200},
		{name: "unknown route", method: http.MethodGet, path: "/nope", wantStatus: 404},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			if tc.auth {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("%s %s status = %d, want %d (body %s)", tc.method, tc.path, rec.Code, tc.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestRouterLivenessBody(t *testing.T) {
	h, _ := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status = %q", body["status"])
	}
}

func TestRouterErrorEnvelopeShape(t *testing.T) {
	h, _ := newTestRouter()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/steps", strings.NewReader(`{"steps":1}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("code = %q", body.Error.Code)
	}
}
