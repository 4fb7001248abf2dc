package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sandeepkv93/step-leaderboard-service/internal/security"
)

func newAuthTestManager() *security.JWTManager {
	return security.NewJWTManager("step-leaderboard-service", "step-leaderboard-service-api", "0123456789abcdef0123456789abcdef", 15*time.Minute)
}

func TestAuthMiddlewarePutsClaimsOnContext(t *testing.T) {
	mgr := newAuthTestManager()
	token, _, err := mgr.Issue("walker@example.com", "Walker")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var gotSubject string
	h := AuthMiddleware(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			t.Fatal("claims missing from context")
		}
		gotSubject = claims.Subject
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/steps", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotSubject != "walker@example.com" {
		t.Fatalf("subject = %q", gotSubject)
	}
}

func TestAuthMiddlewareRejections(t *testing.T) {
	mgr := newAuthTestManager()
	otherMgr := security.NewJWTManager("step-leaderboard-service", "step-leaderboard-service-api", "another-secret-another-secret-ab", 15*time.Minute)
	forged, _, err := otherMgr.Issue("walker@example.com", "Walker")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	cases := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "not bearer", header: "Basic abc123"},
		{name: "empty bearer", header: "Bearer "},
		{name: "garbage token", header: "Bearer not.a.jwt"},
		{name: "wrong signing key", header: "Bearer " + forged},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			h := AuthMiddleware(mgr)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				called = true
			}))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/steps", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			if called {
				t.Fatal("protected handler reached without valid token")
			}
		})
	}
}

func TestAuthMiddlewareAcceptsCaseInsensitiveScheme(t *testing.T) {
	mgr := newAuthTestManager()
	token, _, err := mgr.Issue("walker@example.com", "Walker")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	h := AuthMiddleware(mgr)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/steps", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
