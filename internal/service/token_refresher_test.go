package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newRefresher(t *testing.T, handler http.HandlerFunc) *GoogleTokenRefresher {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	r, err := NewGoogleTokenRefresher("client-id", "client-secret", 2*time.Second, WithTokenURL(server.URL))
	if err != nil {
		t.Fatalf("NewGoogleTokenRefresher: %v", err)
	}
	return r
}

func TestNewGoogleTokenRefresherRequiresSecret(t *testing.T) {
	_, err := NewGoogleTokenRefresher("client-id", "", time.Second)
	if !errors.Is(err, ErrMissingClientSecret) {
		t.Fatalf("error = %v, want ErrMissingClientSecret", err)
	}
}

func TestRefreshSendsGrantForm(t *testing.T) {
	r := newRefresher(t, func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := req.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		if got := req.PostForm.Get("refresh_token"); got != "rt-1" {
			t.Errorf("refresh_token = %q", got)
		}
		if got := req.PostForm.Get("client_id"); got != "client-id" {
			t.Errorf("client_id = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","expires_in":1800}`))
	})

	token, expiresIn, err := r.Refresh(context.Background(), "rt-1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if token != "at-1" {
		t.Fatalf("access token = %q", token)
	}
	if expiresIn != 30*time.Minute {
		t.Fatalf("expiresIn = %v, want 30m", expiresIn)
	}
}

func TestRefreshDefaultsLifetimeToOneHour(t *testing.T) {
	r := newRefresher(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"at-1"}`))
	})

	_, expiresIn, err := r.Refresh(context.Background(), "rt-1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if expiresIn != time.Hour {
		t.Fatalf("expiresIn = %v, want 1h", expiresIn)
	}
}

func TestRefreshClassifiesProviderRejection(t *testing.T) {
	cases := []struct {
		name   string
		status int
		kind   RefreshKind
	}{
		{name: "bad request means revoked", status: http.StatusBadRequest, kind: RefreshRevoked},
		{name: "unauthorized means revoked", status: http.StatusUnauthorized, kind: RefreshRevoked},
		{name: "server error is transient", status: http.StatusInternalServerError, kind: RefreshTransient},
		{name: "rate limited is transient", status: http.StatusTooManyRequests, kind: RefreshTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRefresher(t, func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tc.status)
			})

			_, _, err := r.Refresh(context.Background(), "rt-1")
			var refreshErr *RefreshError
			if !errors.As(err, &refreshErr) {
				t.Fatalf("error = %v, want *RefreshError", err)
			}
			if refreshErr.Kind != tc.kind {
				t.Fatalf("kind = %q, want %q", refreshErr.Kind, tc.kind)
			}
			if refreshErr.Status != tc.status {
				t.Fatalf("status = %d, want %d", refreshErr.Status, tc.status)
			}
		})
	}
}

func TestRefreshTransportFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()
	r, err := NewGoogleTokenRefresher("client-id", "client-secret", time.Second, WithTokenURL(server.URL))
	if err != nil {
		t.Fatalf("NewGoogleTokenRefresher: %v", err)
	}

	_, _, err = r.Refresh(context.Background(), "rt-1")
	var refreshErr *RefreshError
	if !errors.As(err, &refreshErr) {
		t.Fatalf("error = %v, want *RefreshError", err)
	}
	if refreshErr.Kind != RefreshTransient {
		t.Fatalf("kind = %q, want transient", refreshErr.Kind)
	}
}

func TestRefreshEmptyTokenPayloadIsTransient(t *testing.T) {
	r := newRefresher(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"expires_in":3600}`))
	})

	_, _, err := r.Refresh(context.Background(), "rt-1")
	var refreshErr *RefreshError
	if !errors.As(err, &refreshErr) {
		t.Fatalf("error = %v, want *RefreshError", err)
	}
	if refreshErr.Kind != RefreshTransient {
		t.Fatalf("kind = %q, want transient", refreshErr.Kind)
	}
}
