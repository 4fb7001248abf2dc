package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sandeepkv93/step-leaderboard-service/internal/repository"
	"github.com/sandeepkv93/step-leaderboard-service/internal/service"
)

type stubAuthService struct {
	result *service.LoginResult
	err    error

	lastIdentifier string
	lastCode       string
}

func (s *stubAuthService) GoogleLoginURL(state string) string {
	return "https://accounts.example/auth?state=" + state
}

func (s *stubAuthService) Register(context.Context, string, string, string, string) (*service.LoginResult, error) {
	return s.result, s.err
}

func (s *stubAuthService) LoginWithPassword(_ context.Context, identifier, _ string) (*service.LoginResult, error) {
	s.lastIdentifier = identifier
	return s.result, s.err
}

func (s *stubAuthService) LoginWithGoogleProfile(context.Context, string, string, string, string) (*service.LoginResult, error) {
	return s.result, s.err
}

func (s *stubAuthService) LoginWithGoogleCode(_ context.Context, code string) (*service.LoginResult, error) {
	s.lastCode = code
	return s.result, s.err
}

func okLoginResult() *service.LoginResult {
	return &service.LoginResult{
		User: service.UserView{
			Name:  "Walker",
			Email: "walker@example.com",
			Steps: 1200,
		},
		AccessToken:     "jwt-token",
		ExpiresAt:       time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC),
		IsFirstLogin:    true,
		HasRefreshToken: true,
	}
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) (code, message string) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Code, body.Error.Message
}

func TestSignupReturnsCreated(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{result: okLoginResult()})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup",
		strings.NewReader(`{"name":"Walker","email":"walker@example.com","phone":"9876543210","password":"pass"}`))
	rec := httptest.NewRecorder()

	h.Signup(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["token"] != "jwt-token" {
		t.Fatalf("token = %v", body["token"])
	}
	if body["isFirstLogin"] != true || body["hasRefreshToken"] != true {
		t.Fatalf("flags = %v / %v", body["isFirstLogin"], body["hasRefreshToken"])
	}
}

func TestSignupErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "missing fields", err: service.ErrMissingFields, wantStatus: 400, wantCode: "BAD_REQUEST"},
		{name: "invalid email", err: service.ErrInvalidEmail, wantStatus: 400, wantCode: "BAD_REQUEST"},
		{name: "invalid phone", err: service.ErrInvalidPhone, wantStatus: 400, wantCode: "BAD_REQUEST"},
		{name: "duplicate email", err: service.ErrEmailExists, wantStatus: 409, wantCode: "CONFLICT"},
		{name: "duplicate phone", err: service.ErrPhoneExists, wantStatus: 409, wantCode: "CONFLICT"},
		{name: "store down", err: repository.ErrStoreUnavailable, wantStatus: 503, wantCode: "STORE_UNAVAILABLE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewAuthHandler(&stubAuthService{err: tc.err})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", strings.NewReader(`{}`))
			rec := httptest.NewRecorder()

			h.Signup(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if code, _ := decodeErrorBody(t, rec); code != tc.wantCode {
				t.Fatalf("code = %q, want %q", code, tc.wantCode)
			}
		})
	}
}

func TestSignupRejectsMalformedBody(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{result: okLoginResult()})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	h.Signup(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSigninFallsBackToEmailField(t *testing.T) {
	svc := &stubAuthService{result: okLoginResult()}
	h := NewAuthHandler(svc)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin",
		strings.NewReader(`{"email":"walker@example.com","password":"pass"}`))
	rec := httptest.NewRecorder()

	h.Signin(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.lastIdentifier != "walker@example.com" {
		t.Fatalf("identifier = %q, want fallback to email field", svc.lastIdentifier)
	}
}

func TestSigninInvalidCredentials(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{err: service.ErrInvalidCredentials})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin",
		strings.NewReader(`{"identifier":"walker@example.com","password":"wrong"}`))
	rec := httptest.NewRecorder()

	h.Signin(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if _, msg := decodeErrorBody(t, rec); msg != "invalid credentials" {
		t.Fatalf("message = %q", msg)
	}
}

func TestGoogleCallbackRequiresCode(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{result: okLoginResult()})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/google/callback", strings.NewReader(`{"code":""}`))
	rec := httptest.NewRecorder()

	h.GoogleCallback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if _, msg := decodeErrorBody(t, rec); msg != "missing authorization code" {
		t.Fatalf("message = %q", msg)
	}
}

func TestGoogleCallbackPassesCodeThrough(t *testing.T) {
	svc := &stubAuthService{result: okLoginResult()}
	h := NewAuthHandler(svc)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/google/callback", strings.NewReader(`{"code":"auth-code"}`))
	rec := httptest.NewRecorder()

	h.GoogleCallback(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.lastCode != "auth-code" {
		t.Fatalf("code = %q", svc.lastCode)
	}
}

func TestGoogleCallbackUnverifiedEmail(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{err: service.ErrEmailNotVerified})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/google/callback", strings.NewReader(`{"code":"auth-code"}`))
	rec := httptest.NewRecorder()

	h.GoogleCallback(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestGoogleLoginURLEchoesState(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/url?state=abc", nil)
	rec := httptest.NewRecorder()

	h.GoogleLoginURL(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["url"] != "https://accounts.example/auth?state=abc" {
		t.Fatalf("url = %q", body["url"])
	}
}
