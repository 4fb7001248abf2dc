package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sandeepkv93/step-leaderboard-service/internal/observability"

	"golang.org/x/oauth2/google"
)

// ErrMissingClientSecret makes a misconfigured process fail at construction
// time instead of on the first refresh attempt.
var ErrMissingClientSecret = errors.New("google oauth client secret is not configured")

// RefreshKind separates failures the user must fix (re-consent) from ones a
// later batch run may recover from.
type RefreshKind string

const (
	RefreshRevoked   RefreshKind = "revoked"
	RefreshTransient RefreshKind = "transient"
)

type RefreshError struct {
	Kind   RefreshKind
	Status int
	Err    error
}

func (e *RefreshError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("token refresh failed (%s, status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("token refresh failed (%s): %v", e.Kind, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// TokenRefresher exchanges a stored refresh token for a new short-lived
// access token. Pure exchange: persistence is the caller's responsibility.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (accessToken string, expiresIn time.Duration, err error)
}

type GoogleTokenRefresher struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
}

type RefresherOption func(*GoogleTokenRefresher)

// WithTokenURL points the refresher at an alternative token endpoint. Used
// in tests.
func WithTokenURL(u string) RefresherOption {
	return func(r *GoogleTokenRefresher) { r.tokenURL = u }
}

func NewGoogleTokenRefresher(clientID, clientSecret string, timeout time.Duration, opts ...RefresherOption) (*GoogleTokenRefresher, error) {
	if clientSecret == "" {
		return nil, ErrMissingClientSecret
	}
	r := &GoogleTokenRefresher{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     google.Endpoint.TokenURL,
		httpClient:   &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Refresh issues a refresh_token grant. HTTP 400/401 from the provider means
// the refresh token is no longer valid (Revoked); transport failures and
// provider-side errors are Transient and must not mutate any credential.
func (r *GoogleTokenRefresher) Refresh(ctx context.Context, refreshToken string) (string, time.Duration, error) {
	form := url.Values{
		"client_id":     {r.clientID},
		"client_secret": {r.clientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, &RefreshError{Kind: RefreshTransient, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		observability.RecordTokenRefresh(ctx, "transport_error")
		return "", 0, &RefreshError{Kind: RefreshTransient, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		observability.RecordTokenRefresh(ctx, "revoked")
		return "", 0, &RefreshError{
			Kind:   RefreshRevoked,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("provider rejected refresh token"),
		}
	default:
		observability.RecordTokenRefresh(ctx, "provider_error")
		return "", 0, &RefreshError{
			Kind:   RefreshTransient,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected token endpoint status %d", resp.StatusCode),
		}
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		observability.RecordTokenRefresh(ctx, "decode_error")
		return "", 0, &RefreshError{Kind: RefreshTransient, Err: err}
	}
	if body.AccessToken == "" {
		observability.RecordTokenRefresh(ctx, "empty_token")
		return "", 0, &RefreshError{Kind: RefreshTransient, Err: errors.New("token payload missing access_token")}
	}
	expiresIn := time.Duration(body.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		// Provider did not declare a lifetime; assume the standard hour.
		expiresIn = time.Hour
	}
	observability.RecordTokenRefresh(ctx, "success")
	return body.AccessToken, expiresIn, nil
}
