package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sandeepkv93/step-leaderboard-service/internal/domain"
	"github.com/sandeepkv93/step-leaderboard-service/internal/observability"
	"github.com/sandeepkv93/step-leaderboard-service/internal/repository"
	"github.com/sandeepkv93/step-leaderboard-service/internal/security"
)

var (
	ErrMissingFields      = errors.New("name, email and password are required")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidPhone       = errors.New("phone number must be exactly 10 digits")
	ErrEmailExists        = errors.New("user with this email already exists")
	ErrPhoneExists        = errors.New("user with this phone number already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("google email not verified")
)

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nonDigitPattern = regexp.MustCompile(`\D`)
)

type UserView struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture,omitempty"`
	Steps   int64  `json:"steps"`
}

type LoginResult struct {
	User            UserView
	AccessToken     string
	ExpiresAt       time.Time
	IsFirstLogin    bool
	HasRefreshToken bool
}

// AuthService owns sign-up and sign-in. The Google code path is the one that
// feeds the background sync engine: it is the only place a refresh token
// enters the store, and it must never erase one that is already there.
type AuthService struct {
	repo     repository.CredentialRepository
	provider OAuthProvider
	jwt      *security.JWTManager
	now      func() time.Time
}

func NewAuthService(repo repository.CredentialRepository, provider OAuthProvider, jwt *security.JWTManager) *AuthService {
	return &AuthService{repo: repo, provider: provider, jwt: jwt, now: time.Now}
}

func (s *AuthService) GoogleLoginURL(state string) string {
	return s.provider.AuthCodeURL(state)
}

func (s *AuthService) Register(ctx context.Context, name, email, phone, password string) (*LoginResult, error) {
	name = strings.TrimSpace(name)
	email = domain.NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}
	if !emailPattern.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	normalizedPhone, err := normalizePhone(phone)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByEmail(email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if _, err := s.repo.FindByPhone(normalizedPhone); err == nil {
		return nil, ErrPhoneExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	cred := &domain.UserCredential{
		Email:        email,
		DisplayName:  name,
		Phone:        normalizedPhone,
		PasswordHash: hash,
		SyncStatus:   domain.SyncStatusMissing,
		LastLoginAt:  &now,
	}
	if err := s.repo.Create(cred); err != nil {
		return nil, err
	}
	observability.RecordAuthLogin(ctx, "local", "registered")
	return s.loginResult(cred, true, false)
}

// LoginWithPassword accepts an email address or a phone number as the
// identifier, matching what users type on the sign-in form.
func (s *AuthService) LoginWithPassword(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	password = strings.TrimSpace(password)
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	cred, err := s.repo.FindByEmail(identifier)
	if errors.Is(err, repository.ErrNotFound) {
		if phone, phoneErr := normalizePhone(identifier); phoneErr == nil {
			cred, err = s.repo.FindByPhone(phone)
		}
	}
	if errors.Is(err, repository.ErrNotFound) {
		observability.RecordAuthLogin(ctx, "local", "failure")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if cred.PasswordHash == "" || !security.VerifyPassword(cred.PasswordHash, password) {
		observability.RecordAuthLogin(ctx, "local", "failure")
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if mergeErr := s.repo.Merge(cred.Email, map[string]any{"last_login_at": now}); mergeErr != nil {
		return nil, mergeErr
	}
	observability.RecordAuthLogin(ctx, "local", "success")
	return s.loginResult(cred, false, cred.RefreshToken != "")
}

// LoginWithGoogleProfile handles the profile-only login used by the UI when
// the browser already holds a Google session. It never touches the stored
// refresh token.
func (s *AuthService) LoginWithGoogleProfile(ctx context.Context, email, name, picture, accessToken string) (*LoginResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidEmail
	}

	_, err := s.repo.FindByEmail(email)
	isFirstLogin := errors.Is(err, repository.ErrNotFound)
	if err != nil && !isFirstLogin {
		return nil, err
	}

	now := s.now()
	fields := map[string]any{
		"last_login_at": now,
	}
	if name != "" {
		fields["display_name"] = name
	} else if isFirstLogin {
		fields["display_name"] = "Google User"
	}
	if picture != "" {
		fields["picture_url"] = picture
	}
	if accessToken != "" {
		fields["access_token"] = accessToken
	}
	if err := s.repo.Merge(email, fields); err != nil {
		return nil, err
	}

	cred, err := s.repo.FindByEmail(email)
	if err != nil {
		return nil, err
	}
	observability.RecordAuthLogin(ctx, "google", "success")
	return s.loginResult(cred, isFirstLogin, cred.RefreshToken != "")
}

// LoginWithGoogleCode exchanges an authorization code for tokens and upserts
// the credential row. The refresh token column is included in the merge only
// when the provider actually returned one, which is what preserves a
// previously stored token across ordinary re-logins.
func (s *AuthService) LoginWithGoogleCode(ctx context.Context, code string) (*LoginResult, error) {
	token, err := s.provider.Exchange(ctx, code)
	if err != nil {
		observability.RecordAuthLogin(ctx, "google", "failure")
		return nil, fmt.Errorf("google code exchange: %w", err)
	}
	info, err := s.provider.FetchUserInfo(ctx, token)
	if err != nil {
		observability.RecordAuthLogin(ctx, "google", "failure")
		return nil, err
	}
	if info == nil {
		return nil, errors.New("missing required userinfo fields")
	}
	if !info.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	email := domain.NormalizeEmail(info.Email)
	existing, err := s.repo.FindByEmail(email)
	isFirstLogin := errors.Is(err, repository.ErrNotFound)
	if err != nil && !isFirstLogin {
		return nil, err
	}

	now := s.now()
	fields := map[string]any{
		"display_name":        info.Name,
		"picture_url":         info.Picture,
		"access_token":        token.AccessToken,
		"token_expiry_millis": token.Expiry.UnixMilli(),
		"last_login_at":       now,
		"sync_enabled":        true,
	}
	hasRefreshToken := false
	switch {
	case token.RefreshToken != "":
		fields["refresh_token"] = token.RefreshToken
		fields["sync_status"] = domain.SyncStatusValid
		hasRefreshToken = true
	case !isFirstLogin && existing.RefreshToken != "":
		// Keep the token we already have; this login simply did not force
		// re-consent.
		hasRefreshToken = true
	}
	if err := s.repo.Merge(email, fields); err != nil {
		return nil, err
	}

	cred, err := s.repo.FindByEmail(email)
	if err != nil {
		return nil, err
	}
	observability.RecordAuthLogin(ctx, "google", "success")
	return s.loginResult(cred, isFirstLogin, hasRefreshToken)
}

func (s *AuthService) loginResult(cred *domain.UserCredential, isFirstLogin, hasRefreshToken bool) (*LoginResult, error) {
	accessToken, expiresAt, err := s.jwt.Issue(cred.Email, cred.DisplayName)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		User: UserView{
			Name:    cred.DisplayName,
			Email:   cred.Email,
			Picture: cred.PictureURL,
			Steps:   cred.StepsToday,
		},
		AccessToken:     accessToken,
		ExpiresAt:       expiresAt,
		IsFirstLogin:    isFirstLogin,
		HasRefreshToken: hasRefreshToken,
	}, nil
}

// normalizePhone reduces user input to a 10-digit national number and stores
// it with the +91 prefix. A 12-digit number starting with 91 has the country
// code stripped first.
func normalizePhone(phone string) (string, error) {
	digits := nonDigitPattern.ReplaceAllString(phone, "")
	if len(digits) == 12 && strings.HasPrefix(digits, "91") {
		digits = digits[2:]
	}
	if len(digits) != 10 {
		return "", ErrInvalidPhone
	}
	return "+91" + digits, nil
}
