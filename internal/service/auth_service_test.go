package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sandeepkv93/step-leaderboard-service/internal/domain"
	"github.com/sandeepkv93/step-leaderboard-service/internal/security"

	"go.uber.org/mock/gomock"
	"golang.org/x/oauth2"
)

type authServiceFixture struct {
	repo     *stubRepo
	provider *MockOAuthProvider
	auth     *AuthService
}

func newAuthServiceFixture(t *testing.T) *authServiceFixture {
	t.Helper()
	repo := newStubRepo()
	provider := NewMockOAuthProvider(gomock.NewController(t))
	jwtMgr := security.NewJWTManager("step-leaderboard-service", "step-leaderboard-service-api", "0123456789abcdef0123456789abcdef", 15*time.Minute)
	auth := NewAuthService(repo, provider, jwtMgr)
	auth.now = func() time.Time { return time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC) }
	return &authServiceFixture{repo: repo, provider: provider, auth: auth}
}

func (fx *authServiceFixture) seedUser(t *testing.T, email, name, password string) {
	t.Helper()
	hash := ""
	if password != "" {
		var err error
		hash, err = security.HashPassword(password)
		if err != nil {
			t.Fatalf("hash password: %v", err)
		}
	}
	fx.repo.users = append(fx.repo.users, domain.UserCredential{
		Email:        domain.NormalizeEmail(email),
		DisplayName:  name,
		PasswordHash: hash,
	})
}

func TestRegisterValidationMatrix(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name                        string
		userName, email, phone, pwd string
		wantErr                     error
	}{
		{name: "missing name", email: "a@example.com", phone: "9876543210", pwd: "pass", wantErr: ErrMissingFields},
		{name: "missing password", userName: "A", email: "a@example.com", phone: "9876543210", wantErr: ErrMissingFields},
		{name: "bad email", userName: "A", email: "not-an-email", phone: "9876543210", pwd: "pass", wantErr: ErrInvalidEmail},
		{name: "short phone", userName: "A", email: "a@example.com", phone: "12345", pwd: "pass", wantErr: ErrInvalidPhone},
		{name: "long phone", userName: "A", email: "a@example.com", phone: "123456789012345", pwd: "pass", wantErr: ErrInvalidPhone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newAuthServiceFixture(t)
			_, err := fx.auth.Register(ctx, tc.userName, tc.email, tc.phone, tc.pwd)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestRegisterCreatesCredential(t *testing.T) {
	fx := newAuthServiceFixture(t)

	res, err := fx.auth.Register(context.Background(), "Walker", "Walker@Example.com", "98765 43210", "secret-pass")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.User.Email != "walker@example.com" {
		t.Fatalf("email = %q, want normalized form", res.User.Email)
	}
	if !res.IsFirstLogin || res.HasRefreshToken {
		t.Fatalf("result flags = %+v", res)
	}
	if res.AccessToken == "" {
		t.Fatal("no access token issued")
	}

	stored, err := fx.repo.FindByEmail("walker@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if stored.Phone != "+919876543210" {
		t.Fatalf("phone = %q, want +91 normalized", stored.Phone)
	}
	if stored.SyncStatus != domain.SyncStatusMissing {
		t.Fatalf("sync status = %q", stored.SyncStatus)
	}
	if !security.VerifyPassword(stored.PasswordHash, "secret-pass") {
		t.Fatal("password hash does not verify")
	}
}

func TestRegisterStripsCountryCodeFromPhone(t *testing.T) {
	fx := newAuthServiceFixture(t)

	_, err := fx.auth.Register(context.Background(), "Walker", "w@example.com", "+91-98765-43210", "pass")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	stored, _ := fx.repo.FindByEmail("w@example.com")
	if stored.Phone != "+919876543210" {
		t.Fatalf("phone = %q", stored.Phone)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	fx := newAuthServiceFixture(t)
	if _, err := fx.auth.Register(context.Background(), "Walker", "dupe@example.com", "9876543210", "pass"); err != nil {
		t.Fatalf("first register: %v", err)
	}

	if _, err := fx.auth.Register(context.Background(), "Other", "dupe@example.com", "9999999999", "pass"); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("error = %v, want ErrEmailExists", err)
	}
	if _, err := fx.auth.Register(context.Background(), "Other", "other@example.com", "9876543210", "pass"); !errors.Is(err, ErrPhoneExists) {
		t.Fatalf("error = %v, want ErrPhoneExists", err)
	}
}

func TestLoginWithPasswordMatrix(t *testing.T) {
	ctx := context.Background()

	t.Run("success by email", func(t *testing.T) {
		fx := newAuthServiceFixture(t)
		fx.seedUser(t, "walker@example.com", "Walker", "secret-pass")

		res, err := fx.auth.LoginWithPassword(ctx, "Walker@Example.com", "secret-pass")
		if err != nil {
			t.Fatalf("LoginWithPassword: %v", err)
		}
		if res.User.Name != "Walker" || res.IsFirstLogin {
			t.Fatalf("result = %+v", res)
		}
		stored, _ := fx.repo.FindByEmail("walker@example.com")
		if stored.LastLoginAt == nil {
			t.Fatal("last login not recorded")
		}
	})

	t.Run("success by phone identifier", func(t *testing.T) {
		fx := newAuthServiceFixture(t)
		if _, err := fx.auth.Register(ctx, "Walker", "walker@example.com", "9876543210", "secret-pass"); err != nil {
			t.Fatalf("register: %v", err)
		}

		res, err := fx.auth.LoginWithPassword(ctx, "98765 43210", "secret-pass")
		if err != nil {
			t.Fatalf("LoginWithPassword: %v", err)
		}
		if res.User.Email != "walker@example.com" {
			t.Fatalf("email = %q", res.User.Email)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		fx := newAuthServiceFixture(t)
		fx.seedUser(t, "walker@example.com", "Walker", "secret-pass")

		if _, err := fx.auth.LoginWithPassword(ctx, "walker@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("error = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		fx := newAuthServiceFixture(t)
		if _, err := fx.auth.LoginWithPassword(ctx, "ghost@example.com", "pass"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("error = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("google-only account has no password", func(t *testing.T) {
		fx := newAuthServiceFixture(t)
		fx.seedUser(t, "google@example.com", "Google User", "")

		if _, err := fx.auth.LoginWithPassword(ctx, "google@example.com", "anything"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("error = %v, want ErrInvalidCredentials", err)
		}
	})
}

func TestLoginWithGoogleProfileFirstLogin(t *testing.T) {
	fx := newAuthServiceFixture(t)

	res, err := fx.auth.LoginWithGoogleProfile(context.Background(), "new@example.com", "", "https://pic", "browser-at")
	if err != nil {
		t.Fatalf("LoginWithGoogleProfile: %v", err)
	}
	if !res.IsFirstLogin {
		t.Fatal("expected first login")
	}
	if res.User.Name != "Google User" {
		t.Fatalf("name = %q, want default display name", res.User.Name)
	}
	stored, _ := fx.repo.FindByEmail("new@example.com")
	if stored.AccessToken != "browser-at" || stored.PictureURL != "https://pic" {
		t.Fatalf("stored = %+v", stored)
	}
	if res.HasRefreshToken {
		t.Fatal("profile login cannot produce a refresh token")
	}
}

func TestLoginWithGoogleProfilePreservesRefreshToken(t *testing.T) {
	fx := newAuthServiceFixture(t)
	fx.repo.users = append(fx.repo.users, domain.UserCredential{
		Email:        "walker@example.com",
		DisplayName:  "Walker",
		RefreshToken: "rt-keep",
	})

	res, err := fx.auth.LoginWithGoogleProfile(context.Background(), "walker@example.com", "Walker", "", "browser-at")
	if err != nil {
		t.Fatalf("LoginWithGoogleProfile: %v", err)
	}
	if !res.HasRefreshToken {
		t.Fatal("stored refresh token not reported")
	}
	stored, _ := fx.repo.FindByEmail("walker@example.com")
	if stored.RefreshToken != "rt-keep" {
		t.Fatalf("refresh token = %q, want untouched", stored.RefreshToken)
	}
}

func TestLoginWithGoogleCodeFirstConsent(t *testing.T) {
	fx := newAuthServiceFixture(t)
	fx.provider.EXPECT().Exchange(gomock.Any(), "auth-code").Return(&oauth2.Token{
		AccessToken:  "google-at",
		RefreshToken: "google-rt",
		Expiry:       time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC),
	}, nil)
	fx.provider.EXPECT().FetchUserInfo(gomock.Any(), gomock.Any()).Return(&OAuthUserInfo{
		ProviderUserID: "sub-1",
		Email:          "Walker@Example.com",
		Name:           "Walker",
		Picture:        "https://pic",
		EmailVerified:  true,
	}, nil)

	res, err := fx.auth.LoginWithGoogleCode(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("LoginWithGoogleCode: %v", err)
	}
	if !res.IsFirstLogin || !res.HasRefreshToken {
		t.Fatalf("flags = %+v", res)
	}
	stored, _ := fx.repo.FindByEmail("walker@example.com")
	if stored.RefreshToken != "google-rt" || stored.AccessToken != "google-at" {
		t.Fatalf("tokens = %q / %q", stored.RefreshToken, stored.AccessToken)
	}
	if stored.SyncStatus != domain.SyncStatusValid {
		t.Fatalf("sync status = %q", stored.SyncStatus)
	}
	if !stored.SyncEnabled {
		t.Fatal("sync not enabled after consent login")
	}
}

func TestLoginWithGoogleCodeKeepsStoredRefreshToken(t *testing.T) {
	fx := newAuthServiceFixture(t)
	fx.repo.users = append(fx.repo.users, domain.UserCredential{
		Email:        "walker@example.com",
		DisplayName:  "Walker",
		RefreshToken: "rt-original",
		SyncStatus:   domain.SyncStatusValid,
	})
	// Ordinary re-login: the provider returns no refresh token.
	fx.provider.EXPECT().Exchange(gomock.Any(), "auth-code").Return(&oauth2.Token{
		AccessToken: "google-at-2",
		Expiry:      time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC),
	}, nil)
	fx.provider.EXPECT().FetchUserInfo(gomock.Any(), gomock.Any()).Return(&OAuthUserInfo{
		ProviderUserID: "sub-1",
		Email:          "walker@example.com",
		Name:           "Walker",
		EmailVerified:  true,
	}, nil)

	res, err := fx.auth.LoginWithGoogleCode(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("LoginWithGoogleCode: %v", err)
	}
	if res.IsFirstLogin {
		t.Fatal("existing user reported as first login")
	}
	if !res.HasRefreshToken {
		t.Fatal("stored refresh token not reported")
	}
	stored, _ := fx.repo.FindByEmail("walker@example.com")
	if stored.RefreshToken != "rt-original" {
		t.Fatalf("refresh token = %q, want preserved original", stored.RefreshToken)
	}
	if stored.AccessToken != "google-at-2" {
		t.Fatalf("access token = %q, want refreshed", stored.AccessToken)
	}
}

func TestLoginWithGoogleCodeRejectsUnverifiedEmail(t *testing.T) {
	fx := newAuthServiceFixture(t)
	fx.provider.EXPECT().Exchange(gomock.Any(), gomock.Any()).Return(&oauth2.Token{AccessToken: "at"}, nil)
	fx.provider.EXPECT().FetchUserInfo(gomock.Any(), gomock.Any()).Return(&OAuthUserInfo{
		ProviderUserID: "sub-1",
		Email:          "walker@example.com",
		EmailVerified:  false,
	}, nil)

	if _, err := fx.auth.LoginWithGoogleCode(context.Background(), "auth-code"); !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("error = %v, want ErrEmailNotVerified", err)
	}
}

func TestLoginWithGoogleCodeExchangeFailure(t *testing.T) {
	fx := newAuthServiceFixture(t)
	exchangeErr := errors.New("invalid_grant")
	fx.provider.EXPECT().Exchange(gomock.Any(), gomock.Any()).Return(nil, exchangeErr)

	if _, err := fx.auth.LoginWithGoogleCode(context.Background(), "bad-code"); !errors.Is(err, exchangeErr) {
		t.Fatalf("error = %v, want wrapped exchange failure", err)
	}
}

func TestGoogleLoginURLDelegatesToProvider(t *testing.T) {
	fx := newAuthServiceFixture(t)
	fx.provider.EXPECT().AuthCodeURL("state-1").Return("https://accounts.example/auth?state=state-1")

	if got := fx.auth.GoogleLoginURL("state-1"); got != "https://accounts.example/auth?state=state-1" {
		t.Fatalf("url = %q", got)
	}
}
