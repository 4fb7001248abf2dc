package service

import "context"

type AuthServiceInterface interface {
	GoogleLoginURL(state string) string
	Register(ctx context.Context, name, email, phone, password string) (*LoginResult, error)
	LoginWithPassword(ctx context.Context, identifier, password string) (*LoginResult, error)
	LoginWithGoogleProfile(ctx context.Context, email, name, picture, accessToken string) (*LoginResult, error)
	LoginWithGoogleCode(ctx context.Context, code string) (*LoginResult, error)
}

type SyncServiceInterface interface {
	RunSync(ctx context.Context) (*SyncOutcome, error)
	TokenStatus() (*TokenStatusReport, error)
}

type LeaderboardServiceInterface interface {
	Top() ([]LeaderboardEntry, error)
	UpdateSteps(email string, steps int64) error
}
