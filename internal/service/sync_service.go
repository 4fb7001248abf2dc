package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sandeepkv93/step-leaderboard-service/internal/domain"
	"github.com/sandeepkv93/step-leaderboard-service/internal/fitness"
	"github.com/sandeepkv93/step-leaderboard-service/internal/observability"
	"github.com/sandeepkv93/step-leaderboard-service/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrSyncNotConfigured is returned when the process has no Google client
	// secret and therefore cannot mint access tokens. Reported distinctly
	// from store failures.
	ErrSyncNotConfigured = errors.New("background sync is not configured")
	// ErrSyncAlreadyRunning is returned when another run holds the lock.
	ErrSyncAlreadyRunning = errors.New("a sync run is already in progress")
)

// StepAggregator is implemented by *fitness.Client.
type StepAggregator interface {
	AggregateSteps(ctx context.Context, accessToken string, start, end time.Time) (int64, error)
}

type SyncSuccess struct {
	Email          string `json:"email"`
	Steps          int64  `json:"steps"`
	TokenRefreshed bool   `json:"tokenRefreshed"`
}

type SyncFailure struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// SyncOutcome is the structured report of one orchestrator run.
type SyncOutcome struct {
	RunID      string        `json:"run_id"`
	Succeeded  []SyncSuccess `json:"success"`
	Failed     []SyncFailure `json:"failed"`
	Skipped    []SyncFailure `json:"skipped"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

type TokenStatusEntry struct {
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	HasRefreshToken bool       `json:"hasRefreshToken"`
	HasAccessToken  bool       `json:"hasAccessToken"`
	LastLogin       *time.Time `json:"lastLogin,omitempty"`
	LastSynced      *time.Time `json:"lastSynced,omitempty"`
	TokenStatus     string     `json:"tokenStatus"`
	SyncEnabled     bool       `json:"syncEnabled"`
}

type TokenStatusSummary struct {
	Total               int `json:"total"`
	WithRefreshToken    int `json:"withRefreshToken"`
	WithoutRefreshToken int `json:"withoutRefreshToken"`
	CanSyncOffline      int `json:"canSyncOffline"`
}

type TokenStatusReport struct {
	Users   []TokenStatusEntry `json:"users"`
	Summary TokenStatusSummary `json:"summary"`
}

// SyncService drives the per-user refresh→aggregate→persist pipeline across
// every known user. One user's failure never aborts the batch; only a store
// or configuration failure aborts the whole run.
type SyncService struct {
	repo        repository.CredentialRepository
	refresher   TokenRefresher
	aggregator  StepAggregator
	lock        RunLock
	zone        *time.Location
	concurrency int
	now         func() time.Time
}

func NewSyncService(repo repository.CredentialRepository, refresher TokenRefresher, aggregator StepAggregator, lock RunLock, zone *time.Location, concurrency int) *SyncService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &SyncService{
		repo:        repo,
		refresher:   refresher,
		aggregator:  aggregator,
		lock:        lock,
		zone:        zone,
		concurrency: concurrency,
		now:         time.Now,
	}
}

type outcomeKind int

const (
	outcomeSucceeded outcomeKind = iota
	outcomeFailed
	outcomeSkipped
)

type userOutcome struct {
	kind           outcomeKind
	email          string
	steps          int64
	tokenRefreshed bool
	reason         string
}

// RunSync executes one batch run. Refresh is attempted unconditionally for
// every user with a refresh token: access-token lifetime is short relative
// to run cadence, and tracking exact expiry across restarts is not worth the
// complexity of one extra network call.
func (s *SyncService) RunSync(ctx context.Context) (*SyncOutcome, error) {
	if s.refresher == nil {
		return nil, ErrSyncNotConfigured
	}
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx)
		if err != nil {
			// Lock backend being down should not block the batch; overlap
			// protection degrades, the sync itself still works.
			slog.WarnContext(ctx, "sync run lock unavailable, proceeding without it", "error", err)
		} else if !acquired {
			return nil, ErrSyncAlreadyRunning
		} else {
			defer func() {
				if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
					slog.WarnContext(ctx, "failed to release sync run lock", "error", err)
				}
			}()
		}
	}

	users, err := s.repo.List()
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	startedAt := s.now()
	windowStart, windowEnd := fitness.DayWindow(startedAt, s.zone)
	slog.InfoContext(ctx, "sync run starting",
		"run_id", runID,
		"users", len(users),
		"window_start", windowStart,
		"window_end", windowEnd,
	)

	// Already-dispatched users are allowed to finish even if the caller goes
	// away; a half-synced batch is worse than a slow shutdown.
	workCtx := context.WithoutCancel(ctx)
	results := make([]userOutcome, len(users))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range users {
		g.Go(func() error {
			results[i] = s.syncUser(workCtx, &users[i], windowStart, windowEnd)
			return nil
		})
	}
	_ = g.Wait()

	outcome := &SyncOutcome{
		RunID:     runID,
		Succeeded: []SyncSuccess{},
		Failed:    []SyncFailure{},
		Skipped:   []SyncFailure{},
		StartedAt: startedAt,
	}
	for _, res := range results {
		switch res.kind {
		case outcomeSucceeded:
			outcome.Succeeded = append(outcome.Succeeded, SyncSuccess{Email: res.email, Steps: res.steps, TokenRefreshed: res.tokenRefreshed})
			observability.RecordSyncUserOutcome(ctx, "succeeded")
		case outcomeFailed:
			outcome.Failed = append(outcome.Failed, SyncFailure{Email: res.email, Reason: res.reason})
			observability.RecordSyncUserOutcome(ctx, "failed")
		case outcomeSkipped:
			outcome.Skipped = append(outcome.Skipped, SyncFailure{Email: res.email, Reason: res.reason})
			observability.RecordSyncUserOutcome(ctx, "skipped")
		}
	}
	outcome.FinishedAt = s.now()
	observability.RecordSyncRunDuration(ctx, outcome.FinishedAt.Sub(startedAt))
	slog.InfoContext(ctx, "sync run complete",
		"run_id", runID,
		"succeeded", len(outcome.Succeeded),
		"failed", len(outcome.Failed),
		"skipped", len(outcome.Skipped),
	)
	return outcome, nil
}

func (s *SyncService) syncUser(ctx context.Context, user *domain.UserCredential, windowStart, windowEnd time.Time) userOutcome {
	email := user.Email
	if user.RefreshToken == "" {
		if user.AccessToken == "" {
			return userOutcome{kind: outcomeSkipped, email: email, reason: "no tokens stored - user needs to login with Google"}
		}
		// A stale access token is very likely expired already; unattended
		// runs skip rather than guess.
		return userOutcome{kind: outcomeSkipped, email: email, reason: "no refresh token - user needs to re-login to enable offline sync"}
	}

	usedToken := ""
	tokenRefreshed := false
	newToken, expiresIn, err := s.refresher.Refresh(ctx, user.RefreshToken)
	switch {
	case err == nil:
		usedToken = newToken
		tokenRefreshed = true
		expiry := s.now().Add(expiresIn).UnixMilli()
		if mergeErr := s.repo.Merge(email, map[string]any{
			"access_token":        newToken,
			"token_expiry_millis": expiry,
			"sync_status":         domain.SyncStatusValid,
		}); mergeErr != nil {
			slog.WarnContext(ctx, "failed to persist refreshed token", "email", email, "error", mergeErr)
		}
	case isRefreshRevoked(err):
		reason := "refresh token revoked or expired - user needs to re-login"
		if mergeErr := s.repo.Merge(email, map[string]any{
			"sync_status":     domain.SyncStatusExpired,
			"last_sync_error": reason,
		}); mergeErr != nil {
			slog.WarnContext(ctx, "failed to persist revoked token status", "email", email, "error", mergeErr)
		}
		return userOutcome{kind: outcomeFailed, email: email, reason: reason}
	default:
		// Transient refresh failure: fall back to the stored access token if
		// there is one. No credential mutation on this path.
		if user.AccessToken == "" {
			return userOutcome{kind: outcomeFailed, email: email, reason: "token refresh failed and no access token available"}
		}
		slog.InfoContext(ctx, "token refresh failed, trying stored access token", "email", email, "error", err)
		usedToken = user.AccessToken
	}

	steps, err := s.aggregator.AggregateSteps(ctx, usedToken, windowStart, windowEnd)
	if err != nil {
		reason := aggregationReason(err)
		var aggErr *fitness.AggregationError
		if errors.As(err, &aggErr) && aggErr.Kind == fitness.ErrUnauthorized {
			if mergeErr := s.repo.Merge(email, map[string]any{
				"last_sync_error":   reason,
				"last_sync_attempt": s.now(),
			}); mergeErr != nil {
				slog.WarnContext(ctx, "failed to persist sync error", "email", email, "error", mergeErr)
			}
		}
		return userOutcome{kind: outcomeFailed, email: email, reason: reason}
	}

	if err := s.repo.Merge(email, map[string]any{
		"steps_today":    steps,
		"last_synced_at": s.now(),
	}); err != nil {
		return userOutcome{kind: outcomeFailed, email: email, reason: fmt.Sprintf("failed to persist step count: %v", err)}
	}
	slog.InfoContext(ctx, "user synced", "email", email, "steps", steps, "token_refreshed", tokenRefreshed)
	return userOutcome{kind: outcomeSucceeded, email: email, steps: steps, tokenRefreshed: tokenRefreshed}
}

// TokenStatus reports refresh-token health for every user. Operational
// visibility only; it performs no authentication.
func (s *SyncService) TokenStatus() (*TokenStatusReport, error) {
	users, err := s.repo.List()
	if err != nil {
		return nil, err
	}
	report := &TokenStatusReport{Users: make([]TokenStatusEntry, 0, len(users))}
	for _, u := range users {
		status := u.SyncStatus
		if status == "" || status == domain.SyncStatusMissing {
			if u.RefreshToken != "" {
				status = domain.SyncStatusValid
			} else {
				status = domain.SyncStatusMissing
			}
		}
		report.Users = append(report.Users, TokenStatusEntry{
			Email:           u.Email,
			Name:            u.DisplayName,
			HasRefreshToken: u.RefreshToken != "",
			HasAccessToken:  u.AccessToken != "",
			LastLogin:       u.LastLoginAt,
			LastSynced:      u.LastSyncedAt,
			TokenStatus:     status,
			SyncEnabled:     u.SyncEnabled,
		})
		report.Summary.Total++
		if u.RefreshToken != "" {
			report.Summary.WithRefreshToken++
			report.Summary.CanSyncOffline++
		} else {
			report.Summary.WithoutRefreshToken++
		}
	}
	return report, nil
}

func isRefreshRevoked(err error) bool {
	var re *RefreshError
	return errors.As(err, &re) && re.Kind == RefreshRevoked
}

func aggregationReason(err error) string {
	var aggErr *fitness.AggregationError
	if errors.As(err, &aggErr) {
		switch aggErr.Kind {
		case fitness.ErrUnauthorized:
			return "refresh token revoked or expired - user needs to re-login"
		case fitness.ErrForbidden:
			return "access denied - user may have revoked fitness permissions"
		}
	}
	return err.Error()
}
