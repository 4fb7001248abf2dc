package service

import (
	"errors"
	"time"

	"github.com/sandeepkv93/step-leaderboard-service/internal/repository"
)

var ErrNegativeSteps = errors.New("steps must not be negative")

type LeaderboardEntry struct {
	Name  string `json:"name"`
	Steps int64  `json:"steps"`
}

type LeaderboardService struct {
	repo  repository.CredentialRepository
	limit int
	now   func() time.Time
}

func NewLeaderboardService(repo repository.CredentialRepository, limit int) *LeaderboardService {
	return &LeaderboardService{repo: repo, limit: limit, now: time.Now}
}

func (s *LeaderboardService) Top() ([]LeaderboardEntry, error) {
	creds, err := s.repo.LeaderboardTop(s.limit)
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, 0, len(creds))
	for _, c := range creds {
		name := c.DisplayName
		if name == "" {
			name = "Unknown"
		}
		entries = append(entries, LeaderboardEntry{Name: name, Steps: c.StepsToday})
	}
	return entries, nil
}

// UpdateSteps records a client-reported total for today. The background sync
// engine overwrites this on its next run; the self-report path exists so the
// leaderboard is fresh right after a user opens the app.
func (s *LeaderboardService) UpdateSteps(email string, steps int64) error {
	if steps < 0 {
		return ErrNegativeSteps
	}
	if _, err := s.repo.FindByEmail(email); err != nil {
		return err
	}
	return s.repo.Merge(email, map[string]any{
		"steps_today":    steps,
		"last_synced_at": s.now(),
	})
}
