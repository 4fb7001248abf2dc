package domain

import (
	"strings"
	"time"
)

// Sync status values cached on the credential row. Derived from refresh-token
// health; recomputed on login and on every batch sync.
const (
	SyncStatusValid   = "valid"
	SyncStatusMissing = "missing"
	SyncStatusExpired = "expired"
)

// UserCredential is one row per registered identity, keyed by normalized
// email. It carries both the leaderboard state (steps, last sync) and the
// OAuth material the background sync engine needs to act on the user's
// behalf while they are offline.
type UserCredential struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Email       string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	DisplayName string `gorm:"size:255;not null" json:"name"`
	Phone       string `gorm:"size:32;index" json:"phone,omitempty"`
	PictureURL  string `gorm:"size:1024" json:"picture,omitempty"`

	// Local auth only; empty for Google-only accounts.
	PasswordHash string `gorm:"size:255" json:"-"`

	// AccessToken is short-lived and always safe to overwrite. RefreshToken
	// is long-lived and must never be overwritten with an empty value: the
	// provider only issues one on first consent or forced re-consent.
	AccessToken       string `gorm:"size:2048" json:"-"`
	RefreshToken      string `gorm:"size:2048" json:"-"`
	TokenExpiryMillis int64  `json:"token_expiry_millis,omitempty"`

	StepsToday      int64      `gorm:"not null;default:0;index:idx_user_credentials_steps,sort:desc" json:"steps"`
	LastSyncedAt    *time.Time `json:"last_synced_at,omitempty"`
	LastSyncAttempt *time.Time `json:"last_sync_attempt,omitempty"`
	LastSyncError   string     `gorm:"size:512" json:"last_sync_error,omitempty"`
	SyncStatus      string     `gorm:"size:16;not null;default:missing" json:"sync_status"`
	SyncEnabled     bool       `gorm:"not null;default:false" json:"sync_enabled"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NormalizeEmail is the canonical form used as the store key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
