package database

import (
	"context"
	"time"

	"github.com/sandeepkv93/step-leaderboard-service/internal/domain"
	"github.com/sandeepkv93/step-leaderboard-service/internal/observability"
	"github.com/sandeepkv93/step-leaderboard-service/internal/security"

	"gorm.io/gorm"
)

type demoUser struct {
	Name  string
	Email string
	Phone string
}

var demoUsers = []demoUser{
	{Name: "Demo Walker", Email: "demo.walker@example.com", Phone: "+919876543210"},
	{Name: "Demo Runner", Email: "demo.runner@example.com", Phone: "+919876543211"},
}

// Seed inserts demo accounts for local development. Existing rows are left
// untouched, so it is safe to run on every boot.
func Seed(db *gorm.DB, demoPassword string) error {
	start := time.Now()
	defer func() {
		observability.RecordDatabaseStartupDuration(context.Background(), "seed", time.Since(start))
	}()

	if demoPassword == "" {
		observability.RecordDatabaseStartupEvent(context.Background(), "seed", "skipped")
		return nil
	}

	hash, err := security.HashPassword(demoPassword)
	if err != nil {
		observability.RecordDatabaseStartupEvent(context.Background(), "seed", "error")
		return err
	}

	for _, u := range demoUsers {
		cred := domain.UserCredential{
			Email:        u.Email,
			DisplayName:  u.Name,
			Phone:        u.Phone,
			PasswordHash: hash,
			SyncStatus:   domain.SyncStatusMissing,
		}
		res := db.Where("email = ?", u.Email).FirstOrCreate(&cred)
		if res.Error != nil {
			observability.RecordDatabaseStartupEvent(context.Background(), "seed", "error")
			return res.Error
		}
	}
	observability.RecordDatabaseStartupEvent(context.Background(), "seed", "ok")
	return nil
}
