package database

import (
	"context"
	"time"

	"github.com/sandeepkv93/step-leaderboard-service/internal/domain"
	"github.com/sandeepkv93/step-leaderboard-service/internal/observability"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	start := time.Now()
	err := db.AutoMigrate(
		&domain.UserCredential{},
	)
	observability.RecordDatabaseStartupDuration(context.Background(), "migrate", time.Since(start))
	if err != nil {
		observability.RecordDatabaseStartupEvent(context.Background(), "migrate", "error")
		return err
	}
	observability.RecordDatabaseStartupEvent(context.Background(), "migrate", "ok")
	return nil
}
