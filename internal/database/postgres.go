package database

import (
	"context"
	"time"

	"github.com/sandeepkv93/step-leaderboard-service/internal/config"
	"github.com/sandeepkv93/step-leaderboard-service/internal/observability"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Open(cfg *config.Config) (*gorm.DB, error) {
	start := time.Now()
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	observability.RecordDatabaseStartupDuration(context.Background(), "connect", time.Since(start))
	if err != nil {
		observability.RecordDatabaseStartupEvent(context.Background(), "connect", "error")
		return nil, err
	}
	observability.RecordDatabaseStartupEvent(context.Background(), "connect", "ok")
	return db, nil
}
