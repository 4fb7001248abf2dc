package synctool

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/sandeepkv93/step-leaderboard-service/internal/config"
	"github.com/sandeepkv93/step-leaderboard-service/internal/database"
	"github.com/sandeepkv93/step-leaderboard-service/internal/fitness"
	"github.com/sandeepkv93/step-leaderboard-service/internal/repository"
	"github.com/sandeepkv93/step-leaderboard-service/internal/service"
	"github.com/sandeepkv93/step-leaderboard-service/internal/tools/common"
	"github.com/sandeepkv93/step-leaderboard-service/internal/tools/ui"
)

type options struct {
	envFile string
	timeout time.Duration
	ci      bool
}

// NewRootCommand exposes the batch sync engine as a standalone CLI, for cron
// jobs and operators who want a run without going through the HTTP API.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "synctool",
		Short: "Background step-sync operations",
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "operation timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")

	cmd.AddCommand(
		newRunSyncCommand(opts),
		newTokenStatusCommand(opts),
	)
	return cmd
}

func newRunSyncCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run-sync",
		Short: "Run one batch sync across all users",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "sync run", func(ctx context.Context) ([]string, error) {
				svc, db, err := buildSyncService(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer closeDB(db)

				outcome, err := svc.RunSync(ctx)
				if err != nil {
					return nil, err
				}
				details := []string{
					"run_id: " + outcome.RunID,
					fmt.Sprintf("succeeded=%d failed=%d skipped=%d", len(outcome.Succeeded), len(outcome.Failed), len(outcome.Skipped)),
					fmt.Sprintf("duration=%s", outcome.FinishedAt.Sub(outcome.StartedAt).Round(time.Millisecond)),
				}
				for _, s := range outcome.Succeeded {
					details = append(details, fmt.Sprintf("ok %s steps=%d refreshed=%t", s.Email, s.Steps, s.TokenRefreshed))
				}
				for _, f := range outcome.Failed {
					details = append(details, fmt.Sprintf("failed %s: %s", f.Email, f.Reason))
				}
				for _, sk := range outcome.Skipped {
					details = append(details, fmt.Sprintf("skipped %s: %s", sk.Email, sk.Reason))
				}
				return details, nil
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "sync run", details, err)
			}
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
}

func newTokenStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "token-status",
		Short: "Report per-user token readiness for offline sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "token status", func(ctx context.Context) ([]string, error) {
				svc, db, err := buildSyncService(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer closeDB(db)

				report, err := svc.TokenStatus()
				if err != nil {
					return nil, err
				}
				details := []string{
					fmt.Sprintf("total=%d with_refresh=%d without_refresh=%d can_sync_offline=%d",
						report.Summary.Total,
						report.Summary.WithRefreshToken,
						report.Summary.WithoutRefreshToken,
						report.Summary.CanSyncOffline,
					),
				}
				for _, u := range report.Users {
					details = append(details, fmt.Sprintf("%s status=%s refresh=%t access=%t", u.Email, u.TokenStatus, u.HasRefreshToken, u.HasAccessToken))
				}
				return details, nil
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "token status", details, err)
			}
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
}

func run(opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
		defer cancel()
		return fn(ctx)
	}
	return ui.Run(title, fn)
}

func buildSyncService(envFile string) (*service.SyncService, *gorm.DB, error) {
	if err := common.LoadEnvFile(envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}

	var refresher service.TokenRefresher
	if cfg.SyncEnabled && cfg.GoogleClientSecret != "" {
		r, err := service.NewGoogleTokenRefresher(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.HTTPClientTimeout)
		if err != nil {
			closeDB(db)
			return nil, nil, err
		}
		refresher = r
	}

	repo := repository.NewCredentialRepository(db)
	aggregator := fitness.NewClient(cfg.HTTPClientTimeout)
	// The CLI is a single process; a local lock is enough to guard against
	// doubled-up invocations from the same host.
	lock := service.NewLocalRunLock()
	svc := service.NewSyncService(repo, refresher, aggregator, lock, cfg.SyncZone(), cfg.SyncConcurrency)
	return svc, db, nil
}

func closeDB(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
