package seed

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/sandeepkv93/step-leaderboard-service/internal/config"
	"github.com/sandeepkv93/step-leaderboard-service/internal/database"
	"github.com/sandeepkv93/step-leaderboard-service/internal/tools/common"
	"github.com/sandeepkv93/step-leaderboard-service/internal/tools/ui"
)

type options struct {
	envFile      string
	demoPassword string
	ci           bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "seed", Short: "Database seed tooling"}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().StringVar(&opts.demoPassword, "demo-password", "", "override demo account password")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newApplyCommand(opts), newDryRunCommand(opts))
	return cmd
}

func newApplyCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Insert demo user accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "seed apply", func(ctx context.Context) ([]string, error) {
				cfg, db, err := loadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				password := cfg.SeedDemoPassword
				if opts.demoPassword != "" {
					password = opts.demoPassword
				}
				if password == "" {
					return nil, fmt.Errorf("demo password is required (SEED_DEMO_PASSWORD or --demo-password)")
				}
				if err := database.Seed(db, password); err != nil {
					return nil, err
				}
				return []string{"seeded demo accounts", "existing rows left untouched"}, nil
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "seed apply", details, err)
			}
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
}

func newDryRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run",
		Short: "Show what seeding would do",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "seed dry-run", func(ctx context.Context) ([]string, error) {
				if _, _, err := loadConfigDB(opts.envFile); err != nil {
					return nil, err
				}
				return []string{
					"would ensure demo accounts: demo.walker@example.com, demo.runner@example.com",
					"passwords hashed with bcrypt before insert",
					"no mutation executed in dry-run mode",
				}, nil
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "seed dry-run", details, err)
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
		return fn(context.Background())
	}
	return ui.Run(title, fn)
}

func loadConfigDB(envFile string) (*config.Config, *gorm.DB, error) {
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
	return cfg, db, nil
}
