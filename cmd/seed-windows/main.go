package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/vitalsync/internal/adapters/repository"
	"github.com/okian/vitalsync/internal/config"
	"github.com/okian/vitalsync/internal/seedwindows"
	"github.com/okian/vitalsync/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCmd().ExecuteContext(ctx); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	var (
		configPath string
		cfg        seedwindows.Config
		end        string
	)
	cmd := &cobra.Command{
		Use:          "seed-windows",
		Short:        "Insert synthetic 5-minute resting windows for one user",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := logger.Init(); err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if configPath != "" {
				if err := os.Setenv("VITALSYNC_CONFIG", configPath); err != nil {
					return err
				}
			}
			appCfg, err := config.Load(ctx)
			if err != nil {
				return err
			}
			if appCfg.Store.Driver != "postgres" {
				logger.Get().Warn(ctx, "seeding the memory store; data is discarded on exit",
					logger.String("driver", appCfg.Store.Driver))
			}
			if end != "" {
				if cfg.End, err = time.Parse(time.RFC3339, end); err != nil {
					return fmt.Errorf("--end: %w", err)
				}
			}

			store, err := repository.Open(ctx, appCfg.Store)
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := seedwindows.Run(ctx, store, cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d windows (%d readings, %d anomalies) for user %s from %s to %s\n",
				res.Windows, res.Readings, res.Anomalies, res.UserID,
				res.From.Format(time.RFC3339), res.To.Format(time.RFC3339))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML config file (overrides VITALSYNC_CONFIG)")
	f.StringVar(&cfg.UserID, "user", "", "user id (generated when empty)")
	f.StringVar(&cfg.Email, "email", "", "email for a newly created user")
	f.IntVar(&cfg.Windows, "windows", seedwindows.DefaultWindows, "number of 5-minute windows")
	f.IntVar(&cfg.AnomalyWindows, "anomalies", 0, "windows to spike with an HR, SpO2 or BP anomaly")
	f.StringVar(&end, "end", "", "RFC 3339 time of the newest window (default now)")
	f.Int64Var(&cfg.Seed, "seed", 0, "random seed (0 picks one)")
	return cmd
}
