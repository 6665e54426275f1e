package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/vitalsync/internal/adapters/artifacts"
	"github.com/okian/vitalsync/internal/adapters/cache"
	"github.com/okian/vitalsync/internal/adapters/fitness"
	"github.com/okian/vitalsync/internal/adapters/http/api"
	"github.com/okian/vitalsync/internal/adapters/repository"
	service "github.com/okian/vitalsync/internal/app"
	"github.com/okian/vitalsync/internal/config"
	"github.com/okian/vitalsync/internal/domain/model"
	"github.com/okian/vitalsync/internal/domain/retrain"
	"github.com/okian/vitalsync/internal/domain/scoring"
	"github.com/okian/vitalsync/pkg/logger"
	"github.com/okian/vitalsync/pkg/tracing"
)

// HTTP server timeout constants.
const (
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

// wiring holds the wired components shared by every subcommand.
type wiring struct {
	cfg           *config.Config
	loc           *time.Location
	store         repository.Store
	cache         *cache.Cache
	svc           *service.Service
	shutdownTrace func(context.Context) error
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		rt         wiring
	)
	root := &cobra.Command{
		Use:           "vitalsync",
		Short:         "Sync biometric data and score resting vitals for anomalies",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configPath != "" {
				if err := os.Setenv("VITALSYNC_CONFIG", configPath); err != nil {
					return err
				}
			}
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			r, err := setup(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			rt = *r
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.close(context.WithoutCancel(cmd.Context()))
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides VITALSYNC_CONFIG)")

	root.AddCommand(
		newServeCmd(&rt),
		newSyncCmd(&rt),
		newTrainCmd(&rt),
		newAnomalyCmd(&rt),
		newUserCmd(&rt),
	)
	return root
}

// setup initializes logging and tracing, then wires storage, the provider
// client, the optional cache and the service.
func setup(ctx context.Context, cfg *config.Config) (*wiring, error) {
	logOpts := []logger.Option{logger.WithFormat(cfg.Log.Format)}
	if cfg.Log.File != "" {
		logOpts = append(logOpts, logger.WithFile(cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays, cfg.Log.Compress))
	}
	if err := logger.Init(logOpts...); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.Log.Level); err != nil {
		log.Warn(ctx, "invalid log level; falling back to info", logger.String("level", cfg.Log.Level), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	shutdownTrace, err := tracing.Init(cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Tracing.SamplingRate)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", cfg.Sync.Timezone, err)
	}

	store, err := repository.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	arts, err := artifacts.NewFileStore(cfg.Model.Dir)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open model dir: %w", err)
	}
	remote := fitness.New(cfg.Fitness.BaseURL, fitness.WithTimeout(cfg.Fitness.Timeout))

	opts := []service.Option{
		service.WithLogger(log.Named("service")),
		service.WithWorkerCount(cfg.Sync.WorkerCount),
		service.WithQueueSize(cfg.Sync.QueueSize),
		service.WithSyncOverlap(cfg.Sync.Overlap),
		service.WithFallbackDays(cfg.Sync.FallbackDays),
		service.WithMaxFallbackDays(cfg.Sync.MaxFallbackDays),
		service.WithLocation(loc),
		service.WithScheduleInterval(cfg.Sync.ScheduleInterval),
		service.WithWindowWidth(cfg.Model.WindowWidth),
		service.WithRetrainPolicy(retrain.NewPolicy(
			retrain.WithMinWindowsToTrain(cfg.Model.MinWindowsToTrain),
			retrain.WithMinNewWindows(cfg.Model.MinNewWindows),
			retrain.WithCooldown(cfg.Model.Cooldown),
		)),
		service.WithTrainerOptions(scoring.WithContamination(cfg.Model.Contamination)),
		service.WithScorerOptions(
			scoring.WithMinScoreWindows(cfg.Model.MinScoreWindows),
			scoring.WithAlertPercent(cfg.Model.AlertPercent),
		),
	}

	rt := &wiring{cfg: cfg, loc: loc, store: store, shutdownTrace: shutdownTrace}
	if cfg.Redis.Addr != "" {
		c, err := cache.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			cache.WithVerdictTTL(cfg.Redis.VerdictTTL),
			cache.WithLockTTL(cfg.Redis.LockTTL),
			cache.WithTrainingTTL(cfg.Redis.TrainingTTL),
		)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		rt.cache = c
		opts = append(opts, service.WithCache(c))
	}

	rt.svc = service.New(store, remote, arts, opts...)
	log.Info(ctx, "wiring ready",
		logger.String("store", cfg.Store.Driver),
		logger.Bool("redis", rt.cache != nil),
		logger.Bool("tracing", tracing.Enabled()),
		logger.String("timezone", loc.String()))
	return rt, nil
}

func (rt *wiring) close(ctx context.Context) error {
	var errs []error
	if rt.svc != nil {
		errs = append(errs, rt.svc.Stop(ctx))
	}
	if rt.cache != nil {
		errs = append(errs, rt.cache.Close())
	}
	if rt.store != nil {
		errs = append(errs, rt.store.Close())
	}
	if rt.shutdownTrace != nil {
		errs = append(errs, rt.shutdownTrace(ctx))
	}
	_ = logger.Sync()
	return errors.Join(errs...)
}

func newServeCmd(rt *wiring) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, sync workers and scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logger.Get()
			if err := rt.svc.Start(ctx); err != nil {
				return fmt.Errorf("start service: %w", err)
			}

			srv := &http.Server{
				Addr:              rt.cfg.Server.Addr,
				Handler:           rt.handler(),
				ReadTimeout:       rt.cfg.Server.ReadTimeout,
				WriteTimeout:      rt.cfg.Server.WriteTimeout,
				IdleTimeout:       idleTimeout,
				ReadHeaderTimeout: readHeaderTimeout,
			}
			errCh := make(chan error, 1)
			go func() {
				log.Info(ctx, "starting HTTP server", logger.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
			}
			log.Info(ctx, "shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rt.cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error(ctx, "server shutdown failed", logger.Error(err))
			}
			log.Info(ctx, "server stopped")
			return nil
		},
	}
}

func (rt *wiring) handler() http.Handler {
	opts := []api.Option{api.WithLocation(rt.loc)}
	if rt.cache != nil {
		opts = append(opts, api.WithHealthCheck("redis", rt.cache))
	}
	return api.NewServer(rt.svc, opts...).Handler()
}

func newSyncCmd(rt *wiring) *cobra.Command {
	var fallbackDays int
	cmd := &cobra.Command{
		Use:   "sync <user-id>",
		Short: "Sync one user now and print the committed report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := rt.svc.SyncUser(cmd.Context(), args[0], fallbackDays)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().IntVar(&fallbackDays, "fallback-days", 0, "look-back for a user that never synced (0 uses config)")
	return cmd
}

func newTrainCmd(rt *wiring) *cobra.Command {
	return &cobra.Command{
		Use:   "train <user-id>",
		Short: "Train the user's model on full history, bypassing the retrain gate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := rt.svc.Train(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), meta)
		},
	}
}

func newAnomalyCmd(rt *wiring) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "anomaly <user-id>",
		Short: "Score one day and print the verdict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = time.Now().In(rt.loc).Format("2006-01-02")
			}
			v, err := rt.svc.Anomaly(cmd.Context(), args[0], date)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to score as YYYY-MM-DD (default today)")
	return cmd
}

func newUserCmd(rt *wiring) *cobra.Command {
	var email, token string
	add := &cobra.Command{
		Use:   "add <user-id>",
		Short: "Register a user, or replace the provider token of an existing one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			err := rt.store.CreateUser(ctx, model.User{ID: args[0], Email: email, AccessToken: token})
			if errors.Is(err, repository.ErrUserExists) && token != "" {
				err = rt.store.SetAccessToken(ctx, args[0], token)
			}
			if err != nil {
				return err
			}
			u, err := rt.store.GetUser(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"id":        u.ID,
				"email":     u.Email,
				"has_token": u.AccessToken != "",
			})
		},
	}
	add.Flags().StringVar(&email, "email", "", "contact email")
	add.Flags().StringVar(&token, "token", "", "fitness provider access token")

	cmd := &cobra.Command{Use: "user", Short: "Manage users"}
	cmd.AddCommand(add)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
