package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mobility-challenge/common"
	"mobility-challenge/config"
	"mobility-challenge/seed"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 10 * time.Second

type resources struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *gorm.DB
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "mobility-challenge",
		Short:        "Backend of the sustainable mobility challenge",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment")

	open := func() (*resources, error) {
		cfg, err := config.Load(envFile)
		if err != nil {
			return nil, err
		}
		logger := common.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		db, err := common.Init(cfg.DBDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := Migrate(db); err != nil {
			_ = common.Close(db)
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &resources{cfg: cfg, logger: logger, db: db}, nil
	}

	root.AddCommand(
		newServeCmd(open),
		newMigrateCmd(open),
		newSeedCmd(open),
		newVersionCmd(),
	)
	return root
}

func newServeCmd(open func() (*resources, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open()
			if err != nil {
				return err
			}
			defer common.Close(rt.db)

			if rt.cfg.IsProduction() {
				gin.SetMode(gin.ReleaseMode)
			}
			router := NewRouter(Deps{
				Config:  rt.cfg,
				DB:      rt.db,
				Logger:  rt.logger,
				Metrics: common.NewMetricRecorder(rt.db, rt.logger),
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, &http.Server{
				Addr:              rt.cfg.Addr(),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}, rt.logger)
		},
	}
}

// serve runs srv until ctx is done, then drains in-flight requests.
func serve(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func newMigrateCmd(open func() (*resources, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open()
			if err != nil {
				return err
			}
			defer common.Close(rt.db)
			rt.logger.Info("schema up to date", "driver", rt.cfg.DBDriver)
			return nil
		},
	}
}

func newSeedCmd(open func() (*resources, error)) *cobra.Command {
	var files seed.Files

	cmd := &cobra.Command{
		Use:     "seed",
		Short:   "Load teams, users and historical activities from CSV or NDJSON files",
		Example: "  mobility-challenge seed --teams teams.csv --users users.csv --activities history.ndjson",
		RunE: func(cmd *cobra.Command, args []string) error {
			if files == (seed.Files{}) {
				return errors.New("at least one of --teams, --users or --activities is required")
			}
			rt, err := open()
			if err != nil {
				return err
			}
			defer common.Close(rt.db)

			reports, err := seed.NewLoader(rt.db, rt.logger).Run(cmd.Context(), files)
			fmt.Fprint(cmd.OutOrStdout(), seed.Summary(reports))
			return err
		},
	}
	cmd.Flags().StringVar(&files.Teams, "teams", "", "teams file (name, description)")
	cmd.Flags().StringVar(&files.Users, "users", "", "users file (name, email, password, role, team)")
	cmd.Flags().StringVar(&files.Activities, "activities", "", "activities file (email, date, type, distance_km, steps)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
