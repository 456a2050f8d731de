package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/matheusmosca/supplements-store/pkg/logging"
	"github.com/matheusmosca/supplements-store/services/store/migrations"
)

func main() {
	app := &cli.App{
		Name:  "store",
		Usage: "supplements store backend",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the HTTP API",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "apply or revert database migrations",
				Subcommands: []*cli.Command{
					{
						Name:  "up",
						Usage: "apply all pending migrations",
						Action: func(c *cli.Context) error {
							cfg, err := setup()
							if err != nil {
								return err
							}
							return migrateUp(cfg.Database.DSN())
						},
					},
					{
						Name:  "down",
						Usage: "revert migrations",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "steps", Usage: "number of migrations to revert (0 = all)", Value: 1},
						},
						Action: func(c *cli.Context) error {
							cfg, err := setup()
							if err != nil {
								return err
							}
							return migrateDown(cfg.Database.DSN(), c.Int("steps"))
						},
					},
				},
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("❌ store exited")
	}
}

func setup() (Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return Config{}, err
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stdout); err != nil {
		return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return cfg, nil
}

func migrateUp(dsn string) error {
	db, err := migrations.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return migrations.Up(db)
}

func migrateDown(dsn string, steps int) error {
	db, err := migrations.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return migrations.Down(db, steps)
}

func serve(c *cli.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize tracer
	tp, err := initTracer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logrus.Printf("Error shutting down tracer provider: %v", err)
		}
	}()

	// Initialize metrics
	mp, err := initMetrics(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	defer func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			logrus.Printf("Error shutting down meter provider: %v", err)
		}
	}()

	st, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	notifier, closeNotifier := buildNotifier(cfg)
	defer func() {
		if err := closeNotifier(); err != nil {
			logrus.WithError(err).Warn("⚠️ Error closing notifier")
		}
	}()

	tracer := otel.Tracer(cfg.ServiceName)
	meter := otel.Meter(cfg.ServiceName)

	app, err := newApplication(cfg, st, notifier, buildProcessors(cfg), tracer, meter)
	if err != nil {
		return err
	}

	scheduler := cron.New(cron.WithParser(cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))
	if _, err := app.sweeper.Schedule(ctx, scheduler, cfg.SweepSchedule); err != nil {
		app.dispatcher.Close()
		return fmt.Errorf("invalid PAYMENT_SWEEP_SCHEDULE %q: %w", cfg.SweepSchedule, err)
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.router.engine(cfg.ServiceName),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.Infof("🚀 Store service listening on port %s (storage: %s)", cfg.Port, cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("🛑 Shutting down store service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		<-scheduler.Stop().Done()
		err := srv.Shutdown(shutdownCtx)
		app.dispatcher.Close()
		return err
	})

	return g.Wait()
}
