package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"library_backend/internals/configs"
	database "library_backend/internals/databases"
	"library_backend/internals/features/library/dispatch"
	"library_backend/internals/features/library/store"
	"library_backend/internals/features/library/tasks"
	"library_backend/internals/features/library/transitions"
	middlewares "library_backend/internals/middlewares"
	routes "library_backend/internals/route"
	"library_backend/internals/seeds"
	librarySeed "library_backend/internals/seeds/library"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configs.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		log.Errorw("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "library",
		Short:         "Library checkout/return service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configs.ApplyLogLevel(configs.Load().LogLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configs.Load())
		},
	}
	root.AddCommand(newServeCommand(), newMigrateCommand(), newSeedCommand(), newResetCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate, then serve the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configs.Load())
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the holders and books tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(db *gorm.DB) error {
				return database.Migrate(db)
			})
		},
	}
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert sample holders and books (idempotent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(db *gorm.DB) error {
				if err := database.Migrate(db); err != nil {
					return err
				}
				if err := seeds.RunAllSeeds(db); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Sample data inserted.")
				return err
			})
		},
	}
}

func newResetCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Terminate other connections and drop every public table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset drops all tables, pass --yes to confirm")
			}
			return withDB(func(db *gorm.DB) error {
				return database.Reset(cmd.Context(), db)
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm dropping all tables")
	return cmd
}

func withDB(fn func(db *gorm.DB) error) error {
	cfg := configs.Load()
	db, err := database.ConnectDB(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()
	return fn(db)
}

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		DisableStartupMessage: true,
		ProxyHeader:           fiber.HeaderXForwardedFor,
	})
	app.Server().ReadTimeout = 15 * time.Second
	app.Server().WriteTimeout = 30 * time.Second
	app.Server().IdleTimeout = 90 * time.Second
	return app
}

func runServe(ctx context.Context, cfg configs.Config) error {
	db, err := database.ConnectDB(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Warnw("close database", "error", err)
		}
	}()

	if err := database.Migrate(db); err != nil {
		return err
	}
	if _, err := librarySeed.EnsureLibraryHolder(db); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	dispatcher, err := dispatch.New(dispatch.Config{
		Workers:   cfg.TaskWorkers,
		QueueSize: cfg.TaskQueueSize,
		Timeout:   cfg.TaskTimeout,
	}, dispatch.WithRegisterer(reg))
	if err != nil {
		return err
	}
	tasks.Register(dispatcher, transitions.NewEngine(store.NewGormStore(db)))
	dispatcher.Start()

	app := newApp()
	middlewares.SetupMiddlewares(app, cfg)
	routes.SetupRoutes(app, routes.Deps{DB: db, Tasks: dispatcher, Metrics: reg})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("listening", "port", cfg.Port)
		if err := app.Listen("0.0.0.0:" + cfg.Port); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Warnw("http shutdown", "error", err)
		}
		return dispatcher.Close(shutdownCtx)
	})
	return g.Wait()
}
