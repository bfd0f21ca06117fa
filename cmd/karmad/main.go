package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/realtobyfu/karma-farm-sub001/internal/chat"
	"github.com/realtobyfu/karma-farm-sub001/internal/config"
	"github.com/realtobyfu/karma-farm-sub001/internal/database"
	"github.com/realtobyfu/karma-farm-sub001/internal/handler"
	"github.com/realtobyfu/karma-farm-sub001/internal/ledger"
	"github.com/realtobyfu/karma-farm-sub001/internal/logger"
	"github.com/realtobyfu/karma-farm-sub001/internal/middleware"
	"github.com/realtobyfu/karma-farm-sub001/internal/rating"
	"github.com/realtobyfu/karma-farm-sub001/internal/realtime"
	"github.com/realtobyfu/karma-farm-sub001/internal/repository"
	"github.com/realtobyfu/karma-farm-sub001/internal/service"
	"github.com/realtobyfu/karma-farm-sub001/internal/settlement"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "karmad",
		Usage: "Karma task fulfillment coordinator",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:     "database-url",
				Aliases:  []string{"d"},
				Value:    config.DefaultDatabaseURL,
				Usage:    "PostgreSQL database URL",
				EnvVars:  []string{"DATABASE_URL"},
				Required: true,
			},
		},
		Before: func(c *cli.Context) error {
			logger.Setup(logger.ParseLevel(c.String("log-level")))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the web server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Value:   config.DefaultPort,
						Usage:   "HTTP server port",
						EnvVars: []string{"PORT"},
					},
					&cli.StringFlag{
						Name:     "auth-secret",
						Value:    config.DefaultAuthSecret,
						Usage:    "HMAC secret for bearer token verification",
						EnvVars:  []string{"AUTH_SECRET"},
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:    "cors-origin",
						Usage:   "Allowed CORS origins",
						EnvVars: []string{"CORS_ORIGINS"},
					},
				},
				Action: runServe,
			},
			{
				Name:  "reconcile-settlements",
				Usage: "Settle confirmed engagements that have no karma transaction",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Value: 5 * time.Minute,
						Usage: "Only sweep engagements confirmed at least this long ago",
					},
				},
				Action: runReconcileSettlements,
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func runServe(c *cli.Context) error {
	ctx := c.Context

	port := c.String("port")
	if port == "" {
		port = config.DefaultPort
	}

	db, err := database.New(ctx, c.String("database-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db.Pool()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	migrator, err := rivermigrate.New(riverpgxv5.New(db.Pool()), nil)
	if err != nil {
		return fmt.Errorf("failed to create job queue migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("failed to run job queue migrations: %w", err)
	}

	pool := db.Pool()

	engagementRepo := repository.NewEngagementRepository(pool)
	postRepo := repository.NewPostRepository(pool)
	chatRepo := repository.NewChatRepository(pool)

	ledgerSvc := ledger.NewService(pool, ledger.NewRepository(pool), ledger.DefaultPolicy)
	settlementSvc := settlement.NewService(engagementRepo, postRepo, ledgerSvc)

	workers := river.NewWorkers()
	river.AddWorker(workers, settlement.NewWorker(settlementSvc))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
	})
	if err != nil {
		return fmt.Errorf("failed to create job queue client: %w", err)
	}

	enqueueSettlement := func(ctx context.Context, engagementID uuid.UUID) error {
		_, err := riverClient.Insert(ctx, settlement.SettleEngagementArgs{EngagementID: engagementID}, nil)
		return err
	}

	hub := realtime.NewHub()
	publisher := realtime.NewPublisher(pool)
	listener := realtime.NewListener(pool, hub)

	engagementSvc := service.NewEngagementService(
		pool, engagementRepo, postRepo, chatRepo, settlementSvc, publisher, enqueueSettlement,
	)
	ratingSvc := rating.NewService(pool, rating.NewRepository(pool), engagementRepo)
	chatCoordinator := chat.NewCoordinator(pool, chatRepo, postRepo, publisher)

	authMiddleware := middleware.NewAuthMiddleware([]byte(c.String("auth-secret")))

	h := handler.New(pool, engagementSvc, ratingSvc, ledgerSvc, chatCoordinator, hub, authMiddleware)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   corsOrigins(c.StringSlice("cors-origin")),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(mux)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           corsHandler,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	if err := riverClient.Start(workerCtx); err != nil {
		return fmt.Errorf("failed to start job queue client: %w", err)
	}

	go func() {
		if err := listener.Run(workerCtx); err != nil {
			slog.Error("realtime listener stopped", "error", err)
		}
	}()

	serverErr := make(chan error, 1)
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "server_addr", "http://localhost:"+port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-done:
		slog.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		slog.Error("job queue client shutdown failed", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

// corsOrigins defaults to localhost development origins when none are
// configured.
func corsOrigins(configured []string) []string {
	if len(configured) > 0 {
		return configured
	}
	return []string{"http://localhost:3000"}
}

func runReconcileSettlements(c *cli.Context) error {
	ctx := c.Context

	db, err := database.New(ctx, c.String("database-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db.Pool()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	settlementSvc := newSettlementService(db.Pool())

	count, err := settlementSvc.ReconcileAll(ctx, c.Duration("older-than"))
	if err != nil {
		return fmt.Errorf("reconcile settlements: %w", err)
	}

	slog.Info("settlement reconciliation finished", "settled", count)
	return nil
}

func newSettlementService(pool *pgxpool.Pool) *settlement.Service {
	engagementRepo := repository.NewEngagementRepository(pool)
	postRepo := repository.NewPostRepository(pool)
	ledgerSvc := ledger.NewService(pool, ledger.NewRepository(pool), ledger.DefaultPolicy)
	return settlement.NewService(engagementRepo, postRepo, ledgerSvc)
}
