package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dcspace-backend/internal/auth"
	"dcspace-backend/internal/cache"
	"dcspace-backend/internal/config"
	"dcspace-backend/internal/database"
	"dcspace-backend/internal/db"
	h "dcspace-backend/internal/http"
	"dcspace-backend/internal/handlers"
	"dcspace-backend/internal/health"
	"dcspace-backend/internal/middleware"
	"dcspace-backend/internal/models"
	"dcspace-backend/internal/monitoring"
	"dcspace-backend/internal/repositories"
	"dcspace-backend/internal/services"
	"dcspace-backend/internal/storage"
	"dcspace-backend/internal/timeutil"
	"dcspace-backend/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dcspace",
		Short: "Data center space rental backend",
		// Bare invocation serves, so container entrypoints need no arguments.
		RunE:          func(cmd *cobra.Command, args []string) error { return serve(cmd.Context()) },
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the overdue scanner",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "scan-overdue",
		Short: "Run one overdue invoice scan and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return scanOverdue(cmd.Context())
		},
	})
	cmd.AddCommand(newTokenCommand())

	return cmd
}

func newTokenCommand() *cobra.Command {
	var role, id, providerID string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			var c models.Caller
			switch role {
			case models.RoleCustomer:
				c = models.Customer{ID: id}
			case models.RoleProvider:
				c = models.Provider{ID: id, ProviderID: providerID}
			case models.RoleAdmin:
				c = models.Admin{ID: id}
			default:
				return fmt.Errorf("unknown role %q", role)
			}

			token, err := auth.NewJWTManager(cfg).GenerateToken(c)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", models.RoleCustomer, "customer|provider|admin")
	cmd.Flags().StringVar(&id, "id", "", "user id (required)")
	cmd.Flags().StringVar(&providerID, "provider-id", "", "provider organisation id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	migrator := database.NewMigratorWithFS(pool, migrations.FS, ".")
	if err := migrator.RunMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}
	return pool, nil
}

func migrate(ctx context.Context) error {
	cfg := config.Load()
	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	pool.Close()
	log.Println("[Migrate] Database is up to date")
	return nil
}

func billingClock(cfg *config.Config) timeutil.Clock {
	return timeutil.SystemClock{Location: timeutil.LoadLocation(cfg.Billing.Timezone)}
}

func scanOverdue(ctx context.Context) error {
	cfg := config.Load()
	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := cache.Init(cfg); err != nil {
		log.Printf("[Redis] Unavailable, scanning without lock: %v", err)
	}
	defer cache.Close()

	scanner := services.NewOverdueScanner(repositories.NewRentRepository(pool), billingClock(cfg),
		cfg.Billing.OverdueScanInterval, cfg.Billing.OverdueBatchSize)
	scanner.SetLocker(cache.Locker{})

	n, err := scanner.RunOnce(ctx)
	if err != nil {
		return err
	}
	log.Printf("[Overdue] Reported %d overdue invoice(s)", n)
	return nil
}

func serve(parent context.Context) error {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := cache.Init(cfg); err != nil {
		log.Printf("[Redis] Unavailable, continuing without cache: %v", err)
	}
	defer cache.Close()

	objects, err := storage.NewS3Store(ctx, cfg)
	if err != nil {
		return fmt.Errorf("object storage: %w", err)
	}

	clock := billingClock(cfg)
	rentRepo := repositories.NewRentRepository(pool)

	eventHub := monitoring.NewEventHub()
	go eventHub.Run(ctx)

	rentService := services.NewRentService(rentRepo, objects, clock)
	rentService.SetRecurringCount(cfg.Billing.RecurringCount)
	rentService.SetEventPublisher(eventHub)
	rentService.SetCache(cache.NewRentViews())

	scanner := services.NewOverdueScanner(rentRepo, clock, cfg.Billing.OverdueScanInterval, cfg.Billing.OverdueBatchSize)
	scanner.SetEventPublisher(eventHub)
	scanner.SetLocker(cache.Locker{})
	go scanner.RunForever(ctx)

	collector := services.NewMetricsCollector(func() services.PoolStats {
		s := pool.Stat()
		return services.PoolStats{Acquired: s.AcquiredConns(), Idle: s.IdleConns(), Total: s.TotalConns()}
	}, 15*time.Second)
	collector.Start()
	defer collector.Stop()

	healthChecker := health.NewHealthChecker(pool)
	healthChecker.SetRedisCheck(cache.IsHealthy)

	rentHandler := handlers.NewRentHandler(rentService, services.NewReceiptService(clock), cfg.Server.MaxUploadMB)
	healthHandler := handlers.NewHealthHandler(healthChecker)
	authMiddleware := middleware.NewAuthMiddleware(auth.NewJWTManager(cfg))

	router := h.NewRouter(rentHandler, healthHandler, eventHub, authMiddleware)

	accessLogger := middleware.NewAccessLogger()
	defer accessLogger.Close()
	corsMiddleware := middleware.NewCORS(cfg)
	handler := middleware.PanicRecovery(corsMiddleware(accessLogger.Handler(router)))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
