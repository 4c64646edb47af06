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

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/procurehub/procurehub/cmd/procurehub/cli"
	"github.com/procurehub/procurehub/internal/app"
	"github.com/procurehub/procurehub/internal/auth"
	"github.com/procurehub/procurehub/internal/dashboard"
	"github.com/procurehub/procurehub/internal/inventory"
	"github.com/procurehub/procurehub/internal/masterdata/items"
	"github.com/procurehub/procurehub/internal/masterdata/vendors"
	"github.com/procurehub/procurehub/internal/observability"
	"github.com/procurehub/procurehub/internal/platform/cache"
	"github.com/procurehub/procurehub/internal/platform/db"
	"github.com/procurehub/procurehub/internal/procurement"
	"github.com/procurehub/procurehub/internal/rbac"
	"github.com/procurehub/procurehub/jobs"
)

const usage = `usage: procurehub [serve | migrate | seed-admin <email> <password> | enqueue <task> [rfq-id]]`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "migrate":
		err = db.Migrate(ctx, cfg.PGDSN)
		if err == nil {
			logger.Info("migrations applied")
		}
	case "seed-admin":
		if len(os.Args) != 4 {
			err = errors.New(usage)
			break
		}
		err = seedAdmin(ctx, cfg, logger, os.Args[2], os.Args[3])
	case "enqueue":
		if len(os.Args) < 3 {
			err = errors.New(usage)
			break
		}
		err = enqueue(ctx, cfg, logger, os.Args[2:])
	default:
		err = fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	if err != nil {
		logger.Error(cmd, slog.Any("error", err))
		os.Exit(1)
	}
}

func connect(ctx context.Context, cfg *app.Config) (*pgxpool.Pool, *redis.Client, error) {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, err
	}
	rdb, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, rdb, nil
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	if cfg.PGMigrateOnStart {
		if err := db.Migrate(ctx, cfg.PGDSN); err != nil {
			return err
		}
	}
	pool, rdb, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	svc := app.NewServices(cfg, logger, pool, rdb, jobClient)
	rbacMiddleware := rbac.Middleware{Logger: logger}
	authenticator := auth.NewAuthenticator(svc.Auth, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Authenticator:      authenticator,
		AuthHandler:        auth.NewHandler(logger, svc.Auth, authenticator, rbacMiddleware, app.LoginGuard(cfg)),
		ItemsHandler:       items.NewHandler(logger, svc.Items, rbacMiddleware),
		VendorsHandler:     vendors.NewHandler(logger, svc.Vendors, rbacMiddleware),
		InventoryHandler:   inventory.NewHandler(logger, svc.Inventory, rbacMiddleware),
		ProcurementHandler: procurement.NewHandler(logger, svc.Procurement, rbacMiddleware),
		DashboardHandler:   dashboard.NewHandler(logger, svc.Dashboard, rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, jobClient, rbacMiddleware, logger),
		HealthChecks: map[string]app.HealthCheck{
			"postgres": pool.Ping,
			"redis":    func(ctx context.Context) error { return cache.Ping(ctx, rdb) },
		},
		Metrics: observability.NewMetrics(),
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func seedAdmin(ctx context.Context, cfg *app.Config, logger *slog.Logger, email, password string) error {
	pool, rdb, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	defer rdb.Close()

	user, err := app.NewServices(cfg, logger, pool, rdb, nil).Auth.SeedAdmin(ctx, email, password)
	if err != nil {
		return err
	}
	logger.Info("admin created", slog.Int64("id", user.ID), slog.String("email", user.Email))
	return nil
}

func enqueue(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) error {
	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	defer func() {
		if err := jobsCLI.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
	}()
	info, err := jobsCLI.Trigger(ctx, args[0], args[1:]...)
	if err != nil {
		return err
	}
	logger.Info("task enqueued", slog.String("type", info.Type), slog.String("id", info.ID))
	return nil
}
