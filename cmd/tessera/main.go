package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/tessera-pm/tessera/internal/app"
	"github.com/tessera-pm/tessera/internal/audit"
	audithttp "github.com/tessera-pm/tessera/internal/audit/http"
	"github.com/tessera-pm/tessera/internal/catalog"
	"github.com/tessera-pm/tessera/internal/gate"
	"github.com/tessera-pm/tessera/internal/ledger"
	"github.com/tessera-pm/tessera/internal/observability"
	"github.com/tessera-pm/tessera/internal/platform/cache"
	"github.com/tessera-pm/tessera/internal/platform/db"
	"github.com/tessera-pm/tessera/internal/resolver"
	"github.com/tessera-pm/tessera/internal/roles"
	"github.com/tessera-pm/tessera/internal/tenancy"
	"github.com/tessera-pm/tessera/jobs"
)

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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, resolver cache and audit queue disabled", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	permissions := catalog.Default()

	var sink audit.Sink = audit.NewLogSink(logger)
	if redisClient != nil {
		queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		if err != nil {
			logger.Warn("asynq client", slog.Any("error", err))
		} else {
			defer func() {
				if err := queueClient.Close(); err != nil {
					logger.Warn("asynq close", slog.Any("error", err))
				}
			}()
			sink = jobs.NewAuditSink(queueClient, logger)
		}
	}

	guard := tenancy.NewGuard(sink, logger)

	var resolverCache *resolver.Cache
	if redisClient != nil && cfg.ResolverCacheEnabled {
		resolverCache = resolver.NewCache(redisClient, cfg.ResolverCacheTTL)
	}

	resolverRepo := resolver.NewRepository(pool)
	permResolver := resolver.New(resolverRepo, guard, resolverCache, metrics, logger)
	authzGate := gate.New(permissions, permResolver, sink, metrics, logger)
	authzMiddleware := gate.Middleware{Gate: authzGate, Logger: logger}

	ledgerRepo := ledger.NewRepository(pool)
	rolesRepo := roles.NewRepository(pool)
	rolesService := roles.NewService(rolesRepo, permissions, guard, ledgerRepo, logger)
	projectRegistry := ledger.NewPgProjectRegistry(pool)
	ledgerService := ledger.NewService(ledgerRepo, rolesRepo, projectRegistry, guard, resolverCache, logger)

	auditStore := audit.NewStore(pool)

	gateHandler := gate.NewHandler(logger, authzGate)
	rolesHandler := roles.NewHandler(logger, rolesService, authzMiddleware)
	assignmentHandler := ledger.NewHandler(logger, ledgerService, authzMiddleware)
	auditHandler := audithttp.NewHandler(logger, auditStore, guard, authzMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Identity:          tenancy.HeaderIdentityProvider{},
		GateHandler:       gateHandler,
		RolesHandler:      rolesHandler,
		AssignmentHandler: assignmentHandler,
		AuditHandler:      auditHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
