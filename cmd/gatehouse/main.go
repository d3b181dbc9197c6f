package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/gatehouse-app/gatehouse/internal/access"
	"github.com/gatehouse-app/gatehouse/internal/admin"
	"github.com/gatehouse-app/gatehouse/internal/app"
	"github.com/gatehouse-app/gatehouse/internal/auth"
	"github.com/gatehouse-app/gatehouse/internal/identity"
	"github.com/gatehouse-app/gatehouse/internal/idp"
	"github.com/gatehouse-app/gatehouse/internal/observability"
	"github.com/gatehouse-app/gatehouse/internal/platform/cache"
	"github.com/gatehouse-app/gatehouse/internal/platform/db"
	"github.com/gatehouse-app/gatehouse/internal/settings"
	"github.com/gatehouse-app/gatehouse/internal/shared"
	"github.com/gatehouse-app/gatehouse/internal/site"
	"github.com/gatehouse-app/gatehouse/internal/view"
	"github.com/gatehouse-app/gatehouse/jobs"
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

	var pool *pgxpool.Pool
	if cfg.Persistent() {
		pool, err = db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
	} else {
		logger.Warn("no database configured, access rules fall back to defaults")
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "gatehouse_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	rolesClaim := identity.RolesClaimNamespace(cfg.OIDCRedirectURL)
	resolver := identity.NewResolver(rolesClaim)

	var authenticator *auth.Authenticator
	oidcCfg := auth.OIDCConfig{
		ProviderName: cfg.OIDCProviderName,
		IssuerURL:    cfg.OIDCIssuerURL,
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		RedirectURL:  cfg.OIDCRedirectURL,
	}
	if oidcCfg.Configured() {
		authenticator, err = auth.NewAuthenticator(ctx, oidcCfg)
		if err != nil {
			logger.Error("configure oidc provider", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		logger.Warn("oidc not configured, only the development login is available")
	}

	var authRepo auth.Repository
	var settingsRepo settings.Repository
	if pool != nil {
		authRepo = auth.NewRepository(pool)
		settingsRepo = settings.NewRepository(pool)
	}

	authService := auth.NewService(authRepo, cfg.DevLoginEmail, cfg.DevLoginPasswordHash, rolesClaim)
	authHandler := auth.NewHandler(logger, authenticator, authService, templates, sessionManager, csrfManager)

	metrics := observability.NewMetrics()
	store := access.NewStore(settingsRepo, logger, cfg.AccessCacheTTL)
	guard := access.Guard{
		Store:     store,
		Resolver:  resolver,
		Templates: templates,
		CSRF:      csrfManager,
		Logger:    logger,
		Metrics:   metrics,
	}

	var directory admin.Directory
	idpCfg := idp.Config{
		Domain:       cfg.IdPDomain,
		ClientID:     cfg.IdPM2MClientID,
		ClientSecret: cfg.IdPM2MClientSecret,
		Connection:   cfg.IdPConnection,
		AppClientID:  cfg.OIDCClientID,
	}
	if idpCfg.Configured() {
		directory = idp.NewClient(idpCfg)
	} else {
		logger.Warn("management api not configured, user administration is read-only")
	}

	queue, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("create job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	adminHandler := admin.NewHandler(logger, store, directory, guard, queue, auditLogger, templates, csrfManager)
	siteHandler := site.NewHandler(logger, guard, templates, csrfManager)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Guard:          guard,
		AuthHandler:    authHandler,
		SiteHandler:    siteHandler,
		AdminHandler:   adminHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
