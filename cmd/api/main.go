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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/digitalis/digitalis/internal/auth"
	"github.com/digitalis/digitalis/internal/config"
	"github.com/digitalis/digitalis/internal/database"
	"github.com/digitalis/digitalis/internal/handlers"
	middlewareCustom "github.com/digitalis/digitalis/internal/middleware"
	"github.com/digitalis/digitalis/internal/repositories"
	"github.com/digitalis/digitalis/internal/routes"
	"github.com/digitalis/digitalis/internal/services"
	"github.com/digitalis/digitalis/internal/webservice"
	pkghttp "github.com/digitalis/digitalis/pkg/http"
	pkglogger "github.com/digitalis/digitalis/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Server.SlogLevel()}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
	}

	ipConfig, invalid := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	for _, cidr := range invalid {
		logger.Warn("ignoring invalid trusted proxy range", slog.String("cidr", cidr))
	}

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	enrolmentRepo := repositories.NewEnrolmentRepository(db)
	capabilityRepo := repositories.NewCapabilityRepository(db)
	eventLogRepo := repositories.NewEventLogRepository(db)

	// Initialize services
	accessControl := services.NewAccessControl(capabilityRepo, &cfg.Site, logger)
	criteriaFilter := services.NewCriteriaFilter(userRepo, accessControl, logger)
	projector := services.NewProfileProjector(userRepo, enrolmentRepo, accessControl, &cfg.Site, logger)
	resolver := services.NewVisibilityResolver(enrolmentRepo, accessControl, projector, logger)
	lookupService := services.NewUserLookupService(userRepo, criteriaFilter, resolver, cfg.Site.MaxPageSize, logger, auditLogger)
	unenrolService := services.NewUnenrolService(db, enrolmentRepo, eventLogRepo, accessControl, cfg.Site.ManualEnrolEnabled, logger, auditLogger)

	// Initialize handlers
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.TokenExpiry)
	wsHandler := handlers.NewWebServiceHandler(
		webservice.NewRegistry(),
		lookupService,
		unenrolService,
		middlewareCustom.RateLimitByCaller(middlewareCustom.DefaultWriteRateLimit(), ipConfig),
		logger,
		auditLogger,
		ipConfig,
	)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, routes.Dependencies{
		Auth:       auth.AuthMiddleware(tokenManager, userRepo, auditLogger, ipConfig, logger),
		IPLimit:    middlewareCustom.RateLimitByIP(middlewareCustom.RateLimitConfig{RequestsPerMinute: cfg.Server.RateLimitPerMinute}, ipConfig),
		Health:     handlers.NewHealthHandler(db, logger),
		WebService: wsHandler,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
