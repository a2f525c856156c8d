// Command server runs the municipal registrar booking API.
//
// Startup sequence:
//  1. Load .env (best effort) and typed configuration from the environment.
//  2. Configure zerolog (level, optional pretty console output).
//  3. Open SQLite, run migrations, seed the queue counter.
//  4. Provision the admin account when ADMIN_EMAIL is configured.
//  5. Initialize OpenTelemetry tracing (optional).
//  6. Mount the Gin router and serve with graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/civregistry/registrar-backend/internal/config"
	httpapi "github.com/civregistry/registrar-backend/internal/http"
	"github.com/civregistry/registrar-backend/internal/observability"
	"github.com/civregistry/registrar-backend/internal/repo"
	"github.com/civregistry/registrar-backend/internal/services"
	"github.com/civregistry/registrar-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// @title           Registrar Booking API
// @version         1.0
// @description     Appointment booking and queue management for a municipal civil registrar.
//
// @contact.name    Civil Registry Backend
//
// @BasePath        /api/v1
//
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Type "Bearer" followed by a space and the JWT.
func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Admin provisioning is explicit and idempotent; signup never grants admin.
	if cfg.Admin.Email != "" {
		authSvc := services.NewAuthService(db, cfg.JWTSecret)
		if err := authSvc.EnsureAdmin(ctx, services.AdminConfig{
			Name:      cfg.Admin.Name,
			Email:     cfg.Admin.Email,
			Password:  cfg.Admin.Password,
			Reconcile: cfg.Admin.Reconcile,
		}); err != nil {
			log.Fatal().Err(err).Msg("provision admin account")
		}
		log.Info().Str("email", cfg.Admin.Email).Msg("admin account ensured")
	}

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("setup tracing")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
