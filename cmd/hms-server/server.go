package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/config"
	"github.com/hms/hms/internal/domain/appointment"
	"github.com/hms/hms/internal/domain/availability"
	"github.com/hms/hms/internal/domain/directory"
	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/metrics"
	"github.com/hms/hms/internal/platform/middleware"
	"github.com/hms/hms/internal/platform/supabase"
)

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// jwtConfig verifies Supabase access tokens with the project secret when
// one is set and with the JWKS endpoint otherwise.
func jwtConfig(cfg *config.Config) auth.JWTConfig {
	jc := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
		Skipper:  auth.AuthSkipper,
	}
	if cfg.SupabaseJWTSecret != "" {
		jc.SigningKey = []byte(cfg.SupabaseJWTSecret)
	} else if jc.JWKSURL == "" && jc.Issuer != "" {
		jc.JWKSURL = auth.JWKSURLForIssuer(jc.Issuer)
	}
	return jc
}

func hasTokenSource(cfg *config.Config) bool {
	return cfg.SupabaseJWTSecret != "" || cfg.AuthJWKSURL != "" || cfg.AuthIssuer != ""
}

// noProfiles stands in for the Supabase lookup in development setups
// without Supabase credentials. Token-bearing requests are refused.
type noProfiles struct{}

func (noProfiles) Resolve(_ context.Context, userID string) (*auth.Principal, error) {
	return nil, apperr.NotFound("profile", userID)
}

func principalResolver(cfg *config.Config, logger zerolog.Logger) (auth.PrincipalResolver, error) {
	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
		logger.Warn().Msg("SUPABASE_URL not configured, only unauthenticated development requests are served")
		return noProfiles{}, nil
	}
	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey)
	if err != nil {
		return nil, err
	}
	return supabase.NewProfileResolver(client), nil
}

// services holds the handlers mounted under /api/v1.
type services struct {
	directory    *directory.Handler
	availability *availability.Handler
	appointments *appointment.Handler
}

// newRouter assembles the middleware chain and routes. health may be nil
// when no database is attached.
func newRouter(cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics,
	resolver auth.PrincipalResolver, health echo.HandlerFunc, svc services) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	if m != nil {
		e.Use(m.Middleware())
	}
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization, middleware.RequestIDHeader},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.BodyLimit("1M"))

	if cfg.IsDev() {
		var jc *auth.JWTConfig
		if hasTokenSource(cfg) {
			c := jwtConfig(cfg)
			jc = &c
		}
		e.Use(auth.DevAuthMiddleware(jc))
	} else {
		e.Use(auth.JWTMiddleware(jwtConfig(cfg)))
	}
	e.Use(auth.ResolvePrincipal(resolver, auth.AuthSkipper))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if health != nil {
		e.GET("/health/db", health)
	}
	if m != nil && cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}

	api := e.Group("/api/v1")
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	api.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	api.Use(middleware.Audit(logger))

	svc.directory.RegisterRoutes(api)
	svc.availability.RegisterRoutes(api)
	svc.appointments.RegisterRoutes(api)
	return e
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid clinic timezone")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	resolver, err := principalResolver(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create supabase client")
	}

	m := metrics.New()
	m.RegisterPool(db.StatsFunc(pool))

	dirSvc := directory.NewService(directory.NewDoctorRepoPG(pool), directory.NewHospitalRepoPG(pool))
	rules := availability.NewRuleRepoPG(pool)
	tx := db.NewTransactor(pool)
	availSvc := availability.NewService(rules, availability.NewBookingCounterPG(pool), dirSvc, tx,
		cfg.AvailabilityOverlapPolicy, m)
	apptSvc := appointment.NewService(appointment.NewRepoPG(pool), rules, dirSvc, tx,
		cfg.BookingDefaultStatus, loc, m)

	e := newRouter(cfg, logger, m, resolver, db.HealthHandler(pool, db.StatsFunc(pool)), services{
		directory:    directory.NewHandler(dirSvc),
		availability: availability.NewHandler(availSvc),
		appointments: appointment.NewHandler(apptSvc),
	})

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
