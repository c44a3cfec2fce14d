package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/domain/triage"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/cache"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/middleware"
	"github.com/clinic/clinic/internal/platform/phi"
)

const requestTimeout = 15 * time.Second

// services are the domain handlers mounted under /api/v1.
type services struct {
	scheduling *scheduling.Service
	triage     *triage.Service
	health     []db.Check
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg.Env)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	checks := []db.Check{db.PoolCheck(pool)}

	var availability scheduling.AvailabilityCache = cache.Noop{}
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer client.Close()
		availability = cache.NewAvailability(client, cfg.AvailabilityCacheTTL)
		checks = append(checks, redisCheck(client))
		logger.Info().Dur("ttl", cfg.AvailabilityCacheTTL).Msg("availability cache enabled")
	}

	symptoms, err := symptomRepo(pool, cfg.PHIEncryptionKey)
	if err != nil {
		return err
	}
	if cfg.PHIEncryptionKey == "" && cfg.IsProduction() {
		logger.Warn().Msg("PHI_ENCRYPTION_KEY not set, symptom descriptions are stored unencrypted")
	}

	svcs := services{
		scheduling: scheduling.NewService(scheduling.NewAppointmentRepoPG(pool), scheduling.Options{
			Location:           loc,
			EnforceGrid:        cfg.EnforceSlotGrid,
			DefaultHorizonDays: cfg.NextSlotHorizonDays,
			Cache:              availability,
			Logger:             logger,
		}),
		triage: triage.NewService(triage.NewSessionRepoPG(pool), symptoms, logger),
		health: checks,
	}

	e, err := newServer(cfg, logger, svcs)
	if err != nil {
		return err
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("timezone", loc.String()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer builds the echo instance with the full middleware chain and
// every route mounted.
func newServer(cfg *config.Config, logger zerolog.Logger, svcs services) (*echo.Echo, error) {
	key, generated, err := resolveSigningKey(cfg.AuthSigningKey, cfg.IsDev())
	if err != nil {
		return nil, err
	}
	if generated {
		logger.Warn().Msg("AUTH_SIGNING_KEY not set, using a random key for this process")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(requestTimeout))

	// Auth middleware
	verify := auth.JWTMiddleware(auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: key,
		Optional:   true,
		Skipper:    auth.AuthSkipper,
	})
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(verify))
	} else {
		e.Use(verify)
	}

	e.Use(middleware.Audit(logger))

	e.GET("/health", db.HealthHandler(svcs.health...))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))

	scheduling.NewHandler(svcs.scheduling).RegisterRoutes(apiV1)
	triage.NewHandler(svcs.triage).RegisterRoutes(apiV1)

	return e, nil
}

func symptomRepo(pool *pgxpool.Pool, hexKey string) (triage.SymptomRepository, error) {
	if hexKey == "" {
		return triage.NewSymptomRepoPG(pool), nil
	}
	key, err := phi.ParseKey(hexKey)
	if err != nil {
		return nil, err
	}
	enc, err := phi.NewAESGCM(key)
	if err != nil {
		return nil, err
	}
	return triage.NewSymptomRepoPGWithEncryption(pool, enc), nil
}

func redisCheck(client *redis.Client) db.Check {
	return db.Check{
		Name: "cache",
		Ping: func(ctx context.Context) error { return client.Ping(ctx).Err() },
		Details: func() interface{} {
			st := client.PoolStats()
			return map[string]uint32{
				"total_conns": st.TotalConns,
				"idle_conns":  st.IdleConns,
				"hits":        st.Hits,
				"misses":      st.Misses,
			}
		},
	}
}

// resolveSigningKey returns the HS256 key for bearer tokens. Development may
// run without one, in which case a random key is generated; the bool reports
// that. Any other environment must configure it.
func resolveSigningKey(raw string, dev bool) ([]byte, bool, error) {
	if raw != "" {
		if len(raw) < 32 {
			return nil, false, fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 characters")
		}
		return []byte(raw), false, nil
	}
	if !dev {
		return nil, false, fmt.Errorf("AUTH_SIGNING_KEY is required outside development")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("generate signing key: %w", err)
	}
	return key, true, nil
}
