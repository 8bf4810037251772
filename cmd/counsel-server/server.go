package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/counsel/counsel/internal/config"
	"github.com/counsel/counsel/internal/domain/admin"
	"github.com/counsel/counsel/internal/domain/attorney"
	"github.com/counsel/counsel/internal/domain/consultation"
	"github.com/counsel/counsel/internal/domain/feedback"
	"github.com/counsel/counsel/internal/domain/identity"
	"github.com/counsel/counsel/internal/domain/labtest"
	"github.com/counsel/counsel/internal/domain/scheduling"
	"github.com/counsel/counsel/internal/platform/apperr"
	"github.com/counsel/counsel/internal/platform/auth"
	"github.com/counsel/counsel/internal/platform/blobstore"
	"github.com/counsel/counsel/internal/platform/db"
	"github.com/counsel/counsel/internal/platform/middleware"
	"github.com/counsel/counsel/internal/platform/telemetry"
	"github.com/counsel/counsel/internal/platform/websocket"
)

// authBlock is how long a client stays locked out of the credential routes
// after exhausting its window.
const authBlock = 15 * time.Minute

func runServer() error {
	bootLogger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		bootLogger.Fatal().Err(err).Msg("invalid config")
	}
	logger := newLogger(cfg.Env)
	if cfg.IsDev() && cfg.JWTSecret == "" {
		cfg.JWTSecret = "development-only-secret"
		logger.Warn().Msg("JWT_SECRET not set, using a development secret")
	}

	// Fees and prices render as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid timezone")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	var checks []db.Check

	rdb, err := newRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid REDIS_URL")
	}
	if rdb != nil {
		defer rdb.Close()
		checks = append(checks, db.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		logger.Info().Msg("rate limiting backed by redis")
	}

	store, storeChecks, err := newBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise storage")
	}
	checks = append(checks, storeChecks...)

	metrics := telemetry.New()
	metrics.RegisterPool(pool)

	hub := websocket.NewHub(logger)
	hub.OnCountChange = metrics.SetWebsocketClients

	tokens := auth.NewTokens([]byte(cfg.JWTSecret), cfg.JWTTTL)

	// Services
	identitySvc := identity.NewService(identity.NewUserRepoPG(pool), tokens)
	attorneySvc := attorney.NewService(attorney.NewRepoPG(pool), identitySvc, store, cfg.UploadMaxBytes)
	schedulingSvc := scheduling.NewService(scheduling.NewRepoPG(pool), attorneySvc, identitySvc, metrics, loc)
	labtestSvc := labtest.NewService(labtest.NewCatalogRepoPG(pool), labtest.NewBookingRepoPG(pool), metrics)
	consultationSvc := consultation.NewService(consultation.NewRepoPG(pool), attorneySvc,
		db.NewTransactor(pool), hub, metrics, logger)
	feedbackSvc := feedback.NewService(feedback.NewRepoPG(pool))
	adminSvc := admin.NewService(admin.NewRepoPG(pool), identitySvc, schedulingSvc,
		db.NewTransactor(pool), labtestSvc.CountBookings, feedbackSvc.CountPending)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.UploadMaxBytes))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(auth.Authenticate(tokens, auth.AuthSkipper))

	apiLimiter := middleware.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	e.Use(middleware.RateLimit(apiLimiter, "api", middleware.KeyByUserOrIP))
	credentialGuard := middleware.RateLimit(newAuthLimiter(cfg, rdb), "auth", middleware.KeyByIP)

	// Infrastructure
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool, checks...))
	e.GET("/metrics", metrics.Handler())
	e.GET(blobstore.URLPrefix+"*", blobstore.ServeHandler(store))

	// Domains
	identity.NewHandler(identitySvc).RegisterRoutes(e, credentialGuard)
	attorney.NewHandler(attorneySvc).RegisterRoutes(e)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(e)
	labtest.NewHandler(labtestSvc).RegisterRoutes(e)
	consultation.NewHandler(consultationSvc).RegisterRoutes(e)
	feedback.NewHandler(feedbackSvc).RegisterRoutes(e)
	admin.NewHandler(adminSvc).RegisterRoutes(e)
	websocket.NewHandler(hub, consultationSvc, cfg.CORSOrigins, logger).RegisterRoutes(e)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepLimiter(sweepCtx, apiLimiter, logger)

	expiry, err := newExpirySchedule(cfg.SweepSchedule, loc, schedulingSvc.SweepExpired, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid SWEEP_SCHEDULE")
	}
	if expiry != nil {
		expiry.Start()
		defer expiry.Stop()
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
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

// newRedis returns nil when url is empty.
func newRedis(url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

// newAuthLimiter shares the credential-route budget across replicas through
// redis when one is configured, and falls back to a per-process bucket.
func newAuthLimiter(cfg *config.Config, rdb *redis.Client) middleware.Limiter {
	if rdb != nil {
		return middleware.NewRedisLimiter(rdb, cfg.AuthRateLimit, cfg.AuthRateWindow, authBlock)
	}
	window := cfg.AuthRateWindow
	if window <= 0 {
		window = time.Minute
	}
	rps := float64(cfg.AuthRateLimit) / window.Seconds()
	return middleware.NewMemoryLimiter(rps, cfg.AuthRateLimit)
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blobstore.Store, []db.Check, error) {
	switch cfg.StorageType {
	case "s3":
		s, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
			Bucket:    cfg.AWSS3Bucket,
			Region:    cfg.AWSRegion,
			AccessKey: cfg.AWSAccessKeyID,
			SecretKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, []db.Check{{Name: "s3", Ping: s.Ping}}, nil
	case "local", "":
		s, err := blobstore.NewLocalStore(cfg.StorageLocalPath)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORAGE_TYPE %q", cfg.StorageType)
	}
}

// newExpirySchedule runs sweep on the cron schedule spec, evaluated in loc. An empty spec
// disables the schedule; listing appointments as an admin still sweeps.
func newExpirySchedule(spec string, loc *time.Location, sweep func(context.Context) (int64, error), logger zerolog.Logger) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}
	c := cron.New(cron.WithLocation(loc))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := sweep(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("scheduled expiry sweep failed")
			return
		}
		logger.Info().Int64("expired", n).Msg("scheduled expiry sweep")
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func sweepLimiter(ctx context.Context, l *middleware.MemoryLimiter, logger zerolog.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(10 * time.Minute); n > 0 {
				logger.Debug().Int("buckets", n).Msg("rate limiter swept")
			}
		}
	}
}
