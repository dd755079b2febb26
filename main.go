// search-analytics records Tripvar search activity, serves the analytics
// dashboard, and fronts the API with the rate-limiting and DDoS protection
// stack.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/tripvar/search-analytics/internal/api"
	"github.com/tripvar/search-analytics/internal/config"
	"github.com/tripvar/search-analytics/internal/handler"
	"github.com/tripvar/search-analytics/internal/httpserver"
	"github.com/tripvar/search-analytics/internal/logger"
	"github.com/tripvar/search-analytics/internal/ratelimit"
	"github.com/tripvar/search-analytics/internal/service"
	"github.com/tripvar/search-analytics/internal/storage"
	"github.com/tripvar/search-analytics/internal/telemetry"
)

const janitorInterval = time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "search-analytics: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.GetConfigPath("config.yml"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	log.Info("Starting service",
		logger.String("service", cfg.Service.Name),
		logger.String("version", cfg.Service.Version),
	)

	db, err := storage.Connect(context.Background(), cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	metrics := telemetry.New(prometheus.DefaultRegisterer)

	// done stops the in-memory janitors on shutdown.
	done := make(chan struct{})
	defer close(done)

	store, err := buildCounterStore(cfg, log, done)
	if err != nil {
		return err
	}

	var (
		limiters    *ratelimit.Limiters
		progressive *ratelimit.Progressive
	)
	if cfg.RateLimit.Enabled {
		limiters = ratelimit.NewLimiters(store, log)
		limiters.SetOnReject(func(name string) {
			metrics.RateLimitRejections.WithLabelValues(name).Inc()
		})

		strict := ratelimit.New(ratelimit.Config{
			Name:    "search_strict",
			Profile: ratelimit.ProfileSearchStrict,
			Message: "too many search requests, please slow down",
		}, store, log)
		strict.OnReject = func(name string) {
			metrics.RateLimitRejections.WithLabelValues(name).Inc()
		}
		tracker := ratelimit.NewViolationTracker(ratelimit.DefaultViolationDecay)
		progressive = ratelimit.NewProgressive(limiters.Search, strict, tracker, log)
	}

	var guard *ratelimit.Guard
	if cfg.DDoS.Enabled {
		guard = ratelimit.NewGuard(ratelimit.GuardConfig{
			Window:        cfg.DDoS.Window,
			MaxRequests:   cfg.DDoS.MaxRequests,
			BlockDuration: cfg.DDoS.BlockDuration,
			Whitelist:     cfg.DDoS.Whitelist,
			Blacklist:     cfg.DDoS.Blacklist,
		}, log)
		guard.OnBlock = metrics.DDoSBlocks.Inc
		guard.StartJanitor(done, janitorInterval)
	}

	var geo *ratelimit.Geo
	if cfg.Geo.Enabled {
		geo = ratelimit.NewGeo(geoConfig(cfg.Geo), store, log)
	}

	buffer := storage.NewBuffer(cfg.Service.BufferSize)
	events := storage.NewEventStore(db, buffer, log,
		cfg.Service.FlushInterval, cfg.Service.FlushThreshold)
	events.Start()
	defer events.Stop()

	repo := storage.NewRepository(db)
	svc := service.New(repo, log, cfg.Service.QueryTimeout)

	deps := api.Deps{
		JWTSecret:   cfg.Service.JWTSecret,
		Guard:       guard,
		Geo:         geo,
		Limiters:    limiters,
		Progressive: progressive,
		Analytics:   handler.NewAnalytics(svc, log, metrics),
		Tracking:    handler.NewTracking(buffer, events, log, metrics, cfg.Service.QueryTimeout),
		Health:      handler.NewHealth(db, cfg.Service.Name, cfg.Service.Version),
	}

	server := httpserver.New(httpserver.Config{
		Port:           cfg.Service.Port,
		Debug:          cfg.Service.Debug,
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
	}, log, func(r *gin.Engine) {
		api.RegisterRoutes(r, deps)
	})

	return server.Run()
}

// buildCounterStore picks the rate-limit counter backend. Redis shares
// counters across instances; the memory store is per-process.
func buildCounterStore(cfg *config.Config, log logger.Logger, done <-chan struct{}) (ratelimit.CounterStore, error) {
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}

		log.Info("Using Redis rate-limit counter store",
			logger.String("address", cfg.Redis.Address))
		return ratelimit.NewRedisStore(client, "search-analytics:"), nil
	}

	store := ratelimit.NewMemoryStore()
	store.StartJanitor(done, janitorInterval)
	log.Info("Using in-memory rate-limit counter store")
	return store, nil
}

// geoConfig converts the config representation into the limiter's.
func geoConfig(cfg config.GeoConfig) ratelimit.GeoConfig {
	limits := make(map[string]ratelimit.Profile, len(cfg.CountryLimits))
	for cc, l := range cfg.CountryLimits {
		limits[cc] = ratelimit.Profile{Window: l.Window, Max: l.Max}
	}
	return ratelimit.GeoConfig{
		Allowed: cfg.AllowedCountries,
		Blocked: cfg.BlockedCountries,
		Limits:  limits,
	}
}
