package commands

import (
	"context"
	"fmt"

	"github.com/creco/imaikura/internal/cpidata"
	"github.com/creco/imaikura/internal/external/coingecko"
	"github.com/creco/imaikura/internal/inflation"
	"github.com/creco/imaikura/internal/rates"
	"github.com/creco/imaikura/pkg/config"
	"github.com/creco/imaikura/pkg/database"
	"github.com/creco/imaikura/pkg/httputil"
	"github.com/creco/imaikura/pkg/logger"
	"github.com/creco/imaikura/pkg/redis"
)

// keyPrefix namespaces every Redis key of this application
const keyPrefix = "imaikura"

// app holds the dependencies shared by the commands
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	redis   *redis.Client
	db      *database.DB
	fetcher *rates.Fetcher
	service *inflation.Service
}

// loadConfig loads the config and applies the global flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cpiDataPath != "" {
		cfg.CPI.DataPath = cpiDataPath
		cfg.CPI.Source = "file"
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newApp wires config, logger, Redis and the rate fetcher. The CPI table is
// not loaded until loadCPI.
func newApp() (*app, error) {
	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to Redis (optional)
	redisClient, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// 4. Create rate provider and fetcher
	httpClient := httputil.New(cfg, log)
	provider := coingecko.NewClient(httpClient, cfg.Rates.BaseURL, log)
	fetcher := rates.NewFetcher(provider, redis.NewCache(redisClient, keyPrefix), cfg.Rates.CacheTTL, log).
		WithFetchTimeout(cfg.Rates.FetchTimeout)

	// 5. Create calculation service
	service := inflation.NewService(fetcher, log)

	return &app{
		cfg:     cfg,
		log:     log,
		redis:   redisClient,
		fetcher: fetcher,
		service: service,
	}, nil
}

// database connects to PostgreSQL on first use
func (a *app) database(ctx context.Context) (*database.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := database.New(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.db = db
	a.log.Info("Connected to database")
	return db, nil
}

// cpiSource returns the CPI table source selected by CPI_SOURCE
func (a *app) cpiSource(ctx context.Context) (inflation.CpiSource, error) {
	if a.cfg.CPI.Source == "postgres" {
		db, err := a.database(ctx)
		if err != nil {
			return nil, err
		}
		return cpidata.NewRepository(db.Pool), nil
	}
	return cpidata.NewFileSource(a.cfg.CPI.DataPath), nil
}

// loadCPI loads the CPI table and the first rate snapshot
func (a *app) loadCPI(ctx context.Context) error {
	src, err := a.cpiSource(ctx)
	if err != nil {
		return err
	}
	return a.service.Init(ctx, src)
}

// Close releases connections
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close redis")
	}
}
