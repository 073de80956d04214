// Package app wires the pricing stores, caches and services shared by the
// API and worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/config"
	"github.com/noah-isme/toko-pricing/internal/formula"
	"github.com/noah-isme/toko-pricing/internal/migrations"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/rates"
	"github.com/noah-isme/toko-pricing/internal/recalc"
	"github.com/noah-isme/toko-pricing/internal/repo"
)

// Dependencies enumerates services shared across the binaries.
type Dependencies struct {
	Config     *config.Config
	Logger     zerolog.Logger
	DB         *pgxpool.Pool
	Redis      *redis.Client
	KV         redis.Cmdable
	Engine     *formula.Engine
	Subjects   repo.Subjects
	Rates      *rates.Cache
	Calculator *pricing.Calculator
	Validator  *validator.Validate
}

// New connects to postgres and redis and builds the calculator. Close
// releases the connections.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, appName string) (*Dependencies, error) {
	if cfg.MigrateOnStart {
		if err := migrations.Up(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		logger.Info().Msg("migrations applied")
	}
	pool, err := NewDatabase(ctx, cfg, appName)
	if err != nil {
		return nil, err
	}
	rdb, err := NewRedis(ctx, cfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	d := Build(cfg, logger, pool, rdb)
	d.DB = pool
	d.Redis = rdb
	return d, nil
}

// Build assembles the pricing services over db and rdb.
func Build(cfg *config.Config, logger zerolog.Logger, db repo.DBTX, rdb redis.Cmdable) *Dependencies {
	engine := NewEngine(cfg)
	subjects := repo.Subjects{DB: db}
	rateCache := &rates.Cache{
		R:      rdb,
		Source: repo.Rates{DB: db},
		Prefix: cfg.RateCacheKey,
		TTL:    cfg.RateCacheTTL,
		Logger: logger.With().Str("component", "rates").Logger(),
	}
	calc := &pricing.Calculator{
		Engine:    engine,
		Formulas:  repo.Formulas{DB: db},
		Rates:     rateCache,
		Subjects:  subjects,
		Discounts: pricing.DiscountService{Store: subjects},
		Logger:    logger.With().Str("component", "pricing").Logger(),
	}
	return &Dependencies{
		Config:     cfg,
		Logger:     logger,
		KV:         rdb,
		Engine:     engine,
		Subjects:   subjects,
		Rates:      rateCache,
		Calculator: calc,
		Validator:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// NewEngine builds the formula engine from configuration.
func NewEngine(cfg *config.Config) *formula.Engine {
	return formula.NewEngine(formula.EngineConfig{
		CacheSize: cfg.FormulaCacheSize,
		Options: formula.Options{
			RejectUnknown: cfg.FormulaStrictSyntax,
			MaxLength:     cfg.FormulaMaxLength,
			MaxDepth:      cfg.FormulaMaxDepth,
		},
	})
}

// RegisterMetrics registers the domain collectors and the formula memo
// gauges for d.Engine.
func (d *Dependencies) RegisterMetrics(reg prometheus.Registerer) {
	ns := d.Config.Obs.MetricsNamespace
	obs.MustRegisterDomainMetrics(ns, reg)
	engine := d.Engine
	obs.MustRegisterFormulaCacheMetrics(ns, reg, func() (uint64, uint64, int) {
		s := engine.Stats()
		return s.Hits, s.Misses, s.Entries
	})
}

// Runner builds a batch recalculation runner.
func (d *Dependencies) Runner() *recalc.Runner {
	return &recalc.Runner{
		Calc:        d.Calculator,
		Subjects:    d.Subjects,
		Writer:      d.Subjects,
		Concurrency: d.Config.RecalcConcurrency,
		Logger:      d.Logger.With().Str("component", "recalc").Logger(),
	}
}

// Locker builds the run lock guarding batch recalculation.
func (d *Dependencies) Locker() recalc.Locker {
	return recalc.Locker{R: d.KV, TTL: d.Config.RecalcLockTTL}
}

// Close releases the database pool and redis client.
func (d *Dependencies) Close() error {
	var errs []error
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	return errors.Join(errs...)
}

// NewDatabase opens a traced pgx pool.
func NewDatabase(ctx context.Context, cfg *config.Config, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = appName
	if cfg.RecalcConcurrency > 0 && poolConfig.MaxConns < int32(cfg.RecalcConcurrency+2) {
		poolConfig.MaxConns = int32(cfg.RecalcConcurrency + 2)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// NewRedis opens a traced redis client.
func NewRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if cfg.Obs.TracingEnabled {
		if err := redisotel.InstrumentTracing(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// TaskRedis converts the redis URL into asynq connection options.
func TaskRedis(cfg *config.Config) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse task redis url: %w", err)
	}
	return opt, nil
}
