package main

import (
	"context"
	"fmt"

	"mint-sniper/agent/database"
	"mint-sniper/agent/internal/filters"
	"mint-sniper/agent/internal/services"
	"mint-sniper/agent/internal/watchlist"
	"mint-sniper/shared/config"
	"mint-sniper/shared/env"
	"mint-sniper/shared/logger"

	"go.uber.org/zap"
)

func loggerConfig(cfg *config.Config, vars *env.Vars) logger.Config {
	environment := cfg.App.Environment
	if vars.Environment != "" {
		environment = vars.Environment
	}
	return logger.Config{
		Level:       cfg.Logging.Level,
		Environment: environment,
		File:        cfg.Logging.File,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
	}
}

func filterConfig(cfg *config.Config) filters.Config {
	modes := make(map[string]filters.ModeThresholds, len(cfg.Filters.Modes))
	for name, m := range cfg.Filters.Modes {
		modes[name] = filters.ModeThresholds{
			MinMarketCap:      m.MinMarketCap,
			MaxMarketCap:      m.MaxMarketCap,
			MaxCapToLiquidity: m.MaxCapToLiquidity,
			MinLiquidity:      m.MinLiquidity,
			MinVolume5m:       m.MinVolume5m,
			MinAgeMinutes:     m.MinAgeMinutes,
			MinHolders:        m.MinHolders,
			PriceChange5m:     filters.Band{Min: m.PriceChange5m.Min, Max: m.PriceChange5m.Max},
			PriceChange1h:     filters.Band{Min: m.PriceChange1h.Min, Max: m.PriceChange1h.Max},
		}
	}
	return filters.Config{
		Modes:                modes,
		MaxTopHolderFraction: cfg.Filters.MaxTopHolderFraction,
		MaxCandleChangePct:   cfg.Filters.MaxCandleChangePct,
	}
}

func supervisorConfig(cfg *config.Config) watchlist.Config {
	steps := make([]watchlist.Step, 0, len(cfg.Watchlist.Thresholds))
	for _, s := range cfg.Watchlist.Thresholds {
		steps = append(steps, watchlist.Step{UpTo: s.UpTo, MinRatio: s.MinRatio})
	}
	return watchlist.Config{
		MinSpacing:       cfg.Watchlist.MinSpacing,
		MaxInterval:      cfg.Watchlist.MaxInterval,
		Expiry:           cfg.Watchlist.Expiry,
		MaxParallelPolls: cfg.Watchlist.MaxParallelPolls,
		PollTimeout:      cfg.Watchlist.PollTimeout,
		Thresholds:       watchlist.Thresholds{Steps: steps, After: cfg.Watchlist.FinalMinRatio},
	}
}

func dexScreenerConfig(cfg *config.Config) services.DexScreenerConfig {
	return services.DexScreenerConfig{
		BaseURL:         cfg.Providers.DexScreenerURL,
		Timeout:         cfg.Providers.RequestTimeout,
		RequestsPerSec:  cfg.Providers.DexScreenerRPS,
		Burst:           1,
		PrimaryDexes:    cfg.Providers.PrimaryDexes,
		NewTokenMinutes: cfg.Providers.NewTokenMinutes,
	}
}

func jupiterConfig(cfg *config.Config) services.JupiterConfig {
	return services.JupiterConfig{
		BaseURL:        cfg.Providers.JupiterURL,
		Timeout:        cfg.Providers.RequestTimeout,
		RequestsPerSec: cfg.Providers.JupiterRPS,
		Burst:          1,
	}
}

func aggregatorConfig(cfg *config.Config) services.AggregatorConfig {
	return services.AggregatorConfig{
		TotalTimeout: cfg.Providers.TotalTimeout,
		Breaker: services.BreakerConfig{
			MaxFailures: cfg.Providers.Breaker.MaxFailures,
			OpenTimeout: cfg.Providers.Breaker.OpenTimeout,
		},
	}
}

func holderCheckConfig(cfg *config.Config, vars *env.Vars) services.HolderCheckConfig {
	return services.HolderCheckConfig{
		RPCEndpoint:   vars.RPCEndpoint,
		Cooldown:      cfg.RugCheck.Cooldown,
		Timeout:       cfg.RugCheck.Timeout,
		AssumedSupply: cfg.RugCheck.AssumedSupply,
	}
}

// buildSnapshotStore picks postgres when DATABASE_URL is set and the JSON
// waitlist file otherwise, mirroring the seen set to redis when REDIS_URL is set.
// The returned func closes whatever connections were opened.
func buildSnapshotStore(ctx context.Context, cfg *config.Config, vars *env.Vars, appLogger *logger.Logger) (watchlist.Snapshotter, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var primary watchlist.Snapshotter
	if vars.DatabaseURL != "" {
		appLogger.Info("Running database migrations...")
		if err := database.MigrateDatabase(vars.DatabaseURL, appLogger); err != nil {
			return nil, closeAll, fmt.Errorf("migrate database: %w", err)
		}
		db, err := database.ConnectToDatabase(ctx, vars.DatabaseURL, appLogger)
		if err != nil {
			return nil, closeAll, err
		}
		if sqlDB, err := db.DB(); err == nil {
			closers = append(closers, func() { _ = sqlDB.Close() })
		}
		primary = database.NewPostgresSnapshotStore(db)
		appLogger.Info("Watchlist snapshots stored in postgres")
	} else {
		primary = database.NewFileSnapshotStore(cfg.Storage.WaitlistFile, appLogger)
		appLogger.Info("DATABASE_URL not set, watchlist snapshots stored in file", zap.String("path", cfg.Storage.WaitlistFile))
	}

	if vars.RedisURL == "" {
		return primary, closeAll, nil
	}
	client, err := database.ConnectRedis(ctx, vars.RedisURL)
	if err != nil {
		appLogger.Warn("Redis unavailable, seen set will not be mirrored", zap.Error(err))
		return primary, closeAll, nil
	}
	closers = append(closers, func() { _ = client.Close() })
	appLogger.Info("Mirroring seen set to redis", zap.String("key", cfg.Storage.RedisSeenKey))
	return database.NewChainStore(primary, database.NewRedisSeenStore(client, cfg.Storage.RedisSeenKey)), closeAll, nil
}
