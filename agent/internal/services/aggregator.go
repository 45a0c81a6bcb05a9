package services

import (
	"context"
	"errors"
	"time"

	"mint-sniper/agent/internal/metrics"
	"mint-sniper/agent/internal/models"
	"mint-sniper/shared/logger"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// MarketDataProvider is one source of market data. Lookup returns (nil, nil)
// when the provider knows nothing about the mint.
type MarketDataProvider interface {
	Name() string
	Lookup(ctx context.Context, mint string) (*models.NormalizedMarketRecord, error)
}

// Result is what Fetch hands back. Record is nil when no stage produced anything.
type Result struct {
	Record *models.NormalizedMarketRecord
}

// Usable reports whether the result carries a non-zero cap or liquidity.
func (r Result) Usable() bool {
	return r.Record.HasData()
}

type BreakerConfig struct {
	MaxFailures uint32
	OpenTimeout time.Duration
	Interval    time.Duration
}

type AggregatorConfig struct {
	TotalTimeout time.Duration
	Breaker      BreakerConfig
}

type stage struct {
	provider MarketDataProvider
	breaker  *gobreaker.CircuitBreaker
}

// Aggregator queries the primary provider and walks the fallbacks only while
// the merged record still has neither cap nor liquidity.
type Aggregator struct {
	stages       []stage
	totalTimeout time.Duration
	log          *logger.Logger
	metrics      *metrics.Metrics
}

func NewAggregator(cfg AggregatorConfig, appLogger *logger.Logger, m *metrics.Metrics, primary MarketDataProvider, fallbacks ...MarketDataProvider) *Aggregator {
	if appLogger == nil {
		appLogger = logger.NewNop()
	}
	a := &Aggregator{
		totalTimeout: cfg.TotalTimeout,
		log:          appLogger,
		metrics:      m,
	}
	for _, p := range append([]MarketDataProvider{primary}, fallbacks...) {
		if p == nil {
			continue
		}
		a.stages = append(a.stages, stage{provider: p, breaker: a.newBreaker(p.Name(), cfg.Breaker)})
	}
	return a
}

func (a *Aggregator) newBreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			a.log.Warn("Provider circuit breaker changed state", zap.String("provider", name), zap.String("from", from.String()), zap.String("to", to.String()))
			a.metrics.SetBreakerState(name, breakerGauge(to))
		},
		// Our own shutdown is not the provider's fault.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	return gobreaker.NewCircuitBreaker(settings)
}

func breakerGauge(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}

// Fetch never fails: every provider error degrades that stage to no contribution.
// Callers must check Usable before trusting the record.
func (a *Aggregator) Fetch(ctx context.Context, mint string) Result {
	if a.totalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.totalTimeout)
		defer cancel()
	}

	var merged *models.NormalizedMarketRecord
	for i, st := range a.stages {
		if ctx.Err() != nil {
			break
		}
		rec := a.lookup(ctx, st, mint)
		if rec == nil {
			continue
		}
		if i == 0 || merged == nil {
			merged = rec
		} else {
			mergeMissing(merged, rec)
		}
		if merged.HasData() {
			break
		}
	}

	if merged != nil {
		merged.Mint = mint
	}
	return Result{Record: merged}
}

func (a *Aggregator) lookup(ctx context.Context, st stage, mint string) *models.NormalizedMarketRecord {
	name := st.provider.Name()
	start := time.Now()

	out, err := st.breaker.Execute(func() (interface{}, error) {
		return st.provider.Lookup(ctx, mint)
	})
	took := time.Since(start)

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		a.metrics.ProviderCall(name, "breaker_open", took)
		a.log.Debug("Provider skipped, circuit open", zap.String("provider", name), zap.String("mint", mint))
		return nil
	case err != nil:
		a.metrics.ProviderCall(name, "error", took)
		if ctx.Err() == nil {
			a.log.Warn("Provider lookup failed, continuing without it", zap.String("provider", name), zap.String("mint", mint), zap.Error(err))
		}
		return nil
	}

	rec, _ := out.(*models.NormalizedMarketRecord)
	if rec == nil {
		a.metrics.ProviderCall(name, "empty", took)
		return nil
	}
	a.metrics.ProviderCall(name, "ok", took)
	a.log.Debug("Provider data",
		zap.String("provider", name),
		zap.String("mint", mint),
		zap.Float64("mcap", rec.MarketCap),
		zap.Float64("liquidity", rec.LiquidityUSD),
		zap.Float64("volume5m", rec.Volume5m),
	)
	return rec
}

// mergeMissing fills fields dst left at zero or unset. A non-zero field
// already in dst is never overwritten.
func mergeMissing(dst, src *models.NormalizedMarketRecord) {
	if dst.MarketCap <= 0 {
		dst.MarketCap = src.MarketCap
	}
	if dst.LiquidityUSD <= 0 {
		dst.LiquidityUSD = src.LiquidityUSD
	}
	if dst.Volume5m <= 0 {
		dst.Volume5m = src.Volume5m
	}
	if dst.VolumeChangeFraction == 0 {
		dst.VolumeChangeFraction = src.VolumeChangeFraction
	}
	if !dst.HasEnhancedListing {
		dst.HasEnhancedListing = src.HasEnhancedListing
	}
	if dst.AgeMinutes == nil {
		dst.AgeMinutes = src.AgeMinutes
		dst.IsNew = src.IsNew
	}
	if dst.PriceChange5m == nil {
		dst.PriceChange5m = src.PriceChange5m
	}
	if dst.PriceChange1h == nil {
		dst.PriceChange1h = src.PriceChange1h
	}
	if dst.HolderCount == nil {
		dst.HolderCount = src.HolderCount
	}
	if dst.TopHolderFraction == nil {
		dst.TopHolderFraction = src.TopHolderFraction
	}
	if dst.PairAddress == "" {
		dst.PairAddress = src.PairAddress
		dst.DexID = src.DexID
	}
	dst.Sources = append(dst.Sources, src.Sources...)
	if src.ObservedAt.After(dst.ObservedAt) {
		dst.ObservedAt = src.ObservedAt
	}
}
