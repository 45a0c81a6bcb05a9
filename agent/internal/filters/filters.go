package filters

import (
	"context"
	"fmt"
	"strings"

	"mint-sniper/agent/internal/models"
	"mint-sniper/shared/logger"

	"go.uber.org/zap"
)

// Mode names an operating profile with its own thresholds.
type Mode string

const (
	ModeConservative Mode = "conservative"
	ModeBalanced     Mode = "balanced"
	ModeAggressive   Mode = "aggressive"
)

var modeAliases = map[string]Mode{
	"safe":   ModeConservative,
	"medium": ModeBalanced,
}

// ParseMode normalizes a configured mode name. Unknown names are returned
// as-is so the filter can reject them.
func ParseMode(s string) Mode {
	s = strings.ToLower(strings.TrimSpace(s))
	if m, ok := modeAliases[s]; ok {
		return m
	}
	return Mode(s)
}

// Band is an inclusive range.
type Band struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

func (b Band) Contains(v float64) bool { return v >= b.Min && v <= b.Max }

type ModeThresholds struct {
	MinMarketCap      float64 `mapstructure:"min_market_cap"`
	MaxMarketCap      float64 `mapstructure:"max_market_cap"`
	MaxCapToLiquidity float64 `mapstructure:"max_cap_to_liquidity"`
	MinLiquidity      float64 `mapstructure:"min_liquidity"`
	MinVolume5m       float64 `mapstructure:"min_volume_5m"`
	MinAgeMinutes     float64 `mapstructure:"min_age_minutes"`
	MinHolders        int     `mapstructure:"min_holders"`
	PriceChange5m     Band    `mapstructure:"price_change_5m"`
	PriceChange1h     Band    `mapstructure:"price_change_1h"`
}

type Config struct {
	Modes                map[string]ModeThresholds `mapstructure:"modes"`
	MaxTopHolderFraction float64                   `mapstructure:"max_top_holder_fraction"`
	MaxCandleChangePct   float64                   `mapstructure:"max_candle_change_pct"`
}

// ConcentrationChecker reports the largest holder's share of total supply.
type ConcentrationChecker interface {
	TopHolderFraction(ctx context.Context, mint string) (float64, error)
}

// Verdict carries the first failing check, empty when Passed.
type Verdict struct {
	Passed bool
	Reason string
}

func pass() Verdict { return Verdict{Passed: true} }

func reject(format string, args ...interface{}) Verdict {
	return Verdict{Reason: fmt.Sprintf(format, args...)}
}

// Filter is the eligibility gate between the aggregator and the watchlist.
type Filter struct {
	cfg     Config
	checker ConcentrationChecker
	log     *logger.Logger
}

// New builds a Filter. checker may be nil, in which case only a pre-supplied
// TopHolderFraction on the record is checked.
func New(cfg Config, checker ConcentrationChecker, appLogger *logger.Logger) *Filter {
	if appLogger == nil {
		appLogger = logger.NewNop()
	}
	modes := make(map[string]ModeThresholds, len(cfg.Modes))
	for name, t := range cfg.Modes {
		modes[string(ParseMode(name))] = t
	}
	cfg.Modes = modes
	return &Filter{cfg: cfg, checker: checker, log: appLogger}
}

// HasMode reports whether mode (or its alias) has thresholds configured.
func (f *Filter) HasMode(mode Mode) bool {
	_, ok := f.cfg.Modes[string(ParseMode(string(mode)))]
	return ok
}

// Passes runs the checks in order and stops at the first failure.
func (f *Filter) Passes(ctx context.Context, rec *models.NormalizedMarketRecord, mode Mode) Verdict {
	v := f.evaluate(ctx, rec, mode)
	mintField := zap.Skip()
	if rec != nil {
		mintField = zap.String("mint", rec.Mint)
	}
	if v.Passed {
		f.log.Info("Filter passed", mintField, zap.String("mode", string(mode)), zap.Float64("mcap", rec.MarketCap), zap.Float64("ratio", rec.MarketCap/rec.LiquidityUSD))
	} else {
		f.log.Debug("Filter rejected", mintField, zap.String("mode", string(mode)), zap.String("reason", v.Reason))
	}
	return v
}

func (f *Filter) evaluate(ctx context.Context, rec *models.NormalizedMarketRecord, mode Mode) Verdict {
	t, ok := f.cfg.Modes[string(ParseMode(string(mode)))]
	if !ok {
		return reject("unknown mode %q", mode)
	}
	if !rec.HasData() {
		return reject("no market data")
	}

	mcap, liq := rec.MarketCap, rec.LiquidityUSD

	if !(mcap > t.MinMarketCap && mcap < t.MaxMarketCap) {
		return reject("market cap %.0f outside (%.0f, %.0f)", mcap, t.MinMarketCap, t.MaxMarketCap)
	}

	if liq <= 0 {
		return reject("no liquidity")
	}
	if ratio := mcap / liq; ratio > t.MaxCapToLiquidity {
		return reject("cap/liquidity ratio %.1f above %.1f", ratio, t.MaxCapToLiquidity)
	}

	if !rec.IsNew && !rec.HasEnhancedListing {
		return reject("established token without enhanced listing")
	}

	if v := f.checkConcentration(ctx, rec); !v.Passed {
		return v
	}

	if liq < t.MinLiquidity {
		return reject("liquidity %.0f below %.0f", liq, t.MinLiquidity)
	}
	if rec.Volume5m < t.MinVolume5m {
		return reject("5m volume %.0f below %.0f", rec.Volume5m, t.MinVolume5m)
	}
	if rec.AgeMinutes != nil && *rec.AgeMinutes < t.MinAgeMinutes {
		return reject("age %.1fm below %.1fm", *rec.AgeMinutes, t.MinAgeMinutes)
	}
	if rec.HolderCount != nil && *rec.HolderCount < t.MinHolders {
		return reject("holders %d below %d", *rec.HolderCount, t.MinHolders)
	}
	if rec.PriceChange5m != nil && !t.PriceChange5m.Contains(*rec.PriceChange5m) {
		return reject("5m price change %.1f%% outside [%.1f, %.1f]", *rec.PriceChange5m, t.PriceChange5m.Min, t.PriceChange5m.Max)
	}
	if rec.PriceChange1h != nil && !t.PriceChange1h.Contains(*rec.PriceChange1h) {
		return reject("1h price change %.1f%% outside [%.1f, %.1f]", *rec.PriceChange1h, t.PriceChange1h.Min, t.PriceChange1h.Max)
	}

	// 5m is the shortest candle the providers expose.
	if c := rec.PriceChange5m; c != nil && (*c > f.cfg.MaxCandleChangePct || *c < 0) {
		return reject("implausible candle %.1f%%", *c)
	}
	if rec.VolumeChangeFraction < 0 {
		return reject("volume decelerating (%.2f)", rec.VolumeChangeFraction)
	}

	return pass()
}

// checkConcentration fails open: any error from the checker lets the token through.
func (f *Filter) checkConcentration(ctx context.Context, rec *models.NormalizedMarketRecord) Verdict {
	var fraction float64
	switch {
	case rec.TopHolderFraction != nil:
		fraction = *rec.TopHolderFraction
	case f.checker != nil:
		v, err := f.checker.TopHolderFraction(ctx, rec.Mint)
		if err != nil {
			f.log.Info("Holder concentration check failed, allowing", zap.String("mint", rec.Mint), zap.Error(err))
			return pass()
		}
		fraction = v
	default:
		return pass()
	}

	if fraction > f.cfg.MaxTopHolderFraction {
		return reject("top holder owns %.1f%% of supply", fraction*100)
	}
	return pass()
}
