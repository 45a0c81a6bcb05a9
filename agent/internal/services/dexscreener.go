package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mint-sniper/agent/internal/models"
	"mint-sniper/shared/logger"

	"go.uber.org/zap"
)

const DexScreenerName = "dexscreener"

type Pair struct {
	ChainID       string             `json:"chainId"`
	DexID         string             `json:"dexId"`
	URL           string             `json:"url"`
	PairAddress   string             `json:"pairAddress"`
	BaseToken     Token              `json:"baseToken"`
	QuoteToken    Token              `json:"quoteToken"`
	PriceUsd      string             `json:"priceUsd"`
	Volume        map[string]float64 `json:"volume"`
	PriceChange   map[string]float64 `json:"priceChange"`
	Liquidity     *Liquidity         `json:"liquidity"`
	FDV           float64            `json:"fdv"`
	MarketCap     float64            `json:"marketCap"`
	PairCreatedAt int64              `json:"pairCreatedAt"`
	Info          *TokenInfo         `json:"info"`
}

type TokenInfo struct {
	ImageURL string `json:"imageUrl"`
	Header   string `json:"header"`
}

type Token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type Liquidity struct {
	Usd float64 `json:"usd"`
}

type DexScreenerConfig struct {
	BaseURL         string
	Timeout         time.Duration
	RequestsPerSec  float64
	Burst           int
	PrimaryDexes    []string
	NewTokenMinutes float64
}

// DexScreenerClient is the primary pair/listing source.
type DexScreenerClient struct {
	src             httpSource
	primaryDexes    map[string]struct{}
	newTokenMinutes float64
	now             func() time.Time
}

func NewDexScreenerClient(cfg DexScreenerConfig, appLogger *logger.Logger) *DexScreenerClient {
	primary := make(map[string]struct{}, len(cfg.PrimaryDexes))
	for _, d := range cfg.PrimaryDexes {
		primary[strings.ToLower(d)] = struct{}{}
	}
	return &DexScreenerClient{
		src:             newHTTPSource(DexScreenerName, strings.TrimRight(cfg.BaseURL, "/"), cfg.Timeout, cfg.RequestsPerSec, cfg.Burst, appLogger),
		primaryDexes:    primary,
		newTokenMinutes: cfg.NewTokenMinutes,
		now:             time.Now,
	}
}

func (c *DexScreenerClient) Name() string { return DexScreenerName }

// Lookup fetches all solana pairs for mint and normalizes the best one.
// A token with no pairs yields (nil, nil).
func (c *DexScreenerClient) Lookup(ctx context.Context, mint string) (*models.NormalizedMarketRecord, error) {
	url := fmt.Sprintf("%s/tokens/v1/solana/%s", c.src.baseURL, mint)

	var pairs []Pair
	if err := c.src.getJSON(ctx, url, &pairs); err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		c.src.log.Debug("Token has no trading pairs on DexScreener", zap.String("mint", mint))
		return nil, nil
	}

	pair := c.selectPair(pairs, mint)
	now := c.now()

	rec := &models.NormalizedMarketRecord{
		Mint:        mint,
		PairAddress: pair.PairAddress,
		DexID:       pair.DexID,
		Sources:     []string{DexScreenerName},
		ObservedAt:  now,
	}

	rec.MarketCap = pair.FDV
	if rec.MarketCap <= 0 {
		rec.MarketCap = pair.MarketCap
	}
	if pair.Liquidity != nil {
		rec.LiquidityUSD = pair.Liquidity.Usd
	}
	rec.Volume5m = pair.Volume["m5"]
	rec.HasEnhancedListing = pair.Info != nil && pair.Info.ImageURL != ""

	if pair.PairCreatedAt > 0 {
		age := now.Sub(time.UnixMilli(pair.PairCreatedAt)).Minutes()
		if age < 0 {
			age = 0
		}
		rec.AgeMinutes = &age
		rec.IsNew = age < c.newTokenMinutes
	}
	if v, ok := pair.PriceChange["m5"]; ok {
		rec.PriceChange5m = &v
	}
	if v, ok := pair.PriceChange["h1"]; ok {
		rec.PriceChange1h = &v
	}

	return rec, nil
}

// selectPair prefers pairs quoting mint as base asset, then a primary dex
// among those; without a base match it falls back to any primary dex pair,
// then to the first pair returned.
func (c *DexScreenerClient) selectPair(pairs []Pair, mint string) Pair {
	var based []Pair
	for _, p := range pairs {
		if p.BaseToken.Address == mint {
			based = append(based, p)
		}
	}
	if len(based) > 0 {
		if p, ok := c.firstPrimary(based); ok {
			return p
		}
		return based[0]
	}
	if p, ok := c.firstPrimary(pairs); ok {
		return p
	}
	return pairs[0]
}

func (c *DexScreenerClient) firstPrimary(pairs []Pair) (Pair, bool) {
	for _, p := range pairs {
		if _, ok := c.primaryDexes[strings.ToLower(p.DexID)]; ok {
			return p, true
		}
	}
	return Pair{}, false
}
