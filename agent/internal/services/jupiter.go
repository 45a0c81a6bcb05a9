package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"mint-sniper/agent/internal/models"
	"mint-sniper/shared/logger"
)

const JupiterName = "jupiter"

type jupiterToken struct {
	ID          string        `json:"id"`
	Symbol      string        `json:"symbol"`
	MarketCap   *float64      `json:"mcap"`
	FDV         *float64      `json:"fdv"`
	Liquidity   *float64      `json:"liquidity"`
	HolderCount *int          `json:"holderCount"`
	Stats5m     *jupiterStats `json:"stats5m"`
	Stats1h     *jupiterStats `json:"stats1h"`
}

type jupiterStats struct {
	PriceChange  *float64 `json:"priceChange"`
	BuyVolume    float64  `json:"buyVolume"`
	SellVolume   float64  `json:"sellVolume"`
	VolumeChange float64  `json:"volumeChange"`
}

type JupiterConfig struct {
	BaseURL        string
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
}

// JupiterClient is the fallback token search source.
type JupiterClient struct {
	src httpSource
	now func() time.Time
}

func NewJupiterClient(cfg JupiterConfig, appLogger *logger.Logger) *JupiterClient {
	return &JupiterClient{
		src: newHTTPSource(JupiterName, strings.TrimRight(cfg.BaseURL, "/"), cfg.Timeout, cfg.RequestsPerSec, cfg.Burst, appLogger),
		now: time.Now,
	}
}

func (c *JupiterClient) Name() string { return JupiterName }

// Lookup searches Jupiter for mint. An empty search result yields (nil, nil).
func (c *JupiterClient) Lookup(ctx context.Context, mint string) (*models.NormalizedMarketRecord, error) {
	u := fmt.Sprintf("%s/tokens/v2/search?query=%s", c.src.baseURL, url.QueryEscape(mint))

	var tokens []jupiterToken
	if err := c.src.getJSON(ctx, u, &tokens); err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	t := tokens[0]
	for _, cand := range tokens {
		if cand.ID == mint {
			t = cand
			break
		}
	}

	rec := &models.NormalizedMarketRecord{
		Mint:        mint,
		HolderCount: t.HolderCount,
		Sources:     []string{JupiterName},
		ObservedAt:  c.now(),
	}
	switch {
	case t.MarketCap != nil && *t.MarketCap > 0:
		rec.MarketCap = *t.MarketCap
	case t.FDV != nil && *t.FDV > 0:
		rec.MarketCap = *t.FDV
	}
	if t.Liquidity != nil {
		rec.LiquidityUSD = *t.Liquidity
	}
	if s := t.Stats5m; s != nil {
		rec.Volume5m = s.BuyVolume + s.SellVolume
		rec.VolumeChangeFraction = s.VolumeChange / 100
		rec.PriceChange5m = s.PriceChange
	}
	if s := t.Stats1h; s != nil {
		rec.PriceChange1h = s.PriceChange
	}
	return rec, nil
}
