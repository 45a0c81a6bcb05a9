package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"mint-sniper/shared/logger"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type HolderCheckConfig struct {
	RPCEndpoint   string
	Cooldown      time.Duration
	Timeout       time.Duration
	AssumedSupply float64
}

// HolderChecker computes the largest holder's share of supply over Solana RPC.
// All callers share one limiter so the RPC sees at most one check per cooldown.
type HolderChecker struct {
	rpc           *rpc.Client
	limiter       *rate.Limiter
	timeout       time.Duration
	assumedSupply float64
	log           *logger.Logger
}

func NewHolderChecker(cfg HolderCheckConfig, appLogger *logger.Logger) *HolderChecker {
	if appLogger == nil {
		appLogger = logger.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.Cooldown > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Cooldown), 1)
	}
	supply := cfg.AssumedSupply
	if supply <= 0 {
		supply = 1e9
	}
	return &HolderChecker{
		rpc:           rpc.New(cfg.RPCEndpoint),
		limiter:       limiter,
		timeout:       cfg.Timeout,
		assumedSupply: supply,
		log:           appLogger,
	}
}

// TopHolderFraction returns largest account balance / total supply.
func (h *HolderChecker) TopHolderFraction(ctx context.Context, mint string) (float64, error) {
	pk, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid mint %s: %v", ErrMalformed, mint, err)
	}

	if err := h.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("%w: holder check limiter: %v", ErrTransport, err)
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	largest, err := h.rpc.GetTokenLargestAccounts(ctx, pk, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("%w: getTokenLargestAccounts: %v", ErrTransport, err)
	}
	if largest == nil || len(largest.Value) == 0 || largest.Value[0] == nil {
		return 0, fmt.Errorf("%w: no token accounts for %s", ErrMalformed, mint)
	}
	top, ok := uiAmount(largest.Value[0].UiAmount, largest.Value[0].UiAmountString)
	if !ok {
		return 0, fmt.Errorf("%w: unreadable top holder amount for %s", ErrMalformed, mint)
	}

	supply := h.assumedSupply
	if sup, err := h.rpc.GetTokenSupply(ctx, pk, rpc.CommitmentConfirmed); err != nil {
		h.log.Debug("Token supply unavailable, using assumed supply", zap.String("mint", mint), zap.Float64("assumedSupply", supply), zap.Error(err))
	} else if sup != nil && sup.Value != nil {
		if v, ok := uiAmount(sup.Value.UiAmount, sup.Value.UiAmountString); ok && v > 0 {
			supply = v
		}
	}

	fraction := top / supply
	h.log.Debug("Top holder share", zap.String("mint", mint), zap.Float64("top", top), zap.Float64("supply", supply), zap.Float64("fraction", fraction))
	return fraction, nil
}

func uiAmount(v *float64, s string) (float64, bool) {
	if v != nil {
		return *v, true
	}
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
