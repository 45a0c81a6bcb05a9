package feed

import (
	"context"
	"time"

	"mint-sniper/agent/internal/events"
	"mint-sniper/agent/internal/filters"
	"mint-sniper/agent/internal/metrics"
	"mint-sniper/agent/internal/models"
	"mint-sniper/agent/internal/services"
	"mint-sniper/agent/internal/watchlist"
	"mint-sniper/shared/logger"

	"go.uber.org/zap"
)

type Fetcher interface {
	Fetch(ctx context.Context, mint string) services.Result
}

type Eligibility interface {
	Passes(ctx context.Context, rec *models.NormalizedMarketRecord, mode filters.Mode) filters.Verdict
}

// Outcome is where a message left the pipeline.
type Outcome string

const (
	OutcomeNoTrigger Outcome = "no_trigger"
	OutcomeNoMint    Outcome = "no_mint"
	OutcomeSeen      Outcome = "seen"
	OutcomeTracked   Outcome = "tracked"
	OutcomeNoData    Outcome = "no_data"
	OutcomeFiltered  Outcome = "filtered"
	OutcomeAdmitted  Outcome = "admitted"
)

type PipelineConfig struct {
	TriggerPrefixes []string
	Mode            filters.Mode
}

// Pipeline turns one inbound message into at most one watchlist admission.
type Pipeline struct {
	cfg     PipelineConfig
	fetcher Fetcher
	filter  Eligibility
	store   *watchlist.Store
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewPipeline(cfg PipelineConfig, fetcher Fetcher, filter Eligibility, store *watchlist.Store, appLogger *logger.Logger, m *metrics.Metrics) *Pipeline {
	if appLogger == nil {
		appLogger = logger.NewNop()
	}
	return &Pipeline{
		cfg:     cfg,
		fetcher: fetcher,
		filter:  filter,
		store:   store,
		log:     appLogger,
		metrics: m,
		now:     time.Now,
	}
}

// Handle never returns an error: every failure is a silent drop with a reason.
func (p *Pipeline) Handle(ctx context.Context, msg models.Message) Outcome {
	p.metrics.MessageReceived()
	out := p.handle(ctx, msg)
	if out == OutcomeAdmitted {
		p.metrics.Admission(watchlist.Admitted.String())
	} else {
		p.metrics.Dropped(string(out))
	}
	return out
}

func (p *Pipeline) handle(ctx context.Context, msg models.Message) Outcome {
	if !events.HasTriggerPrefix(msg.Text, p.cfg.TriggerPrefixes) {
		return OutcomeNoTrigger
	}

	mint, ok := events.ExtractMint(msg)
	if !ok {
		p.log.Debug("No mint in message", zap.Int64("chatID", msg.ChatID), zap.Int("messageID", msg.MessageID))
		return OutcomeNoMint
	}
	if p.store.IsSeen(mint) {
		p.log.Debug("Mint already alerted", zap.String("mint", mint))
		return OutcomeSeen
	}
	if p.store.IsTracked(mint) {
		p.log.Debug("Mint already on watchlist", zap.String("mint", mint))
		return OutcomeTracked
	}

	res := p.fetcher.Fetch(ctx, mint)
	if ctx.Err() != nil || !res.Usable() {
		p.log.Info("No market data, dropping", zap.String("mint", mint))
		return OutcomeNoData
	}

	verdict := p.filter.Passes(ctx, res.Record, p.cfg.Mode)
	if !verdict.Passed {
		p.log.Info("Filter rejected mint", zap.String("mint", mint), zap.String("reason", verdict.Reason))
		return OutcomeFiltered
	}

	switch r := p.store.AdmitIfAbsent(mint, res.Record.MarketCap, p.now()); r {
	case watchlist.Admitted:
		p.log.Info("Admitted to watchlist",
			zap.String("mint", mint),
			zap.Float64("baselineMcap", res.Record.MarketCap),
			zap.Float64("liquidity", res.Record.LiquidityUSD),
			zap.Strings("sources", res.Record.Sources),
		)
		return OutcomeAdmitted
	case watchlist.AlreadySent:
		return OutcomeSeen
	case watchlist.AlreadyTracked:
		return OutcomeTracked
	default:
		return OutcomeNoData
	}
}
