package watchlist

import (
	"context"
	"time"

	"mint-sniper/agent/internal/metrics"
	"mint-sniper/agent/internal/models"
	"mint-sniper/agent/internal/services"
	"mint-sniper/shared/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MarketFetcher re-reads a mint's market data. Fetch must not block past ctx.
type MarketFetcher interface {
	Fetch(ctx context.Context, mint string) services.Result
}

// AlertSink delivers the single alert for a mint.
type AlertSink interface {
	Send(ctx context.Context, mint string) error
}

// Snapshotter persists watchlist state between restarts.
type Snapshotter interface {
	Save(ctx context.Context, entries []models.WatchlistEntry, seen []string) error
	Load(ctx context.Context) ([]models.WatchlistEntry, []string, error)
}

type Config struct {
	MinSpacing       time.Duration `mapstructure:"min_spacing"`
	MaxInterval      time.Duration `mapstructure:"max_interval"`
	Expiry           time.Duration `mapstructure:"expiry"`
	MaxParallelPolls int           `mapstructure:"max_parallel_polls"`
	PollTimeout      time.Duration `mapstructure:"poll_timeout"`
	Thresholds       Thresholds    `mapstructure:"thresholds"`
}

// Supervisor is the only writer of poll results into the store.
type Supervisor struct {
	cfg      Config
	store    *Store
	fetcher  MarketFetcher
	sink     AlertSink
	snapshot Snapshotter
	log      *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewSupervisor(cfg Config, store *Store, fetcher MarketFetcher, sink AlertSink, snapshot Snapshotter, appLogger *logger.Logger, m *metrics.Metrics) *Supervisor {
	if appLogger == nil {
		appLogger = logger.NewNop()
	}
	if cfg.MinSpacing <= 0 {
		cfg.MinSpacing = 1010 * time.Millisecond
	}
	if cfg.MaxInterval < cfg.MinSpacing {
		cfg.MaxInterval = cfg.MinSpacing
	}
	if cfg.MaxParallelPolls < 1 {
		cfg.MaxParallelPolls = 1
	}
	return &Supervisor{
		cfg:      cfg,
		store:    store,
		fetcher:  fetcher,
		sink:     sink,
		snapshot: snapshot,
		log:      appLogger,
		metrics:  m,
		now:      time.Now,
	}
}

// Interval is the sleep before the next cycle: one spacing per pending
// entry, clamped to [MinSpacing, MaxInterval].
func (s *Supervisor) Interval() time.Duration {
	d := time.Duration(s.store.PendingCount()) * s.cfg.MinSpacing
	if d < s.cfg.MinSpacing {
		return s.cfg.MinSpacing
	}
	if d > s.cfg.MaxInterval {
		return s.cfg.MaxInterval
	}
	return d
}

// Run polls until ctx is cancelled, then writes a final snapshot.
func (s *Supervisor) Run(ctx context.Context) error {
	s.log.Info("Watchlist supervisor started",
		zap.Duration("minSpacing", s.cfg.MinSpacing),
		zap.Duration("expiry", s.cfg.Expiry),
		zap.Int("maxParallelPolls", s.cfg.MaxParallelPolls),
	)

	timer := time.NewTimer(s.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.saveSnapshot(saveCtx)
			cancel()
			s.log.Info("Watchlist supervisor stopped", zap.Int("pending", s.store.PendingCount()))
			return ctx.Err()
		case <-timer.C:
			s.RunCycle(ctx)
			timer.Reset(s.Interval())
		}
	}
}

// RunCycle evicts expired entries, polls every due entry with bounded
// parallelism and snapshots the result. Time is sampled once per cycle.
func (s *Supervisor) RunCycle(ctx context.Context) {
	start := s.now()

	for _, mint := range s.store.EvictExpired(start) {
		s.metrics.PollOutcome("expired")
		s.log.Info("Watchlist entry expired", zap.String("mint", mint))
	}

	due := s.store.Due(start)
	if len(due) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.MaxParallelPolls)
		for _, entry := range due {
			entry := entry
			g.Go(func() error {
				s.poll(gctx, entry, start)
				return nil
			})
		}
		_ = g.Wait()
	}

	if ctx.Err() == nil {
		s.saveSnapshot(ctx)
	}
	s.metrics.SetWatchlistSize(s.store.PendingCount(), s.store.SeenCount())
	s.metrics.CycleCompleted(time.Since(start))
}

func (s *Supervisor) poll(ctx context.Context, entry models.WatchlistEntry, now time.Time) {
	mintField := zap.String("mint", entry.Mint)
	next := now.Add(s.cfg.MinSpacing)

	pollCtx := ctx
	if s.cfg.PollTimeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, s.cfg.PollTimeout)
		defer cancel()
	}
	res := s.fetcher.Fetch(pollCtx, entry.Mint)
	if ctx.Err() != nil {
		return
	}

	if !res.Usable() || res.Record.MarketCap <= 0 {
		s.store.Reschedule(entry.Mint, next)
		s.metrics.PollOutcome("no_data")
		s.log.Debug("No market data on poll, retrying later", mintField)
		return
	}

	mcap := res.Record.MarketCap
	d := Evaluate(entry, mcap, now, s.cfg.Thresholds)
	s.metrics.PollOutcome(d.Outcome.String())

	switch d.Outcome {
	case Stagnant, BelowThreshold:
		s.store.Observe(entry.Mint, mcap, res.Record.Volume5m, next)
		s.log.Debug("Momentum not confirmed",
			mintField,
			zap.Stringer("outcome", d.Outcome),
			zap.Float64("ratio", d.Ratio),
			zap.Float64("threshold", d.Threshold),
			zap.Float64("elapsedSec", d.Elapsed.Seconds()),
		)
	case Trigger:
		if !s.store.MarkSent(entry.Mint, now) {
			return
		}
		s.log.Info("PUMP confirmed",
			mintField,
			zap.Float64("ratio", d.Ratio),
			zap.Float64("threshold", d.Threshold),
			zap.Float64("elapsedSec", d.Elapsed.Seconds()),
			zap.Float64("baseline", entry.BaselineMarketCap),
			zap.Float64("mcap", mcap),
		)
		if err := s.sink.Send(ctx, entry.Mint); err != nil {
			s.metrics.Alert("failed")
			s.log.Error("Alert delivery failed", mintField, zap.Error(err))
			return
		}
		s.metrics.Alert("sent")
	}
}

func (s *Supervisor) saveSnapshot(ctx context.Context) {
	if s.snapshot == nil {
		return
	}
	entries, seen := s.store.Snapshot()
	if err := s.snapshot.Save(ctx, entries, seen); err != nil {
		s.log.Warn("Watchlist snapshot failed", zap.Error(err))
	}
}
