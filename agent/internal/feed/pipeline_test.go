package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mint-sniper/agent/internal/filters"
	"mint-sniper/agent/internal/models"
	"mint-sniper/agent/internal/services"
	"mint-sniper/agent/internal/watchlist"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	bonkMint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	jupMint  = "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"
)

type stubFetcher struct {
	calls atomic.Int32
	rec   *models.NormalizedMarketRecord
}

func (f *stubFetcher) Fetch(_ context.Context, mint string) services.Result {
	f.calls.Add(1)
	if f.rec == nil {
		return services.Result{}
	}
	rec := *f.rec
	rec.Mint = mint
	return services.Result{Record: &rec}
}

type stubFilter struct {
	mu     sync.Mutex
	reject string
	modes  []filters.Mode
}

func (f *stubFilter) Passes(_ context.Context, _ *models.NormalizedMarketRecord, mode filters.Mode) filters.Verdict {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modes = append(f.modes, mode)
	if f.reject != "" {
		return filters.Verdict{Reason: f.reject}
	}
	return filters.Verdict{Passed: true}
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestPipeline(fetcher Fetcher, filter Eligibility) (*Pipeline, *watchlist.Store) {
	store := watchlist.NewStore(120 * time.Second)
	p := NewPipeline(PipelineConfig{TriggerPrefixes: []string{"🔥", "📈"}, Mode: filters.ModeAggressive}, fetcher, filter, store, nil, nil)
	p.now = func() time.Time { return t0 }
	return p, store
}

func TestPipeline_Admits(t *testing.T) {
	fetcher := &stubFetcher{rec: &models.NormalizedMarketRecord{MarketCap: 60000, LiquidityUSD: 12000}}
	filter := &stubFilter{}
	p, store := newTestPipeline(fetcher, filter)

	out := p.Handle(context.Background(), models.Message{Text: "🔥 " + bonkMint})
	require.Equal(t, OutcomeAdmitted, out)

	entry, ok := store.Get(bonkMint)
	require.True(t, ok)
	assert.Equal(t, 60000.0, entry.BaselineMarketCap)
	assert.Equal(t, 60000.0, entry.PreviousMarketCap)
	assert.Equal(t, t0, entry.AddedAt)
	assert.Equal(t, []filters.Mode{filters.ModeAggressive}, filter.modes)
}

func TestPipeline_Drops(t *testing.T) {
	good := &models.NormalizedMarketRecord{MarketCap: 60000, LiquidityUSD: 12000}

	tests := []struct {
		name      string
		text      string
		rec       *models.NormalizedMarketRecord
		reject    string
		want      Outcome
		wantFetch int32
	}{
		{name: "no trigger prefix", text: "gm " + bonkMint, rec: good, want: OutcomeNoTrigger},
		{name: "no mint", text: "🔥 nothing here", rec: good, want: OutcomeNoMint},
		{name: "no market data", text: "🔥 " + bonkMint, want: OutcomeNoData, wantFetch: 1},
		{name: "all zero record", text: "🔥 " + bonkMint, rec: &models.NormalizedMarketRecord{}, want: OutcomeNoData, wantFetch: 1},
		{name: "filter rejects", text: "📈 " + bonkMint, rec: good, reject: "ratio", want: OutcomeFiltered, wantFetch: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &stubFetcher{rec: tt.rec}
			p, store := newTestPipeline(fetcher, &stubFilter{reject: tt.reject})

			assert.Equal(t, tt.want, p.Handle(context.Background(), models.Message{Text: tt.text}))
			assert.Equal(t, tt.wantFetch, fetcher.calls.Load())
			assert.Zero(t, store.PendingCount())
		})
	}
}

func TestPipeline_TrackedAndSeenSkipFetch(t *testing.T) {
	fetcher := &stubFetcher{rec: &models.NormalizedMarketRecord{MarketCap: 60000, LiquidityUSD: 12000}}
	p, store := newTestPipeline(fetcher, &stubFilter{})

	require.Equal(t, watchlist.Admitted, store.AdmitIfAbsent(bonkMint, 50000, t0))
	assert.Equal(t, OutcomeTracked, p.Handle(context.Background(), models.Message{Text: "🔥 " + bonkMint}))

	entry, _ := store.Get(bonkMint)
	assert.Equal(t, 50000.0, entry.BaselineMarketCap, "baseline untouched")

	require.True(t, store.MarkSent(bonkMint, t0))
	assert.Equal(t, OutcomeSeen, p.Handle(context.Background(), models.Message{Text: "🔥 " + bonkMint}))
	assert.Zero(t, fetcher.calls.Load())
}

func TestPipeline_CancelledContextDrops(t *testing.T) {
	fetcher := &stubFetcher{rec: &models.NormalizedMarketRecord{MarketCap: 60000, LiquidityUSD: 12000}}
	p, store := newTestPipeline(fetcher, &stubFilter{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, OutcomeNoData, p.Handle(ctx, models.Message{Text: "🔥 " + jupMint}))
	assert.False(t, store.IsTracked(jupMint))
}

func TestPipeline_EmptyPrefixListAcceptsAll(t *testing.T) {
	fetcher := &stubFetcher{rec: &models.NormalizedMarketRecord{MarketCap: 60000, LiquidityUSD: 12000}}
	p, _ := newTestPipeline(fetcher, &stubFilter{})
	p.cfg.TriggerPrefixes = nil

	assert.Equal(t, OutcomeAdmitted, p.Handle(context.Background(), models.Message{Text: "CA " + jupMint}))
}
