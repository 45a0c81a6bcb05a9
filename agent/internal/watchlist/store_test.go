package watchlist

import (
	"sync"
	"testing"
	"time"

	"mint-sniper/agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	mintA = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	mintB = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestAdmitIfAbsent_Idempotent(t *testing.T) {
	s := NewStore(120 * time.Second)

	assert.Equal(t, Admitted, s.AdmitIfAbsent(mintA, 50000, t0))
	assert.Equal(t, AlreadyTracked, s.AdmitIfAbsent(mintA, 99999, t0.Add(5*time.Second)))

	require.Equal(t, 1, s.PendingCount())
	e, ok := s.Get(mintA)
	require.True(t, ok)
	assert.Equal(t, 50000.0, e.BaselineMarketCap)
	assert.Equal(t, 50000.0, e.PreviousMarketCap)
	assert.Equal(t, t0, e.AddedAt)
	assert.Equal(t, models.StatePending, e.State)
	assert.False(t, e.Sent)
}

func TestAdmitIfAbsent_RejectsBadBaselineAndSeen(t *testing.T) {
	s := NewStore(time.Minute)

	assert.Equal(t, InvalidBaseline, s.AdmitIfAbsent(mintA, 0, t0))
	assert.Equal(t, InvalidBaseline, s.AdmitIfAbsent(mintA, -1, t0))

	require.Equal(t, Admitted, s.AdmitIfAbsent(mintA, 100, t0))
	require.True(t, s.MarkSent(mintA, t0))
	assert.Equal(t, AlreadySent, s.AdmitIfAbsent(mintA, 100, t0.Add(time.Hour)))
	assert.Zero(t, s.PendingCount())
}

func TestAdmitIfAbsent_Concurrent(t *testing.T) {
	s := NewStore(time.Minute)

	var wg sync.WaitGroup
	results := make(chan AdmitResult, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results <- s.AdmitIfAbsent(mintA, float64(1000+i), t0)
		}(i)
	}
	wg.Wait()
	close(results)

	admitted := 0
	for r := range results {
		if r == Admitted {
			admitted++
		}
	}
	assert.Equal(t, 1, admitted)
	assert.Equal(t, 1, s.PendingCount())
}

func TestMarkSent_SingleFire(t *testing.T) {
	s := NewStore(time.Minute)
	require.Equal(t, Admitted, s.AdmitIfAbsent(mintA, 100, t0))

	assert.True(t, s.MarkSent(mintA, t0))
	assert.False(t, s.MarkSent(mintA, t0))
	assert.False(t, s.MarkSent(mintB, t0), "untracked mint cannot be sent")

	assert.True(t, s.IsSeen(mintA))
	assert.False(t, s.IsTracked(mintA))
	assert.Equal(t, 1, s.SeenCount())
	assert.False(t, s.Observe(mintA, 1, 1, t0), "terminal entries take no updates")
	assert.False(t, s.Reschedule(mintA, t0))
}

func TestDueAndReschedule(t *testing.T) {
	s := NewStore(time.Minute)
	require.Equal(t, Admitted, s.AdmitIfAbsent(mintB, 100, t0.Add(time.Second)))
	require.Equal(t, Admitted, s.AdmitIfAbsent(mintA, 100, t0))

	due := s.Due(t0.Add(time.Second))
	require.Len(t, due, 2)
	assert.Equal(t, mintA, due[0].Mint, "oldest first")

	require.True(t, s.Reschedule(mintA, t0.Add(10*time.Second)))
	due = s.Due(t0.Add(5 * time.Second))
	require.Len(t, due, 1)
	assert.Equal(t, mintB, due[0].Mint)

	require.True(t, s.Observe(mintB, 130, 4000, t0.Add(20*time.Second)))
	e, _ := s.Get(mintB)
	assert.Equal(t, 130.0, e.PreviousMarketCap)
	assert.Equal(t, 100.0, e.BaselineMarketCap)
	assert.Equal(t, 4000.0, e.LastVolume)

	due[0].PreviousMarketCap = 1
	e, _ = s.Get(mintB)
	assert.Equal(t, 130.0, e.PreviousMarketCap, "Due returns copies")
}

func TestEvictExpired(t *testing.T) {
	s := NewStore(120 * time.Second)
	require.Equal(t, Admitted, s.AdmitIfAbsent(mintA, 100, t0))
	require.Equal(t, Admitted, s.AdmitIfAbsent(mintB, 100, t0.Add(60*time.Second)))

	assert.Empty(t, s.EvictExpired(t0.Add(120*time.Second)), "horizon is exclusive")
	assert.Equal(t, []string{mintA}, s.EvictExpired(t0.Add(121*time.Second)))
	assert.False(t, s.IsTracked(mintA))
	assert.False(t, s.IsSeen(mintA), "expired mints never fired")
	assert.True(t, s.IsTracked(mintB))

	assert.Equal(t, Admitted, s.AdmitIfAbsent(mintA, 200, t0.Add(130*time.Second)), "expired mint can be re-admitted")
}

func TestSnapshotRestore(t *testing.T) {
	src := NewStore(time.Minute)
	require.Equal(t, Admitted, src.AdmitIfAbsent(mintA, 100, t0))
	require.Equal(t, Admitted, src.AdmitIfAbsent(mintB, 200, t0.Add(time.Second)))
	require.True(t, src.Observe(mintA, 110, 900, t0.Add(3*time.Second)))
	require.True(t, src.MarkSent(mintB, t0.Add(2*time.Second)))

	entries, seen := src.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, []string{mintB}, seen)

	dst := NewStore(time.Minute)
	stale := models.WatchlistEntry{Mint: mintB, BaselineMarketCap: 200, State: models.StatePending}
	sent := models.WatchlistEntry{Mint: "SentMint", BaselineMarketCap: 1, Sent: true, State: models.StateSent}
	zero := models.WatchlistEntry{Mint: "ZeroMint", BaselineMarketCap: 0, State: models.StatePending}

	n := dst.Restore(append(entries, stale, sent, zero), seen, t0.Add(time.Hour))
	assert.Equal(t, 1, n)
	assert.True(t, dst.IsSeen(mintB))
	assert.False(t, dst.IsTracked(mintB), "seen mints are never resurrected")

	got, ok := dst.Get(mintA)
	require.True(t, ok)
	assert.Equal(t, entries[0], got)
}

func TestRecentSeen_NewestFirst(t *testing.T) {
	s := NewStore(time.Minute)
	const mintC = "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"

	// Fire order differs from alphabetical order.
	for i, mint := range []string{mintC, mintA, mintB} {
		at := t0.Add(time.Duration(i) * time.Second)
		require.Equal(t, Admitted, s.AdmitIfAbsent(mint, 1000, at))
		require.True(t, s.MarkSent(mint, at))
	}

	assert.Equal(t, []string{mintB, mintA, mintC}, s.RecentSeen(0))
	assert.Equal(t, []string{mintB}, s.RecentSeen(1))
	assert.Equal(t, []string{mintB, mintA, mintC}, s.RecentSeen(10))
	assert.Empty(t, NewStore(time.Minute).RecentSeen(5))
}
