package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mint-sniper/agent/internal/models"
	"mint-sniper/agent/internal/watchlist"
	"mint-sniper/shared/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	mintA = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	mintB = "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"
)

type reply struct {
	chatID    int64
	text      string
	parseMode string
}

type fakeReplier struct {
	replies []reply
	err     error
}

func (f *fakeReplier) SendText(_ context.Context, chatID int64, text, parseMode string) error {
	f.replies = append(f.replies, reply{chatID, text, parseMode})
	return f.err
}

type fakeView struct {
	entries []models.WatchlistEntry
	seen    []string
}

func (v fakeView) PendingCount() int { return len(v.entries) }
func (v fakeView) SeenCount() int    { return len(v.seen) }
func (v fakeView) Snapshot() ([]models.WatchlistEntry, []string) {
	return append([]models.WatchlistEntry(nil), v.entries...), append([]string(nil), v.seen...)
}

// RecentSeen treats seen as alert order, oldest first.
func (v fakeView) RecentSeen(n int) []string {
	out := make([]string, 0, len(v.seen))
	for i := len(v.seen) - 1; i >= 0 && (n <= 0 || len(out) < n); i-- {
		out = append(out, v.seen[i])
	}
	return out
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newCommands(view WatchlistView) (*Commands, *fakeReplier) {
	r := &fakeReplier{}
	c := NewCommands(r, view, nil)
	c.startedAt = t0
	c.now = func() time.Time { return t0.Add(90 * time.Second) }
	return c, r
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in, name, args string
	}{
		{"/status", "status", ""},
		{"/Seen@sniper_bot 5", "seen", "5"},
		{"  /watchlist  ", "watchlist", ""},
		{"hello", "", ""},
	}
	for _, tt := range tests {
		name, args := parseCommand(tt.in)
		assert.Equal(t, tt.name, name, tt.in)
		assert.Equal(t, tt.args, args, tt.in)
	}
}

func TestHandleCommand_Status(t *testing.T) {
	cfg := &config.Config{}
	cfg.Filters.Mode = "balanced"
	cfg.Watchlist.Expiry = 2 * time.Minute
	config.SetGlobalConfig(cfg)
	t.Cleanup(func() { config.SetGlobalConfig(nil) })

	c, r := newCommands(fakeView{entries: []models.WatchlistEntry{{Mint: mintA}}, seen: []string{mintB}})
	c.HandleCommand(context.Background(), 42, "/status")

	require.Len(t, r.replies, 1)
	got := r.replies[0]
	assert.Equal(t, int64(42), got.chatID)
	assert.Contains(t, got.text, "Uptime: 1m30s")
	assert.Contains(t, got.text, "Mode: balanced")
	assert.Contains(t, got.text, "Pending: 1")
	assert.Contains(t, got.text, "Alerted: 1")
}

func TestHandleCommand_Watchlist(t *testing.T) {
	view := fakeView{entries: []models.WatchlistEntry{
		{Mint: mintB, BaselineMarketCap: 50000, PreviousMarketCap: 52500, AddedAt: t0.Add(30 * time.Second)},
		{Mint: mintA, BaselineMarketCap: 40000, PreviousMarketCap: 40000, AddedAt: t0},
	}}
	c, r := newCommands(view)
	c.HandleCommand(context.Background(), 42, "/watchlist")

	require.Len(t, r.replies, 1)
	got := r.replies[0]
	assert.Equal(t, tgbotapi.ModeMarkdownV2, got.parseMode)
	assert.Contains(t, got.text, "`"+mintA+"`")
	assert.Contains(t, got.text, `x1\.050`)
	assert.Less(t, strings.Index(got.text, mintA), strings.Index(got.text, mintB), "oldest first")
}

func TestHandleCommand_SeenShowsLatestAlertsFirst(t *testing.T) {
	store := watchlist.NewStore(2 * time.Minute)
	// mintB sorts after mintA alphabetically but fires first.
	for i, mint := range []string{mintB, mintA} {
		at := t0.Add(time.Duration(i) * time.Second)
		require.Equal(t, watchlist.Admitted, store.AdmitIfAbsent(mint, 1000, at))
		require.True(t, store.MarkSent(mint, at))
	}

	c, r := newCommands(store)
	c.HandleCommand(context.Background(), 42, "/seen 1")
	c.HandleCommand(context.Background(), 42, "/seen")

	require.Len(t, r.replies, 2)
	assert.Contains(t, r.replies[0].text, `Alerted \(2\)`)
	assert.Contains(t, r.replies[0].text, mintA)
	assert.NotContains(t, r.replies[0].text, mintB)
	assert.Less(t, strings.Index(r.replies[1].text, mintA), strings.Index(r.replies[1].text, mintB))
}

func TestHandleCommand_SeenLimitOnFake(t *testing.T) {
	c, r := newCommands(fakeView{seen: []string{mintA, mintB}})
	c.HandleCommand(context.Background(), 42, "/seen 1")

	require.Len(t, r.replies, 1)
	assert.Contains(t, r.replies[0].text, mintB)
	assert.NotContains(t, r.replies[0].text, mintA)
}

func TestHandleCommand_UnknownAndEmpty(t *testing.T) {
	c, r := newCommands(fakeView{})
	c.HandleCommand(context.Background(), 42, "/launch")
	c.HandleCommand(context.Background(), 42, "/watchlist")
	c.HandleCommand(context.Background(), 42, "not a command")

	require.Len(t, r.replies, 2)
	assert.Equal(t, "Unknown command: /launch", r.replies[0].text)
	assert.Equal(t, `Watchlist is empty\.`, r.replies[1].text)
}

func TestHandleCommand_ReplyFailureIsSwallowed(t *testing.T) {
	c, r := newCommands(fakeView{})
	r.err = errors.New("chat not found")
	assert.NotPanics(t, func() { c.HandleCommand(context.Background(), 42, "/help") })
	assert.Len(t, r.replies, 1)
}
