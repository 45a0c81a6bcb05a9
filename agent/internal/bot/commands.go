package bot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"mint-sniper/shared/config"
	"mint-sniper/shared/notifications"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	maxListed       = 20
	defaultSeenShow = 10
)

func (c *Commands) dispatch(command, args string) (string, string) {
	switch command {
	case "status":
		return c.handleStatus(), ""
	case "watchlist":
		return c.handleWatchlist(), tgbotapi.ModeMarkdownV2
	case "seen":
		return c.handleSeen(args), tgbotapi.ModeMarkdownV2
	case "start", "help":
		return helpText, ""
	default:
		c.log.Warn("Unknown command received", zap.String("command", command))
		return fmt.Sprintf("Unknown command: /%s", command), ""
	}
}

const helpText = `Available commands:
/status - Uptime, filter mode and watchlist size.
/watchlist - Pending mints with baseline and last market cap.
/seen [n] - Mints that already fired (default 10).
/help - Show this help message.`

func (c *Commands) handleStatus() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Uptime: %s\n", c.now().Sub(c.startedAt).Truncate(time.Second))
	if cfg := config.GetGlobalConfig(); cfg != nil {
		fmt.Fprintf(&b, "Mode: %s\n", cfg.Filters.Mode)
		fmt.Fprintf(&b, "Expiry: %s\n", cfg.Watchlist.Expiry)
	}
	fmt.Fprintf(&b, "Pending: %d\n", c.view.PendingCount())
	fmt.Fprintf(&b, "Alerted: %d", c.view.SeenCount())
	return b.String()
}

func (c *Commands) handleWatchlist() string {
	entries, _ := c.view.Snapshot()
	if len(entries) == 0 {
		return notifications.EscapeMarkdownV2("Watchlist is empty.")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].AddedAt.Before(entries[j].AddedAt) })

	now := c.now()
	var b strings.Builder
	b.WriteString(notifications.EscapeMarkdownV2(fmt.Sprintf("Pending (%d):", len(entries))))
	for i, e := range entries {
		if i == maxListed {
			b.WriteString("\n" + notifications.EscapeMarkdownV2(fmt.Sprintf("... and %d more", len(entries)-maxListed)))
			break
		}
		ratio := 0.0
		if e.BaselineMarketCap > 0 {
			ratio = e.PreviousMarketCap / e.BaselineMarketCap
		}
		line := fmt.Sprintf(" base $%.0f, last $%.0f (x%.3f), %ds", e.BaselineMarketCap, e.PreviousMarketCap, ratio, int(now.Sub(e.AddedAt).Seconds()))
		b.WriteString("\n`" + e.Mint + "`" + notifications.EscapeMarkdownV2(line))
	}
	return b.String()
}

func (c *Commands) handleSeen(args string) string {
	limit := defaultSeenShow
	if n, err := strconv.Atoi(args); err == nil && n > 0 {
		limit = n
	}
	if limit > maxListed {
		limit = maxListed
	}

	total := c.view.SeenCount()
	if total == 0 {
		return notifications.EscapeMarkdownV2("No mints alerted yet.")
	}

	var b strings.Builder
	b.WriteString(notifications.EscapeMarkdownV2(fmt.Sprintf("Alerted (%d), latest first:", total)))
	for _, mint := range c.view.RecentSeen(limit) {
		b.WriteString("\n`" + mint + "`")
	}
	return b.String()
}
