package bot

import (
	"context"
	"strings"
	"time"

	"mint-sniper/agent/internal/models"
	"mint-sniper/shared/logger"

	"go.uber.org/zap"
)

// Replier sends a reply into a chat. notifications.Client satisfies it.
type Replier interface {
	SendText(ctx context.Context, chatID int64, text string, parseMode string) error
}

// WatchlistView is the read side of the watchlist the commands report on.
type WatchlistView interface {
	PendingCount() int
	SeenCount() int
	Snapshot() ([]models.WatchlistEntry, []string)
	RecentSeen(n int) []string
}

// Commands answers operator slash commands from the admin chat.
type Commands struct {
	replier   Replier
	view      WatchlistView
	log       *logger.Logger
	startedAt time.Time
	now       func() time.Time
}

func NewCommands(replier Replier, view WatchlistView, appLogger *logger.Logger) *Commands {
	if appLogger == nil {
		appLogger = logger.NewNop()
	}
	return &Commands{
		replier:   replier,
		view:      view,
		log:       appLogger,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// HandleCommand dispatches "/name[@bot] args" and replies in chatID.
func (c *Commands) HandleCommand(ctx context.Context, chatID int64, text string) {
	command, args := parseCommand(text)
	if command == "" {
		return
	}

	c.log.Info("Processing command",
		zap.String("command", command),
		zap.String("args", args),
		zap.Int64("chatID", chatID),
	)

	reply, parseMode := c.dispatch(command, args)
	if err := c.replier.SendText(ctx, chatID, reply, parseMode); err != nil {
		c.log.Zap().Warnw("Failed to send command reply", "command", command, "chatID", chatID, "error", err)
	}
}

func parseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	name, args, _ := strings.Cut(text[1:], " ")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), strings.TrimSpace(args)
}
