package feed

import (
	"context"
	"strings"
	"time"

	"mint-sniper/agent/internal/models"
	"mint-sniper/shared/logger"

	"github.com/mymmrac/telego"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// UpdateSource is satisfied by *telego.Bot.
type UpdateSource interface {
	UpdatesViaLongPolling(ctx context.Context, params *telego.GetUpdatesParams, options ...telego.LongPollingOption) (<-chan telego.Update, error)
}

type MessageHandler interface {
	Handle(ctx context.Context, msg models.Message) Outcome
}

// CommandHandler receives slash commands from the admin chat.
type CommandHandler interface {
	HandleCommand(ctx context.Context, chatID int64, text string)
}

type ListenerConfig struct {
	SourceChatID   int64
	AdminChatID    int64
	ReconnectDelay time.Duration
	MessageTimeout time.Duration
	MaxInFlight    int
	PollSeconds    int
}

// Listener long-polls the bot for posts in the source chat and hands them
// to the pipeline, resubscribing after failures until ctx is done.
type Listener struct {
	cfg      ListenerConfig
	source   UpdateSource
	handler  MessageHandler
	commands CommandHandler
	log      *logger.Logger
}

func NewListener(cfg ListenerConfig, source UpdateSource, handler MessageHandler, commands CommandHandler, appLogger *logger.Logger) *Listener {
	if appLogger == nil {
		appLogger = logger.NewNop()
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.MaxInFlight < 1 {
		cfg.MaxInFlight = 1
	}
	if cfg.PollSeconds <= 0 {
		cfg.PollSeconds = 30
	}
	return &Listener{cfg: cfg, source: source, handler: handler, commands: commands, log: appLogger}
}

// Run blocks until ctx is cancelled and all in-flight messages finish.
func (l *Listener) Run(ctx context.Context) error {
	var inflight errgroup.Group
	inflight.SetLimit(l.cfg.MaxInFlight)
	defer inflight.Wait()

	for {
		err := l.consume(ctx, &inflight)
		if ctx.Err() != nil {
			l.log.Info("Feed listener stopped")
			return ctx.Err()
		}
		if err != nil {
			l.log.Warn("Feed subscription failed, reconnecting", zap.Error(err), zap.Duration("delay", l.cfg.ReconnectDelay))
		} else {
			l.log.Warn("Feed update stream closed, reconnecting", zap.Duration("delay", l.cfg.ReconnectDelay))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.cfg.ReconnectDelay):
		}
	}
}

func (l *Listener) consume(ctx context.Context, inflight *errgroup.Group) error {
	updates, err := l.source.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        l.cfg.PollSeconds,
		AllowedUpdates: []string{"channel_post", "message"},
	})
	if err != nil {
		return err
	}
	l.log.Info("Listening for channel posts", zap.Int64("sourceChatID", l.cfg.SourceChatID))

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			l.dispatch(ctx, update, inflight)
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, update telego.Update, inflight *errgroup.Group) {
	post := update.ChannelPost
	if post == nil {
		post = update.Message
	}
	if post == nil {
		return
	}

	if l.isAdminCommand(post) {
		chatID, text := post.Chat.ID, post.Text
		inflight.Go(func() error {
			l.commands.HandleCommand(ctx, chatID, text)
			return nil
		})
		return
	}

	if post.Chat.ID != l.cfg.SourceChatID {
		l.log.Debug("Ignoring update from other chat", zap.Int64("chatID", post.Chat.ID))
		return
	}

	msg := FromTelego(post, time.Now())
	inflight.Go(func() error {
		msgCtx := ctx
		if l.cfg.MessageTimeout > 0 {
			var cancel context.CancelFunc
			msgCtx, cancel = context.WithTimeout(ctx, l.cfg.MessageTimeout)
			defer cancel()
		}
		l.handler.Handle(msgCtx, msg)
		return nil
	})
}

func (l *Listener) isAdminCommand(m *telego.Message) bool {
	return l.commands != nil &&
		l.cfg.AdminChatID != 0 &&
		m.Chat.ID == l.cfg.AdminChatID &&
		strings.HasPrefix(m.Text, "/")
}
