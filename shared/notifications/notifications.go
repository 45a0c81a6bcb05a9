package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mint-sniper/shared/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// Sender is the part of *tgbotapi.BotAPI used for outbound messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client sends text through one bot with a single limiter shared by every caller.
type Client struct {
	api     Sender
	limiter *rate.Limiter
	timeout time.Duration
	log     *logger.Logger
}

func NewClient(api Sender, ratePerSec float64, timeout time.Duration, appLogger *logger.Logger) *Client {
	if appLogger == nil {
		appLogger = logger.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if ratePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}
	return &Client{api: api, limiter: limiter, timeout: timeout, log: appLogger}
}

// InitTelegramBot connects to the Bot API and verifies the token with getMe.
func InitTelegramBot(token string, appLogger *logger.Logger) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, fmt.Errorf("critical error: TELEGRAM_BOT_TOKEN missing from env configuration")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot API: %w", err)
	}
	appLogger.Info("Telegram bot initialized", "username", bot.Self.UserName)
	return bot, nil
}

// SendText makes one delivery attempt. Failures are returned, never retried.
func (c *Client) SendText(ctx context.Context, chatID int64, text string, parseMode string) error {
	if chatID == 0 {
		return errors.New("cannot send message, target chatID is 0")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limiter wait for chat %d: %w", chatID, err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode
	msg.DisableWebPagePreview = true

	if _, err := c.api.Send(msg); err != nil {
		var tgErr *tgbotapi.Error
		if errors.As(err, &tgErr) {
			if tgErr.Code == 429 {
				return fmt.Errorf("telegram rate limit hit for chat %d (retry after %ds): %w", chatID, tgErr.RetryAfter, err)
			}
			return fmt.Errorf("telegram API error %d for chat %d: %s", tgErr.Code, chatID, tgErr.Message)
		}
		return fmt.Errorf("telegram send to chat %d: %w", chatID, err)
	}
	return nil
}

// LogMirror returns a non-blocking forwarder for logger.SetTelegramMirror.
// Messages are dropped when the buffer is full; delivery errors only reach
// the console so a broken chat cannot feed back into itself.
func (c *Client) LogMirror(ctx context.Context, chatID int64, buffer int) func(string) {
	queue := make(chan string, buffer)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case text := <-queue:
				if err := c.SendText(ctx, chatID, truncateMessage(text), ""); err != nil {
					c.log.Zap().Debugw("Log mirror delivery failed", "error", err)
				}
			}
		}
	}()
	return func(text string) {
		select {
		case queue <- text:
		default:
		}
	}
}

const maxMessageLength = 4096

func truncateMessage(s string) string {
	r := []rune(s)
	if len(r) <= maxMessageLength {
		return s
	}
	return string(r[:maxMessageLength-1]) + "…"
}

// TelegramSink posts the alert for a confirmed mint to the target channel.
type TelegramSink struct {
	client   *Client
	chatID   int64
	template string
	log      *logger.Logger
}

func NewTelegramSink(client *Client, chatID int64, template string, appLogger *logger.Logger) *TelegramSink {
	if appLogger == nil {
		appLogger = logger.NewNop()
	}
	return &TelegramSink{client: client, chatID: chatID, template: template, log: appLogger}
}

// RenderAlert fills the %s placeholder in template with mint.
func RenderAlert(template, mint string) string {
	if !strings.Contains(template, "%s") {
		return template + mint
	}
	return strings.Replace(template, "%s", mint, 1)
}

// Send delivers the alert once.
func (s *TelegramSink) Send(ctx context.Context, mint string) error {
	text := RenderAlert(s.template, mint)
	if err := s.client.SendText(ctx, s.chatID, text, ""); err != nil {
		return err
	}
	s.log.Info("Alert sent", "mint", mint, "chatID", s.chatID)
	return nil
}

func EscapeMarkdownV2(s string) string {
	charsToEscape := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	temp := s
	for _, char := range charsToEscape {
		temp = strings.ReplaceAll(temp, char, "\\"+char)
	}
	return temp
}
