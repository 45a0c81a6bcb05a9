package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu   sync.Mutex
	msgs []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.msgs = append(f.msgs, msg)
	}
	return tgbotapi.Message{}, f.err
}

func (f *fakeSender) sent() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.msgs...)
}

const mint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"

func TestRenderAlert(t *testing.T) {
	assert.Equal(t, "🔥"+mint, RenderAlert("🔥%s", mint))
	assert.Equal(t, "New: "+mint+" go", RenderAlert("New: %s go", mint))
	assert.Equal(t, "🔥"+mint, RenderAlert("🔥", mint))
}

func TestTelegramSink_Send(t *testing.T) {
	api := &fakeSender{}
	sink := NewTelegramSink(NewClient(api, 0, time.Second, nil), -100123, "🔥%s", nil)

	require.NoError(t, sink.Send(context.Background(), mint))

	msgs := api.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(-100123), msgs[0].ChatID)
	assert.Equal(t, "🔥"+mint, msgs[0].Text)
	assert.True(t, msgs[0].DisableWebPagePreview)
}

func TestTelegramSink_FailureIsSingleAttempt(t *testing.T) {
	api := &fakeSender{err: &tgbotapi.Error{Code: 429, Message: "Too Many Requests", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 7}}}
	sink := NewTelegramSink(NewClient(api, 0, time.Second, nil), -100123, "🔥%s", nil)

	err := sink.Send(context.Background(), mint)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry after 7s")
	assert.Len(t, api.sent(), 1)

	api.err = errors.New("connection reset")
	err = sink.Send(context.Background(), mint)
	assert.ErrorContains(t, err, "connection reset")
	assert.Len(t, api.sent(), 2)
}

func TestClient_ZeroChat(t *testing.T) {
	api := &fakeSender{}
	err := NewClient(api, 0, time.Second, nil).SendText(context.Background(), 0, "x", "")
	assert.Error(t, err)
	assert.Empty(t, api.sent())
}

func TestClient_SharedLimiter(t *testing.T) {
	api := &fakeSender{}
	client := NewClient(api, 10, time.Second, nil)

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, client.SendText(context.Background(), 1, "hi", ""))
		}()
	}
	wg.Wait()

	assert.Len(t, api.sent(), 3)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestClient_LogMirror(t *testing.T) {
	api := &fakeSender{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mirror := NewClient(api, 0, time.Second, nil).LogMirror(ctx, 555, 4)
	mirror("🔴 ERROR: boom")

	require.Eventually(t, func() bool { return len(api.sent()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(555), api.sent()[0].ChatID)
	assert.Equal(t, "🔴 ERROR: boom", api.sent()[0].Text)
}

func TestEscapeMarkdownV2(t *testing.T) {
	assert.Equal(t, `a\_b\.c\!`, EscapeMarkdownV2("a_b.c!"))
}
