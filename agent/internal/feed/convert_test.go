package feed

import (
	"testing"
	"time"

	"mint-sniper/agent/internal/events"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
)

func TestFromTelego(t *testing.T) {
	now := time.Now()
	m := &telego.Message{
		MessageID: 9,
		Chat:      telego.Chat{ID: sourceChat},
		Text:      "🔥 new chart",
		Entities: []telego.MessageEntity{
			{Type: "bold", Offset: 0, Length: 2},
			{Type: "text_link", Offset: 3, Length: 3, URL: "https://dexscreener.com/solana/" + jupMint},
		},
		ReplyMarkup: &telego.InlineKeyboardMarkup{InlineKeyboard: [][]telego.InlineKeyboardButton{
			{{Text: "Buy", URL: "https://t.me/bot?start=x_" + bonkMint}, {Text: "Cb", CallbackData: "noop"}},
		}},
	}

	msg := FromTelego(m, now)
	assert.Equal(t, sourceChat, msg.ChatID)
	assert.Equal(t, 9, msg.MessageID)
	assert.Equal(t, "🔥 new chart", msg.Text)
	assert.Equal(t, []string{"https://dexscreener.com/solana/" + jupMint}, msg.EntityURLs)
	assert.Equal(t, [][]string{{"https://t.me/bot?start=x_" + bonkMint, ""}}, msg.ButtonURLs)
	assert.Equal(t, now, msg.ReceivedAt)

	mint, ok := events.ExtractMint(msg)
	assert.True(t, ok)
	assert.Equal(t, jupMint, mint, "entity url is scanned before buttons")
}

func TestFromTelego_CaptionFallback(t *testing.T) {
	m := &telego.Message{
		Chat:            telego.Chat{ID: sourceChat},
		Caption:         "📈 " + bonkMint,
		CaptionEntities: []telego.MessageEntity{{Type: "text_link", URL: "https://pump.fun/" + jupMint}},
	}

	msg := FromTelego(m, time.Time{})
	assert.Equal(t, "📈 "+bonkMint, msg.Text)
	assert.Equal(t, []string{"https://pump.fun/" + jupMint}, msg.EntityURLs)
	assert.Nil(t, msg.ButtonURLs)
}

func TestFromTelego_Nil(t *testing.T) {
	assert.Empty(t, FromTelego(nil, time.Time{}).Text)
}
