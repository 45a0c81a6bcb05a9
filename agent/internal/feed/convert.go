package feed

import (
	"time"

	"mint-sniper/agent/internal/models"

	"github.com/mymmrac/telego"
)

// FromTelego flattens a channel post into the fields the extractor scans.
// Media posts carry their text in the caption.
func FromTelego(m *telego.Message, receivedAt time.Time) models.Message {
	if m == nil {
		return models.Message{ReceivedAt: receivedAt}
	}

	text, entities := m.Text, m.Entities
	if text == "" {
		text, entities = m.Caption, m.CaptionEntities
	}

	msg := models.Message{
		ChatID:     m.Chat.ID,
		MessageID:  m.MessageID,
		Text:       text,
		ReceivedAt: receivedAt,
	}

	for _, e := range entities {
		if e.Type == "text_link" && e.URL != "" {
			msg.EntityURLs = append(msg.EntityURLs, e.URL)
		}
	}

	if m.ReplyMarkup != nil {
		for _, row := range m.ReplyMarkup.InlineKeyboard {
			urls := make([]string, 0, len(row))
			for _, b := range row {
				urls = append(urls, b.URL)
			}
			msg.ButtonURLs = append(msg.ButtonURLs, urls)
		}
	}
	return msg
}
