package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramSendInterval spaces messages to one chat below Telegram's flood
// limit of roughly 30 per minute.
const telegramSendInterval = 2 * time.Second

// TelegramSender posts alerts to one chat through the Bot API.
type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	chatID int64

	mu       sync.Mutex
	lastSend time.Time
	interval time.Duration
}

// NewTelegramSender authenticates the bot (getMe) and returns a sender for
// chatID.
func NewTelegramSender(token string, chatID int64) (*TelegramSender, error) {
	return newTelegramSender(token, tgbotapi.APIEndpoint, chatID)
}

func newTelegramSender(token, endpoint string, chatID int64) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect bot: %w", err)
	}
	return &TelegramSender{bot: bot, chatID: chatID, interval: telegramSendInterval}, nil
}

// Send posts a Markdown message with the title in bold. Consecutive sends
// are paced by the flood interval; waiting honours ctx.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if wait := t.interval - time.Since(t.lastSend); wait > 0 && !t.lastSend.IsZero() {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("telegram: %w", ctx.Err())
		case <-timer.C:
		}
	}

	text := "*" + tgbotapi.EscapeText(tgbotapi.ModeMarkdown, title) + "*\n" +
		tgbotapi.EscapeText(tgbotapi.ModeMarkdown, message)
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	_, err := t.bot.Send(msg)
	t.lastSend = time.Now()
	if err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}

// Name returns "telegram".
func (t *TelegramSender) Name() string { return "telegram" }
