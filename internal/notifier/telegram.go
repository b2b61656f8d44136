package notifier

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/noah-isme/grievance-api/internal/models"
)

// TelegramSender is the subset of *tgbotapi.BotAPI used for delivery.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts to a recipient's Telegram chat, or to the
// grievance's chat channel for broadcasts.
type TelegramNotifier struct {
	bot TelegramSender
}

// NewTelegramNotifier wraps an existing sender.
func NewTelegramNotifier(bot TelegramSender) *TelegramNotifier {
	return &TelegramNotifier{bot: bot}
}

// NewTelegramBot authenticates against the Bot API with token. Every API
// call, including later sends, is bounded by timeout.
func NewTelegramBot(token string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	return newTelegramBot(token, tgbotapi.APIEndpoint, timeout)
}

func newTelegramBot(token, endpoint string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return bot, nil
}

func (n *TelegramNotifier) Name() string { return "telegram" }

func (n *TelegramNotifier) Accepts(evt models.NotificationEvent) bool {
	return n.target(evt) != ""
}

func (n *TelegramNotifier) Notify(ctx context.Context, evt models.NotificationEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := n.target(evt)
	text := Subject(evt) + "\n\n" + Body(evt)

	var msg tgbotapi.MessageConfig
	if chatID, err := strconv.ParseInt(target, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(chatID, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(target, text)
	}
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message to %s: %w", target, err)
	}
	return nil
}

// target resolves a numeric chat ID or an @channel username.
func (n *TelegramNotifier) target(evt models.NotificationEvent) string {
	if !isBroadcast(evt) {
		return strings.TrimSpace(evt.Recipient.ChatID)
	}
	channel := strings.TrimSpace(evt.ChatChannel)
	if strings.HasPrefix(channel, "@") {
		return channel
	}
	if _, err := strconv.ParseInt(channel, 10, 64); err == nil {
		return channel
	}
	return ""
}
