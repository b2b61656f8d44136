// Package chatbot answers tracking-id questions arriving over chat.
package chatbot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/dto"
	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/trackingid"
)

// maxLookups caps how many ids one message may query.
const maxLookups = 5

const helpText = "Send me your grievance tracking ID (for example GRV-2025-000123) and I will reply with its current status."

// Tracker resolves public tracking views.
type Tracker interface {
	Track(ctx context.Context, rawID string, viewer *models.JWTClaims) (*dto.GrievanceView, error)
}

// Sender is the subset of *tgbotapi.BotAPI used to reply.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot turns chat messages into tracking replies.
type Bot struct {
	tracker Tracker
	sender  Sender
	logger  *zap.Logger
}

// New builds a Bot. sender may be nil when replies are only rendered.
func New(tracker Tracker, sender Sender, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{tracker: tracker, sender: sender, logger: logger}
}

// Reply renders the answer to text. Every tracking id found is looked up as
// an anonymous viewer.
func (b *Bot) Reply(ctx context.Context, text string) string {
	ids := trackingid.FindAll(text)
	if len(ids) == 0 {
		return helpText
	}
	if len(ids) > maxLookups {
		ids = ids[:maxLookups]
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		view, err := b.tracker.Track(ctx, id, nil)
		if err != nil {
			parts = append(parts, lookupFailure(id, err))
			continue
		}
		parts = append(parts, FormatView(view))
	}
	return strings.Join(parts, "\n\n")
}

// HandleUpdate answers a single Telegram update. Updates without text are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil {
		msg = update.ChannelPost
	}
	if msg == nil || msg.Chat == nil {
		return nil
	}
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if b.sender == nil {
		return fmt.Errorf("chatbot: no sender configured")
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, b.Reply(ctx, text))
	reply.ReplyToMessageID = msg.MessageID
	reply.DisableWebPagePreview = true
	if _, err := b.sender.Send(reply); err != nil {
		b.logger.Warn("telegram reply failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		return fmt.Errorf("send telegram reply: %w", err)
	}
	return nil
}

// FormatView renders a tracking view as plain chat text.
func FormatView(v *dto.GrievanceView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s\n", v.TrackingID, v.Title)
	fmt.Fprintf(&sb, "Status: %s", strings.ReplaceAll(string(v.Status), "_", " "))
	fmt.Fprintf(&sb, "\nCategory: %s, priority: %s", v.Category, v.Priority)
	if v.Escalated {
		sb.WriteString("\nEscalated to administrators")
	}
	fmt.Fprintf(&sb, "\nSubmitted: %s", v.CreatedAt.UTC().Format("2006-01-02 15:04 MST"))
	if v.ResolvedAt != nil {
		fmt.Fprintf(&sb, "\nResolved: %s", v.ResolvedAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	if n := len(v.Comments); n > 0 {
		last := v.Comments[n-1]
		fmt.Fprintf(&sb, "\nLatest update: %s", last.Text)
	}
	return sb.String()
}

func lookupFailure(id string, err error) string {
	if appErrors.Is(err, appErrors.ErrNotFound) {
		return fmt.Sprintf("%s: no grievance found with this tracking ID.", id)
	}
	return fmt.Sprintf("%s: status is unavailable right now, please try again later.", id)
}
