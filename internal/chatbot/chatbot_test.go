package chatbot

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grievance-api/internal/dto"
	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
)

type trackerStub struct {
	views  map[string]*dto.GrievanceView
	err    error
	asked  []string
	viewer []*models.JWTClaims
}

func (s *trackerStub) Track(ctx context.Context, rawID string, viewer *models.JWTClaims) (*dto.GrievanceView, error) {
	s.asked = append(s.asked, rawID)
	s.viewer = append(s.viewer, viewer)
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.views[rawID]; ok {
		return v, nil
	}
	return nil, appErrors.ErrNotFound
}

type senderStub struct {
	sent []tgbotapi.Chattable
	err  error
}

func (s *senderStub) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.sent = append(s.sent, c)
	return tgbotapi.Message{}, s.err
}

func sampleView() *dto.GrievanceView {
	return &dto.GrievanceView{
		TrackingID: "GRV-2025-000123",
		Title:      "WiFi broken in library",
		Category:   models.CategoryTechnical,
		Priority:   models.PriorityUrgent,
		Status:     models.StatusInProgress,
		Escalated:  true,
		CreatedAt:  time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		Comments:   []dto.CommentView{{Text: "Technician booked for Friday."}},
	}
}

func TestReplyLooksUpEveryMentionedID(t *testing.T) {
	tracker := &trackerStub{views: map[string]*dto.GrievanceView{"GRV-2025-000123": sampleView()}}
	bot := New(tracker, nil, nil)

	reply := bot.Reply(context.Background(), "status of grv-2025-000123 and GRV-2025-000999 please, also grv-2025-000123")

	assert.Equal(t, []string{"GRV-2025-000123", "GRV-2025-000999"}, tracker.asked)
	assert.Nil(t, tracker.viewer[0], "chat lookups are anonymous")
	assert.Contains(t, reply, "Status: in progress")
	assert.Contains(t, reply, "Escalated")
	assert.Contains(t, reply, "Technician booked for Friday.")
	assert.Contains(t, reply, "GRV-2025-000999: no grievance found")
}

func TestReplyWithoutIDsSendsHelp(t *testing.T) {
	bot := New(&trackerStub{}, nil, nil)
	assert.Equal(t, helpText, bot.Reply(context.Background(), "hello, where is my complaint?"))
	assert.Equal(t, helpText, bot.Reply(context.Background(), "GRV-25-1"))
}

func TestReplyHidesInternalErrors(t *testing.T) {
	bot := New(&trackerStub{err: errors.New("pq: connection reset")}, nil, nil)
	reply := bot.Reply(context.Background(), "GRV-2025-000123")
	assert.Contains(t, reply, "unavailable right now")
	assert.NotContains(t, reply, "pq:")
}

func TestHandleUpdateRepliesInChat(t *testing.T) {
	tracker := &trackerStub{views: map[string]*dto.GrievanceView{"GRV-2025-000123": sampleView()}}
	sender := &senderStub{}
	bot := New(tracker, sender, nil)

	update := tgbotapi.Update{Message: &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: 42}, Text: "GRV-2025-000123"}}
	require.NoError(t, bot.HandleUpdate(context.Background(), update))
	require.Len(t, sender.sent, 1)

	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, 7, msg.ReplyToMessageID)
	assert.Contains(t, msg.Text, "WiFi broken in library")
}

func TestHandleUpdateIgnoresNonText(t *testing.T) {
	sender := &senderStub{}
	bot := New(&trackerStub{}, sender, nil)
	require.NoError(t, bot.HandleUpdate(context.Background(), tgbotapi.Update{}))
	require.NoError(t, bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}}}))
	assert.Empty(t, sender.sent)
}

func TestHandleUpdateSurfacesSendErrors(t *testing.T) {
	bot := New(&trackerStub{}, &senderStub{err: errors.New("forbidden: bot was blocked")}, nil)
	err := bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "hi"}})
	assert.Error(t, err)
}
