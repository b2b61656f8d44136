package handler

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/response"
)

// telegramSecretHeader carries the secret registered with setWebhook.
const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

type updateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
}

// TelegramHandler receives Bot API webhook updates.
type TelegramHandler struct {
	bot    updateHandler
	secret string
	logger *zap.Logger
}

// NewTelegramHandler constructs the handler. An empty secret disables the endpoint.
func NewTelegramHandler(bot updateHandler, secret string, logger *zap.Logger) *TelegramHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramHandler{bot: bot, secret: secret, logger: logger}
}

// Webhook godoc
// @Summary Telegram webhook
// @Description Answers tracking-id questions sent to the bot
// @Tags Integrations
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /integrations/telegram/webhook [post]
func (h *TelegramHandler) Webhook(c *gin.Context) {
	provided := c.GetHeader(telegramSecretHeader)
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid telegram update"))
		return
	}
	// Telegram redelivers on non-2xx, so reply failures are only logged.
	if err := h.bot.HandleUpdate(c.Request.Context(), update); err != nil {
		h.logger.Warn("telegram update not answered", zap.Int("update_id", update.UpdateID), zap.Error(err))
	}
	response.JSON(c, http.StatusOK, gin.H{"ok": true}, nil)
}
