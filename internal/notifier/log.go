package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/models"
)

// LogNotifier records every event. Used in development when no channel is
// configured and as an audit trail of what was dispatched.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Accepts(models.NotificationEvent) bool { return true }

func (n *LogNotifier) Notify(_ context.Context, evt models.NotificationEvent) error {
	n.logger.Info("notification",
		zap.String("event_id", evt.ID),
		zap.String("event", string(evt.Type)),
		zap.String("tracking_id", evt.TrackingID),
		zap.String("recipient", evt.Recipient.UserID),
		zap.String("role", string(evt.Recipient.Role)),
		zap.String("channel", evt.ChatChannel),
	)
	return nil
}
