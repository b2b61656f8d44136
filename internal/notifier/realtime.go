package notifier

import (
	"context"

	"github.com/noah-isme/grievance-api/internal/models"
)

// Publisher fans an event out to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, evt models.NotificationEvent) error
}

// RealtimeNotifier forwards broadcasts to connected dashboards.
type RealtimeNotifier struct {
	pub Publisher
}

// NewRealtimeNotifier wraps pub.
func NewRealtimeNotifier(pub Publisher) *RealtimeNotifier {
	return &RealtimeNotifier{pub: pub}
}

func (n *RealtimeNotifier) Name() string { return "realtime" }

func (n *RealtimeNotifier) Accepts(evt models.NotificationEvent) bool {
	return isBroadcast(evt)
}

func (n *RealtimeNotifier) Notify(ctx context.Context, evt models.NotificationEvent) error {
	return n.pub.Publish(ctx, evt)
}
