// Package notifier delivers grievance notification events over outbound
// channels. Every implementation is safe for concurrent use.
package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/grievance-api/internal/models"
)

// Notifier is a single outbound channel.
type Notifier interface {
	// Name identifies the channel in logs and metrics.
	Name() string
	// Accepts reports whether the channel can deliver evt at all, e.g. the
	// recipient has an address for it.
	Accepts(evt models.NotificationEvent) bool
	Notify(ctx context.Context, evt models.NotificationEvent) error
}

// Subject renders a one-line summary used by channels with a subject or title.
func Subject(evt models.NotificationEvent) string {
	var what string
	switch evt.Type {
	case models.EventGrievanceSubmitted:
		what = "Grievance received"
	case models.EventGrievanceStatusChanged:
		what = fmt.Sprintf("Status changed to %s", humanStatus(evt.NewStatus))
	case models.EventGrievanceCommented:
		what = "New comment"
	case models.EventGrievanceEscalated:
		what = fmt.Sprintf("Escalated (%s priority)", evt.Priority)
	default:
		what = "Grievance update"
	}
	return fmt.Sprintf("[%s] %s", evt.TrackingID, what)
}

// Body renders the plain-text notification body.
func Body(evt models.NotificationEvent) string {
	var b strings.Builder
	if evt.Recipient.Name != "" {
		fmt.Fprintf(&b, "Hello %s,\n\n", evt.Recipient.Name)
	}
	b.WriteString(evt.Message)
	fmt.Fprintf(&b, "\n\nTracking ID: %s\nTitle: %s\nCategory: %s\nPriority: %s\n", evt.TrackingID, evt.Title, evt.Category, evt.Priority)
	if evt.NewStatus != "" {
		fmt.Fprintf(&b, "Status: %s\n", humanStatus(evt.NewStatus))
	}
	return b.String()
}

func humanStatus(s models.GrievanceStatus) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// isBroadcast reports events addressed to a channel rather than a person.
func isBroadcast(evt models.NotificationEvent) bool {
	return evt.Recipient.IsZero()
}
