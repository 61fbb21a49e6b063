package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/backend-freight/internal/common"
	"github.com/noah-isme/backend-freight/internal/events"
	"github.com/noah-isme/backend-freight/internal/obs"
)

// EmailNotifier sends transactional emails for selected topics.
type EmailNotifier struct {
	Mail         common.EmailSender
	Enabled      bool
	From         string
	TopicToggles map[string]bool
}

// Notify implements the events.Notifier interface.
func (n EmailNotifier) Notify(_ context.Context, event events.Event) error {
	if !n.Enabled || n.Mail == nil {
		return nil
	}
	if n.TopicToggles != nil {
		if enabled, ok := n.TopicToggles[event.Topic]; ok && !enabled {
			return nil
		}
	}
	payload := map[string]any{}
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			countNotification("email", "error")
			return fmt.Errorf("email notify: decode payload: %w", err)
		}
	}
	to := extractRecipient(payload)
	if to == "" {
		return nil
	}
	if err := n.Mail.Send(to, subjectFor(event.Topic), bodyFor(event.Topic, payload, event.OccurredAt)); err != nil {
		countNotification("email", "error")
		return err
	}
	countNotification("email", "ok")
	return nil
}

func extractRecipient(payload map[string]any) string {
	keys := []string{"email", "recipient", "customerEmail", "customer_email"}
	for _, key := range keys {
		if val, ok := payload[key]; ok {
			if s, ok := val.(string); ok {
				s = strings.TrimSpace(s)
				if s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func subjectFor(topic string) string {
	switch topic {
	case events.TopicShipmentCreated:
		return "Shipment received"
	case events.TopicShipmentQuoted:
		return "Your shipping quote is ready"
	case events.TopicInvoiceIssued:
		return "Your invoice is ready"
	case events.TopicPaymentIntentCreated:
		return "Complete your payment"
	case events.TopicPaymentConfirmed:
		return "Payment received"
	case events.TopicShipmentStatusChanged:
		return "Shipment status update"
	default:
		return fmt.Sprintf("Notification %s", topic)
	}
}

func bodyFor(topic string, payload map[string]any, occurred time.Time) string {
	summary := fmt.Sprintf("Event %s occurred at %s.", topic, occurred.Format(time.RFC3339))
	if shipmentID, ok := payload["shipment_id"].(string); ok && shipmentID != "" {
		summary += fmt.Sprintf("\nShipment: %s", shipmentID)
	}
	if number, ok := payload["number"].(string); ok && number != "" {
		summary += fmt.Sprintf("\nInvoice: %s", number)
	}
	if note, ok := payload["message"].(string); ok && note != "" {
		summary += "\n" + note
	}
	return summary
}

func countNotification(channel, result string) {
	if obs.NotificationTotal != nil {
		obs.NotificationTotal.WithLabelValues(channel, result).Inc()
	}
}
