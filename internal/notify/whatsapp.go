package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/noah-isme/backend-freight/internal/events"
)

// WhatsAppNotifier pushes short status messages through a WhatsApp business
// API gateway.
type WhatsAppNotifier struct {
	BaseURL string
	APIKey  string
	Enabled bool
	HTTP    *http.Client
}

// Notify implements the events.Notifier interface.
func (n WhatsAppNotifier) Notify(ctx context.Context, event events.Event) error {
	if !n.Enabled || n.BaseURL == "" {
		return nil
	}
	payload := map[string]any{}
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			countNotification("whatsapp", "error")
			return fmt.Errorf("whatsapp notify: decode payload: %w", err)
		}
	}
	phone := extractPhone(payload)
	if phone == "" {
		return nil
	}
	body, err := json.Marshal(map[string]string{
		"to":   phone,
		"text": bodyFor(event.Topic, payload, event.OccurredAt),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(n.BaseURL, "/")+"/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.APIKey)
	}
	client := n.HTTP
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		countNotification("whatsapp", "error")
		return fmt.Errorf("whatsapp notify: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		countNotification("whatsapp", "error")
		return fmt.Errorf("whatsapp notify: unexpected status %d", resp.StatusCode)
	}
	countNotification("whatsapp", "ok")
	return nil
}

func extractPhone(payload map[string]any) string {
	keys := []string{"phone", "customerPhone", "customer_phone"}
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
