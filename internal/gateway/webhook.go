package gateway

import (
	"encoding/json"
	"strings"
)

// paid status codes the gateway is known to emit on confirmation.
var paidStatusCodes = map[string]struct{}{
	"paid":      {},
	"approved":  {},
	"confirmed": {},
	"completed": {},
}

// WebhookEvent is the asynchronous payment notification pushed by the gateway.
type WebhookEvent struct {
	EventType     string          `json:"event_type"`
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
	Raw           json.RawMessage `json:"-"` // Full payload as received, kept for audit.
}

// ParseWebhook decodes a webhook body, preserving the raw payload.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if errDecode := json.Unmarshal(body, &event); errDecode != nil {
		return nil, errDecode
	}
	raw := make(json.RawMessage, len(body))
	copy(raw, body)
	event.Raw = raw
	return &event, nil
}

// IsPaid reports whether the event signals a confirmed payment.
// Any other event type or status is acknowledged and ignored.
func (e *WebhookEvent) IsPaid() bool {
	if e == nil {
		return false
	}
	if eventType := strings.ToLower(strings.TrimSpace(e.EventType)); eventType != "" && eventType != "payment" && eventType != "pix.payment" {
		return false
	}
	_, ok := paidStatusCodes[strings.ToLower(strings.TrimSpace(e.Status))]
	return ok
}
