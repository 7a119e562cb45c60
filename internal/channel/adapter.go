package channel

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/samims/notify/internal/model"
)

// Adapter performs the external send for one channel type.
// Send never panics outward and reports every outcome as a SendResult.
type Adapter interface {
	Channel() model.Channel
	Enabled() bool
	Send(ctx context.Context, p Payload) SendResult
}

// Payload is what an adapter needs to deliver one message.
// RetryCount is informational and must not suppress delivery.
type Payload struct {
	NotificationID uuid.UUID
	Channel        model.Channel
	Recipient      string
	Subject        string
	Body           string
	RetryCount     int
}

func PayloadFromEvent(e model.DispatchEvent) Payload {
	return Payload{
		NotificationID: e.NotificationID,
		Channel:        e.Channel,
		Recipient:      e.Recipient,
		Subject:        e.Subject,
		Body:           e.Body,
		RetryCount:     e.RetryCount,
	}
}

func PayloadFromRecord(n model.Notification) Payload {
	return PayloadFromEvent(model.NewDispatchEvent(n))
}

// SendResult is either a success carrying the provider's id or a failure message
type SendResult struct {
	OK         bool
	ExternalID string
	Error      string
}

func Success(externalID string) SendResult {
	return SendResult{OK: true, ExternalID: externalID}
}

func Failure(format string, a ...any) SendResult {
	return SendResult{Error: fmt.Sprintf(format, a...)}
}

// fallbackID is used when a provider accepts a message without returning an id
func fallbackID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
