package model

import "github.com/google/uuid"

// DispatchEvent is the point-in-time snapshot that drives one delivery attempt.
// It travels through the broker as JSON, keyed by NotificationID.
type DispatchEvent struct {
	NotificationID uuid.UUID `json:"notification_id"`
	Channel        Channel   `json:"channel"`
	Recipient      string    `json:"recipient"`
	Subject        string    `json:"subject,omitempty"`
	Body           string    `json:"body"`
	RetryCount     int       `json:"retry_count"`
}

// NewDispatchEvent snapshots a record
func NewDispatchEvent(n Notification) DispatchEvent {
	return DispatchEvent{
		NotificationID: n.ID,
		Channel:        n.Channel,
		Recipient:      n.Recipient,
		Subject:        n.Subject,
		Body:           n.Body,
		RetryCount:     n.RetryCount,
	}
}
