package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/samims/notify/internal/model"
)

// acceptResponse is the body of POST /api/v1/notifications
type acceptResponse struct {
	NotificationID *uuid.UUID  `json:"notification_id"`
	Status         string      `json:"status"`
	Error          string      `json:"error,omitempty"`
	Notifications  []statusDTO `json:"notifications,omitempty"`
}

// statusDTO is the public view of one delivery record
type statusDTO struct {
	NotificationID uuid.UUID  `json:"notification_id"`
	Status         string     `json:"status"`
	Channel        string     `json:"channel"`
	Recipient      string     `json:"recipient"`
	RetryCount     int        `json:"retry_count"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
}

func toStatusDTO(n model.Notification) statusDTO {
	return statusDTO{
		NotificationID: n.ID,
		Status:         string(n.Status),
		Channel:        string(n.Channel),
		Recipient:      n.Recipient,
		RetryCount:     n.RetryCount,
		SentAt:         n.SentAt,
		ErrorMessage:   n.ErrorMessage,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
