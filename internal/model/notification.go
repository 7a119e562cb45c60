package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Channel is the delivery medium for a notification
type Channel string

const (
	ChannelEmail    Channel = "EMAIL"
	ChannelSMS      Channel = "SMS"
	ChannelPush     Channel = "PUSH"
	ChannelWhatsApp Channel = "WHATSAPP"
)

// Channels lists every channel the service knows about
var Channels = []Channel{ChannelEmail, ChannelSMS, ChannelPush, ChannelWhatsApp}

// Valid reports whether c is one of the known channels
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelWhatsApp:
		return true
	}
	return false
}

// ParseChannel is case-insensitive
func ParseChannel(s string) (Channel, error) {
	c := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown channel %q", s)
	}
	return c, nil
}

// Status is the delivery state of a notification
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusSent     Status = "SENT"
	StatusFailed   Status = "FAILED"
)

// IsTerminal reports whether no further transition is allowed out of s
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed
}

// DefaultPriority is applied when a request does not carry one
const DefaultPriority = "NORMAL"

// Notification is the durable delivery record for one (template, channel, recipient) triple.
// Subject and Body are resolved once at creation and never re-rendered on retry.
type Notification struct {
	ID           uuid.UUID         `json:"id"`
	TemplateID   string            `json:"template_id"`
	Channel      Channel           `json:"channel"`
	Recipient    string            `json:"recipient"`
	Variables    map[string]string `json:"variables,omitempty"`
	Priority     string            `json:"priority"`
	Status       Status            `json:"status"`
	Subject      string            `json:"subject,omitempty"`
	Body         string            `json:"body"`
	RetryCount   int               `json:"retry_count"`
	ExternalID   string            `json:"external_id,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
}

// Clone returns a deep copy so callers can hand records across goroutines
func (n Notification) Clone() Notification {
	out := n
	if n.Variables != nil {
		out.Variables = make(map[string]string, len(n.Variables))
		for k, v := range n.Variables {
			out.Variables[k] = v
		}
	}
	if n.SentAt != nil {
		t := *n.SentAt
		out.SentAt = &t
	}
	return out
}
