package model

// Recipient is an address paired with the channel it is reachable on
type Recipient struct {
	Channel Channel `json:"channel"`
	Address string  `json:"address"`
}

// NotificationRequest is the inbound ask to notify a set of recipients
type NotificationRequest struct {
	TemplateID string            `json:"template_id"`
	Channels   []Channel         `json:"channels"`
	Recipients []Recipient       `json:"recipients"`
	Variables  map[string]string `json:"variables,omitempty"`
	Priority   string            `json:"priority,omitempty"`
	Locale     string            `json:"locale,omitempty"`
}
