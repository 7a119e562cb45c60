package channel

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/samims/notify/internal/config"
	"github.com/samims/notify/internal/model"
)

const defaultPushTitle = "Notification"

// PushAdapter sends through the FCM legacy HTTP endpoint. The recipient is a device token.
type PushAdapter struct {
	cfg    config.PushConfig
	client *http.Client
	logger *slog.Logger
}

func NewPushAdapter(cfg config.PushConfig, httpClient *http.Client, logger *slog.Logger) *PushAdapter {
	return &PushAdapter{
		cfg:    cfg,
		client: defaultClient(httpClient),
		logger: logger.With("layer", "channel", "component", "push_adapter"),
	}
}

func (a *PushAdapter) Channel() model.Channel { return model.ChannelPush }
func (a *PushAdapter) Enabled() bool          { return a.cfg.Enabled }

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmRequest struct {
	To           string          `json:"to"`
	Notification fcmNotification `json:"notification"`
}

type fcmResponse struct {
	MessageID string `json:"message_id"`
	Failure   int    `json:"failure"`
	Results   []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

func (a *PushAdapter) Send(ctx context.Context, p Payload) SendResult {
	title := p.Subject
	if title == "" {
		title = defaultPushTitle
	}
	header := http.Header{}
	header.Set("Authorization", "key="+a.cfg.ServerKey)

	resp, err := postJSON(ctx, a.client, a.cfg.APIURL, fcmRequest{
		To:           p.Recipient,
		Notification: fcmNotification{Title: title, Body: p.Body},
	}, header)
	if err != nil {
		a.logger.Warn("push send failed",
			slog.String("notification_id", p.NotificationID.String()), slog.Any("error", err))
		return Failure("Push send failed: %v", err)
	}
	if !resp.ok() {
		return Failure("FCM API returned %d", resp.Status)
	}

	var body fcmResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return Success(fallbackID("push"))
	}
	if len(body.Results) > 0 {
		if body.Results[0].Error != "" {
			return Failure("FCM rejected message: %s", body.Results[0].Error)
		}
		if body.Results[0].MessageID != "" {
			return Success(body.Results[0].MessageID)
		}
	}
	if body.MessageID != "" {
		return Success(body.MessageID)
	}
	return Success(fallbackID("push"))
}
