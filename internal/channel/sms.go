package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/samims/notify/internal/config"
	"github.com/samims/notify/internal/model"
)

// SMSAdapter sends through a Twilio-compatible messages endpoint
type SMSAdapter struct {
	cfg    config.SMSConfig
	client *http.Client
	logger *slog.Logger
}

func NewSMSAdapter(cfg config.SMSConfig, httpClient *http.Client, logger *slog.Logger) *SMSAdapter {
	return &SMSAdapter{
		cfg:    cfg,
		client: defaultClient(httpClient),
		logger: logger.With("layer", "channel", "component", "sms_adapter"),
	}
}

func (a *SMSAdapter) Channel() model.Channel { return model.ChannelSMS }
func (a *SMSAdapter) Enabled() bool          { return a.cfg.Enabled }

func (a *SMSAdapter) Send(ctx context.Context, p Payload) SendResult {
	endpoint := fmt.Sprintf("%s/%s/Messages.json", strings.TrimRight(a.cfg.APIURL, "/"), a.cfg.AccountSID)
	form := url.Values{}
	form.Set("To", p.Recipient)
	form.Set("From", a.cfg.FromNumber)
	form.Set("Body", p.Body)

	resp, err := postForm(ctx, a.client, endpoint, form, a.cfg.AccountSID, a.cfg.AuthToken)
	if err != nil {
		a.logger.Warn("sms send failed",
			slog.String("notification_id", p.NotificationID.String()), slog.Any("error", err))
		return Failure("SMS send failed: %v", err)
	}
	if !resp.ok() {
		return Failure("SMS API returned %d", resp.Status)
	}

	var body struct {
		SID string `json:"sid"`
	}
	id := ""
	if json.Unmarshal(resp.Body, &body) == nil {
		id = body.SID
	}
	if id == "" {
		id = fallbackID("sms")
	}
	return Success(id)
}
