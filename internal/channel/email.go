package channel

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mrz1836/postmark"

	"github.com/samims/notify/internal/config"
	"github.com/samims/notify/internal/model"
)

const defaultSubject = "(No subject)"

// EmailAdapter sends through the Postmark transactional API
type EmailAdapter struct {
	client  *postmark.Client
	from    string
	enabled bool
	logger  *slog.Logger
}

// NewEmailAdapter builds the adapter. httpClient may be nil.
func NewEmailAdapter(cfg config.EmailConfig, httpClient *http.Client, logger *slog.Logger) *EmailAdapter {
	client := postmark.NewClient(cfg.ServerToken, cfg.AccountToken)
	client.HTTPClient = defaultClient(httpClient)
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}
	return &EmailAdapter{
		client:  client,
		from:    cfg.From,
		enabled: cfg.Enabled,
		logger:  logger.With("layer", "channel", "component", "email_adapter"),
	}
}

func (a *EmailAdapter) Channel() model.Channel { return model.ChannelEmail }
func (a *EmailAdapter) Enabled() bool          { return a.enabled }

func (a *EmailAdapter) Send(ctx context.Context, p Payload) SendResult {
	subject := p.Subject
	if subject == "" {
		subject = defaultSubject
	}

	resp, err := a.client.SendEmail(ctx, postmark.Email{
		From:     a.from,
		To:       p.Recipient,
		Subject:  subject,
		TextBody: p.Body,
		Tag:      "notification",
	})
	if err != nil {
		a.logger.Warn("email send failed",
			slog.String("notification_id", p.NotificationID.String()), slog.Any("error", err))
		return Failure("Postmark send failed: %v", err)
	}
	if resp.ErrorCode > 0 {
		return Failure("Postmark API returned %d: %s", resp.ErrorCode, resp.Message)
	}

	id := resp.MessageID
	if id == "" {
		id = fallbackID("email")
	}
	a.logger.Debug("email sent",
		slog.String("notification_id", p.NotificationID.String()), slog.String("external_id", id))
	return Success(id)
}
