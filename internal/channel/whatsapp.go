package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode"

	"golang.org/x/oauth2"

	"github.com/samims/notify/internal/config"
	"github.com/samims/notify/internal/model"
)

// WhatsAppAdapter sends text messages through the WhatsApp Cloud API
type WhatsAppAdapter struct {
	cfg    config.WhatsAppConfig
	client *http.Client
	logger *slog.Logger
}

// NewWhatsAppAdapter authenticates every request with the configured access token.
// httpClient, if set, is the transport the token client wraps.
func NewWhatsAppAdapter(cfg config.WhatsAppConfig, httpClient *http.Client, logger *slog.Logger) *WhatsAppAdapter {
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, defaultClient(httpClient))
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})
	return &WhatsAppAdapter{
		cfg:    cfg,
		client: oauth2.NewClient(ctx, src),
		logger: logger.With("layer", "channel", "component", "whatsapp_adapter"),
	}
}

func (a *WhatsAppAdapter) Channel() model.Channel { return model.ChannelWhatsApp }
func (a *WhatsAppAdapter) Enabled() bool          { return a.cfg.Enabled }

type waText struct {
	Body string `json:"body"`
}

type waRequest struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             waText `json:"text"`
}

func (a *WhatsAppAdapter) Send(ctx context.Context, p Payload) SendResult {
	endpoint := fmt.Sprintf("%s/%s/messages", strings.TrimRight(a.cfg.APIURL, "/"), a.cfg.PhoneNumberID)
	resp, err := postJSON(ctx, a.client, endpoint, waRequest{
		MessagingProduct: "whatsapp",
		To:               digitsOnly(p.Recipient),
		Type:             "text",
		Text:             waText{Body: p.Body},
	}, nil)
	if err != nil {
		a.logger.Warn("whatsapp send failed",
			slog.String("notification_id", p.NotificationID.String()), slog.Any("error", err))
		return Failure("WhatsApp send failed: %v", err)
	}
	if !resp.ok() {
		return Failure("WhatsApp API returned %d", resp.Status)
	}

	var body struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if json.Unmarshal(resp.Body, &body) == nil && len(body.Messages) > 0 && body.Messages[0].ID != "" {
		return Success(body.Messages[0].ID)
	}
	return Success(fallbackID("wa"))
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
