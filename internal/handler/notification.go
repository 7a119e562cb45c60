package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	appErr "github.com/samims/notify/internal/errors"
	"github.com/samims/notify/internal/idempotency"
	"github.com/samims/notify/internal/model"
	"github.com/samims/notify/internal/service"
	"github.com/samims/notify/pkg/tracing"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
	maxBodyBytes         = 1 << 20
)

type NotificationHandler struct {
	svc    service.NotificationService
	idem   idempotency.Store
	tracer *tracing.Tracer
	logger *slog.Logger
}

// NewNotificationHandler builds the notification API. idem may be nil to
// ignore Idempotency-Key headers.
func NewNotificationHandler(svc service.NotificationService, idem idempotency.Store, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		svc:    svc,
		idem:   idem,
		tracer: tracing.GetTracer("notification-handler"),
		logger: logger.With("layer", "handler", "component", "notification_handler"),
	}
}

// Create accepts a notification request and returns 202 once every record is persisted
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.StartServerSpan(r.Context(), "CreateNotification")
	defer span.End()

	key := r.Header.Get(IdempotencyKeyHeader)
	if key != "" && h.idem != nil {
		prev, ok, err := h.idem.Get(ctx, key)
		if err != nil {
			h.logger.WarnContext(ctx, "Idempotency lookup failed", slog.Any("error", err))
		} else if ok {
			h.logger.InfoContext(ctx, "Replaying response for idempotency key", slog.String("key", key))
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(replayedHeader, "true")
			w.WriteHeader(prev.Status)
			_, _ = w.Write(prev.Body)
			return
		}
	}

	var req model.NotificationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "Invalid request body for Create", slog.Any("error", err))
		h.respond(w, r, key, http.StatusBadRequest, acceptResponse{Status: "INVALID", Error: "invalid request body"})
		return
	}
	normalizeChannels(&req)

	created, err := h.svc.Accept(ctx, req)
	if err != nil {
		if appErr.IsInvalidRequest(err) {
			h.logger.WarnContext(ctx, "Rejected notification request",
				slog.String("template_id", req.TemplateID), slog.Any("error", err))
			h.respond(w, r, key, http.StatusBadRequest, acceptResponse{Status: "INVALID", Error: err.Error()})
			return
		}
		h.tracer.RecordError(span, err)
		h.logger.ErrorContext(ctx, "Create failed", slog.String("template_id", req.TemplateID), slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, acceptResponse{Status: "ERROR"})
		return
	}

	dtos := make([]statusDTO, len(created))
	for i, n := range created {
		dtos[i] = toStatusDTO(n)
	}
	first := created[0].ID
	h.respond(w, r, key, http.StatusAccepted, acceptResponse{
		NotificationID: &first,
		Status:         string(model.StatusAccepted),
		Notifications:  dtos,
	})
}

// Get returns the delivery status of one record
func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.StartServerSpan(r.Context(), "GetNotification")
	defer span.End()

	rawID := chi.URLParam(r, "id")
	id, err := uuid.Parse(rawID)
	if err != nil {
		http.Error(w, "invalid notification id", http.StatusBadRequest)
		return
	}

	n, err := h.svc.Get(ctx, id)
	if err != nil {
		if appErr.IsNotFound(err) {
			h.logger.WarnContext(ctx, "Notification not found", "id", rawID)
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.tracer.RecordError(span, err)
		h.logger.ErrorContext(ctx, "Get failed", "id", rawID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toStatusDTO(*n))
}

// respond writes body and remembers it under key. Server errors are never stored.
func (h *NotificationHandler) respond(w http.ResponseWriter, r *http.Request, key string, status int, body acceptResponse) {
	raw, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	if key != "" && h.idem != nil {
		if err := h.idem.Save(r.Context(), key, idempotency.Response{Status: status, Body: raw}); err != nil {
			h.logger.WarnContext(r.Context(), "Failed to store idempotent response", slog.Any("error", err))
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

// normalizeChannels accepts channel names in any case
func normalizeChannels(req *model.NotificationRequest) {
	for i, ch := range req.Channels {
		if parsed, err := model.ParseChannel(string(ch)); err == nil {
			req.Channels[i] = parsed
		}
	}
	for i, rcpt := range req.Recipients {
		if parsed, err := model.ParseChannel(string(rcpt.Channel)); err == nil {
			req.Recipients[i].Channel = parsed
		}
	}
}
