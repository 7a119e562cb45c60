package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appErr "github.com/samims/notify/internal/errors"
	"github.com/samims/notify/internal/idempotency"
	"github.com/samims/notify/internal/model"
	"github.com/samims/notify/internal/service"
)

const validBody = `{"template_id":"welcome","channels":["email"],"recipients":[{"channel":"EMAIL","address":"a@example.com"}],"variables":{"name":"Ann"}}`

func newTestRouter(h *NotificationHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/v1/notifications", h.Create)
	r.Get("/api/v1/notifications/{id}", h.Get)
	return r
}

func post(t *testing.T, router http.Handler, body, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestNotificationHandler_Create(t *testing.T) {
	id := uuid.New()
	accepted := []model.Notification{{ID: id, Channel: model.ChannelEmail, Recipient: "a@example.com", Status: model.StatusAccepted}}

	tests := []struct {
		name       string
		body       string
		setup      func(m *service.MockNotificationService)
		wantStatus int
		wantBody   string
	}{
		{
			name: "accepted",
			body: validBody,
			setup: func(m *service.MockNotificationService) {
				m.On("Accept", mock.Anything, mock.MatchedBy(func(req model.NotificationRequest) bool {
					return req.Channels[0] == model.ChannelEmail && req.Variables["name"] == "Ann"
				})).Return(accepted, nil)
			},
			wantStatus: http.StatusAccepted,
			wantBody:   "ACCEPTED",
		},
		{
			name:       "malformed json",
			body:       `{"template_id":`,
			setup:      func(*service.MockNotificationService) {},
			wantStatus: http.StatusBadRequest,
			wantBody:   "INVALID",
		},
		{
			name: "invalid request",
			body: validBody,
			setup: func(m *service.MockNotificationService) {
				m.On("Accept", mock.Anything, mock.Anything).
					Return(nil, appErr.NewInvalidRequest("no recipients match requested channels"))
			},
			wantStatus: http.StatusBadRequest,
			wantBody:   "no recipients match requested channels",
		},
		{
			name: "internal error",
			body: validBody,
			setup: func(m *service.MockNotificationService) {
				m.On("Accept", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   "ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := service.NewMockNotificationService(t)
			tt.setup(svc)
			router := newTestRouter(NewNotificationHandler(svc, nil, slog.Default()))

			rec := post(t, router, tt.body, "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.NotContains(t, rec.Body.String(), "db down")
		})
	}
}

func TestNotificationHandler_CreateResponseShape(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	svc := service.NewMockNotificationService(t)
	svc.On("Accept", mock.Anything, mock.Anything).Return([]model.Notification{
		{ID: first, Channel: model.ChannelEmail, Recipient: "a@example.com", Status: model.StatusAccepted},
		{ID: second, Channel: model.ChannelSMS, Recipient: "+1555", Status: model.StatusPending},
	}, nil)
	router := newTestRouter(NewNotificationHandler(svc, nil, slog.Default()))

	rec := post(t, router, validBody, "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body acceptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.NotificationID)
	assert.Equal(t, first, *body.NotificationID)
	assert.Equal(t, "ACCEPTED", body.Status)
	require.Len(t, body.Notifications, 2)
	assert.Equal(t, "SMS", body.Notifications[1].Channel)
	assert.Equal(t, "PENDING", body.Notifications[1].Status)
}

func TestNotificationHandler_CreateIdempotent(t *testing.T) {
	svc := service.NewMockNotificationService(t)
	svc.On("Accept", mock.Anything, mock.Anything).
		Return([]model.Notification{{ID: uuid.New(), Channel: model.ChannelEmail, Status: model.StatusAccepted}}, nil).
		Once()
	router := newTestRouter(NewNotificationHandler(svc, idempotency.NewMemoryStore(time.Minute), slog.Default()))

	first := post(t, router, validBody, "req-1")
	require.Equal(t, http.StatusAccepted, first.Code)

	second := post(t, router, validBody, "req-1")
	assert.Equal(t, http.StatusAccepted, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(replayedHeader))
}

func TestNotificationHandler_ServerErrorsAreNotReplayed(t *testing.T) {
	svc := service.NewMockNotificationService(t)
	svc.On("Accept", mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()
	svc.On("Accept", mock.Anything, mock.Anything).
		Return([]model.Notification{{ID: uuid.New(), Channel: model.ChannelEmail, Status: model.StatusAccepted}}, nil).
		Once()
	router := newTestRouter(NewNotificationHandler(svc, idempotency.NewMemoryStore(time.Minute), slog.Default()))

	assert.Equal(t, http.StatusInternalServerError, post(t, router, validBody, "req-2").Code)
	assert.Equal(t, http.StatusAccepted, post(t, router, validBody, "req-2").Code)
}

func TestNotificationHandler_Get(t *testing.T) {
	id := uuid.New()
	sentAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		path       string
		setup      func(m *service.MockNotificationService)
		wantStatus int
		wantBody   string
	}{
		{
			name: "found",
			path: "/api/v1/notifications/" + id.String(),
			setup: func(m *service.MockNotificationService) {
				m.On("Get", mock.Anything, id).Return(&model.Notification{
					ID: id, Channel: model.ChannelSMS, Recipient: "+1555", Status: model.StatusSent, SentAt: &sentAt,
				}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   `"status":"SENT"`,
		},
		{
			name: "not found",
			path: "/api/v1/notifications/" + id.String(),
			setup: func(m *service.MockNotificationService) {
				m.On("Get", mock.Anything, id).Return(nil, appErr.NewNotFound("id %s", id))
			},
			wantStatus: http.StatusNotFound,
			wantBody:   "notification not found",
		},
		{
			name:       "bad id",
			path:       "/api/v1/notifications/not-a-uuid",
			setup:      func(*service.MockNotificationService) {},
			wantStatus: http.StatusBadRequest,
			wantBody:   "invalid notification id",
		},
		{
			name: "store error",
			path: "/api/v1/notifications/" + id.String(),
			setup: func(m *service.MockNotificationService) {
				m.On("Get", mock.Anything, id).Return(nil, errors.New("connection reset"))
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := service.NewMockNotificationService(t)
			tt.setup(svc)
			router := newTestRouter(NewNotificationHandler(svc, nil, slog.Default()))

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}
