package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/samims/notify/internal/channel"
	appErr "github.com/samims/notify/internal/errors"
	"github.com/samims/notify/internal/model"
	"github.com/samims/notify/internal/store"
	"github.com/samims/notify/internal/template"
)

func strPtr(s string) *string { return &s }

func newResolver(t *testing.T) template.Resolver {
	t.Helper()
	ts := store.NewMemoryTemplateStorage()
	ctx := context.Background()
	for _, tmpl := range []model.Template{
		{ID: "welcome", ChannelType: model.ChannelEmail, SubjectTemplate: strPtr("Hi ${name}"), BodyTemplate: "Welcome ${name}", Active: true},
		{ID: "otp", ChannelType: model.ChannelSMS, BodyTemplate: "Code ${code}", Active: true},
	} {
		require.NoError(t, ts.Upsert(ctx, tmpl))
	}
	return template.NewResolver(ts, time.Minute, slog.Default())
}

func TestNotificationService_Accept(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStorage()
	pub := NewMockPublisher(t)
	pub.On("Publish", mock.Anything, mock.AnythingOfType("model.DispatchEvent")).Return(nil).Times(2)

	svc := NewNotificationService(st, newResolver(t), NewQueueDispatcher(pub), slog.Default())

	got, err := svc.Accept(ctx, model.NotificationRequest{
		TemplateID: "welcome",
		Channels:   []model.Channel{model.ChannelEmail},
		Recipients: []model.Recipient{
			{Channel: model.ChannelEmail, Address: "ann@example.com"},
			{Channel: model.ChannelEmail, Address: "bob@example.com"},
			{Channel: model.ChannelSMS, Address: "+15550001111"},
		},
		Variables: map[string]string{"name": "Ann"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2, "the SMS recipient is not paired with a requested channel")

	for _, rec := range got {
		assert.Equal(t, model.StatusAccepted, rec.Status)
		assert.Equal(t, model.DefaultPriority, rec.Priority)
		assert.Equal(t, "Hi Ann", rec.Subject)
		assert.Equal(t, "Welcome Ann", rec.Body)
		assert.Equal(t, 0, rec.RetryCount)

		stored, err := st.FindByID(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusAccepted, stored.Status)
	}
	assert.NotEqual(t, got[0].ID, got[1].ID)

	ev := pub.Calls[0].Arguments.Get(1).(model.DispatchEvent)
	assert.Equal(t, got[0].ID, ev.NotificationID)
	assert.Equal(t, "Welcome Ann", ev.Body)
}

func TestNotificationService_AcceptMultiChannel(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStorage()
	pub := NewMockPublisher(t)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil).Times(3)
	svc := NewNotificationService(st, newResolver(t), NewQueueDispatcher(pub), slog.Default())

	_, err := svc.Accept(ctx, model.NotificationRequest{
		TemplateID: "otp",
		Channels:   []model.Channel{model.ChannelSMS, model.ChannelSMS},
		Recipients: []model.Recipient{
			{Channel: model.ChannelSMS, Address: "+1"},
			{Channel: model.ChannelSMS, Address: "+2"},
			{Channel: model.ChannelSMS, Address: "+3"},
		},
		Variables: map[string]string{"code": "42"},
	})
	require.NoError(t, err)

	accepted, err := st.FindByStatus(ctx, model.StatusAccepted)
	require.NoError(t, err)
	assert.Len(t, accepted, 3, "a repeated channel does not duplicate records")
}

func TestNotificationService_AcceptRejects(t *testing.T) {
	tests := []struct {
		name    string
		req     model.NotificationRequest
		wantErr error
	}{
		{
			name:    "missing template id",
			req:     model.NotificationRequest{Channels: []model.Channel{model.ChannelEmail}, Recipients: []model.Recipient{{Channel: model.ChannelEmail, Address: "a@b.c"}}},
			wantErr: appErr.ErrInvalidRequest,
		},
		{
			name:    "no channels",
			req:     model.NotificationRequest{TemplateID: "welcome", Recipients: []model.Recipient{{Channel: model.ChannelEmail, Address: "a@b.c"}}},
			wantErr: appErr.ErrInvalidRequest,
		},
		{
			name:    "no recipients",
			req:     model.NotificationRequest{TemplateID: "welcome", Channels: []model.Channel{model.ChannelEmail}},
			wantErr: appErr.ErrInvalidRequest,
		},
		{
			name:    "unknown channel",
			req:     model.NotificationRequest{TemplateID: "welcome", Channels: []model.Channel{"FAX"}, Recipients: []model.Recipient{{Channel: model.ChannelEmail, Address: "a@b.c"}}},
			wantErr: appErr.ErrInvalidRequest,
		},
		{
			name:    "blank address",
			req:     model.NotificationRequest{TemplateID: "welcome", Channels: []model.Channel{model.ChannelEmail}, Recipients: []model.Recipient{{Channel: model.ChannelEmail, Address: " "}}},
			wantErr: appErr.ErrInvalidRequest,
		},
		{
			name:    "no matching pairs",
			req:     model.NotificationRequest{TemplateID: "welcome", Channels: []model.Channel{model.ChannelEmail}, Recipients: []model.Recipient{{Channel: model.ChannelSMS, Address: "+1"}}},
			wantErr: appErr.ErrInvalidRequest,
		},
		{
			name:    "unknown template",
			req:     model.NotificationRequest{TemplateID: "missing", Channels: []model.Channel{model.ChannelEmail}, Recipients: []model.Recipient{{Channel: model.ChannelEmail, Address: "a@b.c"}}},
			wantErr: appErr.ErrTemplateNotFound,
		},
		{
			name: "template channel mismatch on second channel",
			req: model.NotificationRequest{
				TemplateID: "welcome",
				Channels:   []model.Channel{model.ChannelEmail, model.ChannelSMS},
				Recipients: []model.Recipient{
					{Channel: model.ChannelEmail, Address: "a@b.c"},
					{Channel: model.ChannelSMS, Address: "+1"},
				},
			},
			wantErr: appErr.ErrTemplateChannelMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := store.NewMemoryStorage()
			pub := NewMockPublisher(t)
			svc := NewNotificationService(st, newResolver(t), NewQueueDispatcher(pub), slog.Default())

			got, err := svc.Accept(ctx, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, appErr.IsInvalidRequest(err))
			assert.Nil(t, got)

			pending, err := st.FindByStatus(ctx, model.StatusPending)
			require.NoError(t, err)
			assert.Empty(t, pending, "a rejected request leaves no records")
			pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
		})
	}
}

func TestNotificationService_PublishFailureLeavesPending(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStorage()
	pub := NewMockPublisher(t)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

	svc := NewNotificationService(st, newResolver(t), NewQueueDispatcher(pub), slog.Default())
	got, err := svc.Accept(ctx, model.NotificationRequest{
		TemplateID: "otp",
		Channels:   []model.Channel{model.ChannelSMS},
		Recipients: []model.Recipient{{Channel: model.ChannelSMS, Address: "+1"}, {Channel: model.ChannelSMS, Address: "+2"}},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, model.StatusPending, got[0].Status)
	assert.Equal(t, model.StatusAccepted, got[1].Status)

	first, err := st.FindByID(ctx, got[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, first.Status)
}

func TestNotificationService_StoreFailure(t *testing.T) {
	ctx := context.Background()
	st := store.NewMockNotificationStorage(t)
	st.On("SaveAll", mock.Anything, mock.Anything).Return(errors.New("db down"))
	pub := NewMockPublisher(t)

	svc := NewNotificationService(st, newResolver(t), NewQueueDispatcher(pub), slog.Default())
	_, err := svc.Accept(ctx, model.NotificationRequest{
		TemplateID: "otp",
		Channels:   []model.Channel{model.ChannelSMS},
		Recipients: []model.Recipient{{Channel: model.ChannelSMS, Address: "+1"}},
	})
	require.Error(t, err)
	assert.False(t, appErr.IsInvalidRequest(err))
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestNotificationService_MarkAcceptedFailure(t *testing.T) {
	ctx := context.Background()
	st := store.NewMockNotificationStorage(t)
	st.On("SaveAll", mock.Anything, mock.Anything).Return(nil)
	st.On("MarkAccepted", mock.Anything, mock.Anything).Return(0, errors.New("db down"))
	pub := NewMockPublisher(t)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

	svc := NewNotificationService(st, newResolver(t), NewQueueDispatcher(pub), slog.Default())
	_, err := svc.Accept(ctx, model.NotificationRequest{
		TemplateID: "otp",
		Channels:   []model.Channel{model.ChannelSMS},
		Recipients: []model.Recipient{{Channel: model.ChannelSMS, Address: "+1"}},
	})
	assert.ErrorContains(t, err, "mark accepted")
}

func TestNotificationService_Get(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStorage()
	rec := model.Notification{ID: uuid.New(), Channel: model.ChannelSMS, Status: model.StatusPending}
	require.NoError(t, st.Save(ctx, &rec))

	svc := NewNotificationService(st, newResolver(t), NewQueueDispatcher(NewMockPublisher(t)), slog.Default())
	got, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	_, err = svc.Get(ctx, uuid.New())
	assert.True(t, appErr.IsNotFound(err))
}

type publishFunc func(ctx context.Context, ev model.DispatchEvent) error

func (f publishFunc) Publish(ctx context.Context, ev model.DispatchEvent) error { return f(ctx, ev) }

func TestNotificationService_FastWorkerRetryStaysSweepable(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStorage()

	adapter := smsAdapter(t)
	adapter.On("Send", mock.Anything, mock.Anything).Return(channel.Failure("provider 503")).Once()

	var (
		worker    DeliveryWorker
		publishes int
		swept     []model.DispatchEvent
	)
	pub := publishFunc(func(ctx context.Context, ev model.DispatchEvent) error {
		publishes++
		switch publishes {
		case 1:
			// the consumer handles the event before Accept marks it
			return worker.Handle(ctx, ev)
		case 2:
			return errors.New("broker down")
		default:
			swept = append(swept, ev)
			return nil
		}
	})
	worker = NewDeliveryWorker(st, registryOf(t, adapter), pub, 3, slog.Default())

	svc := NewNotificationService(st, newResolver(t), NewQueueDispatcher(pub), slog.Default())
	got, err := svc.Accept(ctx, model.NotificationRequest{
		TemplateID: "otp",
		Channels:   []model.Channel{model.ChannelSMS},
		Recipients: []model.Recipient{{Channel: model.ChannelSMS, Address: "+1"}},
		Variables:  map[string]string{"code": "42"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.StatusPending, got[0].Status)
	assert.Equal(t, 1, got[0].RetryCount)

	stored, err := st.FindByID(ctx, got[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)
	assert.Equal(t, "provider 503", stored.ErrorMessage)

	sw := NewSweeper(st, NewQueueDispatcher(pub), time.Minute, time.Minute, 1, slog.Default()).(*sweeper)
	sw.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }
	require.NoError(t, sw.processBatch(ctx))

	require.Len(t, swept, 1)
	assert.Equal(t, got[0].ID, swept[0].NotificationID)
	assert.Equal(t, 1, swept[0].RetryCount)
}
