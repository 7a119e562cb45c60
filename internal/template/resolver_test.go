package template

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErr "github.com/samims/notify/internal/errors"
	"github.com/samims/notify/internal/model"
	"github.com/samims/notify/internal/store"
)

func strPtr(s string) *string { return &s }

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		vars map[string]string
		want string
	}{
		{name: "single variable", tmpl: "Hi ${name}", vars: map[string]string{"name": "Ann"}, want: "Hi Ann"},
		{name: "missing variable", tmpl: "Hi ${name}", vars: map[string]string{}, want: "Hi "},
		{name: "nil map", tmpl: "Hi ${name}", vars: nil, want: "Hi "},
		{name: "repeated", tmpl: "${a}-${a}-${b}", vars: map[string]string{"a": "x", "b": "y"}, want: "x-x-y"},
		{name: "no placeholders", tmpl: "plain text", vars: map[string]string{"a": "x"}, want: "plain text"},
		{name: "empty template", tmpl: "", vars: map[string]string{"a": "x"}, want: ""},
		{name: "value is not re-expanded", tmpl: "${a}", vars: map[string]string{"a": "${b}", "b": "nope"}, want: "${b}"},
		{name: "unterminated placeholder", tmpl: "cost ${amount", vars: map[string]string{"amount": "5"}, want: "cost ${amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Substitute(tt.tmpl, tt.vars))
		})
	}
}

func seededStore(t *testing.T) store.TemplateStorage {
	t.Helper()
	ctx := context.Background()
	ts := store.NewMemoryTemplateStorage()
	for _, tmpl := range []model.Template{
		{ID: "welcome", ChannelType: model.ChannelEmail, SubjectTemplate: strPtr("Hi ${name}"), BodyTemplate: "Welcome ${name}", Active: true},
		{ID: "welcome", Locale: "fr", ChannelType: model.ChannelEmail, SubjectTemplate: strPtr("Salut ${name}"), BodyTemplate: "Bienvenue ${name}", Active: true},
		{ID: "otp", ChannelType: model.ChannelSMS, BodyTemplate: "Code ${code}", Active: true},
		{ID: "retired", ChannelType: model.ChannelSMS, BodyTemplate: "gone", Active: false},
	} {
		require.NoError(t, ts.Upsert(ctx, tmpl))
	}
	return ts
}

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver(seededStore(t), time.Minute, slog.Default())

	tests := []struct {
		name       string
		templateID string
		channel    model.Channel
		locale     string
		vars       map[string]string
		want       Resolved
		wantErr    error
	}{
		{
			name:       "exact locale",
			templateID: "welcome", channel: model.ChannelEmail, locale: "fr",
			vars: map[string]string{"name": "Ann"},
			want: Resolved{Subject: "Salut Ann", Body: "Bienvenue Ann"},
		},
		{
			name:       "falls back to default row",
			templateID: "welcome", channel: model.ChannelEmail, locale: "de",
			vars: map[string]string{"name": "Ann"},
			want: Resolved{Subject: "Hi Ann", Body: "Welcome Ann"},
		},
		{
			name:       "empty locale uses default",
			templateID: "welcome", channel: model.ChannelEmail,
			vars: map[string]string{},
			want: Resolved{Subject: "Hi ", Body: "Welcome "},
		},
		{
			name:       "no subject template",
			templateID: "otp", channel: model.ChannelSMS,
			vars: map[string]string{"code": "1234"},
			want: Resolved{Body: "Code 1234"},
		},
		{
			name:       "channel mismatch",
			templateID: "welcome", channel: model.ChannelSMS,
			wantErr: appErr.ErrTemplateChannelMismatch,
		},
		{
			name:       "inactive template",
			templateID: "retired", channel: model.ChannelSMS,
			wantErr: appErr.ErrTemplateNotFound,
		},
		{
			name:       "unknown template",
			templateID: "missing", channel: model.ChannelEmail,
			wantErr: appErr.ErrTemplateNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), tt.templateID, tt.channel, tt.locale, tt.vars)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_CacheDoesNotLeakVariables(t *testing.T) {
	r := NewResolver(seededStore(t), time.Minute, slog.Default())
	ctx := context.Background()

	first, err := r.Resolve(ctx, "otp", model.ChannelSMS, "en", map[string]string{"code": "1111"})
	require.NoError(t, err)
	second, err := r.Resolve(ctx, "otp", model.ChannelSMS, "en", map[string]string{"code": "2222"})
	require.NoError(t, err)

	assert.Equal(t, "Code 1111", first.Body)
	assert.Equal(t, "Code 2222", second.Body)
}

func TestResolver_SaveInvalidatesCache(t *testing.T) {
	ts := seededStore(t)
	r := NewResolver(ts, time.Hour, slog.Default())
	ctx := context.Background()

	got, err := r.Resolve(ctx, "otp", model.ChannelSMS, "en", map[string]string{"code": "1"})
	require.NoError(t, err)
	assert.Equal(t, "Code 1", got.Body)

	// a write that bypasses the resolver is not seen until the entry expires
	require.NoError(t, ts.Upsert(ctx, model.Template{ID: "otp", ChannelType: model.ChannelSMS, BodyTemplate: "Stale ${code}", Active: true}))
	got, err = r.Resolve(ctx, "otp", model.ChannelSMS, "en", map[string]string{"code": "1"})
	require.NoError(t, err)
	assert.Equal(t, "Code 1", got.Body)

	require.NoError(t, r.Save(ctx, model.Template{ID: "otp", ChannelType: model.ChannelSMS, BodyTemplate: "Your code: ${code}", Active: true}))
	got, err = r.Resolve(ctx, "otp", model.ChannelSMS, "en", map[string]string{"code": "1"})
	require.NoError(t, err)
	assert.Equal(t, "Your code: 1", got.Body)
}

func TestResolver_CacheExpires(t *testing.T) {
	ts := seededStore(t)
	rr := NewResolver(ts, time.Minute, slog.Default()).(*resolver)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rr.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := rr.Resolve(ctx, "otp", model.ChannelSMS, "en", nil)
	require.NoError(t, err)
	require.NoError(t, ts.Upsert(ctx, model.Template{ID: "otp", ChannelType: model.ChannelSMS, BodyTemplate: "New ${code}", Active: true}))

	now = now.Add(2 * time.Minute)
	got, err := rr.Resolve(ctx, "otp", model.ChannelSMS, "en", map[string]string{"code": "9"})
	require.NoError(t, err)
	assert.Equal(t, "New 9", got.Body)
}

func TestResolver_SaveValidates(t *testing.T) {
	r := NewResolver(store.NewMemoryTemplateStorage(), time.Minute, slog.Default())

	err := r.Save(context.Background(), model.Template{ChannelType: model.ChannelSMS, BodyTemplate: "x"})
	assert.True(t, appErr.IsInvalidRequest(err))

	err = r.Save(context.Background(), model.Template{ID: "a", ChannelType: "FAX", BodyTemplate: "x"})
	assert.True(t, appErr.IsInvalidRequest(err))
}

func TestResolver_SeedingThroughSaveRefreshesCache(t *testing.T) {
	ts := seededStore(t)
	r := NewResolver(ts, time.Hour, slog.Default())
	ctx := context.Background()

	got, err := r.Resolve(ctx, "otp", model.ChannelSMS, "en", map[string]string{"code": "7"})
	require.NoError(t, err)
	assert.Equal(t, "Code 7", got.Body)

	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
templates:
  - id: otp
    channel_type: SMS
    body_template: "Your one-time code is ${code}"
`), 0o600))
	n, err := store.SeedTemplates(ctx, r.Save, path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err = r.Resolve(ctx, "otp", model.ChannelSMS, "en", map[string]string{"code": "7"})
	require.NoError(t, err)
	assert.Equal(t, "Your one-time code is 7", got.Body)
}
