package template

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	appErr "github.com/samims/notify/internal/errors"
	"github.com/samims/notify/internal/model"
	"github.com/samims/notify/internal/store"
)

// Resolved is the rendered content for one delivery
type Resolved struct {
	Subject string
	Body    string
}

// Resolver turns a template id into channel content
type Resolver interface {
	Resolve(ctx context.Context, templateID string, channel model.Channel, locale string, vars map[string]string) (Resolved, error)
	// Save writes a definition and drops cached lookups for its id
	Save(ctx context.Context, t model.Template) error
	Invalidate(templateID string)
}

type cacheKey struct {
	templateID string
	channel    model.Channel
	locale     string
}

type cacheEntry struct {
	tmpl    model.Template
	expires time.Time
}

type resolver struct {
	store  store.TemplateStorage
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	cache map[cacheKey]cacheEntry
}

// NewResolver returns a Resolver reading from ts. A ttl of zero disables caching.
func NewResolver(ts store.TemplateStorage, ttl time.Duration, logger *slog.Logger) Resolver {
	return &resolver{
		store:  ts,
		logger: logger.With("layer", "template", "component", "resolver"),
		ttl:    ttl,
		now:    time.Now,
		cache:  make(map[cacheKey]cacheEntry),
	}
}

func (r *resolver) Resolve(ctx context.Context, templateID string, channel model.Channel, locale string, vars map[string]string) (Resolved, error) {
	if locale == "" {
		locale = model.DefaultLocale
	}
	key := cacheKey{templateID: templateID, channel: channel, locale: locale}

	tmpl, ok := r.cached(key)
	if !ok {
		found, err := r.lookup(ctx, templateID, locale)
		if err != nil {
			return Resolved{}, err
		}
		tmpl = *found
		r.remember(key, tmpl)
	}

	if tmpl.ChannelType != channel {
		return Resolved{}, fmt.Errorf("%w: template %s targets %s, requested %s",
			appErr.ErrTemplateChannelMismatch, templateID, tmpl.ChannelType, channel)
	}

	out := Resolved{Body: Substitute(tmpl.BodyTemplate, vars)}
	if tmpl.SubjectTemplate != nil {
		out.Subject = Substitute(*tmpl.SubjectTemplate, vars)
	}
	return out, nil
}

// lookup tries the exact locale first, then the template's default row
func (r *resolver) lookup(ctx context.Context, templateID, locale string) (*model.Template, error) {
	t, err := r.store.FindActive(ctx, templateID, locale)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, appErr.ErrTemplateNotFound) {
		return nil, err
	}

	r.logger.Debug("locale not found, using default",
		slog.String("template_id", templateID), slog.String("locale", locale))
	return r.store.FindDefault(ctx, templateID)
}

func (r *resolver) cached(key cacheKey) (model.Template, bool) {
	if r.ttl <= 0 {
		return model.Template{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.cache[key]
	if !ok || r.now().After(e.expires) {
		return model.Template{}, false
	}
	return e.tmpl, true
}

func (r *resolver) remember(key cacheKey, t model.Template) {
	if r.ttl <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[key] = cacheEntry{tmpl: t, expires: r.now().Add(r.ttl)}
}

func (r *resolver) Save(ctx context.Context, t model.Template) error {
	if strings.TrimSpace(t.ID) == "" {
		return appErr.NewInvalidRequest("template id is required")
	}
	if !t.ChannelType.Valid() {
		return appErr.NewInvalidRequest("unknown channel %q", t.ChannelType)
	}
	if err := r.store.Upsert(ctx, t); err != nil {
		return err
	}
	r.Invalidate(t.ID)
	return nil
}

func (r *resolver) Invalidate(templateID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.cache {
		if k.templateID == templateID {
			delete(r.cache, k)
		}
	}
}
