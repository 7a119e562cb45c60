package channel

import (
	"fmt"
	"sort"

	"github.com/samims/notify/internal/model"
)

// Registry maps each channel to its single enabled adapter. It is read-only after construction.
type Registry struct {
	adapters map[model.Channel]Adapter
}

// NewRegistry keeps only enabled adapters and rejects two enabled adapters for one channel
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	m := make(map[model.Channel]Adapter, len(adapters))
	for _, a := range adapters {
		if a == nil || !a.Enabled() {
			continue
		}
		ch := a.Channel()
		if _, dup := m[ch]; dup {
			return nil, fmt.Errorf("duplicate adapter registered for channel %s", ch)
		}
		m[ch] = a
	}
	return &Registry{adapters: m}, nil
}

func (r *Registry) Get(ch model.Channel) (Adapter, bool) {
	a, ok := r.adapters[ch]
	return a, ok
}

func (r *Registry) Supports(ch model.Channel) bool {
	_, ok := r.adapters[ch]
	return ok
}

// Supported lists the registered channels in name order
func (r *Registry) Supported() []model.Channel {
	out := make([]model.Channel, 0, len(r.adapters))
	for ch := range r.adapters {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
