package service

import (
	"context"

	"github.com/samims/notify/internal/metrics"
	"github.com/samims/notify/internal/model"
)

// Delivery path names reported by Dispatcher.Path
const (
	PathQueue  = "queue"
	PathDirect = "direct"
)

// Publisher hands dispatch events to the broker, keyed by notification id
type Publisher interface {
	Publish(ctx context.Context, ev model.DispatchEvent) error
}

// Dispatcher hands one persisted record to a delivery path
type Dispatcher interface {
	Dispatch(ctx context.Context, rec model.Notification) error
	Path() string
}

type queueDispatcher struct {
	publisher Publisher
}

// NewQueueDispatcher publishes a snapshot of each record for the delivery worker
func NewQueueDispatcher(p Publisher) Dispatcher {
	return &queueDispatcher{publisher: p}
}

func (d *queueDispatcher) Dispatch(ctx context.Context, rec model.Notification) error {
	err := d.publisher.Publish(ctx, model.NewDispatchEvent(rec))
	countDispatch(d.Path(), err)
	return err
}

func (d *queueDispatcher) Path() string { return PathQueue }

func countDispatch(path string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.Dispatches.WithLabelValues(path, result).Inc()
}
