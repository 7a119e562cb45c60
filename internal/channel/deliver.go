package channel

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/samims/notify/internal/metrics"
)

// Deliver calls a.Send bounded by timeout. A panic inside the adapter or an
// expired deadline both come back as a Failure.
func Deliver(ctx context.Context, a Adapter, p Payload, timeout time.Duration) SendResult {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	done := make(chan SendResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Failure("%s adapter panicked: %v", a.Channel(), r)
			}
		}()
		done <- a.Send(ctx, p)
	}()

	var res SendResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = Failure("%s send aborted: %v", a.Channel(), ctx.Err())
	}

	outcome := "success"
	if !res.OK {
		outcome = "failure"
	}
	metrics.AdapterLatency.WithLabelValues(string(a.Channel()), outcome).Observe(time.Since(start).Seconds())
	return res
}

// SendAsync runs Deliver on its own goroutine and returns the eventual result
func SendAsync(ctx context.Context, a Adapter, p Payload, timeout time.Duration) <-chan SendResult {
	out := make(chan SendResult, 1)
	go func() {
		out <- Deliver(ctx, a, p, timeout)
	}()
	return out
}

type guarded struct {
	Adapter
	timeout time.Duration
	limiter *rate.Limiter
}

// Guard wraps an adapter so every Send is rate limited and bounded by timeout.
// A ratePerSec of zero or less disables limiting.
func Guard(a Adapter, timeout time.Duration, ratePerSec float64) Adapter {
	g := &guarded{Adapter: a, timeout: timeout}
	if ratePerSec > 0 {
		burst := int(ratePerSec)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	}
	return g
}

func (g *guarded) Send(ctx context.Context, p Payload) SendResult {
	if g.limiter != nil {
		waitCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			waitCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		if err := g.limiter.Wait(waitCtx); err != nil {
			return Failure("%s rate limit: %v", g.Channel(), err)
		}
	}
	return Deliver(ctx, g.Adapter, p, g.timeout)
}
