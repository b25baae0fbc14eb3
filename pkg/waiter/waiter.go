// Package waiter blocks the calling goroutine until a channel is ready, or
// reports a would-block signal immediately in non-blocking mode.
package waiter

import (
	"context"
	"fmt"
	"time"

	"github.com/backkem/ossl/pkg/channel"
	"github.com/pion/logging"
	"github.com/pion/transport/v3/deadline"
)

// Config configures a Waiter.
type Config struct {
	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Waiter waits for channel readiness. The zero deadline means blocking
// waits only end on readiness or context cancellation.
type Waiter struct {
	deadline *deadline.Deadline
	log      logging.LeveledLogger
}

// New creates a Waiter.
func New(config Config) *Waiter {
	w := &Waiter{
		deadline: deadline.New(),
	}
	if config.LoggerFactory != nil {
		w.log = config.LoggerFactory.NewLogger("waiter")
	}
	return w
}

// SetDeadline bounds all later blocking waits. A zero value disables it.
func (w *Waiter) SetDeadline(t time.Time) {
	w.deadline.Set(t)
}

// Wait returns the ready subset of interest.
//
// In non-blocking mode it never suspends: when nothing is ready it returns
// ErrWouldBlockRead or ErrWouldBlockWrite. With both interests requested
// and neither ready it reports a read block.
//
// In blocking mode it suspends until at least one condition is ready, ctx
// is done (ErrInterrupted), or the deadline passes (ErrTimeout). The
// channel registration is cancelled on every return path.
func (w *Waiter) Wait(ctx context.Context, ch channel.Channel, interest channel.Interest, blocking bool) (channel.Interest, error) {
	if ready := ch.Ready(interest); ready != 0 {
		return ready, nil
	}

	if !blocking {
		if interest.Has(channel.Readable) {
			return 0, ErrWouldBlockRead
		}
		return 0, ErrWouldBlockWrite
	}

	reg := ch.Register(interest)
	defer reg.Cancel()

	if w.log != nil {
		w.log.Tracef("waiting for %s on %s", interest, ch.RemoteAddr())
	}

	for {
		if ready := ch.Ready(interest); ready != 0 {
			return ready, nil
		}
		select {
		case <-reg.C():
		case <-ctx.Done():
			return 0, fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err())
		case <-w.deadline.Done():
			return 0, ErrTimeout
		}
	}
}
