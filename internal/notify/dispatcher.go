package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"techwire-be/internal/logger"
	"techwire-be/internal/retry"

	"go.uber.org/zap"
)

// ErrNoRecipients is permanent; the dispatcher does not retry it.
var ErrNoRecipients = errors.New("no notification recipients")

// Publisher is what domain services depend on. Dispatch must return
// immediately; delivery happens elsewhere.
type Publisher interface {
	Dispatch(ctx context.Context, e Event)
}

// Dispatcher delivers events to each notifier on its own goroutine with a
// per-delivery timeout and bounded retry. Failures and panics are logged and
// never reach the caller.
type Dispatcher struct {
	notifiers []Notifier
	timeout   time.Duration
	retry     retry.Config
	wg        sync.WaitGroup
}

func NewDispatcher(timeout time.Duration, attempts int, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		timeout:   timeout,
		retry: retry.Config{
			MaxAttempts: attempts,
			Backoff:     retry.ExponentialBackoff(200 * time.Millisecond),
			ShouldRetry: func(err error) bool { return !errors.Is(err, ErrNoRecipients) },
		},
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	// Detach from the request so a finished response does not cancel delivery.
	base := context.WithoutCancel(ctx)
	for _, n := range d.notifiers {
		d.wg.Add(1)
		go d.deliver(base, n, e)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notifier, e Event) {
	defer d.wg.Done()

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "notify"),
		zap.String("kind", string(e.Kind)),
		zap.String("notifier", fmt.Sprintf("%T", n)),
	)
	defer func() {
		if p := recover(); p != nil {
			log.Error("notifier panicked", zap.Any("panic", p))
		}
	}()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	err := retry.Do(ctx, d.retry, func(ctx context.Context) error {
		return n.Notify(ctx, e)
	})
	if err != nil {
		log.Warn("notification not delivered", zap.String("order_id", e.OrderID), zap.Error(err))
		return
	}
	log.Debug("notification delivered", zap.String("order_id", e.OrderID))
}

// Wait blocks until in-flight deliveries finish. Used on shutdown and in tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
