package notifier

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/model"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/observability"
)

// ErrQueueFull is reported when a notification is dropped because every worker is busy
// and the buffer is exhausted.
var ErrQueueFull = errors.New("notification queue is full")

// DispatcherConfig sizes the worker pool.
type DispatcherConfig struct {
	Workers     int
	BufferSize  int
	SendTimeout time.Duration
}

// Dispatcher delivers notifications in the background. Dispatch never blocks the
// caller and never reports delivery failures back to it.
type Dispatcher struct {
	notifier Notifier
	reporter observability.Reporter
	logger   *zerolog.Logger
	timeout  time.Duration

	queue chan model.Notification
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	degraded atomic.Uint64
}

func NewDispatcher(
	cfg DispatcherConfig,
	notifier Notifier,
	reporter observability.Reporter,
	logger *zerolog.Logger,
) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}

	d := &Dispatcher{
		notifier: notifier,
		reporter: reporter,
		logger:   logger,
		timeout:  cfg.SendTimeout,
		queue:    make(chan model.Notification, cfg.BufferSize),
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.run()
	}

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for notification := range d.queue {
		d.deliver(notification)
	}
}

func (d *Dispatcher) deliver(notification model.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.notifier.Send(ctx, notification); err != nil {
		d.fail(notification, err)
		return
	}

	d.logger.Debug().Str("kind", string(notification.Kind)).Msg("notification delivered")
}

func (d *Dispatcher) fail(notification model.Notification, err error) {
	d.degraded.Add(1)

	// The recipient address is deliberately left out of logs and reports.
	d.logger.Error().Err(err).Str("kind", string(notification.Kind)).Msg("failed to deliver notification")
	if d.reporter != nil {
		d.reporter.Report(err, map[string]string{"notification_kind": string(notification.Kind)})
	}
}

// Dispatch enqueues a notification. The request context is not propagated to delivery
// since the request usually ends before the email is sent.
func (d *Dispatcher) Dispatch(_ context.Context, notification model.Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.fail(notification, errors.New("dispatcher is closed"))
		return
	}

	select {
	case d.queue <- notification:
	default:
		d.fail(notification, ErrQueueFull)
	}
}

// Degraded returns how many notifications were dropped or failed.
func (d *Dispatcher) Degraded() uint64 {
	return d.degraded.Load()
}

// Close stops accepting notifications and waits until queued ones are delivered or
// ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
