package notifier

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/rl1809/fund-engine/internal/core/domain"
	"github.com/rl1809/fund-engine/internal/port"
)

var _ port.EventPublisher = (*Dispatcher)(nil)

type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	// Backoff is the delay before the second attempt; it doubles per retry.
	Backoff time.Duration
	Timeout time.Duration
}

// Dispatcher delivers committed events to a Notifier from a bounded queue.
// Publish never blocks: when the queue is full the event is dropped and counted.
// Delivery failures are logged and never reach the operation that produced the event.
type Dispatcher struct {
	sink   port.Notifier
	cfg    DispatcherConfig
	logger *slog.Logger

	// ctx bounds every delivery attempt and is cancelled when Close gives up.
	ctx    context.Context
	cancel context.CancelFunc

	queue   chan domain.Event
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	failed  atomic.Int64
}

func NewDispatcher(sink port.Notifier, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		sink:   sink,
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		queue:  make(chan domain.Event, cfg.QueueSize),
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.workerLoop(id)
		}(i)
	}
	d.logger.Info("notification workers started", "workers", d.cfg.Workers)
}

func (d *Dispatcher) Publish(event domain.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(event, "dispatcher closed")
		return
	}
	select {
	case d.queue <- event:
	default:
		d.drop(event, "queue full")
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
// When ctx ends first, in-flight attempts are cancelled, whatever is still
// queued is counted as failed, and ctx.Err() is returned.
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
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

// Dropped returns how many events were never queued.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Failed returns how many events exhausted their attempts.
func (d *Dispatcher) Failed() int64 { return d.failed.Load() }

func (d *Dispatcher) drop(event domain.Event, reason string) {
	d.dropped.Add(1)
	d.logger.Warn("notification dropped",
		"reason", reason,
		"account_id", event.AccountID,
		"event_type", event.Type,
		"transaction_id", event.Payload.TransactionID,
	)
}

func (d *Dispatcher) workerLoop(id int) {
	for event := range d.queue {
		d.deliver(id, event)
	}
}

func (d *Dispatcher) deliver(id int, event domain.Event) {
	if d.ctx.Err() != nil {
		d.fail(id, 0, event, d.ctx.Err())
		return
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.cfg.Backoff
	policy.Multiplier = 2
	policy.RandomizationFactor = 0

	attempts := 0
	_, err := backoff.Retry(d.ctx, func() (struct{}, error) {
		attempts++
		ctx, cancel := context.WithTimeout(d.ctx, d.cfg.Timeout)
		defer cancel()
		return struct{}{}, d.sink.Notify(ctx, event)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(d.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			d.logger.Warn("notification retry",
				"worker", id,
				"attempt", attempts,
				"next_in", next,
				"transaction_id", event.Payload.TransactionID,
				"error", err,
			)
		}),
	)
	if err != nil {
		d.fail(id, attempts, event, err)
		return
	}

	d.logger.Debug("notification delivered",
		"worker", id,
		"attempt", attempts,
		"transaction_id", event.Payload.TransactionID,
	)
}

func (d *Dispatcher) fail(id, attempts int, event domain.Event, err error) {
	d.failed.Add(1)
	d.logger.Error("notification failed",
		"worker", id,
		"attempts", attempts,
		"account_id", event.AccountID,
		"event_type", event.Type,
		"transaction_id", event.Payload.TransactionID,
		"error", err,
	)
}
