package alerts

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockledger/internal/domain/apperr"
	"github.com/mamadbah2/stockledger/internal/domain/models"
)

// Notifier delivers one notification. Implementations must honour ctx.
type Notifier interface {
	Send(ctx context.Context, n models.Notification) error
}

// Options tunes a Dispatcher.
type Options struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

// Dispatcher evaluates records after a committed mutation and delivers the
// resulting notifications on background workers. Delivery is attempted once;
// failures are logged and never reach the caller.
type Dispatcher struct {
	notifier Notifier
	opts     Options
	logger   *zap.Logger

	queue     chan models.Notification
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
}

// NewDispatcher wires a dispatcher. Call Start before use and Close on shutdown.
func NewDispatcher(notifier Notifier, opts Options, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}

	return &Dispatcher{
		notifier: notifier,
		opts:     opts,
		logger:   logger,
		queue:    make(chan models.Notification, opts.QueueSize),
	}
}

// Start launches the delivery workers.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.logger.Info("starting alert dispatcher", zap.Int("workers", d.opts.Workers), zap.Int("queue", d.opts.QueueSize))
		for i := 0; i < d.opts.Workers; i++ {
			d.wg.Add(1)
			go d.work()
		}
	})
}

// Check evaluates rec and enqueues any notifications. It never blocks: when
// the queue is full the notification is dropped and logged.
func (d *Dispatcher) Check(rec models.InventoryRecord) {
	for _, n := range Evaluate(rec) {
		d.Enqueue(n)
	}
}

// Enqueue queues a notification for delivery and reports whether it was accepted.
func (d *Dispatcher) Enqueue(n models.Notification) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("alert dropped after shutdown", zap.String("sku", n.SKU), zap.String("kind", string(n.Kind)))
		return false
	}

	select {
	case d.queue <- n:
		return true
	default:
		d.logger.Error("alert queue full, dropping notification", zap.String("sku", n.SKU), zap.String("kind", string(n.Kind)))
		return false
	}
}

// Close stops accepting notifications and waits for queued ones to drain or
// for ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	d.Start()

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

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n models.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.SendTimeout)
	defer cancel()

	if err := d.notifier.Send(ctx, n); err != nil {
		err = apperr.Delivery("send alert", err)
		if errors.Is(err, context.DeadlineExceeded) {
			err = errors.Join(apperr.ErrTimeout, err)
		}
		d.logger.Error("alert delivery failed",
			zap.String("sku", n.SKU),
			zap.String("kind", string(n.Kind)),
			zap.Error(err))
		return
	}

	d.logger.Info("alert delivered", zap.String("sku", n.SKU), zap.String("kind", string(n.Kind)))
}
