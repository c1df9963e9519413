package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrDispatcherClosed is returned by Close when called twice
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Notification is one accepted-order message on its way to a sink
type Notification struct {
	EventID   uuid.UUID
	OrderID   int64
	Text      string
	CreatedAt time.Time
}

// Sink delivers a notification to an external channel
type Sink interface {
	Send(ctx context.Context, n Notification) error
}

// Dispatcher decouples order placement from the sink: Notify only enqueues,
// and a single worker delivers messages in order. Delivery failures are logged
// and dropped.
type Dispatcher struct {
	sink    Sink
	timeout time.Duration
	logger  *slog.Logger

	queue chan Notification
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the delivery worker
func NewDispatcher(sink Sink, queueSize int, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	d := &Dispatcher{
		sink:    sink,
		timeout: timeout,
		logger:  logger,
		queue:   make(chan Notification, queueSize),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Notify enqueues text for delivery without blocking. It reports false when the
// message was dropped because the queue is full or the dispatcher is closed.
func (d *Dispatcher) Notify(orderID int64, text string) bool {
	n := Notification{
		EventID:   uuid.New(),
		OrderID:   orderID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("notification dropped, dispatcher closed", "order_id", orderID)
		return false
	}

	select {
	case d.queue <- n:
		return true
	default:
		d.logger.Warn("notification dropped, queue full", "order_id", orderID, "event_id", n.EventID)
		return false
	}
}

// Close stops accepting notifications and waits for the queue to drain, or
// for ctx to expire
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	if err := d.sink.Send(ctx, n); err != nil {
		d.logger.Error("failed to deliver order notification",
			"order_id", n.OrderID,
			"event_id", n.EventID,
			"error", err,
		)
		return
	}
	d.logger.Info("order notification delivered",
		"order_id", n.OrderID,
		"event_id", n.EventID,
		"duration", time.Since(start),
	)
}
