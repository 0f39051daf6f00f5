package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/monepiceriz/api/internal/metrics"
)

var (
	ErrQueueFull = errors.New("event queue full")
	ErrClosed    = errors.New("event dispatcher closed")
)

const defaultDeliveryTimeout = 5 * time.Second

// Dispatcher is an Emitter that queues events and fans them out to sinks on a
// background goroutine. Emit never waits for a sink.
type Dispatcher struct {
	queue   chan Event
	sinks   []Sink
	logger  *zap.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	mu        sync.RWMutex
	closed    bool
	abandoned int
	done      chan struct{}
}

type DispatcherOption func(*Dispatcher)

// WithDeliveryTimeout bounds each sink delivery.
func WithDeliveryTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(disp *Dispatcher) { disp.metrics = m }
}

func NewDispatcher(buffer int, logger *zap.Logger, sinks []Sink, opts ...DispatcherOption) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		queue:   make(chan Event, buffer),
		sinks:   sinks,
		logger:  logger,
		timeout: defaultDeliveryTimeout,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Emit queues e. A full or closed queue drops the event and returns an error
// the caller is expected to log.
func (d *Dispatcher) Emit(ctx context.Context, e Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.metrics.EventDropped()
		return ErrClosed
	}
	select {
	case d.queue <- e:
		return nil
	default:
		d.metrics.EventDropped()
		d.logger.Warn("event dropped", zap.String("event", e.Name), zap.Stringer("order_id", e.OrderID))
		return ErrQueueFull
	}
}

// Run delivers queued events until Close drains the queue. Cancelling ctx stops
// delivery at once: queued events are dropped and later Emits fail with ErrClosed.
// Servers should cancel ctx only after Close has returned.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	for {
		if ctx.Err() != nil {
			d.abandon()
			return
		}
		select {
		case e, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(e)
		case <-ctx.Done():
			d.abandon()
			return
		}
	}
}

// abandon closes the dispatcher without delivering what is still queued.
func (d *Dispatcher) abandon() {
	d.mu.Lock()
	d.closed = true
	pending := 0
drain:
	for {
		select {
		case e, ok := <-d.queue:
			if !ok {
				break drain
			}
			pending++
			d.metrics.EventDropped()
			d.logger.Warn("event dropped, dispatcher stopped", zap.String("event", e.Name), zap.Stringer("order_id", e.OrderID))
		default:
			break drain
		}
	}
	d.abandoned += pending
	d.mu.Unlock()
	d.logger.Warn("event dispatcher stopped before close", zap.Int("dropped", pending))
}

// Close stops accepting events and waits for Run to flush the queue or for ctx
// to end. It fails with ErrClosed if Run had already stopped with events undelivered.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.abandoned > 0 {
		return fmt.Errorf("%w: %d events undelivered", ErrClosed, d.abandoned)
	}
	return nil
}

func (d *Dispatcher) deliver(e Event) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := sink.Publish(ctx, e)
		cancel()
		if err != nil {
			d.metrics.EventSinkFailed(sink.Name())
			d.logger.Error("event delivery failed",
				zap.String("sink", sink.Name()),
				zap.String("event", e.Name),
				zap.String("event_id", e.ID),
				zap.Stringer("order_id", e.OrderID),
				zap.Error(err))
			continue
		}
		d.metrics.EventPublished(sink.Name())
	}
}
