package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"taxportal/internal/metrics"
)

const sendTimeout = 15 * time.Second

// Dispatcher queues messages and delivers them on a background worker.
type Dispatcher struct {
	senders []Sender
	queue   chan Message
	log     *slog.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewDispatcher starts the worker. size bounds the number of pending messages.
func NewDispatcher(senders []Sender, size int, log *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		senders: senders,
		queue:   make(chan Message, size),
		log:     log,
		metrics: m,
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Notify enqueues msg without blocking. When the queue is full the message is dropped.
func (d *Dispatcher) Notify(_ context.Context, msg Message) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("notification dropped", "reason", "dispatcher closed", "subject", msg.Subject)
		return
	}
	select {
	case d.queue <- msg:
	default:
		d.metrics.Notification("queue", "dropped")
		d.log.Warn("notification dropped", "reason", "queue full", "subject", msg.Subject)
	}
}

// Close stops accepting messages and waits until the queue is drained or ctx ends.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
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
	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg Message) {
	for _, s := range d.senders {
		if !s.Accepts(msg) {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := s.Send(ctx, msg)
		cancel()
		if err != nil {
			d.metrics.Notification(s.Channel(), "failed")
			d.log.Error("notification failed", "channel", s.Channel(), "subject", msg.Subject, "error", err)
			continue
		}
		d.metrics.Notification(s.Channel(), "sent")
		d.log.Debug("notification sent", "channel", s.Channel(), "subject", msg.Subject)
	}
}
