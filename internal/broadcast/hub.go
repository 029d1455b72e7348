package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/streamroom/internal/adapter/metrics"
	"github.com/pscheid92/streamroom/internal/domain"
)

const (
	DefaultBufferSize = 64

	commandBuffer = 256
	stopTimeout   = 10 * time.Second
)

// ErrHubStopped is returned by Subscribe and Publish after Stop.
var ErrHubStopped = errors.New("hub stopped")

// Subscription is one observer's view of the event stream. Events is closed
// when the subscriber is evicted, unsubscribed, or the hub stops.
type Subscription struct {
	id     uuid.UUID
	events chan domain.Event
}

func (s *Subscription) ID() uuid.UUID { return s.id }

func (s *Subscription) Events() <-chan domain.Event { return s.events }

type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type subscribeCmd struct {
	baseHubCmd
	reply chan *Subscription
}

type unsubscribeCmd struct {
	baseHubCmd
	id uuid.UUID
}

type publishCmd struct {
	baseHubCmd
	event domain.Event
	done  chan struct{}
}

type countCmd struct {
	baseHubCmd
	reply chan int
}

type stopCmd struct {
	baseHubCmd
}

// Hub fans domain events out to every subscriber. It implements domain.EventPublisher.
type Hub struct {
	cmdCh       chan hubCmd
	done        chan struct{}
	stopOnce    sync.Once
	clock       clockwork.Clock
	metrics     *metrics.HubMetrics
	bufferSize  int
	stopTimeout time.Duration

	// owned by the run goroutine
	subscribers map[uuid.UUID]*Subscription
}

var _ domain.EventPublisher = (*Hub)(nil)

// NewHub starts a hub whose subscribers each buffer up to bufferSize events.
// m may be nil.
func NewHub(bufferSize int, clock clockwork.Clock, m *metrics.HubMetrics) *Hub {
	if bufferSize < 1 {
		bufferSize = DefaultBufferSize
	}
	h := &Hub{
		cmdCh:       make(chan hubCmd, commandBuffer),
		done:        make(chan struct{}),
		clock:       clock,
		metrics:     m,
		bufferSize:  bufferSize,
		stopTimeout: stopTimeout,
		subscribers: make(map[uuid.UUID]*Subscription),
	}
	go h.run()
	return h
}

// send delivers a command unless the hub has stopped.
func (h *Hub) send(cmd hubCmd) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.cmdCh <- cmd:
		return true
	case <-h.done:
		return false
	}
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() (*Subscription, error) {
	reply := make(chan *Subscription, 1)
	if !h.send(subscribeCmd{reply: reply}) {
		return nil, ErrHubStopped
	}
	select {
	case sub := <-reply:
		return sub, nil
	case <-h.done:
		return nil, ErrHubStopped
	}
}

// Unsubscribe removes sub and closes its channel. Safe to call more than once,
// after eviction, and after Stop.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.send(unsubscribeCmd{id: sub.id})
}

// Publish enqueues event to every current subscriber. It returns once the
// event has been handed to every queue, never waiting on a subscriber.
func (h *Hub) Publish(ctx context.Context, event domain.Event) error {
	done := make(chan struct{})
	if !h.send(publishCmd{event: event, done: done}) {
		return ErrHubStopped
	}
	select {
	case <-done:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", event.Kind, ctx.Err())
	}
}

// SubscriberCount returns the number of live subscribers, or 0 after Stop.
func (h *Hub) SubscriberCount() int {
	reply := make(chan int, 1)
	if !h.send(countCmd{reply: reply}) {
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-h.done:
		return 0
	}
}

// Stop closes every subscription and ends the hub goroutine.
// Blocks until the goroutine has exited or the stop timeout passes.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		select {
		case h.cmdCh <- stopCmd{}:
		case <-h.done:
			return
		}

		timeout := h.clock.NewTimer(h.stopTimeout)
		defer timeout.Stop()

		select {
		case <-h.done:
			slog.Info("Hub stopped gracefully")
		case <-timeout.Chan():
			slog.Warn("Hub stop timeout exceeded", "timeout", h.stopTimeout)
			if h.metrics != nil {
				h.metrics.StopTimeouts.Inc()
			}
		}
	})
}

func (h *Hub) run() {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Hub panic recovered", "panic", r)
			h.closeAll()
		}
	}()

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case subscribeCmd:
			c.reply <- h.handleSubscribe()
		case unsubscribeCmd:
			h.remove(c.id)
		case publishCmd:
			h.handlePublish(c.event)
			close(c.done)
		case countCmd:
			c.reply <- len(h.subscribers)
		case stopCmd:
			slog.Info("Hub shutting down", "subscribers", len(h.subscribers))
			h.closeAll()
			return
		default:
			slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleSubscribe() *Subscription {
	sub := &Subscription{
		id:     uuid.New(),
		events: make(chan domain.Event, h.bufferSize),
	}
	h.subscribers[sub.id] = sub
	h.updateGauge()
	slog.Debug("Subscriber added", "subscription_id", sub.id.String(), "total", len(h.subscribers))
	return sub
}

func (h *Hub) remove(id uuid.UUID) {
	sub, ok := h.subscribers[id]
	if !ok {
		return
	}
	close(sub.events)
	delete(h.subscribers, id)
	h.updateGauge()
	slog.Debug("Subscriber removed", "subscription_id", id.String(), "remaining", len(h.subscribers))
}

func (h *Hub) handlePublish(event domain.Event) {
	start := h.clock.Now()

	var slow []uuid.UUID
	for id, sub := range h.subscribers {
		select {
		case sub.events <- event:
		default:
			slow = append(slow, id)
		}
	}

	for _, id := range slow {
		slog.Warn("Disconnecting slow subscriber", "subscription_id", id.String(), "event", event.Kind)
		if h.metrics != nil {
			h.metrics.Evictions.Inc()
		}
		h.remove(id)
	}

	if h.metrics != nil {
		h.metrics.EventsPublished.WithLabelValues(string(event.Kind)).Inc()
		h.metrics.FanOutDuration.Observe(h.clock.Since(start).Seconds())
	}
}

func (h *Hub) closeAll() {
	for id, sub := range h.subscribers {
		close(sub.events)
		delete(h.subscribers, id)
	}
	h.updateGauge()
}

func (h *Hub) updateGauge() {
	if h.metrics != nil {
		h.metrics.Subscribers.Set(float64(len(h.subscribers)))
	}
}
