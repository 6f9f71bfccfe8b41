// Package bus implements the core's in-process message bus:
// per-recipient registration, broadcast, a bounded history ring, and
// per-correlation-id trace subscriptions. Handlers run on per-recipient
// worker goroutines, so a sender does not wait for a handler to finish; a
// sender does block while the recipient's 256-slot queue is full. The bus
// itself serializes appends under a lock.
package bus

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alphacouncil/core/internal/obslog"
)

const (
	// Broadcast is the reserved recipient name meaning "every registered
	// handler except the sender".
	Broadcast = "broadcast"
	// historyLimit bounds the in-memory ring of recent messages.
	historyLimit = 1000
)

var (
	busMetricsOnce sync.Once
	busMetrics     *busMetricSet
)

type busMetricSet struct {
	messages *prometheus.CounterVec
	dropped  *prometheus.CounterVec
}

func getBusMetrics() *busMetricSet {
	busMetricsOnce.Do(func() {
		busMetrics = &busMetricSet{
			messages: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "alphacouncil_bus_messages_total",
				Help: "Messages accepted by the bus, per subject and delivery mode.",
			}, []string{"subject", "delivery"}),
			dropped: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "alphacouncil_bus_dropped_total",
				Help: "Messages dropped because the recipient was not registered.",
			}, []string{"subject"}),
		}
	})
	return busMetrics
}

// Message is the bus's wire/log schema.
type Message struct {
	ID            uuid.UUID      `json:"id"`
	Sender        string         `json:"sender"`
	Recipient     string         `json:"recipient"`
	Subject       string         `json:"subject"`
	Payload       map[string]any `json:"payload"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// NewMessage builds a Message with a fresh ID and current timestamp.
func NewMessage(sender, recipient, subject string, payload map[string]any, correlationID string) Message {
	if payload == nil {
		payload = map[string]any{}
	}
	return Message{
		ID:            uuid.New(),
		Sender:        sender,
		Recipient:     recipient,
		Subject:       subject,
		Payload:       payload,
		CorrelationID: correlationID,
		Timestamp:     time.Now(),
	}
}

// Handler processes one delivered message. Handler invocations for a single
// (sender, recipient) pair happen in send order; across senders, order is
// unspecified.
type Handler func(msg Message)

type traceSub struct {
	id      int
	handler Handler
}

// Bus is the in-process pub/sub core. Zero value is not usable; use New.
type Bus struct {
	mu sync.Mutex

	handlers map[string]Handler
	// recipientQueues guarantees FIFO delivery per (sender, recipient)
	// pair by giving each recipient its own serial worker.
	recipientQueues map[string]chan func()

	history   []Message
	traceSubs map[string][]traceSub
	nextSubID int
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{
		handlers:        make(map[string]Handler),
		recipientQueues: make(map[string]chan func()),
		traceSubs:       make(map[string][]traceSub),
	}
}

// Register binds one handler to a recipient name. A second Register for the
// same name replaces the first (one handler per recipient).
func (b *Bus) Register(agentName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[agentName] = handler
	b.ensureQueueLocked(agentName)
}

// Unregister removes a recipient's handler.
func (b *Bus) Unregister(agentName string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, agentName)
}

func (b *Bus) ensureQueueLocked(name string) chan func() {
	q, ok := b.recipientQueues[name]
	if ok {
		return q
	}
	q = make(chan func(), 256)
	b.recipientQueues[name] = q
	go func() {
		for job := range q {
			job()
		}
	}()
	return q
}

// SubscribeTrace registers handler to be invoked (in addition to normal
// dispatch) for every message carrying the given correlation_id. Returns an
// unsubscribe function.
func (b *Bus) SubscribeTrace(correlationID string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextSubID
	b.nextSubID++
	b.traceSubs[correlationID] = append(b.traceSubs[correlationID], traceSub{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.traceSubs[correlationID]
		for i, s := range subs {
			if s.id == id {
				b.traceSubs[correlationID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(b.traceSubs[correlationID]) == 0 {
			delete(b.traceSubs, correlationID)
		}
	}
}

// Send appends msg to the bounded history, notifies trace subscribers, then
// dispatches to the recipient (or every handler but the sender, for
// broadcast). Dispatch is scheduled on the recipient's serial worker, so the
// caller does not wait for the handler to run and per-(sender,recipient) FIFO
// order is preserved. When that worker's 256-slot queue is full, Send blocks
// until the worker drains it.
func (b *Bus) Send(msg Message) error {
	log := obslog.NewBus()
	metrics := getBusMetrics()

	b.mu.Lock()
	b.history = append(b.history, msg)
	if len(b.history) > historyLimit {
		b.history = b.history[len(b.history)-historyLimit:]
	}

	var traceHandlers []Handler
	if msg.CorrelationID != "" {
		for _, s := range b.traceSubs[msg.CorrelationID] {
			traceHandlers = append(traceHandlers, s.handler)
		}
	}

	switch msg.Recipient {
	case Broadcast:
		metrics.messages.WithLabelValues(msg.Subject, "broadcast").Inc()
		for name, h := range b.handlers {
			if name == msg.Sender {
				continue
			}
			q := b.ensureQueueLocked(name)
			handler := h
			q <- func() { handler(msg) }
		}
	default:
		h, ok := b.handlers[msg.Recipient]
		if !ok {
			b.mu.Unlock()
			metrics.dropped.WithLabelValues(msg.Subject).Inc()
			log.Warn().Str("recipient", msg.Recipient).Str("subject", msg.Subject).Msg("dropping message: recipient not registered")
			b.notifyTrace(traceHandlers, msg)
			return fmt.Errorf("bus: recipient %q not registered", msg.Recipient)
		}
		metrics.messages.WithLabelValues(msg.Subject, "direct").Inc()
		q := b.ensureQueueLocked(msg.Recipient)
		q <- func() { h(msg) }
	}
	b.mu.Unlock()

	b.notifyTrace(traceHandlers, msg)
	return nil
}

func (b *Bus) notifyTrace(handlers []Handler, msg Message) {
	for _, h := range handlers {
		handler := h
		go handler(msg)
	}
}

// History returns every recorded message with the given correlation_id, in
// send order.
func (b *Bus) History(correlationID string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Message, 0, len(b.history))
	for _, m := range b.history {
		if m.CorrelationID == correlationID {
			out = append(out, m)
		}
	}
	return out
}
