// Package realtime fans out change events to connected clients. Events are
// delivered per topic to bounded subscriber buffers; a subscriber that cannot
// keep up is dropped instead of stalling the publisher.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/anihangout/hangout/internal/domain"
	"github.com/anihangout/hangout/internal/metrics"
	"github.com/sirupsen/logrus"
)

const DefaultBufferSize = 64

type Event struct {
	Type    string    `json:"type"`
	Topic   string    `json:"topic"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// Forwarder receives every locally published event, e.g. to relay it to other
// server instances.
type Forwarder interface {
	Forward(Event)
}

type Hub struct {
	mu        sync.RWMutex
	subs      map[*Subscription]struct{}
	buffer    int
	log       logrus.FieldLogger
	forwarder Forwarder
	now       func() time.Time
}

type HubOption func(*Hub)

func WithBufferSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

func WithHubLogger(l logrus.FieldLogger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: DefaultBufferSize,
		log:    logrus.StandardLogger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetForwarder installs f to receive locally published events. Pass nil to stop forwarding.
func (h *Hub) SetForwarder(f Forwarder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.forwarder = f
}

// Publish implements domain.EventPublisher.
func (h *Hub) Publish(topic, eventType string, payload any) {
	e := Event{Type: eventType, Topic: topic, Payload: payload, At: h.now()}
	h.Deliver(e, "local")

	h.mu.RLock()
	f := h.forwarder
	h.mu.RUnlock()
	if f != nil {
		f.Forward(e)
	}
}

// Deliver hands e to every subscriber of its topic without forwarding it.
func (h *Hub) Deliver(e Event, origin string) {
	metrics.RecordEvent(e.Type, origin)
	if e.Type == domain.EventAccessRevoked {
		h.revoke(e)
	}

	var slow []*Subscription
	h.mu.RLock()
	for sub := range h.subs {
		if !sub.Has(e.Topic) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.log.WithFields(logrus.Fields{"topic": e.Topic, "user_id": sub.UserID}).Warn("dropping slow realtime subscriber")
		metrics.RecordDroppedSubscriber()
		h.remove(sub)
	}
}

// revoke drops the revoked topic from every subscription of the affected
// user, whichever topics that subscription listens on.
func (h *Hub) revoke(e Event) {
	rev, ok := revocation(e.Payload)
	if !ok || rev.Topic == "" {
		h.log.WithField("type", e.Type).Warn("malformed access revocation")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if sub.UserID == rev.UserID {
			sub.Remove(rev.Topic)
		}
	}
}

// revocation reads the payload of a local (typed) or relayed (raw JSON) event.
func revocation(payload any) (domain.AccessRevoked, bool) {
	switch p := payload.(type) {
	case domain.AccessRevoked:
		return p, true
	case *domain.AccessRevoked:
		if p == nil {
			return domain.AccessRevoked{}, false
		}
		return *p, true
	case json.RawMessage:
		var rev domain.AccessRevoked
		return rev, json.Unmarshal(p, &rev) == nil
	default:
		return domain.AccessRevoked{}, false
	}
}

// Subscribe registers a subscriber for topics. The caller must call
// Unsubscribe once done reading.
func (h *Hub) Subscribe(userID uint, topics ...string) *Subscription {
	sub := &Subscription{
		UserID: userID,
		ch:     make(chan Event, h.buffer),
		topics: make(map[string]struct{}, len(topics)),
		hub:    h,
	}
	for _, t := range topics {
		sub.topics[t] = struct{}{}
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	metrics.SubscriberAdded()
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	h.remove(sub)
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	_, ok := h.subs[sub]
	delete(h.subs, sub)
	h.mu.Unlock()
	if !ok {
		return
	}
	sub.closeOnce.Do(func() { close(sub.ch) })
	metrics.SubscriberRemoved()
}

// SubscriberCount returns the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Subscription is one consumer's view of the hub. Its channel is closed when
// the subscriber is removed, either by Unsubscribe or for being too slow.
type Subscription struct {
	UserID uint

	mu        sync.RWMutex
	ch        chan Event
	topics    map[string]struct{}
	hub       *Hub
	closeOnce sync.Once
}

func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) Has(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.topics[topic]
	return ok
}

func (s *Subscription) Add(topics ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range topics {
		s.topics[t] = struct{}{}
	}
}

func (s *Subscription) Remove(topics ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range topics {
		delete(s.topics, t)
	}
}

func (s *Subscription) Topics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.topics))
	for t := range s.topics {
		out = append(out, t)
	}
	return out
}
