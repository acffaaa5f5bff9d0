// Package broadcast is the in-process topic transport for live vehicle
// updates. Delivery is at-most-once and fire-and-forget: a subscriber whose
// buffer is full loses the message, and there is no replay. Clients that
// miss an update are expected to poll the REST read path instead.
package broadcast

import "sync"

// Message is one published payload tagged with its topic.
type Message struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// Subscriber is one registered listener. Messages arrive on C; a slow
// subscriber drops rather than blocks the publisher.
type Subscriber struct {
	ch     chan Message
	hub    *Hub
	mu     sync.Mutex
	topics map[string]struct{}
	closed bool
}

// C returns the subscriber's receive channel.
func (s *Subscriber) C() <-chan Message {
	return s.ch
}

// Hub routes published messages to topic subscribers.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscriber]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[*Subscriber]struct{})}
}

// NewSubscriber registers a subscriber with the given channel buffer.
func (h *Hub) NewSubscriber(buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = 16
	}
	return &Subscriber{
		ch:     make(chan Message, buffer),
		hub:    h,
		topics: make(map[string]struct{}),
	}
}

// Subscribe joins the subscriber to a topic. Joining twice is a no-op.
func (h *Hub) Subscribe(topic string, s *Subscriber) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.topics[topic] = struct{}{}
	s.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Subscriber]struct{})
		h.topics[topic] = subs
	}
	subs[s] = struct{}{}
}

// Unsubscribe removes the subscriber from a topic.
func (h *Hub) Unsubscribe(topic string, s *Subscriber) {
	s.mu.Lock()
	delete(s.topics, topic)
	s.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(topic, s)
}

func (h *Hub) removeLocked(topic string, s *Subscriber) {
	if subs, ok := h.topics[topic]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Close leaves all topics and closes the subscriber's channel.
func (h *Hub) Close(s *Subscriber) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	topics := make([]string, 0, len(s.topics))
	for t := range s.topics {
		topics = append(topics, t)
	}
	s.topics = nil
	s.mu.Unlock()

	h.mu.Lock()
	for _, t := range topics {
		h.removeLocked(t, s)
	}
	h.mu.Unlock()

	close(s.ch)
}

// Publish delivers the payload to every subscriber of the topic without
// blocking. Returns the number of deliveries and drops.
func (h *Hub) Publish(topic string, payload any) (delivered, dropped int) {
	msg := Message{Topic: topic, Payload: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.topics[topic] {
		select {
		case s.ch <- msg:
			delivered++
		default:
			dropped++
		}
	}
	return delivered, dropped
}

// SubscriberCount returns how many subscribers a topic currently has.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
