package fanout

import (
	"sync"

	"storefront-core/internal/model"
)

// Toasts is the bounded set of notifications currently shown as toasts.
// When full, the oldest toast is evicted.
type Toasts struct {
	mu      sync.Mutex
	limit   int
	entries []model.Notification
}

// NewToasts creates a toast set holding at most limit entries.
func NewToasts(limit int) *Toasts {
	return &Toasts{limit: limit}
}

// Push shows n, ignoring a key already shown, and returns the evicted toast.
func (t *Toasts) Push(n model.Notification) (evicted *model.Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.entries {
		if e.Key == n.Key {
			return nil
		}
	}
	t.entries = append(t.entries, n)
	if len(t.entries) > t.limit {
		old := t.entries[0]
		t.entries = t.entries[1:]
		return &old
	}
	return nil
}

// Dismiss removes the toast with key.
func (t *Toasts) Dismiss(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, e := range t.entries {
		if e.Key == key {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return
		}
	}
}

// List returns the visible toasts, oldest first.
func (t *Toasts) List() []model.Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]model.Notification(nil), t.entries...)
}

// Subscription is one live stream of notifications for a subscriber.
type Subscription struct {
	Subscriber model.Subscriber
	Toasts     *Toasts

	ch     chan model.Notification
	hub    *Hub
	mu     sync.Mutex
	closed bool
}

// C delivers notifications. It is closed by Close.
func (s *Subscription) C() <-chan model.Notification {
	return s.ch
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.unregister(s)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// deliver never blocks; a full buffer drops the notification for this
// subscription only.
func (s *Subscription) deliver(n model.Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	select {
	case s.ch <- n:
		s.Toasts.Push(n)
		return true
	default:
		return false
	}
}

// recentPushLimit bounds how many subscriber/notification pairs a hub
// remembers for redelivery suppression.
const recentPushLimit = 4096

// Hub tracks live subscriptions by subscriber key. Each instance keeps its
// own hub, so a notification already stored by another instance is still
// pushed here exactly once.
type Hub struct {
	mu         sync.RWMutex
	subs       map[string]map[*Subscription]struct{}
	buffer     int
	toastLimit int

	recentMu    sync.Mutex
	recent      map[string]struct{}
	recentOrder []string
	recentLimit int
}

// NewHub creates a hub whose subscriptions buffer up to buffer notifications.
func NewHub(buffer, toastLimit int) *Hub {
	return &Hub{
		subs:        make(map[string]map[*Subscription]struct{}),
		buffer:      buffer,
		toastLimit:  toastLimit,
		recent:      make(map[string]struct{}),
		recentLimit: recentPushLimit,
	}
}

// firstPush records that n was pushed to sub and reports whether it was new.
// The oldest pair is forgotten once the limit is reached.
func (h *Hub) firstPush(sub model.Subscriber, n model.Notification) bool {
	pair := sub.Key() + "|" + n.Key

	h.recentMu.Lock()
	defer h.recentMu.Unlock()
	if _, ok := h.recent[pair]; ok {
		return false
	}
	h.recent[pair] = struct{}{}
	h.recentOrder = append(h.recentOrder, pair)
	if len(h.recentOrder) > h.recentLimit {
		delete(h.recent, h.recentOrder[0])
		h.recentOrder = h.recentOrder[1:]
	}
	return true
}

// Subscribe opens a live stream for sub. One subscriber may hold several
// subscriptions, e.g. one per browser tab.
func (h *Hub) Subscribe(sub model.Subscriber) *Subscription {
	s := &Subscription{
		Subscriber: sub,
		Toasts:     NewToasts(h.toastLimit),
		ch:         make(chan model.Notification, h.buffer),
		hub:        h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	key := sub.Key()
	if h.subs[key] == nil {
		h.subs[key] = make(map[*Subscription]struct{})
	}
	h.subs[key][s] = struct{}{}
	return s
}

func (h *Hub) unregister(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := s.Subscriber.Key()
	if m := h.subs[key]; m != nil {
		delete(m, s)
		if len(m) == 0 {
			delete(h.subs, key)
		}
	}
}

// Publish pushes n to every live subscription of sub and returns how many
// accepted it. A notification already published to sub by this hub is
// skipped.
func (h *Hub) Publish(sub model.Subscriber, n model.Notification) int {
	if !h.firstPush(sub, n) {
		return 0
	}

	h.mu.RLock()
	m := h.subs[sub.Key()]
	targets := make([]*Subscription, 0, len(m))
	for s := range m {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		if s.deliver(n) {
			delivered++
		}
	}
	return delivered
}

// Count returns the number of live subscriptions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, m := range h.subs {
		total += len(m)
	}
	return total
}
