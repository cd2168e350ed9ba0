package fanout

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront-core/internal/model"
)

// HistoryStore keeps the recent notifications of each subscriber. Insert is
// insert-if-absent on Notification.Key; histories are capped at a fixed
// length with the oldest entry evicted first, and entries expire after a TTL.
type HistoryStore interface {
	// Insert adds n to the subscriber's history. inserted is false when an
	// entry with the same key is already there.
	Insert(ctx context.Context, sub model.Subscriber, n model.Notification) (inserted bool, err error)

	// List returns the subscriber's unexpired entries, newest first.
	List(ctx context.Context, sub model.Subscriber) ([]model.Notification, error)

	// Prune deletes entries created before cutoff and returns how many went.
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

type history struct {
	entries []model.Notification // oldest first
	keys    map[string]struct{}
}

// MemoryStore is a HistoryStore for a single instance.
type MemoryStore struct {
	mu        sync.Mutex
	limit     int
	ttl       time.Duration
	now       func() time.Time
	histories map[string]*history
}

// NewMemoryStore creates an in-process history store.
func NewMemoryStore(limit int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		limit:     limit,
		ttl:       ttl,
		now:       time.Now,
		histories: make(map[string]*history),
	}
}

func (s *MemoryStore) Insert(ctx context.Context, sub model.Subscriber, n model.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.histories[sub.Key()]
	if h == nil {
		h = &history{keys: make(map[string]struct{})}
		s.histories[sub.Key()] = h
	}
	if _, ok := h.keys[n.Key]; ok {
		return false, nil
	}

	h.entries = append(h.entries, n)
	h.keys[n.Key] = struct{}{}
	sort.SliceStable(h.entries, func(i, j int) bool {
		return h.entries[i].CreatedAt.Before(h.entries[j].CreatedAt)
	})

	for len(h.entries) > s.limit {
		delete(h.keys, h.entries[0].Key)
		h.entries = h.entries[1:]
	}
	// an entry older than everything in a full history is evicted at once
	_, kept := h.keys[n.Key]
	return kept, nil
}

func (s *MemoryStore) List(ctx context.Context, sub model.Subscriber) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.histories[sub.Key()]
	if h == nil {
		return []model.Notification{}, nil
	}

	cutoff := s.now().Add(-s.ttl)
	out := make([]model.Notification, 0, len(h.entries))
	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].CreatedAt.Before(cutoff) {
			break
		}
		out = append(out, h.entries[i])
	}
	return out, nil
}

func (s *MemoryStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, h := range s.histories {
		i := 0
		for i < len(h.entries) && h.entries[i].CreatedAt.Before(cutoff) {
			delete(h.keys, h.entries[i].Key)
			i++
		}
		removed += i
		h.entries = h.entries[i:]
		if len(h.entries) == 0 {
			delete(s.histories, key)
		}
	}
	return removed, nil
}
