package chat

import (
	"sync"

	"github.com/google/uuid"

	"github.com/example/farm2market/internal/models"
)

const subscriptionBuffer = 32

// Feed is an in-process broker delivering newly inserted messages to
// per-thread subscribers. The chat store publishes every insert; websocket
// connections and synchronizers consume. Delivery is best-effort: a
// subscriber that stops draining loses events rather than blocking senders.
type Feed struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[*Subscription]struct{}
}

// Subscription is a live handle on one thread's insert stream. Cancel is
// idempotent and safe to call concurrently.
type Subscription struct {
	C chan models.Message

	feed     *Feed
	threadID uuid.UUID
	once     sync.Once
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[uuid.UUID]map[*Subscription]struct{})}
}

// Subscribe registers for inserts on the given thread.
func (f *Feed) Subscribe(threadID uuid.UUID) *Subscription {
	sub := &Subscription{
		C:        make(chan models.Message, subscriptionBuffer),
		feed:     f,
		threadID: threadID,
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[threadID] == nil {
		f.subs[threadID] = make(map[*Subscription]struct{})
	}
	f.subs[threadID][sub] = struct{}{}
	return sub
}

// Publish fans a message out to the subscribers of its thread.
func (f *Feed) Publish(m models.Message) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for sub := range f.subs[m.ThreadID] {
		select {
		case sub.C <- m:
		default:
			// subscriber is not draining; drop rather than block
		}
	}
}

// Active returns the number of live subscriptions for a thread.
func (f *Feed) Active(threadID uuid.UUID) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[threadID])
}

// Cancel tears the subscription down and closes its channel.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		f := s.feed
		f.mu.Lock()
		if subs, ok := f.subs[s.threadID]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(f.subs, s.threadID)
			}
		}
		f.mu.Unlock()
		close(s.C)
	})
}
