package chat

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/farm2market/internal/models"
)

var (
	ErrEmptyMessage   = errors.New("message body is empty")
	ErrThreadNotFound = errors.New("chat thread not found")
	ErrNoReceiver     = errors.New("cannot derive receiver for thread")
)

// Store is the persistent chat table pair. FindThread and GetThread return
// (nil, nil) on a lookup miss. InsertThread resolves unique-index conflicts
// by returning the winning row.
type Store interface {
	ListThreadsFor(ctx context.Context, profileID uuid.UUID) ([]models.ChatThread, error)
	FindThread(ctx context.Context, buyerID, farmerID uuid.UUID, cropID *uuid.UUID) (*models.ChatThread, error)
	InsertThread(ctx context.Context, t *models.ChatThread) (*models.ChatThread, error)
	GetThread(ctx context.Context, id uuid.UUID) (*models.ChatThread, error)
	ListMessages(ctx context.Context, threadID uuid.UUID) ([]models.Message, error)
	InsertMessage(ctx context.Context, m *models.Message) (*models.Message, error)
	TouchThread(ctx context.Context, threadID uuid.UUID, at time.Time) error
}

// Synchronizer presents an ordered, live-updating message list for one open
// thread, plus thread-level operations that need no open thread. Live-feed
// events and the historical fetch are merged with dedup by message id and a
// (created_at, id) ordering key, so a message racing the subscription start
// is neither duplicated nor dropped. The subscription is opened before
// history is fetched for the same reason.
type Synchronizer struct {
	store Store
	feed  *Feed

	mu        sync.Mutex
	thread    *models.ChatThread
	messages  []models.Message
	seen      map[uuid.UUID]struct{}
	sub       *Subscription
	onMessage func(models.Message)
}

func NewSynchronizer(store Store, feed *Feed) *Synchronizer {
	return &Synchronizer{store: store, feed: feed}
}

// ListThreadsFor returns every thread where the profile is buyer or farmer,
// most recent contact first.
func (s *Synchronizer) ListThreadsFor(ctx context.Context, profileID uuid.UUID) ([]models.ChatThread, error) {
	return s.store.ListThreadsFor(ctx, profileID)
}

// FindOrCreateThread looks up the exact (buyer, farmer, crop) triple and
// inserts a new thread on a miss. The store's unique index plus its
// conflict handling make concurrent creates converge on one row.
func (s *Synchronizer) FindOrCreateThread(ctx context.Context, buyerID, farmerID uuid.UUID, cropID *uuid.UUID) (*models.ChatThread, error) {
	existing, err := s.store.FindThread(ctx, buyerID, farmerID, cropID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	return s.store.InsertThread(ctx, &models.ChatThread{
		BuyerID:  buyerID,
		FarmerID: farmerID,
		CropID:   cropID,
	})
}

// Thread fetches a thread by id, returning ErrThreadNotFound on a miss.
func (s *Synchronizer) Thread(ctx context.Context, threadID uuid.UUID) (*models.ChatThread, error) {
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, ErrThreadNotFound
	}
	return thread, nil
}

// History returns a thread's stored messages in display order without
// opening a live subscription.
func (s *Synchronizer) History(ctx context.Context, threadID uuid.UUID) ([]models.Message, error) {
	return s.store.ListMessages(ctx, threadID)
}

// OnMessage registers fn to be called for every newly ingested message
// while a thread is open. Set it before OpenThread.
func (s *Synchronizer) OnMessage(fn func(models.Message)) {
	s.mu.Lock()
	s.onMessage = fn
	s.mu.Unlock()
}

// OpenThread closes any previously open thread, subscribes to the live
// insert feed, then fetches history and merges. It returns the merged
// message list in display order.
func (s *Synchronizer) OpenThread(ctx context.Context, threadID uuid.UUID) ([]models.Message, error) {
	s.CloseThread()

	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, ErrThreadNotFound
	}

	// Subscribe before the historical fetch; anything inserted in between
	// arrives on the feed and is deduplicated on ingest.
	sub := s.feed.Subscribe(threadID)

	history, err := s.store.ListMessages(ctx, threadID)
	if err != nil {
		sub.Cancel()
		return nil, err
	}

	s.mu.Lock()
	s.thread = thread
	s.messages = nil
	s.seen = make(map[uuid.UUID]struct{}, len(history))
	s.sub = sub
	s.mu.Unlock()

	for _, m := range history {
		s.ingest(m, false)
	}

	go func() {
		for m := range sub.C {
			s.ingest(m, true)
		}
	}()

	return s.Messages(), nil
}

// CloseThread tears down the live subscription. Idempotent and safe when no
// thread is open.
func (s *Synchronizer) CloseThread() {
	s.mu.Lock()
	sub := s.sub
	s.thread = nil
	s.messages = nil
	s.seen = nil
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
}

// Messages returns a copy of the current merged list in display order.
func (s *Synchronizer) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Send validates the body, derives the receiver as the other party on the
// thread, inserts the message, then bumps the thread's last-activity
// timestamp. The two writes are not atomic: a failed bump leaves the
// message in place with a stale thread position, which is logged and
// accepted.
func (s *Synchronizer) Send(ctx context.Context, threadID, senderID uuid.UUID, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyMessage
	}

	thread, err := s.lookupThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	receiverID := thread.OtherParty(senderID)
	if receiverID == uuid.Nil {
		return nil, ErrNoReceiver
	}

	msg, err := s.store.InsertMessage(ctx, &models.Message{
		ThreadID:   threadID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    body,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.TouchThread(ctx, threadID, time.Now()); err != nil {
		log.Printf("[Chat] thread %s activity bump failed: %v", threadID, err)
	}

	return msg, nil
}

func (s *Synchronizer) lookupThread(ctx context.Context, threadID uuid.UUID) (*models.ChatThread, error) {
	s.mu.Lock()
	local := s.thread
	s.mu.Unlock()

	if local != nil && local.ID == threadID {
		return local, nil
	}

	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, ErrThreadNotFound
	}
	return thread, nil
}

// ingest merges one message into the ordered list, dropping duplicates.
func (s *Synchronizer) ingest(m models.Message, live bool) {
	s.mu.Lock()
	if s.seen == nil {
		// thread was closed while the pump goroutine drained
		s.mu.Unlock()
		return
	}
	if _, dup := s.seen[m.ID]; dup {
		s.mu.Unlock()
		return
	}
	s.seen[m.ID] = struct{}{}

	idx := sort.Search(len(s.messages), func(i int) bool {
		return messageAfter(s.messages[i], m)
	})
	s.messages = append(s.messages, models.Message{})
	copy(s.messages[idx+1:], s.messages[idx:])
	s.messages[idx] = m

	fn := s.onMessage
	s.mu.Unlock()

	if live && fn != nil {
		fn(m)
	}
}

// messageAfter reports whether a sorts after b by (created_at, id).
func messageAfter(a, b models.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.String() > b.ID.String()
}
