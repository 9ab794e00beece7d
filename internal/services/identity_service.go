package services

import (
	"sync"

	"github.com/google/uuid"

	"github.com/example/farm2market/internal/session"
)

// IdentityService is the phone identity platform: it registers verified
// sessions, invalidates them on sign-out, and notifies per-session
// observers of changes. It backs the session.IdentityProvider contract via
// ClientFor.
type IdentityService struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*session.Session
	watchers map[uuid.UUID]map[int]func(*session.Session)
	nextID   int
}

func NewIdentityService() *IdentityService {
	return &IdentityService{
		sessions: make(map[uuid.UUID]*session.Session),
		watchers: make(map[uuid.UUID]map[int]func(*session.Session)),
	}
}

// Register creates a verified session for the phone and notifies watchers.
func (s *IdentityService) Register(phone string) *session.Session {
	sess := &session.Session{ID: uuid.New(), Phone: phone}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	fns := watcherList(s.watchers[sess.ID])
	s.mu.Unlock()

	for _, fn := range fns {
		fn(sess)
	}
	return sess
}

// Active reports whether the session has not been signed out.
func (s *IdentityService) Active(id uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}

// SignOut invalidates the session and notifies its watchers with nil.
func (s *IdentityService) SignOut(id uuid.UUID) {
	s.mu.Lock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	fns := watcherList(s.watchers[id])
	s.mu.Unlock()

	if !existed {
		return
	}
	for _, fn := range fns {
		fn(nil)
	}
}

// watch registers fn for changes to one session and returns a cancel.
func (s *IdentityService) watch(id uuid.UUID, fn func(*session.Session)) func() {
	s.mu.Lock()
	wid := s.nextID
	s.nextID++
	if s.watchers[id] == nil {
		s.watchers[id] = make(map[int]func(*session.Session))
	}
	s.watchers[id][wid] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		if m, ok := s.watchers[id]; ok {
			delete(m, wid)
			if len(m) == 0 {
				delete(s.watchers, id)
			}
		}
		s.mu.Unlock()
	}
}

// ClientFor returns a client-scoped identity provider bound to one session,
// satisfying session.IdentityProvider: the observer callback fires with the
// current session immediately and on every change (nil after sign-out).
func (s *IdentityService) ClientFor(id uuid.UUID) session.IdentityProvider {
	return &sessionClient{svc: s, id: id}
}

type sessionClient struct {
	svc *IdentityService
	id  uuid.UUID
}

func (c *sessionClient) ObserveSession(fn func(*session.Session)) (cancel func()) {
	c.svc.mu.RLock()
	current := c.svc.sessions[c.id]
	c.svc.mu.RUnlock()

	cancel = c.svc.watch(c.id, fn)
	fn(current)
	return cancel
}

func (c *sessionClient) SignOut() {
	c.svc.SignOut(c.id)
}

func watcherList(m map[int]func(*session.Session)) []func(*session.Session) {
	fns := make([]func(*session.Session), 0, len(m))
	for _, fn := range m {
		fns = append(fns, fn)
	}
	return fns
}
