package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/example/farm2market/internal/models"
)

// State is the client-observable authentication state. It is derived, never
// persisted.
type State int

const (
	// StateUnauthenticated means no session exists.
	StateUnauthenticated State = iota
	// StateResolving means a session exists and the profile lookup is in flight.
	StateResolving
	// StateNeedsProfile means a session exists but the profile is missing or
	// incomplete.
	StateNeedsProfile
	// StateAuthenticated means a session exists and the profile is complete.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateResolving:
		return "resolving"
	case StateNeedsProfile:
		return "needs_profile"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

var (
	ErrNoSession    = errors.New("no active session")
	ErrPhoneMissing = errors.New("session carries no phone number")
	ErrNameRequired = errors.New("display name is required")
	ErrInvalidRole  = errors.New("invalid role")
)

// Session is the ephemeral identity-provider session for one client. Phone
// stays empty until the provider has verified a number.
type Session struct {
	ID    uuid.UUID
	Phone string
}

// ProfileStore is the persistent profile table. FindByPhone returns
// (nil, nil) on a lookup miss; a miss is a valid state, not an error.
type ProfileStore interface {
	FindByPhone(ctx context.Context, phone string) (*models.Profile, error)
	// Upsert writes the profile keyed by id with conflict target id.
	Upsert(ctx context.Context, p *models.Profile) (*models.Profile, error)
}

// IdentityProvider is a client-scoped view of the phone identity platform.
// ObserveSession invokes the callback with the current session (or nil)
// immediately and again on every future change.
type IdentityProvider interface {
	ObserveSession(fn func(*Session)) (cancel func())
	SignOut()
}

// Snapshot is the resolved view consumed by everything downstream: whether
// a session exists and what the user may do.
type Snapshot struct {
	State        State     `json:"state"`
	ProfileID    uuid.UUID `json:"profile_id"`
	Role         string    `json:"role"`
	NeedsProfile bool      `json:"needs_profile"`
}

// Resolver derives Snapshot from identity-provider session changes and
// profile-store lookups, and publishes every change to subscribers. It
// replaces ambient global auth state with an explicit, injected object.
type Resolver struct {
	store    ProfileStore
	provider IdentityProvider

	mu        sync.Mutex
	session   *Session
	snap      Snapshot
	subs      map[int]func(Snapshot)
	teardowns map[int]func()
	nextID    int
	cancel    func()
}

// NewResolver builds a resolver bound to one client's identity provider.
// Call Start to begin observing session changes.
func NewResolver(store ProfileStore, provider IdentityProvider) *Resolver {
	return &Resolver{
		store:     store,
		provider:  provider,
		snap:      Snapshot{State: StateUnauthenticated},
		subs:      make(map[int]func(Snapshot)),
		teardowns: make(map[int]func()),
	}
}

// Start registers with the identity provider. The callback fires
// synchronously with the current session before Start returns.
func (r *Resolver) Start(ctx context.Context) {
	r.cancel = r.provider.ObserveSession(func(s *Session) {
		r.handleSession(ctx, s)
	})
}

// Stop detaches from the identity provider without touching local state.
func (r *Resolver) Stop() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// Snapshot returns the current resolved state.
func (r *Resolver) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// Subscribe registers fn to be called on every snapshot change. The returned
// cancel removes the subscription.
func (r *Resolver) Subscribe(fn func(Snapshot)) (cancel func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// OnTeardown registers fn to run whenever the session ends. Used to cancel
// live chat subscriptions on sign-out.
func (r *Resolver) OnTeardown(fn func()) (cancel func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.teardowns[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.teardowns, id)
		r.mu.Unlock()
	}
}

func (r *Resolver) handleSession(ctx context.Context, s *Session) {
	if s == nil {
		r.reset()
		return
	}

	r.mu.Lock()
	r.session = s
	r.snap = Snapshot{State: StateResolving}
	r.mu.Unlock()
	r.publish()

	snap := ResolveProfile(ctx, r.store, s.Phone)

	r.mu.Lock()
	if r.session != s {
		// The session ended or changed while the lookup was in flight.
		// Writing the stale result would resurrect privileged state.
		r.mu.Unlock()
		return
	}
	r.snap = snap
	r.mu.Unlock()
	r.publish()
}

// reset clears local state and runs teardown hooks. It is unconditional and
// synchronous so stale privileged state never outlives the session.
func (r *Resolver) reset() {
	r.mu.Lock()
	r.session = nil
	r.snap = Snapshot{State: StateUnauthenticated}
	hooks := make([]func(), 0, len(r.teardowns))
	for _, fn := range r.teardowns {
		hooks = append(hooks, fn)
	}
	r.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	r.publish()
}

func (r *Resolver) publish() {
	r.mu.Lock()
	snap := r.snap
	fns := make([]func(Snapshot), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// SaveProfile validates and upserts the caller's profile, then moves local
// state to Authenticated. A new profile id is generated when none was
// resolved yet.
func (r *Resolver) SaveProfile(ctx context.Context, name, role string) (*models.Profile, error) {
	r.mu.Lock()
	sess := r.session
	existingID := r.snap.ProfileID
	r.mu.Unlock()

	if sess == nil {
		return nil, ErrNoSession
	}

	profile, err := SaveProfile(ctx, r.store, existingID, sess.Phone, name, role)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.snap = Snapshot{
		State:     StateAuthenticated,
		ProfileID: profile.ID,
		Role:      derefRole(profile.Role),
	}
	r.mu.Unlock()
	r.publish()

	return profile, nil
}

// SignOut clears local state immediately; the provider's sign-out call may
// still be in flight when this returns.
func (r *Resolver) SignOut() {
	r.reset()
	r.provider.SignOut()
}

// ResolveProfile derives the snapshot for a verified session phone from a
// single profile lookup. The lookup is by phone, not id, because the id is
// generated locally and not tied to any upstream identity before first
// save. Store errors are logged and degrade to NeedsProfile so the user is
// routed to profile completion instead of being stuck.
func ResolveProfile(ctx context.Context, store ProfileStore, phone string) Snapshot {
	if phone == "" {
		return Snapshot{State: StateNeedsProfile, NeedsProfile: true}
	}

	profile, err := store.FindByPhone(ctx, phone)
	if err != nil {
		log.Printf("[Session] profile lookup failed for %s: %v", phone, err)
		return Snapshot{State: StateNeedsProfile, NeedsProfile: true}
	}
	if profile == nil {
		return Snapshot{State: StateNeedsProfile, NeedsProfile: true}
	}

	if !profile.Complete() {
		return Snapshot{
			State:        StateNeedsProfile,
			ProfileID:    profile.ID,
			Role:         derefRole(profile.Role),
			NeedsProfile: true,
		}
	}

	return Snapshot{
		State:     StateAuthenticated,
		ProfileID: profile.ID,
		Role:      *profile.Role,
	}
}

// SaveProfile validates inputs and upserts a profile row keyed by id. It is
// shared by the resolver and the HTTP save-profile endpoint.
func SaveProfile(ctx context.Context, store ProfileStore, id uuid.UUID, phone, name, role string) (*models.Profile, error) {
	if phone == "" {
		return nil, ErrPhoneMissing
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if !models.ValidRole(role) {
		return nil, ErrInvalidRole
	}

	if id == uuid.Nil {
		id = uuid.New()
	}

	profile := &models.Profile{
		BaseModel: models.BaseModel{ID: id},
		Phone:     &phone,
		Name:      &name,
		Role:      &role,
	}
	return store.Upsert(ctx, profile)
}

func derefRole(role *string) string {
	if role == nil {
		return ""
	}
	return *role
}
