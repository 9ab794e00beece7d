package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/example/farm2market/internal/models"
	"github.com/example/farm2market/internal/session"
)

type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) FindByPhone(ctx context.Context, phone string) (*models.Profile, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileStore) Upsert(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

// fakeProvider drives session changes synchronously, the way the identity
// platform client does.
type fakeProvider struct {
	mu        sync.Mutex
	observers []func(*session.Session)
	current   *session.Session
	signOuts  int
}

func (p *fakeProvider) ObserveSession(fn func(*session.Session)) (cancel func()) {
	p.mu.Lock()
	p.observers = append(p.observers, fn)
	cur := p.current
	p.mu.Unlock()
	fn(cur)
	return func() {}
}

func (p *fakeProvider) SignOut() {
	p.mu.Lock()
	p.signOuts++
	p.mu.Unlock()
	p.set(nil)
}

func (p *fakeProvider) set(s *session.Session) {
	p.mu.Lock()
	p.current = s
	obs := append([]func(*session.Session){}, p.observers...)
	p.mu.Unlock()
	for _, fn := range obs {
		fn(s)
	}
}

func strPtr(s string) *string { return &s }

func completeProfile(phone string) *models.Profile {
	return &models.Profile{
		BaseModel: models.BaseModel{ID: uuid.New()},
		Phone:     &phone,
		Name:      strPtr("Asha"),
		Role:      strPtr(models.RoleFarmer),
	}
}

func TestResolveProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("EmptyPhone", func(t *testing.T) {
		store := new(MockProfileStore)
		snap := session.ResolveProfile(ctx, store, "")
		assert.Equal(t, session.StateNeedsProfile, snap.State)
		assert.True(t, snap.NeedsProfile)
		store.AssertNotCalled(t, "FindByPhone")
	})

	t.Run("LookupMiss", func(t *testing.T) {
		store := new(MockProfileStore)
		store.On("FindByPhone", mock.Anything, "+911111111111").Return(nil, nil)

		snap := session.ResolveProfile(ctx, store, "+911111111111")
		assert.Equal(t, session.StateNeedsProfile, snap.State)
		assert.True(t, snap.NeedsProfile)
	})

	t.Run("StoreErrorDegradesToNeedsProfile", func(t *testing.T) {
		store := new(MockProfileStore)
		store.On("FindByPhone", mock.Anything, "+911111111111").Return(nil, errors.New("connection refused"))

		snap := session.ResolveProfile(ctx, store, "+911111111111")
		assert.Equal(t, session.StateNeedsProfile, snap.State)
		assert.True(t, snap.NeedsProfile)
	})

	t.Run("IncompleteProfile", func(t *testing.T) {
		phone := "+911111111111"
		partial := &models.Profile{
			BaseModel: models.BaseModel{ID: uuid.New()},
			Phone:     &phone,
		}
		store := new(MockProfileStore)
		store.On("FindByPhone", mock.Anything, phone).Return(partial, nil)

		snap := session.ResolveProfile(ctx, store, phone)
		assert.Equal(t, session.StateNeedsProfile, snap.State)
		assert.True(t, snap.NeedsProfile)
		assert.Equal(t, partial.ID, snap.ProfileID)
	})

	t.Run("CompleteProfile", func(t *testing.T) {
		profile := completeProfile("+911111111111")
		store := new(MockProfileStore)
		store.On("FindByPhone", mock.Anything, "+911111111111").Return(profile, nil)

		snap := session.ResolveProfile(ctx, store, "+911111111111")
		assert.Equal(t, session.StateAuthenticated, snap.State)
		assert.False(t, snap.NeedsProfile)
		assert.Equal(t, profile.ID, snap.ProfileID)
		assert.Equal(t, models.RoleFarmer, snap.Role)
	})
}

func TestResolverLifecycle(t *testing.T) {
	phone := "+911111111111"
	profile := completeProfile(phone)

	store := new(MockProfileStore)
	store.On("FindByPhone", mock.Anything, phone).Return(profile, nil)

	provider := &fakeProvider{}
	r := session.NewResolver(store, provider)

	var states []session.State
	r.Subscribe(func(s session.Snapshot) {
		states = append(states, s.State)
	})

	r.Start(context.Background())
	assert.Equal(t, session.StateUnauthenticated, r.Snapshot().State)

	provider.set(&session.Session{ID: uuid.New(), Phone: phone})

	snap := r.Snapshot()
	assert.Equal(t, session.StateAuthenticated, snap.State)
	assert.Equal(t, profile.ID, snap.ProfileID)
	assert.Equal(t, models.RoleFarmer, snap.Role)

	// A resolving state is published before the final one.
	assert.Contains(t, states, session.StateResolving)
	assert.Equal(t, session.StateAuthenticated, states[len(states)-1])

	provider.set(nil)
	assert.Equal(t, session.StateUnauthenticated, r.Snapshot().State)
}

func TestResolverSignOut(t *testing.T) {
	phone := "+911111111111"
	profile := completeProfile(phone)

	store := new(MockProfileStore)
	store.On("FindByPhone", mock.Anything, phone).Return(profile, nil)

	provider := &fakeProvider{current: &session.Session{ID: uuid.New(), Phone: phone}}
	r := session.NewResolver(store, provider)
	r.Start(context.Background())
	assert.Equal(t, session.StateAuthenticated, r.Snapshot().State)

	tornDown := false
	r.OnTeardown(func() { tornDown = true })

	r.SignOut()

	// Local state clears synchronously and teardown hooks run.
	assert.Equal(t, session.StateUnauthenticated, r.Snapshot().State)
	assert.True(t, tornDown)
	assert.Equal(t, 1, provider.signOuts)
}

func TestResolverSaveProfile(t *testing.T) {
	phone := "+911111111111"

	t.Run("NoSession", func(t *testing.T) {
		store := new(MockProfileStore)
		provider := &fakeProvider{}
		r := session.NewResolver(store, provider)
		r.Start(context.Background())

		_, err := r.SaveProfile(context.Background(), "Asha", models.RoleFarmer)
		assert.ErrorIs(t, err, session.ErrNoSession)
	})

	t.Run("Success", func(t *testing.T) {
		store := new(MockProfileStore)
		store.On("FindByPhone", mock.Anything, phone).Return(nil, nil)
		store.On("Upsert", mock.Anything, mock.MatchedBy(func(p *models.Profile) bool {
			return p.Phone != nil && *p.Phone == phone &&
				p.Name != nil && *p.Name == "Asha" &&
				p.Role != nil && *p.Role == models.RoleFarmer &&
				p.ID != uuid.Nil
		})).Return(completeProfile(phone), nil)

		provider := &fakeProvider{current: &session.Session{ID: uuid.New(), Phone: phone}}
		r := session.NewResolver(store, provider)
		r.Start(context.Background())
		assert.Equal(t, session.StateNeedsProfile, r.Snapshot().State)

		saved, err := r.SaveProfile(context.Background(), "  Asha  ", models.RoleFarmer)
		assert.NoError(t, err)
		assert.NotNil(t, saved)

		snap := r.Snapshot()
		assert.Equal(t, session.StateAuthenticated, snap.State)
		assert.Equal(t, models.RoleFarmer, snap.Role)
	})
}

func TestSaveProfileValidation(t *testing.T) {
	ctx := context.Background()
	store := new(MockProfileStore)

	t.Run("MissingPhone", func(t *testing.T) {
		_, err := session.SaveProfile(ctx, store, uuid.Nil, "", "Asha", models.RoleBuyer)
		assert.ErrorIs(t, err, session.ErrPhoneMissing)
	})

	t.Run("BlankName", func(t *testing.T) {
		_, err := session.SaveProfile(ctx, store, uuid.Nil, "+911111111111", "   ", models.RoleBuyer)
		assert.ErrorIs(t, err, session.ErrNameRequired)
	})

	t.Run("UnknownRole", func(t *testing.T) {
		_, err := session.SaveProfile(ctx, store, uuid.Nil, "+911111111111", "Asha", "wholesaler")
		assert.ErrorIs(t, err, session.ErrInvalidRole)
	})

	store.AssertNotCalled(t, "Upsert")
}

// blockingStore parks FindByPhone until released, so a lookup can be held
// in flight while other calls race it.
type blockingStore struct {
	release chan struct{}
	profile *models.Profile
}

func (s *blockingStore) FindByPhone(context.Context, string) (*models.Profile, error) {
	<-s.release
	return s.profile, nil
}

func (s *blockingStore) Upsert(_ context.Context, p *models.Profile) (*models.Profile, error) {
	return p, nil
}

func TestSignOutDuringResolutionStaysSignedOut(t *testing.T) {
	phone := "+911111111111"
	store := &blockingStore{
		release: make(chan struct{}),
		profile: completeProfile(phone),
	}

	provider := &fakeProvider{}
	r := session.NewResolver(store, provider)
	r.Start(context.Background())

	// The lookup parks inside the store while we sign out underneath it.
	resolving := make(chan struct{})
	go func() {
		close(resolving)
		provider.set(&session.Session{ID: uuid.New(), Phone: phone})
	}()
	<-resolving

	assert.Eventually(t, func() bool {
		return r.Snapshot().State == session.StateResolving
	}, time.Second, time.Millisecond)

	r.SignOut()
	assert.Equal(t, session.StateUnauthenticated, r.Snapshot().State)

	close(store.release)

	// The late resolution must not resurrect the dead session.
	assert.Never(t, func() bool {
		return r.Snapshot().State == session.StateAuthenticated
	}, 100*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, session.StateUnauthenticated, r.Snapshot().State)
}

func TestResolverFreshSessionSeesUpdatedRole(t *testing.T) {
	phone := "+911111111111"
	profile := completeProfile(phone)

	store := new(MockProfileStore)
	store.On("FindByPhone", mock.Anything, phone).Return(profile, nil)

	provider := &fakeProvider{}
	r := session.NewResolver(store, provider)
	r.Start(context.Background())

	provider.set(&session.Session{ID: uuid.New(), Phone: phone})
	assert.Equal(t, models.RoleFarmer, r.Snapshot().Role)

	// Role changes in the store; a new session resolves the new role.
	*profile.Role = models.RoleAdmin
	provider.set(nil)
	provider.set(&session.Session{ID: uuid.New(), Phone: phone})
	assert.Equal(t, models.RoleAdmin, r.Snapshot().Role)
}
