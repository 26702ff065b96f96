package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/qforge/qbank/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	mu        sync.Mutex
	session   *Session
	err       error
	delay     time.Duration
	calls     int
	signedOut bool
}

func (f *fakeChecker) CurrentSession(ctx context.Context) (*Session, error) {
	f.mu.Lock()
	f.calls++
	delay := f.delay
	session, err := f.session, f.err
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return session, err
}

func (f *fakeChecker) ForceSignOut(ctx context.Context) error {
	f.mu.Lock()
	f.signedOut = true
	f.mu.Unlock()
	return nil
}

func (f *fakeChecker) wasSignedOut() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signedOut
}

type fakeProfiles struct {
	mu         sync.Mutex
	profiles   map[string]*models.Profile
	err        error
	fetchCalls int
	created    []*models.Profile
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: make(map[string]*models.Profile)}
}

func (f *fakeProfiles) ProfileByUser(ctx context.Context, userID string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.profiles[userID], nil
}

func (f *fakeProfiles) CreateProfile(ctx context.Context, profile *models.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.profiles[profile.ID] = profile
	f.created = append(f.created, profile)
	return nil
}

func (f *fakeProfiles) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

func testSessionConfig() SessionConfig {
	return SessionConfig{
		CheckTimeout:   200 * time.Millisecond,
		ProfileTimeout: 200 * time.Millisecond,
		SafetyCeiling:  2 * time.Second,
	}
}

func TestResolveOnceAnonymous(t *testing.T) {
	manager := NewSessionManager(&fakeChecker{}, newFakeProfiles(), testSessionConfig())

	snap := manager.ResolveOnce(context.Background())
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Profile)
}

func TestResolveOnceAuthenticatedWithProfile(t *testing.T) {
	checker := &fakeChecker{session: &Session{UserID: "u1", Email: "u1@example.com"}}
	profiles := newFakeProfiles()
	profiles.profiles["u1"] = &models.Profile{ID: "u1", Role: models.RoleAdmin}

	manager := NewSessionManager(checker, profiles, testSessionConfig())
	snap := manager.ResolveOnce(context.Background())

	assert.False(t, snap.Loading)
	require.NotNil(t, snap.User)
	assert.Equal(t, "u1", snap.User.UserID)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, models.RoleAdmin, snap.Profile.Role)
}

func TestResolveOnceCreatesDefaultProfile(t *testing.T) {
	checker := &fakeChecker{session: &Session{UserID: "fresh", Email: "fresh@example.com"}}
	profiles := newFakeProfiles()

	manager := NewSessionManager(checker, profiles, testSessionConfig())
	snap := manager.ResolveOnce(context.Background())

	require.NotNil(t, snap.Profile)
	assert.Equal(t, "fresh", snap.Profile.ID)
	assert.Equal(t, models.RoleStudent, snap.Profile.Role)
	require.Len(t, profiles.created, 1)
}

func TestCheckTimeoutFailsOpen(t *testing.T) {
	checker := &fakeChecker{
		session: &Session{UserID: "u1"},
		delay:   time.Second, // well past CheckTimeout
	}

	manager := NewSessionManager(checker, newFakeProfiles(), testSessionConfig())
	snap := manager.ResolveOnce(context.Background())

	assert.False(t, snap.Loading)
	assert.Nil(t, snap.User)
}

func TestInvalidRefreshForcesSignOut(t *testing.T) {
	checker := &fakeChecker{err: ErrInvalidRefreshToken}

	manager := NewSessionManager(checker, newFakeProfiles(), testSessionConfig())
	snap := manager.ResolveOnce(context.Background())

	assert.Nil(t, snap.User)
	assert.True(t, checker.wasSignedOut())
}

func TestProfileErrorLeavesNilProfile(t *testing.T) {
	checker := &fakeChecker{session: &Session{UserID: "u1"}}
	profiles := newFakeProfiles()
	profiles.err = errors.New("database down")

	manager := NewSessionManager(checker, profiles, testSessionConfig())
	snap := manager.ResolveOnce(context.Background())

	// Authenticated but role unknown: the session stays usable.
	assert.False(t, snap.Loading)
	require.NotNil(t, snap.User)
	assert.Nil(t, snap.Profile)
}

func TestDuplicateEventIsNoOpAfterStartup(t *testing.T) {
	checker := &fakeChecker{session: &Session{UserID: "u1", Email: "u1@example.com"}}
	profiles := newFakeProfiles()
	profiles.profiles["u1"] = &models.Profile{ID: "u1", Role: models.RoleStudent}

	manager := NewSessionManager(checker, profiles, testSessionConfig())
	manager.ResolveOnce(context.Background())
	require.Equal(t, 1, profiles.fetchCount())

	manager.handleEvent(context.Background(), SessionEvent{Kind: SessionSignedIn, UserID: "u1", Email: "u1@example.com"})

	// Same user, startup already settled: no second profile fetch.
	assert.Equal(t, 1, profiles.fetchCount())
	snap := manager.Snapshot()
	assert.False(t, snap.Loading)
	require.NotNil(t, snap.User)
	assert.Equal(t, "u1", snap.User.UserID)
}

func TestEventForDifferentUserResolves(t *testing.T) {
	checker := &fakeChecker{session: &Session{UserID: "u1"}}
	profiles := newFakeProfiles()
	profiles.profiles["u1"] = &models.Profile{ID: "u1", Role: models.RoleStudent}
	profiles.profiles["u2"] = &models.Profile{ID: "u2", Role: models.RoleTrainer}

	manager := NewSessionManager(checker, profiles, testSessionConfig())
	manager.ResolveOnce(context.Background())

	manager.handleEvent(context.Background(), SessionEvent{Kind: SessionSignedIn, UserID: "u2", Email: "u2@example.com"})

	snap := manager.Snapshot()
	require.NotNil(t, snap.User)
	assert.Equal(t, "u2", snap.User.UserID)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, models.RoleTrainer, snap.Profile.Role)
}

func TestSignedOutClearsState(t *testing.T) {
	checker := &fakeChecker{session: &Session{UserID: "u1"}}
	profiles := newFakeProfiles()
	profiles.profiles["u1"] = &models.Profile{ID: "u1", Role: models.RoleStudent}

	manager := NewSessionManager(checker, profiles, testSessionConfig())
	manager.ResolveOnce(context.Background())

	manager.handleEvent(context.Background(), SessionEvent{Kind: SessionSignedOut, UserID: "u1"})

	snap := manager.Snapshot()
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Profile)
}

func TestSignOutDiscardsInFlightStartup(t *testing.T) {
	checker := &fakeChecker{
		session: &Session{UserID: "u1"},
		delay:   100 * time.Millisecond,
	}
	profiles := newFakeProfiles()
	profiles.profiles["u1"] = &models.Profile{ID: "u1", Role: models.RoleStudent}

	manager := NewSessionManager(checker, profiles, testSessionConfig())

	done := make(chan struct{})
	go func() {
		manager.runStartup(context.Background())
		close(done)
	}()

	// Sign out before the slow startup check lands; its result must not
	// overwrite the signed-out state.
	time.Sleep(20 * time.Millisecond)
	manager.handleEvent(context.Background(), SessionEvent{Kind: SessionSignedOut})
	<-done

	snap := manager.Snapshot()
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.User)
}

func TestSafetyCeilingSettlesLoading(t *testing.T) {
	cfg := SessionConfig{
		CheckTimeout:   5 * time.Second,
		ProfileTimeout: 5 * time.Second,
		SafetyCeiling:  50 * time.Millisecond,
	}
	checker := &fakeChecker{
		session: &Session{UserID: "u1"},
		delay:   3 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := NewSessionManager(checker, newFakeProfiles(), cfg)
	manager.Start(ctx, nil)

	require.Eventually(t, func() bool {
		return !manager.Snapshot().Loading
	}, time.Second, 10*time.Millisecond)
}

func TestSubscribeReceivesSettledSnapshot(t *testing.T) {
	checker := &fakeChecker{session: &Session{UserID: "u1"}}
	profiles := newFakeProfiles()
	profiles.profiles["u1"] = &models.Profile{ID: "u1", Role: models.RoleStudent}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := NewSessionManager(checker, profiles, testSessionConfig())
	snapshots := manager.Subscribe()
	manager.Start(ctx, nil)

	select {
	case snap := <-snapshots:
		assert.False(t, snap.Loading)
		require.NotNil(t, snap.User)
		assert.Equal(t, "u1", snap.User.UserID)
	case <-time.After(time.Second):
		t.Fatal("no snapshot received")
	}
}

func TestBrokerEventsAreScopedToBoundUser(t *testing.T) {
	checker := &fakeChecker{session: &Session{UserID: "u1", Email: "u1@example.com"}}
	profiles := newFakeProfiles()
	profiles.profiles["u1"] = &models.Profile{ID: "u1", Role: models.RoleStudent}
	profiles.profiles["u2"] = &models.Profile{ID: "u2", Role: models.RoleAdmin}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := NewEventBroker()
	events := broker.Subscribe()
	defer broker.Unsubscribe(events)

	// Same wiring as the websocket handler: one manager per connection,
	// fed a stream narrowed to the connection's own user.
	manager := NewSessionManager(checker, profiles, testSessionConfig())
	manager.Start(ctx, FilterEventsForUser(events, "u1"))

	require.Eventually(t, func() bool {
		snap := manager.Snapshot()
		return !snap.Loading && snap.User != nil
	}, time.Second, 10*time.Millisecond)

	// Another user signing in elsewhere must not rebind this session.
	broker.Publish(SessionEvent{Kind: SessionSignedIn, UserID: "u2", Email: "u2@example.com"})
	time.Sleep(50 * time.Millisecond)
	snap := manager.Snapshot()
	require.NotNil(t, snap.User)
	assert.Equal(t, "u1", snap.User.UserID)
	assert.Equal(t, models.RoleStudent, snap.Profile.Role)

	// Nor must their sign-out clear it.
	broker.Publish(SessionEvent{Kind: SessionSignedOut, UserID: "u2"})
	time.Sleep(50 * time.Millisecond)
	snap = manager.Snapshot()
	require.NotNil(t, snap.User)
	assert.Equal(t, "u1", snap.User.UserID)

	// The bound user's own sign-out still lands.
	broker.Publish(SessionEvent{Kind: SessionSignedOut, UserID: "u1"})
	require.Eventually(t, func() bool {
		return manager.Snapshot().User == nil
	}, time.Second, 10*time.Millisecond)
}

func TestEventBrokerFanOut(t *testing.T) {
	broker := NewEventBroker()
	a := broker.Subscribe()
	b := broker.Subscribe()

	broker.Publish(SessionEvent{Kind: SessionSignedIn, UserID: "u1"})

	for _, ch := range []chan SessionEvent{a, b} {
		select {
		case evt := <-ch:
			assert.Equal(t, SessionSignedIn, evt.Kind)
			assert.Equal(t, "u1", evt.UserID)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}

	broker.Unsubscribe(a)
	_, open := <-a
	assert.False(t, open)

	// Publishing after an unsubscribe must not panic or block.
	broker.Publish(SessionEvent{Kind: SessionSignedOut})
}
