package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/qforge/qbank/models"
)

// Session is the authenticated identity resolved from the backend.
type Session struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type SessionEventKind string

const (
	SessionSignedIn  SessionEventKind = "signed_in"
	SessionSignedOut SessionEventKind = "signed_out"
	SessionRefreshed SessionEventKind = "refreshed"
)

// SessionEvent is one entry in the asynchronous auth state-change stream.
type SessionEvent struct {
	Kind   SessionEventKind `json:"kind"`
	UserID string           `json:"user_id,omitempty"`
	Email  string           `json:"email,omitempty"`
}

// SessionChecker resolves the current session for one caller. An invalid
// refresh credential is reported as ErrInvalidRefreshToken; no credentials at
// all resolves to (nil, nil).
type SessionChecker interface {
	CurrentSession(ctx context.Context) (*Session, error)
	ForceSignOut(ctx context.Context) error
}

// ProfileStore is the slice of the repository the session manager needs. A
// missing profile resolves to (nil, nil), never an error.
type ProfileStore interface {
	ProfileByUser(ctx context.Context, userID string) (*models.Profile, error)
	CreateProfile(ctx context.Context, profile *models.Profile) error
}

// SessionSnapshot is the authoritative {user, profile, loading} triple. Once
// loading settles false the snapshot is in one of three states: authenticated
// with a profile, authenticated with a nil profile, or anonymous.
type SessionSnapshot struct {
	User    *Session        `json:"user"`
	Profile *models.Profile `json:"profile"`
	Loading bool            `json:"loading"`
}

// EventBroker fans auth state-change events out to session managers and the
// websocket push. Publishing never blocks; a subscriber that cannot keep up
// loses events rather than stalling the publisher.
type EventBroker struct {
	mu   sync.Mutex
	subs map[chan SessionEvent]struct{}
}

func NewEventBroker() *EventBroker {
	return &EventBroker{subs: make(map[chan SessionEvent]struct{})}
}

func (b *EventBroker) Subscribe() chan SessionEvent {
	ch := make(chan SessionEvent, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *EventBroker) Unsubscribe(ch chan SessionEvent) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

func (b *EventBroker) Publish(evt SessionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
			slog.Warn("Session event dropped for slow subscriber", "kind", evt.Kind)
		}
	}
}

// FilterEventsForUser narrows a broker subscription to the events carrying
// the given user id. The broker stream is global; a session manager bound to
// one caller must never see another user's sign-in or sign-out, so the stream
// is scoped before it reaches the manager. The returned channel closes when
// the source does. Sends are non-blocking, matching the broker's contract.
func FilterEventsForUser(events <-chan SessionEvent, userID string) <-chan SessionEvent {
	filtered := make(chan SessionEvent, 16)
	go func() {
		defer close(filtered)
		for evt := range events {
			if evt.UserID != userID {
				continue
			}
			select {
			case filtered <- evt:
			default:
				slog.Warn("Session event dropped for slow manager", "kind", evt.Kind, "user_id", userID)
			}
		}
	}()
	return filtered
}

// SessionManager reconciles two independent event sources - the explicit
// startup session check and the asynchronous state-change stream - into one
// consistent snapshot. A generation counter decides ownership: only a
// resolution carrying the current generation may commit, so whichever of
// {startup, event} finished last is authoritative and stale in-flight results
// are discarded instead of overwriting newer state.
type SessionManager struct {
	checker  SessionChecker
	profiles ProfileStore
	cfg      SessionConfig

	mu          sync.Mutex
	user        *Session
	profile     *models.Profile
	loading     bool
	gen         uint64
	startupDone bool
	subs        []chan SessionSnapshot
}

func NewSessionManager(checker SessionChecker, profiles ProfileStore, cfg SessionConfig) *SessionManager {
	return &SessionManager{
		checker:  checker,
		profiles: profiles,
		cfg:      cfg,
		loading:  true,
	}
}

// Start launches the startup resolution, the event consumer, and the safety
// timer. The snapshot settles even if every path stalls: the safety ceiling
// is a liveness guarantee, not a correctness one - the profile may stay nil.
func (m *SessionManager) Start(ctx context.Context, events <-chan SessionEvent) {
	go func() {
		m.runStartup(ctx)
		m.mu.Lock()
		m.startupDone = true
		m.mu.Unlock()
	}()
	go m.consumeEvents(ctx, events)
	go m.safetyTimer(ctx)
}

// ResolveOnce runs the startup path synchronously and returns the settled
// snapshot. Used by the plain HTTP session endpoints, which have no event
// stream to reconcile against.
func (m *SessionManager) ResolveOnce(ctx context.Context) SessionSnapshot {
	m.runStartup(ctx)
	m.mu.Lock()
	m.startupDone = true
	snap := m.snapshotLocked()
	m.mu.Unlock()
	return snap
}

func (m *SessionManager) Snapshot() SessionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *SessionManager) snapshotLocked() SessionSnapshot {
	return SessionSnapshot{User: m.user, Profile: m.profile, Loading: m.loading}
}

// Subscribe returns a channel receiving a snapshot after every state change.
// Sends are non-blocking; a full subscriber channel misses intermediate
// snapshots but always ends on the latest one it could take.
func (m *SessionManager) Subscribe() chan SessionSnapshot {
	ch := make(chan SessionSnapshot, 8)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

func (m *SessionManager) runStartup(ctx context.Context) {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, m.cfg.CheckTimeout)
	sess, err := m.checker.CurrentSession(cctx)
	cancel()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		// Fail open: an unknown session settles as anonymous, not a hang.
		slog.Warn("Session check timed out, treating session as unknown")
		m.commit(gen, nil, nil)
	case errors.Is(err, ErrInvalidRefreshToken):
		slog.Warn("Invalid refresh credential, forcing sign-out")
		if soErr := m.checker.ForceSignOut(ctx); soErr != nil {
			slog.Error("Forced sign-out failed", "error", soErr)
		}
		m.commit(gen, nil, nil)
	case err != nil:
		slog.Error("Session check failed", "error", err)
		m.commit(gen, nil, nil)
	case sess == nil:
		m.commit(gen, nil, nil)
	default:
		profile := m.resolveProfile(ctx, sess)
		m.commit(gen, sess, profile)
	}
}

// resolveProfile fetches the user's profile, creating the default student
// profile on first login. Each round trip is bounded by its own timeout; any
// failure leaves the user authenticated with a nil profile.
func (m *SessionManager) resolveProfile(ctx context.Context, sess *Session) *models.Profile {
	fctx, cancel := context.WithTimeout(ctx, m.cfg.ProfileTimeout)
	profile, err := m.profiles.ProfileByUser(fctx, sess.UserID)
	cancel()
	if err != nil {
		slog.Error("Profile fetch failed", "error", err, "user_id", sess.UserID)
		return nil
	}
	if profile != nil {
		return profile
	}

	profile = &models.Profile{
		ID:   sess.UserID,
		Role: models.RoleStudent,
	}
	cctx, cancel := context.WithTimeout(ctx, m.cfg.ProfileTimeout)
	err = m.profiles.CreateProfile(cctx, profile)
	cancel()
	if err != nil {
		slog.Error("Default profile creation failed", "error", err, "user_id", sess.UserID)
		return nil
	}
	slog.Info("Default profile created on first login", "user_id", sess.UserID)
	return profile
}

// commit installs a resolution if it still carries the current generation.
func (m *SessionManager) commit(gen uint64, user *Session, profile *models.Profile) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		slog.Debug("Stale session resolution discarded", "gen", gen)
		return
	}
	m.user = user
	m.profile = profile
	m.loading = false
	snap := m.snapshotLocked()
	subs := append([]chan SessionSnapshot(nil), m.subs...)
	m.mu.Unlock()
	m.notify(snap, subs)
}

func (m *SessionManager) consumeEvents(ctx context.Context, events <-chan SessionEvent) {
	if events == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			m.handleEvent(ctx, evt)
		}
	}
}

func (m *SessionManager) handleEvent(ctx context.Context, evt SessionEvent) {
	switch evt.Kind {
	case SessionSignedOut:
		m.mu.Lock()
		m.gen++ // invalidate any in-flight resolution
		m.user = nil
		m.profile = nil
		m.loading = false
		snap := m.snapshotLocked()
		subs := append([]chan SessionSnapshot(nil), m.subs...)
		m.mu.Unlock()
		m.notify(snap, subs)

	case SessionSignedIn, SessionRefreshed:
		m.mu.Lock()
		if m.startupDone && !m.loading && m.user != nil && m.user.UserID == evt.UserID {
			// Startup already resolved this user; the event is a no-op.
			m.mu.Unlock()
			slog.Debug("Duplicate session event ignored", "user_id", evt.UserID)
			return
		}
		m.gen++
		gen := m.gen
		m.loading = true
		snap := m.snapshotLocked()
		subs := append([]chan SessionSnapshot(nil), m.subs...)
		m.mu.Unlock()
		m.notify(snap, subs)

		sess := &Session{UserID: evt.UserID, Email: evt.Email}
		profile := m.resolveProfile(ctx, sess)
		m.commit(gen, sess, profile)

	default:
		slog.Warn("Unknown session event kind", "kind", evt.Kind)
	}
}

func (m *SessionManager) safetyTimer(ctx context.Context) {
	timer := time.NewTimer(m.cfg.SafetyCeiling)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	m.mu.Lock()
	if !m.loading {
		m.mu.Unlock()
		return
	}
	m.loading = false
	snap := m.snapshotLocked()
	subs := append([]chan SessionSnapshot(nil), m.subs...)
	m.mu.Unlock()
	slog.Warn("Session bootstrap safety ceiling reached, settling loading state")
	m.notify(snap, subs)
}

func (m *SessionManager) notify(snap SessionSnapshot, subs []chan SessionSnapshot) {
	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
