package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/qforge/qbank/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestAuth(t *testing.T) (*AuthService, *repository.Repository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	repo := repository.New(db)
	require.NoError(t, repo.AutoMigrate())
	return NewAuthService(repo, nil, "test-secret"), repo
}

func TestSignupThenLogin(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	signup, err := auth.Signup(ctx, "user@example.com", "hunter22pass", "Test User")
	require.NoError(t, err)
	require.NotNil(t, signup.User)
	assert.NotEmpty(t, signup.AccessToken)
	assert.NotEmpty(t, signup.RefreshToken)

	login, err := auth.Login(ctx, "user@example.com", "hunter22pass")
	require.NoError(t, err)
	assert.Equal(t, signup.User.ID, login.User.ID)
}

func TestSignupDoesNotCreateProfile(t *testing.T) {
	auth, repo := newTestAuth(t)
	ctx := context.Background()

	signup, err := auth.Signup(ctx, "fresh@example.com", "hunter22pass", "Fresh User")
	require.NoError(t, err)

	// Profile creation belongs to the session bootstrap, not signup.
	profile, err := repo.ProfileByUser(ctx, signup.User.ID)
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestDuplicateSignupRejected(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	_, err := auth.Signup(ctx, "dup@example.com", "hunter22pass", "First")
	require.NoError(t, err)

	_, err = auth.Signup(ctx, "dup@example.com", "otherpassword", "Second")
	assert.Error(t, err)
}

func TestLoginWrongPassword(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	_, err := auth.Signup(ctx, "user@example.com", "hunter22pass", "Test User")
	require.NoError(t, err)

	_, err = auth.Login(ctx, "user@example.com", "wrong")
	assert.Error(t, err)
}

func TestVerifyAccessToken(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	signup, err := auth.Signup(ctx, "user@example.com", "hunter22pass", "Test User")
	require.NoError(t, err)

	user, err := auth.VerifyAccessToken(ctx, signup.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, signup.User.ID, user.ID)

	_, err = auth.VerifyAccessToken(ctx, "not-a-token")
	assert.Error(t, err)
}

func TestRefreshUnknownTokenIsInvalid(t *testing.T) {
	auth, _ := newTestAuth(t)

	_, err := auth.RefreshToken(context.Background(), "bogus-token")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLogoutInvalidatesRefreshToken(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	signup, err := auth.Signup(ctx, "user@example.com", "hunter22pass", "Test User")
	require.NoError(t, err)

	_, err = auth.RefreshToken(ctx, signup.RefreshToken)
	require.NoError(t, err)

	require.NoError(t, auth.Logout(ctx, signup.User.ID))

	_, err = auth.RefreshToken(ctx, signup.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLoginPublishesSessionEvent(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	repo := repository.New(db)
	require.NoError(t, repo.AutoMigrate())

	broker := NewEventBroker()
	events := broker.Subscribe()
	auth := NewAuthService(repo, broker, "test-secret")

	signup, err := auth.Signup(context.Background(), "user@example.com", "hunter22pass", "Test User")
	require.NoError(t, err)

	select {
	case evt := <-events:
		assert.Equal(t, SessionSignedIn, evt.Kind)
		assert.Equal(t, signup.User.ID, evt.UserID)
	case <-time.After(time.Second):
		t.Fatal("no session event published")
	}
}

func requestWithCookies(cookies map[string]string) *http.Request {
	r := httptest.NewRequest("GET", "/api/v1/session", nil)
	for name, value := range cookies {
		r.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	return r
}

func TestRequestCheckerWithAccessCookie(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	signup, err := auth.Signup(ctx, "user@example.com", "hunter22pass", "Test User")
	require.NoError(t, err)

	checker := auth.RequestChecker(requestWithCookies(map[string]string{
		"access_token": signup.AccessToken,
	}))

	session, err := checker.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, signup.User.ID, session.UserID)
	assert.Equal(t, "user@example.com", session.Email)
}

func TestRequestCheckerFallsBackToRefresh(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	signup, err := auth.Signup(ctx, "user@example.com", "hunter22pass", "Test User")
	require.NoError(t, err)

	checker := auth.RequestChecker(requestWithCookies(map[string]string{
		"refresh_token": signup.RefreshToken,
	}))

	session, err := checker.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, signup.User.ID, session.UserID)
}

func TestRequestCheckerNoCredentialsIsAnonymous(t *testing.T) {
	auth, _ := newTestAuth(t)

	checker := auth.RequestChecker(requestWithCookies(nil))
	session, err := checker.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestRequestCheckerInvalidRefresh(t *testing.T) {
	auth, _ := newTestAuth(t)

	checker := auth.RequestChecker(requestWithCookies(map[string]string{
		"refresh_token": "stale-token",
	}))

	_, err := checker.CurrentSession(context.Background())
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	// ForceSignOut on credentials the backend never stored is a no-op.
	assert.NoError(t, checker.ForceSignOut(context.Background()))
}

func TestForceSignOutDeletesStoredRefresh(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	signup, err := auth.Signup(ctx, "user@example.com", "hunter22pass", "Test User")
	require.NoError(t, err)

	checker := auth.RequestChecker(requestWithCookies(map[string]string{
		"refresh_token": signup.RefreshToken,
	}))
	require.NoError(t, checker.ForceSignOut(ctx))

	_, err = auth.RefreshToken(ctx, signup.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}
