package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/patcharinz/healthmate-api/services/session-service/internal/store"
)

type authFixture struct {
	manager AuthManager
	gw      *fakeGateway
	store   store.Store
	repo    *fakeSessionRepo
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	gw := &fakeGateway{}
	localStore := store.NewMemory()
	sessionRepo := newFakeSessionRepo()
	activity := NewActivityLogger(&fakeActivityRepo{}, testLogger(), 16)
	t.Cleanup(activity.Close)

	tracker := NewSessionTracker(sessionRepo, localStore, activity, testLogger())
	manager := NewAuthManager(gw, localStore, tracker, activity, testLogger(), AuthConfig{
		PasswordResetRedirectURL: "https://app.healthmate.example/reset",
	})

	return &authFixture{manager: manager, gw: gw, store: localStore, repo: sessionRepo}
}

func (f *authFixture) mustGet(t *testing.T, key string) string {
	t.Helper()
	value, err := f.store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get %q returned error: %v", key, err)
	}
	return value
}

func (f *authFixture) assertAbsent(t *testing.T, key string) {
	t.Helper()
	if _, err := f.store.Get(context.Background(), key); !errors.Is(err, store.ErrKeyNotFound) {
		t.Fatalf("expected %q to be absent, got %v", key, err)
	}
}

func TestSignInSetsFlagsAndConfirmsLogin(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	session, err := f.manager.SignIn(ctx, "user@example.com", "Secret123")
	if err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	if session.User.ID == "" {
		t.Fatal("expected user id on session")
	}

	if got := f.mustGet(t, store.KeyIsLoggedIn); got != "true" {
		t.Fatalf("is_logged_in = %q, want true", got)
	}
	if got := f.mustGet(t, store.KeyAutoLogin); got != "true" {
		t.Fatalf("auto_login = %q, want true", got)
	}
	if got := f.mustGet(t, store.KeyUserEmail); got != "user@example.com" {
		t.Fatalf("user_email = %q", got)
	}
	f.mustGet(t, store.KeyAuthUserID)
	f.mustGet(t, store.KeyLoginTimestamp)

	loggedIn, err := f.manager.IsLoggedIn(ctx)
	if err != nil {
		t.Fatalf("IsLoggedIn returned error: %v", err)
	}
	if !loggedIn {
		t.Fatal("expected IsLoggedIn true after sign-in")
	}
}

func TestSignUpDoesNotImplyAuthenticated(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	result, err := f.manager.SignUp(ctx, "new@example.com", "Secret123", map[string]any{"plan": "basic"})
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if result.User.Email != "new@example.com" {
		t.Fatalf("unexpected user: %+v", result.User)
	}

	f.mustGet(t, store.KeyAuthUserID)
	f.mustGet(t, store.KeyUserEmail)
	f.assertAbsent(t, store.KeyIsLoggedIn)

	loggedIn, err := f.manager.IsLoggedIn(ctx)
	if err != nil {
		t.Fatalf("IsLoggedIn returned error: %v", err)
	}
	if loggedIn {
		t.Fatal("sign-up success must not imply authentication")
	}
}

func TestLogoutPurgesEveryOwnedKey(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	if _, err := f.manager.SignIn(ctx, "user@example.com", "Secret123"); err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}

	// Seed the cache-invalidation keys and a per-user verification entry
	// that the sweep must also remove.
	for _, key := range []string{store.KeyUserProfileData, store.KeyCachedProfilePicture, store.KeyOnboardingCompleted} {
		if err := f.store.Set(ctx, key, "cached"); err != nil {
			t.Fatalf("Set %q returned error: %v", key, err)
		}
	}
	if err := f.store.Set(ctx, store.VerificationKey("email", "user-user@example.com"), "{}"); err != nil {
		t.Fatalf("Set verification key returned error: %v", err)
	}
	if err := f.store.Set(ctx, "unrelated_feature_flag", "on"); err != nil {
		t.Fatalf("Set unrelated key returned error: %v", err)
	}

	if err := f.manager.Logout(ctx); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}

	for _, key := range store.PurgeKeys {
		f.assertAbsent(t, key)
	}
	f.assertAbsent(t, store.VerificationKey("email", "user-user@example.com"))

	// Keys outside the registry are not ours to delete.
	if got := f.mustGet(t, "unrelated_feature_flag"); got != "on" {
		t.Fatalf("unrelated key modified: %q", got)
	}

	loggedIn, err := f.manager.IsLoggedIn(ctx)
	if err != nil {
		t.Fatalf("IsLoggedIn returned error: %v", err)
	}
	if loggedIn {
		t.Fatal("expected IsLoggedIn false after logout")
	}
}

func TestLogoutRetriesResidualRemoteSession(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	if _, err := f.manager.SignIn(ctx, "user@example.com", "Secret123"); err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}

	// First remote sign-out fails, leaving a residual server-side
	// session; the compensation pass must retry exactly once.
	f.gw.failSignOuts = 1

	if err := f.manager.Logout(ctx); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if f.gw.signOutCalls != 2 {
		t.Fatalf("signOutCalls = %d, want 2", f.gw.signOutCalls)
	}

	session, err := f.gw.CurrentSession(ctx)
	if err != nil {
		t.Fatalf("CurrentSession returned error: %v", err)
	}
	if session != nil {
		t.Fatal("expected remote session cleared by retry")
	}
}

func TestLogoutReportsSuccessWhenRetryAlsoFails(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	if _, err := f.manager.SignIn(ctx, "user@example.com", "Secret123"); err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}

	f.gw.failSignOuts = 2

	// Local purge completed, so the operation reports success even
	// though the remote session survived both attempts.
	if err := f.manager.Logout(ctx); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if f.gw.signOutCalls != 2 {
		t.Fatalf("signOutCalls = %d, want 2", f.gw.signOutCalls)
	}
	for _, key := range store.PurgeKeys {
		f.assertAbsent(t, key)
	}
}

func TestInitializeAuthPurgesGhostSession(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	if _, err := f.manager.SignIn(ctx, "user@example.com", "Secret123"); err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}

	// Server-side revocation the client never observed.
	f.gw.dropRemote()

	state, err := f.manager.InitializeAuth(ctx)
	if err != nil {
		t.Fatalf("InitializeAuth returned error: %v", err)
	}
	if state.Authenticated {
		t.Fatal("expected unauthenticated state for ghost session")
	}

	for _, key := range store.PurgeKeys {
		f.assertAbsent(t, key)
	}
}

func TestInitializeAuthConfirmsLiveSession(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	if _, err := f.manager.SignIn(ctx, "user@example.com", "Secret123"); err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}

	state, err := f.manager.InitializeAuth(ctx)
	if err != nil {
		t.Fatalf("InitializeAuth returned error: %v", err)
	}
	if !state.Authenticated {
		t.Fatal("expected authenticated state")
	}
	if state.Session == nil || state.Session.User.Email != "user@example.com" {
		t.Fatalf("unexpected session: %+v", state.Session)
	}
}

func TestIsLoggedInPurgesOnRemoteMismatch(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	if _, err := f.manager.SignIn(ctx, "user@example.com", "Secret123"); err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}

	f.gw.dropRemote()

	loggedIn, err := f.manager.IsLoggedIn(ctx)
	if err != nil {
		t.Fatalf("IsLoggedIn returned error: %v", err)
	}
	if loggedIn {
		t.Fatal("local flags alone are never sufficient")
	}
	f.assertAbsent(t, store.KeyIsLoggedIn)
}

func TestReconcilePurgeRechecksRemoteBeforeDeleting(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	if _, err := f.manager.SignIn(ctx, "user@example.com", "Secret123"); err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}

	// The first remote observation misses the live session; the purge
	// must re-check before deleting fresh flags out from under it.
	f.gw.nilSessions = 1

	loggedIn, err := f.manager.IsLoggedIn(ctx)
	if err != nil {
		t.Fatalf("IsLoggedIn returned error: %v", err)
	}
	if loggedIn {
		t.Fatal("expected conservative false on the transient miss")
	}

	if got := f.mustGet(t, store.KeyIsLoggedIn); got != "true" {
		t.Fatalf("is_logged_in = %q, fresh flags must survive the re-check", got)
	}

	loggedIn, err = f.manager.IsLoggedIn(ctx)
	if err != nil {
		t.Fatalf("IsLoggedIn returned error: %v", err)
	}
	if !loggedIn {
		t.Fatal("expected IsLoggedIn true once the session is observed again")
	}
}

func TestSetAutoLoginDisablesLogin(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	if _, err := f.manager.SignIn(ctx, "user@example.com", "Secret123"); err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	if err := f.manager.SetAutoLogin(ctx, false); err != nil {
		t.Fatalf("SetAutoLogin returned error: %v", err)
	}

	loggedIn, err := f.manager.IsLoggedIn(ctx)
	if err != nil {
		t.Fatalf("IsLoggedIn returned error: %v", err)
	}
	if loggedIn {
		t.Fatal("expected IsLoggedIn false with auto_login disabled")
	}
}

func TestUpdateEmailRefreshesCache(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	if _, err := f.manager.SignIn(ctx, "user@example.com", "Secret123"); err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	if err := f.manager.UpdateEmail(ctx, "renamed@example.com"); err != nil {
		t.Fatalf("UpdateEmail returned error: %v", err)
	}

	if got := f.mustGet(t, store.KeyUserEmail); got != "renamed@example.com" {
		t.Fatalf("user_email = %q, want renamed@example.com", got)
	}
}

type fakeNavigator struct {
	routes  []string
	failOn  string
	lastErr error
}

func (n *fakeNavigator) NavigateTo(route string) error {
	n.routes = append(n.routes, route)
	if route == n.failOn {
		n.lastErr = errors.New("route unavailable")
		return n.lastErr
	}
	return nil
}

func TestLogoutAndRedirectFallsBack(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	if _, err := f.manager.SignIn(ctx, "user@example.com", "Secret123"); err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}

	nav := &fakeNavigator{failOn: RouteLogin}
	if err := f.manager.LogoutAndRedirect(ctx, nav); err != nil {
		t.Fatalf("LogoutAndRedirect returned error: %v", err)
	}

	if len(nav.routes) != 2 || nav.routes[0] != RouteLogin || nav.routes[1] != RouteRoot {
		t.Fatalf("expected fallback navigation, got %v", nav.routes)
	}
}

func TestEndToEndSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	if _, err := f.manager.SignUp(ctx, "user@example.com", "Secret123", nil); err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}

	before := time.Now()
	session, err := f.manager.SignIn(ctx, "user@example.com", "Secret123")
	if err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}

	loggedIn, err := f.manager.IsLoggedIn(ctx)
	if err != nil || !loggedIn {
		t.Fatalf("IsLoggedIn = %v, %v; want true", loggedIn, err)
	}

	records, err := f.repo.ListUserSessions(ctx, session.User.ID, 0)
	if err != nil {
		t.Fatalf("ListUserSessions returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 session record, got %d", len(records))
	}
	active := records[0]
	if active.LoginTime.Before(before.Add(-time.Second)) || active.LoginTime.After(time.Now().Add(time.Second)) {
		t.Fatalf("login time not near now: %v", active.LoginTime)
	}
	if active.LogoutTime != nil {
		t.Fatal("fresh session must have no logout time")
	}

	if err := f.manager.Logout(ctx); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}

	records, err = f.repo.ListUserSessions(ctx, session.User.ID, 0)
	if err != nil {
		t.Fatalf("ListUserSessions returned error: %v", err)
	}
	closed := records[0]
	if closed.LogoutTime == nil {
		t.Fatal("expected logout time after logout")
	}
	if closed.DurationMinutes == nil || *closed.DurationMinutes < 0 {
		t.Fatalf("expected non-negative duration, got %v", closed.DurationMinutes)
	}

	loggedIn, err = f.manager.IsLoggedIn(ctx)
	if err != nil || loggedIn {
		t.Fatalf("IsLoggedIn = %v, %v; want false", loggedIn, err)
	}
	for _, key := range store.PurgeKeys {
		f.assertAbsent(t, key)
	}
}
