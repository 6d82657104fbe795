package usecase

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/patcharinz/healthmate-api/services/session-service/internal/gateway"
	"github.com/patcharinz/healthmate-api/services/session-service/internal/model"
	"github.com/patcharinz/healthmate-api/services/session-service/internal/store"
	"github.com/patcharinz/healthmate-api/shared/utilities"
)

// AuthManager orchestrates sign-in/up/out against the remote auth
// gateway, mirrors minimal state into the local store, and reconciles
// local against remote truth. Local flags are never authoritative.
type AuthManager interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*gateway.SignUpResult, error)
	SignIn(ctx context.Context, email, password string) (*gateway.Session, error)
	SignOut(ctx context.Context) error
	Logout(ctx context.Context) error
	ManualLogout(ctx context.Context) error
	LogoutAndRedirect(ctx context.Context, nav Navigator) error

	IsLoggedIn(ctx context.Context) (bool, error)
	InitializeAuth(ctx context.Context) (*AuthState, error)
	RefreshAuthState(ctx context.Context) (*gateway.Session, error)
	GetCurrentUser(ctx context.Context) (*gateway.User, error)
	GetSession(ctx context.Context) (*gateway.Session, error)

	ResetPassword(ctx context.Context, email string) error
	ChangePassword(ctx context.Context, newPassword string) error
	UpdateEmail(ctx context.Context, newEmail string) error
	UpdatePhone(ctx context.Context, phone string) error
	SendEmailVerification(ctx context.Context) error
	SendPhoneVerification(ctx context.Context, phone string) error
	VerifyPhone(ctx context.Context, phone, code string) error
	SetAutoLogin(ctx context.Context, enabled bool) error
}

// AuthState is the outcome of the boot-time reconciliation.
type AuthState struct {
	Authenticated bool
	Session       *gateway.Session
}

// Navigator abstracts the UI navigation performed after logout.
type Navigator interface {
	NavigateTo(route string) error
}

// Routes used by LogoutAndRedirect. The fallback must always be
// reachable, so a failed primary navigation still lands somewhere safe.
const (
	RouteLogin = "/login"
	RouteRoot  = "/"
)

// AuthConfig holds the manager's tunables.
type AuthConfig struct {
	PasswordResetRedirectURL string
}

type authManager struct {
	gw       gateway.AuthGateway
	store    store.Store
	tracker  SessionTracker
	activity ActivityLogger
	logger   *zerolog.Logger
	cfg      AuthConfig

	// The local store is device-scoped, so one guard serializes all
	// session-mutating operations: a logout racing a login must not leave
	// the cache or the tracked session in a mixed state.
	mu     sync.Mutex
	flight singleflight.Group
}

// NewAuthManager creates a new AuthManager.
func NewAuthManager(
	gw gateway.AuthGateway,
	st store.Store,
	tracker SessionTracker,
	activity ActivityLogger,
	logger *zerolog.Logger,
	cfg AuthConfig,
) AuthManager {
	return &authManager{
		gw:       gw,
		store:    st,
		tracker:  tracker,
		activity: activity,
		logger:   logger,
		cfg:      cfg,
	}
}

func (m *authManager) SignUp(
	ctx context.Context,
	email, password string,
	metadata map[string]any,
) (*gateway.SignUpResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result, err := m.gw.SignUp(ctx, email, password, metadata)
	if err != nil {
		return nil, err
	}

	// Sign-up success is distinct from being authenticated: the backend
	// may still require email confirmation, so is_logged_in stays unset.
	if err := m.store.Set(ctx, store.KeyAuthUserID, result.User.ID); err != nil {
		return nil, err
	}
	if err := m.store.Set(ctx, store.KeyUserEmail, result.User.Email); err != nil {
		return nil, err
	}
	if err := m.store.Set(ctx, store.KeyLoginTimestamp, formatTimestamp(time.Now())); err != nil {
		return nil, err
	}

	return result, nil
}

func (m *authManager) SignIn(ctx context.Context, email, password string) (*gateway.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.gw.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	if err := m.writeAuthFlags(ctx, session.User.ID, session.User.Email); err != nil {
		return nil, err
	}

	// Session tracking is analytics; its failure must not fail sign-in.
	var deviceInfo *string
	if info, ok := utilities.DeviceInfoFromContext(ctx); ok {
		deviceInfo = &info
	}
	if _, err := m.tracker.StartSession(ctx, session.User.ID, deviceInfo); err != nil {
		m.logger.Warn().Err(err).Str("user_id", session.User.ID).Msg("failed to start tracked session")
	}

	return session, nil
}

// SignOut invalidates the device's session only and purges local state.
func (m *authManager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.endTrackedSession(ctx)

	if err := m.gw.SignOut(ctx, gateway.ScopeLocal); err != nil {
		m.logger.Warn().Err(err).Msg("remote sign-out failed")
	}

	return m.purgeLocal(ctx)
}

// Logout is the comprehensive variant: global remote invalidation, local
// purge, then verification with a single compensating retry. It reports
// success whenever the local purge completed, so the UI is never stranded
// claiming authentication when the user intended to leave.
func (m *authManager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.logoutLocked(ctx)
}

func (m *authManager) logoutLocked(ctx context.Context) error {
	// The tracked session must close before the purge removes the
	// current session pointer.
	m.endTrackedSession(ctx)

	if err := m.gw.SignOut(ctx, gateway.ScopeGlobal); err != nil {
		m.logger.Warn().Err(err).Msg("remote sign-out failed, continuing with local purge")
	}

	if err := m.purgeLocal(ctx); err != nil {
		return err
	}

	// Verification: the first phase is not assumed to have succeeded.
	// A residual remote session is retried exactly once, against an
	// already-cleared local cache.
	session, err := m.gw.CurrentSession(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("could not verify remote sign-out")
		return nil
	}
	if session != nil {
		m.logger.Warn().Msg("remote session still active after sign-out, retrying")
		if err := m.gw.SignOut(ctx, gateway.ScopeGlobal); err != nil {
			m.logger.Warn().Err(err).Msg("sign-out retry failed, residual remote session may remain")
		}
	}

	return nil
}

func (m *authManager) ManualLogout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Disable auto-login first so an interrupted logout cannot silently
	// re-authenticate on the next launch.
	if err := m.store.Set(ctx, store.KeyAutoLogin, "false"); err != nil {
		return err
	}

	return m.logoutLocked(ctx)
}

func (m *authManager) LogoutAndRedirect(ctx context.Context, nav Navigator) error {
	if err := m.Logout(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("logout failed before redirect")
	}

	// Landing somewhere safe is part of the logout contract, so
	// navigation is attempted unconditionally, with a fallback target.
	if err := nav.NavigateTo(RouteLogin); err != nil {
		m.logger.Warn().Err(err).Str("route", RouteLogin).Msg("primary navigation failed")
		return nav.NavigateTo(RouteRoot)
	}

	return nil
}

// IsLoggedIn returns true only when the local flags claim authentication
// and a live remote session is independently confirmed. The conjunction
// is an invariant check, not an optimization.
func (m *authManager) IsLoggedIn(ctx context.Context) (bool, error) {
	flags, err := m.readAuthFlags(ctx)
	if err != nil {
		return false, err
	}
	if !flags.IsLoggedIn || !flags.AutoLogin {
		return false, nil
	}

	session, err := m.currentSessionShared(ctx)
	if err != nil {
		return false, err
	}
	if session == nil {
		m.reconcilePurge(ctx)
		return false, nil
	}

	return true, nil
}

// InitializeAuth runs at process start: it restores the persisted gateway
// session and reconciles it against the local flags, purging the cache
// when the flags claim authentication that the backend no longer backs.
func (m *authManager) InitializeAuth(ctx context.Context) (*AuthState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.gw.LoadSession(ctx); err != nil {
		return nil, err
	}

	flags, err := m.readAuthFlags(ctx)
	if err != nil {
		return nil, err
	}
	if !flags.IsLoggedIn || !flags.AutoLogin {
		return &AuthState{Authenticated: false}, nil
	}

	session, err := m.gw.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		// Ghost session: local flags with no remote backing.
		m.logger.Info().Str("user_id", flags.UserID).Msg("purging ghost session state")
		if err := m.purgeLocal(ctx); err != nil {
			return nil, err
		}
		return &AuthState{Authenticated: false}, nil
	}

	return &AuthState{Authenticated: true, Session: session}, nil
}

// RefreshAuthState forces a fresh remote fetch irrespective of any cached
// state, to recover from suspected staleness.
func (m *authManager) RefreshAuthState(ctx context.Context) (*gateway.Session, error) {
	result, err, _ := m.flight.Do("refresh", func() (any, error) {
		session, err := m.gw.CurrentSession(ctx)
		if err != nil {
			return nil, err
		}
		if session == nil {
			m.reconcilePurge(ctx)
			return (*gateway.Session)(nil), nil
		}

		if err := m.store.Set(ctx, store.KeyUserEmail, session.User.Email); err != nil {
			m.logger.Warn().Err(err).Msg("failed to refresh cached email")
		}

		return session, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*gateway.Session), nil
}

func (m *authManager) GetCurrentUser(ctx context.Context) (*gateway.User, error) {
	return m.gw.CurrentUser(ctx)
}

func (m *authManager) GetSession(ctx context.Context) (*gateway.Session, error) {
	return m.currentSessionShared(ctx)
}

func (m *authManager) ResetPassword(ctx context.Context, email string) error {
	return m.gw.ResetPasswordForEmail(ctx, email, m.cfg.PasswordResetRedirectURL)
}

func (m *authManager) ChangePassword(ctx context.Context, newPassword string) error {
	_, err := m.gw.UpdateUser(ctx, gateway.UpdateUserParams{Password: &newPassword})
	return err
}

func (m *authManager) UpdateEmail(ctx context.Context, newEmail string) error {
	if _, err := m.gw.UpdateUser(ctx, gateway.UpdateUserParams{Email: &newEmail}); err != nil {
		return err
	}

	return m.store.Set(ctx, store.KeyUserEmail, newEmail)
}

func (m *authManager) UpdatePhone(ctx context.Context, phone string) error {
	_, err := m.gw.UpdateUser(ctx, gateway.UpdateUserParams{Phone: &phone})
	return err
}

func (m *authManager) SendEmailVerification(ctx context.Context) error {
	email, err := m.store.Get(ctx, store.KeyUserEmail)
	if err != nil {
		if !errors.Is(err, store.ErrKeyNotFound) {
			return err
		}
		user, err := m.gw.CurrentUser(ctx)
		if err != nil {
			return err
		}
		email = user.Email
	}

	return m.gw.ResendConfirmation(ctx, model.ChannelEmail, email)
}

func (m *authManager) SendPhoneVerification(ctx context.Context, phone string) error {
	return m.gw.SendOTP(ctx, phone)
}

func (m *authManager) VerifyPhone(ctx context.Context, phone, code string) error {
	_, err := m.gw.VerifyOTP(ctx, phone, code, gateway.OTPPurposePhoneChange)
	return err
}

func (m *authManager) SetAutoLogin(ctx context.Context, enabled bool) error {
	return m.store.Set(ctx, store.KeyAutoLogin, strconv.FormatBool(enabled))
}

// currentSessionShared collapses concurrent remote session fetches into a
// single backend round trip.
func (m *authManager) currentSessionShared(ctx context.Context) (*gateway.Session, error) {
	result, err, _ := m.flight.Do("session", func() (any, error) {
		return m.gw.CurrentSession(ctx)
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	session, _ := result.(*gateway.Session)
	return session, nil
}

func (m *authManager) writeAuthFlags(ctx context.Context, userID, email string) error {
	pairs := [][2]string{
		{store.KeyAuthUserID, userID},
		{store.KeyUserEmail, email},
		{store.KeyLoginTimestamp, formatTimestamp(time.Now())},
		{store.KeyIsLoggedIn, "true"},
		{store.KeyAutoLogin, "true"},
	}

	for _, pair := range pairs {
		if err := m.store.Set(ctx, pair[0], pair[1]); err != nil {
			return err
		}
	}

	return nil
}

func (m *authManager) readAuthFlags(ctx context.Context) (*model.AuthFlags, error) {
	flags := &model.AuthFlags{}

	read := func(key string) (string, error) {
		value, err := m.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, store.ErrKeyNotFound) {
				return "", nil
			}
			return "", err
		}
		return value, nil
	}

	var err error
	if flags.UserID, err = read(store.KeyAuthUserID); err != nil {
		return nil, err
	}
	if flags.Email, err = read(store.KeyUserEmail); err != nil {
		return nil, err
	}

	raw, err := read(store.KeyLoginTimestamp)
	if err != nil {
		return nil, err
	}
	if raw != "" {
		if millis, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			flags.LoginTimestamp = time.UnixMilli(millis)
		}
	}

	if raw, err = read(store.KeyIsLoggedIn); err != nil {
		return nil, err
	}
	flags.IsLoggedIn = raw == "true"

	if raw, err = read(store.KeyAutoLogin); err != nil {
		return nil, err
	}
	flags.AutoLogin = raw == "true"

	return flags, nil
}

// purgeLocal removes every key the subsystem owns: the statically
// enumerated registry plus any key under its owned prefixes. No
// substring matching against foreign keys.
func (m *authManager) purgeLocal(ctx context.Context) error {
	var firstErr error

	for _, key := range store.PurgeKeys {
		if err := m.store.Remove(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	keys, err := m.store.Keys(ctx)
	if err != nil {
		if firstErr == nil {
			firstErr = err
		}
		return firstErr
	}

	for _, key := range keys {
		for _, prefix := range store.OwnedPrefixes {
			if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
				if err := m.store.Remove(ctx, key); err != nil && firstErr == nil {
					firstErr = err
				}
				break
			}
		}
	}

	return firstErr
}

// reconcilePurge drops local flags after a reconciliation pass found them
// claiming authentication without a remote session backing them. The
// observation happened outside the lock, so the remote state is checked
// again under it: a sign-in that raced the observation keeps its flags.
func (m *authManager) reconcilePurge(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.gw.CurrentSession(ctx)
	if err == nil && session != nil {
		return
	}

	if err := m.purgeLocal(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("failed to purge stale auth flags")
	}
}

func (m *authManager) endTrackedSession(ctx context.Context) {
	userID, err := m.store.Get(ctx, store.KeyAuthUserID)
	if err != nil {
		if !errors.Is(err, store.ErrKeyNotFound) {
			m.logger.Warn().Err(err).Msg("failed to read user id for session close")
		}
		return
	}

	if _, err := m.tracker.EndSession(ctx, userID); err != nil {
		if errors.Is(err, ErrNoActiveSession) {
			m.logger.Debug().Str("user_id", userID).Msg("no tracked session to close")
			return
		}
		m.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to close tracked session")
	}
}

func formatTimestamp(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
