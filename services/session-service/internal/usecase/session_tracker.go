package usecase

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/patcharinz/healthmate-api/services/session-service/internal/model"
	"github.com/patcharinz/healthmate-api/services/session-service/internal/repository"
	"github.com/patcharinz/healthmate-api/services/session-service/internal/store"
)

// SessionTracker records login/logout intervals in the analytics store.
type SessionTracker interface {
	// StartSession creates an active session row and remembers its
	// server-assigned id as the current session pointer.
	StartSession(ctx context.Context, userID string, deviceInfo *string) (*model.Session, error)

	// EndSession closes the session the current pointer refers to,
	// computing the rounded duration in minutes.
	EndSession(ctx context.Context, userID string) (*model.Session, error)

	// GetUserSessions returns a user's sessions, most recent first.
	GetUserSessions(ctx context.Context, userID string, limit int64) ([]*model.Session, error)
}

// ErrNoActiveSession is returned by EndSession when no session pointer
// exists, e.g. after a crash or a double logout.
var ErrNoActiveSession = errors.New("no active session")

type sessionTracker struct {
	sessionRepo repository.SessionRepository
	store       store.Store
	activity    ActivityLogger
	logger      *zerolog.Logger
	now         func() time.Time
}

// NewSessionTracker creates a new SessionTracker.
func NewSessionTracker(
	sessionRepo repository.SessionRepository,
	st store.Store,
	activity ActivityLogger,
	logger *zerolog.Logger,
) SessionTracker {
	return &sessionTracker{
		sessionRepo: sessionRepo,
		store:       st,
		activity:    activity,
		logger:      logger,
		now:         time.Now,
	}
}

func (t *sessionTracker) StartSession(
	ctx context.Context,
	userID string,
	deviceInfo *string,
) (*model.Session, error) {
	session, err := t.sessionRepo.CreateSession(ctx, &model.Session{
		UserID:     userID,
		LoginTime:  t.now(),
		DeviceInfo: deviceInfo,
	})
	if err != nil {
		return nil, err
	}

	// The record id is server-assigned, so the pointer can only be
	// written after the insert.
	if err := t.store.Set(ctx, store.KeyCurrentSessionID, session.ID.Hex()); err != nil {
		return nil, err
	}

	t.activity.Log(userID, model.ActivityLogin, map[string]any{
		"session_id": session.ID.Hex(),
	})

	return session, nil
}

func (t *sessionTracker) EndSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := t.store.Get(ctx, store.KeyCurrentSessionID)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, ErrNoActiveSession
		}
		return nil, err
	}

	session, err := t.sessionRepo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	logoutTime := t.now()
	duration := durationMinutes(session.LoginTime, logoutTime)

	closed, err := t.sessionRepo.CloseSession(ctx, sessionID, repository.CloseSessionParams{
		LogoutTime:      logoutTime,
		DurationMinutes: duration,
	})
	if err != nil {
		return nil, err
	}

	if err := t.store.Remove(ctx, store.KeyCurrentSessionID); err != nil {
		t.logger.Warn().Err(err).Msg("failed to clear current session pointer")
	}

	t.activity.Log(userID, model.ActivityLogout, map[string]any{
		"session_id":       sessionID,
		"duration_minutes": duration,
	})

	return closed, nil
}

func (t *sessionTracker) GetUserSessions(
	ctx context.Context,
	userID string,
	limit int64,
) ([]*model.Session, error) {
	return t.sessionRepo.ListUserSessions(ctx, userID, limit)
}

// durationMinutes rounds half-up to whole minutes: 89s -> 1, 90s -> 2.
// Analytics consumers depend on this exact rounding.
func durationMinutes(loginTime, logoutTime time.Time) int64 {
	return int64(math.Round(logoutTime.Sub(loginTime).Minutes()))
}
