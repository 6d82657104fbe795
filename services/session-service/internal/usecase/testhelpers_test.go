package usecase

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/patcharinz/healthmate-api/services/session-service/internal/gateway"
	"github.com/patcharinz/healthmate-api/services/session-service/internal/model"
	"github.com/patcharinz/healthmate-api/services/session-service/internal/repository"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

// fakeGateway simulates the remote auth backend. remoteActive models the
// server-held truth independently of the client-held session, so tests
// can produce ghost sessions and residual server-side state.
type fakeGateway struct {
	mu sync.Mutex

	held         *gateway.Session
	remoteActive bool

	failSignOuts   int
	nilSessions    int
	signOutCalls   int
	signInErr      error
	updateCalls    []gateway.UpdateUserParams
	resetEmails    []string
	resendChannels []string
	otpPhones      []string
}

func (g *fakeGateway) SignUp(
	_ context.Context,
	email, _ string,
	_ map[string]any,
) (*gateway.SignUpResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return &gateway.SignUpResult{
		User: gateway.User{ID: "user-" + email, Email: email},
	}, nil
}

func (g *fakeGateway) SignIn(_ context.Context, email, _ string) (*gateway.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.signInErr != nil {
		return nil, g.signInErr
	}

	session := &gateway.Session{
		AccessToken:  "token-" + email,
		RefreshToken: "refresh-" + email,
		User:         gateway.User{ID: "user-" + email, Email: email},
	}
	g.held = session
	g.remoteActive = true

	return session, nil
}

func (g *fakeGateway) SignOut(_ context.Context, _ gateway.SignOutScope) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.signOutCalls++
	if g.failSignOuts > 0 {
		g.failSignOuts--
		return &gateway.Error{Status: 503, Message: "sign-out unavailable"}
	}

	g.held = nil
	g.remoteActive = false
	return nil
}

func (g *fakeGateway) CurrentSession(_ context.Context) (*gateway.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Simulates a transient failure to observe a live session.
	if g.nilSessions > 0 {
		g.nilSessions--
		return nil, nil
	}

	if g.held == nil {
		return nil, nil
	}
	if !g.remoteActive {
		g.held = nil
		return nil, nil
	}
	return g.held, nil
}

func (g *fakeGateway) CurrentUser(_ context.Context) (*gateway.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.held == nil || !g.remoteActive {
		return nil, &gateway.Error{Status: 401, Message: "no active session"}
	}
	user := g.held.User
	return &user, nil
}

func (g *fakeGateway) LoadSession(_ context.Context) (*gateway.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held, nil
}

func (g *fakeGateway) UpdateUser(_ context.Context, params gateway.UpdateUserParams) (*gateway.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.updateCalls = append(g.updateCalls, params)

	user := gateway.User{}
	if g.held != nil {
		user = g.held.User
		if params.Email != nil {
			user.Email = *params.Email
			g.held.User = user
		}
	}
	return &user, nil
}

func (g *fakeGateway) ResetPasswordForEmail(_ context.Context, email, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetEmails = append(g.resetEmails, email)
	return nil
}

func (g *fakeGateway) ResendConfirmation(_ context.Context, channel, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resendChannels = append(g.resendChannels, channel)
	return nil
}

func (g *fakeGateway) SendOTP(_ context.Context, phone string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.otpPhones = append(g.otpPhones, phone)
	return nil
}

func (g *fakeGateway) VerifyOTP(_ context.Context, _, _, _ string) (*gateway.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held, nil
}

// dropRemote simulates a server-side revocation the client has not
// observed yet.
func (g *fakeGateway) dropRemote() {
	g.mu.Lock()
	g.remoteActive = false
	g.mu.Unlock()
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*model.Session)}
}

func (r *fakeSessionRepo) CreateSession(_ context.Context, session *model.Session) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session.ID = bson.NewObjectID()
	stored := *session
	r.sessions[session.ID.Hex()] = &stored

	return session, nil
}

func (r *fakeSessionRepo) GetSession(_ context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, mongoNoDocuments{}
	}
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) CloseSession(
	_ context.Context,
	id string,
	params repository.CloseSessionParams,
) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, mongoNoDocuments{}
	}

	logout := params.LogoutTime
	duration := params.DurationMinutes
	session.LogoutTime = &logout
	session.DurationMinutes = &duration

	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) ListUserSessions(
	_ context.Context,
	userID string,
	limit int64,
) ([]*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sessions []*model.Session
	for _, session := range r.sessions {
		if session.UserID == userID {
			copied := *session
			sessions = append(sessions, &copied)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LoginTime.After(sessions[j].LoginTime)
	})

	if limit > 0 && int64(len(sessions)) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

type mongoNoDocuments struct{}

func (mongoNoDocuments) Error() string { return "mongo: no documents in result" }

type fakeActivityRepo struct {
	mu         sync.Mutex
	activities []*model.Activity
}

func (r *fakeActivityRepo) InsertActivity(_ context.Context, activity *model.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities = append(r.activities, activity)
	return nil
}

func (r *fakeActivityRepo) byType(activityType string) []*model.Activity {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*model.Activity
	for _, activity := range r.activities {
		if activity.Type == activityType {
			matched = append(matched, activity)
		}
	}
	return matched
}
