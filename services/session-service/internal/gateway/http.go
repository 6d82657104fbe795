package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/patcharinz/healthmate-api/shared/auth"
)

// HTTPConfig holds the connection parameters for the remote auth backend.
type HTTPConfig struct {
	BaseURL   string
	APIKey    string
	JWTSecret string
	Audience  string
	Issuer    string
	Timeout   time.Duration
}

type httpGateway struct {
	cfg     HTTPConfig
	httpc   *http.Client
	jwtAuth auth.JWTAuthenticator
	storage SessionStorage
	logger  *zerolog.Logger

	mu      sync.Mutex
	current *Session
}

// NewHTTPGateway creates an AuthGateway over the backend's REST surface.
// Every request is bounded by the configured timeout; a timeout surfaces
// as a recoverable *Error, never a panic.
func NewHTTPGateway(cfg HTTPConfig, storage SessionStorage, logger *zerolog.Logger) (AuthGateway, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway base URL required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("gateway JWT secret required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &httpGateway{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: timeout},
		jwtAuth: auth.NewJWTAuthenticator(cfg.Audience, cfg.Issuer),
		storage: storage,
		logger:  logger,
	}, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         User   `json:"user"`
}

func (t *tokenResponse) session() *Session {
	return &Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(t.ExpiresIn) * time.Second),
		User:         t.User,
	}
}

type signUpResponse struct {
	User    User           `json:"user"`
	Session *tokenResponse `json:"session,omitempty"`
}

func (g *httpGateway) SignUp(
	ctx context.Context,
	email, password string,
	metadata map[string]any,
) (*SignUpResult, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	if len(metadata) > 0 {
		body["data"] = metadata
	}

	var resp signUpResponse
	if err := g.do(ctx, http.MethodPost, "/v1/signup", nil, body, "", &resp); err != nil {
		return nil, err
	}

	result := &SignUpResult{User: resp.User}
	if resp.Session != nil {
		result.Session = resp.Session.session()
		g.setSession(ctx, result.Session)
	}

	return result, nil
}

func (g *httpGateway) SignIn(ctx context.Context, email, password string) (*Session, error) {
	query := url.Values{"grant_type": []string{"password"}}
	body := map[string]any{
		"email":    email,
		"password": password,
	}

	var resp tokenResponse
	if err := g.do(ctx, http.MethodPost, "/v1/token", query, body, "", &resp); err != nil {
		return nil, err
	}

	session := resp.session()
	g.setSession(ctx, session)

	return session, nil
}

func (g *httpGateway) SignOut(ctx context.Context, scope SignOutScope) error {
	g.mu.Lock()
	session := g.current
	g.mu.Unlock()

	if session == nil {
		return nil
	}

	query := url.Values{"scope": []string{string(scope)}}
	err := g.do(ctx, http.MethodPost, "/v1/logout", query, nil, session.AccessToken, nil)
	if err != nil {
		return err
	}

	g.clearSession(ctx)
	return nil
}

func (g *httpGateway) CurrentSession(ctx context.Context) (*Session, error) {
	g.mu.Lock()
	if g.current == nil {
		g.mu.Unlock()
		return nil, nil
	}
	session := *g.current
	g.mu.Unlock()

	claims := &auth.AccessTokenClaims{}
	if _, err := g.jwtAuth.ValidateTokenWithClaims(session.AccessToken, g.cfg.JWTSecret, claims); err != nil {
		// Locally expired or malformed token: no live session.
		g.clearSession(ctx)
		return nil, nil
	}

	// Independently confirm with the backend; the local token check alone
	// cannot observe a server-side revocation.
	var user User
	if err := g.do(ctx, http.MethodGet, "/v1/user", nil, nil, session.AccessToken, &user); err != nil {
		var gwErr *Error
		if errors.As(err, &gwErr) && (gwErr.Status == http.StatusUnauthorized || gwErr.Status == http.StatusForbidden) {
			g.clearSession(ctx)
			return nil, nil
		}
		return nil, err
	}

	// Callers get their own copy; the held session updates under the lock.
	session.User = user
	g.mu.Lock()
	if g.current != nil {
		g.current.User = user
	}
	g.mu.Unlock()

	return &session, nil
}

func (g *httpGateway) CurrentUser(ctx context.Context) (*User, error) {
	g.mu.Lock()
	session := g.current
	g.mu.Unlock()

	if session == nil {
		return nil, &Error{Status: http.StatusUnauthorized, Message: "no active session"}
	}

	var user User
	if err := g.do(ctx, http.MethodGet, "/v1/user", nil, nil, session.AccessToken, &user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (g *httpGateway) LoadSession(ctx context.Context) (*Session, error) {
	blob, err := g.storage.Load(ctx)
	if err != nil {
		return nil, err
	}
	if blob == "" {
		return nil, nil
	}

	var session Session
	if err := json.Unmarshal([]byte(blob), &session); err != nil {
		// An unreadable blob is stale state, not a fatal condition.
		g.logger.Warn().Err(err).Msg("discarding unreadable persisted session")
		_ = g.storage.Clear(ctx)
		return nil, nil
	}

	claims := &auth.AccessTokenClaims{}
	if _, err := g.jwtAuth.ValidateTokenWithClaims(session.AccessToken, g.cfg.JWTSecret, claims); err != nil {
		_ = g.storage.Clear(ctx)
		return nil, nil
	}

	g.mu.Lock()
	g.current = &session
	g.mu.Unlock()

	return &session, nil
}

func (g *httpGateway) UpdateUser(ctx context.Context, params UpdateUserParams) (*User, error) {
	g.mu.Lock()
	session := g.current
	g.mu.Unlock()

	if session == nil {
		return nil, &Error{Status: http.StatusUnauthorized, Message: "no active session"}
	}

	var user User
	if err := g.do(ctx, http.MethodPut, "/v1/user", nil, params, session.AccessToken, &user); err != nil {
		return nil, err
	}

	g.mu.Lock()
	if g.current != nil {
		g.current.User = user
	}
	g.mu.Unlock()

	return &user, nil
}

func (g *httpGateway) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	body := map[string]any{"email": email}
	if redirectTo != "" {
		body["redirect_to"] = redirectTo
	}
	return g.do(ctx, http.MethodPost, "/v1/recover", nil, body, "", nil)
}

func (g *httpGateway) ResendConfirmation(ctx context.Context, channel, address string) error {
	body := map[string]any{
		"type":    channel,
		"address": address,
	}
	return g.do(ctx, http.MethodPost, "/v1/resend", nil, body, "", nil)
}

func (g *httpGateway) SendOTP(ctx context.Context, phone string) error {
	body := map[string]any{"phone": phone}
	return g.do(ctx, http.MethodPost, "/v1/otp", nil, body, "", nil)
}

func (g *httpGateway) VerifyOTP(ctx context.Context, phone, code, purpose string) (*Session, error) {
	body := map[string]any{
		"phone": phone,
		"token": code,
		"type":  purpose,
	}

	var resp tokenResponse
	if err := g.do(ctx, http.MethodPost, "/v1/verify", nil, body, "", &resp); err != nil {
		return nil, err
	}

	session := resp.session()
	g.setSession(ctx, session)

	return session, nil
}

func (g *httpGateway) setSession(ctx context.Context, session *Session) {
	g.mu.Lock()
	g.current = session
	g.mu.Unlock()

	blob, err := json.Marshal(session)
	if err != nil {
		g.logger.Warn().Err(err).Msg("failed to encode session for persistence")
		return
	}
	if err := g.storage.Save(ctx, string(blob)); err != nil {
		g.logger.Warn().Err(err).Msg("failed to persist session")
	}
}

func (g *httpGateway) clearSession(ctx context.Context) {
	g.mu.Lock()
	g.current = nil
	g.mu.Unlock()

	if err := g.storage.Clear(ctx); err != nil {
		g.logger.Warn().Err(err).Msg("failed to clear persisted session")
	}
}

type errorResponse struct {
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
}

func (g *httpGateway) do(
	ctx context.Context,
	method, path string,
	query url.Values,
	body any,
	bearer string,
	out any,
) error {
	endpoint := strings.TrimSuffix(g.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("apikey", g.cfg.APIKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := g.httpc.Do(req)
	if err != nil {
		return &Error{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)

		message := errResp.Message
		if message == "" {
			message = errResp.ErrorDescription
		}
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return &Error{Status: resp.StatusCode, Message: message}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &Error{Message: fmt.Sprintf("malformed response: %v", err)}
		}
	}

	return nil
}
