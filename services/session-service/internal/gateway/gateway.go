package gateway

import (
	"context"
	"fmt"
	"time"
)

// User is the identity record held by the remote auth backend. The
// session subsystem never mutates it except through gateway calls.
type User struct {
	ID            string         `json:"id"`
	Email         string         `json:"email"`
	Phone         string         `json:"phone,omitempty"`
	EmailVerified bool           `json:"email_verified"`
	PhoneVerified bool           `json:"phone_verified"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Session is a live authenticated session issued by the gateway.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// SignUpResult carries the outcome of a sign-up. Session is nil when the
// backend requires email confirmation before issuing tokens; callers must
// treat sign-up success as distinct from being authenticated.
type SignUpResult struct {
	User    User
	Session *Session
}

// SignOutScope selects which sessions a sign-out invalidates.
type SignOutScope string

const (
	ScopeLocal  SignOutScope = "local"
	ScopeGlobal SignOutScope = "global"
)

// OTP purposes accepted by VerifyOTP.
const (
	OTPPurposeSignIn      = "sms"
	OTPPurposePhoneChange = "phone_change"
)

// UpdateUserParams defines the optional identity fields to update.
// Only the fields that are not nil will be sent.
type UpdateUserParams struct {
	Email         *string `json:"email,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	Password      *string `json:"password,omitempty"`
	EmailVerified *bool   `json:"email_verified,omitempty"`
	PhoneVerified *bool   `json:"phone_verified,omitempty"`
}

// AuthGateway is the remote identity backend consumed by the session
// subsystem. Implementations hold the current session and persist it so
// a restart can restore it via LoadSession.
type AuthGateway interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*SignUpResult, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, scope SignOutScope) error

	// CurrentSession revalidates the held session against the backend and
	// returns it, or (nil, nil) when no live session exists.
	CurrentSession(ctx context.Context) (*Session, error)
	CurrentUser(ctx context.Context) (*User, error)

	// LoadSession restores a previously persisted session, or (nil, nil)
	// when none was stored.
	LoadSession(ctx context.Context) (*Session, error)

	UpdateUser(ctx context.Context, params UpdateUserParams) (*User, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	ResendConfirmation(ctx context.Context, channel, address string) error
	SendOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code, purpose string) (*Session, error)
}

// Error is a rejection from the remote auth backend. Message carries the
// backend's literal error message so the UI can surface it unchanged.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("auth gateway: %s", e.Message)
	}
	return fmt.Sprintf("auth gateway: %s (status %d)", e.Message, e.Status)
}
