package usecase

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/matthewhartstonge/argon2"
	"github.com/rs/zerolog"

	"github.com/patcharinz/healthmate-api/services/session-service/internal/gateway"
	"github.com/patcharinz/healthmate-api/services/session-service/internal/model"
	"github.com/patcharinz/healthmate-api/services/session-service/internal/store"
	"github.com/patcharinz/healthmate-api/shared/mailer"
)

// VerificationService issues and validates short-lived one-time codes
// gating email/phone confirmation, independent per (user, channel).
type VerificationService interface {
	// StoreVerificationToken stores a code for (userID, channel),
	// superseding any prior entry for that pair.
	StoreVerificationToken(ctx context.Context, userID, channel, token string) error

	// VerifyToken validates a submitted code. A matched token is deleted
	// (single use) and the corresponding identity flag is set through the
	// gateway. A mismatched token is kept so the user can retry within
	// the expiry window.
	VerifyToken(ctx context.Context, userID, channel, input string) error

	// IssueEmailToken generates a code, stores it, and emails it.
	IssueEmailToken(ctx context.Context, userID, email string) error

	// GenerateOTP produces a uniform 6-digit code in [100000, 999999].
	GenerateOTP() (string, error)
}

var (
	ErrTokenNotFound = errors.New("verification token not found")
	ErrTokenExpired  = errors.New("verification token has expired")
	ErrTokenMismatch = errors.New("verification token does not match")
)

// DefaultVerificationTokenTTL is how long an issued code stays valid.
const DefaultVerificationTokenTTL = 10 * time.Minute

type verificationService struct {
	store  store.Store
	gw     gateway.AuthGateway
	mailer *mailer.Mailer
	logger *zerolog.Logger
	argon  argon2.Config
	ttl    time.Duration
	now    func() time.Time
}

// NewVerificationService creates a new VerificationService. A zero ttl
// falls back to DefaultVerificationTokenTTL.
func NewVerificationService(
	st store.Store,
	gw gateway.AuthGateway,
	m *mailer.Mailer,
	logger *zerolog.Logger,
	ttl time.Duration,
) VerificationService {
	if ttl <= 0 {
		ttl = DefaultVerificationTokenTTL
	}

	return &verificationService{
		store:  st,
		gw:     gw,
		mailer: m,
		logger: logger,
		argon:  argon2.DefaultConfig(),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *verificationService) StoreVerificationToken(ctx context.Context, userID, channel, token string) error {
	hash, err := s.argon.HashEncoded([]byte(token))
	if err != nil {
		return err
	}

	now := s.now()
	entry := model.VerificationToken{
		UserID:    userID,
		Channel:   channel,
		TokenHash: string(hash),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	blob, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return s.store.Set(ctx, store.VerificationKey(channel, userID), string(blob))
}

func (s *verificationService) VerifyToken(ctx context.Context, userID, channel, input string) error {
	key := store.VerificationKey(channel, userID)

	blob, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return ErrTokenNotFound
		}
		return err
	}

	var entry model.VerificationToken
	if err := json.Unmarshal([]byte(blob), &entry); err != nil {
		return err
	}

	if entry.Expired(s.now()) {
		if err := s.store.Remove(ctx, key); err != nil {
			return err
		}
		return ErrTokenExpired
	}

	ok, err := argon2.VerifyEncoded([]byte(input), []byte(entry.TokenHash))
	if err != nil {
		return err
	}
	if !ok {
		return ErrTokenMismatch
	}

	// Single use: a matched token is consumed before the flag update.
	if err := s.store.Remove(ctx, key); err != nil {
		return err
	}

	return s.markVerified(ctx, channel)
}

func (s *verificationService) markVerified(ctx context.Context, channel string) error {
	verified := true
	params := gateway.UpdateUserParams{}

	switch channel {
	case model.ChannelEmail:
		params.EmailVerified = &verified
	case model.ChannelPhone:
		params.PhoneVerified = &verified
	default:
		return fmt.Errorf("unknown verification channel: %s", channel)
	}

	if _, err := s.gw.UpdateUser(ctx, params); err != nil {
		return err
	}

	return nil
}

func (s *verificationService) IssueEmailToken(ctx context.Context, userID, email string) error {
	code, err := s.GenerateOTP()
	if err != nil {
		return err
	}

	if err := s.StoreVerificationToken(ctx, userID, model.ChannelEmail, code); err != nil {
		return err
	}

	htmlBody := fmt.Sprintf(`
		<p>Hi,</p>
		<p>Your HealthMate verification code is:</p>

		<p><strong>%s</strong></p>

		<p>This code will expire in %s.</p>
		<p>If you did not request this code, you can safely ignore this email.</p>

		<p>Thank you,</p>
		<p>HealthMate Team</p>
	`, code, s.ttl)

	return s.mailer.SendHTML([]string{email}, "Your verification code", htmlBody)
}

func (s *verificationService) GenerateOTP() (string, error) {
	// Uniform over [100000, 999999].
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
