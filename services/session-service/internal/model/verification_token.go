package model

import "time"

// Verification channels a token can be issued for.
const (
	ChannelEmail = "email"
	ChannelPhone = "phone"
)

// VerificationToken is a short-lived, single-use code gating an email or
// phone confirmation flag. The code itself is stored argon2-hashed; only
// the hash ever reaches the local store.
type VerificationToken struct {
	UserID    string    `json:"user_id"`
	Channel   string    `json:"channel"`
	TokenHash string    `json:"token_hash"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the token is past its expiry at the given time.
func (t *VerificationToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
