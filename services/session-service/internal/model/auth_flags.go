package model

import "time"

// AuthFlags is the client-cached mirror of authentication state. It is a
// performance cache only and is always subordinate to the remote session
// as source of truth: whenever IsLoggedIn is true locally, a valid remote
// session must exist, and any reconciliation pass that finds otherwise
// must purge the flags.
type AuthFlags struct {
	UserID         string
	Email          string
	LoginTimestamp time.Time
	IsLoggedIn     bool
	AutoLogin      bool
}
