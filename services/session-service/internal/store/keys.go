package store

import "fmt"

// Keys owned by the session subsystem. The purge path deletes exactly
// this registry; nothing outside it is ever touched, and no substring
// matching is performed against foreign keys.
const (
	KeyAuthUserID       = "auth_user_id"
	KeyUserEmail        = "user_email"
	KeyLoginTimestamp   = "login_timestamp"
	KeyIsLoggedIn       = "is_logged_in"
	KeyAutoLogin        = "auto_login"
	KeyCurrentSessionID = "current_session_id"
	KeyGatewaySession   = "auth_gateway_session"

	// Cache-invalidation-only keys: written by other parts of the app,
	// removed here on logout so a later login cannot observe stale data.
	KeyUserProfileData      = "user_profile_data"
	KeyCachedProfilePicture = "cached_profile_picture"
	KeyOnboardingCompleted  = "onboarding_completed"

	verificationKeyPrefix = "verification_"
)

// PurgeKeys is the statically enumerated set removed on logout.
var PurgeKeys = []string{
	KeyAuthUserID,
	KeyUserEmail,
	KeyLoginTimestamp,
	KeyIsLoggedIn,
	KeyAutoLogin,
	KeyCurrentSessionID,
	KeyGatewaySession,
	KeyUserProfileData,
	KeyCachedProfilePicture,
	KeyOnboardingCompleted,
}

// OwnedPrefixes are the per-user key namespaces owned by the subsystem,
// swept in addition to PurgeKeys to defend against drift.
var OwnedPrefixes = []string{
	verificationKeyPrefix,
}

// VerificationKey builds the store key for a (user, channel) token pair.
func VerificationKey(channel, userID string) string {
	return fmt.Sprintf("%s%s_%s", verificationKeyPrefix, channel, userID)
}
