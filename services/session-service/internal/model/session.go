package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Session represents one login-to-logout interval for a user. A row is
// created on login with no logout time and closed exactly once; closed
// rows are never reopened.
type Session struct {
	ID              bson.ObjectID `bson:"_id,omitempty"`
	UserID          string        `bson:"user_id"`
	LoginTime       time.Time     `bson:"login_time"`
	LogoutTime      *time.Time    `bson:"logout_time,omitempty"`
	DurationMinutes *int64        `bson:"session_duration,omitempty"`
	DeviceInfo      *string       `bson:"device_info,omitempty"`
	CreatedAt       time.Time     `bson:"created_at"`
	UpdatedAt       time.Time     `bson:"updated_at"`
}

// Active reports whether the session has not been closed yet.
func (s *Session) Active() bool {
	return s.LogoutTime == nil
}
