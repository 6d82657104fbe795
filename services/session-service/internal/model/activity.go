package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Activity represents a single entry in the append-only user audit trail.
type Activity struct {
	ID        bson.ObjectID  `bson:"_id,omitempty"`
	UserID    string         `bson:"user_id"`
	Type      string         `bson:"activity_type"`
	Data      map[string]any `bson:"activity_data,omitempty"`
	Timestamp time.Time      `bson:"timestamp"`
}

// Activity types recorded by the session subsystem.
const (
	ActivityLogin  = "login"
	ActivityLogout = "logout"
)
