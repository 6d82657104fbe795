package repository

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/patcharinz/healthmate-api/services/session-service/internal/model"
)

// ActivityRepository defines the interface for appending to the user
// audit trail. Records are immutable once written.
type ActivityRepository interface {
	InsertActivity(ctx context.Context, activity *model.Activity) error
}

const activityCollection = "user_activities"

type activityMongoRepository struct {
	db *mongo.Database
}

// NewActivityMongoRepository creates a new MongoDB repository for activity records.
func NewActivityMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) ActivityRepository {
	collection := db.Collection(activityCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}},
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		logger.Fatal().Err(err).Msg("failed to create activity indexes")
	}

	return &activityMongoRepository{db: db}
}

func (r *activityMongoRepository) InsertActivity(ctx context.Context, activity *model.Activity) error {
	if activity.Timestamp.IsZero() {
		activity.Timestamp = time.Now()
	}

	_, err := r.db.Collection(activityCollection).InsertOne(ctx, activity)
	return err
}
