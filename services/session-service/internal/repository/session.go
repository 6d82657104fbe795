package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/patcharinz/healthmate-api/services/session-service/internal/model"
)

// SessionRepository defines the interface for session record operations.
type SessionRepository interface {
	// CreateSession inserts a new active session row.
	CreateSession(ctx context.Context, session *model.Session) (*model.Session, error)

	// GetSession retrieves a session row by its id.
	GetSession(ctx context.Context, id string) (*model.Session, error)

	// CloseSession writes the logout time and computed duration. Closed
	// rows are terminal; a new login always creates a new row.
	CloseSession(ctx context.Context, id string, params CloseSessionParams) (*model.Session, error)

	// ListUserSessions returns a user's session rows, most recent first.
	ListUserSessions(ctx context.Context, userID string, limit int64) ([]*model.Session, error)
}

// CloseSessionParams defines the fields written when a session closes.
type CloseSessionParams struct {
	LogoutTime      time.Time `bson:"logout_time"`
	DurationMinutes int64     `bson:"session_duration"`
}

const sessionCollection = "user_sessions"

type sessionMongoRepository struct {
	db *mongo.Database
}

// NewSessionMongoRepository creates a new MongoDB repository for session records.
func NewSessionMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) SessionRepository {
	collection := db.Collection(sessionCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "login_time", Value: -1}},
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		logger.Fatal().Err(err).Msg("failed to create session indexes")
	}

	return &sessionMongoRepository{db: db}
}

func (r *sessionMongoRepository) CreateSession(ctx context.Context, session *model.Session) (*model.Session, error) {
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	result, err := r.db.Collection(sessionCollection).InsertOne(ctx, session)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		session.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}

	return session, nil
}

func (r *sessionMongoRepository) GetSession(ctx context.Context, id string) (*model.Session, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	result := r.db.Collection(sessionCollection).FindOne(ctx, bson.M{"_id": objectID})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var session model.Session
	if err := result.Decode(&session); err != nil {
		return nil, err
	}

	return &session, nil
}

func (r *sessionMongoRepository) CloseSession(
	ctx context.Context,
	id string,
	params CloseSessionParams,
) (*model.Session, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	result := r.db.Collection(sessionCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{
			"logout_time":      params.LogoutTime,
			"session_duration": params.DurationMinutes,
			"updated_at":       time.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var session model.Session
	if err := result.Decode(&session); err != nil {
		return nil, err
	}

	return &session, nil
}

func (r *sessionMongoRepository) ListUserSessions(
	ctx context.Context,
	userID string,
	limit int64,
) ([]*model.Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "login_time", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}

	cursor, err := r.db.Collection(sessionCollection).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []*model.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}

	return sessions, nil
}
