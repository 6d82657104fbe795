package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/patcharinz/healthmate-api/services/session-service/internal/model"
	"github.com/patcharinz/healthmate-api/services/session-service/internal/repository"
)

// ActivityLogger appends to the user audit trail through an outbox queue.
// Logging is best-effort: Log never blocks and never fails the operation
// it records. A full queue drops the record with a warning.
type ActivityLogger interface {
	Log(userID, activityType string, data map[string]any)
	Close()
}

const defaultActivityQueueSize = 256

type activityLogger struct {
	repo   repository.ActivityRepository
	logger *zerolog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan *model.Activity
	done   chan struct{}
}

// NewActivityLogger creates an ActivityLogger backed by a single worker
// draining the outbox into the activity repository.
func NewActivityLogger(repo repository.ActivityRepository, logger *zerolog.Logger, queueSize int) ActivityLogger {
	if queueSize <= 0 {
		queueSize = defaultActivityQueueSize
	}

	l := &activityLogger{
		repo:   repo,
		logger: logger,
		queue:  make(chan *model.Activity, queueSize),
		done:   make(chan struct{}),
	}
	go l.worker()

	return l
}

func (l *activityLogger) Log(userID, activityType string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["event_id"] = uuid.NewString()

	activity := &model.Activity{
		UserID:    userID,
		Type:      activityType,
		Data:      data,
		Timestamp: time.Now(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		l.logger.Warn().
			Str("user_id", userID).
			Str("activity_type", activityType).
			Msg("activity logger closed, dropping record")
		return
	}

	select {
	case l.queue <- activity:
	default:
		l.logger.Warn().
			Str("user_id", userID).
			Str("activity_type", activityType).
			Msg("activity queue full, dropping record")
	}
}

// Close stops accepting records and drains the queue. Safe to call more
// than once; records logged afterwards are dropped, not panicked on.
func (l *activityLogger) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()
	<-l.done
}

func (l *activityLogger) worker() {
	defer close(l.done)

	for activity := range l.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := l.repo.InsertActivity(ctx, activity); err != nil {
			l.logger.Warn().Err(err).
				Str("user_id", activity.UserID).
				Str("activity_type", activity.Type).
				Msg("failed to record activity")
		}
		cancel()
	}
}
