package mongodb

import (
	"context"
	"fmt"

	"github.com/hoken-app/insurance-portal/internal/notification/domain/model"
	"github.com/hoken-app/insurance-portal/internal/notification/domain/repository"
	"github.com/hoken-app/insurance-portal/internal/platform/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type NotificationRepository struct {
	coll   *mongo.Collection
	logger logger.Logger
}

type RepositoryOption func(*NotificationRepository)

// WithLogger reports documents that FindForUser skips
func WithLogger(l logger.Logger) RepositoryOption {
	return func(r *NotificationRepository) { r.logger = l }
}

func NewNotificationRepository(coll *mongo.Collection, opts ...RepositoryOption) repository.NotificationRepository {
	r := &NotificationRepository{coll: coll}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.NewNop()
	}
	return r
}

func (r *NotificationRepository) FindForUser(ctx context.Context, userID string) ([]*model.Notification, error) {
	filter := bson.M{"user_id": bson.M{"$in": []string{userID, model.BroadcastUserID}}}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "message_id", Value: 1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find notifications: %w", err)
	}
	defer cursor.Close(ctx)

	// A malformed document is skipped so the rest of the inbox still loads
	notifications := make([]*model.Notification, 0)
	for cursor.Next(ctx) {
		var doc notificationDocument
		if err := cursor.Decode(&doc); err != nil {
			r.logger.WithContext(ctx).Warn("Skipping undecodable notification document",
				"user_id", userID, "id", cursor.Current.Lookup("_id").String(), "error", err)
			continue
		}
		n, err := doc.toModel()
		if err != nil {
			r.logger.WithContext(ctx).Warn("Skipping invalid notification document",
				"user_id", userID, "message_id", doc.MessageID, "error", err)
			continue
		}
		notifications = append(notifications, n)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to read notifications: %w", err)
	}
	return notifications, nil
}

func (r *NotificationRepository) Insert(ctx context.Context, notification *model.Notification) error {
	if _, err := r.coll.InsertOne(ctx, toDocument(notification)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", repository.ErrDuplicateMessageID, notification.MessageID())
		}
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.coll.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete notifications: %w", err)
	}
	return result.DeletedCount, nil
}
