package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hoken-app/insurance-portal/internal/notification/domain/model"
	"github.com/hoken-app/insurance-portal/internal/notification/domain/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ReadStatusRepository struct {
	coll *mongo.Collection
}

func NewReadStatusRepository(coll *mongo.Collection) repository.ReadStatusRepository {
	return &ReadStatusRepository{coll: coll}
}

func (r *ReadStatusRepository) Find(ctx context.Context, userID string) (*model.ReadStatus, error) {
	var doc readStatusDocument
	err := r.coll.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find read status: %w", err)
	}
	return model.RestoreReadStatus(doc.UserID, doc.ReadMessageIDs, doc.UpdatedAt.UTC()), nil
}

// AddRead unions ids into the user's set, creating the document on first use.
// $addToSet keeps concurrent marks from losing ids.
func (r *ReadStatusRepository) AddRead(ctx context.Context, userID string, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	update := bson.M{
		"$addToSet": bson.M{"read_message_ids": bson.M{"$each": ids}},
		"$set":      bson.M{"updated_at": at},
	}
	_, err := r.coll.UpdateOne(ctx, bson.M{"user_id": userID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to update read status: %w", err)
	}
	return nil
}

func (r *ReadStatusRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("failed to delete read status: %w", err)
	}
	return nil
}
