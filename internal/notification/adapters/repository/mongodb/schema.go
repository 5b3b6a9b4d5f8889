package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/hoken-app/insurance-portal/internal/notification/domain/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const namespaceExistsCode = 48

// SchemaNames names the collections EnsureSchema installs
type SchemaNames struct {
	Notifications string
	ReadStatus    string
}

func textSchema() bson.M {
	return bson.M{
		"bsonType": "object",
		"properties": bson.M{
			"ja": bson.M{"bsonType": "string"},
			"en": bson.M{"bsonType": "string"},
		},
	}
}

// NotificationValidator is the $jsonSchema enforced on the notification collection
func NotificationValidator() bson.M {
	types := make(bson.A, 0, len(model.Types()))
	for _, t := range model.Types() {
		types = append(types, t.String())
	}

	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "message_id", "type", "title", "message", "date"},
			"properties": bson.M{
				"user_id": bson.M{
					"bsonType":    "string",
					"description": "owner user id, or all_user for broadcasts",
				},
				"message_id": bson.M{
					"bsonType":    "string",
					"description": "unique message id",
				},
				"type": bson.M{
					"bsonType": "string",
					"enum":     types,
				},
				"title": textSchema(),
				"message": bson.M{
					"bsonType": "object",
					"properties": bson.M{
						"summary": textSchema(),
						"detail":  textSchema(),
					},
				},
				"date": bson.M{
					"bsonType":    "date",
					"description": "delivery date",
				},
				"is_important": bson.M{"bsonType": "bool"},
			},
		},
	}
}

// ReadStatusValidator is the $jsonSchema enforced on the read status collection
func ReadStatusValidator() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "read_message_ids"},
			"properties": bson.M{
				"user_id": bson.M{"bsonType": "string"},
				"read_message_ids": bson.M{
					"bsonType": "array",
					"items":    bson.M{"bsonType": "string"},
				},
			},
		},
	}
}

// EnsureSchema creates both collections with validators and indexes. It is
// idempotent: existing collections get their validator replaced.
func EnsureSchema(ctx context.Context, db *mongo.Database, names SchemaNames) error {
	if err := ensureCollection(ctx, db, names.Notifications, NotificationValidator()); err != nil {
		return err
	}
	_, err := db.Collection(names.Notifications).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: -1}},
			Options: options.Index().SetName("user_id_date"),
		},
		{
			Keys:    bson.D{{Key: "message_id", Value: 1}},
			Options: options.Index().SetName("message_id_unique").SetUnique(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes on %s: %w", names.Notifications, err)
	}

	if err := ensureCollection(ctx, db, names.ReadStatus, ReadStatusValidator()); err != nil {
		return err
	}
	_, err = db.Collection(names.ReadStatus).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetName("user_id_unique").SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes on %s: %w", names.ReadStatus, err)
	}

	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	err := db.CreateCollection(ctx, name, options.CreateCollection().SetValidator(validator))
	if err == nil {
		return nil
	}

	var cmdErr mongo.CommandError
	if !errors.As(err, &cmdErr) || cmdErr.Code != namespaceExistsCode {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	cmd := bson.D{{Key: "collMod", Value: name}, {Key: "validator", Value: validator}}
	if err := db.RunCommand(ctx, cmd).Err(); err != nil {
		return fmt.Errorf("failed to update validator on %s: %w", name, err)
	}
	return nil
}
