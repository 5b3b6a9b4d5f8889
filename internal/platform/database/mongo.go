package database

import (
	"context"
	"fmt"
	"time"

	"github.com/hoken-app/insurance-portal/internal/platform/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DB wraps the MongoDB client and the service database
type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
	cfg      config.MongoConfig
}

// New creates a new database connection
func New(ctx context.Context, cfg config.MongoConfig) (*DB, error) {
	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout)
	if cfg.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return Wrap(client, cfg), nil
}

// Wrap builds a DB around an already connected client
func Wrap(client *mongo.Client, cfg config.MongoConfig) *DB {
	return &DB{
		Client:   client,
		Database: client.Database(cfg.Database),
		cfg:      cfg,
	}
}

// Notifications returns the notification collection
func (db *DB) Notifications() *mongo.Collection {
	return db.Database.Collection(db.cfg.NotificationCollection)
}

// ReadStatus returns the per-user read status collection
func (db *DB) ReadStatus() *mongo.Collection {
	return db.Database.Collection(db.cfg.StatusCollection)
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	if err := db.Client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Close disconnects the client
func (db *DB) Close(ctx context.Context) error {
	return db.Client.Disconnect(ctx)
}
