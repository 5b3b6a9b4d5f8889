package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hoken-app/insurance-portal/internal/notification/domain/model"
)

var (
	// ErrNotFound is returned when no document matches
	ErrNotFound = errors.New("notification not found")

	// ErrDuplicateMessageID is returned when a message id is already stored
	ErrDuplicateMessageID = errors.New("notification with this message_id already exists")
)

// NotificationRepository stores notification documents
type NotificationRepository interface {
	// FindForUser returns the user's own and broadcast notifications, newest first
	FindForUser(ctx context.Context, userID string) ([]*model.Notification, error)
	Insert(ctx context.Context, notification *model.Notification) error
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

// ReadStatusRepository stores one read-id set per user
type ReadStatusRepository interface {
	// Find returns ErrNotFound when the user has never read anything
	Find(ctx context.Context, userID string) (*model.ReadStatus, error)
	AddRead(ctx context.Context, userID string, ids []string, at time.Time) error
	Delete(ctx context.Context, userID string) error
}
