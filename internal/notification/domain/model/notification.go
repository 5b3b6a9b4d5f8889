package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hoken-app/insurance-portal/internal/platform/validation"
)

// BroadcastUserID addresses a notification to every user
const BroadcastUserID = "all_user"

var (
	// ErrInvalidType is returned for a type outside the closed set
	ErrInvalidType = errors.New("invalid notification type")
)

type NotificationType string

const (
	NotificationTypeInfo      NotificationType = "info"
	NotificationTypeWarning   NotificationType = "warning"
	NotificationTypeError     NotificationType = "error"
	NotificationTypePromotion NotificationType = "promotion"
	NotificationTypeAlert     NotificationType = "alert"
	NotificationTypeProgress  NotificationType = "progress"
)

// Types lists every accepted notification type in schema order
func Types() []NotificationType {
	return []NotificationType{
		NotificationTypeInfo,
		NotificationTypeWarning,
		NotificationTypeError,
		NotificationTypePromotion,
		NotificationTypeAlert,
		NotificationTypeProgress,
	}
}

// ParseType validates s against the closed type set
func ParseType(s string) (NotificationType, error) {
	for _, t := range Types() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
}

func (t NotificationType) String() string {
	return string(t)
}

// UnmarshalJSON rejects values outside the closed set
func (t *NotificationType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type DeliveryStatus string

const (
	DeliveryStatusDelivered DeliveryStatus = "delivered"
)

// MultilingualText holds the Japanese and English renderings of a string
type MultilingualText struct {
	Ja string `json:"ja" bson:"ja" validate:"required_without=En"`
	En string `json:"en" bson:"en" validate:"required_without=Ja"`
}

// Get returns the text for locale, falling back to the other language when empty
func (m MultilingualText) Get(locale string) string {
	if locale == "en" {
		if m.En != "" {
			return m.En
		}
		return m.Ja
	}
	if m.Ja != "" {
		return m.Ja
	}
	return m.En
}

// IsZero reports whether both languages are empty
func (m MultilingualText) IsZero() bool {
	return m.Ja == "" && m.En == ""
}

// Notification is a message delivered to one user or, with BroadcastUserID, to all users.
// Content is immutable once created; only the read flag changes.
type Notification struct {
	messageID      string
	userID         string
	notifType      NotificationType
	title          MultilingualText
	summary        MultilingualText
	detail         MultilingualText
	isImportant    bool
	isRead         bool
	deliveryStatus DeliveryStatus
	deliveredAt    time.Time
	createdAt      time.Time
	updatedAt      time.Time
}

// NewNotificationParams carries the caller-supplied fields of a notification
type NewNotificationParams struct {
	MessageID   string           `json:"message_id" validate:"omitempty,max=128"`
	UserID      string           `json:"user_id" validate:"required,max=128"`
	Type        NotificationType `json:"type" validate:"required,oneof=info warning error promotion alert progress"`
	Title       MultilingualText `json:"title"`
	Summary     MultilingualText `json:"message_summary"`
	Detail      MultilingualText `json:"message_detail"`
	IsImportant bool             `json:"is_important"`
	DeliveredAt time.Time        `json:"delivered_at"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NewNotification validates params and builds a notification. A missing
// message id is replaced by a new UUID, missing timestamps by now.
func NewNotification(params NewNotificationParams) (*Notification, error) {
	if err := validation.Struct(params); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if params.MessageID == "" {
		params.MessageID = uuid.New().String()
	}
	if params.CreatedAt.IsZero() {
		params.CreatedAt = now
	}
	if params.DeliveredAt.IsZero() {
		params.DeliveredAt = params.CreatedAt
	}

	return &Notification{
		messageID:      params.MessageID,
		userID:         params.UserID,
		notifType:      params.Type,
		title:          params.Title,
		summary:        params.Summary,
		detail:         params.Detail,
		isImportant:    params.IsImportant,
		deliveryStatus: DeliveryStatusDelivered,
		deliveredAt:    params.DeliveredAt.UTC(),
		createdAt:      params.CreatedAt.UTC(),
		updatedAt:      params.CreatedAt.UTC(),
	}, nil
}

// Snapshot is the flat form adapters persist and restore
type Snapshot struct {
	MessageID      string
	UserID         string
	Type           NotificationType
	Title          MultilingualText
	Summary        MultilingualText
	Detail         MultilingualText
	IsImportant    bool
	DeliveryStatus DeliveryStatus
	DeliveredAt    time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Restore rebuilds a notification from storage without re-validating content
func Restore(s Snapshot) *Notification {
	return &Notification{
		messageID:      s.MessageID,
		userID:         s.UserID,
		notifType:      s.Type,
		title:          s.Title,
		summary:        s.Summary,
		detail:         s.Detail,
		isImportant:    s.IsImportant,
		deliveryStatus: s.DeliveryStatus,
		deliveredAt:    s.DeliveredAt,
		createdAt:      s.CreatedAt,
		updatedAt:      s.UpdatedAt,
	}
}

// Snapshot returns the persisted fields
func (n *Notification) Snapshot() Snapshot {
	return Snapshot{
		MessageID:      n.messageID,
		UserID:         n.userID,
		Type:           n.notifType,
		Title:          n.title,
		Summary:        n.summary,
		Detail:         n.detail,
		IsImportant:    n.isImportant,
		DeliveryStatus: n.deliveryStatus,
		DeliveredAt:    n.deliveredAt,
		CreatedAt:      n.createdAt,
		UpdatedAt:      n.updatedAt,
	}
}

// Getters
func (n *Notification) MessageID() string              { return n.messageID }
func (n *Notification) UserID() string                 { return n.userID }
func (n *Notification) Type() NotificationType         { return n.notifType }
func (n *Notification) Title() MultilingualText        { return n.title }
func (n *Notification) Summary() MultilingualText      { return n.summary }
func (n *Notification) Detail() MultilingualText       { return n.detail }
func (n *Notification) IsImportant() bool              { return n.isImportant }
func (n *Notification) IsRead() bool                   { return n.isRead }
func (n *Notification) DeliveryStatus() DeliveryStatus { return n.deliveryStatus }
func (n *Notification) DeliveredAt() time.Time         { return n.deliveredAt }
func (n *Notification) CreatedAt() time.Time           { return n.createdAt }
func (n *Notification) UpdatedAt() time.Time           { return n.updatedAt }
func (n *Notification) IsBroadcast() bool              { return n.userID == BroadcastUserID }

// MarkRead sets the read flag. It reports whether the flag changed; a read
// notification is never marked unread.
func (n *Notification) MarkRead(at time.Time) bool {
	if n.isRead {
		return false
	}
	n.isRead = true
	n.updatedAt = at
	return true
}

// VisibleTo reports whether userID should see this notification
func (n *Notification) VisibleTo(userID string) bool {
	return n.userID == userID || n.userID == BroadcastUserID
}
