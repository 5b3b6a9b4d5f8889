package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types published by the notification service
const (
	NotificationCreatedType = "notification.created"
	NotificationReadType    = "notification.read"
	NotificationResetType   = "notification.read_status_reset"
)

// GlobalNotificationCreatedType is the discriminator carried by broadcast events
const GlobalNotificationCreatedType = "GlobalNotificationCreated"

// Event represents a domain event
type Event struct {
	ID            string                 `json:"id"`
	AggregateID   string                 `json:"aggregateId"`
	AggregateType string                 `json:"aggregateType"`
	EventType     string                 `json:"eventType"`
	EventVersion  int                    `json:"eventVersion"`
	Timestamp     time.Time              `json:"timestamp"`
	UserID        string                 `json:"userId"`
	CorrelationID string                 `json:"correlationId"`
	Metadata      map[string]interface{} `json:"metadata"`
	Payload       json.RawMessage        `json:"payload"`
}

// NewEvent creates a new event
func NewEvent(aggregateID, aggregateType, eventType string, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		EventVersion:  1,
		Timestamp:     time.Now().UTC(),
		Metadata:      make(map[string]interface{}),
		Payload:       payloadBytes,
	}, nil
}

// NotificationCreated is published after a notification is stored
type NotificationCreated struct {
	MessageID   string    `json:"message_id"`
	UserID      string    `json:"user_id"`
	Type        string    `json:"type"`
	IsImportant bool      `json:"is_important"`
	CreatedAt   time.Time `json:"created_at"`
}

// NotificationRead is published when message ids are newly marked read
type NotificationRead struct {
	UserID     string    `json:"user_id"`
	MessageIDs []string  `json:"message_ids"`
	ReadAt     time.Time `json:"read_at"`
}

// ReadStatusReset is published when a user's read history is cleared
type ReadStatusReset struct {
	UserID  string    `json:"user_id"`
	ResetAt time.Time `json:"reset_at"`
}

// LocalizedText is the bilingual text shape used on the wire
type LocalizedText struct {
	Ja string `json:"ja"`
	En string `json:"en"`
}

// GlobalNotification is an announcement addressed to every user
type GlobalNotification struct {
	MessageID        string        `json:"message_id"`
	Type             string        `json:"type"`
	Title            LocalizedText `json:"title"`
	MessageSummary   LocalizedText `json:"message_summary"`
	MessageDetail    LocalizedText `json:"message_detail"`
	AnnouncementDate time.Time     `json:"announcement_date"`
	CreatedAt        *time.Time    `json:"created_at,omitempty"`
	UpdatedAt        *time.Time    `json:"updated_at,omitempty"`
}

// GlobalNotificationCreated is consumed from the broadcast topics. It is not
// wrapped in Event; the announcement service emits it as-is.
type GlobalNotificationCreated struct {
	Event              string             `json:"event"`
	GlobalNotification GlobalNotification `json:"global_notification"`
}

// GetEventType maps a payload to its event type
func GetEventType(event interface{}) string {
	switch event.(type) {
	case NotificationCreated, *NotificationCreated:
		return NotificationCreatedType
	case NotificationRead, *NotificationRead:
		return NotificationReadType
	case ReadStatusReset, *ReadStatusReset:
		return NotificationResetType
	case GlobalNotificationCreated, *GlobalNotificationCreated:
		return GlobalNotificationCreatedType
	default:
		return "unknown"
	}
}
