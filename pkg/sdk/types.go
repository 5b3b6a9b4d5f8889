package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// NotificationType is the closed set of notification kinds
type NotificationType string

const (
	TypeInfo      NotificationType = "info"
	TypeWarning   NotificationType = "warning"
	TypeError     NotificationType = "error"
	TypePromotion NotificationType = "promotion"
	TypeAlert     NotificationType = "alert"
	TypeProgress  NotificationType = "progress"
)

// Types lists every NotificationType in display order
func Types() []NotificationType {
	return []NotificationType{TypeInfo, TypeWarning, TypeError, TypePromotion, TypeAlert, TypeProgress}
}

// Valid reports whether t is one of the known types
func (t NotificationType) Valid() bool {
	for _, known := range Types() {
		if t == known {
			return true
		}
	}
	return false
}

// UnmarshalJSON rejects types outside the closed set
func (t *NotificationType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if !NotificationType(s).Valid() {
		return fmt.Errorf("unknown notification type %q", s)
	}
	*t = NotificationType(s)
	return nil
}

// MultilingualText holds Japanese and English renderings
type MultilingualText struct {
	Ja string `json:"ja"`
	En string `json:"en"`
}

// Get returns the text in locale, falling back to the other language
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

// In returns the text in locale only, without falling back
func (m MultilingualText) In(locale string) string {
	if locale == "en" {
		return m.En
	}
	return m.Ja
}

// Notification is a notification as returned by the list endpoints
type Notification struct {
	MessageID      string           `json:"message_id"`
	UserID         string           `json:"user_id"`
	Type           NotificationType `json:"type"`
	Title          MultilingualText `json:"title"`
	MessageSummary MultilingualText `json:"message_summary"`
	MessageDetail  MultilingualText `json:"message_detail"`
	IsImportant    bool             `json:"is_important"`
	IsRead         bool             `json:"is_read"`
	DeliveredAt    time.Time        `json:"delivered_at"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// UnmarshalJSON requires message_id and a known type. A missing type key
// never reaches NotificationType.UnmarshalJSON, so it is checked here.
func (n *Notification) UnmarshalJSON(data []byte) error {
	type plain Notification
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.MessageID == "" {
		return errors.New("notification has no message_id")
	}
	if !p.Type.Valid() {
		return fmt.Errorf("notification %s has unknown type %q", p.MessageID, p.Type)
	}
	*n = Notification(p)
	return nil
}

// MarkReadRequest is the body of PostReadIDs
type MarkReadRequest struct {
	MessageIDs []string `json:"message_ids"`
}

// ReadResult acknowledges PostReadIDs
type ReadResult struct {
	UserID            string   `json:"user_id"`
	UpdatedMessageIDs []string `json:"updated_message_ids"`
	AlreadyReadIDs    []string `json:"already_read_ids"`
	NewlyMarkedRead   []string `json:"newly_marked_read"`
}
