package dto

import (
	"time"

	"github.com/hoken-app/insurance-portal/internal/notification/app/service"
	"github.com/hoken-app/insurance-portal/internal/notification/domain/model"
)

// MultilingualText is the {ja, en} pair used on the wire
type MultilingualText struct {
	Ja string `json:"ja"`
	En string `json:"en"`
}

// NotificationResponse is one entry of the list endpoints
type NotificationResponse struct {
	MessageID      string           `json:"message_id"`
	UserID         string           `json:"user_id"`
	Type           string           `json:"type"`
	Title          MultilingualText `json:"title"`
	MessageSummary MultilingualText `json:"message_summary"`
	MessageDetail  MultilingualText `json:"message_detail"`
	IsImportant    bool             `json:"is_important"`
	IsRead         bool             `json:"is_read"`
	DeliveryStatus string           `json:"delivery_status"`
	DeliveredAt    time.Time        `json:"delivered_at"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// MarkReadRequest is the body of POST /user_notification/read/{user_id}
type MarkReadRequest struct {
	MessageIDs []string `json:"message_ids" validate:"required,min=1,max=500,dive,required,max=128"`
}

// MarkReadResponse acknowledges a mark-read request
type MarkReadResponse struct {
	UserID            string   `json:"user_id"`
	UpdatedMessageIDs []string `json:"updated_message_ids"`
	AlreadyReadIDs    []string `json:"already_read_ids"`
	NewlyMarkedRead   []string `json:"newly_marked_read"`
}

// CreateNotificationRequest is the body of POST /user_notification/{user_id}
type CreateNotificationRequest struct {
	MessageID      string           `json:"message_id"`
	UserID         string           `json:"user_id"`
	Type           string           `json:"type"`
	Title          MultilingualText `json:"title"`
	MessageSummary MultilingualText `json:"message_summary"`
	MessageDetail  MultilingualText `json:"message_detail"`
	IsImportant    bool             `json:"is_important"`
	DeliveredAt    *time.Time       `json:"delivered_at,omitempty"`
	CreatedAt      *time.Time       `json:"created_at,omitempty"`
}

// MessageResponse is returned by the maintenance endpoints
type MessageResponse struct {
	Message string `json:"message"`
	Deleted *int64 `json:"deleted,omitempty"`
}

func FromModel(n *model.Notification) NotificationResponse {
	return NotificationResponse{
		MessageID:      n.MessageID(),
		UserID:         n.UserID(),
		Type:           n.Type().String(),
		Title:          text(n.Title()),
		MessageSummary: text(n.Summary()),
		MessageDetail:  text(n.Detail()),
		IsImportant:    n.IsImportant(),
		IsRead:         n.IsRead(),
		DeliveryStatus: string(n.DeliveryStatus()),
		DeliveredAt:    n.DeliveredAt(),
		CreatedAt:      n.CreatedAt(),
		UpdatedAt:      n.UpdatedAt(),
	}
}

// FromModels never returns nil so empty lists encode as []
func FromModels(list []*model.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(list))
	for _, n := range list {
		out = append(out, FromModel(n))
	}
	return out
}

func FromMarkReadResult(r *service.MarkReadResult) MarkReadResponse {
	return MarkReadResponse{
		UserID:            r.UserID,
		UpdatedMessageIDs: nonNil(r.UpdatedMessageIDs),
		AlreadyReadIDs:    nonNil(r.AlreadyReadIDs),
		NewlyMarkedRead:   nonNil(r.NewlyMarkedRead),
	}
}

// ToCommand converts the request; the type is parsed so unknown values are
// rejected before validation.
func (r CreateNotificationRequest) ToCommand() (service.CreateCommand, error) {
	typ, err := model.ParseType(r.Type)
	if err != nil {
		return service.CreateCommand{}, err
	}

	cmd := service.CreateCommand{
		MessageID:   r.MessageID,
		UserID:      r.UserID,
		Type:        typ,
		Title:       model.MultilingualText(r.Title),
		Summary:     model.MultilingualText(r.MessageSummary),
		Detail:      model.MultilingualText(r.MessageDetail),
		IsImportant: r.IsImportant,
	}
	if r.DeliveredAt != nil {
		cmd.DeliveredAt = *r.DeliveredAt
	}
	if r.CreatedAt != nil {
		cmd.CreatedAt = *r.CreatedAt
	}
	return cmd, nil
}

func text(m model.MultilingualText) MultilingualText {
	return MultilingualText{Ja: m.Ja, En: m.En}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
