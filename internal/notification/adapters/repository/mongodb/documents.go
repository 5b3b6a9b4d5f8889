package mongodb

import (
	"fmt"
	"time"

	"github.com/hoken-app/insurance-portal/internal/notification/domain/model"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type textDocument struct {
	Ja string `bson:"ja"`
	En string `bson:"en"`
}

type messageDocument struct {
	Summary textDocument `bson:"summary"`
	Detail  textDocument `bson:"detail"`
}

// notificationDocument is the stored shape of a notification. date is the
// delivery date and the newest-first sort key.
type notificationDocument struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	MessageID      string             `bson:"message_id"`
	UserID         string             `bson:"user_id"`
	Type           string             `bson:"type"`
	Title          textDocument       `bson:"title"`
	Message        messageDocument    `bson:"message"`
	Date           time.Time          `bson:"date"`
	IsImportant    bool               `bson:"is_important"`
	DeliveryStatus string             `bson:"delivery_status,omitempty"`
	CreatedAt      time.Time          `bson:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at"`
}

type readStatusDocument struct {
	UserID         string    `bson:"user_id"`
	ReadMessageIDs []string  `bson:"read_message_ids"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

func toText(t model.MultilingualText) textDocument {
	return textDocument{Ja: t.Ja, En: t.En}
}

func fromText(t textDocument) model.MultilingualText {
	return model.MultilingualText{Ja: t.Ja, En: t.En}
}

func toDocument(n *model.Notification) notificationDocument {
	s := n.Snapshot()
	return notificationDocument{
		MessageID: s.MessageID,
		UserID:    s.UserID,
		Type:      s.Type.String(),
		Title:     toText(s.Title),
		Message: messageDocument{
			Summary: toText(s.Summary),
			Detail:  toText(s.Detail),
		},
		Date:           s.DeliveredAt,
		IsImportant:    s.IsImportant,
		DeliveryStatus: string(s.DeliveryStatus),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func (d notificationDocument) toModel() (*model.Notification, error) {
	typ, err := model.ParseType(d.Type)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", d.MessageID, err)
	}
	return model.Restore(model.Snapshot{
		MessageID:      d.MessageID,
		UserID:         d.UserID,
		Type:           typ,
		Title:          fromText(d.Title),
		Summary:        fromText(d.Message.Summary),
		Detail:         fromText(d.Message.Detail),
		IsImportant:    d.IsImportant,
		DeliveryStatus: model.DeliveryStatus(d.DeliveryStatus),
		DeliveredAt:    d.Date.UTC(),
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}), nil
}
