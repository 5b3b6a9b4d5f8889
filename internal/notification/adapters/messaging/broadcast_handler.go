// Package messaging turns announcements from the event bus into broadcast notifications
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/hoken-app/insurance-portal/internal/notification/domain/model"
	"github.com/hoken-app/insurance-portal/internal/platform/logger"
	"github.com/hoken-app/insurance-portal/internal/shared/events"
)

// BroadcastCreator stores a broadcast notification
type BroadcastCreator interface {
	CreateBroadcast(ctx context.Context, evt events.GlobalNotificationCreated) (*model.Notification, error)
}

type BroadcastHandler struct {
	creator BroadcastCreator
	logger  logger.Logger
}

func NewBroadcastHandler(creator BroadcastCreator, log logger.Logger) *BroadcastHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &BroadcastHandler{creator: creator, logger: log}
}

// Handle satisfies kafka.MessageHandler. Events other than
// GlobalNotificationCreated share the topic and are skipped.
func (h *BroadcastHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt events.GlobalNotificationCreated
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("failed to decode broadcast event: %w", err)
	}

	if evt.Event != events.GlobalNotificationCreatedType {
		h.logger.Warn("Ignoring unsupported event", "event", evt.Event, "topic", msg.Topic)
		return nil
	}

	if evt.GlobalNotification.MessageID == "" {
		return fmt.Errorf("broadcast event has no message_id")
	}

	n, err := h.creator.CreateBroadcast(ctx, evt)
	if err != nil {
		return fmt.Errorf("failed to store broadcast %s: %w", evt.GlobalNotification.MessageID, err)
	}

	if n != nil {
		h.logger.Info("Broadcast notification stored", "message_id", n.MessageID(), "offset", msg.Offset)
	}
	return nil
}
