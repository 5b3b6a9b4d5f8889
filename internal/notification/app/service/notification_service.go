package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hoken-app/insurance-portal/internal/notification/domain/model"
	"github.com/hoken-app/insurance-portal/internal/notification/domain/repository"
	"github.com/hoken-app/insurance-portal/internal/platform/cache"
	"github.com/hoken-app/insurance-portal/internal/platform/logger"
	"github.com/hoken-app/insurance-portal/internal/platform/metrics"
	"github.com/hoken-app/insurance-portal/internal/shared/events"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrInvalidUserID = errors.New("user_id is required")
)

const unreadCountCache = "unread_count"

// EventPublisher is satisfied by the Kafka publisher
type EventPublisher interface {
	Publish(ctx context.Context, event *events.Event) error
}

type NotificationService struct {
	notifications repository.NotificationRepository
	readStatus    repository.ReadStatusRepository
	publisher     EventPublisher
	cache         cache.Cache
	countTTL      time.Duration
	logger        logger.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	now           func() time.Time
}

// Option configures the service
type Option func(*NotificationService)

// WithPublisher publishes domain events after writes
func WithPublisher(p EventPublisher) Option {
	return func(s *NotificationService) { s.publisher = p }
}

// WithCountCache caches unread counts for ttl
func WithCountCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *NotificationService) {
		s.cache = c
		s.countTTL = ttl
	}
}

// WithMetrics records business metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *NotificationService) { s.metrics = m }
}

// WithTracer sets the tracer spans are started on
func WithTracer(t trace.Tracer) Option {
	return func(s *NotificationService) { s.tracer = t }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *NotificationService) { s.now = now }
}

func NewNotificationService(
	notifications repository.NotificationRepository,
	readStatus repository.ReadStatusRepository,
	log logger.Logger,
	opts ...Option,
) *NotificationService {
	s := &NotificationService{
		notifications: notifications,
		readStatus:    readStatus,
		logger:        log,
		countTTL:      time.Minute,
		tracer:        otel.Tracer("notification-service"),
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.NewNop()
	}
	return s
}

// ListForUser returns the user's own and broadcast notifications, newest
// first, with is_read taken from the user's read status.
func (s *NotificationService) ListForUser(ctx context.Context, userID string) ([]*model.Notification, error) {
	ctx, span := s.startSpan(ctx, "NotificationService.ListForUser", userID)
	defer span.End()

	if userID == "" {
		return nil, ErrInvalidUserID
	}

	list, err := s.notifications.FindForUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	status, err := s.loadReadStatus(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	status.Apply(list)

	return list, nil
}

// ListUnread returns ListForUser filtered to unread entries
func (s *NotificationService) ListUnread(ctx context.Context, userID string) ([]*model.Notification, error) {
	list, err := s.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	unread := make([]*model.Notification, 0, len(list))
	for _, n := range list {
		if !n.IsRead() {
			unread = append(unread, n)
		}
	}
	return unread, nil
}

// UnreadCount counts the user's unread notifications, served from cache when possible
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrInvalidUserID
	}

	load := func() (int, error) {
		unread, err := s.ListUnread(ctx, userID)
		if err != nil {
			return 0, err
		}
		return len(unread), nil
	}

	if s.cache == nil {
		return load()
	}

	count, hit, err := cache.CacheAside(ctx, s.cache, countKey(userID), s.countTTL, load)
	if err != nil {
		return 0, err
	}
	s.recordCache(hit)
	return count, nil
}

// ReadIDs returns the ids the user has read, empty when they have read nothing
func (s *NotificationService) ReadIDs(ctx context.Context, userID string) ([]string, error) {
	ctx, span := s.startSpan(ctx, "NotificationService.ReadIDs", userID)
	defer span.End()

	if userID == "" {
		return nil, ErrInvalidUserID
	}

	status, err := s.loadReadStatus(ctx, userID)
	if err != nil {
		return nil, err
	}
	return status.IDs(), nil
}

// MarkReadResult acknowledges a mark-read request
type MarkReadResult struct {
	UserID            string
	UpdatedMessageIDs []string
	AlreadyReadIDs    []string
	NewlyMarkedRead   []string
}

// MarkRead adds ids to the user's read set. Ids already read are reported
// but not rewritten, so repeating a request has no further effect.
func (s *NotificationService) MarkRead(ctx context.Context, userID string, ids []string) (*MarkReadResult, error) {
	ctx, span := s.startSpan(ctx, "NotificationService.MarkRead", userID)
	defer span.End()
	span.SetAttributes(attribute.Int("message_ids.count", len(ids)))

	if userID == "" {
		return nil, ErrInvalidUserID
	}

	status, err := s.loadReadStatus(ctx, userID)
	if err != nil {
		s.recordRead("error")
		return nil, err
	}

	now := s.now()
	marked := status.MarkRead(ids, now)

	result := &MarkReadResult{
		UserID:            userID,
		UpdatedMessageIDs: append([]string{}, ids...),
		AlreadyReadIDs:    marked.AlreadyRead,
		NewlyMarkedRead:   marked.NewlyRead,
	}

	if len(marked.NewlyRead) == 0 {
		s.recordRead("noop")
		return result, nil
	}

	if err := s.readStatus.AddRead(ctx, userID, marked.NewlyRead, now); err != nil {
		span.RecordError(err)
		s.recordRead("error")
		return nil, fmt.Errorf("failed to mark notifications read: %w", err)
	}

	s.invalidateCount(ctx, userID)
	if s.metrics != nil {
		s.metrics.NotificationsRead.Add(float64(len(marked.NewlyRead)))
	}
	s.recordRead("marked")

	s.publish(ctx, userID, "read_status", events.NotificationRead{
		UserID:     userID,
		MessageIDs: marked.NewlyRead,
		ReadAt:     now,
	})

	s.logger.WithContext(ctx).Info("Notifications marked read",
		"user_id", userID, "newly_marked", len(marked.NewlyRead), "already_read", len(marked.AlreadyRead))

	return result, nil
}

// CreateCommand carries a new notification
type CreateCommand = model.NewNotificationParams

// Create stores a notification addressed to one user or, with
// model.BroadcastUserID, to everyone.
func (s *NotificationService) Create(ctx context.Context, cmd CreateCommand) (*model.Notification, error) {
	return s.create(ctx, cmd, "api")
}

func (s *NotificationService) create(ctx context.Context, cmd CreateCommand, source string) (*model.Notification, error) {
	ctx, span := s.startSpan(ctx, "NotificationService.Create", cmd.UserID)
	defer span.End()

	notification, err := model.NewNotification(cmd)
	if err != nil {
		return nil, err
	}

	if err := s.notifications.Insert(ctx, notification); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to save notification: %w", err)
	}

	if notification.IsBroadcast() {
		s.invalidateAllCounts(ctx)
	} else {
		s.invalidateCount(ctx, notification.UserID())
	}

	if s.metrics != nil {
		s.metrics.NotificationsCreated.WithLabelValues(notification.Type().String(), source).Inc()
	}

	s.publish(ctx, notification.MessageID(), "notification", events.NotificationCreated{
		MessageID:   notification.MessageID(),
		UserID:      notification.UserID(),
		Type:        notification.Type().String(),
		IsImportant: notification.IsImportant(),
		CreatedAt:   notification.CreatedAt(),
	})

	s.logger.WithContext(ctx).Info("Notification created",
		"message_id", notification.MessageID(), "user_id", notification.UserID(), "source", source)

	return notification, nil
}

// CreateBroadcast stores an announcement received from the event bus.
// Redelivery of an already stored announcement is not an error.
func (s *NotificationService) CreateBroadcast(ctx context.Context, evt events.GlobalNotificationCreated) (*model.Notification, error) {
	g := evt.GlobalNotification

	typ, err := model.ParseType(g.Type)
	if err != nil {
		return nil, err
	}

	cmd := CreateCommand{
		MessageID:   g.MessageID,
		UserID:      model.BroadcastUserID,
		Type:        typ,
		Title:       model.MultilingualText{Ja: g.Title.Ja, En: g.Title.En},
		Summary:     model.MultilingualText{Ja: g.MessageSummary.Ja, En: g.MessageSummary.En},
		Detail:      model.MultilingualText{Ja: g.MessageDetail.Ja, En: g.MessageDetail.En},
		DeliveredAt: g.AnnouncementDate,
	}
	if g.CreatedAt != nil {
		cmd.CreatedAt = *g.CreatedAt
	}

	n, err := s.create(ctx, cmd, "broadcast")
	if errors.Is(err, repository.ErrDuplicateMessageID) {
		s.logger.Warn("Broadcast notification already stored", "message_id", g.MessageID)
		return nil, nil
	}
	return n, err
}

// DeleteForUser removes every notification addressed to userID
func (s *NotificationService) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	ctx, span := s.startSpan(ctx, "NotificationService.DeleteForUser", userID)
	defer span.End()

	if userID == "" {
		return 0, ErrInvalidUserID
	}

	deleted, err := s.notifications.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete notifications: %w", err)
	}

	if userID == model.BroadcastUserID {
		s.invalidateAllCounts(ctx)
	} else {
		s.invalidateCount(ctx, userID)
	}

	s.logger.WithContext(ctx).Info("Notifications deleted", "user_id", userID, "deleted", deleted)
	return deleted, nil
}

// ResetReadStatus forgets everything the user has read
func (s *NotificationService) ResetReadStatus(ctx context.Context, userID string) error {
	ctx, span := s.startSpan(ctx, "NotificationService.ResetReadStatus", userID)
	defer span.End()

	if userID == "" {
		return ErrInvalidUserID
	}

	if err := s.readStatus.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to reset read status: %w", err)
	}

	s.invalidateCount(ctx, userID)
	s.publish(ctx, userID, "read_status", events.ReadStatusReset{UserID: userID, ResetAt: s.now()})

	s.logger.WithContext(ctx).Info("Read status reset", "user_id", userID)
	return nil
}

func (s *NotificationService) loadReadStatus(ctx context.Context, userID string) (*model.ReadStatus, error) {
	status, err := s.readStatus.Find(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewReadStatus(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load read status: %w", err)
	}
	return status, nil
}

func (s *NotificationService) publish(ctx context.Context, aggregateID, aggregateType string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	event, err := events.NewEvent(aggregateID, aggregateType, events.GetEventType(payload), payload)
	if err != nil {
		s.logger.Error("Failed to build event", "error", err)
		return
	}
	if userID, ok := ctx.Value(logger.UserIDKey).(string); ok {
		event.UserID = userID
	}
	// Events are best-effort; the write has already succeeded
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", "event_type", event.EventType, "error", err)
	}
}

func countKey(userID string) string {
	return unreadCountCache + ":" + userID
}

func (s *NotificationService) invalidateCount(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, countKey(userID)); err != nil {
		s.logger.Warn("Failed to invalidate unread count", "user_id", userID, "error", err)
	}
}

func (s *NotificationService) invalidateAllCounts(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePattern(ctx, unreadCountCache+":*"); err != nil {
		s.logger.Warn("Failed to invalidate unread counts", "error", err)
	}
}

func (s *NotificationService) recordCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHits.WithLabelValues(unreadCountCache).Inc()
	} else {
		s.metrics.CacheMisses.WithLabelValues(unreadCountCache).Inc()
	}
}

func (s *NotificationService) recordRead(result string) {
	if s.metrics != nil {
		s.metrics.ReadRequests.WithLabelValues(result).Inc()
	}
}

func (s *NotificationService) startSpan(ctx context.Context, name, userID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("user.id", userID)))
}
