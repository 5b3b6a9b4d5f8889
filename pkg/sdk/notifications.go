package sdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

const notificationsPath = "/api/v1/user_notification"

// Operation names used in errors
const (
	OpFetchAll         = "FetchAll"
	OpFetchUnread      = "FetchUnread"
	OpFetchUnreadCount = "FetchUnreadCount"
	OpFetchReadIDs     = "FetchReadIDs"
	OpPostReadIDs      = "PostReadIDs"
)

// NotificationService calls the notification endpoints. None of its
// methods retry.
type NotificationService struct {
	client *Client
}

// FetchAll returns every notification visible to userID, newest first
func (s *NotificationService) FetchAll(ctx context.Context, userID string) ([]Notification, error) {
	return s.fetchList(ctx, OpFetchAll, "/", userID)
}

// FetchUnread returns the server-filtered unread notifications
func (s *NotificationService) FetchUnread(ctx context.Context, userID string) ([]Notification, error) {
	return s.fetchList(ctx, OpFetchUnread, "/unread/", userID)
}

// FetchUnreadCount returns the server's unread count
func (s *NotificationService) FetchUnreadCount(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrEmptyUserID
	}

	resp, err := s.client.request(ctx, OpFetchUnreadCount, http.MethodGet, userPath("/unread_count/", userID), nil)
	if err != nil {
		return 0, err
	}

	var count int
	if err := s.client.decodeResponse(OpFetchUnreadCount, resp, &count); err != nil {
		return 0, err
	}
	if count < 0 {
		return 0, &DecodeError{Op: OpFetchUnreadCount, Err: fmt.Errorf("negative count %d", count)}
	}
	return count, nil
}

// FetchReadIDs returns the message ids userID has read
func (s *NotificationService) FetchReadIDs(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	resp, err := s.client.request(ctx, OpFetchReadIDs, http.MethodGet, userPath("/read/", userID), nil)
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := s.client.decodeResponse(OpFetchReadIDs, resp, &ids); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// PostReadIDs marks ids read. Reposting ids that are already read is a no-op
// on the server.
func (s *NotificationService) PostReadIDs(ctx context.Context, userID string, ids []string) (*ReadResult, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	resp, err := s.client.request(ctx, OpPostReadIDs, http.MethodPost, userPath("/read/", userID), MarkReadRequest{MessageIDs: ids})
	if err != nil {
		return nil, err
	}

	var result ReadResult
	if err := s.client.decodeResponse(OpPostReadIDs, resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *NotificationService) fetchList(ctx context.Context, op, prefix, userID string) ([]Notification, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	resp, err := s.client.request(ctx, op, http.MethodGet, userPath(prefix, userID), nil)
	if err != nil {
		return nil, err
	}

	var list []Notification
	if err := s.client.decodeResponse(op, resp, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []Notification{}
	}
	return list, nil
}

func userPath(prefix, userID string) string {
	return notificationsPath + prefix + url.PathEscape(userID)
}
