package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hoken-app/insurance-portal/internal/notification/adapters/http/dto"
	"github.com/hoken-app/insurance-portal/internal/notification/app/service"
	"github.com/hoken-app/insurance-portal/internal/notification/domain/model"
	"github.com/hoken-app/insurance-portal/internal/notification/domain/repository"
	"github.com/hoken-app/insurance-portal/internal/platform/logger"
	"github.com/hoken-app/insurance-portal/internal/platform/response"
	"github.com/hoken-app/insurance-portal/internal/platform/validation"
)

const deletedMessage = "User notifications deleted successfully."

// NotificationService is the subset of service.NotificationService the handlers call
type NotificationService interface {
	ListForUser(ctx context.Context, userID string) ([]*model.Notification, error)
	ListUnread(ctx context.Context, userID string) ([]*model.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	ReadIDs(ctx context.Context, userID string) ([]string, error)
	MarkRead(ctx context.Context, userID string, ids []string) (*service.MarkReadResult, error)
	Create(ctx context.Context, cmd service.CreateCommand) (*model.Notification, error)
	DeleteForUser(ctx context.Context, userID string) (int64, error)
	ResetReadStatus(ctx context.Context, userID string) error
}

// Guards restrict who may call a route. Nil guards allow everyone.
type Guards struct {
	Owner func(http.Handler) http.Handler
	Admin func(http.Handler) http.Handler
}

type NotificationHandler struct {
	service NotificationService
	logger  logger.Logger
}

func NewNotificationHandler(service NotificationService, logger logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes mounts the endpoints on router, which is expected to be the
// /api/v1 subrouter. Fixed path segments are registered before {user_id}.
func (h *NotificationHandler) RegisterRoutes(router *mux.Router, guards Guards) {
	owner := orPass(guards.Owner)
	admin := orPass(guards.Admin)

	r := router.PathPrefix("/user_notification").Subrouter()

	r.Handle("/unread/{user_id}", owner(http.HandlerFunc(h.ListUnread))).Methods(http.MethodGet)
	r.Handle("/unread_count/{user_id}", owner(http.HandlerFunc(h.UnreadCount))).Methods(http.MethodGet)
	r.Handle("/read/{user_id}", owner(http.HandlerFunc(h.ReadIDs))).Methods(http.MethodGet)
	r.Handle("/read/{user_id}", owner(http.HandlerFunc(h.MarkRead))).Methods(http.MethodPost)
	r.Handle("/reset/{user_id}", owner(http.HandlerFunc(h.ResetReadStatus))).Methods(http.MethodDelete)

	r.Handle("/{user_id}", owner(http.HandlerFunc(h.ListNotifications))).Methods(http.MethodGet)
	r.Handle("/{user_id}", admin(http.HandlerFunc(h.CreateNotification))).Methods(http.MethodPost)
	r.Handle("/{user_id}", admin(http.HandlerFunc(h.DeleteNotifications))).Methods(http.MethodDelete)
}

func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListForUser(r.Context(), mux.Vars(r)["user_id"])
	if err != nil {
		h.fail(w, r, "Failed to list notifications", err)
		return
	}
	response.Raw(w, http.StatusOK, dto.FromModels(list))
}

func (h *NotificationHandler) ListUnread(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListUnread(r.Context(), mux.Vars(r)["user_id"])
	if err != nil {
		h.fail(w, r, "Failed to list unread notifications", err)
		return
	}
	response.Raw(w, http.StatusOK, dto.FromModels(list))
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.UnreadCount(r.Context(), mux.Vars(r)["user_id"])
	if err != nil {
		h.fail(w, r, "Failed to count unread notifications", err)
		return
	}
	response.Raw(w, http.StatusOK, count)
}

func (h *NotificationHandler) ReadIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := h.service.ReadIDs(r.Context(), mux.Vars(r)["user_id"])
	if err != nil {
		h.fail(w, r, "Failed to load read ids", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	response.Raw(w, http.StatusOK, ids)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req dto.MarkReadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validation.Struct(req); err != nil {
		h.fail(w, r, "Invalid mark-read request", err)
		return
	}

	result, err := h.service.MarkRead(r.Context(), mux.Vars(r)["user_id"], req.MessageIDs)
	if err != nil {
		h.fail(w, r, "Failed to mark notifications read", err)
		return
	}
	response.Raw(w, http.StatusOK, dto.FromMarkReadResult(result))
}

func (h *NotificationHandler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateNotificationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pathUserID := mux.Vars(r)["user_id"]
	if req.UserID == "" {
		req.UserID = pathUserID
	}
	if req.UserID != pathUserID {
		response.Error(w, response.ErrBadRequest.WithMessage("user_id in body does not match path"))
		return
	}

	cmd, err := req.ToCommand()
	if err != nil {
		h.fail(w, r, "Invalid notification", err)
		return
	}

	notification, err := h.service.Create(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, "Failed to create notification", err)
		return
	}
	response.Raw(w, http.StatusCreated, dto.FromModel(notification))
}

func (h *NotificationHandler) DeleteNotifications(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.service.DeleteForUser(r.Context(), mux.Vars(r)["user_id"])
	if err != nil {
		h.fail(w, r, "Failed to delete notifications", err)
		return
	}
	response.Raw(w, http.StatusOK, dto.MessageResponse{Message: deletedMessage, Deleted: &deleted})
}

func (h *NotificationHandler) ResetReadStatus(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ResetReadStatus(r.Context(), mux.Vars(r)["user_id"]); err != nil {
		h.fail(w, r, "Failed to reset read status", err)
		return
	}
	response.Raw(w, http.StatusOK, dto.MessageResponse{Message: deletedMessage})
}

func (h *NotificationHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	apiErr := toAPIError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		h.logger.WithContext(r.Context()).Error(msg, "error", err)
	} else {
		h.logger.WithContext(r.Context()).Debug(msg, "error", err)
	}
	response.Error(w, apiErr)
}

func toAPIError(err error) *response.APIError {
	var verrs *validation.Errors
	switch {
	case errors.As(err, &verrs):
		apiErr := response.ErrValidation
		for field, msg := range verrs.Fields {
			apiErr = apiErr.WithDetails(field, msg)
		}
		return apiErr
	case errors.Is(err, model.ErrInvalidType):
		return response.ErrValidation.WithDetails("type", err.Error())
	case errors.Is(err, service.ErrInvalidUserID):
		return response.ErrBadRequest.WithMessage(err.Error())
	case errors.Is(err, repository.ErrDuplicateMessageID):
		return response.ErrConflict.WithMessage(err.Error())
	case errors.Is(err, repository.ErrNotFound):
		return response.ErrNotFound
	default:
		return response.ErrInternal
	}
}

func orPass(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return mw
}

// decodeBody writes the failure response itself and reports whether v was filled
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(w, response.ErrPayloadTooLarge)
	} else {
		response.Error(w, response.ErrBadRequest.WithMessage("invalid request body"))
	}
	return false
}
