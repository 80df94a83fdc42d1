package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/renshaw/taskwire/internal/models"
	"github.com/renshaw/taskwire/internal/pending"
)

// Broadcaster is the delivery surface the handlers hand notifications to.
type Broadcaster interface {
	Broadcast(ctx context.Context, n models.Notification) (delivered int, queued bool, err error)
}

// Handler holds API route handlers.
type Handler struct {
	broadcaster Broadcaster
	store       pending.Store
}

// NewHandler creates a new Handler.
func NewHandler(broadcaster Broadcaster, store pending.Store) *Handler {
	return &Handler{broadcaster: broadcaster, store: store}
}

// FetchNotifications handles GET /notifications/{identity}.
//
// This GET has a side effect: the returned entries are marked delivered in
// the same call, so an immediate repeat returns an empty set. The mobile
// polling path depends on that drain semantics.
func (h *Handler) FetchNotifications(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	if identity == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("identity is required"))
		return
	}

	items, err := h.store.FetchAndMarkDelivered(r.Context(), identity)
	if err != nil {
		slog.Error("fetch notifications failed",
			slog.String("identity", identity),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if items == nil {
		items = []models.PendingNotification{}
	}
	writeJSON(w, http.StatusOK, PendingListResponse{
		Notifications: items,
		Count:         len(items),
	})
}

// SendNotification handles POST /notifications/send.
func (h *Handler) SendNotification(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req SendNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Type == "" {
		req.Type = models.TypeTaskAssigned
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	n, err := buildNotification(req)
	if err != nil {
		slog.Error("build notification failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	delivered, queued, err := h.broadcaster.Broadcast(r.Context(), n)
	if err != nil {
		slog.Error("send notification failed",
			slog.String("identity", req.EmployeeID),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusAccepted, SendNotificationResponse{
		Queued:      queued,
		DeliveredTo: delivered,
	})
}

// buildNotification maps the request onto the typed wire contract.
func buildNotification(req SendNotificationRequest) (models.Notification, error) {
	var payload any
	switch req.Type {
	case models.TypeTaskReminder:
		payload = models.TaskReminderData{
			TaskTitle: req.Title,
			Priority:  req.Priority,
			TaskID:    req.TaskID,
			DueDate:   req.DueDate,
		}
	default:
		payload = models.TaskAssignedData{
			TaskTitle:  req.Title,
			AssignedBy: req.ProjectName,
			Priority:   req.Priority,
			TaskID:     req.TaskID,
		}
	}
	n, err := models.New(req.Type, req.EmployeeID, payload)
	if err != nil {
		return models.Notification{}, err
	}
	n.Message = req.Message
	return n, nil
}
