package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"linkup/infrastructure/ws"
	wsDelivery "linkup/internal/delivery/websocket"
	"linkup/internal/entity"
	"linkup/internal/repository"
	"linkup/internal/usecase"

	"github.com/go-chi/chi/v5"
)

type HttpHandler struct {
	chatUc         usecase.ChatUsecase
	permissionUc   usecase.PermissionUsecase
	notificationUc usecase.NotificationUsecase
	hub            ws.IHub
}

func NewHttpHandler(
	chatUc usecase.ChatUsecase,
	permissionUc usecase.PermissionUsecase,
	notificationUc usecase.NotificationUsecase,
	hub ws.IHub,
) *HttpHandler {
	return &HttpHandler{
		chatUc:         chatUc,
		permissionUc:   permissionUc,
		notificationUc: notificationUc,
		hub:            hub,
	}
}

type Response struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, response Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Message: "success", Data: data})
}

// writeError maps the error taxonomy onto status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrRoomNotFound),
		errors.Is(err, repository.ErrMessageNotFound),
		errors.Is(err, repository.ErrRequestNotFound),
		errors.Is(err, repository.ErrNotificationNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, Response{Message: err.Error()})

	case errors.Is(err, usecase.ErrNotParticipant),
		errors.Is(err, usecase.ErrNotRecipient),
		errors.Is(err, usecase.ErrMessagingNotAllowed):
		writeJSON(w, http.StatusForbidden, Response{Message: err.Error()})

	case errors.Is(err, repository.ErrPendingRequestExists),
		errors.Is(err, usecase.ErrRequestResolved):
		writeJSON(w, http.StatusConflict, Response{Message: err.Error()})

	case errors.Is(err, usecase.ErrInvalidParticipants),
		errors.Is(err, usecase.ErrGroupNameRequired),
		errors.Is(err, usecase.ErrNotGroupRoom),
		errors.Is(err, usecase.ErrInvalidMessageType),
		errors.Is(err, usecase.ErrInvalidDecision),
		errors.Is(err, usecase.ErrInvalidEventType),
		errors.Is(err, usecase.ErrEmptyContent):
		writeJSON(w, http.StatusBadRequest, Response{Message: err.Error()})

	default:
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, Response{Message: "internal server error"})
	}
}

// Method Post /rooms
func (h *HttpHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeUnauthorized(w, "missing credentials")
		return
	}

	var req struct {
		Participants []string `json:"participants"`
		IsGroup      bool     `json:"isGroup"`
		Name         string   `json:"name"`
		Message      string   `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}

	// One-to-one creation passes through the privacy gate first
	if !req.IsGroup {
		recipientId := ""
		for _, id := range req.Participants {
			if id != claims.UserId {
				recipientId = id
				break
			}
		}
		if recipientId == "" {
			writeError(w, usecase.ErrInvalidParticipants)
			return
		}

		check, err := h.permissionUc.CheckPermission(r.Context(), claims.UserId, recipientId)
		if err != nil {
			writeError(w, err)
			return
		}
		if !check.Allowed {
			if !check.RequiresApproval {
				writeJSON(w, http.StatusForbidden, Response{Message: check.Reason})
				return
			}

			chatData := entity.ChatData{
				Participants: []string{claims.UserId, recipientId},
			}
			request, err := h.permissionUc.CreateRequest(r.Context(), claims.UserId, recipientId, chatData, req.Message)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusAccepted, Response{Message: "approval required", Data: request})
			return
		}
	}

	room, err := h.chatUc.CreateOrReuseRoom(r.Context(), req.Participants, req.IsGroup, req.Name, claims.UserId)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, room)
}

// Method Get /rooms
func (h *HttpHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeUnauthorized(w, "missing credentials")
		return
	}

	rooms, err := h.chatUc.Index(r.Context(), claims.UserId)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, rooms)
}

// Method Get /rooms/{roomId}
func (h *HttpHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeUnauthorized(w, "missing credentials")
		return
	}

	room, err := h.chatUc.Get(r.Context(), chi.URLParam(r, "roomId"), claims.UserId)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, room)
}

// Method Delete /rooms/{roomId}
func (h *HttpHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeUnauthorized(w, "missing credentials")
		return
	}

	if err := h.chatUc.DeleteRoom(r.Context(), chi.URLParam(r, "roomId"), claims.UserId); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success"})
}

// Method Post /rooms/{roomId}/participants
func (h *HttpHandler) AddParticipants(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeUnauthorized(w, "missing credentials")
		return
	}

	var req struct {
		UserIds []string `json:"userIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}

	room, err := h.chatUc.AddParticipants(r.Context(), chi.URLParam(r, "roomId"), req.UserIds, claims.UserId)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, room)
}

// Method Get /rooms/{roomId}/messages
func (h *HttpHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeUnauthorized(w, "missing credentials")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	messages, err := h.chatUc.GetMessages(r.Context(), chi.URLParam(r, "roomId"), claims.UserId, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, messages)
}

// Method Post /rooms/{roomId}/messages
func (h *HttpHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeUnauthorized(w, "missing credentials")
		return
	}

	var req struct {
		Content     string `json:"content"`
		MessageType string `json:"messageType"`
		Caption     string `json:"caption"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}

	roomId := chi.URLParam(r, "roomId")
	message, err := h.chatUc.SendMessage(r.Context(), roomId, claims.UserId, req.Content, req.MessageType, req.Caption)
	if err != nil {
		writeError(w, err)
		return
	}

	h.hub.BroadcastToRoom(roomId, wsDelivery.EncodeReceiveMessage(message))

	writeData(w, message)
}

// Method Delete /messages/{messageId}
func (h *HttpHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeUnauthorized(w, "missing credentials")
		return
	}

	result, err := h.chatUc.DeleteMessage(r.Context(), chi.URLParam(r, "messageId"), claims.UserId)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, result)
}

// Method Post /messages/{messageId}/seen
func (h *HttpHandler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeUnauthorized(w, "missing credentials")
		return
	}

	message, err := h.chatUc.MarkSeen(r.Context(), chi.URLParam(r, "messageId"), claims.UserId)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, message)
}

// Method Get /permissions/check?recipientId=...
func (h *HttpHandler) CheckPermission(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeUnauthorized(w, "missing credentials")
		return
	}

	recipientId := r.URL.Query().Get("recipientId")
	if recipientId == "" {
		writeJSON(w, http.StatusBadRequest, Response{Message: "recipientId is required"})
		return
	}

	check, err := h.permissionUc.CheckPermission(r.Context(), claims.UserId, recipientId)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, check)
}

// Method Post /permission-requests
func (h *HttpHandler) CreatePermissionRequest(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeUnauthorized(w, "missing credentials")
		return
	}

	var req struct {
		RecipientId string          `json:"recipientId"`
		ChatData    entity.ChatData `json:"chatData"`
		Message     string          `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}

	request, err := h.permissionUc.CreateRequest(r.Context(), claims.UserId, req.RecipientId, req.ChatData, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, request)
}

// Method Post /permission-requests/{requestId}/respond
func (h *HttpHandler) RespondPermissionRequest(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeUnauthorized(w, "missing credentials")
		return
	}

	var req struct {
		Decision string `json:"decision"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}

	result, err := h.permissionUc.Respond(r.Context(), chi.URLParam(r, "requestId"), claims.UserId, req.Decision)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, result)
}

// Method Get /permission-requests
func (h *HttpHandler) ListPermissionRequests(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeUnauthorized(w, "missing credentials")
		return
	}

	requests, err := h.permissionUc.IndexForRecipient(r.Context(), claims.UserId)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, requests)
}

// Method Get /notifications
func (h *HttpHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeUnauthorized(w, "missing credentials")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	notifications, err := h.notificationUc.Index(r.Context(), claims.UserId, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, notifications)
}

// Method Post /notifications/{notificationId}/read
func (h *HttpHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeUnauthorized(w, "missing credentials")
		return
	}

	if err := h.notificationUc.MarkRead(r.Context(), chi.URLParam(r, "notificationId"), claims.UserId); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success"})
}

// Method Post /notifications/read-all
func (h *HttpHandler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeUnauthorized(w, "missing credentials")
		return
	}

	if err := h.notificationUc.MarkAllRead(r.Context(), claims.UserId); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success"})
}

// Method Delete /notifications/{notificationId}
func (h *HttpHandler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeUnauthorized(w, "missing credentials")
		return
	}

	if err := h.notificationUc.Delete(r.Context(), chi.URLParam(r, "notificationId"), claims.UserId); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success"})
}

// Method Post /internal/events
// Entry point for the post/follow services to hand interaction events to
// the dispatcher.
func (h *HttpHandler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type           string `json:"type"`
		ActorId        string `json:"actorId"`
		PostId         string `json:"postId"`
		AuthorId       string `json:"authorId"`
		ParentAuthorId string `json:"parentAuthorId"`
		FolloweeId     string `json:"followeeId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}

	var err error
	switch req.Type {
	case entity.NotificationTypeFollow:
		err = h.notificationUc.NotifyFollow(r.Context(), req.ActorId, req.FolloweeId)
	case entity.NotificationTypeLike, entity.NotificationTypeComment, entity.NotificationTypeReply:
		err = h.notificationUc.NotifyPostInteraction(r.Context(), req.Type, req.ActorId, req.PostId, req.AuthorId, req.ParentAuthorId)
	default:
		err = usecase.ErrInvalidEventType
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success"})
}

// Method Post /internal/users/{userId}/purge
// Account-deletion hook from the directory service.
func (h *HttpHandler) PurgeUserContent(w http.ResponseWriter, r *http.Request) {
	if err := h.chatUc.PurgeUserContent(r.Context(), chi.URLParam(r, "userId")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success"})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
