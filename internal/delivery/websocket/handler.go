package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"linkup/infrastructure/ws"
	"linkup/internal/usecase"
	"linkup/pkg/jwt"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebsocketHandler struct {
	hub        ws.IHub
	presenceUc usecase.PresenceUsecase
	chatUc     usecase.ChatUsecase
	jwtManager *jwt.JWTManager
}

func NewWebsocketHandler(hub ws.IHub, presenceUc usecase.PresenceUsecase, chatUc usecase.ChatUsecase, jwtManager *jwt.JWTManager) *WebsocketHandler {
	return &WebsocketHandler{
		hub:        hub,
		presenceUc: presenceUc,
		chatUc:     chatUc,
		jwtManager: jwtManager,
	}
}

// HandleWebSocket upgrades the connection, marks the user online and joins
// them to every room they participate in.
func (h *WebsocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.jwtManager.ValidateAccessToken(token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	user, roomIds, err := h.presenceUc.Connect(ctx, claims.UserId)
	if err != nil {
		log.Printf("Connect error: %v", err)
		http.Error(w, "Connect failed", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Upgrade error: %v", err)
		return
	}

	client := ws.NewClient(user.Id, h.hub, conn)
	h.hub.RegisterClient(client)

	for _, roomId := range roomIds {
		h.hub.Subscribe(user.Id, roomId)
	}
	online := encodeEvent(EventUserOnline, RoomUserData{UserId: user.Id})
	for _, roomId := range roomIds {
		h.hub.BroadcastToRoom(roomId, online)
	}

	go client.WritePump()
	client.ReadPump(func(data []byte) {
		h.handleEvent(context.Background(), client, data)
	})
}

// HandleDisconnect is wired as the hub's unregister callback. The hub has
// already dropped the connection and its subscriptions by the time it runs.
func (h *WebsocketHandler) HandleDisconnect(client *ws.UserClient) error {
	ctx := context.Background()

	roomIds, err := h.presenceUc.Disconnect(ctx, client.UserId)
	if err != nil {
		return err
	}

	offline := encodeEvent(EventUserOffline, RoomUserData{UserId: client.UserId})
	for _, roomId := range roomIds {
		h.hub.BroadcastToRoom(roomId, offline)
	}

	return nil
}

func (h *WebsocketHandler) handleEvent(ctx context.Context, client *ws.UserClient, data []byte) {
	var event ClientEvent
	if err := json.Unmarshal(data, &event); err != nil {
		h.sendError(client, "malformed event")
		return
	}

	switch event.Event {
	case EventJoinRoom:
		h.handleJoinRoom(ctx, client, event.Data)
	case EventLeaveRoom:
		h.handleLeaveRoom(client, event.Data)
	case EventSendMessage:
		h.handleSendMessage(ctx, client, event.Data)
	case EventTyping:
		h.handleTyping(client, event.Data)
	case EventMarkSeen:
		h.handleMarkSeen(ctx, client, event.Data)
	default:
		h.sendError(client, "unknown event: "+event.Event)
	}
}

func (h *WebsocketHandler) handleJoinRoom(ctx context.Context, client *ws.UserClient, data json.RawMessage) {
	var req JoinRoomData
	if err := json.Unmarshal(data, &req); err != nil || req.RoomId == "" {
		h.sendError(client, "malformed joinRoom event")
		return
	}

	// Membership check: only current participants may subscribe
	if _, err := h.chatUc.Get(ctx, req.RoomId, client.UserId); err != nil {
		h.sendError(client, "not authorized to join this room")
		return
	}

	h.hub.Subscribe(client.UserId, req.RoomId)
	h.hub.BroadcastToRoom(req.RoomId, encodeEvent(EventUserJoined, RoomUserData{
		RoomId: req.RoomId,
		UserId: client.UserId,
	}))
}

func (h *WebsocketHandler) handleLeaveRoom(client *ws.UserClient, data json.RawMessage) {
	var req LeaveRoomData
	if err := json.Unmarshal(data, &req); err != nil || req.RoomId == "" {
		h.sendError(client, "malformed leaveRoom event")
		return
	}

	h.hub.Unsubscribe(client.UserId, req.RoomId)
	h.hub.BroadcastToRoom(req.RoomId, encodeEvent(EventUserLeft, RoomUserData{
		RoomId: req.RoomId,
		UserId: client.UserId,
	}))
}

func (h *WebsocketHandler) handleSendMessage(ctx context.Context, client *ws.UserClient, data json.RawMessage) {
	var req SendMessageData
	if err := json.Unmarshal(data, &req); err != nil || req.RoomId == "" {
		h.sendError(client, "malformed sendMessage event")
		return
	}

	message, err := h.chatUc.SendMessage(ctx, req.RoomId, client.UserId, req.Content, req.MessageType, req.Caption)
	if err != nil {
		log.Printf("SendMessage error from %s: %v", client.UserId, err)
		h.sendError(client, err.Error())
		return
	}

	// Echoed back to the sender as delivery confirmation
	h.hub.BroadcastToRoom(req.RoomId, encodeEvent(EventReceiveMessage, message))
}

func (h *WebsocketHandler) handleTyping(client *ws.UserClient, data json.RawMessage) {
	var req TypingData
	if err := json.Unmarshal(data, &req); err != nil || req.RoomId == "" {
		h.sendError(client, "malformed typing event")
		return
	}

	// Broadcast-only, nothing persisted
	h.hub.BroadcastToRoom(req.RoomId, encodeEvent(EventUserTyping, UserTypingData{
		RoomId:   req.RoomId,
		UserId:   client.UserId,
		IsTyping: req.IsTyping,
	}))
}

func (h *WebsocketHandler) handleMarkSeen(ctx context.Context, client *ws.UserClient, data json.RawMessage) {
	var req MarkSeenData
	if err := json.Unmarshal(data, &req); err != nil || req.MessageId == "" {
		h.sendError(client, "malformed markAsSeen event")
		return
	}

	message, err := h.chatUc.MarkSeen(ctx, req.MessageId, client.UserId)
	if err != nil {
		h.sendError(client, err.Error())
		return
	}

	h.hub.BroadcastToRoom(message.ChatRoomId, encodeEvent(EventMessageSeen, MessageSeenData{
		RoomId:    message.ChatRoomId,
		MessageId: message.Id,
		UserId:    client.UserId,
	}))
}

func (h *WebsocketHandler) sendError(client *ws.UserClient, message string) {
	h.hub.SendToClient(client.UserId, encodeEvent(EventError, ErrorData{Message: message}))
}
