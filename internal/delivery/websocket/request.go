package websocket

import "encoding/json"

// Client-to-server events.
const (
	EventJoinRoom    = "joinRoom"
	EventLeaveRoom   = "leaveRoom"
	EventSendMessage = "sendMessage"
	EventTyping      = "typing"
	EventMarkSeen    = "markAsSeen"
)

type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type JoinRoomData struct {
	RoomId string `json:"roomId"`
}

type LeaveRoomData struct {
	RoomId string `json:"roomId"`
}

type SendMessageData struct {
	RoomId      string `json:"roomId"`
	Content     string `json:"content"`
	MessageType string `json:"messageType"`
	Caption     string `json:"caption,omitempty"`
}

type TypingData struct {
	RoomId   string `json:"roomId"`
	IsTyping bool   `json:"isTyping"`
}

type MarkSeenData struct {
	MessageId string `json:"messageId"`
}
