package websocket

import (
	"encoding/json"
	"log"
)

// Server-to-client events.
const (
	EventReceiveMessage = "receiveMessage"
	EventUserJoined     = "userJoined"
	EventUserLeft       = "userLeft"
	EventUserTyping     = "userTyping"
	EventMessageSeen    = "messageSeen"
	EventUserOnline     = "userOnline"
	EventUserOffline    = "userOffline"
	EventError          = "error"
)

type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type RoomUserData struct {
	RoomId string `json:"roomId"`
	UserId string `json:"userId"`
}

type UserTypingData struct {
	RoomId   string `json:"roomId"`
	UserId   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type MessageSeenData struct {
	RoomId    string `json:"roomId"`
	MessageId string `json:"messageId"`
	UserId    string `json:"userId"`
}

type ErrorData struct {
	Message string `json:"message"`
}

// EncodeReceiveMessage lets the REST send path emit the same live event as
// the socket path.
func EncodeReceiveMessage(message any) []byte {
	return encodeEvent(EventReceiveMessage, message)
}

func encodeEvent(event string, data any) []byte {
	payload, err := json.Marshal(ServerEvent{Event: event, Data: data})
	if err != nil {
		log.Printf("marshal %s event: %v", event, err)
		return nil
	}
	return payload
}
