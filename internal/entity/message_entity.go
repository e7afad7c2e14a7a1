package entity

import "time"

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeVideo = "video"
	MessageTypeFile  = "file"
)

// Tombstone values written over message content on sender-initiated delete.
const (
	TombstoneDeleted        = "This message was deleted"
	TombstoneAccountDeleted = "Message unavailable (account deleted)"
)

type Message struct {
	Id          string    `bson:"_id" json:"id"`
	ChatRoomId  string    `bson:"chatRoomId" json:"chatRoomId"`
	SenderId    string    `bson:"senderId" json:"senderId"`
	Content     string    `bson:"content" json:"content"`
	MessageType string    `bson:"messageType" json:"messageType"`
	Caption     string    `bson:"caption,omitempty" json:"caption,omitempty"`
	DeletedFor  []string  `bson:"deletedFor" json:"-"`
	SeenBy      []string  `bson:"seenBy" json:"seenBy"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
}

func (m Message) IsMedia() bool {
	return m.MessageType != "" && m.MessageType != MessageTypeText
}

func (m Message) DeletedBy(userId string) bool {
	return containsId(m.DeletedFor, userId)
}

func (m Message) SeenByUser(userId string) bool {
	return containsId(m.SeenBy, userId)
}

func ValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeFile:
		return true
	}
	return false
}

type MessageIndexFilter struct {
	ChatRoomId string `bson:"chatRoomId"`
	ViewerId   string `bson:"viewerId"`
	Limit      int    `bson:"limit"`
	Offset     int    `bson:"offset"`
}
