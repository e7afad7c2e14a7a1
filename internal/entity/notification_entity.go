package entity

import "time"

const (
	NotificationTypeLike            = "like"
	NotificationTypeComment         = "comment"
	NotificationTypeReply           = "reply"
	NotificationTypeFollow          = "follow"
	NotificationTypeMessage         = "message"
	NotificationTypeChatCreated     = "chat_created"
	NotificationTypeGroupCreated    = "group_created"
	NotificationTypeGroupAdded      = "group_added"
	NotificationTypeChatRequest     = "chat_request"
	NotificationTypeRequestApproved = "chat_request_approved"
	NotificationTypeRequestDenied   = "chat_request_denied"
)

type Notification struct {
	Id          string            `bson:"_id" json:"id"`
	RecipientId string            `bson:"recipientId" json:"recipientId"`
	SenderId    string            `bson:"senderId,omitempty" json:"senderId,omitempty"`
	Type        string            `bson:"type" json:"type"`
	Title       string            `bson:"title" json:"title"`
	Body        string            `bson:"body" json:"body"`
	Data        map[string]string `bson:"data,omitempty" json:"data,omitempty"`
	IsRead      bool              `bson:"isRead" json:"isRead"`
	ReadAt      *time.Time        `bson:"readAt,omitempty" json:"readAt,omitempty"`
	IsDelivered bool              `bson:"isDelivered" json:"isDelivered"`
	DeliveredAt *time.Time        `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	CreatedAt   time.Time         `bson:"createdAt" json:"createdAt"`
}

// NotificationEvent is a domain event handed to the dispatcher. The
// dispatcher decides per recipient whether it becomes a push and a row.
type NotificationEvent struct {
	Type     string            `json:"type"`
	SenderId string            `json:"senderId,omitempty"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
}
