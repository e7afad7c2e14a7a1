package entity

import "time"

const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusDenied   = "denied"
)

// ChatData is the snapshot stored on a permission request, used to
// materialize the room if the recipient approves.
type ChatData struct {
	Participants []string `bson:"participants" json:"participants"`
	IsGroup      bool     `bson:"isGroup" json:"isGroup"`
	Name         string   `bson:"name,omitempty" json:"name,omitempty"`
}

type PermissionRequest struct {
	Id          string     `bson:"_id" json:"id"`
	RequesterId string     `bson:"requesterId" json:"requesterId"`
	RecipientId string     `bson:"recipientId" json:"recipientId"`
	Status      string     `bson:"status" json:"status"`
	Message     string     `bson:"message,omitempty" json:"message,omitempty"`
	ChatData    ChatData   `bson:"chatData" json:"chatData"`
	ExpiresAt   time.Time  `bson:"expiresAt" json:"expiresAt"`
	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	RespondedAt *time.Time `bson:"respondedAt,omitempty" json:"respondedAt,omitempty"`
}

func (p PermissionRequest) IsTerminal() bool {
	return p.Status != RequestStatusPending
}

// PermissionCheck is the outcome of the privacy gate for a prospective chat.
type PermissionCheck struct {
	Allowed          bool   `json:"allowed"`
	RequiresApproval bool   `json:"requiresApproval"`
	Reason           string `json:"reason,omitempty"`
}
