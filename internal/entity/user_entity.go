package entity

import "time"

// Messaging privacy policies a user can set for incoming chats.
const (
	MessagePolicyEveryone  = "everyone"
	MessagePolicyFollowers = "followers"
	MessagePolicyNobody    = "nobody"
)

type NotificationPreferences struct {
	Likes      bool `bson:"likes" json:"likes"`
	Comments   bool `bson:"comments" json:"comments"`
	Follows    bool `bson:"follows" json:"follows"`
	Messages   bool `bson:"messages" json:"messages"`
	GroupChats bool `bson:"groupChats" json:"groupChats"`
}

// User is the directory view of an account. Profile CRUD lives in the
// directory service; this backend only reads these documents and flips
// the presence fields.
type User struct {
	Id            string                  `bson:"_id" json:"id"`
	Username      string                  `bson:"username" json:"username"`
	Name          string                  `bson:"name" json:"name"`
	IsOnline      bool                    `bson:"isOnline" json:"isOnline"`
	LastSeenAt    *time.Time              `bson:"lastSeenAt,omitempty" json:"lastSeenAt,omitempty"`
	MessagePolicy string                  `bson:"messagePolicy" json:"messagePolicy"`
	Followers     []string                `bson:"followers" json:"-"`
	DeviceTokens  []string                `bson:"deviceTokens" json:"-"`
	Preferences   NotificationPreferences `bson:"preferences" json:"preferences"`
	CreatedAt     time.Time               `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time               `bson:"updatedAt" json:"updatedAt"`
}

type UserIndexFilter struct {
	Ids []string `bson:"ids"`
}

type TokenClaims struct {
	UserId   string `json:"userId"`
	Username string `json:"username"`
}
