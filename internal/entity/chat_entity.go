package entity

import "time"

type ChatRoom struct {
	Id            string    `bson:"_id" json:"id"`
	IsGroup       bool      `bson:"isGroup" json:"isGroup"`
	Name          string    `bson:"name,omitempty" json:"name,omitempty"`
	Participants  []string  `bson:"participants" json:"participants"`
	DeletedFor    []string  `bson:"deletedFor" json:"-"`
	LastMessageId string    `bson:"lastMessageId,omitempty" json:"lastMessageId,omitempty"`
	CreatedBy     string    `bson:"createdBy" json:"createdBy"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (r ChatRoom) HasParticipant(userId string) bool {
	return containsId(r.Participants, userId)
}

func (r ChatRoom) DeletedBy(userId string) bool {
	return containsId(r.DeletedFor, userId)
}

// DeletedByAll reports whether every participant has soft-deleted the room,
// counting the given extra users as already deleted.
func (r ChatRoom) DeletedByAll(extra ...string) bool {
	return coversAll(r.Participants, r.DeletedFor, extra)
}

func containsId(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func coversAll(required, have, extra []string) bool {
	for _, id := range required {
		if !containsId(have, id) && !containsId(extra, id) {
			return false
		}
	}
	return true
}
