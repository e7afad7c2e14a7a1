package usecase

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"linkup/internal/entity"
	"linkup/internal/repository"
)

// Notifier is the dispatcher surface the lifecycle manager hands events to.
// Calls are made off the request path; implementations log their own
// failures and never propagate them back to the triggering action.
type Notifier interface {
	NotifyMessage(room entity.ChatRoom, message entity.Message, senderId string)
	NotifyRoomCreated(room entity.ChatRoom, actorId string)
	NotifyGroupAdded(room entity.ChatRoom, actorId string, newUserIds []string)
}

type DeleteMessageResult struct {
	Message      entity.Message `json:"message"`
	FullyDeleted bool           `json:"fullyDeleted"`
}

type ChatUsecase interface {
	CreateOrReuseRoom(ctx context.Context, participants []string, isGroup bool, name, actorId string) (entity.ChatRoom, error)
	AddParticipants(ctx context.Context, roomId string, userIds []string, actorId string) (entity.ChatRoom, error)
	DeleteRoom(ctx context.Context, roomId, actorId string) error

	SendMessage(ctx context.Context, roomId, senderId, content, messageType, caption string) (entity.Message, error)
	DeleteMessage(ctx context.Context, messageId, actorId string) (DeleteMessageResult, error)
	MarkSeen(ctx context.Context, messageId, userId string) (entity.Message, error)
	PurgeUserContent(ctx context.Context, userId string) error

	Index(ctx context.Context, userId string) ([]entity.ChatRoom, error)
	Get(ctx context.Context, roomId, userId string) (entity.ChatRoom, error)
	GetMessages(ctx context.Context, roomId, userId string, limit, offset int) ([]entity.Message, error)
}

type chatUsecase struct {
	roomRepo    repository.ChatRoomRepository
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	media       MediaStore
	notifier    Notifier
}

func NewChatUsecase(
	roomRepo repository.ChatRoomRepository,
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	media MediaStore,
	notifier Notifier,
) ChatUsecase {
	return &chatUsecase{
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		media:       media,
		notifier:    notifier,
	}
}

// CreateOrReuseRoom creates a room for the given participant set, or returns
// the existing room with an identical set. A room the actor had soft-deleted
// is resurrected, not re-created.
func (c *chatUsecase) CreateOrReuseRoom(ctx context.Context, participants []string, isGroup bool, name, actorId string) (entity.ChatRoom, error) {
	members := normalizeParticipants(participants, actorId)

	if isGroup {
		if name == "" {
			return entity.ChatRoom{}, ErrGroupNameRequired
		}
		if len(members) < 2 {
			return entity.ChatRoom{}, ErrInvalidParticipants
		}
	} else if len(members) != 2 {
		return entity.ChatRoom{}, ErrInvalidParticipants
	}

	users, err := c.userRepo.Index(ctx, entity.UserIndexFilter{Ids: members})
	if err != nil {
		return entity.ChatRoom{}, err
	}
	if len(users) != len(members) {
		return entity.ChatRoom{}, repository.ErrUserNotFound
	}

	existing, err := c.roomRepo.FindByParticipants(ctx, members, isGroup)
	if err == nil {
		if existing.DeletedBy(actorId) {
			if err := c.roomRepo.ClearDeletedFor(ctx, existing.Id, actorId); err != nil {
				return entity.ChatRoom{}, err
			}
			existing.DeletedFor = removeId(existing.DeletedFor, actorId)
		}
		return existing, nil
	}
	if err != repository.ErrRoomNotFound {
		return entity.ChatRoom{}, err
	}

	room := entity.ChatRoom{
		IsGroup:      isGroup,
		Name:         name,
		Participants: members,
		CreatedBy:    actorId,
	}
	if !isGroup {
		room.Name = ""
	}

	roomId, err := c.roomRepo.Create(ctx, room)
	if err != nil {
		return entity.ChatRoom{}, err
	}
	room.Id = roomId
	room.CreatedAt = time.Now()
	room.UpdatedAt = room.CreatedAt

	go c.notifier.NotifyRoomCreated(room, actorId)

	return room, nil
}

// AddParticipants adds users to a group room. Re-added users are cleared
// from deletedFor so the room reappears for them.
func (c *chatUsecase) AddParticipants(ctx context.Context, roomId string, userIds []string, actorId string) (entity.ChatRoom, error) {
	room, err := c.roomRepo.Get(ctx, roomId)
	if err != nil {
		return entity.ChatRoom{}, err
	}
	if !room.IsGroup {
		return entity.ChatRoom{}, ErrNotGroupRoom
	}
	if !room.HasParticipant(actorId) {
		return entity.ChatRoom{}, ErrNotParticipant
	}

	var added []string
	for _, id := range normalizeParticipants(userIds, "") {
		if !room.HasParticipant(id) {
			added = append(added, id)
		}
	}
	if len(added) == 0 {
		return room, nil
	}

	users, err := c.userRepo.Index(ctx, entity.UserIndexFilter{Ids: added})
	if err != nil {
		return entity.ChatRoom{}, err
	}
	if len(users) != len(added) {
		return entity.ChatRoom{}, repository.ErrUserNotFound
	}

	if err := c.roomRepo.AddParticipants(ctx, roomId, added); err != nil {
		return entity.ChatRoom{}, err
	}

	room.Participants = append(room.Participants, added...)
	for _, id := range added {
		room.DeletedFor = removeId(room.DeletedFor, id)
	}

	go c.notifier.NotifyGroupAdded(room, actorId, added)

	return room, nil
}

// DeleteRoom soft-deletes the room for the actor. Once every participant
// has deleted it the room is purged for real: media best-effort, then
// messages, then the room row.
func (c *chatUsecase) DeleteRoom(ctx context.Context, roomId, actorId string) error {
	room, err := c.roomRepo.Get(ctx, roomId)
	if err != nil {
		return err
	}
	if !room.HasParticipant(actorId) {
		return ErrNotParticipant
	}
	if room.DeletedBy(actorId) {
		return nil
	}

	if err := c.roomRepo.MarkDeletedFor(ctx, roomId, actorId); err != nil {
		return err
	}

	if !room.DeletedByAll(actorId) {
		return nil
	}

	return c.purgeRoom(ctx, room)
}

// purgeRoom is the unanimity cascade. Media failures are logged and do not
// abort the row deletes: blob-store consistency yields to data-store
// consistency here.
func (c *chatUsecase) purgeRoom(ctx context.Context, room entity.ChatRoom) error {
	media, err := c.messageRepo.MediaByRoom(ctx, room.Id)
	if err != nil {
		log.Printf("purge room %s: list media: %v", room.Id, err)
	}

	var wg sync.WaitGroup
	for _, m := range media {
		wg.Add(1)
		go func(msg entity.Message) {
			defer wg.Done()
			if err := c.media.Delete(ctx, msg.Content, msg.MessageType); err != nil {
				log.Printf("purge room %s: delete media %s: %v", room.Id, msg.Id, err)
			}
		}(m)
	}
	wg.Wait()

	if err := c.messageRepo.DeleteByRoom(ctx, room.Id); err != nil {
		return err
	}

	return c.roomRepo.Delete(ctx, room.Id)
}

// SendMessage persists a message, updates the room's last-message reference
// and hands the event to the dispatcher off the caller's path.
func (c *chatUsecase) SendMessage(ctx context.Context, roomId, senderId, content, messageType, caption string) (entity.Message, error) {
	room, err := c.roomRepo.Get(ctx, roomId)
	if err != nil {
		return entity.Message{}, err
	}
	if !room.HasParticipant(senderId) {
		return entity.Message{}, ErrNotParticipant
	}

	if messageType == "" {
		messageType = entity.MessageTypeText
	}
	if !entity.ValidMessageType(messageType) {
		return entity.Message{}, ErrInvalidMessageType
	}
	if content == "" {
		return entity.Message{}, ErrEmptyContent
	}

	message := entity.Message{
		ChatRoomId:  roomId,
		SenderId:    senderId,
		Content:     content,
		MessageType: messageType,
	}
	if message.IsMedia() {
		message.Caption = caption
	}

	messageId, err := c.messageRepo.Create(ctx, message)
	if err != nil {
		return entity.Message{}, err
	}
	message.Id = messageId
	message.CreatedAt = time.Now()

	if err := c.roomRepo.SetLastMessage(ctx, roomId, messageId); err != nil {
		log.Printf("send message %s: set last message: %v", messageId, err)
	}

	go c.notifier.NotifyMessage(room, message, senderId)

	return message, nil
}

// DeleteMessage handles both deletion modes. A sender delete rewrites the
// content to a tombstone (once, for everyone); any participant delete hides
// the message from their own view. Unanimity purges the row.
func (c *chatUsecase) DeleteMessage(ctx context.Context, messageId, actorId string) (DeleteMessageResult, error) {
	message, err := c.messageRepo.Get(ctx, messageId)
	if err != nil {
		return DeleteMessageResult{}, err
	}

	room, err := c.roomRepo.Get(ctx, message.ChatRoomId)
	if err != nil {
		return DeleteMessageResult{}, err
	}
	if !room.HasParticipant(actorId) {
		return DeleteMessageResult{}, ErrNotParticipant
	}

	if actorId == message.SenderId && message.Content != entity.TombstoneDeleted {
		if message.IsMedia() {
			if err := c.media.Delete(ctx, message.Content, message.MessageType); err != nil {
				log.Printf("delete message %s: delete media: %v", messageId, err)
			}
		}
		if err := c.messageRepo.Rewrite(ctx, messageId, entity.TombstoneDeleted); err != nil {
			return DeleteMessageResult{}, err
		}
		message.Content = entity.TombstoneDeleted
		message.MessageType = entity.MessageTypeText
		message.Caption = ""
	}

	if !message.DeletedBy(actorId) {
		if err := c.messageRepo.MarkDeletedFor(ctx, messageId, actorId); err != nil {
			return DeleteMessageResult{}, err
		}
		message.DeletedFor = append(message.DeletedFor, actorId)
	}

	if !coversAll(room.Participants, message.DeletedFor) {
		return DeleteMessageResult{Message: message}, nil
	}

	if err := c.messageRepo.Delete(ctx, messageId); err != nil {
		return DeleteMessageResult{}, err
	}

	if room.LastMessageId == messageId {
		if err := c.rederiveLastMessage(ctx, room.Id); err != nil {
			log.Printf("delete message %s: rederive last message: %v", messageId, err)
		}
	}

	return DeleteMessageResult{Message: message, FullyDeleted: true}, nil
}

func (c *chatUsecase) rederiveLastMessage(ctx context.Context, roomId string) error {
	latest, err := c.messageRepo.LatestInRoom(ctx, roomId)
	if err != nil {
		if err == repository.ErrMessageNotFound {
			return c.roomRepo.SetLastMessage(ctx, roomId, "")
		}
		return err
	}
	return c.roomRepo.SetLastMessage(ctx, roomId, latest.Id)
}

func (c *chatUsecase) MarkSeen(ctx context.Context, messageId, userId string) (entity.Message, error) {
	message, err := c.messageRepo.Get(ctx, messageId)
	if err != nil {
		return entity.Message{}, err
	}

	room, err := c.roomRepo.Get(ctx, message.ChatRoomId)
	if err != nil {
		return entity.Message{}, err
	}
	if !room.HasParticipant(userId) {
		return entity.Message{}, ErrNotParticipant
	}

	if !message.SeenByUser(userId) {
		if err := c.messageRepo.AddSeenBy(ctx, messageId, userId); err != nil {
			return entity.Message{}, err
		}
		message.SeenBy = append(message.SeenBy, userId)
	}

	return message, nil
}

// PurgeUserContent is the account-deletion hook: every message the user
// authored becomes a tombstone, hidden from the author but still visible to
// other participants.
func (c *chatUsecase) PurgeUserContent(ctx context.Context, userId string) error {
	return c.messageRepo.RewriteBySender(ctx, userId, entity.TombstoneAccountDeleted)
}

func (c *chatUsecase) Index(ctx context.Context, userId string) ([]entity.ChatRoom, error) {
	return c.roomRepo.Index(ctx, userId)
}

func (c *chatUsecase) Get(ctx context.Context, roomId, userId string) (entity.ChatRoom, error) {
	room, err := c.roomRepo.Get(ctx, roomId)
	if err != nil {
		return entity.ChatRoom{}, err
	}
	if !room.HasParticipant(userId) {
		return entity.ChatRoom{}, ErrNotParticipant
	}

	return room, nil
}

func (c *chatUsecase) GetMessages(ctx context.Context, roomId, userId string, limit, offset int) ([]entity.Message, error) {
	room, err := c.roomRepo.Get(ctx, roomId)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(userId) {
		return nil, ErrNotParticipant
	}

	filter := entity.MessageIndexFilter{
		ChatRoomId: roomId,
		ViewerId:   userId,
		Limit:      limit,
		Offset:     offset,
	}
	return c.messageRepo.Index(ctx, filter)
}

// normalizeParticipants dedupes the list, includes the actor when given and
// sorts for stable set comparison.
func normalizeParticipants(participants []string, actorId string) []string {
	seen := make(map[string]bool)
	var members []string
	for _, id := range participants {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, id)
	}
	if actorId != "" && !seen[actorId] {
		members = append(members, actorId)
	}
	sort.Strings(members)
	return members
}

func removeId(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func coversAll(required, have []string) bool {
	for _, id := range required {
		found := false
		for _, h := range have {
			if h == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
