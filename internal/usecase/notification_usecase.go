package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"linkup/internal/entity"
	"linkup/internal/repository"
)

const (
	// pushTimeout bounds every provider call. A timeout counts as a full
	// delivery failure and is never retried.
	pushTimeout = 10 * time.Second

	// userCacheTTL keeps directory lookups (tokens, preferences) warm
	// between dispatches.
	userCacheTTL = 30 * time.Second

	messagePreviewLimit = 80
)

// RateLimiter throttles per-recipient dispatch.
type RateLimiter interface {
	Allow(key string) bool
}

// Cache is the TTL cache the dispatcher fronts directory lookups with.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
}

type DispatchResult struct {
	Delivered   int  `json:"delivered"`
	Failed      int  `json:"failed"`
	RateLimited bool `json:"rateLimited"`
	Skipped     bool `json:"skipped"`
}

type NotificationUsecase interface {
	Dispatch(ctx context.Context, recipientId string, event entity.NotificationEvent) (DispatchResult, error)

	// Domain-event entry points. These log their own failures; nothing
	// propagates to the triggering action.
	NotifyMessage(room entity.ChatRoom, message entity.Message, senderId string)
	NotifyRoomCreated(room entity.ChatRoom, actorId string)
	NotifyGroupAdded(room entity.ChatRoom, actorId string, newUserIds []string)
	NotifyChatRequest(request entity.PermissionRequest)
	NotifyRequestResolved(request entity.PermissionRequest)
	NotifyPostInteraction(ctx context.Context, kind, actorId, postId, authorId, parentAuthorId string) error
	NotifyFollow(ctx context.Context, followerId, followeeId string) error

	Index(ctx context.Context, recipientId string, limit, offset int) ([]entity.Notification, error)
	MarkRead(ctx context.Context, notificationId, recipientId string) error
	MarkAllRead(ctx context.Context, recipientId string) error
	Delete(ctx context.Context, notificationId, recipientId string) error
}

type notificationUsecase struct {
	notificationRepo repository.NotificationRepository
	userRepo         repository.UserRepository
	provider         PushProvider
	limiter          RateLimiter
	cache            Cache
}

func NewNotificationUsecase(
	notificationRepo repository.NotificationRepository,
	userRepo repository.UserRepository,
	provider PushProvider,
	limiter RateLimiter,
	cache Cache,
) NotificationUsecase {
	return &notificationUsecase{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		provider:         provider,
		limiter:          limiter,
		cache:            cache,
	}
}

// Dispatch turns one domain event into a push toward one recipient and a
// persisted Notification row. Preference and rate-limit short-circuits skip
// the push; the rate-limited case still records the row with
// isDelivered=false so the domain event is not lost.
func (n *notificationUsecase) Dispatch(ctx context.Context, recipientId string, event entity.NotificationEvent) (DispatchResult, error) {
	if event.SenderId == recipientId {
		return DispatchResult{Skipped: true}, nil
	}

	recipient, err := n.getUser(ctx, recipientId)
	if err != nil {
		return DispatchResult{}, err
	}

	if !preferenceEnabled(recipient.Preferences, event.Type) {
		return DispatchResult{Skipped: true}, nil
	}

	notification := entity.Notification{
		RecipientId: recipientId,
		SenderId:    event.SenderId,
		Type:        event.Type,
		Title:       event.Title,
		Body:        event.Body,
		Data:        event.Data,
	}

	if !n.limiter.Allow(recipientId) {
		if _, err := n.notificationRepo.Create(ctx, notification); err != nil {
			return DispatchResult{RateLimited: true}, err
		}
		return DispatchResult{RateLimited: true}, nil
	}

	result := DispatchResult{}
	if len(recipient.DeviceTokens) > 0 {
		result = n.sendPush(ctx, recipient, event)
	}

	if result.Delivered > 0 {
		notification.IsDelivered = true
		now := time.Now()
		notification.DeliveredAt = &now
	}

	if _, err := n.notificationRepo.Create(ctx, notification); err != nil {
		return result, err
	}

	return result, nil
}

func (n *notificationUsecase) sendPush(ctx context.Context, recipient entity.User, event entity.NotificationEvent) DispatchResult {
	payload := PushPayload{
		Title: event.Title,
		Body:  event.Body,
		Data:  event.Data,
	}

	pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()

	results, err := n.provider.SendMulticast(pushCtx, recipient.DeviceTokens, payload)
	if err != nil {
		log.Printf("dispatch to %s: provider: %v", recipient.Id, err)
		return DispatchResult{Failed: len(recipient.DeviceTokens)}
	}

	var out DispatchResult
	var invalid []string
	for _, r := range results {
		if r.Delivered {
			out.Delivered++
		} else {
			out.Failed++
		}
		if r.Invalid {
			invalid = append(invalid, r.Token)
		}
	}

	if len(invalid) > 0 {
		if err := n.userRepo.RemoveDeviceTokens(ctx, recipient.Id, invalid); err != nil {
			log.Printf("dispatch to %s: prune tokens: %v", recipient.Id, err)
		}
		n.cache.Delete(userCacheKey(recipient.Id))
	}

	return out
}

// NotifyMessage fans a new message out to the room. Group rooms notify every
// participant except the sender; one-to-one rooms notify the peer only when
// they are offline at this instant.
func (n *notificationUsecase) NotifyMessage(room entity.ChatRoom, message entity.Message, senderId string) {
	ctx := context.Background()

	sender, err := n.getUser(ctx, senderId)
	if err != nil {
		log.Printf("notify message %s: sender lookup: %v", message.Id, err)
		return
	}

	event := entity.NotificationEvent{
		Type:     entity.NotificationTypeMessage,
		SenderId: senderId,
		Title:    sender.Name,
		Body:     messagePreview(message),
		Data: map[string]string{
			"roomId":    room.Id,
			"messageId": message.Id,
			"senderId":  senderId,
		},
	}

	for _, participantId := range room.Participants {
		if participantId == senderId {
			continue
		}
		if !room.IsGroup && n.isReachable(ctx, participantId) {
			continue
		}
		if _, err := n.Dispatch(ctx, participantId, event); err != nil {
			log.Printf("notify message %s to %s: %v", message.Id, participantId, err)
		}
	}
}

func (n *notificationUsecase) NotifyRoomCreated(room entity.ChatRoom, actorId string) {
	ctx := context.Background()

	actor, err := n.getUser(ctx, actorId)
	if err != nil {
		log.Printf("notify room created %s: actor lookup: %v", room.Id, err)
		return
	}

	event := entity.NotificationEvent{
		SenderId: actorId,
		Title:    actor.Name,
		Data:     map[string]string{"roomId": room.Id},
	}
	if room.IsGroup {
		event.Type = entity.NotificationTypeGroupCreated
		event.Body = fmt.Sprintf("added you to %q", room.Name)
	} else {
		event.Type = entity.NotificationTypeChatCreated
		event.Body = "started a chat with you"
	}

	for _, participantId := range room.Participants {
		if participantId == actorId {
			continue
		}
		if !room.IsGroup && n.isReachable(ctx, participantId) {
			continue
		}
		if _, err := n.Dispatch(ctx, participantId, event); err != nil {
			log.Printf("notify room created %s to %s: %v", room.Id, participantId, err)
		}
	}
}

func (n *notificationUsecase) NotifyGroupAdded(room entity.ChatRoom, actorId string, newUserIds []string) {
	ctx := context.Background()

	actor, err := n.getUser(ctx, actorId)
	if err != nil {
		log.Printf("notify group added %s: actor lookup: %v", room.Id, err)
		return
	}

	event := entity.NotificationEvent{
		Type:     entity.NotificationTypeGroupAdded,
		SenderId: actorId,
		Title:    actor.Name,
		Body:     fmt.Sprintf("added you to %q", room.Name),
		Data:     map[string]string{"roomId": room.Id},
	}

	for _, userId := range newUserIds {
		if _, err := n.Dispatch(ctx, userId, event); err != nil {
			log.Printf("notify group added %s to %s: %v", room.Id, userId, err)
		}
	}
}

func (n *notificationUsecase) NotifyChatRequest(request entity.PermissionRequest) {
	ctx := context.Background()

	requester, err := n.getUser(ctx, request.RequesterId)
	if err != nil {
		log.Printf("notify chat request %s: requester lookup: %v", request.Id, err)
		return
	}

	body := "wants to start a chat with you"
	if request.Message != "" {
		body = request.Message
	}

	event := entity.NotificationEvent{
		Type:     entity.NotificationTypeChatRequest,
		SenderId: request.RequesterId,
		Title:    requester.Name,
		Body:     body,
		Data:     map[string]string{"requestId": request.Id},
	}

	if _, err := n.Dispatch(ctx, request.RecipientId, event); err != nil {
		log.Printf("notify chat request %s: %v", request.Id, err)
	}
}

func (n *notificationUsecase) NotifyRequestResolved(request entity.PermissionRequest) {
	ctx := context.Background()

	recipient, err := n.getUser(ctx, request.RecipientId)
	if err != nil {
		log.Printf("notify request resolved %s: recipient lookup: %v", request.Id, err)
		return
	}

	event := entity.NotificationEvent{
		SenderId: request.RecipientId,
		Title:    recipient.Name,
		Data:     map[string]string{"requestId": request.Id},
	}
	if request.Status == entity.RequestStatusApproved {
		event.Type = entity.NotificationTypeRequestApproved
		event.Body = "accepted your chat request"
	} else {
		event.Type = entity.NotificationTypeRequestDenied
		event.Body = "declined your chat request"
	}

	if _, err := n.Dispatch(ctx, request.RequesterId, event); err != nil {
		log.Printf("notify request resolved %s: %v", request.Id, err)
	}
}

// NotifyPostInteraction handles like/comment/reply events from the post
// service. Only the content's author is notified; a reply additionally
// notifies the parent comment's author, each independently suppressed when
// identical to the actor.
func (n *notificationUsecase) NotifyPostInteraction(ctx context.Context, kind, actorId, postId, authorId, parentAuthorId string) error {
	actor, err := n.getUser(ctx, actorId)
	if err != nil {
		return err
	}

	var body string
	switch kind {
	case entity.NotificationTypeLike:
		body = "liked your post"
	case entity.NotificationTypeComment:
		body = "commented on your post"
	case entity.NotificationTypeReply:
		body = "replied to your comment"
	default:
		return ErrInvalidEventType
	}

	event := entity.NotificationEvent{
		Type:     kind,
		SenderId: actorId,
		Title:    actor.Name,
		Body:     body,
		Data:     map[string]string{"postId": postId},
	}

	if authorId != "" && authorId != actorId {
		if _, err := n.Dispatch(ctx, authorId, event); err != nil {
			return err
		}
	}

	if kind == entity.NotificationTypeReply && parentAuthorId != "" &&
		parentAuthorId != actorId && parentAuthorId != authorId {
		if _, err := n.Dispatch(ctx, parentAuthorId, event); err != nil {
			return err
		}
	}

	return nil
}

func (n *notificationUsecase) NotifyFollow(ctx context.Context, followerId, followeeId string) error {
	follower, err := n.getUser(ctx, followerId)
	if err != nil {
		return err
	}

	event := entity.NotificationEvent{
		Type:     entity.NotificationTypeFollow,
		SenderId: followerId,
		Title:    follower.Name,
		Body:     "started following you",
		Data:     map[string]string{"userId": followerId},
	}

	_, err = n.Dispatch(ctx, followeeId, event)
	return err
}

func (n *notificationUsecase) Index(ctx context.Context, recipientId string, limit, offset int) ([]entity.Notification, error) {
	return n.notificationRepo.IndexForRecipient(ctx, recipientId, limit, offset)
}

func (n *notificationUsecase) MarkRead(ctx context.Context, notificationId, recipientId string) error {
	return n.notificationRepo.MarkRead(ctx, notificationId, recipientId)
}

func (n *notificationUsecase) MarkAllRead(ctx context.Context, recipientId string) error {
	return n.notificationRepo.MarkAllRead(ctx, recipientId)
}

func (n *notificationUsecase) Delete(ctx context.Context, notificationId, recipientId string) error {
	return n.notificationRepo.Delete(ctx, notificationId, recipientId)
}

// isReachable reports whether the user is online at this instant. A user
// connected to the gateway anywhere in the app counts as reachable, room
// subscription does not matter.
func (n *notificationUsecase) isReachable(ctx context.Context, userId string) bool {
	user, err := n.userRepo.Get(ctx, userId)
	if err != nil {
		return false
	}
	return user.IsOnline
}

func (n *notificationUsecase) getUser(ctx context.Context, userId string) (entity.User, error) {
	key := userCacheKey(userId)
	if cached, ok := n.cache.Get(key); ok {
		if user, ok := cached.(entity.User); ok {
			return user, nil
		}
	}

	user, err := n.userRepo.Get(ctx, userId)
	if err != nil {
		return entity.User{}, err
	}

	n.cache.Set(key, user, userCacheTTL)
	return user, nil
}

func userCacheKey(userId string) string {
	return "user:" + userId
}

func preferenceEnabled(prefs entity.NotificationPreferences, eventType string) bool {
	switch eventType {
	case entity.NotificationTypeLike:
		return prefs.Likes
	case entity.NotificationTypeComment, entity.NotificationTypeReply:
		return prefs.Comments
	case entity.NotificationTypeFollow:
		return prefs.Follows
	case entity.NotificationTypeGroupCreated, entity.NotificationTypeGroupAdded:
		return prefs.GroupChats
	default:
		// message, chat_created and the request lifecycle ride the
		// messages flag
		return prefs.Messages
	}
}

func messagePreview(message entity.Message) string {
	switch message.MessageType {
	case entity.MessageTypeImage:
		return "Sent a photo"
	case entity.MessageTypeVideo:
		return "Sent a video"
	case entity.MessageTypeFile:
		return "Sent a file"
	}
	if len(message.Content) > messagePreviewLimit {
		return message.Content[:messagePreviewLimit] + "…"
	}
	return message.Content
}
