package usecase

import (
	"context"
	"errors"
	"testing"

	"linkup/internal/entity"
)

func allPrefs() entity.NotificationPreferences {
	return entity.NotificationPreferences{
		Likes:      true,
		Comments:   true,
		Follows:    true,
		Messages:   true,
		GroupChats: true,
	}
}

type dispatchFixture struct {
	notificationRepo *fakeNotificationRepo
	userRepo         *fakeUserRepo
	provider         *fakeProvider
	limiter          *fakeLimiter
	cache            *fakeCache
	uc               NotificationUsecase
}

func newDispatchFixture(users ...entity.User) *dispatchFixture {
	f := &dispatchFixture{
		notificationRepo: newFakeNotificationRepo(),
		userRepo:         newFakeUserRepo(users...),
		provider:         &fakeProvider{},
		limiter:          allowAll(),
		cache:            newFakeCache(),
	}
	f.uc = NewNotificationUsecase(f.notificationRepo, f.userRepo, f.provider, f.limiter, f.cache)
	return f
}

func recipient(id string, tokens ...string) entity.User {
	return entity.User{Id: id, Name: "name-" + id, Preferences: allPrefs(), DeviceTokens: tokens}
}

func messageEvent(senderId string) entity.NotificationEvent {
	return entity.NotificationEvent{
		Type:     entity.NotificationTypeMessage,
		SenderId: senderId,
		Title:    "name-" + senderId,
		Body:     "hello",
	}
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("self event suppressed", func(t *testing.T) {
		f := newDispatchFixture(recipient("alice", "tok1"))

		result, err := f.uc.Dispatch(ctx, "alice", messageEvent("alice"))
		if err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		if !result.Skipped {
			t.Fatalf("result = %+v, want skipped", result)
		}
		if f.provider.callCount() != 0 {
			t.Fatal("provider called for self event")
		}
		if rows := f.notificationRepo.all(); len(rows) != 0 {
			t.Fatalf("rows = %v", rows)
		}
	})

	t.Run("disabled preference skips push and row", func(t *testing.T) {
		muted := recipient("alice", "tok1")
		muted.Preferences.Messages = false
		f := newDispatchFixture(muted)

		result, err := f.uc.Dispatch(ctx, "alice", messageEvent("bob"))
		if err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		if !result.Skipped {
			t.Fatalf("result = %+v, want skipped", result)
		}
		if f.provider.callCount() != 0 {
			t.Fatal("provider called despite muted preference")
		}
	})

	t.Run("delivered push persists delivered row", func(t *testing.T) {
		f := newDispatchFixture(recipient("alice", "tok1", "tok2"))

		result, err := f.uc.Dispatch(ctx, "alice", messageEvent("bob"))
		if err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		if result.Delivered != 2 || result.Failed != 0 {
			t.Fatalf("result = %+v", result)
		}

		rows := f.notificationRepo.all()
		if len(rows) != 1 {
			t.Fatalf("rows = %v", rows)
		}
		if !rows[0].IsDelivered || rows[0].DeliveredAt == nil {
			t.Fatalf("row = %+v, want delivered", rows[0])
		}
	})

	t.Run("rate limited still persists undelivered row", func(t *testing.T) {
		f := newDispatchFixture(recipient("alice", "tok1"))
		f.limiter = &fakeLimiter{remaining: 0}
		f.uc = NewNotificationUsecase(f.notificationRepo, f.userRepo, f.provider, f.limiter, f.cache)

		result, err := f.uc.Dispatch(ctx, "alice", messageEvent("bob"))
		if err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		if !result.RateLimited {
			t.Fatalf("result = %+v, want rate limited", result)
		}
		if f.provider.callCount() != 0 {
			t.Fatal("provider called while rate limited")
		}

		rows := f.notificationRepo.all()
		if len(rows) != 1 || rows[0].IsDelivered {
			t.Fatalf("rows = %v, want one undelivered", rows)
		}
	})

	t.Run("no tokens still persists row", func(t *testing.T) {
		f := newDispatchFixture(recipient("alice"))

		result, err := f.uc.Dispatch(ctx, "alice", messageEvent("bob"))
		if err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		if result.Delivered != 0 || f.provider.callCount() != 0 {
			t.Fatalf("result = %+v, provider calls = %d", result, f.provider.callCount())
		}
		if rows := f.notificationRepo.all(); len(rows) != 1 || rows[0].IsDelivered {
			t.Fatalf("rows = %v", rows)
		}
	})

	t.Run("invalid tokens pruned and cache dropped", func(t *testing.T) {
		f := newDispatchFixture(recipient("alice", "good", "stale"))
		f.provider.results = []PushResult{
			{Token: "good", Delivered: true},
			{Token: "stale", Invalid: true},
		}

		result, err := f.uc.Dispatch(ctx, "alice", messageEvent("bob"))
		if err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		if result.Delivered != 1 || result.Failed != 1 {
			t.Fatalf("result = %+v", result)
		}

		user, _ := f.userRepo.Get(ctx, "alice")
		if len(user.DeviceTokens) != 1 || user.DeviceTokens[0] != "good" {
			t.Fatalf("tokens = %v, want stale pruned", user.DeviceTokens)
		}
		if _, ok := f.cache.Get("user:alice"); ok {
			t.Fatal("recipient cache entry survived token pruning")
		}
	})

	t.Run("provider outage counts all tokens failed", func(t *testing.T) {
		f := newDispatchFixture(recipient("alice", "tok1", "tok2"))
		f.provider.err = errors.New("fcm unreachable")

		result, err := f.uc.Dispatch(ctx, "alice", messageEvent("bob"))
		if err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		if result.Failed != 2 || result.Delivered != 0 {
			t.Fatalf("result = %+v", result)
		}
		if rows := f.notificationRepo.all(); len(rows) != 1 || rows[0].IsDelivered {
			t.Fatalf("rows = %v, want one undelivered", rows)
		}
	})
}

func TestNotifyMessageReachability(t *testing.T) {
	online := recipient("online-peer", "tok-online")
	online.IsOnline = true
	offline := recipient("offline-peer", "tok-offline")
	sender := recipient("sender", "tok-sender")

	t.Run("one to one skips online peer", func(t *testing.T) {
		f := newDispatchFixture(online, sender)
		room := entity.ChatRoom{Id: "room-1", Participants: []string{"sender", "online-peer"}}

		f.uc.NotifyMessage(room, entity.Message{Id: "m1", ChatRoomId: room.Id, Content: "hi"}, "sender")

		if rows := f.notificationRepo.all(); len(rows) != 0 {
			t.Fatalf("rows = %v, want none for online peer", rows)
		}
	})

	t.Run("one to one notifies offline peer", func(t *testing.T) {
		f := newDispatchFixture(offline, sender)
		room := entity.ChatRoom{Id: "room-1", Participants: []string{"sender", "offline-peer"}}

		f.uc.NotifyMessage(room, entity.Message{Id: "m1", ChatRoomId: room.Id, Content: "hi"}, "sender")

		rows := f.notificationRepo.all()
		if len(rows) != 1 || rows[0].RecipientId != "offline-peer" {
			t.Fatalf("rows = %v", rows)
		}
		if rows[0].Type != entity.NotificationTypeMessage {
			t.Fatalf("type = %s", rows[0].Type)
		}
	})

	t.Run("group notifies everyone but the sender", func(t *testing.T) {
		f := newDispatchFixture(online, offline, sender)
		room := entity.ChatRoom{
			Id:           "room-g",
			IsGroup:      true,
			Name:         "team",
			Participants: []string{"sender", "online-peer", "offline-peer"},
		}

		f.uc.NotifyMessage(room, entity.Message{Id: "m1", ChatRoomId: room.Id, Content: "hi"}, "sender")

		rows := f.notificationRepo.all()
		if len(rows) != 2 {
			t.Fatalf("rows = %v, want both peers", rows)
		}
		for _, row := range rows {
			if row.RecipientId == "sender" {
				t.Fatal("sender notified of own message")
			}
		}
	})

	t.Run("media message gets a typed preview", func(t *testing.T) {
		f := newDispatchFixture(offline, sender)
		room := entity.ChatRoom{Id: "room-1", Participants: []string{"sender", "offline-peer"}}

		f.uc.NotifyMessage(room, entity.Message{
			Id:          "m1",
			ChatRoomId:  room.Id,
			Content:     "https://cdn/a.jpg",
			MessageType: entity.MessageTypeImage,
		}, "sender")

		rows := f.notificationRepo.all()
		if len(rows) != 1 || rows[0].Body != "Sent a photo" {
			t.Fatalf("rows = %v", rows)
		}
	})
}

func TestNotifyPostInteraction(t *testing.T) {
	ctx := context.Background()

	t.Run("author notified", func(t *testing.T) {
		f := newDispatchFixture(recipient("actor"), recipient("author", "tok"))

		if err := f.uc.NotifyPostInteraction(ctx, entity.NotificationTypeLike, "actor", "post-1", "author", ""); err != nil {
			t.Fatalf("notify: %v", err)
		}

		rows := f.notificationRepo.all()
		if len(rows) != 1 || rows[0].RecipientId != "author" || rows[0].Type != entity.NotificationTypeLike {
			t.Fatalf("rows = %v", rows)
		}
	})

	t.Run("self interaction suppressed", func(t *testing.T) {
		f := newDispatchFixture(recipient("actor", "tok"))

		if err := f.uc.NotifyPostInteraction(ctx, entity.NotificationTypeLike, "actor", "post-1", "actor", ""); err != nil {
			t.Fatalf("notify: %v", err)
		}
		if rows := f.notificationRepo.all(); len(rows) != 0 {
			t.Fatalf("rows = %v", rows)
		}
	})

	t.Run("reply notifies parent author too", func(t *testing.T) {
		f := newDispatchFixture(recipient("actor"), recipient("author", "t1"), recipient("parent", "t2"))

		if err := f.uc.NotifyPostInteraction(ctx, entity.NotificationTypeReply, "actor", "post-1", "author", "parent"); err != nil {
			t.Fatalf("notify: %v", err)
		}

		rows := f.notificationRepo.all()
		if len(rows) != 2 {
			t.Fatalf("rows = %v, want author and parent", rows)
		}
	})

	t.Run("parent identical to author notified once", func(t *testing.T) {
		f := newDispatchFixture(recipient("actor"), recipient("author", "t1"))

		if err := f.uc.NotifyPostInteraction(ctx, entity.NotificationTypeReply, "actor", "post-1", "author", "author"); err != nil {
			t.Fatalf("notify: %v", err)
		}
		if rows := f.notificationRepo.all(); len(rows) != 1 {
			t.Fatalf("rows = %v, want a single row", rows)
		}
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		f := newDispatchFixture(recipient("actor"))

		if err := f.uc.NotifyPostInteraction(ctx, "share", "actor", "post-1", "author", ""); !errors.Is(err, ErrInvalidEventType) {
			t.Fatalf("err = %v, want ErrInvalidEventType", err)
		}
	})
}

func TestNotifyFollow(t *testing.T) {
	ctx := context.Background()

	t.Run("notifies followee", func(t *testing.T) {
		f := newDispatchFixture(recipient("follower"), recipient("followee", "tok"))

		if err := f.uc.NotifyFollow(ctx, "follower", "followee"); err != nil {
			t.Fatalf("notify: %v", err)
		}

		rows := f.notificationRepo.all()
		if len(rows) != 1 || rows[0].Type != entity.NotificationTypeFollow {
			t.Fatalf("rows = %v", rows)
		}
	})

	t.Run("follows preference respected", func(t *testing.T) {
		muted := recipient("followee", "tok")
		muted.Preferences.Follows = false
		f := newDispatchFixture(recipient("follower"), muted)

		if err := f.uc.NotifyFollow(ctx, "follower", "followee"); err != nil {
			t.Fatalf("notify: %v", err)
		}
		if rows := f.notificationRepo.all(); len(rows) != 0 {
			t.Fatalf("rows = %v", rows)
		}
	})
}

func TestNotifyChatRequestLifecycle(t *testing.T) {
	f := newDispatchFixture(recipient("alice"), recipient("bob", "tok"))

	request := entity.PermissionRequest{
		Id:          "req-1",
		RequesterId: "alice",
		RecipientId: "bob",
		Status:      entity.RequestStatusPending,
	}
	f.uc.NotifyChatRequest(request)

	rows := f.notificationRepo.all()
	if len(rows) != 1 || rows[0].Type != entity.NotificationTypeChatRequest || rows[0].RecipientId != "bob" {
		t.Fatalf("rows = %v", rows)
	}

	request.Status = entity.RequestStatusApproved
	f.uc.NotifyRequestResolved(request)

	rows = f.notificationRepo.all()
	if len(rows) != 2 {
		t.Fatalf("rows = %v", rows)
	}
	var resolved entity.Notification
	for _, row := range rows {
		if row.RecipientId == "alice" {
			resolved = row
		}
	}
	if resolved.Type != entity.NotificationTypeRequestApproved {
		t.Fatalf("resolved = %+v", resolved)
	}
}

func TestNotificationReadSurface(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture(recipient("alice", "tok"))

	if _, err := f.uc.Dispatch(ctx, "alice", messageEvent("bob")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, err := f.uc.Dispatch(ctx, "alice", messageEvent("carol")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	rows, err := f.uc.Index(ctx, "alice", 50, 0)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %v", rows)
	}

	if err := f.uc.MarkRead(ctx, rows[0].Id, "alice"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := f.uc.MarkRead(ctx, rows[1].Id, "intruder"); err == nil {
		t.Fatal("foreign recipient marked another user's notification")
	}

	if err := f.uc.MarkAllRead(ctx, "alice"); err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	rows, _ = f.uc.Index(ctx, "alice", 50, 0)
	for _, row := range rows {
		if !row.IsRead {
			t.Fatalf("row %s still unread", row.Id)
		}
	}

	if err := f.uc.Delete(ctx, rows[0].Id, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rows, _ = f.uc.Index(ctx, "alice", 50, 0); len(rows) != 1 {
		t.Fatalf("rows after delete = %v", rows)
	}
}
