package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"linkup/internal/entity"
	"linkup/internal/repository"
)

// waitFor polls until cond holds or the deadline passes, for asserting on
// fire-and-forget paths.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

type fakeRoomRepo struct {
	mu    sync.Mutex
	rooms map[string]entity.ChatRoom
	seq   int
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: make(map[string]entity.ChatRoom)}
}

func (f *fakeRoomRepo) Get(_ context.Context, roomId string) (entity.ChatRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomId]
	if !ok {
		return entity.ChatRoom{}, repository.ErrRoomNotFound
	}
	return room, nil
}

func (f *fakeRoomRepo) Create(_ context.Context, room entity.ChatRoom) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	room.Id = fmt.Sprintf("room-%d", f.seq)
	room.CreatedAt = time.Now()
	room.UpdatedAt = room.CreatedAt
	if room.DeletedFor == nil {
		room.DeletedFor = []string{}
	}
	f.rooms[room.Id] = room
	return room.Id, nil
}

func (f *fakeRoomRepo) Index(_ context.Context, userId string) ([]entity.ChatRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.ChatRoom
	for _, room := range f.rooms {
		if room.HasParticipant(userId) && !room.DeletedBy(userId) {
			out = append(out, room)
		}
	}
	return out, nil
}

func (f *fakeRoomRepo) FindByParticipants(_ context.Context, participants []string, isGroup bool) (entity.ChatRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := append([]string(nil), participants...)
	sort.Strings(want)
	for _, room := range f.rooms {
		if room.IsGroup != isGroup || len(room.Participants) != len(want) {
			continue
		}
		have := append([]string(nil), room.Participants...)
		sort.Strings(have)
		match := true
		for i := range want {
			if have[i] != want[i] {
				match = false
				break
			}
		}
		if match {
			return room, nil
		}
	}
	return entity.ChatRoom{}, repository.ErrRoomNotFound
}

func (f *fakeRoomRepo) AddParticipants(_ context.Context, roomId string, userIds []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomId]
	if !ok {
		return repository.ErrRoomNotFound
	}
	for _, id := range userIds {
		if !room.HasParticipant(id) {
			room.Participants = append(room.Participants, id)
		}
		room.DeletedFor = remove(room.DeletedFor, id)
	}
	room.UpdatedAt = time.Now()
	f.rooms[roomId] = room
	return nil
}

func (f *fakeRoomRepo) MarkDeletedFor(_ context.Context, roomId, userId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomId]
	if !ok {
		return repository.ErrRoomNotFound
	}
	if !room.DeletedBy(userId) {
		room.DeletedFor = append(room.DeletedFor, userId)
	}
	f.rooms[roomId] = room
	return nil
}

func (f *fakeRoomRepo) ClearDeletedFor(_ context.Context, roomId, userId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomId]
	if !ok {
		return repository.ErrRoomNotFound
	}
	room.DeletedFor = remove(room.DeletedFor, userId)
	f.rooms[roomId] = room
	return nil
}

func (f *fakeRoomRepo) SetLastMessage(_ context.Context, roomId, messageId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomId]
	if !ok {
		return repository.ErrRoomNotFound
	}
	room.LastMessageId = messageId
	room.UpdatedAt = time.Now()
	f.rooms[roomId] = room
	return nil
}

func (f *fakeRoomRepo) Delete(_ context.Context, roomId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, roomId)
	return nil
}

func (f *fakeRoomRepo) EnsureIndexes(context.Context) error { return nil }

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[string]entity.Message
	seq      int
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[string]entity.Message)}
}

func (f *fakeMessageRepo) Get(_ context.Context, messageId string) (entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	message, ok := f.messages[messageId]
	if !ok {
		return entity.Message{}, repository.ErrMessageNotFound
	}
	return message, nil
}

func (f *fakeMessageRepo) Create(_ context.Context, message entity.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	message.Id = fmt.Sprintf("msg-%d", f.seq)
	message.CreatedAt = time.Now().Add(time.Duration(f.seq) * time.Millisecond)
	if message.DeletedFor == nil {
		message.DeletedFor = []string{}
	}
	if message.SeenBy == nil {
		message.SeenBy = []string{}
	}
	f.messages[message.Id] = message
	return message.Id, nil
}

func (f *fakeMessageRepo) Index(_ context.Context, filter entity.MessageIndexFilter) ([]entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Message
	for _, m := range f.messages {
		if m.ChatRoomId != filter.ChatRoomId {
			continue
		}
		if filter.ViewerId != "" && m.DeletedBy(filter.ViewerId) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeMessageRepo) MarkDeletedFor(_ context.Context, messageId, userId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[messageId]
	if !ok {
		return repository.ErrMessageNotFound
	}
	if !m.DeletedBy(userId) {
		m.DeletedFor = append(m.DeletedFor, userId)
	}
	f.messages[messageId] = m
	return nil
}

func (f *fakeMessageRepo) AddSeenBy(_ context.Context, messageId, userId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[messageId]
	if !ok {
		return repository.ErrMessageNotFound
	}
	if !m.SeenByUser(userId) {
		m.SeenBy = append(m.SeenBy, userId)
	}
	f.messages[messageId] = m
	return nil
}

func (f *fakeMessageRepo) Rewrite(_ context.Context, messageId, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[messageId]
	if !ok {
		return repository.ErrMessageNotFound
	}
	m.Content = content
	m.MessageType = entity.MessageTypeText
	m.Caption = ""
	f.messages[messageId] = m
	return nil
}

func (f *fakeMessageRepo) RewriteBySender(_ context.Context, senderId, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, m := range f.messages {
		if m.SenderId != senderId {
			continue
		}
		m.Content = content
		m.MessageType = entity.MessageTypeText
		m.Caption = ""
		if !m.DeletedBy(senderId) {
			m.DeletedFor = append(m.DeletedFor, senderId)
		}
		f.messages[id] = m
	}
	return nil
}

func (f *fakeMessageRepo) Delete(_ context.Context, messageId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.messages, messageId)
	return nil
}

func (f *fakeMessageRepo) DeleteByRoom(_ context.Context, roomId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, m := range f.messages {
		if m.ChatRoomId == roomId {
			delete(f.messages, id)
		}
	}
	return nil
}

func (f *fakeMessageRepo) LatestInRoom(_ context.Context, roomId string) (entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest entity.Message
	found := false
	for _, m := range f.messages {
		if m.ChatRoomId != roomId {
			continue
		}
		if !found || m.CreatedAt.After(latest.CreatedAt) {
			latest = m
			found = true
		}
	}
	if !found {
		return entity.Message{}, repository.ErrMessageNotFound
	}
	return latest, nil
}

func (f *fakeMessageRepo) MediaByRoom(_ context.Context, roomId string) ([]entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Message
	for _, m := range f.messages {
		if m.ChatRoomId == roomId && m.IsMedia() {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) EnsureIndexes(context.Context) error { return nil }

type fakePermissionRepo struct {
	mu       sync.Mutex
	requests map[string]entity.PermissionRequest
	seq      int
}

func newFakePermissionRepo() *fakePermissionRepo {
	return &fakePermissionRepo{requests: make(map[string]entity.PermissionRequest)}
}

func (f *fakePermissionRepo) Get(_ context.Context, requestId string) (entity.PermissionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	request, ok := f.requests[requestId]
	if !ok {
		return entity.PermissionRequest{}, repository.ErrRequestNotFound
	}
	return request, nil
}

func (f *fakePermissionRepo) Create(_ context.Context, request entity.PermissionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.requests {
		if existing.RequesterId == request.RequesterId &&
			existing.RecipientId == request.RecipientId &&
			existing.Status == entity.RequestStatusPending {
			return "", repository.ErrPendingRequestExists
		}
	}
	f.seq++
	request.Id = fmt.Sprintf("req-%d", f.seq)
	request.Status = entity.RequestStatusPending
	request.CreatedAt = time.Now()
	f.requests[request.Id] = request
	return request.Id, nil
}

func (f *fakePermissionRepo) IndexForRecipient(_ context.Context, recipientId string) ([]entity.PermissionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.PermissionRequest
	for _, request := range f.requests {
		if request.RecipientId == recipientId && request.Status == entity.RequestStatusPending {
			out = append(out, request)
		}
	}
	return out, nil
}

func (f *fakePermissionRepo) MarkResponded(_ context.Context, requestId, status string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	request, ok := f.requests[requestId]
	if !ok || request.Status != entity.RequestStatusPending {
		return false, nil
	}
	request.Status = status
	now := time.Now()
	request.RespondedAt = &now
	f.requests[requestId] = request
	return true, nil
}

func (f *fakePermissionRepo) EnsureIndexes(context.Context) error { return nil }

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]entity.User
}

func newFakeUserRepo(users ...entity.User) *fakeUserRepo {
	f := &fakeUserRepo{users: make(map[string]entity.User)}
	for _, u := range users {
		f.users[u.Id] = u
	}
	return f
}

func (f *fakeUserRepo) Get(_ context.Context, userId string) (entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userId]
	if !ok {
		return entity.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) Index(_ context.Context, filter entity.UserIndexFilter) ([]entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.User
	for _, id := range filter.Ids {
		if user, ok := f.users[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) IsFollower(_ context.Context, followerId, userId string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userId]
	if !ok {
		return false, repository.ErrUserNotFound
	}
	for _, id := range user.Followers {
		if id == followerId {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) SetOnline(_ context.Context, userId string, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userId]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.IsOnline = online
	if !online {
		now := time.Now()
		user.LastSeenAt = &now
	}
	f.users[userId] = user
	return nil
}

func (f *fakeUserRepo) RemoveDeviceTokens(_ context.Context, userId string, tokens []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userId]
	if !ok {
		return repository.ErrUserNotFound
	}
	for _, t := range tokens {
		user.DeviceTokens = remove(user.DeviceTokens, t)
	}
	f.users[userId] = user
	return nil
}

type fakeNotificationRepo struct {
	mu   sync.Mutex
	rows map[string]entity.Notification
	seq  int
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{rows: make(map[string]entity.Notification)}
}

func (f *fakeNotificationRepo) Create(_ context.Context, notification entity.Notification) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	notification.Id = fmt.Sprintf("ntf-%d", f.seq)
	notification.CreatedAt = time.Now()
	f.rows[notification.Id] = notification
	return notification.Id, nil
}

func (f *fakeNotificationRepo) IndexForRecipient(_ context.Context, recipientId string, _, _ int) ([]entity.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Notification
	for _, row := range f.rows {
		if row.RecipientId == recipientId {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out, nil
}

func (f *fakeNotificationRepo) MarkRead(_ context.Context, notificationId, recipientId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[notificationId]
	if !ok || row.RecipientId != recipientId {
		return repository.ErrNotificationNotFound
	}
	row.IsRead = true
	now := time.Now()
	row.ReadAt = &now
	f.rows[notificationId] = row
	return nil
}

func (f *fakeNotificationRepo) MarkAllRead(_ context.Context, recipientId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for id, row := range f.rows {
		if row.RecipientId == recipientId && !row.IsRead {
			row.IsRead = true
			row.ReadAt = &now
			f.rows[id] = row
		}
	}
	return nil
}

func (f *fakeNotificationRepo) Delete(_ context.Context, notificationId, recipientId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[notificationId]
	if !ok || row.RecipientId != recipientId {
		return repository.ErrNotificationNotFound
	}
	delete(f.rows, notificationId)
	return nil
}

func (f *fakeNotificationRepo) EnsureIndexes(context.Context) error { return nil }

func (f *fakeNotificationRepo) all() []entity.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entity.Notification, 0, len(f.rows))
	for _, row := range f.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

type mediaDelete struct {
	URL  string
	Type string
}

type fakeMediaStore struct {
	mu      sync.Mutex
	deleted []mediaDelete
	err     error
}

func (f *fakeMediaStore) Delete(_ context.Context, url, mediaType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, mediaDelete{URL: url, Type: mediaType})
	return f.err
}

func (f *fakeMediaStore) deletes() []mediaDelete {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mediaDelete(nil), f.deleted...)
}

// fakeNotifier satisfies both Notifier and RequestNotifier, recording all
// hand-offs.
type fakeNotifier struct {
	mu          sync.Mutex
	messages    []string // message ids
	roomCreated []string // room ids
	groupAdded  [][]string
	requests    []string // request ids
	resolved    []string // request ids
}

func (f *fakeNotifier) NotifyMessage(_ entity.ChatRoom, message entity.Message, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message.Id)
}

func (f *fakeNotifier) NotifyRoomCreated(room entity.ChatRoom, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roomCreated = append(f.roomCreated, room.Id)
}

func (f *fakeNotifier) NotifyGroupAdded(_ entity.ChatRoom, _ string, newUserIds []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupAdded = append(f.groupAdded, newUserIds)
}

func (f *fakeNotifier) NotifyChatRequest(request entity.PermissionRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, request.Id)
}

func (f *fakeNotifier) NotifyRequestResolved(request entity.PermissionRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, request.Id)
}

func (f *fakeNotifier) roomCreatedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.roomCreated)
}

func (f *fakeNotifier) messageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func (f *fakeNotifier) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeNotifier) resolvedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.resolved)
}

type providerCall struct {
	Tokens  []string
	Payload PushPayload
}

type fakeProvider struct {
	mu      sync.Mutex
	calls   []providerCall
	results []PushResult
	err     error
}

func (f *fakeProvider) SendMulticast(_ context.Context, tokens []string, payload PushPayload) ([]PushResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, providerCall{Tokens: tokens, Payload: payload})
	if f.err != nil {
		return nil, f.err
	}
	if f.results != nil {
		return f.results, nil
	}
	out := make([]PushResult, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, PushResult{Token: t, Delivered: true})
	}
	return out, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeCache struct {
	mu    sync.Mutex
	items map[string]any
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[string]any)}
}

func (f *fakeCache) Get(key string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.items[key]
	return v, ok
}

func (f *fakeCache) Set(key string, value any, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[key] = value
}

func (f *fakeCache) Delete(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, key)
}

type fakeLimiter struct {
	mu        sync.Mutex
	remaining int
	unlimited bool
}

func allowAll() *fakeLimiter { return &fakeLimiter{unlimited: true} }

func (f *fakeLimiter) Allow(string) bool {
	if f.unlimited {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remaining <= 0 {
		return false
	}
	f.remaining--
	return true
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
