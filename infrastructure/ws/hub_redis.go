package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisHub extends the in-memory registry with Redis pub/sub so gateways on
// different processes deliver room events to their own local connections.
// Presence keys (user:<id>:server) record which instance holds a user.
type RedisHub struct {
	clients map[string]*UserClient
	rooms   map[string]map[string]bool
	mu      sync.RWMutex

	redisClient *redis.Client
	pubsub      *redis.PubSub
	serverID    string

	Register   chan *UserClient
	Unregister chan *UserClient

	OnClientUnregister func(client *UserClient) error
}

type redisEvent struct {
	FromServerID string `json:"fromServerId"`
	RoomId       string `json:"roomId,omitempty"`
	ToUserID     string `json:"toUserId,omitempty"`
	Payload      []byte `json:"payload"`
}

func NewRedisHub(redisAddr, serverID string) IHub {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	hub := &RedisHub{
		clients:     make(map[string]*UserClient),
		rooms:       make(map[string]map[string]bool),
		redisClient: rdb,
		serverID:    serverID,
		Register:    make(chan *UserClient),
		Unregister:  make(chan *UserClient),
	}

	hub.pubsub = rdb.PSubscribe(context.Background(), "room:*", "user:*")

	return hub
}

func (h *RedisHub) Run() {
	go h.subscribeRedis()

	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client.UserId] = client
			h.mu.Unlock()

			h.redisClient.Set(
				context.Background(),
				"user:"+client.UserId+":server",
				h.serverID,
				0,
			)

			log.Printf("[%s] %s connected", h.serverID, client.UserId)

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.UserId]; ok {
				delete(h.clients, client.UserId)
				for roomId, members := range h.rooms {
					delete(members, client.UserId)
					if len(members) == 0 {
						delete(h.rooms, roomId)
					}
				}
				close(client.send)

				h.redisClient.Del(
					context.Background(),
					"user:"+client.UserId+":server",
				)

				log.Printf("[%s] %s disconnected", h.serverID, client.UserId)
			}
			h.mu.Unlock()

			if h.OnClientUnregister != nil {
				if err := h.OnClientUnregister(client); err != nil {
					log.Printf("OnClientUnregister error: %v", err)
				}
			}
		}
	}
}

func (h *RedisHub) subscribeRedis() {
	ch := h.pubsub.Channel()

	log.Printf("[%s] Redis subscriber started", h.serverID)

	for msg := range ch {
		var event redisEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Printf("Error unmarshaling Redis event: %v", err)
			continue
		}

		if event.FromServerID == h.serverID {
			continue
		}

		if event.RoomId != "" {
			h.broadcastLocal(event.RoomId, event.Payload)
			continue
		}

		h.mu.RLock()
		_, existsLocally := h.clients[event.ToUserID]
		h.mu.RUnlock()
		if existsLocally {
			h.sendLocal(event.ToUserID, event.Payload)
		}
	}
}

func (h *RedisHub) Subscribe(userId, roomId string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomId]
	if !ok {
		members = make(map[string]bool)
		h.rooms[roomId] = members
	}
	members[userId] = true
}

func (h *RedisHub) Unsubscribe(userId, roomId string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[roomId]; ok {
		delete(members, userId)
		if len(members) == 0 {
			delete(h.rooms, roomId)
		}
	}
}

// BroadcastToRoom delivers locally and republishes so subscribers attached
// to other instances hear it too.
func (h *RedisHub) BroadcastToRoom(roomId string, message []byte) {
	h.broadcastLocal(roomId, message)
	h.publish(redisEvent{
		FromServerID: h.serverID,
		RoomId:       roomId,
		Payload:      message,
	}, "room:"+roomId)
}

func (h *RedisHub) broadcastLocal(roomId string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for userId := range h.rooms[roomId] {
		client, ok := h.clients[userId]
		if !ok {
			continue
		}
		select {
		case client.send <- message:
		default:
			log.Printf("Failed to send to client: %s", userId)
		}
	}
}

func (h *RedisHub) SendToClient(userId string, message []byte) {
	h.mu.RLock()
	_, existsLocally := h.clients[userId]
	h.mu.RUnlock()

	if existsLocally {
		h.sendLocal(userId, message)
		return
	}

	h.publish(redisEvent{
		FromServerID: h.serverID,
		ToUserID:     userId,
		Payload:      message,
	}, "user:"+userId)
}

func (h *RedisHub) sendLocal(userId string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[userId]
	if !ok {
		return
	}
	select {
	case client.send <- message:
	default:
		log.Printf("[%s] Failed to send to local client %s", h.serverID, userId)
	}
}

func (h *RedisHub) publish(event redisEvent, channel string) {
	ctx := context.Background()

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling Redis event: %v", err)
		return
	}

	if err := h.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		log.Printf("Error publishing to Redis: %v", err)
	}
}

func (h *RedisHub) IsConnected(userId string) bool {
	h.mu.RLock()
	_, ok := h.clients[userId]
	h.mu.RUnlock()
	if ok {
		return true
	}

	// Fall back to the presence key so peers on other instances count
	res, err := h.redisClient.Exists(context.Background(), "user:"+userId+":server").Result()
	if err != nil {
		return false
	}
	return res > 0
}

func (h *RedisHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *RedisHub) RegisterClient(client *UserClient) {
	h.Register <- client
}

func (h *RedisHub) UnregisterClient(client *UserClient) {
	h.Unregister <- client
}

func (h *RedisHub) SetOnClientUnregister(callback func(client *UserClient) error) {
	h.OnClientUnregister = callback
}
