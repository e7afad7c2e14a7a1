package ws

import (
	"log"
	"sync"
)

// Hub is the process-local connection registry: connected clients plus the
// room channels each one subscribes to. It is rebuilt from the store on
// every connect and holds no durable state.
type Hub struct {
	clients            map[string]*UserClient
	rooms              map[string]map[string]bool // roomId -> userIds
	Register           chan *UserClient
	Unregister         chan *UserClient
	mu                 sync.RWMutex
	OnClientUnregister func(client *UserClient) error
}

func NewHub() IHub {
	return &Hub{
		clients:    make(map[string]*UserClient),
		rooms:      make(map[string]map[string]bool),
		Register:   make(chan *UserClient),
		Unregister: make(chan *UserClient),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client.UserId] = client
			h.mu.Unlock()
			log.Printf("%s is connected", client.UserId)

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.UserId]; ok {
				delete(h.clients, client.UserId)
				h.dropMemberships(client.UserId)
				close(client.send)
				log.Printf("%s is disconnected", client.UserId)
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

// dropMemberships removes the user from every room set. Caller holds h.mu.
func (h *Hub) dropMemberships(userId string) {
	for roomId, members := range h.rooms {
		delete(members, userId)
		if len(members) == 0 {
			delete(h.rooms, roomId)
		}
	}
}

func (h *Hub) Subscribe(userId, roomId string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomId]
	if !ok {
		members = make(map[string]bool)
		h.rooms[roomId] = members
	}
	members[userId] = true
}

func (h *Hub) Unsubscribe(userId, roomId string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[roomId]; ok {
		delete(members, userId)
		if len(members) == 0 {
			delete(h.rooms, roomId)
		}
	}
}

// BroadcastToRoom fans a payload out to every connected subscriber of the
// room, sender included.
func (h *Hub) BroadcastToRoom(roomId string, message []byte) {
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

func (h *Hub) SendToClient(userId string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, exists := h.clients[userId]
	if exists {
		select {
		case client.send <- message:
		default:
			log.Printf("Failed to send to client: %s", userId)
		}
	}
}

func (h *Hub) IsConnected(userId string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userId]
	return ok
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RegisterClient(client *UserClient) {
	h.Register <- client
}

func (h *Hub) UnregisterClient(client *UserClient) {
	h.Unregister <- client
}

func (h *Hub) SetOnClientUnregister(callback func(client *UserClient) error) {
	h.OnClientUnregister = callback
}
