package registry

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/shanialy/HRM/internal/core/contracts"
	"github.com/shanialy/HRM/internal/core/domain"
)

// Registry holds the in-process rooms: one private room per user, one room
// per conversation. Members are keyed by connection id, so a user connected
// from several devices occupies a room several times and every broadcast
// reaches all of them.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]contracts.Client            // conn id → client
	rooms   map[string]map[string]contracts.Client // room id → conn id → client
	joined  map[string]map[string]struct{}         // conn id → room ids
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]contracts.Client),
		rooms:   make(map[string]map[string]contracts.Client),
		joined:  make(map[string]map[string]struct{}),
	}
}

func userRoom(userID string) string { return "user:" + userID }

func (h *Registry) Register(c contracts.Client) {
	h.mu.Lock()
	h.clients[c.ID()] = c
	h.joinLocked(userRoom(c.UserID()), c)
	h.mu.Unlock()
}

func (h *Registry) Unregister(c contracts.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	connID := c.ID()
	for roomID := range h.joined[connID] {
		h.leaveLocked(roomID, connID)
	}
	delete(h.joined, connID)
	delete(h.clients, connID)
}

func (h *Registry) Join(roomID string, c contracts.Client) {
	h.mu.Lock()
	h.joinLocked(roomID, c)
	h.mu.Unlock()
}

// JoinUser joins all of the user's live connections to the room. A user with
// no connections is a no-op; they pick the room up on their next connect.
func (h *Registry) JoinUser(roomID, userID string) {
	h.mu.Lock()
	for _, c := range h.rooms[userRoom(userID)] {
		h.joinLocked(roomID, c)
	}
	h.mu.Unlock()
}

func (h *Registry) Leave(roomID string, c contracts.Client) {
	h.mu.Lock()
	h.leaveLocked(roomID, c.ID())
	if members := h.joined[c.ID()]; members != nil {
		delete(members, roomID)
	}
	h.mu.Unlock()
}

func (h *Registry) joinLocked(roomID string, c contracts.Client) {
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]contracts.Client)
	}
	h.rooms[roomID][c.ID()] = c
	if h.joined[c.ID()] == nil {
		h.joined[c.ID()] = make(map[string]struct{})
	}
	h.joined[c.ID()][roomID] = struct{}{}
}

func (h *Registry) leaveLocked(roomID, connID string) {
	delete(h.rooms[roomID], connID)
	if len(h.rooms[roomID]) == 0 {
		delete(h.rooms, roomID)
	}
}

// ToRoom fans the event out to every connection in the room, the sender's
// included; delivery failures are the client write loop's problem.
func (h *Registry) ToRoom(ctx context.Context, roomID string, event string, data any) {
	raw, err := json.Marshal(domain.OutEnvelope{Event: event, Data: data})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[roomID] {
		_ = c.Send(ctx, raw)
	}
}

func (h *Registry) ToUser(ctx context.Context, userID string, event string, data any) {
	h.ToRoom(ctx, userRoom(userID), event, data)
}

func (h *Registry) ToClient(ctx context.Context, c contracts.Client, event string, data any) {
	raw, err := json.Marshal(domain.OutEnvelope{Event: event, Data: data})
	if err != nil {
		return
	}
	_ = c.Send(ctx, raw)
}
