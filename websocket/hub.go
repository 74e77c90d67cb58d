package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Backplane fans room frames out to other router instances. A nil
// backplane means single-instance delivery only.
type Backplane interface {
	Publish(ctx context.Context, roomID string, frame []byte) error
}

// Hub maintains the set of active clients and per-room membership, and
// broadcasts frames to room members. Membership is process-local state;
// cross-instance fan-out goes through the optional backplane.
type Hub struct {
	logger    *zap.Logger
	backplane Backplane

	// mu guards clients and rooms
	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// done is closed when Run returns so late unregisters from client
	// pumps don't block on a hub that is no longer draining the channel
	done chan struct{}
}

// NewHub creates a hub. Dependencies are injected; there is no package
// global.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
	}
}

// AttachBackplane enables cross-instance fan-out. Call before Run.
func (h *Hub) AttachBackplane(b Backplane) {
	h.backplane = b
}

// Run processes client registration until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)

				// Remove client from all room memberships. No
				// notification goes to room peers.
				for roomID, clients := range h.rooms {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.rooms, roomID)
						}
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// joinRoom adds a client to a room
func (h *Hub) joinRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
}

// leaveRoom removes a client from a room
func (h *Hub) leaveRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.rooms[roomID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// broadcastToRoom sends a frame to every connection joined to the room,
// the sender's own connections included. Slow clients are evicted rather
// than allowed to block the room.
func (h *Hub) broadcastToRoom(roomID string, frame []byte) {
	h.broadcastToRoomExcept(roomID, nil, frame)
}

func (h *Hub) broadcastToRoomExcept(roomID string, except *Client, frame []byte) {
	var dead []*Client

	h.mu.RLock()
	for client := range h.rooms[roomID] {
		if client == except {
			continue
		}
		select {
		case client.send <- frame:
		default:
			dead = append(dead, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range dead {
		h.evict(client)
	}
}

func (h *Hub) evict(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	for roomID, clients := range h.rooms {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// publish hands a frame to the backplane when one is attached. Local
// delivery has already happened; remote instances re-deliver to their own
// members.
func (h *Hub) publish(roomID string, frame []byte) {
	if h.backplane == nil {
		return
	}
	if err := h.backplane.Publish(context.Background(), roomID, frame); err != nil {
		h.logger.Warn("backplane publish failed", zap.String("room_id", roomID), zap.Error(err))
	}
}

// DeliverLocal re-broadcasts a frame received from the backplane to this
// instance's members of the room.
func (h *Hub) DeliverLocal(roomID string, frame []byte) {
	h.broadcastToRoom(roomID, frame)
}

// sendToClient queues a frame for a single connection. The registration
// check and the send happen under the read lock: evict and Run close the
// channel under the write lock, so a send can never race a close. A frame
// for an already-evicted client is dropped.
func (h *Hub) sendToClient(client *Client, event Event) {
	frame, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal event failed", zap.String("type", event.Type), zap.Error(err))
		return
	}

	full := false
	h.mu.RLock()
	if h.clients[client] {
		select {
		case client.send <- frame:
		default:
			full = true
		}
	}
	h.mu.RUnlock()

	if full {
		h.evict(client)
	}
}
