package websocket

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/bloodlink/bloodlink_backend/chat"
	"go.uber.org/zap"
)

// Event types, matching the wire protocol the chat clients speak.
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSendMessage = "send-message"
	EventTyping      = "typing"

	EventRoomJoined     = "room-joined"
	EventReceiveMessage = "receive-message"
	EventUserTyping     = "user-typing"
	EventError          = "error"
)

// ChatMessagePayload is the inbound send-message payload. Sender identity
// comes from the authenticated connection, never from the payload.
type ChatMessagePayload struct {
	RoomID  string `json:"room_id"`
	Message string `json:"message"`
}

// ChatMessage is the outbound receive-message payload. Messages are not
// persisted server-side; each client mirrors its room history into local
// storage keyed by room id.
type ChatMessage struct {
	RoomID     string    `json:"room_id"`
	Message    string    `json:"message"`
	SenderID   uint      `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	SenderRole string    `json:"sender_role"`
	Timestamp  time.Time `json:"timestamp"`
}

// TypingPayload travels in both directions: inbound typing, outbound
// user-typing. Nothing is retained server-side; receivers expire the
// indicator themselves.
type TypingPayload struct {
	RoomID   string `json:"room_id"`
	IsTyping bool   `json:"is_typing"`
	UserName string `json:"user_name"`
}

// handleEvent dispatches one inbound frame. Unknown or malformed frames
// are dropped with a log line; they never tear down the connection.
func (h *Hub) handleEvent(c *Client, raw []byte) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		h.logger.Warn("unmarshal event failed", zap.Uint("user_id", c.userID), zap.Error(err))
		return
	}

	switch event.Type {
	case EventJoinRoom:
		roomID, ok := event.Payload.(string)
		if !ok {
			h.sendError(c, "join-room payload must be a room id")
			return
		}
		h.handleJoinRoom(c, roomID)
	case EventLeaveRoom:
		if roomID, ok := event.Payload.(string); ok {
			c.leaveRoom(roomID)
		}
	case EventSendMessage:
		var payload ChatMessagePayload
		if err := decodePayload(event.Payload, &payload); err != nil {
			h.sendError(c, "malformed send-message payload")
			return
		}
		h.handleChatMessage(c, payload)
	case EventTyping:
		var payload TypingPayload
		if err := decodePayload(event.Payload, &payload); err != nil {
			h.sendError(c, "malformed typing payload")
			return
		}
		h.handleTyping(c, payload)
	default:
		h.logger.Debug("unknown event type", zap.String("type", event.Type), zap.Uint("user_id", c.userID))
	}
}

// handleJoinRoom honors a join only when the caller is one of the two
// participants encoded in the room id. The acknowledgement goes to the
// caller alone, not the room.
func (h *Hub) handleJoinRoom(c *Client, roomID string) {
	if !chat.Authorized(roomID, strconv.FormatUint(uint64(c.userID), 10)) {
		h.logger.Warn("unauthorized join refused",
			zap.String("room_id", roomID), zap.Uint("user_id", c.userID))
		h.sendError(c, "you are not a participant of this room")
		return
	}

	c.joinRoom(roomID)
	h.sendToClient(c, Event{
		Type:    EventRoomJoined,
		Payload: map[string]interface{}{"room_id": roomID, "success": true},
	})
}

// handleChatMessage stamps the message with the sender's identity and the
// server clock, then fans it out to every connection in the room — the
// sender's other connections included.
func (h *Hub) handleChatMessage(c *Client, payload ChatMessagePayload) {
	if !c.inRoom(payload.RoomID) {
		h.sendError(c, "join the room before sending messages")
		return
	}

	out := Event{
		Type: EventReceiveMessage,
		Payload: ChatMessage{
			RoomID:     payload.RoomID,
			Message:    payload.Message,
			SenderID:   c.userID,
			SenderName: c.userName,
			SenderRole: c.userRole,
			Timestamp:  time.Now(),
		},
	}
	frame, err := json.Marshal(out)
	if err != nil {
		h.logger.Error("marshal chat message failed", zap.Error(err))
		return
	}

	h.broadcastToRoom(payload.RoomID, frame)
	h.publish(payload.RoomID, frame)
}

// handleTyping fans the indicator out to everyone in the room except the
// typist. Nothing is stored.
func (h *Hub) handleTyping(c *Client, payload TypingPayload) {
	if !c.inRoom(payload.RoomID) {
		return
	}

	out := Event{
		Type: EventUserTyping,
		Payload: TypingPayload{
			RoomID:   payload.RoomID,
			IsTyping: payload.IsTyping,
			UserName: payload.UserName,
		},
	}
	frame, err := json.Marshal(out)
	if err != nil {
		return
	}

	h.broadcastToRoomExcept(payload.RoomID, c, frame)
	h.publish(payload.RoomID, frame)
}

func (h *Hub) sendError(c *Client, message string) {
	h.sendToClient(c, Event{
		Type:    EventError,
		Payload: map[string]string{"message": message},
	})
}

// decodePayload re-marshals an interface{} payload into a typed struct,
// the same two-step the envelope format forces everywhere.
func decodePayload(payload interface{}, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
