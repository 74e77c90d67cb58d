package websocket

import (
	"net/http"

	"github.com/bloodlink/bloodlink_backend/directory"
	"github.com/bloodlink/bloodlink_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

// Handler upgrades HTTP connections to websocket clients on the hub.
type Handler struct {
	hub    *Hub
	users  directory.Directory
	logger *zap.Logger
}

func NewHandler(hub *Hub, users directory.Directory, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, users: users, logger: logger}
}

// HandleConnection authenticates the caller and hands the connection to
// the hub. Browsers cannot set headers on websocket upgrades, so the JWT
// arrives as a query parameter.
func (h *Handler) HandleConnection(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token is required"})
		return
	}

	userID, err := utils.ParseToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	user, err := h.users.UserByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:      h.hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		userID:   user.ID,
		userName: user.Name,
		userRole: user.Role,
		rooms:    make(map[string]bool),
	}

	client.hub.register <- client

	go client.readPump()
	go client.writePump()
}
