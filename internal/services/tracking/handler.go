package tracking

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"cafe-orders/internal/logger"
	"cafe-orders/internal/models"
	"cafe-orders/internal/server"
)

// EventSnapshot is the first message of every feed: the order as it is now
const EventSnapshot models.EventType = "order.snapshot"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Handler serves the live order feed
type Handler struct {
	orders   OrderReader
	hub      *Hub
	logger   *logger.Logger
	upgrader websocket.Upgrader
}

func NewHandler(orders OrderReader, hub *Hub, log *logger.Logger) *Handler {
	return &Handler{
		orders: orders,
		hub:    hub,
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *Handler) Register(_, authed *gin.RouterGroup) {
	authed.GET("/orders/:id/live", h.Live)
}

// Live handles GET /api/orders/:id/live. Browsers pass the bearer token as
// the token query parameter.
func (h *Handler) Live(c *gin.Context) {
	requestID := server.RequestID(c)
	user, _ := server.CurrentUser(c)

	id, err := server.UUIDParam(c, "id")
	if err != nil {
		server.RespondError(c, h.logger, "tracking_failed", err)
		return
	}
	o, err := h.orders.GetUserOrder(c.Request.Context(), user, id)
	if err != nil {
		server.RespondError(c, h.logger, "tracking_failed", err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket_upgrade_failed", "Failed to upgrade connection", requestID, map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	defer conn.Close()

	events, unsubscribe := h.hub.Subscribe(o.ID)
	defer unsubscribe()

	h.logger.Info("watcher_connected", "Order feed opened", requestID, map[string]interface{}{
		"order_number": o.Number,
		"watcher":      user.Label(),
	})
	defer h.logger.Info("watcher_disconnected", "Order feed closed", requestID, map[string]interface{}{
		"order_number": o.Number,
	})

	closed := make(chan struct{})
	go readPump(conn, closed)

	snapshot := models.NewOrderEvent(EventSnapshot, o, "", string(o.Status), "")
	if err := writeJSON(conn, snapshot); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case event := <-events:
			if err := writeJSON(conn, event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and reports when the peer goes away
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}
