package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/campusolx/backend/internal/logger"
	"github.com/campusolx/backend/internal/middleware"
	"github.com/campusolx/backend/internal/realtime"
	"github.com/campusolx/backend/internal/service"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
)

// RealtimeHandler streams conversation events over WebSocket.
type RealtimeHandler struct {
	conversations service.ConversationService
	broker        realtime.Broker
	upgrader      websocket.Upgrader
}

// NewRealtimeHandler builds the handler. checkOrigin may be nil to accept
// same-origin requests only.
func NewRealtimeHandler(conversations service.ConversationService, broker realtime.Broker, checkOrigin func(r *http.Request) bool) *RealtimeHandler {
	return &RealtimeHandler{
		conversations: conversations,
		broker:        broker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Chat upgrades GET /ws/chats/:id. Participation is checked before the
// upgrade so refusals are plain JSON errors.
func (h *RealtimeHandler) Chat(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	p := middleware.Principal(c)
	if _, err := h.conversations.Authorize(c.Request().Context(), p, id); err != nil {
		return writeError(c, err)
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	events, unsubscribe, err := h.broker.Subscribe(ctx, realtime.ConversationTopic(id))
	if err != nil {
		return writeError(c, err)
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return nil
	}
	defer conn.Close()

	log := logger.FromContext(ctx).With(zap.Uint64("chat_id", id))
	log.Info("realtime subscriber connected")
	defer log.Info("realtime subscriber disconnected")

	go readPump(conn, cancel, log)
	writePump(ctx, conn, events, log)
	return nil
}

// readPump drains client frames so control frames are processed. Clients do
// not send data; any read error ends the session.
func readPump(conn *websocket.Conn, cancel context.CancelFunc, log *zap.Logger) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("realtime read ended", zap.Error(err))
			}
			return
		}
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, events <-chan realtime.Event, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug("realtime write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
