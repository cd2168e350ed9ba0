package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"storefront-core/internal/fanout"
	"storefront-core/internal/model"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

// NotificationFeed is the read side of the notification fan-out.
type NotificationFeed interface {
	History(ctx context.Context, actor model.Actor) ([]model.Notification, error)
	Subscribe(actor model.Actor) *fanout.Subscription
}

// streamFrame is one server message on the notification socket.
type streamFrame struct {
	Type         string               `json:"type"`
	Notification *model.Notification  `json:"notification,omitempty"`
	History      []model.Notification `json:"history,omitempty"`
	Toasts       []model.Notification `json:"toasts"`
}

// clientFrame is a message sent by the client, e.g. {"type":"dismiss","key":"..."}.
type clientFrame struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

// NotificationHandler serves notification history and the live stream.
type NotificationHandler struct {
	feed     NotificationFeed
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(feed NotificationFeed, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		feed: feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.With().Str("handler", "notification").Logger(),
	}
}

// History handles GET /api/notifications requests.
func (h *NotificationHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	history, err := h.feed.History(r.Context(), actor)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, history)
}

// Stream handles GET /api/notifications/ws. The first frame carries the
// history; every later frame carries one fresh notification and the current
// toasts.
func (h *NotificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	sub := h.feed.Subscribe(actor)
	defer sub.Close()

	history, err := h.feed.History(r.Context(), actor)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := h.logger.With().Str("subscriber", sub.Subscriber.Key()).Logger()
	logger.Debug().Msg("notification stream opened")

	done := make(chan struct{})
	go h.readPump(conn, sub, done)

	if err := writeFrame(conn, streamFrame{Type: "history", History: history, Toasts: sub.Toasts.List()}); err != nil {
		return
	}
	h.writePump(conn, sub, done, logger)
}

// writePump copies notifications to the connection and keeps it alive.
func (h *NotificationHandler) writePump(conn *websocket.Conn, sub *fanout.Subscription, done <-chan struct{}, logger zerolog.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case n, ok := <-sub.C():
			if !ok {
				conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
				return
			}
			if err := writeFrame(conn, streamFrame{Type: "notification", Notification: &n, Toasts: sub.Toasts.List()}); err != nil {
				logger.Debug().Err(err).Msg("notification stream write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			logger.Debug().Msg("notification stream closed by client")
			return
		}
	}
}

// readPump handles toast dismissals until the client goes away.
func (h *NotificationHandler) readPump(conn *websocket.Conn, sub *fanout.Subscription, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientFrame
		if json.Unmarshal(data, &msg) == nil && msg.Type == "dismiss" {
			sub.Toasts.Dismiss(msg.Key)
		}
	}
}

func writeFrame(conn *websocket.Conn, frame streamFrame) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(frame)
}
