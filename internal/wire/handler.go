package wire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/matthewbaird/fiberorder/internal/catalog"
	"github.com/matthewbaird/fiberorder/internal/command"
	"github.com/matthewbaird/fiberorder/internal/lookup"
	"github.com/matthewbaird/fiberorder/internal/order"
	"github.com/matthewbaird/fiberorder/internal/session"
	"github.com/matthewbaird/fiberorder/internal/types"
)

// outboxSize bounds the messages queued for one connection. State pushes
// beyond it are dropped; the next push carries the newer state anyway.
const outboxSize = 32

// Handler manages WebSocket connections of the live order channel.
type Handler struct {
	sessions *session.Manager
	origins  []string
	logger   *zap.Logger
}

// NewHandler creates a WebSocket handler. Browser connections are accepted
// from the request's own host and from hosts matching originPatterns.
func NewHandler(sessions *session.Manager, originPatterns []string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{sessions: sessions, origins: originPatterns, logger: logger}
}

// ServeHTTP upgrades to WebSocket and runs the message loop. The connection
// attaches to the session named by the session_id query parameter, or to a
// new session. Closing the connection does not end the session.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var sess *session.Session
	if id := r.URL.Query().Get("session_id"); id != "" {
		s, err := h.sessions.Get(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		sess = s
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Warn("websocket accept", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if sess == nil {
		sess = h.sessions.Create(ctx)
	}
	log := h.logger.With(zap.String("session_id", sess.ID))

	out := make(chan ServerMessage, outboxSize)
	go h.writeLoop(ctx, conn, out, log)

	remove := sess.OnChange(func(types.OrderState) {
		select {
		case out <- ServerMessage{Type: "state", Data: command.ViewOf(sess)}:
		default:
			log.Debug("state push dropped, outbox full")
		}
	})
	defer remove()

	out <- ServerMessage{
		Type: "session",
		Data: SessionData{SessionID: sess.ID, View: command.ViewOf(sess)},
	}

	// Message loop
	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				log.Debug("websocket read", zap.Error(err))
			}
			return
		}

		var reply ServerMessage
		_, err := h.sessions.Get(ctx, sess.ID)
		switch {
		case err != nil:
			reply = errorMessage(msg.ID, "session_ended", err.Error())
		case msg.Type == "command":
			reply = h.handleCommand(ctx, sess, msg, log)
		case msg.Type == "get":
			reply = ServerMessage{Type: "state", RequestID: msg.ID, Data: command.ViewOf(sess)}
		case msg.Type == "ping":
			reply = ServerMessage{Type: "pong", RequestID: msg.ID}
		default:
			reply = errorMessage(msg.ID, "unknown_type", fmt.Sprintf("unknown message type: %s", msg.Type))
		}

		select {
		case out <- reply:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan ServerMessage, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-out:
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				log.Debug("websocket write", zap.Error(err))
				conn.CloseNow()
				return
			}
		}
	}
}

func (h *Handler) handleCommand(ctx context.Context, sess *session.Session, msg ClientMessage, log *zap.Logger) ServerMessage {
	var data CommandData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return errorMessage(msg.ID, "invalid_data", "invalid command data")
	}
	outcome, err := command.Apply(ctx, sess, data.Op, data.Payload)
	stale := errors.Is(err, lookup.ErrStale)
	if err != nil && !stale {
		code := errorCode(err)
		if code == "internal" {
			log.Error("command failed", zap.String("op", data.Op), zap.Error(err))
		}
		return errorMessage(msg.ID, code, err.Error())
	}
	return ServerMessage{Type: "result", RequestID: msg.ID, Data: ResultData{Outcome: outcome, Stale: stale}}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, command.ErrUnknown):
		return "unknown_op"
	case errors.Is(err, command.ErrInvalid):
		return "invalid_data"
	case errors.Is(err, catalog.ErrNotFound):
		return "not_found"
	case errors.Is(err, order.ErrIncomplete):
		return "order_incomplete"
	}
	return "internal"
}

func errorMessage(requestID, code, message string) ServerMessage {
	return ServerMessage{
		Type:      "error",
		RequestID: requestID,
		Data:      ErrorData{Code: code, Message: message},
	}
}
