// File: internal/handlers/live_handler.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/dtos"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/live"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// LiveHandler bridges a browser speech-to-text client and a live session over
// a websocket. Client messages are transcript events and commands; server
// messages are live events, acknowledgements and the stop bundle.
type LiveHandler struct {
	sessions SessionAPI
	logger   Logger
	upgrader websocket.Upgrader
	// authorize is shared with the REST handler.
	authorize func(w http.ResponseWriter, r *http.Request) (string, bool)
}

func NewLiveHandler(sessions SessionAPI, logger Logger, checkOrigin func(r *http.Request) bool) *LiveHandler {
	rest := NewSessionHandler(sessions, logger)
	return &LiveHandler{
		sessions: sessions,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		authorize: rest.authorize,
	}
}

// Stream handles GET /api/sessions/{id}/live.
func (h *LiveHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r)
	if !ok {
		return
	}
	events, err := h.sessions.LiveEvents(id)
	if err != nil {
		writeServiceError(w, h.logger, "live_stream", err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "session_id", id, "error", err)
		return
	}
	defer conn.Close()
	h.logger.Info("live stream connected", "session_id", id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	replies := make(chan dtos.LiveServerMessage, 8)
	go h.readLoop(ctx, cancel, conn, id, replies)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-events:
			if !open {
				h.write(conn, id, dtos.LiveServerMessage{Type: dtos.LiveMessageError, Error: "session ended"})
				return
			}
			if !h.write(conn, id, dtos.LiveServerMessage{Type: dtos.LiveMessageEvent, Event: &ev}) {
				return
			}
		case msg := <-replies:
			if !h.write(conn, id, msg) || msg.Type == dtos.LiveMessageStopped {
				if msg.Type == dtos.LiveMessageStopped {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stopped"),
						time.Now().Add(writeWait))
				}
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readLoop decodes client messages until the connection fails or the session
// is stopped. It is the only reader of conn.
func (h *LiveHandler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, id string, replies chan<- dtos.LiveServerMessage) {
	stopped := false
	defer func() {
		// After a stop the writer exits once the bundle is sent.
		if !stopped {
			cancel()
		}
	}()
	conn.SetReadLimit(maxBodyBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	reply := func(msg dtos.LiveServerMessage) bool {
		select {
		case replies <- msg:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		var msg dtos.LiveClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("live stream read failed", "session_id", id, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Type {
		case dtos.LiveMessagePartial, dtos.LiveMessageFinal:
			err := h.sessions.IngestTranscript(ctx, id, live.TranscriptEvent{
				Kind: live.TranscriptKind(msg.Type),
				Text: msg.Text,
				Role: domain.Role(msg.Role),
			})
			if err != nil && !reply(errorMessage(err)) {
				return
			}
		case dtos.LiveMessageAsked:
			n, err := h.sessions.MarkAsked(ctx, id, msg.Text)
			if err != nil {
				if !reply(errorMessage(err)) {
					return
				}
				continue
			}
			if !reply(dtos.LiveServerMessage{Type: dtos.LiveMessageAck, Matched: &n}) {
				return
			}
		case dtos.LiveMessageStop:
			bundle, err := h.sessions.StopLive(ctx, id)
			if err != nil {
				if !reply(errorMessage(err)) {
					return
				}
				continue
			}
			stopped = reply(dtos.LiveServerMessage{Type: dtos.LiveMessageStopped, Bundle: bundle})
			return
		default:
			if !reply(dtos.LiveServerMessage{Type: dtos.LiveMessageError, Error: "unknown message type " + msg.Type}) {
				return
			}
		}
	}
}

func (h *LiveHandler) write(conn *websocket.Conn, id string, msg dtos.LiveServerMessage) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Warn("live stream write failed", "session_id", id, "error", err)
		return false
	}
	return true
}

func errorMessage(err error) dtos.LiveServerMessage {
	return dtos.LiveServerMessage{Type: dtos.LiveMessageError, Error: err.Error()}
}
