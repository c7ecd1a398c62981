package hub

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/qrdrop/signal-server-go/internal/config"
	apperrors "github.com/qrdrop/signal-server-go/internal/errors"
	"github.com/qrdrop/signal-server-go/internal/httputil"
)

// Envelope types forwarded between peers. The set routes the WebRTC
// handshake; the payloads themselves pass through uninterpreted.
var relayedTypes = map[string]bool{
	"ready":     true,
	"offer":     true,
	"answer":    true,
	"candidate": true,
}

// WSHandler serves the persistent signaling endpoint. A connection is
// scoped to the sessionId it was admitted with and relays JSON envelopes
// to the other members of that session.
type WSHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *Hub) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" || !h.hub.Live(sessionID) {
		httputil.WriteError(w, apperrors.Unauthorized("Session is not live"))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Re-checked under the hub's lock; the session can expire between the
	// handshake check above and registration.
	peer, err := h.hub.Admit(sessionID)
	if err != nil {
		writeClose(conn, websocket.ClosePolicyViolation, "session is not live")
		return
	}
	defer h.hub.Remove(peer)

	go h.writeLoop(conn, peer)
	h.readLoop(conn, peer)
}

// readLoop relays well-formed envelopes until the transport closes.
// Unrecognized message shapes are silently ignored, and a single client's
// bad message never affects other sessions.
func (h *WSHandler) readLoop(conn *websocket.Conn, peer *Peer) {
	conn.SetReadLimit(config.SignalMessageLimitBytes)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().
					Err(err).
					Str("sessionId", peer.SessionID()).
					Msg("signaling connection closed")
			}
			return
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			continue
		}
		if !relayedTypes[envelope.Type] {
			continue
		}

		h.hub.Relay(peer, raw)
	}
}

func (h *WSHandler) writeLoop(conn *websocket.Conn, peer *Peer) {
	for {
		select {
		case message := <-peer.Outbox():
			conn.SetWriteDeadline(time.Now().Add(config.SignalWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				conn.Close()
				return
			}

		case <-peer.Done():
			writeClose(conn, websocket.CloseNormalClosure, "session closed")
			conn.Close()
			return
		}
	}
}

func writeClose(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(config.SignalWriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}
