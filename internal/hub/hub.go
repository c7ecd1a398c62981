package hub

import (
	"sync"

	"github.com/rs/zerolog/log"

	apperrors "github.com/qrdrop/signal-server-go/internal/errors"
)

// SessionGate answers whether a session identity is live. Checked at
// admission time only; a session expiring mid-connection does not tear the
// transport down.
type SessionGate interface {
	IsLive(sessionID string) bool
}

// Hub tracks which live connections belong to which session and forwards
// opaque signaling payloads between them. Membership is an unordered set;
// the pairing flow means it normally holds two peers, but the hub does not
// enforce a cap and a third admitted peer receives relayed traffic too.
type Hub struct {
	gate SessionGate

	mu      sync.RWMutex
	members map[string]map[*Peer]bool // session ID -> set of peers
}

func New(gate SessionGate) *Hub {
	return &Hub{
		gate:    gate,
		members: make(map[string]map[*Peer]bool),
	}
}

// Live reports whether a session may accept new connections.
func (h *Hub) Live(sessionID string) bool {
	return h.gate.IsLive(sessionID)
}

// Admit registers a new peer into a session's membership. Fails when the
// session is not live at admission time.
func (h *Hub) Admit(sessionID string) (*Peer, error) {
	if !h.gate.IsLive(sessionID) {
		return nil, apperrors.Unauthorized("Session is not live")
	}

	peer := newPeer(sessionID)

	h.mu.Lock()
	if h.members[sessionID] == nil {
		h.members[sessionID] = make(map[*Peer]bool)
	}
	h.members[sessionID][peer] = true
	peerCount := len(h.members[sessionID])
	h.mu.Unlock()

	log.Info().
		Str("sessionId", sessionID).
		Int("peerCount", peerCount).
		Msg("peer admitted")

	return peer, nil
}

// Relay forwards a message verbatim to every other live member of the
// sender's session. Each outbound send is independent and best-effort: a
// peer whose transport is not writable has the message dropped, and a slow
// peer never delays delivery to the others.
func (h *Hub) Relay(from *Peer, message []byte) {
	h.mu.RLock()
	set := h.members[from.sessionID]
	peers := make([]*Peer, 0, len(set))
	for peer := range set {
		if peer != from {
			peers = append(peers, peer)
		}
	}
	h.mu.RUnlock()

	for _, peer := range peers {
		if !peer.deliver(message) {
			log.Warn().
				Str("sessionId", from.sessionID).
				Msg("peer not writable, signaling message dropped")
		}
	}
}

// Remove unregisters a peer on transport close, for any reason. Draining a
// session's membership releases its relay state; the registry binding stays
// valid until expiry.
func (h *Hub) Remove(peer *Peer) {
	h.mu.Lock()
	if set, ok := h.members[peer.sessionID]; ok {
		delete(set, peer)
		if len(set) == 0 {
			delete(h.members, peer.sessionID)
		}
	}
	h.mu.Unlock()

	peer.close()

	log.Info().
		Str("sessionId", peer.sessionID).
		Msg("peer removed")
}

// DropSession discards all membership for a swept session. The peers are
// closed so their connection handlers wind down, best-effort; teardown is
// not synchronous with expiry.
func (h *Hub) DropSession(sessionID string) {
	h.mu.Lock()
	set := h.members[sessionID]
	delete(h.members, sessionID)
	h.mu.Unlock()

	for peer := range set {
		peer.close()
	}
}

// MemberCount reports how many peers a session currently has.
func (h *Hub) MemberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members[sessionID])
}
