package hub

import "sync"

// Each peer buffers a handful of outbound signaling messages; the handshake
// exchanges only a few, so a full buffer means the transport is stuck and
// the message is not worth queueing.
const peerSendBuffer = 32

// Peer is one live transport connection admitted into a session. A peer
// belongs to exactly one session for its lifetime.
type Peer struct {
	sessionID string
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newPeer(sessionID string) *Peer {
	return &Peer{
		sessionID: sessionID,
		send:      make(chan []byte, peerSendBuffer),
		done:      make(chan struct{}),
	}
}

// SessionID returns the session this peer was admitted to.
func (p *Peer) SessionID() string {
	return p.sessionID
}

// Outbox yields messages relayed from other members of the session.
func (p *Peer) Outbox() <-chan []byte {
	return p.send
}

// Done is closed once the peer has been removed from its session.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

func (p *Peer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}

// deliver hands a message to the peer without blocking. It reports false
// when the peer is closed or its buffer is full; the caller drops the
// message in that case.
func (p *Peer) deliver(message []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}

	select {
	case p.send <- message:
		return true
	case <-p.done:
		return false
	default:
		return false
	}
}
