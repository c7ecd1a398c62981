package registry

import (
	"crypto/rand"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/qrdrop/signal-server-go/internal/errors"
)

const (
	// CodeWidth is the number of decimal digits in a pairing code.
	CodeWidth = 4

	codeSpace = 10000

	// A code bound to an expired-but-unswept session stays unavailable
	// until the sweeper releases it, so the mint loop needs a generous
	// bound before declaring the space exhausted.
	maxMintAttempts = 10 * codeSpace
)

// Session is an issued pairing session. The ID is the unguessable identity
// shared between paired clients; the Code is the short human-typed handle
// that resolves to it while live.
type Session struct {
	ID        string
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (s Session) expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Registry owns the code->session binding and the expiry clock. The other
// stores gate access through IsLive rather than tracking expiry themselves.
type Registry struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	byCode   map[string]string  // code -> session ID
	sessions map[string]Session // session ID -> session
}

func New(ttl time.Duration) *Registry {
	return &Registry{
		ttl:      ttl,
		now:      time.Now,
		byCode:   make(map[string]string),
		sessions: make(map[string]Session),
	}
}

// CreateSession mints a fresh pairing code bound to a new session identity.
// Codes are drawn uniformly over the full fixed-width decimal space and
// re-drawn while the candidate collides with an existing binding, so two
// concurrent calls can never share a code.
func (r *Registry) CreateSession() (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	if len(r.byCode) >= codeSpace && r.liveCountLocked(now) >= codeSpace {
		return Session{}, apperrors.ResourceExhausted("No pairing codes available")
	}

	for attempts := 0; attempts < maxMintAttempts; attempts++ {
		code, err := randomCode()
		if err != nil {
			return Session{}, apperrors.Internal("Failed to generate code").WithCause(err)
		}
		if _, taken := r.byCode[code]; taken {
			continue
		}

		sess := Session{
			ID:        uuid.NewString(),
			Code:      code,
			CreatedAt: now,
			ExpiresAt: now.Add(r.ttl),
		}
		r.byCode[code] = sess.ID
		r.sessions[sess.ID] = sess

		log.Info().
			Str("code", code).
			Str("sessionId", sess.ID).
			Time("expiresAt", sess.ExpiresAt).
			Msg("session created")

		return sess, nil
	}

	return Session{}, apperrors.ResourceExhausted("No pairing codes available")
}

// Resolve looks up the session bound to a code. Expiry is checked lazily at
// read time; an expired binding fails even before the sweeper has run.
// Resolution never extends the TTL and never consumes the code.
func (r *Registry) Resolve(code string) (Session, time.Duration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sid, ok := r.byCode[code]
	if !ok {
		return Session{}, 0, apperrors.NotFound("Code")
	}

	sess, ok := r.sessions[sid]
	if !ok {
		return Session{}, 0, apperrors.NotFound("Code")
	}

	now := r.now()
	if sess.expired(now) {
		return Session{}, 0, apperrors.CodeExpired()
	}

	return sess, sess.ExpiresAt.Sub(now), nil
}

// IsLive reports whether a session identity exists and has not expired.
func (r *Registry) IsLive(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[sessionID]
	return ok && !sess.expired(r.now())
}

// SweepExpired removes every expired session and its code binding, returning
// the swept session IDs so the caller can purge dependent stores. The scan
// snapshots under a read lock and deletes under the write lock, re-checking
// expiry, so sessions created mid-sweep are never touched.
func (r *Registry) SweepExpired() []string {
	now := r.now()

	r.mu.RLock()
	var stale []string
	for sid, sess := range r.sessions {
		if sess.expired(now) {
			stale = append(stale, sid)
		}
	}
	r.mu.RUnlock()

	if len(stale) == 0 {
		return nil
	}

	swept := stale[:0]
	r.mu.Lock()
	for _, sid := range stale {
		sess, ok := r.sessions[sid]
		if !ok || !sess.expired(now) {
			continue
		}
		delete(r.byCode, sess.Code)
		delete(r.sessions, sid)
		swept = append(swept, sid)
	}
	r.mu.Unlock()

	return swept
}

func (r *Registry) liveCountLocked(now time.Time) int {
	live := 0
	for _, sess := range r.sessions {
		if !sess.expired(now) {
			live++
		}
	}
	return live
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpace))
	if err != nil {
		return "", err
	}

	code := make([]byte, CodeWidth)
	v := n.Int64()
	for i := CodeWidth - 1; i >= 0; i-- {
		code[i] = byte('0' + v%10)
		v /= 10
	}
	return string(code), nil
}
