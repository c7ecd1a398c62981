package blobstore

import (
	"sync"

	"github.com/rs/zerolog/log"

	apperrors "github.com/qrdrop/signal-server-go/internal/errors"
)

// SessionGate answers whether a session identity is still live. The registry
// is the single source of truth for expiry; this store never tracks it.
type SessionGate interface {
	IsLive(sessionID string) bool
}

// Blob is one stored fallback payload. Values handed out by Get share the
// stored byte slice; callers must treat it as read-only.
type Blob struct {
	Filename string
	MIME     string
	Data     []byte
	Size     int64
}

// Store holds at most one fallback payload per session, bounded in size.
// A new upload for the same session replaces the previous blob whole; a
// reader observes either the old blob or the new one, never a mix.
type Store struct {
	gate     SessionGate
	maxBytes int64

	mu    sync.RWMutex
	blobs map[string]*Blob // session ID -> blob
}

func New(gate SessionGate, maxBytes int64) *Store {
	return &Store{
		gate:     gate,
		maxBytes: maxBytes,
		blobs:    make(map[string]*Blob),
	}
}

// Put stores a payload for a live session, replacing any prior blob.
// An oversize payload is rejected without touching the prior contents.
func (s *Store) Put(sessionID, filename, mime string, payload []byte) (*Blob, error) {
	if !s.gate.IsLive(sessionID) {
		return nil, apperrors.SessionExpired()
	}
	if int64(len(payload)) > s.maxBytes {
		return nil, apperrors.PayloadTooLarge(s.maxBytes)
	}

	if mime == "" {
		mime = "application/octet-stream"
	}

	blob := &Blob{
		Filename: filename,
		MIME:     mime,
		Data:     payload,
		Size:     int64(len(payload)),
	}

	s.mu.Lock()
	s.blobs[sessionID] = blob
	s.mu.Unlock()

	log.Info().
		Str("sessionId", sessionID).
		Str("filename", filename).
		Int64("size", blob.Size).
		Msg("fallback blob stored")

	return blob, nil
}

// Get returns the stored blob for a session. The read is non-destructive;
// the blob stays retrievable until the session is swept.
func (s *Store) Get(sessionID string) (*Blob, error) {
	s.mu.RLock()
	blob, ok := s.blobs[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, apperrors.NotFound("Blob")
	}
	return blob, nil
}

// Delete drops the blob for a session, if any. Called by the sweeper.
func (s *Store) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.blobs, sessionID)
	s.mu.Unlock()
}

// Len reports the number of stored blobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
