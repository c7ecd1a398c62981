package blobstore

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/qrdrop/signal-server-go/internal/errors"
)

type stubGate struct {
	live map[string]bool
}

func (g *stubGate) IsLive(sessionID string) bool {
	return g.live[sessionID]
}

func newStubGate(liveSessions ...string) *stubGate {
	g := &stubGate{live: make(map[string]bool)}
	for _, sid := range liveSessions {
		g.live[sid] = true
	}
	return g
}

func TestPut(t *testing.T) {
	t.Run("round-trips bytes, filename and mime", func(t *testing.T) {
		s := New(newStubGate("s1"), 1024)
		payload := []byte("hello, fallback")

		stored, err := s.Put("s1", "notes.txt", "text/plain", payload)
		require.NoError(t, err)
		assert.Equal(t, int64(len(payload)), stored.Size)

		got, err := s.Get("s1")
		require.NoError(t, err)
		assert.True(t, bytes.Equal(payload, got.Data))
		assert.Equal(t, "notes.txt", got.Filename)
		assert.Equal(t, "text/plain", got.MIME)
	})

	t.Run("accepts payload at exactly the cap", func(t *testing.T) {
		s := New(newStubGate("s1"), 64)

		_, err := s.Put("s1", "full.bin", "application/octet-stream", make([]byte, 64))
		require.NoError(t, err)

		got, err := s.Get("s1")
		require.NoError(t, err)
		assert.Equal(t, int64(64), got.Size)
	})

	t.Run("rejects payload one byte over the cap and keeps prior blob", func(t *testing.T) {
		s := New(newStubGate("s1"), 64)

		prior := []byte("prior contents")
		_, err := s.Put("s1", "prior.txt", "text/plain", prior)
		require.NoError(t, err)

		_, err = s.Put("s1", "big.bin", "application/octet-stream", make([]byte, 65))
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodePayloadTooLarge, apperrors.GetCode(err))

		got, err := s.Get("s1")
		require.NoError(t, err)
		assert.Equal(t, "prior.txt", got.Filename)
		assert.True(t, bytes.Equal(prior, got.Data))
	})

	t.Run("rejects non-live session", func(t *testing.T) {
		s := New(newStubGate(), 64)

		_, err := s.Put("gone", "a.txt", "text/plain", []byte("x"))
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeSessionExpired, apperrors.GetCode(err))
	})

	t.Run("replaces prior blob whole", func(t *testing.T) {
		s := New(newStubGate("s1"), 1024)

		_, err := s.Put("s1", "old.txt", "text/plain", []byte("old"))
		require.NoError(t, err)
		_, err = s.Put("s1", "new.png", "image/png", []byte("new bytes"))
		require.NoError(t, err)

		got, err := s.Get("s1")
		require.NoError(t, err)
		assert.Equal(t, "new.png", got.Filename)
		assert.Equal(t, "image/png", got.MIME)
		assert.Equal(t, []byte("new bytes"), got.Data)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("defaults mime when absent", func(t *testing.T) {
		s := New(newStubGate("s1"), 1024)

		_, err := s.Put("s1", "blob", "", []byte("x"))
		require.NoError(t, err)

		got, err := s.Get("s1")
		require.NoError(t, err)
		assert.Equal(t, "application/octet-stream", got.MIME)
	})
}

func TestGet(t *testing.T) {
	t.Run("fails with NotFound when nothing stored", func(t *testing.T) {
		s := New(newStubGate("s1"), 64)

		_, err := s.Get("s1")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("is repeatable", func(t *testing.T) {
		s := New(newStubGate("s1"), 64)
		_, err := s.Put("s1", "a.txt", "text/plain", []byte("abc"))
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			got, err := s.Get("s1")
			require.NoError(t, err)
			assert.Equal(t, []byte("abc"), got.Data)
		}
	})
}

func TestDelete(t *testing.T) {
	s := New(newStubGate("s1"), 64)
	_, err := s.Put("s1", "a.txt", "text/plain", []byte("abc"))
	require.NoError(t, err)

	s.Delete("s1")

	_, err = s.Get("s1")
	assert.Error(t, err)
	assert.Equal(t, 0, s.Len())

	// Deleting an absent entry is a no-op.
	s.Delete("s1")
}
