package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/qrdrop/signal-server-go/internal/errors"
)

func TestCreateSession(t *testing.T) {
	t.Run("mints fixed-width decimal code", func(t *testing.T) {
		r := New(15 * time.Minute)

		for i := 0; i < 50; i++ {
			sess, err := r.CreateSession()
			require.NoError(t, err)
			assert.Len(t, sess.Code, CodeWidth)
			for _, c := range sess.Code {
				assert.True(t, c >= '0' && c <= '9')
			}
			assert.NotEmpty(t, sess.ID)
			assert.Equal(t, 15*time.Minute, sess.ExpiresAt.Sub(sess.CreatedAt))
		}
	})

	t.Run("never assigns a live code twice", func(t *testing.T) {
		r := New(15 * time.Minute)

		codes := make(map[string]bool)
		for i := 0; i < 500; i++ {
			sess, err := r.CreateSession()
			require.NoError(t, err)
			assert.False(t, codes[sess.Code], "code %s issued twice", sess.Code)
			codes[sess.Code] = true
		}
	})

	t.Run("session identities are unique", func(t *testing.T) {
		r := New(15 * time.Minute)

		ids := make(map[string]bool)
		for i := 0; i < 200; i++ {
			sess, err := r.CreateSession()
			require.NoError(t, err)
			assert.False(t, ids[sess.ID])
			ids[sess.ID] = true
		}
	})

	t.Run("concurrent creates get distinct codes", func(t *testing.T) {
		r := New(15 * time.Minute)

		const n = 100
		var wg sync.WaitGroup
		results := make(chan string, n)

		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				sess, err := r.CreateSession()
				if err == nil {
					results <- sess.Code
				}
			}()
		}
		wg.Wait()
		close(results)

		seen := make(map[string]bool)
		count := 0
		for code := range results {
			assert.False(t, seen[code])
			seen[code] = true
			count++
		}
		assert.Equal(t, n, count)
	})

	t.Run("signals resource exhaustion when code space is full", func(t *testing.T) {
		r := New(15 * time.Minute)

		for i := 0; i < codeSpace; i++ {
			_, err := r.CreateSession()
			require.NoError(t, err)
		}

		_, err := r.CreateSession()
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeResourceExhausted, apperrors.GetCode(err))
	})
}

func TestResolve(t *testing.T) {
	t.Run("returns session and remaining TTL", func(t *testing.T) {
		r := New(15 * time.Minute)
		sess, err := r.CreateSession()
		require.NoError(t, err)

		got, remaining, err := r.Resolve(sess.Code)
		require.NoError(t, err)
		assert.Equal(t, sess.ID, got.ID)
		assert.True(t, remaining > 0)
		assert.True(t, remaining <= 15*time.Minute)
	})

	t.Run("is idempotent and does not extend expiry", func(t *testing.T) {
		r := New(15 * time.Minute)
		sess, err := r.CreateSession()
		require.NoError(t, err)

		first, _, err := r.Resolve(sess.Code)
		require.NoError(t, err)
		second, _, err := r.Resolve(sess.Code)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.ExpiresAt, second.ExpiresAt)
	})

	t.Run("fails with NotFound for unknown code", func(t *testing.T) {
		r := New(15 * time.Minute)

		_, _, err := r.Resolve("0000")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("fails lazily after expiry before any sweep", func(t *testing.T) {
		r := New(15 * time.Minute)
		sess, err := r.CreateSession()
		require.NoError(t, err)

		r.now = func() time.Time { return sess.ExpiresAt.Add(time.Second) }

		_, _, err = r.Resolve(sess.Code)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeCodeExpired, apperrors.GetCode(err))
	})
}

func TestIsLive(t *testing.T) {
	r := New(15 * time.Minute)
	sess, err := r.CreateSession()
	require.NoError(t, err)

	assert.True(t, r.IsLive(sess.ID))
	assert.False(t, r.IsLive("no-such-session"))

	r.now = func() time.Time { return sess.ExpiresAt.Add(time.Second) }
	assert.False(t, r.IsLive(sess.ID))
}

func TestSweepExpired(t *testing.T) {
	t.Run("removes expired sessions and their codes", func(t *testing.T) {
		r := New(15 * time.Minute)
		expired, err := r.CreateSession()
		require.NoError(t, err)

		base := time.Now()
		r.now = func() time.Time { return base.Add(20 * time.Minute) }

		live, err := r.CreateSession()
		require.NoError(t, err)

		swept := r.SweepExpired()
		assert.Equal(t, []string{expired.ID}, swept)

		_, _, err = r.Resolve(expired.Code)
		assert.Error(t, err)
		assert.False(t, r.IsLive(expired.ID))

		_, _, err = r.Resolve(live.Code)
		assert.NoError(t, err)
		assert.True(t, r.IsLive(live.ID))
	})

	t.Run("returns nothing when all sessions are live", func(t *testing.T) {
		r := New(15 * time.Minute)
		_, err := r.CreateSession()
		require.NoError(t, err)

		assert.Nil(t, r.SweepExpired())
	})

	t.Run("frees codes for reuse", func(t *testing.T) {
		r := New(15 * time.Minute)
		_, err := r.CreateSession()
		require.NoError(t, err)

		base := time.Now()
		r.now = func() time.Time { return base.Add(20 * time.Minute) }
		r.SweepExpired()

		// The freed code is once again a valid mint candidate; minting the
		// whole space must succeed, which it could not if the code leaked.
		for i := 0; i < codeSpace; i++ {
			_, err := r.CreateSession()
			require.NoError(t, err)
		}
	})
}
