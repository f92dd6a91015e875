package studio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poster-studio/internal/apperr"
)

func TestStoreUpdateUnknownSession(t *testing.T) {
	s := NewStore(StoreOptions{})
	err := s.Update("missing", nil)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestStoreEnsureIsIdempotent(t *testing.T) {
	s := NewStore(StoreOptions{Variations: 2})
	s.Ensure("chat:1")
	require.NoError(t, s.Update("chat:1", func(sess *Session) error {
		sess.Poster.AddTextLayer()
		return nil
	}))
	s.Ensure("chat:1")

	v, err := s.View("chat:1")
	require.NoError(t, err)
	assert.Len(t, v.Layers, 1)
	assert.Equal(t, 2, v.Options.Variations)
	assert.Equal(t, 1, s.Len())
}

func TestStoreSweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(StoreOptions{})
	s.now = func() time.Time { return now }

	idle := s.Create()
	busy := s.Create()
	require.NoError(t, s.Update(busy, func(sess *Session) error {
		sess.pending[OpGenerate] = true
		return nil
	}))

	now = now.Add(2 * time.Hour)
	fresh := s.Create()

	assert.Equal(t, 1, s.Sweep(time.Hour))
	_, err := s.View(idle)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	_, err = s.View(busy)
	assert.NoError(t, err)
	_, err = s.View(fresh)
	assert.NoError(t, err)

	assert.True(t, s.Delete(fresh))
	assert.False(t, s.Delete(fresh))
}
