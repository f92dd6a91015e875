package mediagroup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, uploads <-chan Upload) Upload {
	t.Helper()
	select {
	case up := <-uploads:
		return up
	case <-time.After(2 * time.Second):
		t.Fatal("album was not flushed")
	}
	return Upload{}
}

func TestAggregatorFlushesAlbum(t *testing.T) {
	uploads := make(chan Upload, 2)
	a := New(Options{Debounce: 20 * time.Millisecond, OnUpload: func(up Upload) { uploads <- up }})

	a.Add(Photo{ChatID: 1, UserID: 7, MessageID: 1, MediaGroupID: "g", FileID: "a"})
	a.Add(Photo{ChatID: 1, UserID: 7, MessageID: 2, MediaGroupID: "g", FileID: "b", Caption: "logo"})
	a.Add(Photo{ChatID: 1, UserID: 7, MessageID: 3, MediaGroupID: "g", FileID: "c"})
	assert.Equal(t, 1, a.Pending())

	up := collect(t, uploads)
	assert.Equal(t, []string{"a", "b", "c"}, up.FileIDs)
	assert.Equal(t, "logo", up.Caption)
	assert.Equal(t, int64(7), up.UserID)
	assert.Equal(t, 0, a.Pending())
}

func TestAggregatorRestoresMessageOrder(t *testing.T) {
	uploads := make(chan Upload, 1)
	a := New(Options{Debounce: 20 * time.Millisecond, OnUpload: func(up Upload) { uploads <- up }})

	a.Add(Photo{ChatID: 1, MessageID: 12, MediaGroupID: "g", FileID: "third"})
	a.Add(Photo{ChatID: 1, MessageID: 10, MediaGroupID: "g", FileID: "first", Caption: "background"})
	a.Add(Photo{ChatID: 1, MessageID: 11, MediaGroupID: "g", FileID: "second", Caption: "ignored"})

	up := collect(t, uploads)
	assert.Equal(t, []string{"first", "second", "third"}, up.FileIDs)
	assert.Equal(t, "background", up.Caption)
}

func TestAggregatorFlushesFullAlbumAtOnce(t *testing.T) {
	uploads := make(chan Upload, 2)
	a := New(Options{Debounce: time.Hour, MaxPhotos: 2, OnUpload: func(up Upload) { uploads <- up }})

	a.Add(Photo{ChatID: 1, MessageID: 1, MediaGroupID: "g", FileID: "a"})
	a.Add(Photo{ChatID: 1, MessageID: 2, MediaGroupID: "g", FileID: "b"})

	up := collect(t, uploads)
	assert.Equal(t, []string{"a", "b"}, up.FileIDs)
	assert.Equal(t, 0, a.Pending())
}

func TestAggregatorSeparatesChats(t *testing.T) {
	uploads := make(chan Upload, 2)
	a := New(Options{Debounce: 10 * time.Millisecond, OnUpload: func(up Upload) { uploads <- up }})

	a.Add(Photo{ChatID: 1, MediaGroupID: "g", FileID: "a"})
	a.Add(Photo{ChatID: 2, MediaGroupID: "g", FileID: "b"})

	got := map[int64][]string{}
	for i := 0; i < 2; i++ {
		up := collect(t, uploads)
		got[up.ChatID] = up.FileIDs
	}
	assert.Equal(t, []string{"a"}, got[1])
	assert.Equal(t, []string{"b"}, got[2])
}

func TestAggregatorIgnoresLoosePhotos(t *testing.T) {
	a := New(Options{})
	a.Add(Photo{ChatID: 1, FileID: "a"})
	a.Add(Photo{ChatID: 1, MediaGroupID: "g"})
	assert.Equal(t, 0, a.Pending())
}

func TestAggregatorStop(t *testing.T) {
	uploads := make(chan Upload, 1)
	a := New(Options{Debounce: 10 * time.Millisecond, OnUpload: func(up Upload) { uploads <- up }})

	a.Add(Photo{ChatID: 1, MediaGroupID: "g", FileID: "a"})
	a.Stop()
	a.Add(Photo{ChatID: 1, MediaGroupID: "h", FileID: "b"})
	require.Equal(t, 0, a.Pending())

	select {
	case <-uploads:
		t.Fatal("stopped aggregator flushed")
	case <-time.After(50 * time.Millisecond):
	}
}
