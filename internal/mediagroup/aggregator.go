// Package mediagroup turns a Telegram album into one poster upload.
//
// Album photos arrive as separate updates sharing a media group id, possibly
// out of order. The aggregator buffers them per chat and album and hands the
// bot a single Upload once the album is quiet for the debounce window or has
// reached Telegram's album limit. Photos come back in message order, so new
// layers stack the way the album was composed, and the album caption picks
// the role every photo is uploaded as.
package mediagroup

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	defaultDebounce = 1200 * time.Millisecond
	// MaxAlbumSize is the most photos Telegram puts in one album.
	MaxAlbumSize = 10
)

// Photo is one album update.
type Photo struct {
	ChatID       int64
	UserID       int64
	MessageID    int
	MediaGroupID string
	Caption      string
	FileID       string
}

// Upload is a complete album. FileIDs are in message order. Caption is the
// first non-empty caption of the album.
type Upload struct {
	ChatID  int64
	UserID  int64
	Caption string
	FileIDs []string
}

type Options struct {
	Debounce time.Duration
	// MaxPhotos flushes an album as soon as it holds this many photos.
	MaxPhotos int
	OnUpload  func(Upload)
}

type Aggregator struct {
	mu        sync.Mutex
	debounce  time.Duration
	maxPhotos int
	onUpload  func(Upload)
	albums    map[string]*album
	stopped   bool
}

type album struct {
	photos []Photo
	timer  *time.Timer
}

func New(opts Options) *Aggregator {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	maxPhotos := opts.MaxPhotos
	if maxPhotos <= 0 || maxPhotos > MaxAlbumSize {
		maxPhotos = MaxAlbumSize
	}
	return &Aggregator{
		debounce:  debounce,
		maxPhotos: maxPhotos,
		onUpload:  opts.OnUpload,
		albums:    make(map[string]*album),
	}
}

// Add buffers p. Photos outside an album, without a file, or added after
// Stop are ignored.
func (a *Aggregator) Add(p Photo) {
	if p.MediaGroupID == "" || p.FileID == "" {
		return
	}
	key := albumKey(p.ChatID, p.MediaGroupID)

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	al, ok := a.albums[key]
	if !ok {
		al = &album{}
		a.albums[key] = al
	}
	al.photos = append(al.photos, p)
	if al.timer != nil {
		al.timer.Stop()
	}
	full := len(al.photos) >= a.maxPhotos
	if !full {
		al.timer = time.AfterFunc(a.debounce, func() { a.flush(key) })
	}
	a.mu.Unlock()

	if full {
		a.flush(key)
	}
}

// Pending reports how many albums are still being collected.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.albums)
}

// Stop drops every album still being collected.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	for key, al := range a.albums {
		if al.timer != nil {
			al.timer.Stop()
		}
		delete(a.albums, key)
	}
}

func (a *Aggregator) flush(key string) {
	a.mu.Lock()
	al, ok := a.albums[key]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.albums, key)
	onUpload := a.onUpload
	a.mu.Unlock()

	if onUpload != nil {
		onUpload(al.upload())
	}
}

func (al *album) upload() Upload {
	photos := append([]Photo(nil), al.photos...)
	sort.SliceStable(photos, func(i, j int) bool { return photos[i].MessageID < photos[j].MessageID })

	up := Upload{ChatID: photos[0].ChatID, UserID: photos[0].UserID}
	for _, p := range photos {
		up.FileIDs = append(up.FileIDs, p.FileID)
		if up.Caption == "" {
			up.Caption = p.Caption
		}
	}
	return up
}

func albumKey(chatID int64, mediaGroupID string) string {
	return fmt.Sprintf("%d:%s", chatID, mediaGroupID)
}
