// Package settings persists the studio branding shown by the front-ends.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// ErrNotFound is returned by a Backend that has nothing stored yet.
var ErrNotFound = errors.New("settings not found")

type Settings struct {
	AppName     string            `json:"appName"`
	AppSubtitle string            `json:"appSubtitle"`
	TabTitles   map[string]string `json:"tabTitles"`
}

// Tabs lists the studio views in display order.
var Tabs = []string{
	"creator",
	"productStudio",
	"editor",
	"outfitChanger",
	"posterCreator",
	"videoCreator",
	"library",
	"settings",
	"moodboard",
	"virtualStudio",
}

func Defaults() Settings {
	return Settings{
		AppName:     "POSTER",
		AppSubtitle: "IMAGE STUDIO",
		TabTitles: map[string]string{
			"creator":       "Creator",
			"productStudio": "Product Studio",
			"editor":        "Editor",
			"outfitChanger": "Outfit Changer",
			"posterCreator": "Poster Creator",
			"videoCreator":  "Video Creator",
			"library":       "Library",
			"settings":      "Settings",
			"moodboard":     "Moodboard",
			"virtualStudio": "Virtual Studio",
		},
	}
}

func (s Settings) clone() Settings {
	out := s
	out.TabTitles = make(map[string]string, len(s.TabTitles))
	for k, v := range s.TabTitles {
		out.TabTitles[k] = v
	}
	return out
}

// Parse decodes a stored blob and merges it onto the defaults. Blank fields
// keep their default values.
func Parse(data []byte) (Settings, error) {
	var stored Settings
	if err := json.Unmarshal(data, &stored); err != nil {
		return Defaults(), err
	}
	return merge(Defaults(), stored), nil
}

func merge(base, over Settings) Settings {
	out := base.clone()
	if over.AppName != "" {
		out.AppName = over.AppName
	}
	if over.AppSubtitle != "" {
		out.AppSubtitle = over.AppSubtitle
	}
	for k, v := range over.TabTitles {
		if v != "" {
			out.TabTitles[k] = v
		}
	}
	return out
}

// Backend stores the encoded settings blob.
type Backend interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

type Options struct {
	Backend Backend
	Logger  *slog.Logger
}

// Store is the process-wide settings holder. Every change is written through
// to the backend.
type Store struct {
	mu      sync.RWMutex
	current Settings
	backend Backend
	logger  *slog.Logger
}

// Open loads the stored settings. A missing or unparseable blob falls back to
// the defaults and is logged, never returned.
func Open(ctx context.Context, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Store{current: Defaults(), backend: opts.Backend, logger: logger}
	if s.backend == nil {
		return s
	}

	data, err := s.backend.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		return s
	case err != nil:
		logger.Warn("settings load failed, using defaults", "err", err)
		return s
	}

	parsed, err := Parse(data)
	if err != nil {
		logger.Warn("settings parse failed, using defaults", "err", err)
	}
	s.current = parsed
	return s
}

func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.clone()
}

// Update merges next onto the current settings and saves the result.
func (s *Store) Update(ctx context.Context, next Settings) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := merge(s.current, next)
	if err := s.saveLocked(ctx, merged); err != nil {
		return s.current.clone(), err
	}
	s.current = merged
	return merged.clone(), nil
}

// Reset restores and saves the defaults.
func (s *Store) Reset(ctx context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	def := Defaults()
	if err := s.saveLocked(ctx, def); err != nil {
		return s.current.clone(), err
	}
	s.current = def
	return def.clone(), nil
}

func (s *Store) saveLocked(ctx context.Context, v Settings) error {
	if s.backend == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.backend.Save(ctx, data); err != nil {
		s.logger.Error("settings save failed", "err", err)
		return err
	}
	return nil
}
