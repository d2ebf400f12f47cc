// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package store persists user settings and finished session history in a
// single YAML file.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/gps_tracker/internal/session"
)

// DefaultHistoryLimit is the number of sessions kept when no limit is set.
const DefaultHistoryLimit = 50

// State is the persisted document.
type State struct {
	Settings session.Settings  `yaml:"settings"`
	History  []session.Session `yaml:"history"`
}

// Store reads and writes State at Path. Concurrent calls are serialized.
type Store struct {
	Path  string
	Limit int

	mu sync.Mutex
}

// New returns a Store for path keeping at most limit sessions (<=0 means
// DefaultHistoryLimit).
func New(path string, limit int) *Store {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Store{Path: path, Limit: limit}
}

// Load reads the state file. A missing file yields default settings and an
// empty history. Invalid settings are replaced by the defaults.
func (s *Store) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (State, error) {
	st := State{Settings: session.DefaultSettings()}
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("store: read %s: %w", s.Path, err)
	}
	if err := yaml.Unmarshal(b, &st); err != nil {
		return State{Settings: session.DefaultSettings()}, fmt.Errorf("store: parse %s: %w", s.Path, err)
	}
	if st.Settings.Validate() != nil {
		st.Settings = session.DefaultSettings()
	}
	return st, nil
}

// Save writes st, keeping only the newest Limit sessions. History is
// expected most recent first.
func (s *Store) Save(st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(st)
}

// SaveSettings replaces the stored settings, keeping the history.
func (s *Store) SaveSettings(settings session.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load()
	if err != nil {
		return err
	}
	st.Settings = settings
	return s.save(st)
}

// AddSession prepends a finished session to the stored history. A session
// already stored under the same id is replaced.
func (s *Store) AddSession(sess session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load()
	if err != nil {
		return err
	}
	history := make([]session.Session, 0, len(st.History)+1)
	history = append(history, sess)
	for _, h := range st.History {
		if h.ID != sess.ID {
			history = append(history, h)
		}
	}
	st.History = history
	return s.save(st)
}

func (s *Store) save(st State) error {
	if len(st.History) > s.Limit {
		st.History = st.History[:s.Limit]
	}
	b, err := yaml.Marshal(&st)
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}

	// Temp file in the same directory so the rename is atomic.
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("store: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("store: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("store: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		return fmt.Errorf("store: rename: %w", err)
	}
	return nil
}
