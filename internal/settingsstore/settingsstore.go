// Package settingsstore persists the runtime store locations in a small JSON
// document so a repoint survives restarts.
//
// Priority when resolving a path: settings document > configuration > default.
package settingsstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Document is the on-disk settings shape.
type Document struct {
	CatalogPath   string    `json:"catalogPath"`
	ExtensionPath string    `json:"extensionPath"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

type SettingsStore struct {
	mu       sync.Mutex
	path     string
	defaults Document
}

// New returns a store backed by the file at path. defaults holds the configured
// locations used when the document does not name one.
func New(path string, defaults Document) *SettingsStore {
	return &SettingsStore{path: path, defaults: defaults}
}

func (s *SettingsStore) FilePath() string {
	return s.path
}

// Load reads the document. A missing file yields an empty document.
func (s *SettingsStore) Load() (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *SettingsStore) loadLocked() (Document, error) {
	var doc Document
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read settings: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse settings %s: %w", s.path, err)
	}
	return doc, nil
}

// Update applies fn to the current document and writes it back atomically.
func (s *SettingsStore) Update(fn func(*Document)) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked()
	if err != nil {
		return doc, err
	}
	fn(&doc)
	doc.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return doc, err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return doc, fmt.Errorf("create settings directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.json")
	if err != nil {
		return doc, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return doc, err
	}
	if err := tmp.Close(); err != nil {
		return doc, err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return doc, fmt.Errorf("write settings: %w", err)
	}
	return doc, nil
}

func (s *SettingsStore) SetCatalogPath(path string) error {
	_, err := s.Update(func(d *Document) { d.CatalogPath = path })
	return err
}

func (s *SettingsStore) SetExtensionPath(path string) error {
	_, err := s.Update(func(d *Document) { d.ExtensionPath = path })
	return err
}

type PathInfo struct {
	Path   string `json:"path"`
	Source string `json:"source"` // "settings", "config" or "default"
}

// CatalogPath resolves the catalog location.
func (s *SettingsStore) CatalogPath(fallback string) PathInfo {
	return s.resolve(func(d Document) string { return d.CatalogPath }, fallback)
}

// ExtensionPath resolves the extension store location.
func (s *SettingsStore) ExtensionPath(fallback string) PathInfo {
	return s.resolve(func(d Document) string { return d.ExtensionPath }, fallback)
}

func (s *SettingsStore) resolve(pick func(Document) string, fallback string) PathInfo {
	if doc, err := s.Load(); err == nil && pick(doc) != "" {
		return PathInfo{Path: pick(doc), Source: "settings"}
	}
	if p := pick(s.defaults); p != "" {
		return PathInfo{Path: p, Source: "config"}
	}
	return PathInfo{Path: fallback, Source: "default"}
}
