// ABOUTME: TOML file persistence for the settings record
// ABOUTME: Writes through a temp file and rename so a crash never leaves a torn document

package settings

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Persister reads and writes the committed settings record.
type Persister interface {
	Load() (Settings, error)
	Save(s Settings) error
}

// FileStore keeps settings in a TOML document.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore at path. The file is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the document location.
func (f *FileStore) Path() string {
	return f.path
}

// Load decodes the document. A missing file returns an error wrapping os.ErrNotExist.
func (f *FileStore) Load() (Settings, error) {
	var s Settings
	if _, err := toml.DecodeFile(f.path, &s); err != nil {
		return Settings{}, fmt.Errorf("reading settings: %w", err)
	}
	if s.Version == 0 {
		s.Version = CurrentVersion
	}
	return s, nil
}

// Save encodes s and atomically replaces the document.
func (f *FileStore) Save(s Settings) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.toml")
	if err != nil {
		return fmt.Errorf("creating temp settings file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp settings file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing settings file: %w", err)
	}
	return nil
}
