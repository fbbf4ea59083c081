// Package audio manages uploaded and generated audio files on disk.
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// File and directory permissions.
const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

const defaultExtension = ".mp3"

// Static errors.
var (
	// ErrEmptyAudioData indicates a save was attempted with no bytes.
	ErrEmptyAudioData = errors.New("audio data cannot be empty")
	// ErrInvalidName indicates a file name that could escape the audio root.
	ErrInvalidName = errors.New("invalid audio file name")
	// ErrAudioNotFound indicates no stored file exists under the given name.
	ErrAudioNotFound = errors.New("audio file not found")
)

// Store keeps audio files under a single root directory. File names are
// generated, never caller-controlled, so stored names are always safe.
type Store struct {
	root string
}

// New creates the audio root directory if needed and returns the store.
func New(root string) (*Store, error) {
	err := os.MkdirAll(root, dirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio directory %s: %w", root, err)
	}

	return &Store{root: root}, nil
}

// Root returns the audio root directory.
func (s *Store) Root() string {
	return s.root
}

// Save writes audio data under a generated name and returns that name. The
// extension of the original file is preserved when it looks sane.
func (s *Store) Save(data []byte, ext string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyAudioData
	}

	name := uuid.NewString() + sanitizeExtension(ext)

	err := os.WriteFile(filepath.Join(s.root, name), data, filePermissions)
	if err != nil {
		return "", fmt.Errorf("failed to write audio file %s: %w", name, err)
	}

	return name, nil
}

// Open reads a stored audio file by name.
func (s *Store) Open(name string) ([]byte, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrAudioNotFound, name)
		}

		return nil, fmt.Errorf("failed to read audio file %s: %w", name, err)
	}

	return data, nil
}

// Delete removes a stored audio file by name.
func (s *Store) Delete(name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}

	err = os.Remove(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrAudioNotFound, name)
		}

		return fmt.Errorf("failed to delete audio file %s: %w", name, err)
	}

	return nil
}

// List returns the names of all stored audio files, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio directory: %w", err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		names = append(names, entry.Name())
	}

	sort.Strings(names)

	return names, nil
}

// resolve validates a caller-supplied name and maps it to a path inside the
// audio root. Names containing separators or traversal sequences are refused.
func (s *Store) resolve(name string) (string, error) {
	if name == "" ||
		strings.ContainsAny(name, `/\`) ||
		strings.Contains(name, "..") ||
		filepath.Base(name) != name {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return filepath.Join(s.root, name), nil
}

// sanitizeExtension keeps a short alphanumeric extension and falls back to
// ".mp3" for anything suspicious.
func sanitizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return defaultExtension
	}

	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	if len(ext) > 8 {
		return defaultExtension
	}

	for _, char := range ext[1:] {
		isDigit := char >= '0' && char <= '9'
		isLower := char >= 'a' && char <= 'z'

		if !isDigit && !isLower {
			return defaultExtension
		}
	}

	return ext
}
