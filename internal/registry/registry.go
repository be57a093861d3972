package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/thatjpcsguy/supamulti/internal/ports"
)

// Errors for registry operations.
var (
	ErrProjectNotFound   = errors.New("project not found")
	ErrProjectExists     = errors.New("project already exists")
	ErrRegistryCorrupted = errors.New("registry file corrupted")
)

// Store persists the registry document at a single path
type Store struct {
	path        string
	defaultBase int
}

// Open prepares a store for the registry file at path.
// defaultBase is the watermark a brand new registry starts with.
func Open(path string, defaultBase int) (*Store, error) {
	if defaultBase <= 0 {
		defaultBase = ports.DefaultBase
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	return &Store{path: path, defaultBase: defaultBase}, nil
}

// Path returns the registry file location
func (s *Store) Path() string {
	return s.path
}

// Load reads the registry, returning an empty one if the file does not exist yet
func (s *Store) Load() (*Registry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return New(s.defaultBase), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	reg := New(s.defaultBase)
	if err := json.Unmarshal(data, reg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryCorrupted, err)
	}

	if reg.LastPortAssigned == 0 {
		reg.LastPortAssigned = s.defaultBase
	}

	return reg, nil
}

// Save writes the registry atomically: temp file first, then rename over the target
func (s *Store) Save(reg *Registry) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp registry: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write registry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close registry: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename registry: %w", err)
	}

	return nil
}

// Update loads the registry, applies fn and saves the result.
// Nothing is written when fn returns an error.
func (s *Store) Update(fn func(*Registry) error) error {
	reg, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(reg); err != nil {
		return err
	}
	return s.Save(reg)
}
