// Package store persists the address of the currently selected printer.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

// AddressStore holds at most one current printer address
type AddressStore interface {
	Save(address string) error
	Get() (string, bool)
	Clear() error
}

const defaultStorePath = "~/.config/escpos-bt-server/printer.toml"

// DefaultPath returns the default store file path
func DefaultPath() string {
	return defaultStorePath
}

type fileContents struct {
	LastPrinterAddress string `toml:"last_printer_address"`
}

// FileStore keeps the address in a TOML file
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path; an empty path uses the default
func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		path = defaultStorePath
	}
	resolved, err := expandPath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	return &FileStore{path: resolved}, nil
}

// Path returns the resolved file path
func (s *FileStore) Path() string {
	return s.path
}

// Save records address as the current printer
func (s *FileStore) Save(address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return errors.New("address is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	bytes, err := toml.Marshal(fileContents{LastPrinterAddress: address})
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}

	if err := os.WriteFile(s.path, bytes, 0o644); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return nil
}

// Get returns the current address. A missing or unreadable file means no
// printer is selected.
func (s *FileStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bytes, err := os.ReadFile(s.path)
	if err != nil {
		return "", false
	}

	var contents fileContents
	if err := toml.Unmarshal(bytes, &contents); err != nil {
		return "", false
	}

	address := strings.TrimSpace(contents.LastPrinterAddress)
	return address, address != ""
}

// Clear forgets the current address
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove store: %w", err)
	}
	return nil
}

// MemoryStore keeps the address in memory
type MemoryStore struct {
	mu      sync.RWMutex
	address string
}

// NewMemoryStore returns a store preloaded with address, which may be empty
func NewMemoryStore(address string) *MemoryStore {
	return &MemoryStore{address: strings.TrimSpace(address)}
}

func (s *MemoryStore) Save(address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return errors.New("address is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.address = address
	return nil
}

func (s *MemoryStore) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address, s.address != ""
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.address = ""
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
