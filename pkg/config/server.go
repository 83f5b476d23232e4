package config

import (
	"fmt"
	"strings"
	"sync"
)

const (
	// SectionIDServer is the identifier for the HTTP server section
	SectionIDServer = "server"

	// SectionIDStore is the identifier for the persistence section
	SectionIDStore = "store"
)

// ServerSection manages HTTP server settings.
type ServerSection struct {
	Addr string
	mu   sync.RWMutex
}

// NewServerSection creates a server section with default settings.
func NewServerSection() *ServerSection {
	return &ServerSection{Addr: ":8600"}
}

// ID returns the section identifier.
func (s *ServerSection) ID() string {
	return SectionIDServer
}

// Title returns the section title.
func (s *ServerSection) Title() string {
	return "Server Settings"
}

// Description returns the section description.
func (s *ServerSection) Description() string {
	return "Configure the HTTP and WebSocket listen address."
}

// Data returns the current configuration data.
func (s *ServerSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{"addr": s.Addr}
}

// SetData updates the configuration from the provided data.
func (s *ServerSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if addr, ok := data["addr"].(string); ok && addr != "" {
		s.Addr = addr
	}
	return nil
}

// Validate validates the current configuration.
func (s *ServerSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !strings.Contains(s.Addr, ":") {
		return fmt.Errorf("addr %q must contain a port", s.Addr)
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *ServerSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Addr = ":8600"
}

// GetAddr returns the configured listen address.
func (s *ServerSection) GetAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Addr
}

// StoreSection manages persistence settings.
type StoreSection struct {
	Path string
	mu   sync.RWMutex
}

// NewStoreSection creates a store section with default settings.
func NewStoreSection() *StoreSection {
	return &StoreSection{}
}

// ID returns the section identifier.
func (s *StoreSection) ID() string {
	return SectionIDStore
}

// Title returns the section title.
func (s *StoreSection) Title() string {
	return "Persistence Settings"
}

// Description returns the section description.
func (s *StoreSection) Description() string {
	return "Configure the SQLite database path. Empty means ~/.wander/wander.db."
}

// Data returns the current configuration data.
func (s *StoreSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{"path": s.Path}
}

// SetData updates the configuration from the provided data.
func (s *StoreSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if path, ok := data["path"].(string); ok {
		s.Path = path
	}
	return nil
}

// Validate validates the current configuration.
func (s *StoreSection) Validate() error {
	return nil
}

// Reset resets the section to default configuration.
func (s *StoreSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Path = ""
}

// GetPath returns the configured database path.
func (s *StoreSection) GetPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Path
}
