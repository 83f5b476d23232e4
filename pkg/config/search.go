package config

import (
	"fmt"
	"sync"
)

const (
	// SectionIDSearch is the identifier for the search settings section
	SectionIDSearch = "search"
)

const defaultSearchMaxResults = 8

// SearchSection manages web search settings.
type SearchSection struct {
	Endpoint   string
	MaxResults int
	mu         sync.RWMutex
}

// NewSearchSection creates a search section with default settings.
func NewSearchSection() *SearchSection {
	return &SearchSection{MaxResults: defaultSearchMaxResults}
}

// ID returns the section identifier.
func (s *SearchSection) ID() string {
	return SectionIDSearch
}

// Title returns the section title.
func (s *SearchSection) Title() string {
	return "Search Settings"
}

// Description returns the section description.
func (s *SearchSection) Description() string {
	return "Configure the web search used to find browsing entry points. Empty endpoint means the default engine."
}

// Data returns the current configuration data.
func (s *SearchSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"endpoint":    s.Endpoint,
		"max_results": s.MaxResults,
	}
}

// SetData updates the configuration from the provided data.
func (s *SearchSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if endpoint, ok := data["endpoint"].(string); ok {
		s.Endpoint = endpoint
	}
	if v, ok := asInt(data["max_results"]); ok {
		s.MaxResults = v
	}
	return nil
}

// Validate validates the current configuration.
func (s *SearchSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.MaxResults < 1 {
		return fmt.Errorf("max_results must be at least 1, got %d", s.MaxResults)
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *SearchSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Endpoint = ""
	s.MaxResults = defaultSearchMaxResults
}

// GetEndpoint returns the configured search endpoint.
func (s *SearchSection) GetEndpoint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Endpoint
}

// GetMaxResults returns the configured result cap.
func (s *SearchSection) GetMaxResults() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.MaxResults
}
