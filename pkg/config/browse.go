package config

import (
	"fmt"
	"sync"
)

const (
	// SectionIDBrowse is the identifier for the browsing settings section
	SectionIDBrowse = "browse"
)

// Browsing defaults mirror the orchestrator's own.
const (
	defaultBrowseMaxPages           = 5
	defaultBrowseMaxDurationSeconds = 120
	defaultApprovalTimeoutSeconds   = 300
)

// BrowseSection manages browsing loop settings.
type BrowseSection struct {
	MaxPages               int
	MaxDurationSeconds     int
	CaptureVisual          bool
	ApprovalTimeoutSeconds int
	Headless               bool
	// BlockedHostPatterns are extra glob patterns added to the URL policy.
	BlockedHostPatterns []string
	mu                  sync.RWMutex
}

// NewBrowseSection creates a browse section with default settings.
func NewBrowseSection() *BrowseSection {
	return &BrowseSection{
		MaxPages:               defaultBrowseMaxPages,
		MaxDurationSeconds:     defaultBrowseMaxDurationSeconds,
		CaptureVisual:          true,
		ApprovalTimeoutSeconds: defaultApprovalTimeoutSeconds,
		Headless:               true,
	}
}

// ID returns the section identifier.
func (s *BrowseSection) ID() string {
	return SectionIDBrowse
}

// Title returns the section title.
func (s *BrowseSection) Title() string {
	return "Browsing Settings"
}

// Description returns the section description.
func (s *BrowseSection) Description() string {
	return "Configure autonomous browsing: page and time budgets, screenshots, approval timeout, and extra blocked host patterns."
}

// Data returns the current configuration data.
func (s *BrowseSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"max_pages":                s.MaxPages,
		"max_duration_seconds":     s.MaxDurationSeconds,
		"capture_visual":           s.CaptureVisual,
		"approval_timeout_seconds": s.ApprovalTimeoutSeconds,
		"headless":                 s.Headless,
		"blocked_host_patterns":    append([]string(nil), s.BlockedHostPatterns...),
	}
}

// SetData updates the configuration from the provided data.
func (s *BrowseSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := asInt(data["max_pages"]); ok {
		s.MaxPages = v
	}
	if v, ok := asInt(data["max_duration_seconds"]); ok {
		s.MaxDurationSeconds = v
	}
	if v, ok := data["capture_visual"].(bool); ok {
		s.CaptureVisual = v
	}
	if v, ok := asInt(data["approval_timeout_seconds"]); ok {
		s.ApprovalTimeoutSeconds = v
	}
	if v, ok := data["headless"].(bool); ok {
		s.Headless = v
	}
	if v, ok := asStringSlice(data["blocked_host_patterns"]); ok {
		s.BlockedHostPatterns = v
	}
	return nil
}

// Validate validates the current configuration.
func (s *BrowseSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.MaxPages < 1 {
		return fmt.Errorf("max_pages must be at least 1, got %d", s.MaxPages)
	}
	if s.MaxDurationSeconds < 1 {
		return fmt.Errorf("max_duration_seconds must be at least 1, got %d", s.MaxDurationSeconds)
	}
	if s.ApprovalTimeoutSeconds < 1 {
		return fmt.Errorf("approval_timeout_seconds must be at least 1, got %d", s.ApprovalTimeoutSeconds)
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *BrowseSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MaxPages = defaultBrowseMaxPages
	s.MaxDurationSeconds = defaultBrowseMaxDurationSeconds
	s.CaptureVisual = true
	s.ApprovalTimeoutSeconds = defaultApprovalTimeoutSeconds
	s.Headless = true
	s.BlockedHostPatterns = nil
}

// GetMaxPages returns the configured page budget.
func (s *BrowseSection) GetMaxPages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.MaxPages
}

// GetMaxDurationSeconds returns the configured time budget in seconds.
func (s *BrowseSection) GetMaxDurationSeconds() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.MaxDurationSeconds
}

// GetCaptureVisual returns whether screenshots are captured.
func (s *BrowseSection) GetCaptureVisual() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CaptureVisual
}

// GetApprovalTimeoutSeconds returns the approval gate timeout in seconds.
func (s *BrowseSection) GetApprovalTimeoutSeconds() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ApprovalTimeoutSeconds
}

// GetHeadless returns whether the browser runs headless.
func (s *BrowseSection) GetHeadless() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Headless
}

// GetBlockedHostPatterns returns extra blocked host glob patterns.
func (s *BrowseSection) GetBlockedHostPatterns() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.BlockedHostPatterns...)
}

// asInt coerces the numeric types YAML decoding can produce.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func asStringSlice(v any) ([]string, bool) {
	raw, ok := v.([]any)
	if !ok {
		if typed, ok := v.([]string); ok {
			return append([]string(nil), typed...), true
		}
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
