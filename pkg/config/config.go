package config

import (
	"sync"
)

var (
	// globalManager is the singleton configuration manager instance
	globalManager *Manager
	globalMu      sync.Mutex
)

// Initialize creates and initializes the global configuration manager.
// This should be called once at application startup.
func Initialize(configPath string) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	store, err := NewFileStore(configPath)
	if err != nil {
		return err
	}

	manager := NewManager(store)

	if err := manager.RegisterSection(NewLLMSection()); err != nil {
		return err
	}
	if err := manager.RegisterSection(NewSearchSection()); err != nil {
		return err
	}
	if err := manager.RegisterSection(NewBrowseSection()); err != nil {
		return err
	}
	if err := manager.RegisterSection(NewStoreSection()); err != nil {
		return err
	}
	if err := manager.RegisterSection(NewServerSection()); err != nil {
		return err
	}

	if err := manager.LoadAll(); err != nil {
		return err
	}

	globalManager = manager
	return nil
}

// Global returns the global configuration manager.
// Panics if Initialize has not been called.
func Global() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		panic("config not initialized: call config.Initialize first")
	}

	return globalManager
}

// IsInitialized returns true if the global configuration has been initialized.
func IsInitialized() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalManager != nil
}

// GetLLM returns the LLM settings section from global config.
// Returns nil if config is not initialized.
func GetLLM() *LLMSection {
	if !IsInitialized() {
		return nil
	}
	section, ok := Global().GetSection(SectionIDLLM)
	if !ok {
		return nil
	}
	llm, ok := section.(*LLMSection)
	if !ok {
		return nil
	}
	return llm
}

// GetSearch returns the search settings section from global config.
// Returns nil if config is not initialized.
func GetSearch() *SearchSection {
	if !IsInitialized() {
		return nil
	}
	section, ok := Global().GetSection(SectionIDSearch)
	if !ok {
		return nil
	}
	search, ok := section.(*SearchSection)
	if !ok {
		return nil
	}
	return search
}

// GetBrowse returns the browsing settings section from global config.
// Returns nil if config is not initialized.
func GetBrowse() *BrowseSection {
	if !IsInitialized() {
		return nil
	}
	section, ok := Global().GetSection(SectionIDBrowse)
	if !ok {
		return nil
	}
	browse, ok := section.(*BrowseSection)
	if !ok {
		return nil
	}
	return browse
}

// GetStore returns the persistence settings section from global config.
// Returns nil if config is not initialized.
func GetStore() *StoreSection {
	if !IsInitialized() {
		return nil
	}
	section, ok := Global().GetSection(SectionIDStore)
	if !ok {
		return nil
	}
	store, ok := section.(*StoreSection)
	if !ok {
		return nil
	}
	return store
}

// GetServer returns the server settings section from global config.
// Returns nil if config is not initialized.
func GetServer() *ServerSection {
	if !IsInitialized() {
		return nil
	}
	section, ok := Global().GetSection(SectionIDServer)
	if !ok {
		return nil
	}
	server, ok := section.(*ServerSection)
	if !ok {
		return nil
	}
	return server
}

// resetGlobal clears the singleton. Test helper.
func resetGlobal() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalManager = nil
}
