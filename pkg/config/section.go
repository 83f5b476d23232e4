package config

// Section is one named block of configuration. Sections own their typed
// fields and translate to and from the untyped map the store persists.
type Section interface {
	// ID returns the section identifier used as its key in the store.
	ID() string

	// Title returns a human-readable section title.
	Title() string

	// Description returns a human-readable section description.
	Description() string

	// Data returns the current configuration data.
	Data() map[string]any

	// SetData updates the configuration from the provided data.
	SetData(data map[string]any) error

	// Validate validates the current configuration.
	Validate() error

	// Reset resets the section to default configuration.
	Reset()
}
