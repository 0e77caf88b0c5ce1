package driving

import "github.com/custodia-labs/imdeck/internal/core/domain"

// SettingsService reads the application configuration.
type SettingsService interface {
	// Get returns the configured settings with defaults applied to unset keys.
	Get() (*domain.AppSettings, error)

	// Validate checks that the settings can be used to build services.
	Validate() error
}
