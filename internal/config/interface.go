package config

import (
	"context"

	"github.com/spf13/afero"
)

// Settings is the read side of the settings store used by the monitoring
// core. Every getter re-validates because values may change on reload;
// unset required values are an error, never a default.
type Settings interface {
	// RefreshRate returns the refresh interval in whole seconds
	RefreshRate() (int, error)

	// ProviderKind returns the backend selector, 0 to 3
	ProviderKind() (int, error)

	// TemperatureFormat returns 0 for Celsius, 1 for Fahrenheit
	TemperatureFormat() (int, error)
}

// Watcher enables live configuration updates
type Watcher interface {
	// Watch starts watching for configuration changes
	// The callback is called after a change was reloaded successfully
	Watch(ctx context.Context, callback func(*Store)) error
}

// Option defines a configuration option that can be passed to Load
type Option func(*options) error

// options holds internal configuration options
type options struct {
	configPath string
	envPrefix  string
	fs         afero.Fs
}

// WithConfigFile specifies an explicit configuration file path
func WithConfigFile(path string) Option {
	return func(o *options) error {
		o.configPath = path
		return nil
	}
}

// WithEnvPrefix specifies a custom environment variable prefix
// Default is "NVIDIAMON"
func WithEnvPrefix(prefix string) Option {
	return func(o *options) error {
		o.envPrefix = prefix
		return nil
	}
}

// WithFs reads configuration through fs instead of the OS filesystem
func WithFs(fs afero.Fs) Option {
	return func(o *options) error {
		o.fs = fs
		return nil
	}
}

// History holds the reading history settings
type History struct {
	Enabled      bool
	DBPath       string
	BatchSize    int
	BatchTimeout int
}
