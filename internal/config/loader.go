package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the prefix for environment variable overrides, e.g.
// NEUROCHART_SERVER_PORT=9090 overrides server.port.
const envPrefix = "NEUROCHART"

// Loader reads configuration from a YAML file and the environment, applies
// defaults, validates, and optionally watches the file for changes.
type Loader struct {
	v        *viper.Viper
	mu       sync.RWMutex
	current  *Config
	onChange []func(*Config)
}

// NewLoader constructs a Loader.  path may be empty, in which case only
// defaults and environment variables apply.
func NewLoader(path string) *Loader {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load reads, defaults, and validates the configuration.  The returned Config
// is a snapshot; later file changes do not mutate it.
func (l *Loader) Load() (*Config, error) {
	if l.v.ConfigFileUsed() != "" {
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", l.v.ConfigFileUsed(), err)
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %w", err)
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Current returns the most recently loaded Config, or nil if Load has never
// succeeded.
func (l *Loader) Current() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked with the new Config whenever the
// watched file is reloaded successfully.  Register before calling Watch.
func (l *Loader) OnChange(fn func(*Config)) {
	l.mu.Lock()
	l.onChange = append(l.onChange, fn)
	l.mu.Unlock()
}

// Watch begins watching the configuration file for changes.  A change that
// fails to parse or validate is discarded and the previous Config remains
// current.
func (l *Loader) Watch() {
	l.v.OnConfigChange(func(_ fsnotify.Event) {
		cfg := &Config{}
		if err := l.v.Unmarshal(cfg); err != nil {
			return
		}
		ApplyDefaults(cfg)
		if err := cfg.Validate(); err != nil {
			return
		}
		l.mu.Lock()
		l.current = cfg
		callbacks := make([]func(*Config), len(l.onChange))
		copy(callbacks, l.onChange)
		l.mu.Unlock()
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	l.v.WatchConfig()
}

// Load is the package-level convenience used by the entrypoints: construct a
// Loader for path and load once.
func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// MustLoad is Load that panics on error.  Only for use in main().
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}
