// Package config defines the daemon's configuration: server endpoints, the
// record store backend, the slot clock, and the facilitator fee accounts.
// Values come from defaults, an optional TOML file, and SIMPLEDEX_
// environment variables, in that order.
package config

import (
	"path/filepath"
	"time"
)

// Config is the full daemon configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	Clock  ClockConfig  `mapstructure:"clock"`
	Fees   FeesConfig   `mapstructure:"fees"`

	configPath string
}

// ServerConfig covers the HTTP JSON-RPC and WebSocket listeners.
type ServerConfig struct {
	// IP is the bind address; empty binds all interfaces.
	IP   string `mapstructure:"ip"`
	Port int    `mapstructure:"port"`

	// RequestTimeout bounds a single RPC invocation.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// EnableFaucet exposes the dev-only account creation and minting
	// methods. Never enable on a shared deployment.
	EnableFaucet bool `mapstructure:"enable_faucet"`
}

// StoreConfig covers the record store backend.
type StoreConfig struct {
	// Backend selects the record store implementation: "pebble" or
	// "memory".
	Backend string `mapstructure:"backend"`

	// Path is the database directory for the pebble backend.
	Path string `mapstructure:"path"`

	// CacheSize is the number of decoded records kept in memory.
	CacheSize int `mapstructure:"cache_size"`

	// DepositBase and DepositPerByte define the storage deposit schedule.
	DepositBase    uint64 `mapstructure:"deposit_base"`
	DepositPerByte uint64 `mapstructure:"deposit_per_byte"`
}

// ClockConfig covers the logical slot clock.
type ClockConfig struct {
	// SlotInterval is how often the slot counter advances. Offers created
	// within the same slot have equal time priority.
	SlotInterval time.Duration `mapstructure:"slot_interval"`
}

// FeesConfig names the facilitator accounts credited with taker fees and
// price-improvement bonuses, one per asset side, as hex addresses. Empty
// values are resolved at startup by the node.
type FeesConfig struct {
	FacilitatorAccounts map[string]string `mapstructure:"facilitator_accounts"`
}

// GetConfigPath returns the path the configuration was loaded from, empty
// when running on defaults only.
func (c *Config) GetConfigPath() string {
	return c.configPath
}

// DatabaseDir returns the resolved pebble directory.
func (c *Config) DatabaseDir() string {
	return filepath.Clean(c.Store.Path)
}

// ListenAddr returns the bind address in host:port form.
func (c *Config) ListenAddr() string {
	return joinHostPort(c.Server.IP, c.Server.Port)
}
