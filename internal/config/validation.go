package config

import (
	"fmt"

	"github.com/LeJamon/simpledexd/internal/core/keylet"
)

// Validate rejects configurations the daemon cannot run on.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive")
	}

	switch cfg.Store.Backend {
	case "pebble":
		if cfg.Store.Path == "" {
			return fmt.Errorf("store.path is required for the pebble backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store.backend: %q (supported: pebble, memory)", cfg.Store.Backend)
	}
	if cfg.Store.CacheSize <= 0 {
		return fmt.Errorf("store.cache_size must be positive")
	}

	if cfg.Clock.SlotInterval <= 0 {
		return fmt.Errorf("clock.slot_interval must be positive")
	}

	for asset, account := range cfg.Fees.FacilitatorAccounts {
		if _, err := keylet.AddressFromHex(asset); err != nil {
			return fmt.Errorf("fees.facilitator_accounts: bad asset key %q: %w", asset, err)
		}
		if _, err := keylet.AddressFromHex(account); err != nil {
			return fmt.Errorf("fees.facilitator_accounts[%s]: bad account %q: %w", asset, account, err)
		}
	}
	return nil
}
