package config

import (
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// setDefaults seeds viper with the values a bare daemon runs on.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.ip", "")
	v.SetDefault("server.port", 7410)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.enable_faucet", false)

	v.SetDefault("store.backend", "pebble")
	v.SetDefault("store.path", "data/records")
	v.SetDefault("store.cache_size", 1024)
	v.SetDefault("store.deposit_base", 128)
	v.SetDefault("store.deposit_per_byte", 8)

	v.SetDefault("clock.slot_interval", 400*time.Millisecond)

	v.SetDefault("fees.facilitator_accounts", map[string]string{})
}

func joinHostPort(host string, port int) string {
	return host + ":" + strconv.Itoa(port)
}
