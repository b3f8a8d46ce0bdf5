package config

import (
	"github.com/knadh/koanf/v2"
)

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"server.host": "0.0.0.0",
		"server.port": 8080,

		"database.max_connections": 25,

		"auth.jwt_expiry":     "24h",
		"auth.admin_username": "admin",

		"retention.tick_interval":           "10s",
		"retention.connect_delay":           "5s",
		"retention.in_demand_delay_minutes": 0,
		"retention.idle_delay_minutes":      10,
		"retention.conflicts_with":          "",

		"logging.level":  "info",
		"logging.format": "pretty",
	}

	for key, val := range defaults {
		k.Set(key, val)
	}
	return nil
}
