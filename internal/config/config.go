package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/fleetkeeper/fleetkeeper/internal/fleet"
	"github.com/fleetkeeper/fleetkeeper/internal/retention"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Auth      AuthConfig      `koanf:"auth"`
	Retention RetentionConfig `koanf:"retention"`
	Agents    []AgentConfig   `koanf:"agents"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type DatabaseConfig struct {
	URL            string `koanf:"url"`
	MaxConnections int    `koanf:"max_connections"`
}

type AuthConfig struct {
	JWTSecret     string `koanf:"jwt_secret"`
	JWTExpiry     string `koanf:"jwt_expiry"`
	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`
}

// RetentionConfig carries the fleet-wide retention defaults. The same
// shape (minus the driver timings) doubles as a per-agent override
// block under [[agents]].
type RetentionConfig struct {
	TickInterval         string `koanf:"tick_interval"`
	ConnectDelay         string `koanf:"connect_delay"`
	InDemandDelayMinutes int    `koanf:"in_demand_delay_minutes"`
	IdleDelayMinutes     int    `koanf:"idle_delay_minutes"`
	ConflictsWith        string `koanf:"conflicts_with"`
}

// Policy converts the configured delays into a clamped retention policy.
func (r RetentionConfig) Policy() retention.Policy {
	return retention.NewPolicy(
		time.Duration(r.InDemandDelayMinutes)*time.Minute,
		time.Duration(r.IdleDelayMinutes)*time.Minute,
		r.ConflictsWith,
	)
}

// TickIntervalDuration parses the tick interval, falling back to 10s on
// malformed or missing values.
func (r RetentionConfig) TickIntervalDuration() time.Duration {
	d, err := time.ParseDuration(r.TickInterval)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// ConnectDelayDuration parses the simulated agent attach delay, falling
// back to 5s on malformed or missing values.
func (r RetentionConfig) ConnectDelayDuration() time.Duration {
	d, err := time.ParseDuration(r.ConnectDelay)
	if err != nil || d < 0 {
		return 5 * time.Second
	}
	return d
}

// AgentConfig is one [[agents]] entry: the static fleet member
// definition plus an optional retention override for just that agent.
type AgentConfig struct {
	Name       string           `koanf:"name"`
	Executors  int              `koanf:"executors"`
	Labels     []string         `koanf:"labels"`
	Launchable bool             `koanf:"launchable"`
	Accepting  bool             `koanf:"accepting"`
	Retention  *RetentionConfig `koanf:"retention"`
}

// Fleet converts the entry into the fleet package's record shape.
func (a AgentConfig) Fleet() fleet.AgentConfig {
	return fleet.AgentConfig{
		Name:       a.Name,
		Executors:  a.Executors,
		Labels:     a.Labels,
		Launchable: a.Launchable,
		Accepting:  a.Accepting,
	}
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Load reads config from TOML file (if provided) then overlays env vars.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	// 2. Load TOML config file if provided
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, err
		}
	}

	// 3. Load env vars: FK_SERVER_PORT -> server.port
	// Only set env vars that have non-empty values to avoid overriding TOML config.
	if err := k.Load(env.ProviderWithValue("FK_", ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		mapped := strings.Replace(
			strings.ToLower(strings.TrimPrefix(key, "FK_")),
			"_", ".", -1,
		)
		return mapped, value
	}), nil); err != nil {
		return nil, err
	}

	// 4. Handle top-level convenience env vars
	if v := os.Getenv("FK_DATABASE_URL"); v != "" {
		k.Set("database.url", v)
	}
	if v := os.Getenv("FLEETKEEPER_JWT_SECRET"); v != "" {
		k.Set("auth.jwt_secret", v)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
