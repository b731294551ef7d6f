// Package config provides configuration management for keeagentd.
package config

import "time"

// Config is the daemon's complete runtime configuration.
type Config struct {
	Environment string            `yaml:"environment" json:"environment"`
	Transport   TransportConfig   `yaml:"transport" json:"transport"`
	Security    SecurityConfig    `yaml:"security" json:"security"`
	Persistence PersistenceConfig `yaml:"persistence" json:"persistence"`
	Audit       AuditConfig       `yaml:"audit" json:"audit"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics" json:"metrics"`
	Health      HealthConfig      `yaml:"health" json:"health"`
}

// TransportConfig controls the WebSocket listener the browser extension
// dials into.
type TransportConfig struct {
	ListenAddr   string        `yaml:"listen_addr" json:"listen_addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// SecurityConfig controls the connection state machine's gates:
// protocol version/feature tolerance, minimum client security level, and
// stored-key expiry.
type SecurityConfig struct {
	VersionToken               int32         `yaml:"version_token" json:"version_token"`
	RequiredFeatures            []string      `yaml:"required_features" json:"required_features"`
	SecurityLevelClientMinimum int           `yaml:"security_level_client_minimum" json:"security_level_client_minimum"`
	DefaultSecurityLevel       int           `yaml:"default_security_level" json:"default_security_level"`
	AuthorisationExpiry        time.Duration `yaml:"authorisation_expiry" json:"authorisation_expiry"`
}

// PersistenceConfig selects where the KeyContainer bag (tier1/tier2
// stored-key blobs) lives. Security levels and authorisation expiry come
// from SecurityConfig, not from the bag.
type PersistenceConfig struct {
	Type string `yaml:"type" json:"type"` // file, memory
	Path string `yaml:"path" json:"path"`
}

// AuditConfig controls the pairing audit trail backend.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Driver  string `yaml:"driver" json:"driver"` // memory, postgres
	DSN     string `yaml:"dsn" json:"dsn"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // json, console
	Output string `yaml:"output" json:"output"` // stdout, stderr, file path
}

// MetricsConfig controls the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig controls the health-check HTTP endpoint.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}
