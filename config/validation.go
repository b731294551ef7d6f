package config

import "fmt"

// ValidationError reports one configuration problem. Level "error" fails
// Load; Level "warning" is surfaced but does not.
type ValidationError struct {
	Field   string
	Message string
	Level   string // error, warning
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
var validLogFormats = map[string]bool{"json": true, "console": true}
var validAuditDrivers = map[string]bool{"memory": true, "postgres": true}

// ValidateConfiguration checks a loaded Config for internally inconsistent
// or out-of-range values.
func ValidateConfiguration(cfg *Config) []ValidationError {
	var errs []ValidationError

	if cfg.Transport.ListenAddr == "" {
		errs = append(errs, ValidationError{"transport.listen_addr", "listen address is required", "error"})
	}

	if cfg.Security.SecurityLevelClientMinimum < 0 || cfg.Security.SecurityLevelClientMinimum > 3 {
		errs = append(errs, ValidationError{"security.security_level_client_minimum", "must be between 0 and 3", "error"})
	}
	if cfg.Security.DefaultSecurityLevel < 0 || cfg.Security.DefaultSecurityLevel > 3 {
		errs = append(errs, ValidationError{"security.default_security_level", "must be between 0 and 3", "error"})
	}
	if cfg.Security.DefaultSecurityLevel < cfg.Security.SecurityLevelClientMinimum {
		errs = append(errs, ValidationError{"security.default_security_level", "must be at least security_level_client_minimum", "warning"})
	}

	if !validLogLevels[cfg.Logging.Level] {
		errs = append(errs, ValidationError{"logging.level", "invalid log level: " + cfg.Logging.Level, "error"})
	}
	if !validLogFormats[cfg.Logging.Format] {
		errs = append(errs, ValidationError{"logging.format", "invalid log format: " + cfg.Logging.Format, "error"})
	}

	if cfg.Audit.Enabled && !validAuditDrivers[cfg.Audit.Driver] {
		errs = append(errs, ValidationError{"audit.driver", "invalid audit driver: " + cfg.Audit.Driver, "error"})
	}
	if cfg.Audit.Enabled && cfg.Audit.Driver == "postgres" && cfg.Audit.DSN == "" {
		errs = append(errs, ValidationError{"audit.dsn", "dsn is required for the postgres audit driver", "error"})
	}

	if cfg.Metrics.Enabled && (cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535) {
		errs = append(errs, ValidationError{"metrics.port", "must be a valid TCP port", "error"})
	}
	if cfg.Health.Enabled && (cfg.Health.Port <= 0 || cfg.Health.Port > 65535) {
		errs = append(errs, ValidationError{"health.port", "must be a valid TCP port", "error"})
	}

	return errs
}
