// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(LoaderOptions{
		ConfigDir:      t.TempDir(),
		Environment:    "development",
		SkipValidation: true,
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "development")
	}
	if cfg.Transport.ListenAddr == "" {
		t.Error("ListenAddr should have a default value")
	}
	if cfg.Security.AuthorisationExpiry == 0 {
		t.Error("AuthorisationExpiry should have a default value")
	}
}

func TestLoadForEnvironment(t *testing.T) {
	for _, env := range []string{"development", "staging", "production", "local"} {
		t.Run(env, func(t *testing.T) {
			cfg, err := Load(LoaderOptions{
				ConfigDir:      t.TempDir(),
				Environment:    env,
				SkipValidation: true,
			})
			if err != nil {
				t.Fatalf("Failed to load %s config: %v", env, err)
			}
			if cfg.Environment != env {
				t.Errorf("Environment = %q, want %q", cfg.Environment, env)
			}
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	os.Setenv("KEEAGENTD_LISTEN_ADDR", "0.0.0.0:9999")
	os.Setenv("KEEAGENTD_LOG_LEVEL", "debug")
	defer os.Unsetenv("KEEAGENTD_LISTEN_ADDR")
	defer os.Unsetenv("KEEAGENTD_LOG_LEVEL")

	cfg, err := Load(LoaderOptions{
		ConfigDir:      t.TempDir(),
		Environment:    "development",
		SkipValidation: true,
	})
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Transport.ListenAddr != "0.0.0.0:9999" {
		t.Errorf("ListenAddr = %q, want %q", cfg.Transport.ListenAddr, "0.0.0.0:9999")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoadWithCustomConfigDir(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.yaml")

	testConfig := `
environment: test
logging:
  level: info
  format: json
`
	if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(LoaderOptions{
		ConfigDir:      tmpDir,
		Environment:    "test",
		SkipValidation: true,
	})
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg == nil {
		t.Fatal("Config should not be nil")
	}
	if cfg.Environment != "test" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "test")
	}
}

func TestDefaultLoaderOptions(t *testing.T) {
	opts := DefaultLoaderOptions()
	if opts.ConfigDir != "config" {
		t.Errorf("ConfigDir = %q, want %q", opts.ConfigDir, "config")
	}
	if opts.SkipEnvSubstitution {
		t.Error("SkipEnvSubstitution should be false by default")
	}
	if opts.SkipValidation {
		t.Error("SkipValidation should be false by default")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	if cfg.Environment != "development" {
		t.Errorf("Default environment = %q, want %q", cfg.Environment, "development")
	}
	if cfg.Security.DefaultSecurityLevel != 2 {
		t.Errorf("DefaultSecurityLevel = %d, want %d", cfg.Security.DefaultSecurityLevel, 2)
	}
	if cfg.Security.AuthorisationExpiry != 365*24*time.Hour {
		t.Errorf("AuthorisationExpiry = %v, want %v", cfg.Security.AuthorisationExpiry, 365*24*time.Hour)
	}
	if cfg.Security.SecurityLevelClientMinimum != 2 {
		t.Errorf("SecurityLevelClientMinimum = %d, want %d", cfg.Security.SecurityLevelClientMinimum, 2)
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Metrics.Port = %d, want %d", cfg.Metrics.Port, 9090)
	}
	if cfg.Health.Port != 9091 {
		t.Errorf("Health.Port = %d, want %d", cfg.Health.Port, 9091)
	}
}

func TestValidateConfigurationRejectsBadLogLevel(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	cfg.Logging.Level = "verbose"

	errs := ValidateConfiguration(cfg)
	found := false
	for _, e := range errs {
		if e.Field == "logging.level" && e.Level == "error" {
			found = true
		}
	}
	if !found {
		t.Error("expected an error-level ValidationError for logging.level")
	}
}

func TestValidateConfigurationRequiresDSNForPostgresAudit(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	cfg.Audit.Enabled = true
	cfg.Audit.Driver = "postgres"
	cfg.Audit.DSN = ""

	errs := ValidateConfiguration(cfg)
	found := false
	for _, e := range errs {
		if e.Field == "audit.dsn" {
			found = true
		}
	}
	if !found {
		t.Error("expected a ValidationError for audit.dsn")
	}
}
