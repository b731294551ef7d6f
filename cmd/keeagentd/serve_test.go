package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keeagent/keeagentd/config"
	"github.com/keeagent/keeagentd/pkg/storage/memory"
)

func TestBuildLoggerWritesToFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Logging.Level = "debug"
	cfg.Logging.Output = filepath.Join(dir, "keeagentd.log")

	log, closeLog, err := buildLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, log)
	defer closeLog()

	log.Info("hello")
}

func TestBuildLoggerDefaultsToStdout(t *testing.T) {
	cfg := &config.Config{}
	cfg.Logging.Output = ""

	log, closeLog, err := buildLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, log)
	closeLog()
}

func TestBuildAuditStoreDisabledReturnsNil(t *testing.T) {
	cfg := &config.Config{}
	cfg.Audit.Enabled = false

	store, err := buildAuditStore(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, store)
}

func TestBuildAuditStoreMemoryDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.Audit.Enabled = true
	cfg.Audit.Driver = "memory"

	store, err := buildAuditStore(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, store)
	defer func() { _ = store.Close() }()

	_, ok := store.(*memory.Store)
	assert.True(t, ok)
}

func TestBuildAuditStoreUnknownDriverErrors(t *testing.T) {
	cfg := &config.Config{}
	cfg.Audit.Enabled = true
	cfg.Audit.Driver = "sqlite"

	_, err := buildAuditStore(context.Background(), cfg)
	assert.Error(t, err)
}

func TestBuildConfigBagFileDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.Persistence.Type = "file"
	cfg.Persistence.Path = filepath.Join(t.TempDir(), "store.json")

	bag, err := buildConfigBag(cfg)
	require.NoError(t, err)
	require.NotNil(t, bag)

	require.NoError(t, bag.Set("k", "v"))
	v, ok := bag.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestBuildConfigBagMemoryDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.Persistence.Type = "memory"

	bag, err := buildConfigBag(cfg)
	require.NoError(t, err)
	require.NotNil(t, bag)

	require.NoError(t, bag.Set("k", "v"))
	v, ok := bag.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestBuildConfigBagUnknownTypeErrors(t *testing.T) {
	cfg := &config.Config{}
	cfg.Persistence.Type = "ldap"

	_, err := buildConfigBag(cfg)
	assert.Error(t, err)
}
