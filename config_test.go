package accounts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/signal-golang/textsecure-accounts/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultServer, cfg.Server)
	assert.Equal(t, 10*time.Second, cfg.PushTokenTimeout)
	assert.Equal(t, 5*time.Minute, cfg.ThrottleWindow())
}

func TestLoadConfigReadsDurations(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(file, []byte("tel: \"+4915\"\npushTokenTimeout: 3s\nprofileFetchInterval: 1m\ndebug: true\n"), 0600))

	cfg, err := LoadConfig(file)
	require.NoError(t, err)
	assert.Equal(t, "+4915", cfg.Tel)
	assert.Equal(t, 3*time.Second, cfg.PushTokenTimeout)
	assert.Equal(t, time.Minute, cfg.ProfileFetchInterval)
	assert.Equal(t, time.Duration(0), cfg.ThrottleWindow())
	assert.Equal(t, config.DefaultProfileFetchRetries, cfg.ProfileFetchRetries)
}

func TestWriteConfigRoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yml")
	cfg := &config.Config{Tel: "+4915", Registered: true, SignalingKey: []byte{1, 2, 3}}
	require.NoError(t, WriteConfig(file, cfg))

	read, err := ReadConfig(file)
	require.NoError(t, err)
	assert.Equal(t, cfg.Tel, read.Tel)
	assert.True(t, read.Registered)
	assert.Equal(t, cfg.SignalingKey, read.SignalingKey)
}
