package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.APIListenAddr)
	assert.Equal(t, ":8888", cfg.WSListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 6, cfg.RoomCodeLen)
}

func TestLoadFlags(t *testing.T) {
	cfg, err := Load([]string{
		"--api-listen-addr", ":9090",
		"-l", "info",
		"--room-code-len", "9",
	})
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.APIListenAddr)
	assert.Equal(t, ":8888", cfg.WSListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 9, cfg.RoomCodeLen)
}

func TestLoadBadArgs(t *testing.T) {
	_, err := Load([]string{"--no-such-flag"})
	assert.Error(t, err)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load([]string{"--config", "/nonexistent/partyline.yaml"})
	assert.Error(t, err)
}
