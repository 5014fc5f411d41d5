package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(nil)
	require.NoError(t, err)
	require.Equal(t, defaultConfig(), cfg)
}

func TestParseConfigYAML(t *testing.T) {
	cfg, err := parseConfig([]string{"-config", "ex.config.yaml"})
	require.NoError(t, err)

	require.Equal(t, "socketcan", cfg.Transport)
	require.Equal(t, "can1", cfg.Interface)
	require.Equal(t, 3, cfg.NodeID)
	require.Equal(t, time.Second, cfg.SDOTimeout)
	require.Equal(t, "debug", cfg.LogLevel)
	// untouched keys keep their defaults
	require.Equal(t, "console", cfg.LogFormat)
}

func TestParseConfigTOML(t *testing.T) {
	cfg, err := parseConfig([]string{"-config", "ex.config.toml"})
	require.NoError(t, err)

	require.Equal(t, "usbcan", cfg.Transport)
	require.Equal(t, "/dev/ttyUSB0", cfg.Port)
	require.Equal(t, 2000000, cfg.BaudRate)
	require.Equal(t, 5, cfg.NodeID)
	require.Equal(t, "bk5120.eds", cfg.EDS)
	require.Equal(t, "json", cfg.LogFormat)
}

func TestParseConfigFlagsOverrideFile(t *testing.T) {
	cfg, err := parseConfig([]string{"-config", "ex.config.yaml", "-node-id", "42", "-interface", "vcan0"})
	require.NoError(t, err)

	require.Equal(t, 42, cfg.NodeID)
	require.Equal(t, "vcan0", cfg.Interface)
	require.Equal(t, time.Second, cfg.SDOTimeout)
}

func TestParseConfigRejects(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	tests := []struct {
		name string
		args []string
	}{
		{name: "node id out of range", args: []string{"-node-id", "128"}},
		{name: "unknown transport", args: []string{"-transport", "pcan"}},
		{name: "usbcan without port", args: []string{"-transport", "usbcan"}},
		{name: "unknown log level", args: []string{"-log-level", "verbose"}},
		{name: "unknown yaml key", args: []string{"-config", write("bad.yaml", "bitrate: 500\n")}},
		{name: "unknown toml key", args: []string{"-config", write("bad.toml", "bitrate = 500\n")}},
		{name: "bad duration", args: []string{"-config", write("timeout.yaml", "sdo_timeout: soon\n")}},
		{name: "unsupported extension", args: []string{"-config", write("cfg.json", "{}")}},
		{name: "missing file", args: []string{"-config", filepath.Join(dir, "missing.yaml")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConfig(tt.args)
			require.Error(t, err)
		})
	}
}
