package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lockmint.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8645", cfg.ListenAddr)
	require.FileExists(t, path)

	_, err = cfg.Launch()
	require.NoError(t, err)
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lockmint.toml")
	raw := `
LaunchTime = "2026-01-01T00:00:00Z"
DataDir = "/var/lib/lockmint"
ListenAddr = ":9000"

[[rates]]
maxDay = 30
interestBps = 120
feeBps = 40
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/lockmint", cfg.DataDir)
	require.Equal(t, ":9000", cfg.ListenAddr)
	require.Len(t, cfg.RateBands, 1)
	require.Equal(t, uint64(120), cfg.RateBands[0].InterestBps)

	launch, err := cfg.Launch()
	require.NoError(t, err)
	require.Equal(t, 2026, launch.Year())
}

func TestLoadRejectsBadLaunchTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lockmint.toml")
	require.NoError(t, os.WriteFile(path, []byte(`LaunchTime = "yesterday"`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
