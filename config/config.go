package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// RateBand overrides one entry of the loan charge schedule.
type RateBand struct {
	MaxDay      uint64 `toml:"maxDay"`
	InterestBps uint64 `toml:"interestBps"`
	FeeBps      uint64 `toml:"feeBps"`
}

// Config is the daemon configuration.
type Config struct {
	LaunchTime string     `toml:"LaunchTime"`
	DataDir    string     `toml:"DataDir"`
	ListenAddr string     `toml:"ListenAddr"`
	LogPath    string     `toml:"LogPath"`
	LogLevel   string     `toml:"LogLevel"`
	RateBands  []RateBand `toml:"rates"`
}

func defaultConfig() Config {
	return Config{
		LaunchTime: time.Now().UTC().Truncate(24 * time.Hour).Format(time.RFC3339),
		DataDir:    "./lockmint-data",
		ListenAddr: ":8645",
		LogPath:    "",
		LogLevel:   "info",
	}
}

// Load reads the TOML config at path. A missing file is created with
// defaults first, so a fresh deployment starts from a editable template.
func Load(path string) (Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if _, err := cfg.Launch(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the config as TOML, creating parent directories as needed.
func Save(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("config: encode %s: %w", path, err)
	}
	return nil
}

// Launch parses the configured launch timestamp.
func (c Config) Launch() (time.Time, error) {
	launch, err := time.Parse(time.RFC3339, c.LaunchTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("config: invalid LaunchTime %q: %w", c.LaunchTime, err)
	}
	return launch, nil
}
