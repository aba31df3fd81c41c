package config

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// UserConfig holds the settings that users can change at runtime, persisted
// as a JSON file in the config directory.
type UserConfig struct {
	Sources []*SourceConfig `json:"sources"`
}

// SourceConfig describes a single metadata source: how to reach it, how much
// to trust it, and how aggressively it may be called.
type SourceConfig struct {
	Name                    string  `json:"name"`
	Kind                    string  `json:"kind"`
	TrustLevel              float64 `json:"trust_level"`
	BaseURL                 string  `json:"base_url"`
	RequestsPerDay          int     `json:"requests_per_day"`
	RequestsPerHour         int     `json:"requests_per_hour"`
	RequestsPerMinute       int     `json:"requests_per_minute"`
	MinIntervalMS           int     `json:"min_interval_ms"`
	BreakerFailureThreshold int     `json:"breaker_failure_threshold"`
	BreakerCooldownSeconds  int     `json:"breaker_cooldown_seconds"`
	CacheTTLSeconds         int     `json:"cache_ttl_seconds"`
	Disabled                bool    `json:"disabled"`
}

func (sc *SourceConfig) MinInterval() time.Duration {
	return time.Duration(sc.MinIntervalMS) * time.Millisecond
}

func (sc *SourceConfig) BreakerCooldown() time.Duration {
	return time.Duration(sc.BreakerCooldownSeconds) * time.Second
}

func (sc *SourceConfig) CacheTTL() time.Duration {
	return time.Duration(sc.CacheTTLSeconds) * time.Second
}

// SourceByName returns the config for the named source, or nil if there isn't
// one.
func (uc *UserConfig) SourceByName(name string) *SourceConfig {
	for _, sc := range uc.Sources {
		if sc.Name == name {
			return sc
		}
	}
	return nil
}

func userConfigFilePath() string {
	configDir := os.Getenv("CONFIG_DIRECTORY")
	if configDir == "" {
		configDir = "/config"
	}

	return filepath.Join(configDir, "config.json")
}

func loadUserConfig(configFilePath string) (*UserConfig, error) {
	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// File doesn't exist, return defaults
			return loadDefaultUserConfig(), nil
		}
		return nil, errors.WithStack(err)
	}

	userConfig := loadDefaultUserConfig()
	if err := json.Unmarshal(data, userConfig); err != nil {
		return nil, errors.WithStack(err)
	}

	return userConfig, nil
}

func loadDefaultUserConfig() *UserConfig {
	return &UserConfig{
		Sources: []*SourceConfig{
			{
				Name:                    "openlibrary",
				Kind:                    "api",
				TrustLevel:              0.8,
				BaseURL:                 "https://openlibrary.org",
				RequestsPerDay:          5000,
				RequestsPerHour:         500,
				RequestsPerMinute:       30,
				MinIntervalMS:           1000,
				BreakerFailureThreshold: 5,
				BreakerCooldownSeconds:  300,
				CacheTTLSeconds:         3600,
			},
		},
	}
}

func saveUserConfigFile(userConfig *UserConfig, userConfigFilePath string) error {
	// Ensure config directory exists.
	if err := os.MkdirAll(filepath.Dir(userConfigFilePath), 0755); err != nil {
		return errors.WithStack(err)
	}

	// Write updated settings to file.
	data, err := json.MarshalIndent(userConfig, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}

	err = os.WriteFile(userConfigFilePath, data, 0644) //nolint:gosec
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}
