/*
Package config manages TOML config for SpanServe services.
*/
package config

import (
	"os"
	"path/filepath"

	"github.com/bastiangx/spanserve/internal/utils"
	"github.com/charmbracelet/log"
)

// Config holds the entire config structure
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Locator  LocatorConfig  `toml:"locator"`
	Reveal   RevealConfig   `toml:"reveal"`
	Labeling LabelingConfig `toml:"labeling"`
	Suggest  SuggestConfig  `toml:"suggest"`
	Lexicon  LexiconConfig  `toml:"lexicon"`
}

// ServerConfig has IPC server related options.
type ServerConfig struct {
	MaxPromptBytes int `toml:"max_prompt_bytes"`
	// DebounceMs is the quiet period for the validate trigger.
	DebounceMs int `toml:"debounce_ms"`
}

// LocatorConfig tunes quote relocation and the position cache.
type LocatorConfig struct {
	CacheMaxEntries int `toml:"cache_max_entries"`
}

// RevealConfig holds progressive reveal bands and delays.
type RevealConfig struct {
	HighThreshold   float64 `toml:"high_threshold"`
	MediumThreshold float64 `toml:"medium_threshold"`
	MediumDelayMs   int     `toml:"medium_delay_ms"`
	LowDelayMs      int     `toml:"low_delay_ms"`
}

// LabelingConfig points at the external labeling service.
type LabelingConfig struct {
	URL             string            `toml:"url"`
	MaxSpans        int               `toml:"max_spans"`
	MinConfidence   float64           `toml:"min_confidence"`
	TemplateVersion string            `toml:"template_version"`
	Policy          map[string]string `toml:"policy"`
	TimeoutMs       int               `toml:"timeout_ms"`
}

// SuggestConfig points at the external suggestion service.
type SuggestConfig struct {
	URL       string `toml:"url"`
	TimeoutMs int    `toml:"timeout_ms"`
}

// LexiconConfig controls the local term matcher.
type LexiconConfig struct {
	Dir        string  `toml:"dir"`
	Confidence float64 `toml:"confidence"`
	Enabled    bool    `toml:"enabled"`
}

// GetConfigDir returns the config directory with fallback priority:
// 1. ~/.config/
// 2. ~/Library/Application Support/ (macOS)
// 3. Current executable dir
// 4. builtin defaults
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Errorf("Failed to get home directory: %v", err)
		execDir, execErr := utils.GetExecutableDir()
		if execErr != nil {
			return "", execErr
		}
		return execDir, nil
	}
	primaryPath := filepath.Join(homeDir, ".config", "spanserve")
	if result := utils.CheckDirStatus(primaryPath); result.Writable {
		return primaryPath, nil
	}
	// Not conventional, fallback from ~/.config if not writable
	macOSPath := filepath.Join(homeDir, "Library", "Application Support", "spanserve")
	if result := utils.CheckDirStatus(macOSPath); result.Writable {
		return macOSPath, nil
	}
	execDir, err := utils.GetExecutableDir()
	if err != nil {
		log.Errorf("Failed to get executable directory: %v", err)
		return "", err
	}
	return execDir, nil
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/spanserve/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	var config *Config
	var err error

	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err = LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err = InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			MaxPromptBytes: 65536,
			DebounceMs:     300,
		},
		Locator: LocatorConfig{
			CacheMaxEntries: 4096,
		},
		Reveal: RevealConfig{
			HighThreshold:   0.8,
			MediumThreshold: 0.6,
			MediumDelayMs:   50,
			LowDelayMs:      100,
		},
		Labeling: LabelingConfig{
			URL:             "",
			MaxSpans:        64,
			MinConfidence:   0.3,
			TemplateVersion: "v1",
			TimeoutMs:       5000,
		},
		Suggest: SuggestConfig{
			URL:       "",
			TimeoutMs: 3000,
		},
		Lexicon: LexiconConfig{
			Dir:        "",
			Confidence: 0.85,
			Enabled:    true,
		},
	}
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file. Unknown or missing keys keep their
// defaults; a file that fails to parse at all falls back entirely.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return nil, err
	}
	return config, nil
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}

// Update changes reveal thresholds at runtime and saves to file. Nil
// pointers leave the current value untouched. The new values are applied
// to a copy first and committed only after the save succeeds, so a write
// failure never leaves the in-memory config diverged from the file.
func (c *Config) Update(configPath string, high, medium *float64, mediumDelayMs, lowDelayMs *int) error {
	r := c.Reveal
	if high != nil {
		r.HighThreshold = *high
	}
	if medium != nil {
		r.MediumThreshold = *medium
	}
	if mediumDelayMs != nil {
		r.MediumDelayMs = *mediumDelayMs
	}
	if lowDelayMs != nil {
		r.LowDelayMs = *lowDelayMs
	}

	updated := *c
	updated.Reveal = r
	if err := SaveConfig(&updated, configPath); err != nil {
		return err
	}
	c.Reveal = r
	return nil
}
