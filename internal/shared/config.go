package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API      APIConfig      `toml:"api"`
	Storage  StorageConfig  `toml:"storage"`
	Upload   UploadConfig   `toml:"upload"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

// APIConfig contains notebook backend settings.
type APIConfig struct {
	BaseURL     string  `toml:"base_url"`
	AccessToken string  `toml:"access_token"`
	RateLimit   float64 `toml:"rate_limit"`
}

// StorageConfig contains object storage settings.
type StorageConfig struct {
	URL          string `toml:"url"`
	Bucket       string `toml:"bucket"`
	APIKey       string `toml:"api_key"`
	OwnerID      string `toml:"owner_id"`
	CacheControl string `toml:"cache_control"`
}

// UploadConfig contains validation limits and polling/eviction tuning.
type UploadConfig struct {
	MaxFileSizeMB       int64    `toml:"max_file_size_mb"`
	AllowedExtensions   []string `toml:"allowed_extensions"`
	AllowedContentTypes []string `toml:"allowed_content_types"`
	PollInterval        Duration `toml:"poll_interval"`
	MaxPollAttempts     int      `toml:"max_poll_attempts"`
	EvictionDelay       Duration `toml:"eviction_delay"`
}

// MaxFileSizeBytes converts the configured megabyte limit to bytes.
func (u UploadConfig) MaxFileSizeBytes() int64 {
	return u.MaxFileSizeMB * 1024 * 1024
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration wraps [time.Duration] so it can be written as "2s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: bad duration %q: %v", ErrInvalidConfig, string(text), err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides secrets and endpoints from MTX_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("MTX_ACCESS_TOKEN"); v != "" {
		c.API.AccessToken = v
	}
	if v := os.Getenv("MTX_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("MTX_STORAGE_URL"); v != "" {
		c.Storage.URL = v
	}
	if v := os.Getenv("MTX_STORAGE_KEY"); v != "" {
		c.Storage.APIKey = v
	}
}

// Validate reports missing settings required to talk to the backend and storage.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("%w: api.base_url is required", ErrInvalidConfig)
	}
	if c.Storage.URL == "" || c.Storage.Bucket == "" {
		return fmt.Errorf("%w: storage.url and storage.bucket are required", ErrInvalidConfig)
	}
	if c.Upload.MaxFileSizeMB <= 0 {
		return fmt.Errorf("%w: upload.max_file_size_mb must be positive", ErrInvalidConfig)
	}
	if c.Upload.MaxPollAttempts <= 0 {
		return fmt.Errorf("%w: upload.max_poll_attempts must be positive", ErrInvalidConfig)
	}
	if c.Upload.PollInterval.Duration <= 0 || c.Upload.EvictionDelay.Duration <= 0 {
		return fmt.Errorf("%w: upload durations must be positive", ErrInvalidConfig)
	}
	return nil
}
