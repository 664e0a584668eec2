package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabasePath    string `toml:"database_path"`
	DisplayTimezone string `toml:"display_timezone"`
	PageSize        int    `toml:"page_size"`
	RequestTimeout  string `toml:"request_timeout"`
	ListenAddr      string `toml:"listen_addr"`
	ExportsOutput   string `toml:"exports_output"`
	// Per-client write budget for the HTTP API; zero disables limiting.
	WriteRate  float64 `toml:"write_rate"`
	WriteBurst int     `toml:"write_burst"`
}

// Environment overrides, also read from a .env file in the working directory.
const (
	EnvDatabasePath   = "INTERNHUB_DATABASE_PATH"
	EnvListenAddr     = "INTERNHUB_LISTEN_ADDR"
	EnvRequestTimeout = "INTERNHUB_REQUEST_TIMEOUT"
	EnvPageSize       = "INTERNHUB_PAGE_SIZE"
)

func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		DatabasePath:    filepath.Join(homeDir, ".internhub", "db", "internhub.sqlite"),
		DisplayTimezone: "Asia/Tokyo",
		PageSize:        20,
		RequestTimeout:  "10s",
		ListenAddr:      ":8080",
		ExportsOutput:   filepath.Join(homeDir, "Documents", "internhub"),
		WriteRate:       2,
		WriteBurst:      10,
	}
}

func HomeDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".internhub"), nil
}

func ConfigPath() (string, error) {
	dir, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func ErrorLogPath() (string, error) {
	dir, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "errors.log"), nil
}

func EnsureDirectories() error {
	dir, err := HomeDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(filepath.Join(dir, "db"), 0755)
}

// Load reads ~/.internhub/config.toml, creating it with defaults on first
// run, then applies .env and environment overrides.
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := EnsureDirectories(); err != nil {
			return nil, err
		}
		if err := Save(cfg); err != nil {
			return nil, err
		}
	} else if err := LoadFile(configPath, cfg); err != nil {
		return nil, err
	}

	// A missing .env is normal.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile decodes path into cfg, keeping defaults for absent keys.
func LoadFile(path string, cfg *Config) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	cfg.DatabasePath = expandPath(cfg.DatabasePath)
	cfg.ExportsOutput = expandPath(cfg.ExportsOutput)
	return nil
}

func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	f, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvDatabasePath); v != "" {
		c.DatabasePath = expandPath(v)
	}
	if v := os.Getenv(EnvListenAddr); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv(EnvRequestTimeout); v != "" {
		c.RequestTimeout = v
	}
	if v := os.Getenv(EnvPageSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPageSize, err)
		}
		c.PageSize = n
	}
	return nil
}

func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must be set")
	}
	if c.PageSize < 1 {
		return fmt.Errorf("page_size must be at least 1, got %d", c.PageSize)
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Timeout is the deadline applied to every store call.
func (c *Config) Timeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("request_timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	return d, nil
}

// Location is the zone used when rendering display dates.
func (c *Config) Location() (*time.Location, error) {
	if c.DisplayTimezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("display_timezone: %w", err)
	}
	return loc, nil
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
