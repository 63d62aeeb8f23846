package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "JOURNAL_CLIENT"

// Config holds runtime settings for the journal CLI.
type Config struct {
	ServerURL   string        `mapstructure:"server_url"`
	UserID      string        `mapstructure:"user_id"`
	UserHeader  string        `mapstructure:"user_header"`
	SessionPath string        `mapstructure:"session_path"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.UserHeader = "X-User-ID"
	c.SessionPath = defaultSessionPath()
	c.Timeout = 10 * time.Second
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gophjournal-session.json"
	}
	return filepath.Join(home, ".gophjournal", "session.json")
}

// Load applies defaults, then the optional file at path, then the environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	v := viper.New()
	v.SetDefault("server_url", cfg.ServerURL)
	v.SetDefault("user_id", cfg.UserID)
	v.SetDefault("user_header", cfg.UserHeader)
	v.SetDefault("session_path", cfg.SessionPath)
	v.SetDefault("timeout", cfg.Timeout)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate is called once flags have been applied.
func (c *Config) Validate() error {
	var errs []error
	if c.ServerURL == "" {
		errs = append(errs, errors.New("server url is required"))
	}
	if c.UserID == "" {
		errs = append(errs, errors.New("user id is required (--user or JOURNAL_CLIENT_USER_ID)"))
	}
	if c.SessionPath == "" {
		errs = append(errs, errors.New("session path is required"))
	}
	return errors.Join(errs...)
}
