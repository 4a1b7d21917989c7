package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvPath names the environment variable that points at the config file.
const EnvPath = "ENGIHUB_CONFIG"

// DefaultCookieSecret is the placeholder secret shipped with Default. Any
// deployment using it accepts cookies forged by anyone who has read it.
const DefaultCookieSecret = "super-secret-key-change-me-in-production"

// Config represents engihub.toml.
type Config struct {
	Addr     string   `toml:"addr"`
	Database Database `toml:"database"`
	Auth     Auth     `toml:"auth"`
	Log      Log      `toml:"log"`
	WS       WS       `toml:"ws"`
}

type Database struct {
	Driver string `toml:"driver"` // sqlite3 or postgres
	DSN    string `toml:"dsn"`
}

type Auth struct {
	CookieSecret   string `toml:"cookie_secret"`
	InitialBalance int64  `toml:"initial_balance"`
}

type Log struct {
	Level string `toml:"level"`
	Path  string `toml:"path"` // empty = stderr only
}

type WS struct {
	SendBuffer   int      `toml:"send_buffer"`
	WriteTimeout Duration `toml:"write_timeout"`
	PongTimeout  Duration `toml:"pong_timeout"`
}

// Duration decodes TOML strings such as "10s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Addr: ":8080",
		Database: Database{
			Driver: "sqlite3",
			DSN:    "engihub.db",
		},
		Auth: Auth{
			CookieSecret:   DefaultCookieSecret,
			InitialBalance: 100,
		},
		Log: Log{Level: "info"},
		WS: WS{
			SendBuffer:   256,
			WriteTimeout: Duration{10 * time.Second},
			PongTimeout:  Duration{60 * time.Second},
		},
	}
}

// Load reads config from path on top of the defaults. A missing file is not
// an error and yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path != "" {
		_, err := toml.DecodeFile(path, cfg)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is required")
	}
	if c.Auth.CookieSecret == "" {
		return errors.New("auth cookie_secret is required")
	}
	if c.Auth.InitialBalance < 0 {
		return errors.New("auth initial_balance must be non-negative")
	}
	if c.WS.SendBuffer <= 0 {
		return errors.New("ws send_buffer must be positive")
	}
	return nil
}

// UsesDefaultSecret reports whether sessions are signed with the published
// placeholder secret.
func (c *Config) UsesDefaultSecret() bool {
	return c.Auth.CookieSecret == DefaultCookieSecret
}

// NewSecret returns a random hex secret suitable for cookie signing.
func NewSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
