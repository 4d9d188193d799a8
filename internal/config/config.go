package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"ftmsg/internal/protocol"
	"ftmsg/internal/transport"
)

type Config struct {
	URL             string        `yaml:"url" toml:"url"`
	Transport       string        `yaml:"transport" toml:"transport"`
	DialTimeout     time.Duration `yaml:"dial_timeout" toml:"dial_timeout"`
	ReconnectDelay  time.Duration `yaml:"reconnect_delay" toml:"reconnect_delay"`
	ReconnectJitter time.Duration `yaml:"reconnect_jitter" toml:"reconnect_jitter"` // +- random shift, 0 keeps the delay fixed

	// Lock is pushed to the broker once the socket opens: false, true or a connection cap.
	Lock any `yaml:"lock" toml:"lock"`

	Log     LogConfig     `yaml:"log" toml:"log"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // console | json
}

type MetricsConfig struct {
	Listen string `yaml:"listen" toml:"listen"`
}

// Default returns a config with every default filled in.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads a YAML or TOML (by extension) config file and fills defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(b), &c); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.Transport == "" {
		c.Transport = transport.BackendNhooyr
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("broker url is required")
	}
	if !isWebSocketURL(c.URL) {
		return fmt.Errorf("broker url must use ws:// or wss://: %s", c.URL)
	}
	switch c.Transport {
	case transport.BackendNhooyr, transport.BackendCoder, transport.BackendGorilla:
	default:
		return fmt.Errorf("unsupported transport: %s", c.Transport)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect_delay must be positive, got %s", c.ReconnectDelay)
	}
	if c.ReconnectJitter < 0 || c.ReconnectJitter >= c.ReconnectDelay {
		return fmt.Errorf("reconnect_jitter must be in [0, reconnect_delay), got %s", c.ReconnectJitter)
	}
	if _, err := c.InitialLock(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unsupported log format: %s", c.Log.Format)
	}
	return nil
}

// InitialLock converts the configured lock value.
func (c *Config) InitialLock() (protocol.Lock, error) {
	return protocol.ParseLock(c.Lock)
}
