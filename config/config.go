package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Bus   BusConfig   `yaml:"bus"`
	Skill SkillConfig `yaml:"skill"`
	PHAL  PHALConfig  `yaml:"phal"`
	HTTP  HTTPConfig  `yaml:"http"`
	Log   LogConfig   `yaml:"log"`
}

type BusConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Route string `yaml:"route"`
	SSL   bool   `yaml:"ssl"`
}

type SkillConfig struct {
	ID           string `yaml:"id"`
	Lang         string `yaml:"lang"`
	SettingsPath string `yaml:"settings_path"`
}

type PHALConfig struct {
	SyncInterval    string `yaml:"sync_interval"`
	ResponseTimeout string `yaml:"response_timeout"`
}

// HTTPConfig configures the debug API. An empty Addr disables it.
type HTTPConfig struct {
	Addr      string `yaml:"addr"`
	AuthToken string `yaml:"auth_token"`
	// TrustProxy rate limits by X-Forwarded-For instead of the peer address.
	TrustProxy bool `yaml:"trust_proxy"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads path, expanding ${VAR} references. A missing file yields the
// defaults so the skill can run against a stock local host.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Bus.Host == "" {
		c.Bus.Host = "127.0.0.1"
	}
	if c.Bus.Port == 0 {
		c.Bus.Port = 8181
	}
	if c.Bus.Route == "" {
		c.Bus.Route = "/core"
	}
	if c.Skill.ID == "" {
		c.Skill.ID = "homeassistant-skill.oscillatelabsllc"
	}
	if c.Skill.Lang == "" {
		c.Skill.Lang = "en-us"
	}
	if c.PHAL.SyncInterval == "" {
		c.PHAL.SyncInterval = "5m"
	}
	if c.PHAL.ResponseTimeout == "" {
		c.PHAL.ResponseTimeout = "5s"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	if _, err := c.PHAL.SyncEvery(); err != nil {
		return err
	}
	if _, err := c.PHAL.Timeout(); err != nil {
		return err
	}
	if c.Bus.Port < 0 || c.Bus.Port > 65535 {
		return fmt.Errorf("invalid bus port %d", c.Bus.Port)
	}
	return nil
}

// URL is the websocket address of the host messagebus.
func (b BusConfig) URL() string {
	scheme := "ws"
	if b.SSL {
		scheme = "wss"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(b.Host, strconv.Itoa(b.Port)),
		Path:   b.Route,
	}
	return u.String()
}

func (p PHALConfig) SyncEvery() (time.Duration, error) {
	d, err := time.ParseDuration(p.SyncInterval)
	if err != nil {
		return 0, fmt.Errorf("parsing phal.sync_interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("phal.sync_interval must be positive, got %s", p.SyncInterval)
	}
	return d, nil
}

func (p PHALConfig) Timeout() (time.Duration, error) {
	d, err := time.ParseDuration(p.ResponseTimeout)
	if err != nil {
		return 0, fmt.Errorf("parsing phal.response_timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("phal.response_timeout must be positive, got %s", p.ResponseTimeout)
	}
	return d, nil
}
