package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Config models kanban.yml.
type Config struct {
	API struct {
		BaseURL string   `yaml:"base_url"`
		Timeout Duration `yaml:"timeout"`
		Token   string   `yaml:"token"`
	} `yaml:"api"`
	Snapshot struct {
		Backend   string   `yaml:"backend"`
		Key       string   `yaml:"key"`
		RedisAddr string   `yaml:"redis_addr"`
		RedisTTL  Duration `yaml:"redis_ttl"`
	} `yaml:"snapshot"`
	Server struct {
		Addr      string `yaml:"addr"`
		BasePath  string `yaml:"base_path"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Duration reads Go duration strings ("10s", "1m30s") from YAML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with kb config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("config.api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config.api.base_url must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("config.api.base_url must use http or https")
	}
	if c.API.Timeout.Duration < 0 {
		return fmt.Errorf("config.api.timeout must not be negative")
	}
	switch c.Snapshot.Backend {
	case BackendSQLite, BackendNone:
	case BackendRedis:
		if c.Snapshot.RedisAddr == "" {
			return fmt.Errorf("config.snapshot.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("config.snapshot.backend must be one of sqlite, redis, none")
	}
	if c.Snapshot.Key == "" {
		return fmt.Errorf("config.snapshot.key is required")
	}
	if c.Snapshot.RedisTTL.Duration < 0 {
		return fmt.Errorf("config.snapshot.redis_ttl must not be negative")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.log.format must be text or json")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "kanban.yml")
}

// GenerateDefault returns default config YAML pointing at baseURL.
func GenerateDefault(baseURL string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return fmt.Sprintf(defaultTemplate, baseURL)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

const DefaultBaseURL = "http://localhost:8000/api"

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(""))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing keys keep
// their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// YAML renders the config back to YAML.
func (c *Config) YAML() (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const defaultTemplate = `api:
  base_url: %s
  timeout: 10s
  token: ""

snapshot:
  backend: sqlite
  key: kanbanState
  redis_addr: ""
  redis_ttl: 0s

server:
  addr: 127.0.0.1:8080
  base_path: /v0
  jwt_secret: ""

log:
  level: info
  format: text
`
