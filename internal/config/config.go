package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models jobboard.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Auth struct {
		JWTSecret string        `yaml:"jwt_secret"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`
	Storage   Storage `yaml:"storage"`
	Lifecycle struct {
		MaxRetries int `yaml:"max_retries"`
	} `yaml:"lifecycle"`
	Sweeper struct {
		Enabled  bool          `yaml:"enabled"`
		Schedule string        `yaml:"schedule"`
		Grace    time.Duration `yaml:"grace"`
	} `yaml:"sweeper"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Storage configures the resume blob store.
type Storage struct {
	Root             string `yaml:"root"`
	PublicBaseURL    string `yaml:"public_base_url"`
	Folder           string `yaml:"folder"`
	MaxImageBytes    int64  `yaml:"max_image_bytes"`
	MaxDocumentBytes int64  `yaml:"max_document_bytes"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; generate one with jobboard config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional falls back to Default when the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("config.database.path is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("config.auth.token_ttl must be positive")
	}
	if c.Storage.Root == "" {
		return fmt.Errorf("config.storage.root is required")
	}
	if c.Storage.Folder == "" {
		return fmt.Errorf("config.storage.folder is required")
	}
	if c.Storage.MaxImageBytes <= 0 || c.Storage.MaxDocumentBytes <= 0 {
		return fmt.Errorf("config.storage size limits must be positive")
	}
	if c.Lifecycle.MaxRetries < 1 {
		return fmt.Errorf("config.lifecycle.max_retries must be at least 1")
	}
	if c.Sweeper.Enabled {
		if c.Sweeper.Schedule == "" {
			return fmt.Errorf("config.sweeper.schedule is required when the sweeper is enabled")
		}
		if c.Sweeper.Grace <= 0 {
			return fmt.Errorf("config.sweeper.grace must be positive")
		}
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
	return filepath.Join(workspace, "jobboard.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
// Missing keys keep their default values.
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

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /v1

database:
  path: .jobboard/jobboard.db

auth:
  # prefer JOBBOARD_JWT_SECRET over committing a secret here
  jwt_secret: ""
  token_ttl: 24h

storage:
  root: .jobboard/files
  public_base_url: http://127.0.0.1:8080/files
  folder: applications
  max_image_bytes: 5242880
  max_document_bytes: 10485760

lifecycle:
  max_retries: 3

sweeper:
  enabled: true
  schedule: "@every 1h"
  grace: 24h

log:
  level: info
  format: text
`
