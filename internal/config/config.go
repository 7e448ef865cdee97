// Package config loads service configuration from an optional YAML file with
// environment-variable fallbacks for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the service configuration.
type Config struct {
	ListenAddr       string `yaml:"listen_addr"`
	DataDir          string `yaml:"data_dir"`
	HistoryDB        string `yaml:"history_db"`
	Organization     string `yaml:"organization"`
	DeploymentConfig string `yaml:"deployment_config"`
	Pretty           bool   `yaml:"pretty"`

	GitHub GitHub `yaml:"github"`
	Scan   Scan   `yaml:"scan"`
	S3     S3     `yaml:"s3"`
}

// GitHub configures the hosted tag source.
type GitHub struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

// Scan configures orchestrator defaults.
type Scan struct {
	Workers        int      `yaml:"workers"`
	PerRepoTimeout Duration `yaml:"per_repo_timeout"`
	MaxTagsPerRepo int      `yaml:"max_tags_per_repo"`
}

// S3 configures the optional view publisher. Publishing is enabled when
// Bucket is non-empty.
type S3 struct {
	Endpoint        string   `yaml:"endpoint"`
	Region          string   `yaml:"region"`
	Bucket          string   `yaml:"bucket"`
	AccessKey       string   `yaml:"access_key"`
	SecretKey       string   `yaml:"secret_key"`
	Prefix          string   `yaml:"prefix"`
	PublishInterval Duration `yaml:"publish_interval"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		ListenAddr:       ":8080",
		DataDir:          "data",
		HistoryDB:        "scans.db",
		DeploymentConfig: "config/deployment_config.json",
		Pretty:           true,
		Scan: Scan{
			MaxTagsPerRepo: 10,
		},
		S3: S3{
			Region:          "us-east-1",
			PublishInterval: Duration(30 * time.Second),
		},
	}
}

// Load reads path when it exists and overlays environment credentials.
// An empty path skips the file and returns defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
	if cfg.S3.AccessKey == "" {
		cfg.S3.AccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
	}
	if cfg.S3.SecretKey == "" {
		cfg.S3.SecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}

	return cfg, nil
}
