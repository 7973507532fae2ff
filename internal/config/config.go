package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/terabiome/testbed/internal/errdefs"
	"github.com/terabiome/testbed/pkg/constants"
)

type Config struct {
	LogLevel         string
	LogFormat        string
	TelemetryEnabled bool

	PrismBinary   string
	KeygenTimeout time.Duration
	KeygenSSH     SSHConfig

	KeypairDir       string
	PayloadDir       string
	NodePayloadDir   string
	ManifestPath     string
	BasePort         int
	RemotePayloadDir string
	NodeBinary       string
	NodeDataDir      string
	StartupTemplate  string
	ExtraNodeFlags   string
}

// SSHConfig selects a remote build host for key generation. An empty Host runs keygen locally.
type SSHConfig struct {
	Host           string
	Port           int
	User           string
	KeyPath        string
	KnownHostsPath string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: failed to load .env: %v", errdefs.ErrConfiguration, err)
	}

	v := viper.New()

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("telemetry_enabled", false)
	v.SetDefault("prism_bin", "../target/release/prism")
	v.SetDefault("keygen_timeout", "0s")
	v.SetDefault("keygen_ssh_host", "")
	v.SetDefault("keygen_ssh_port", 22)
	v.SetDefault("keygen_ssh_user", "ubuntu")
	v.SetDefault("keygen_ssh_key", "~/.ssh/id_rsa")
	v.SetDefault("keygen_ssh_known_hosts", "")
	v.SetDefault("keypair_dir", "keypairs")
	v.SetDefault("payload_dir", "payload")
	v.SetDefault("node_payload_dir", "prism-payload")
	v.SetDefault("manifest_path", "nodes.txt")
	v.SetDefault("base_port", constants.DefaultBasePort)
	v.SetDefault("remote_payload_dir", "/home/ubuntu/payload")
	v.SetDefault("node_binary", "/home/ubuntu/payload/binary/prism")
	v.SetDefault("node_data_dir", "/tmp/prism")
	v.SetDefault("startup_template", "")
	v.SetDefault("extra_node_flags", constants.DefaultExtraNodeFlags)

	v.SetConfigName("testbed")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: failed to read config file: %v", errdefs.ErrConfiguration, err)
		}
	}

	v.SetEnvPrefix("testbed")
	v.AutomaticEnv()

	cfg := &Config{
		LogLevel:         v.GetString("log_level"),
		LogFormat:        v.GetString("log_format"),
		TelemetryEnabled: v.GetBool("telemetry_enabled"),
		PrismBinary:      v.GetString("prism_bin"),
		KeygenTimeout:    v.GetDuration("keygen_timeout"),
		KeygenSSH: SSHConfig{
			Host:           v.GetString("keygen_ssh_host"),
			Port:           v.GetInt("keygen_ssh_port"),
			User:           v.GetString("keygen_ssh_user"),
			KeyPath:        v.GetString("keygen_ssh_key"),
			KnownHostsPath: v.GetString("keygen_ssh_known_hosts"),
		},
		KeypairDir:       v.GetString("keypair_dir"),
		PayloadDir:       v.GetString("payload_dir"),
		NodePayloadDir:   v.GetString("node_payload_dir"),
		ManifestPath:     v.GetString("manifest_path"),
		BasePort:         v.GetInt("base_port"),
		RemotePayloadDir: v.GetString("remote_payload_dir"),
		NodeBinary:       v.GetString("node_binary"),
		NodeDataDir:      v.GetString("node_data_dir"),
		StartupTemplate:  v.GetString("startup_template"),
		ExtraNodeFlags:   v.GetString("extra_node_flags"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrConfiguration, err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.LogFormat = strings.ToLower(c.LogFormat)

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.LogLevel)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.LogFormat)
	}

	if c.BasePort < 1 || c.BasePort > 65535 {
		return fmt.Errorf("base port %d out of range 1-65535", c.BasePort)
	}

	if c.KeygenTimeout < 0 {
		return fmt.Errorf("keygen timeout must not be negative: %s", c.KeygenTimeout)
	}

	required := []struct{ key, value string }{
		{"prism_bin", c.PrismBinary},
		{"keypair_dir", c.KeypairDir},
		{"payload_dir", c.PayloadDir},
		{"node_payload_dir", c.NodePayloadDir},
		{"manifest_path", c.ManifestPath},
		{"remote_payload_dir", c.RemotePayloadDir},
		{"node_binary", c.NodeBinary},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s must not be empty", r.key)
		}
	}

	if c.StartupTemplate != "" {
		if err := validateFileExists(c.StartupTemplate); err != nil {
			return fmt.Errorf("startup template: %w", err)
		}
	}

	return nil
}

func validateFileExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", path)
	} else if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}
	return nil
}
