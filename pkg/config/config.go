// Package config loads process settings from the environment and an
// optional, explicitly named YAML file. Environment variables use the
// upper-cased key (collect_configs -> COLLECT_CONFIGS) and win over the file.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wilhg/iamlens/pkg/errmodel"
	"github.com/wilhg/iamlens/pkg/iamlens"
)

// Transports accepted by MCP_TRANSPORT.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config is the full process configuration.
type Config struct {
	CollectConfigs   string        `mapstructure:"collect_configs"`
	IAMLensPath      string        `mapstructure:"iam_lens_path"`
	Timeout          time.Duration `mapstructure:"iam_lens_timeout"`
	MaxOutputBytes   int64         `mapstructure:"iam_lens_max_output_bytes"`
	Transport        string        `mapstructure:"mcp_transport"`
	Addr             string        `mapstructure:"mcp_addr"`
	LogLevel         string        `mapstructure:"log_level"`
	AuditDatabaseURL string        `mapstructure:"audit_database_url"`
	TraceStdout      bool          `mapstructure:"otel_stdout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("collect_configs", "")
	v.SetDefault("iam_lens_path", iamlens.DefaultPath)
	v.SetDefault("iam_lens_timeout", iamlens.DefaultTimeout)
	v.SetDefault("iam_lens_max_output_bytes", int64(iamlens.DefaultMaxOutputBytes))
	v.SetDefault("mcp_transport", TransportStdio)
	v.SetDefault("mcp_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("audit_database_url", "")
	v.SetDefault("otel_stdout", false)
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment are used.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errmodel.New(errmodel.CategoryConfig, "unreadable_config",
				"cannot read config file", map[string]any{"path": path}, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errmodel.New(errmodel.CategoryConfig, "invalid_config",
			"cannot decode configuration", nil, err)
	}
	return cfg, nil
}

// Validate reports the first configuration problem that prevents startup.
func (c Config) Validate() error {
	if strings.TrimSpace(c.CollectConfigs) == "" {
		return errmodel.Config("missing_collect_configs", "COLLECT_CONFIGS environment variable is required but not set", nil)
	}
	switch c.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return errmodel.Config("invalid_config", "unsupported transport", map[string]any{"transport": c.Transport})
	}
	if c.Transport == TransportHTTP && c.Addr == "" {
		return errmodel.Config("invalid_config", "http transport requires an address", nil)
	}
	if c.Timeout < 0 {
		return errmodel.Config("invalid_config", "timeout must not be negative", map[string]any{"timeout": c.Timeout.String()})
	}
	if c.MaxOutputBytes < 0 {
		return errmodel.Config("invalid_config", "max output bytes must not be negative", nil)
	}
	return nil
}

// Client returns the iam-lens adapter configuration.
func (c Config) Client() iamlens.Config {
	return iamlens.Config{Path: c.IAMLensPath, CollectConfigs: c.CollectConfigs}
}

// Runner returns the process runner described by c.
func (c Config) Runner() iamlens.ExecRunner {
	return iamlens.ExecRunner{Timeout: c.Timeout, MaxOutputBytes: c.MaxOutputBytes}
}
