// Package config loads process configuration from flags, environment
// variables and an optional YAML file.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/FreePeak/data-query-server/internal/infrastructure/logging"
)

// EnvPrefix prefixes every environment override, e.g. DQS_SERVER_PORT.
const EnvPrefix = "DQS"

// Transport selection values.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
	TransportBoth  = "both"
)

// Config is the full process configuration.
type Config struct {
	Transport string         `mapstructure:"transport"`
	Server    ServerConfig   `mapstructure:"server"`
	Database  DatabaseConfig `mapstructure:"database"`
	Logging   LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Name        string        `mapstructure:"name"`
	Version     string        `mapstructure:"version"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	KeepAlive   time.Duration `mapstructure:"keep_alive"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DatabaseConfig configures the dataset store.
type DatabaseConfig struct {
	Path         string        `mapstructure:"path"`
	StoreTimeout time.Duration `mapstructure:"store_timeout"`
	Seed         bool          `mapstructure:"seed"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
	Development bool   `mapstructure:"development"`
}

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"transport":     "transport",
	"host":          "server.host",
	"port":          "server.port",
	"db":            "database.path",
	"store-timeout": "database.store_timeout",
	"seed":          "database.seed",
	"log-level":     "logging.level",
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("transport", TransportStdio)

	v.SetDefault("server.name", "data-query-server")
	v.SetDefault("server.version", "0.1.0")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.keep_alive", 0)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)

	v.SetDefault("database.path", "data/datasets.db")
	v.SetDefault("database.store_timeout", 30*time.Second)
	v.SetDefault("database.seed", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "json")
	v.SetDefault("logging.development", false)
}

// BindFlags binds the known flags in fs to their configuration keys.
// Flags absent from fs are skipped.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return errors.Wrapf(err, "bind flag %s", name)
		}
	}
	return nil
}

// Load reads configuration into a Config. Priority is flags, then
// environment, then the file at cfgFile (if non-empty), then defaults.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", cfgFile)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportStdio, TransportSSE, TransportBoth:
	default:
		return fmt.Errorf("unknown transport %q (want %s, %s or %s)", c.Transport, TransportStdio, TransportSSE, TransportBoth)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Database.StoreTimeout <= 0 {
		return fmt.Errorf("store timeout must be positive, got %s", c.Database.StoreTimeout)
	}
	if c.Server.KeepAlive < 0 {
		return fmt.Errorf("keep-alive interval must not be negative, got %s", c.Server.KeepAlive)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// LoggerConfig converts the logging settings for logging.New.
func (c *Config) LoggerConfig() (logging.Config, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return logging.Config{}, err
	}
	lc := logging.DefaultConfig()
	if c.Logging.Development {
		lc = logging.DevelopmentConfig()
	}
	lc.Level = level
	if c.Logging.Encoding != "" && !c.Logging.Development {
		lc.Encoding = c.Logging.Encoding
	}
	lc.InitialFields = map[string]interface{}{"service": c.Server.Name}
	return lc, nil
}
