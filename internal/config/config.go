package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/chassis-cli/internal/normalize"
)

// Config holds the full application configuration.
type Config struct {
	Resolve   ResolveConfig    `yaml:"resolve" mapstructure:"resolve"`
	Normalize normalize.Config `yaml:"normalize" mapstructure:"normalize"`
	Join      JoinConfig       `yaml:"join" mapstructure:"join"`
	CSV       CSVConfig        `yaml:"csv" mapstructure:"csv"`
	Fetch     FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Store     StoreConfig      `yaml:"store" mapstructure:"store"`
	Server    ServerConfig     `yaml:"server" mapstructure:"server"`
	Log       LogConfig        `yaml:"log" mapstructure:"log"`
}

// ResolveConfig tunes column detection.
type ResolveConfig struct {
	// Threshold is the fuzzy-match acceptance score in [0,1].
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
}

// JoinConfig sets the default duplicate-handling policy.
type JoinConfig struct {
	Policy string `yaml:"policy" mapstructure:"policy"`
}

// CSVConfig configures delimited-text parsing.
type CSVConfig struct {
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter"`
	Charset   string `yaml:"charset" mapstructure:"charset"`
}

// DelimiterRune returns the configured delimiter as a rune, defaulting to ','.
func (c CSVConfig) DelimiterRune() rune {
	for _, r := range c.Delimiter {
		return r
	}
	return ','
}

// FetchConfig configures remote source retrieval.
type FetchConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
}

// StoreConfig configures the run-history backend.
// Driver is "sqlite", "postgres", or "none".
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// ServerConfig configures serve mode.
type ServerConfig struct {
	Port           int `yaml:"port" mapstructure:"port"`
	SessionTTLMins int `yaml:"session_ttl_mins" mapstructure:"session_ttl_mins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CHASSIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("resolve.threshold", 0.7)
	v.SetDefault("normalize.trim", true)
	v.SetDefault("normalize.collapse_spaces", true)
	v.SetDefault("normalize.uppercase", true)
	v.SetDefault("normalize.strip_leading_zeros", false)
	v.SetDefault("join.policy", "first")
	v.SetDefault("csv.delimiter", ",")
	v.SetDefault("csv.charset", "")
	v.SetDefault("fetch.user_agent", "chassis-cli/1.0")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_limit", 10)
	v.SetDefault("fetch.burst", 10)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "chassis-runs.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.session_ttl_mins", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
