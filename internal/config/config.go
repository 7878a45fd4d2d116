package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Groups    GroupsConfig    `yaml:"groups" mapstructure:"groups"`
	Nominatim NominatimConfig `yaml:"nominatim" mapstructure:"nominatim"`
	Overpass  OverpassConfig  `yaml:"overpass" mapstructure:"overpass"`
	Throttle  ThrottleConfig  `yaml:"throttle" mapstructure:"throttle"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Builder   BuilderConfig   `yaml:"builder" mapstructure:"builder"`
	Ledger    LedgerConfig    `yaml:"ledger" mapstructure:"ledger"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// CacheConfig locates the cache file and the copies made after a build.
type CacheConfig struct {
	Path  string   `yaml:"path" mapstructure:"path"`
	Sinks []string `yaml:"sinks" mapstructure:"sinks"`
}

// GroupsConfig locates the group table.
type GroupsConfig struct {
	Path    string `yaml:"path" mapstructure:"path"`
	Country string `yaml:"country" mapstructure:"country"`
}

// NominatimConfig configures the geocoding client.
type NominatimConfig struct {
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent string  `yaml:"user_agent" mapstructure:"user_agent"`
	Email     string  `yaml:"email" mapstructure:"email"`
	Language  string  `yaml:"language" mapstructure:"language"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// OverpassConfig configures the place search client.
type OverpassConfig struct {
	URL        string `yaml:"url" mapstructure:"url"`
	AdminLevel int    `yaml:"admin_level" mapstructure:"admin_level"`
}

// ThrottleConfig spaces outbound calls.
type ThrottleConfig struct {
	MinDelay   time.Duration `yaml:"min_delay" mapstructure:"min_delay"`
	GroupPause time.Duration `yaml:"group_pause" mapstructure:"group_pause"`
}

// RetryConfig configures retries of transient lookup failures.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// BuilderConfig configures the build loop.
type BuilderConfig struct {
	SkipMode string `yaml:"skip_mode" mapstructure:"skip_mode"`
}

// LedgerConfig locates the failure ledger database. An empty path disables it.
type LedgerConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// MetricsConfig configures the metrics textfile written at exit. An empty
// path disables it.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
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
	v.SetConfigName("citycache")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CITYCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("cache.path", "city-coordinates.json")
	v.SetDefault("cache.sinks", []string{})
	v.SetDefault("groups.path", "")
	v.SetDefault("groups.country", "")
	v.SetDefault("nominatim.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("nominatim.user_agent", "FastWeather City Cache Builder/1.0")
	v.SetDefault("nominatim.email", "")
	v.SetDefault("nominatim.language", "en")
	v.SetDefault("nominatim.rate_limit", 1.0)
	v.SetDefault("overpass.url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.admin_level", 4)
	v.SetDefault("throttle.min_delay", 1100*time.Millisecond)
	v.SetDefault("throttle.group_pause", 5*time.Second)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff", 2*time.Second)
	v.SetDefault("retry.max_backoff", time.Minute)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("builder.skip_mode", "precise")
	v.SetDefault("ledger.path", "citycache-failures.db")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

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

// Validate checks the settings a command depends on. Commands that only read
// the cache need a cache path; build and expand also need the services.
func (c *Config) Validate(command string) error {
	var errs []string

	if strings.TrimSpace(c.Cache.Path) == "" {
		errs = append(errs, "cache.path is required")
	}

	switch command {
	case "build", "expand":
		if c.Throttle.MinDelay < 0 {
			errs = append(errs, "throttle.min_delay must be >= 0")
		}
		if c.Throttle.GroupPause < 0 {
			errs = append(errs, "throttle.group_pause must be >= 0")
		}
		if c.Retry.MaxAttempts < 1 {
			errs = append(errs, "retry.max_attempts must be >= 1")
		}
		if c.Retry.Multiplier < 1 {
			errs = append(errs, "retry.multiplier must be >= 1")
		}
		if command == "build" {
			if strings.TrimSpace(c.Nominatim.UserAgent) == "" {
				errs = append(errs, "nominatim.user_agent is required")
			}
			switch c.Builder.SkipMode {
			case "precise", "count":
			default:
				errs = append(errs, "builder.skip_mode must be precise or count")
			}
		}
		if command == "expand" && c.Overpass.AdminLevel < 1 {
			errs = append(errs, "overpass.admin_level must be >= 1")
		}
	case "distribute", "status", "lookup", "nearest", "export":
	case "failures":
		if strings.TrimSpace(c.Ledger.Path) == "" {
			errs = append(errs, "ledger.path is required")
		}
	default:
		return eris.Errorf("config: unknown command %q", command)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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
