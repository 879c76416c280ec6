package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Wikidata  WikidataConfig  `yaml:"wikidata" mapstructure:"wikidata"`
	RateLimit RateLimitConfig `yaml:"ratelimit" mapstructure:"ratelimit"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// CacheConfig selects and tunes the result cache backend.
type CacheConfig struct {
	Backend             string       `yaml:"backend" mapstructure:"backend"` // memory, redis, sqlite
	DefaultTTLSecs      int          `yaml:"default_ttl_secs" mapstructure:"default_ttl_secs"`
	CleanupIntervalSecs int          `yaml:"cleanup_interval_secs" mapstructure:"cleanup_interval_secs"`
	AllowFallback       bool         `yaml:"allow_fallback" mapstructure:"allow_fallback"`
	Redis               RedisConfig  `yaml:"redis" mapstructure:"redis"`
	SQLite              SQLiteConfig `yaml:"sqlite" mapstructure:"sqlite"`
}

// RedisConfig holds connection settings for the redis cache backend.
type RedisConfig struct {
	Addr      string `yaml:"addr" mapstructure:"addr"`
	Password  string `yaml:"password" mapstructure:"password"`
	DB        int    `yaml:"db" mapstructure:"db"`
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// SQLiteConfig holds settings for the sqlite cache backend.
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// WikidataConfig holds Wikidata API settings.
type WikidataConfig struct {
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
	MinDelayMs    int    `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	RateLimitMode string `yaml:"rate_limit_mode" mapstructure:"rate_limit_mode"` // spacing or delay
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries    int    `yaml:"max_retries" mapstructure:"max_retries"`
	// Consecutive transport failures before requests fail fast; 0 disables.
	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// RateLimitConfig configures per-client request limiting on the HTTP server.
type RateLimitConfig struct {
	Requests   int `yaml:"requests" mapstructure:"requests"`
	WindowMins int `yaml:"window_mins" mapstructure:"window_mins"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COUNTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 3000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.default_ttl_secs", 3600)
	v.SetDefault("cache.cleanup_interval_secs", 600)
	v.SetDefault("cache.allow_fallback", true)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.key_prefix", "county:")
	v.SetDefault("cache.sqlite.path", "county-cache.db")
	v.SetDefault("wikidata.base_url", "https://www.wikidata.org/w/api.php")
	v.SetDefault("wikidata.user_agent", "county-api/1.0 (https://github.com/sells-group/county-api)")
	v.SetDefault("wikidata.min_delay_ms", 1000)
	v.SetDefault("wikidata.rate_limit_mode", "spacing")
	v.SetDefault("wikidata.timeout_secs", 30)
	v.SetDefault("wikidata.max_retries", 3)
	v.SetDefault("wikidata.breaker_threshold", 5)
	v.SetDefault("wikidata.breaker_reset_secs", 30)
	v.SetDefault("ratelimit.requests", 100)
	v.SetDefault("ratelimit.window_mins", 15)

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

// Validate checks the configuration for values the service cannot run with.
// All problems are reported together.
func (c *Config) Validate() error {
	var problems []string

	switch c.Cache.Backend {
	case "memory", "sqlite":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			problems = append(problems, "cache.redis.addr is required for the redis backend")
		}
	default:
		problems = append(problems, "cache.backend must be one of memory, redis, sqlite")
	}
	if c.Cache.Backend == "sqlite" && c.Cache.SQLite.Path == "" {
		problems = append(problems, "cache.sqlite.path is required for the sqlite backend")
	}
	if c.Cache.DefaultTTLSecs <= 0 {
		problems = append(problems, "cache.default_ttl_secs must be > 0")
	}

	switch c.Wikidata.RateLimitMode {
	case "spacing", "delay":
	default:
		problems = append(problems, "wikidata.rate_limit_mode must be spacing or delay")
	}
	if c.Wikidata.BaseURL == "" {
		problems = append(problems, "wikidata.base_url is required")
	}
	if c.Wikidata.MinDelayMs < 0 {
		problems = append(problems, "wikidata.min_delay_ms must be >= 0")
	}
	if c.Wikidata.BreakerThreshold > 0 && c.Wikidata.BreakerResetSecs <= 0 {
		problems = append(problems, "wikidata.breaker_reset_secs must be > 0 when the breaker is enabled")
	}

	if c.Server.Port <= 0 {
		problems = append(problems, "server.port must be > 0")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.WindowMins <= 0 {
		problems = append(problems, "ratelimit.requests and ratelimit.window_mins must be > 0")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
