// Package config loads apiorm settings from apiorm.yml and APIORM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "APIORM"

// Config represents the apiorm configuration
type Config struct {
	// Mapping is the entity mapping file, Resources the resource and filter file
	Mapping       string             `mapstructure:"mapping"`
	Resources     string             `mapstructure:"resources"`
	NameConverter string             `mapstructure:"name_converter"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Collection    CollectionConfig   `mapstructure:"collection"`
	EagerLoading  EagerLoadingConfig `mapstructure:"eager_loading"`
	Cache         CacheConfig        `mapstructure:"cache"`
	Log           LogConfig          `mapstructure:"log"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// CollectionConfig holds the defaults of collection operations
type CollectionConfig struct {
	// Order is the direction of the identifier order applied to unordered collections
	Order      string           `mapstructure:"order"`
	Pagination PaginationConfig `mapstructure:"pagination"`
}

// PaginationConfig represents the pagination defaults
type PaginationConfig struct {
	Enabled                   bool   `mapstructure:"enabled"`
	ClientEnabled             bool   `mapstructure:"client_enabled"`
	ClientItemsPerPage        bool   `mapstructure:"client_items_per_page"`
	ItemsPerPage              int    `mapstructure:"items_per_page"`
	MaximumItemsPerPage       int    `mapstructure:"maximum_items_per_page"`
	Partial                   bool   `mapstructure:"partial"`
	ClientPartial             bool   `mapstructure:"client_partial"`
	PageParameterName         string `mapstructure:"page_parameter_name"`
	EnabledParameterName      string `mapstructure:"enabled_parameter_name"`
	ItemsPerPageParameterName string `mapstructure:"items_per_page_parameter_name"`
	PartialParameterName      string `mapstructure:"partial_parameter_name"`
	GraphQLEnabled            bool   `mapstructure:"graphql_enabled"`
}

// EagerLoadingConfig represents eager loading configuration
type EagerLoadingConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	MaxJoins     int  `mapstructure:"max_joins"`
	ForceEager   bool `mapstructure:"force_eager"`
	FetchPartial bool `mapstructure:"fetch_partial"`
}

// CacheConfig selects the backend of the filter description cache
type CacheConfig struct {
	// Backend is memory, redis or none
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Prefix  string        `mapstructure:"prefix"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig represents the redis connection
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	Disabled    bool   `mapstructure:"disabled"`
}

var (
	validDrivers  = []string{"pgx", "postgres", "mysql", "sqlite3"}
	validBackends = []string{"memory", "redis", "none"}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("mapping", "mapping.yml")
	v.SetDefault("resources", "resources.yml")
	v.SetDefault("name_converter", "")

	v.SetDefault("database.driver", "pgx")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("collection.order", "ASC")
	v.SetDefault("collection.pagination.enabled", true)
	v.SetDefault("collection.pagination.client_enabled", false)
	v.SetDefault("collection.pagination.client_items_per_page", false)
	v.SetDefault("collection.pagination.items_per_page", 30)
	v.SetDefault("collection.pagination.maximum_items_per_page", 0)
	v.SetDefault("collection.pagination.partial", false)
	v.SetDefault("collection.pagination.client_partial", false)
	v.SetDefault("collection.pagination.page_parameter_name", "page")
	v.SetDefault("collection.pagination.enabled_parameter_name", "pagination")
	v.SetDefault("collection.pagination.items_per_page_parameter_name", "itemsPerPage")
	v.SetDefault("collection.pagination.partial_parameter_name", "partial")
	v.SetDefault("collection.pagination.graphql_enabled", true)

	v.SetDefault("eager_loading.enabled", true)
	v.SetDefault("eager_loading.max_joins", 30)
	v.SetDefault("eager_loading.force_eager", true)
	v.SetDefault("eager_loading.fetch_partial", false)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("cache.prefix", "apiorm:")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.disabled", false)
}

// Default returns the configuration Load yields without a file or environment
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads the configuration from path, or from apiorm.yml / apiorm.yaml in the
// working directory when path is empty. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("apiorm")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" && cfg.Database.URL == "" {
		cfg.Database.URL = url
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// relative files are resolved against the configuration file
	if used := v.ConfigFileUsed(); used != "" {
		dir := filepath.Dir(used)
		cfg.Mapping = resolve(dir, cfg.Mapping)
		cfg.Resources = resolve(dir, cfg.Resources)
	}

	return &cfg, nil
}

// Validate checks the values Load cannot default
func (c *Config) Validate() error {
	if !oneOf(c.Database.Driver, validDrivers) {
		return fmt.Errorf("database.driver must be one of %s, got: %s", strings.Join(validDrivers, ", "), c.Database.Driver)
	}

	switch strings.ToUpper(c.Collection.Order) {
	case "", "ASC", "DESC":
		c.Collection.Order = strings.ToUpper(c.Collection.Order)
	default:
		return fmt.Errorf("collection.order must be ASC, DESC or empty, got: %s", c.Collection.Order)
	}

	p := c.Collection.Pagination
	if p.ItemsPerPage < 0 {
		return fmt.Errorf("collection.pagination.items_per_page must not be negative, got: %d", p.ItemsPerPage)
	}
	if p.MaximumItemsPerPage < 0 {
		return fmt.Errorf("collection.pagination.maximum_items_per_page must not be negative, got: %d", p.MaximumItemsPerPage)
	}

	if c.EagerLoading.MaxJoins < 0 {
		return fmt.Errorf("eager_loading.max_joins must not be negative, got: %d", c.EagerLoading.MaxJoins)
	}

	if !oneOf(c.Cache.Backend, validBackends) {
		return fmt.Errorf("cache.backend must be one of %s, got: %s", strings.Join(validBackends, ", "), c.Cache.Backend)
	}

	switch c.NameConverter {
	case "", "snake_case":
	default:
		return fmt.Errorf("name_converter must be empty or snake_case, got: %s", c.NameConverter)
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func oneOf(s string, list []string) bool {
	for _, candidate := range list {
		if s == candidate {
			return true
		}
	}
	return false
}
