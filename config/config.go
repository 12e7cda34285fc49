package config

import (
	"fmt"
	"strings"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Auth        AuthConfig       `mapstructure:"auth"`
	Log         LogConfig        `mapstructure:"log"`
	Commissions CommissionConfig `mapstructure:"commissions"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// AuthConfig carries the shared secret used to verify actor tokens issued by
// the external auth subsystem. This service never issues tokens itself.
type AuthConfig struct {
	TokenSecret string `mapstructure:"token_secret"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// CommissionConfig is the fee schedule: a default policy plus per-merchant
// overrides keyed by merchant id.
type CommissionConfig struct {
	Default   domain.CommissionPolicy            `mapstructure:"default"`
	Overrides map[string]domain.CommissionPolicy `mapstructure:"overrides"`
}

// Resolver builds the commission resolver from the loaded schedule.
func (c CommissionConfig) Resolver() *domain.CommissionResolver {
	return domain.NewCommissionResolver(c.Default, c.Overrides)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: MKT (Marketplace Ledger).
// Nested keys use underscore: MKT_DATABASE_HOST, MKT_AUTH_TOKEN_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "marketplace_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.token_secret", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("commissions.default.order_fee", 0.10)
	v.SetDefault("commissions.default.payout_fee", 0.05)
	v.SetDefault("commissions.default.customer_fee", 0.02)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: MKT_DATABASE_HOST -> database.host
	v.SetEnvPrefix("MKT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional; env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Commissions.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c CommissionConfig) validate() error {
	check := func(name string, p domain.CommissionPolicy) error {
		for field, rate := range map[string]float64{
			"order_fee":    p.OrderFee,
			"payout_fee":   p.PayoutFee,
			"customer_fee": p.CustomerFee,
		} {
			if rate < 0 || rate >= 1 {
				return fmt.Errorf("commissions.%s.%s out of range [0,1): %v", name, field, rate)
			}
		}
		return nil
	}

	if err := check("default", c.Default); err != nil {
		return err
	}
	for id, p := range c.Overrides {
		if err := check("overrides."+id, p); err != nil {
			return err
		}
	}
	return nil
}
