package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode          string              `mapstructure:"mode"`
	Server        ServerConfig        `mapstructure:"server"`
	Repositories  RepositoriesConfig  `mapstructure:"repositories"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Throttle      ThrottleConfig      `mapstructure:"throttle"`
	Verification  VerificationConfig  `mapstructure:"verification"`
	Reset         ResetConfig         `mapstructure:"reset"`
	Mail          MailConfig          `mapstructure:"mail"`
	Store         StoreConfig         `mapstructure:"store"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	CORS          CORSConfig          `mapstructure:"cors"`
}

type ServerConfig struct {
	HTTPPort     string        `mapstructure:"HTTPPort"`
	Timeout      time.Duration `mapstructure:"HTTPTimeout"`
	ReadTimeout  time.Duration `mapstructure:"ReadTimeout"`
	WriteTimeout time.Duration `mapstructure:"WriteTimeout"`
	IdleTimeout  time.Duration `mapstructure:"IdleTimeout"`
}

type RepositoriesConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Password string `mapstructure:"password"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	DB       string `mapstructure:"db"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig holds the signing material for both token classes.
type JWTConfig struct {
	SecretKey        string        `mapstructure:"secretKey"`
	RefreshSecretKey string        `mapstructure:"refreshSecretKey"`
	AccessTokenTTL   time.Duration `mapstructure:"accessTokenTTL"`
	RefreshTokenTTL  time.Duration `mapstructure:"refreshTokenTTL"`
	Issuer           string        `mapstructure:"issuer"`
	Audience         string        `mapstructure:"audience"`
}

type ThrottleConfig struct {
	Backend string        `mapstructure:"backend"`
	Window  time.Duration `mapstructure:"window"`
	Quota   int           `mapstructure:"quota"`
	// PublicPerMinute limits per-IP traffic on the unauthenticated routes; 0 disables it.
	PublicPerMinute int `mapstructure:"publicPerMinute"`
}

type VerificationConfig struct {
	CodeTTL time.Duration `mapstructure:"codeTTL"`
}

type ResetConfig struct {
	TokenTTL time.Duration `mapstructure:"tokenTTL"`
	ResetURL string        `mapstructure:"resetURL"`
}

type MailConfig struct {
	Driver   string        `mapstructure:"driver"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type StoreConfig struct {
	Backend string        `mapstructure:"backend"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ObservabilityConfig struct {
	MetricsPort string `mapstructure:"metricsPort"`
	ServiceName string `mapstructure:"serviceName"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// IsDevelopment reports whether the process runs in development mode. APP_ENV wins over mode.
func (c Config) IsDevelopment() bool {
	mode := c.Mode
	if env := os.Getenv("APP_ENV"); env != "" {
		mode = env
	}
	return mode == "" || strings.EqualFold(mode, "development")
}

// Validate rejects configurations the auth subsystem cannot run with.
func (c Config) Validate() error {
	if c.JWT.SecretKey == "" || c.JWT.RefreshSecretKey == "" {
		return errors.New("jwt.secretKey and jwt.refreshSecretKey must be set")
	}
	if c.JWT.SecretKey == c.JWT.RefreshSecretKey {
		return errors.New("jwt.secretKey and jwt.refreshSecretKey must differ")
	}
	if c.JWT.AccessTokenTTL <= 0 || c.JWT.RefreshTokenTTL <= 0 {
		return errors.New("jwt token lifetimes must be positive")
	}
	if c.Throttle.Window <= 0 || c.Throttle.Quota <= 0 {
		return errors.New("throttle.window and throttle.quota must be positive")
	}
	switch c.Throttle.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown throttle backend %q", c.Throttle.Backend)
	}
	switch c.Store.Backend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Mail.Driver {
	case "log", "smtp":
	default:
		return fmt.Errorf("unknown mail driver %q", c.Mail.Driver)
	}
	return nil
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// JWT_SECRETKEY overrides jwt.secretKey
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err = config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}
