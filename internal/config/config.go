package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	ServerPort  string   `toml:"server_port" env:"SERVER_PORT"`
	CORSOrigins []string `toml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`

	DBDriver   string `toml:"db_driver" env:"DB_DRIVER"`
	DBHost     string `toml:"db_host" env:"DB_HOST"`
	DBPort     string `toml:"db_port" env:"DB_PORT"`
	DBUser     string `toml:"db_user" env:"DB_USER"`
	DBPassword string `toml:"db_password" env:"DB_PASSWORD"`
	DBName     string `toml:"db_name" env:"DB_NAME"`
	SQLitePath string `toml:"sqlite_path" env:"SQLITE_PATH"`

	JWTSecret string        `toml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL  time.Duration `toml:"-" env:"TOKEN_TTL"`
	RedisURL  string        `toml:"redis_url" env:"REDIS_URL"`

	AdminUsername string `toml:"admin_username" env:"ADMIN_USERNAME"`
	AdminPassword string `toml:"admin_password" env:"ADMIN_PASSWORD"`

	// AllowObserverAnswers lets participants outside the turn order (rank -1) grade.
	AllowObserverAnswers bool          `toml:"allow_observer_answers" env:"ALLOW_OBSERVER_ANSWERS"`
	WSWriteTimeout       time.Duration `toml:"-" env:"WS_WRITE_TIMEOUT"`
}

func defaults() *Config {
	return &Config{
		ServerPort:     "8080",
		CORSOrigins:    []string{"*"},
		DBDriver:       DriverPostgres,
		DBHost:         "localhost",
		DBPort:         "5432",
		DBUser:         "postgres",
		DBPassword:     "postgres",
		DBName:         "assessments",
		SQLitePath:     "assessments.db",
		JWTSecret:      "super-secret-key-change-me",
		TokenTTL:       12 * time.Hour,
		AdminUsername:  "admin",
		AdminPassword:  "admin-password-change-me",
		WSWriteTimeout: 5 * time.Second,
	}
}

// Load builds the configuration from defaults, then the optional TOML file at path,
// then environment variables.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.ServerPort) == "" {
		return errors.New("server port is required")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.TokenTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	if c.WSWriteTimeout <= 0 {
		return errors.New("websocket write timeout must be positive")
	}
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unknown database driver %q", c.DBDriver)
	}
	return nil
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName,
	)
}
