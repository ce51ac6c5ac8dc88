package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var ErrMissingRequired = errors.New("missing required config value")

type Config struct {
	ServerAddr string `yaml:"server_addr"`
	LogLevel   string `yaml:"log_level"`

	DBDriver    string `yaml:"db_driver"`
	DatabaseURL string `yaml:"database_url"`

	JWTSecret        string `yaml:"jwt_secret"`
	JWTIssuer        string `yaml:"jwt_issuer"`
	JWTAudience      string `yaml:"jwt_audience"`
	JWTExpiryMinutes int    `yaml:"jwt_expiry_minutes"`

	CORSOrigins []string `yaml:"cors_origins"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
}

func Defaults() Config {
	return Config{
		ServerAddr:       ":8080",
		LogLevel:         "info",
		DBDriver:         DriverPostgres,
		JWTIssuer:        "message-board",
		JWTAudience:      "message-board-client",
		JWTExpiryMinutes: 60,
		KafkaTopic:       "board_events",
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, a .env file and finally the process environment.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.ServerAddr = EnvDefault("SERVER_ADDR", cfg.ServerAddr)
	cfg.LogLevel = EnvDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.DBDriver = strings.ToLower(EnvDefault("DB_DRIVER", cfg.DBDriver))
	cfg.DatabaseURL = EnvDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.JWTSecret = EnvDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = EnvDefault("JWT_ISSUER", cfg.JWTIssuer)
	cfg.JWTAudience = EnvDefault("JWT_AUDIENCE", cfg.JWTAudience)
	cfg.JWTExpiryMinutes = EnvIntDefault("JWT_EXPIRY_MINUTES", cfg.JWTExpiryMinutes)
	cfg.KafkaTopic = EnvDefault("KAFKA_TOPIC", cfg.KafkaTopic)

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = CSV(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = CSV(v)
	}
}

// Validate is called once at startup; a server must not start without a
// signing secret or a database.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("%w: JWT_SECRET", ErrMissingRequired)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("%w: DATABASE_URL", ErrMissingRequired)
	}
	if c.JWTIssuer == "" || c.JWTAudience == "" {
		return fmt.Errorf("%w: JWT_ISSUER/JWT_AUDIENCE", ErrMissingRequired)
	}
	if c.JWTExpiryMinutes <= 0 {
		return fmt.Errorf("JWT_EXPIRY_MINUTES must be positive, got %d", c.JWTExpiryMinutes)
	}
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	return nil
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpiryMinutes) * time.Minute
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
