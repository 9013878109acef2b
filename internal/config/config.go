package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultOpenWeatherBaseURL    = "https://api.openweathermap.org/data/2.5"
	defaultOpenWeatherOneCallURL = "https://api.openweathermap.org/data/3.0/onecall"
)

// DatabaseConfig selects and tunes the relational store.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" validate:"oneof=sqlite postgres mysql"`
	DSN             string        `yaml:"dsn" validate:"required_unless=Driver sqlite"`
	MaxOpenConns    int           `yaml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" validate:"gte=0"`
	LogLevel        string        `yaml:"log_level" validate:"omitempty,oneof=silent error warn info"`
}

type AppConfig struct {
	OpenWeatherAPIKey     string `yaml:"openweather_api_key" validate:"required"`
	OpenWeatherBaseURL    string `yaml:"openweather_base_url" validate:"required,url"`
	OpenWeatherOneCallURL string `yaml:"openweather_onecall_url" validate:"required,url"`

	// GeocoderAPIKey enables Google geocoding for cities searched without coordinates.
	GeocoderAPIKey string `yaml:"geocoder_api_key"`

	// HTTPTimeout bounds each outbound provider call.
	HTTPTimeout time.Duration `yaml:"http_timeout" validate:"gt=0"`
	// RequestTimeout bounds the handling of one inbound request.
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`
	// DedupeWindow suppresses repeated current-weather rows for the same location.
	DedupeWindow time.Duration `yaml:"dedupe_window" validate:"gte=0"`

	Database DatabaseConfig `yaml:"database"`

	Port             string `yaml:"port" validate:"required,numeric"`
	CORSAllowOrigins string `yaml:"cors_allow_origins"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() *AppConfig {
	return &AppConfig{
		OpenWeatherBaseURL:    defaultOpenWeatherBaseURL,
		OpenWeatherOneCallURL: defaultOpenWeatherOneCallURL,
		HTTPTimeout:           10 * time.Second,
		RequestTimeout:        15 * time.Second,
		DedupeWindow:          time.Minute,
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "weather.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			LogLevel:        "warn",
		},
		Port:             "8080",
		CORSAllowOrigins: "http://localhost:3000",
	}
}

// Load reads configuration from an optional .env file, an optional YAML file named
// by CONFIG_FILE, and the environment, in increasing order of precedence.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := loadEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the assembled configuration.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func loadFile(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func loadEnv(cfg *AppConfig) error {
	cfg.OpenWeatherAPIKey = getenvDefault("OPENWEATHER_API_KEY", cfg.OpenWeatherAPIKey)
	cfg.OpenWeatherBaseURL = getenvDefault("OPENWEATHER_BASE_URL", cfg.OpenWeatherBaseURL)
	cfg.OpenWeatherOneCallURL = getenvDefault("OPENWEATHER_ONECALL_URL", cfg.OpenWeatherOneCallURL)
	cfg.GeocoderAPIKey = getenvDefault("GEOCODER_API_KEY", cfg.GeocoderAPIKey)
	cfg.Port = getenvDefault("PORT", cfg.Port)
	cfg.CORSAllowOrigins = getenvDefault("CORS_ALLOW_ORIGINS", cfg.CORSAllowOrigins)

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", cfg.HTTPTimeout); err != nil {
		return err
	}
	if cfg.RequestTimeout, err = getenvDuration("REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return err
	}
	if cfg.DedupeWindow, err = getenvDuration("DEDUPE_WINDOW", cfg.DedupeWindow); err != nil {
		return err
	}

	db := &cfg.Database
	db.Driver = strings.ToLower(getenvDefault("DB_DRIVER", db.Driver))
	db.DSN = getenvDefault("DB_DSN", db.DSN)
	if os.Getenv("DB_DSN") == "" && db.Driver == "postgres" && os.Getenv("POSTGRES_HOST") != "" {
		db.DSN = postgresDSNFromEnv()
	}
	db.MaxOpenConns = getenvInt("DB_MAX_OPEN_CONNS", db.MaxOpenConns)
	db.MaxIdleConns = getenvInt("DB_MAX_IDLE_CONNS", db.MaxIdleConns)
	if db.ConnMaxLifetime, err = getenvDuration("DB_CONN_MAX_LIFETIME", db.ConnMaxLifetime); err != nil {
		return err
	}
	db.LogLevel = getenvDefault("DB_LOG_LEVEL", db.LogLevel)
	return nil
}

// postgresDSNFromEnv builds a DSN from the POSTGRES_* variables used by the
// compose setup.
func postgresDSNFromEnv() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		getenvDefault("POSTGRES_USER", "postgres"),
		getenvDefault("POSTGRES_PASSWORD", "postgres"),
		getenvDefault("POSTGRES_HOST", "localhost"),
		getenvDefault("POSTGRES_PORT", "5432"),
		getenvDefault("POSTGRES_DB", "weather_db"),
		getenvDefault("POSTGRES_SSLMODE", "disable"),
	)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
		log.Printf("INFO: ignoring invalid %s=%q", key, v)
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
