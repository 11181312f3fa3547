// Package config содержит логику чтения конфигурации интернет-витрины.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Cloudinary содержит учётные данные хранилища изображений.
type Cloudinary struct {
	CloudName string `env:"CLOUD_NAME"`
	APIKey    string `env:"API_KEY"`
	APISecret string `env:"API_SECRET"`
}

// Enabled сообщает, заданы ли все учётные данные.
func (c Cloudinary) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// Config содержит параметры конфигурации HTTP-сервера витрины.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	JWTSecret   string `env:"JWT_SECRET"`

	TokenTTL       time.Duration `env:"TOKEN_TTL" envDefault:"168h"`
	AuthRateLimit  float64       `env:"AUTH_RATE_LIMIT" envDefault:"5"`
	AuthRateBurst  int           `env:"AUTH_RATE_BURST" envDefault:"10"`
	MaxUploadBytes int64         `env:"MAX_UPLOAD_BYTES" envDefault:"5242880"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`

	Cloudinary Cloudinary `envPrefix:"CLOUDINARY_"`
}

// SeedConfig содержит параметры команды начального наполнения.
type SeedConfig struct {
	DatabaseURI   string `env:"DATABASE_URI"`
	AdminName     string `env:"ADMIN_NAME" envDefault:"Admin"`
	AdminEmail    string `env:"ADMIN_EMAIL" envDefault:"admin@example.com"`
	AdminPassword string `env:"ADMIN_PASSWORD" envDefault:"Admin@123"`
	ProductsFile  string `env:"SEED_PRODUCTS"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadDotEnv загружает переменные окружения из файла, если он существует.
// Уже заданные переменные не перезаписываются.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envJWTSecret := cfg.JWTSecret

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.JWTSecret, "s", "", "secret key for signing tokens")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envJWTSecret != "" {
		cfg.JWTSecret = envJWTSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive, got %s", cfg.TokenTTL)
	}

	return cfg, nil
}

// ParseSeed считывает конфигурацию команды начального наполнения.
func ParseSeed() (*SeedConfig, error) {
	cfg := &SeedConfig{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envDatabaseURI := cfg.DatabaseURI
	envProductsFile := cfg.ProductsFile

	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.ProductsFile, "products", "", "path to JSON file with catalog products")

	flag.Parse()

	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envProductsFile != "" {
		cfg.ProductsFile = envProductsFile
	}

	return cfg, nil
}
