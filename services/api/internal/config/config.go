package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"databaseURL"`
	LogLevel    string `yaml:"logLevel"`

	// store: "postgres" or "memory"
	Store string `yaml:"store"`

	// sessions: "redis" or "jwt"
	SessionStore  string `yaml:"sessionStore"`
	SessionSecret string `yaml:"sessionSecret"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	// aiProvider: "openai" (OpenAI-compatible) or "gemini"
	AIProvider      string `yaml:"aiProvider"`
	AIBaseURL       string `yaml:"aiBaseURL"`
	AIAPIKey        string `yaml:"aiAPIKey"`
	GenerationModel string `yaml:"generationModel"`
	GeminiAPIKey    string `yaml:"geminiAPIKey"`

	// imageSource: "pool" or "ai"
	ImageSource string `yaml:"imageSource"`
	ImageModel  string `yaml:"imageModel"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	RabbitURL string `yaml:"rabbitURL"`

	QueueStream      string `yaml:"queueStream"`
	QueueGroup       string `yaml:"queueGroup"`
	QueueConcurrency int    `yaml:"queueConcurrency"`

	GenerateRatePerMinute int `yaml:"generateRatePerMinute"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		cfg.SessionSecret = v
	}
	if v := os.Getenv("AI_API_KEY"); v != "" {
		cfg.AIAPIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("RABBIT_URL"); v != "" {
		cfg.RabbitURL = v
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.Store != "memory" && cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	switch cfg.SessionStore {
	case "", "redis":
		if cfg.RedisAddr == "" {
			return errors.New("config: redisAddr is required for redis sessions")
		}
	case "jwt":
		if len(cfg.SessionSecret) < 32 {
			return errors.New("config: sessionSecret of at least 32 bytes is required for jwt sessions")
		}
	default:
		return fmt.Errorf("config: unknown sessionStore %q", cfg.SessionStore)
	}
	switch cfg.AIProvider {
	case "", "openai":
		if cfg.AIBaseURL == "" {
			return errors.New("config: aiBaseURL is required (set in config.yaml)")
		}
		if cfg.AIAPIKey == "" {
			return errors.New("config: aiAPIKey is required (set in config.yaml or AI_API_KEY)")
		}
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return errors.New("config: geminiAPIKey is required (set in config.yaml or GEMINI_API_KEY)")
		}
	default:
		return fmt.Errorf("config: unknown aiProvider %q", cfg.AIProvider)
	}
	if cfg.GenerationModel == "" {
		return errors.New("config: generationModel is required (set in config.yaml)")
	}
	if cfg.ImageSource == "ai" && cfg.AIAPIKey == "" {
		return errors.New("config: aiAPIKey is required for AI image sourcing")
	}
	return nil
}
