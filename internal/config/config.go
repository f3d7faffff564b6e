package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type ModelConfig struct {
	Name              string `yaml:"name"`
	RequestsPerMinute int    `yaml:"requestsPerMinute"`
	TokensPerMinute   int    `yaml:"tokensPerMinute"`
	RequestsPerDay    int    `yaml:"requestsPerDay"`
}

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	OpenAI struct {
		APIKey string `yaml:"apiKey"`
	} `yaml:"openai"`

	Auth struct {
		// APIKeys maps raw key -> requester ID.
		APIKeys   map[string]string `yaml:"apiKeys"`
		JWTSecret string            `yaml:"jwtSecret"`
	} `yaml:"auth"`

	Analysis struct {
		TimeoutSeconds int `yaml:"timeoutSeconds"`
	} `yaml:"analysis"`

	RateLimit struct {
		// HTTP edge limiter, per requester+IP.
		Capacity   int `yaml:"capacity"`
		RefillRate int `yaml:"refillRate"`
	} `yaml:"rateLimit"`

	// Models is the priority-ordered candidate list, cheapest first.
	Models []ModelConfig `yaml:"models"`
}

// Load reads the config.yaml file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "mysql"
	}
	if cfg.Analysis.TimeoutSeconds <= 0 {
		cfg.Analysis.TimeoutSeconds = 60
	}
	if cfg.RateLimit.Capacity <= 0 {
		cfg.RateLimit.Capacity = 30
	}
	if cfg.RateLimit.RefillRate <= 0 {
		cfg.RateLimit.RefillRate = 1
	}
	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("config: at least one model must be configured")
	}
	return &cfg, nil
}

// MySQLDSN builds the MySQL connection string.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds the Postgres connection string.
func (c *Config) PostgresDSN() string {
	ssl := c.Database.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		ssl,
	)
}
