package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Storage string    `yaml:"storage"`
	DB      *Postgres `yaml:"database"`
	RMQ     *RabbitMQ `yaml:"rabbitmq"`
	Mongo   *Mongo    `yaml:"mongo"`
	Hub     Hub       `yaml:"hub"`
	Auth    Auth      `yaml:"auth"`
	Agent   Agent     `yaml:"agent"`
	Outlets []Outlet  `yaml:"outlets"`
}

type Postgres struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	MaxConns int32  `yaml:"max_conns"`
}

type RabbitMQ struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	VHost    string `yaml:"vhost"`
}

type Mongo struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// Hub tunes the fan-out hub. With Broker set, publishes travel through
// RabbitMQ so every order-service instance sees them.
type Hub struct {
	SendBuffer int  `yaml:"send_buffer"`
	Broker     bool `yaml:"broker"`
}

type Auth struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// Agent configures the sync-agent mode.
type Agent struct {
	BaseURL         string        `yaml:"base_url"`
	Token           string        `yaml:"token"`
	StateDir        string        `yaml:"state_dir"`
	RefetchInterval time.Duration `yaml:"refetch_interval"`
}

// Outlet seeds the directory used by the in-memory store.
type Outlet struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	RestaurantID   string `yaml:"restaurant_id"`
	RestaurantName string `yaml:"restaurant_name"`
}

// LoadConfig reads the YAML file, then applies .env and ORDERHUB_* overrides.
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{}
	data, err := os.ReadFile(configPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Storage = getEnv("ORDERHUB_STORAGE", c.Storage)

	if c.DB == nil {
		c.DB = &Postgres{}
	}
	c.DB.Host = getEnv("POSTGRES_HOST", c.DB.Host)
	c.DB.Port = getEnv("POSTGRES_PORT", c.DB.Port)
	c.DB.User = getEnv("POSTGRES_USER", c.DB.User)
	c.DB.Password = getEnv("POSTGRES_PASSWORD", c.DB.Password)
	c.DB.Database = getEnv("POSTGRES_DBNAME", c.DB.Database)

	if c.RMQ == nil {
		c.RMQ = &RabbitMQ{}
	}
	c.RMQ.Host = getEnv("RABBITMQ_HOST", c.RMQ.Host)
	c.RMQ.Port = getEnv("RABBITMQ_PORT", c.RMQ.Port)
	c.RMQ.User = getEnv("RABBITMQ_USER", c.RMQ.User)
	c.RMQ.Password = getEnv("RABBITMQ_PASSWORD", c.RMQ.Password)
	c.RMQ.VHost = getEnv("RABBITMQ_VHOST", c.RMQ.VHost)

	if c.Mongo == nil {
		c.Mongo = &Mongo{}
	}
	c.Mongo.URI = getEnv("MONGO_URI", c.Mongo.URI)
	c.Mongo.Database = getEnv("MONGO_DATABASE", c.Mongo.Database)

	c.Auth.JWTSecret = getEnv("ORDERHUB_JWT_SECRET", c.Auth.JWTSecret)
	if v := os.Getenv("ORDERHUB_HUB_BROKER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Hub.Broker = b
		}
	}

	c.Agent.BaseURL = getEnv("ORDERHUB_AGENT_BASE_URL", c.Agent.BaseURL)
	c.Agent.Token = getEnv("ORDERHUB_AGENT_TOKEN", c.Agent.Token)
	c.Agent.StateDir = getEnv("ORDERHUB_AGENT_STATE_DIR", c.Agent.StateDir)
}

func (c *Config) applyDefaults() {
	if c.Storage == "" {
		c.Storage = StoragePostgres
	}
	if c.DB.Port == "" {
		c.DB.Port = "5432"
	}
	if c.DB.MaxConns <= 0 {
		c.DB.MaxConns = 10
	}
	if c.RMQ.Port == "" {
		c.RMQ.Port = "5672"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "orderhub"
	}
	if c.Hub.SendBuffer <= 0 {
		c.Hub.SendBuffer = 64
	}
	if c.Agent.BaseURL == "" {
		c.Agent.BaseURL = "http://localhost:3000"
	}
	if c.Agent.StateDir == "" {
		c.Agent.StateDir = ".orderhub"
	}
	if c.Agent.RefetchInterval <= 0 {
		c.Agent.RefetchInterval = 30 * time.Second
	}
}

// Validate checks that the selected storage backend is usable.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.DB.Host == "" || c.DB.Database == "" {
			return fmt.Errorf("database host and name are required for %s storage", StoragePostgres)
		}
	default:
		return fmt.Errorf("unknown storage: %s", c.Storage)
	}
	for i, o := range c.Outlets {
		if strings.TrimSpace(o.ID) == "" {
			return fmt.Errorf("outlet %d: id is required", i+1)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
