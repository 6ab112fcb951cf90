package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(body)), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigParsesYaml(t *testing.T) {
	path := writeConfig(t, `
storage: postgres
database:
  host: db
  port: "6543"
  user: orderhub
  password: secret
  database: orders
rabbitmq:
  host: mq
  vhost: orderhub
hub:
  send_buffer: 8
  broker: true
agent:
  refetch_interval: 5s
outlets:
  - id: outlet-1
    name: Downtown
    restaurant_id: r-1
    restaurant_name: Spice Route
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.DB.Host != "db" || cfg.DB.Port != "6543" || cfg.DB.Database != "orders" {
		t.Fatalf("unexpected database section: %+v", cfg.DB)
	}
	if cfg.RMQ.Port != "5672" {
		t.Fatalf("expected default rabbitmq port, got %q", cfg.RMQ.Port)
	}
	if !cfg.Hub.Broker || cfg.Hub.SendBuffer != 8 {
		t.Fatalf("unexpected hub section: %+v", cfg.Hub)
	}
	if cfg.Agent.RefetchInterval != 5*time.Second {
		t.Fatalf("expected 5s refetch interval, got %s", cfg.Agent.RefetchInterval)
	}
	if len(cfg.Outlets) != 1 || cfg.Outlets[0].RestaurantName != "Spice Route" {
		t.Fatalf("unexpected outlets: %+v", cfg.Outlets)
	}
}

func TestLoadConfigHonorsEnv(t *testing.T) {
	path := writeConfig(t, `
storage: memory
`)
	t.Setenv("ORDERHUB_JWT_SECRET", "from-env")
	t.Setenv("ORDERHUB_HUB_BROKER", "true")
	t.Setenv("MONGO_DATABASE", "carts")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Fatalf("expected env secret, got %q", cfg.Auth.JWTSecret)
	}
	if !cfg.Hub.Broker {
		t.Fatalf("expected broker enabled from env")
	}
	if cfg.Mongo.Database != "carts" {
		t.Fatalf("expected mongo database override, got %q", cfg.Mongo.Database)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("ORDERHUB_STORAGE", "memory")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Storage != StorageMemory {
		t.Fatalf("expected memory storage, got %s", cfg.Storage)
	}
	if cfg.Hub.SendBuffer != 64 {
		t.Fatalf("expected default send buffer, got %d", cfg.Hub.SendBuffer)
	}
}

func TestValidateRejectsIncompletePostgres(t *testing.T) {
	t.Setenv("ORDERHUB_STORAGE", "")
	t.Setenv("POSTGRES_HOST", "")
	path := writeConfig(t, `
storage: postgres
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected validation error for missing database host")
	}
}
