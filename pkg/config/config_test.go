package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
	if got := cfg.JobTube(); got != "zerog_jobs" {
		t.Errorf("expected JobTube \"zerog_jobs\", got %q", got)
	}
}

func TestValidate_RejectsUnknownBackends(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Datastore.Backend = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for an unknown datastore backend")
	}

	cfg = DefaultConfig()
	cfg.Queue.Backend = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for an unknown queue backend")
	}
}

func TestValidate_RequiresDynamoTableName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Datastore.Backend = "dynamodb"
	cfg.Datastore.DynamoDB = &DynamoDBConfig{Region: "us-east-1"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error when dynamodb.tableName is missing")
	}
}

func TestLoad_ParsesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zerogd.yml")
	yaml := `
server:
  name: myservice
  host: host1
queue:
  backend: beanstalkd
  beanstalkd:
    host: 127.0.0.1
    port: 11300
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("writing fixture config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Name != "myservice" || cfg.Server.Host != "host1" {
		t.Errorf("expected overridden server fields, got %+v", cfg.Server)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default logging level to survive, got %q", cfg.Logging.Level)
	}
	if cfg.JobTube() != "myservice_jobs" {
		t.Errorf("expected JobTube \"myservice_jobs\", got %q", cfg.JobTube())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/zerogd.yml"); err == nil {
		t.Error("expected an error for a missing config file")
	}
}
