// Package config loads and validates zerogd/zerogctl configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete supervisor configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Datastore  DatastoreConfig  `yaml:"datastore"`
	Queue      QueueConfig      `yaml:"queue"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// ServerConfig holds the supervisor's identity and polling settings.
type ServerConfig struct {
	Name            string        `yaml:"name"`             // service name, used for the job tube "{name}_jobs"
	Host            string        `yaml:"host"`              // thisHost, embedded in the workerId
	Mode            string        `yaml:"mode"`              // "server" or "worker"
	PollInterval    time.Duration `yaml:"pollInterval"`      // validated positive; not read at runtime (Server polls every server.PollInterval)
	WorkerPollWait  time.Duration `yaml:"workerPollWait"`    // not read at runtime (Worker waits worker.PollInterval)
	WorkerExecPath  string        `yaml:"workerExecPath"`    // path to self, used to exec the worker subprocess
}

// DatastoreConfig selects and configures the Datastore backend.
type DatastoreConfig struct {
	Backend  string          `yaml:"backend"` // "memory" or "dynamodb"
	DynamoDB *DynamoDBConfig `yaml:"dynamodb"`
}

// DynamoDBConfig configures the DynamoDB-backed Datastore.
type DynamoDBConfig struct {
	Region    string `yaml:"region"`
	TableName string `yaml:"tableName"`
}

// QueueConfig selects and configures the WorkQueue backend.
type QueueConfig struct {
	Backend   string           `yaml:"backend"` // "memory" or "beanstalkd"
	Beanstalk *BeanstalkConfig `yaml:"beanstalkd"`
}

// BeanstalkConfig configures the beanstalkd-backed WorkQueue.
type BeanstalkConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig controls the process-wide logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// MonitoringConfig holds metrics settings; nothing in this repository
// reads them.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `yaml:"prometheus"`
}

// PrometheusConfig holds Prometheus exporter settings. This repository
// has no exporter, and nothing reads these fields.
type PrometheusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// DefaultConfig returns the built-in configuration used when no config
// file is supplied (development mode: in-memory datastore and queue).
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:           "zerog",
			Host:           "localhost",
			Mode:           "server",
			PollInterval:   2 * time.Second,
			WorkerPollWait: 2 * time.Second,
		},
		Datastore: DatastoreConfig{
			Backend: "memory",
		},
		Queue: QueueConfig{
			Backend: "memory",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Monitoring: MonitoringConfig{
			Prometheus: PrometheusConfig{
				Enabled: false,
				Address: ":9090",
			},
		},
	}
}

// Load reads and validates a YAML configuration file, filling in defaults
// for anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return fmt.Errorf("server.name is required")
	}
	if c.Server.PollInterval <= 0 {
		return fmt.Errorf("server.pollInterval must be positive")
	}

	switch c.Datastore.Backend {
	case "memory":
	case "dynamodb":
		if c.Datastore.DynamoDB == nil || c.Datastore.DynamoDB.TableName == "" {
			return fmt.Errorf("datastore.dynamodb.tableName is required when backend is dynamodb")
		}
	default:
		return fmt.Errorf("unknown datastore.backend: %s", c.Datastore.Backend)
	}

	switch c.Queue.Backend {
	case "memory":
	case "beanstalkd":
		if c.Queue.Beanstalk == nil || c.Queue.Beanstalk.Host == "" {
			return fmt.Errorf("queue.beanstalkd.host is required when backend is beanstalkd")
		}
	default:
		return fmt.Errorf("unknown queue.backend: %s", c.Queue.Backend)
	}

	return nil
}

// JobTube is the name of this service's job work tube.
func (c *Config) JobTube() string {
	return c.Server.Name + "_jobs"
}
